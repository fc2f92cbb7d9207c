package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/cloud"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/config"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/metrics"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/notifications"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/tags"
)

// SweepOptions configures one sweep. Provider is required.
type SweepOptions struct {
	Provider    cloud.Provider
	GracePeriod time.Duration
	DryRun      bool

	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Webhook   *notifications.Webhook
	Workspace string

	// Now is the reference time (usually time.Now(), injected for deterministic testing).
	Now func() time.Time
}

// SweepReport lists what the sweep did with each endpoint.
type SweepReport struct {
	Examined int
	// Deleted holds the endpoints removed (or that would be removed in dry-run mode).
	Deleted []string
	Failed  []string
	Skipped int
}

// Sweep deletes endpoints created by this tool that ended in a Failed or
// Canceled provisioning state and are older than the grace period. Such
// endpoints are left behind when a deploy run gives up or is interrupted.
//
// Endpoints without the managed tag are never touched. Deletion failures do
// not stop the sweep; they are returned together as one aggregate error.
func Sweep(ctx context.Context, opts SweepOptions) (SweepReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("workflow", "sweep", "dry_run", opts.DryRun)

	now := time.Now()
	if opts.Now != nil {
		now = opts.Now()
	}

	var report SweepReport

	endpoints, err := opts.Provider.ListEndpoints(ctx)
	if err != nil {
		logger.Error("Failed to list endpoints", "error", err)
		return report, fmt.Errorf("listing endpoints failed: %w", err)
	}
	logger.Info("Found endpoints", "count", len(endpoints))

	var errs []error
	for _, endpoint := range endpoints {
		// Stop if global timeout is reached
		if ctx.Err() != nil {
			logger.Warn("Sweep timed out, stopping early")
			errs = append(errs, ctx.Err())
			break
		}

		report.Examined++
		epLogger := logger.With("endpoint_name", endpoint.Name, "provisioning_state", endpoint.ProvisioningState)

		if reason, ok := sweepable(endpoint, now, opts.GracePeriod); !ok {
			epLogger.Debug("Endpoint kept", "reason", reason)
			report.Skipped++
			continue
		}

		if opts.DryRun {
			epLogger.Info("Endpoint would be deleted")
			report.Deleted = append(report.Deleted, endpoint.Name)
			continue
		}

		if err := ignoreNotFound(opts.Provider.DeleteEndpoint(ctx, endpoint.Name)); err != nil {
			epLogger.Error("Failed to delete endpoint", "error", err)
			report.Failed = append(report.Failed, endpoint.Name)
			errs = append(errs, fmt.Errorf("deleting endpoint %q: %w", endpoint.Name, err))
			continue
		}

		epLogger.Info("Endpoint deleted")
		report.Deleted = append(report.Deleted, endpoint.Name)
	}

	if opts.Metrics != nil {
		action := "deleted"
		if opts.DryRun {
			action = "would_delete"
		}
		opts.Metrics.RecordSweep(ctx, action, len(report.Deleted))
		opts.Metrics.RecordSweep(ctx, "failed", len(report.Failed))
		opts.Metrics.RecordSweep(ctx, "skipped", report.Skipped)
	}

	logger.Info("Sweep workflow execution summary",
		"examined", report.Examined,
		"deleted", len(report.Deleted),
		"failed", len(report.Failed),
		"skipped", report.Skipped)

	aggregate := utilerrors.NewAggregate(errs)
	if aggregate != nil && len(report.Failed) > 0 && opts.Webhook.Enabled() {
		failure := notifications.SweepFailure{
			Service:   ServiceName,
			Workspace: opts.Workspace,
			Endpoints: report.Failed,
			Message:   aggregate.Error(),
			Time:      now.UTC(),
		}
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := opts.Webhook.Notify(notifyCtx, failure); err != nil {
			logger.Error("Failure notification could not be delivered", "error", err)
		}
	}

	if aggregate != nil {
		return report, aggregate
	}
	return report, nil
}

// sweepable decides whether endpoint may be deleted, returning the reason when not.
func sweepable(endpoint cloud.Endpoint, now time.Time, grace time.Duration) (string, bool) {
	meta, err := tags.ParseManaged(endpoint.Tags)
	if err != nil {
		return fmt.Sprintf("unreadable managed tags: %v", err), false
	}
	if !meta.Managed {
		return "not managed", false
	}
	if meta.Kind != "" && meta.Kind != "endpoint" {
		return "not an endpoint", false
	}

	switch endpoint.ProvisioningState {
	case cloud.StateFailed, cloud.StateCanceled:
	default:
		return "provisioning state is not terminal failure", false
	}

	created := meta.Created
	if created.IsZero() {
		created = endpoint.CreatedAt
	}
	if created.IsZero() {
		return "creation time unknown", false
	}
	if now.Sub(created) < grace {
		return "inside grace period", false
	}

	return "", true
}

// RunSweepWorkflow is the CLI and daemon entry point of the sweep.
// m may be nil; the daemon passes its long-lived metrics.
func RunSweepWorkflow(configPath string, timeoutSeconds int, logLevel string, dryRun bool, webhook notifications.Webhook, m *metrics.Metrics) error {
	logger := SetupLogger(logLevel)

	ctx, cancel := withTimeout(context.Background(), timeoutSeconds)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("Configuration could not be loaded", "path", configPath, "error", err)
		return err
	}
	logger = logger.With("workspace", cfg.Azure.WorkspaceName)

	client, err := initClient(ctx, cfg)
	if err != nil {
		logger.Error("Azure ML client initialization failed", "error", err)
		return fmt.Errorf("client init failed: %w", err)
	}
	logger.Info("Azure ML connection established")

	_, err = Sweep(ctx, SweepOptions{
		Provider:    client,
		GracePeriod: cfg.Sweep.GracePeriod,
		DryRun:      dryRun || cfg.Sweep.DryRun,
		Logger:      logger,
		Metrics:     m,
		Webhook:     &webhook,
		Workspace:   cfg.Azure.WorkspaceName,
	})
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("Sweep stopped by the global timeout")
	}
	return err
}
