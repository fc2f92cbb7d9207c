package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/cloud"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/cloud/azureml"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/config"
)

// ServiceName identifies this tool in notifications and tags.
const ServiceName = "endpointsentry"

// SetupLogger configures the application-wide logger.
// It uses "tint" for colorized, structured logging that is easy to read in terminals,
// and installs it as the slog default so library packages log through it too.
func SetupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// withTimeout returns ctx bounded by timeoutSeconds, or ctx itself when the
// timeout is zero.
func withTimeout(ctx context.Context, timeoutSeconds int) (context.Context, context.CancelFunc) {
	if timeoutSeconds > 0 {
		return context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	}
	return context.WithCancel(ctx)
}

// initClient connects to the Azure ML workspace named in cfg.
// Reads and deletes are retried for transient errors; creates are not (see retry.Create).
func initClient(ctx context.Context, cfg config.Config) (*azureml.Client, error) {
	client := azureml.Client{
		SubscriptionID: cfg.Azure.SubscriptionID,
		ResourceGroup:  cfg.Azure.ResourceGroup,
		Workspace:      cfg.Azure.WorkspaceName,
		RetryConfig: cloud.RetryConfig{
			MaxRetries:       3,
			BaseDelay:        2 * time.Second,
			MaxDelay:         10 * time.Second,
			OperationTimeout: 30 * time.Minute,
		},
	}
	if err := client.NewClient(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Azure ML: %w", err)
	}
	return &client, nil
}

// ignoreNotFound turns "already gone" into success for cleanup calls.
func ignoreNotFound(err error) error {
	if errors.Is(err, cloud.ErrNotFound) {
		return nil
	}
	return err
}

// deploymentBase derives the deployment base name from the configured one:
// only its first hyphen-separated segment is kept, so that the timestamp
// and token always fit the deployment name budget.
func deploymentBase(name string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(name), "-")
	return first
}
