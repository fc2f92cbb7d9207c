package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-co-op/gocron-ui/server"
	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/config"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/metrics"
	"github.com/aravindh-murugesan/endpointsentry-go/internal/workflow"
)

var (
	sweepSchedule string
	bindAddress   string
)

var daemonCommand = &cobra.Command{
	Use:     "daemon",
	Short:   "Run EndpointSentry in daemon mode",
	GroupID: "endpointsentry",
	Long:    `Starts EndpointSentry as a background service that sweeps failed endpoints on a cron schedule and serves a scheduler dashboard and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		banner := fmt.Sprintf("EndpointSentry - Daemon Mode \n\nVersion: %s\nBuild Date: %s", EndpointsentryVersion, EndpointsentryDate)
		fmt.Println(headerStyle.Render(banner))

		webhookProvider := webhookFromFlags()
		dlog := workflow.SetupLogger(logLevel).With("component", "daemon")

		// The schedule falls back to the configuration file.
		schedule := sweepSchedule
		if schedule == "" {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			schedule = cfg.Sweep.Schedule
		}

		m, err := metrics.New()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}

		s, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		s.Start()
		dlog.Info("Scheduler started", "config", configPath)

		// 1. Declared before NewJob so the task can log its own next run
		var sweepJob gocron.Job

		// 2. Define the Job
		sweepJob, sweepJobError := s.NewJob(
			gocron.CronJob(
				schedule,
				false,
			),
			gocron.NewTask(func() {
				// A. Run the Workflow
				if err := workflow.RunSweepWorkflow(configPath, timeout, logLevel, false, webhookProvider, m); err != nil {
					dlog.Error("Sweep Workflow failed", "error", err)
				}

				// B. Calculate and Log the Next Run (Post-Execution)
				if sweepJob != nil {
					if nextRun, err := sweepJob.NextRun(); err == nil {
						dlog.Info("Sweep Workflow completed",
							"next_run", nextRun.Format(time.RFC3339),
							"job_id", sweepJob.ID())
					}
				}
			}),
			gocron.WithName("Endpoint Sweep Workflow"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if sweepJobError != nil {
			_ = s.Shutdown()
			return sweepJobError
		}

		// 3. Log the Initial Next Run (Pre-Execution)
		if nextRun, err := sweepJob.NextRun(); err == nil {
			dlog.Info("Job Scheduled",
				"job_name", sweepJob.Name(),
				"job_id", sweepJob.ID(),
				"schedule", schedule,
				"next_run", nextRun.Format(time.RFC3339))
		}

		// 4. Dashboard and metrics share one listener
		port, err := listenPort(bindAddress)
		if err != nil {
			_ = s.Shutdown()
			return err
		}
		ui := server.NewServer(s, port, server.WithTitle("EndpointSentry - Dashboard"))

		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		mux.Handle("/", ui.Router)

		httpServer := &http.Server{
			Addr:              bindAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			dlog.Info("EndpointSentry Scheduler UI started", "address", bindAddress)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()

		// 5. Block Main Thread until Signal or server failure
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		var runErr error
		select {
		case sig := <-sigChan:
			dlog.Warn("Shutting down scheduler due to system signal...", "signal", sig.String())
		case runErr = <-serveErr:
			dlog.Error("Failed to start UI server", "error", runErr)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = httpServer.Shutdown(shutdownCtx)
		_ = m.Shutdown(shutdownCtx)
		return errors.Join(runErr, s.Shutdown())
	},
}

// listenPort extracts the numeric port of a host:port address.
func listenPort(address string) (int, error) {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return 0, fmt.Errorf("invalid bind address %q: %w", address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port in bind address %q: %w", address, err)
	}
	return port, nil
}

func init() {
	rootCommand.AddCommand(daemonCommand)
	daemonCommand.Flags().StringVar(&sweepSchedule, "sweep-schedule", "", "Cron schedule for the sweep (default: sweep.schedule from the configuration)")
	daemonCommand.Flags().StringVar(&bindAddress, "bind-address", "0.0.0.0:8080", "Address to bind the UI and metrics server")
}
