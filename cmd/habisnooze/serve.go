package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jayphen/habisnooze/internal/logging"
	"github.com/Jayphen/habisnooze/internal/metrics"
	"github.com/Jayphen/habisnooze/internal/notify"
	"github.com/Jayphen/habisnooze/internal/scheduler"
	"github.com/Jayphen/habisnooze/internal/types"
	"github.com/Jayphen/habisnooze/internal/webhook"
)

var (
	serveNoWebhook bool
	serveNotify    bool
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the timer and the webhook receiver",
		Long: `Run habisnooze as a long-lived agent.

The timer snoozes eligible dailies every schedule.interval (and once at
start when schedule.run_on_start is set). The webhook receiver acknowledges
Habitica taskActivity deliveries and serves /healthz and /metrics.`,
		RunE: runServe,
	}

	cmd.Flags().BoolVar(&serveNoWebhook, "no-webhook", false, "Only run the timer")
	cmd.Flags().BoolVar(&serveNotify, "notify", false, "Show a desktop notification when a run snoozes or fails")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.WithCommand("serve")

	m := metrics.New()
	svc, err := newService(log, m)
	if err != nil {
		log.WithError(err).Error("failed to start")
		return err
	}

	rdb := openRedis(log)
	if rdb != nil {
		defer rdb.Close()
	}
	var extra []scheduler.Option
	if serveNotify {
		extra = append(extra, scheduler.WithOnFinish(notifyRun))
	}
	runner := newRunner(svc, rdb, log, extra...)

	// Set up signal handling
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		if err := runner.Start(ctx); err != nil {
			log.WithError(err).Warn("scheduler stopped with error")
		}
	}()

	serverErr := make(chan error, 1)

	var server *webhook.Server
	if !serveNoWebhook {
		server = webhook.New(webhook.Config{
			Addr:   cfg.Webhook.Addr,
			Path:   cfg.Webhook.Path,
			Secret: cfg.Webhook.Secret,
		}, svc, webhook.WithLogger(log), webhook.WithMetrics(m))

		go func() {
			if err := server.Start(); err != nil {
				serverErr <- fmt.Errorf("webhook server: %w", err)
			}
		}()
	}

	fmt.Printf("habisnooze %s running (interval %s", Version, cfg.Schedule.Interval)
	if server != nil {
		fmt.Printf(", webhook %s%s", cfg.Webhook.Addr, cfg.Webhook.Path)
	}
	fmt.Println(")")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case runErr = <-serverErr:
		log.WithError(runErr).Error("webhook server stopped unexpectedly")
		stop()
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Warn("webhook server shutdown failed")
		}
	}

	// Wait for the scheduler to finish an in-flight run.
	<-runnerDone

	log.Info("stopped")
	return runErr
}

// notifyRun notifies about runs that changed something or went wrong.
func notifyRun(s types.RunSummary) {
	if s.Status == types.RunNoTasks || (s.Status == types.RunCompleted && s.Created == 0) {
		return
	}
	notify.Send(notify.RunMessage(s))
}
