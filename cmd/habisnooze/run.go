package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jayphen/habisnooze/internal/logging"
	"github.com/Jayphen/habisnooze/internal/notify"
	"github.com/Jayphen/habisnooze/internal/types"
	"github.com/Jayphen/habisnooze/internal/ui"
)

var (
	runNotify bool
	runJSON   bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Snooze eligible dailies once",
		Long: `Run a single snooze pass: list your dailies, create a todo for every
snoozeable one and print what happened.

The run takes the Redis run lock and records its summary when redis_url is set,
exactly like a timer run of 'habisnooze serve'.`,
		RunE: runRun,
	}

	cmd.Flags().BoolVar(&runNotify, "notify", false, "Show a desktop notification with the result")
	cmd.Flags().BoolVar(&runJSON, "json", false, "Output the run summary as JSON")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	log := logging.WithCommand("run")

	svc, err := newService(log, nil)
	if err != nil {
		log.WithError(err).Error("failed to start")
		return err
	}

	rdb := openRedis(log)
	if rdb != nil {
		defer rdb.Close()
	}
	runner := newRunner(svc, rdb, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := runner.RunOnce(ctx)

	if runNotify {
		title, message := notify.RunMessage(summary)
		nctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := notify.Notify(nctx, title, message); err != nil {
			log.WithError(err).Warn("failed to show notification")
		}
		cancel()
	}

	if runJSON {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printRunSummary(summary)
	}

	switch summary.Status {
	case types.RunCompleted, types.RunNoTasks, types.RunSkipped:
		return nil
	default:
		return fmt.Errorf("run %s", summary.Status)
	}
}

func printRunSummary(s types.RunSummary) {
	fmt.Println(ui.TitleStyle.Render("Snooze run") + " " + ui.DimStyle.Render(s.RunID))
	fmt.Printf("  status:    %s\n", ui.RunStatus(s.Status))
	if !s.ReferenceDate.IsZero() {
		fmt.Printf("  reference: %s\n", s.ReferenceDate.Format(time.DateOnly))
		fmt.Printf("  due:       %s\n", s.DueDate.Format(time.DateOnly))
	}
	fmt.Printf("  dailies:   %d fetched, %d eligible, %d snoozed, %d failed\n",
		s.Fetched, s.Eligible, s.Created, s.Failed)
	if d := s.Duration(); d > 0 {
		fmt.Printf("  took:      %s\n", d.Round(time.Millisecond))
	}

	for _, t := range s.Snoozed {
		fmt.Printf("  %s %s\n", ui.SuccessStyle.Render(ui.IndicatorOK), t.Text)
	}
	for _, t := range s.Failures {
		fmt.Printf("  %s %s %s\n", ui.ErrorStyle.Render(ui.IndicatorFailed), t.Text, ui.DimStyle.Render(t.Error))
	}
	if s.Error != "" {
		fmt.Println("  " + ui.ErrorStyle.Render(s.Error))
	}
}
