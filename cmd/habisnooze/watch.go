package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Jayphen/habisnooze/internal/logging"
	"github.com/Jayphen/habisnooze/internal/ui"
)

var watchAllowRun bool

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Launch the run dashboard",
		Long: `Launch an interactive dashboard of recent snooze runs.

Runs are read from Redis and refreshed every few seconds, so the dashboard
follows a 'habisnooze serve' agent running elsewhere. With --allow-run,
pressing x snoozes eligible dailies from the dashboard.`,
		RunE: runWatch,
	}

	cmd.Flags().BoolVar(&watchAllowRun, "allow-run", false, "Allow starting a run from the dashboard")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := logging.WithCommand("watch")

	if !hasTTY() {
		return fmt.Errorf("the dashboard needs a terminal; use 'habisnooze status' instead")
	}

	if cfg.RedisURL == "" {
		return fmt.Errorf("the dashboard needs redis_url to be set")
	}

	rdb := openRedis(log)
	if rdb == nil {
		return fmt.Errorf("redis at %s is not reachable", cfg.RedisURL)
	}
	defer rdb.Close()

	var trigger ui.Trigger
	if watchAllowRun {
		// Log lines would draw over the dashboard.
		quiet := logging.Nop()
		svc, err := newService(quiet, nil)
		if err != nil {
			return err
		}
		trigger = newRunner(svc, rdb, quiet).RunOnce
	}

	p := tea.NewProgram(ui.NewDashboard(Version, rdb, trigger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running dashboard: %w", err)
	}

	return nil
}

func hasTTY() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
