package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jayphen/habisnooze/internal/logging"
	"github.com/Jayphen/habisnooze/internal/types"
	"github.com/Jayphen/habisnooze/internal/ui"
)

var (
	statusJSON  bool
	statusLimit int
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent snooze runs",
		Long: `Show the last snooze run and the run history recorded in Redis.

Requires redis_url to be set.`,
		RunE: runStatus,
	}

	cmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
	cmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of past runs to show")

	return cmd
}

type statusReport struct {
	LockOwner string             `json:"lockOwner,omitempty"`
	Last      *types.RunSummary  `json:"last"`
	History   []types.RunSummary `json:"history"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	log := logging.WithCommand("status")

	if cfg.RedisURL == "" {
		fmt.Println("Run status is only recorded when redis_url is set.")
		return nil
	}

	rdb := openRedis(log)
	if rdb == nil {
		return fmt.Errorf("redis at %s is not reachable", cfg.RedisURL)
	}
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	var report statusReport
	var err error

	if report.Last, err = rdb.GetRunSummary(ctx); err != nil {
		return err
	}
	if report.History, err = rdb.GetRunHistory(ctx, statusLimit); err != nil {
		return err
	}
	if report.LockOwner, err = rdb.RunLockOwner(ctx); err != nil {
		log.WithError(err).Debug("failed to read run lock")
	}

	if statusJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printStatus(report)
	return nil
}

func printStatus(r statusReport) {
	if r.LockOwner != "" {
		fmt.Println(ui.WarningStyle.Render("A run is in progress on " + r.LockOwner))
		fmt.Println()
	}

	if r.Last == nil {
		fmt.Println("No runs recorded yet")
		return
	}

	printRunSummary(*r.Last)

	if len(r.History) <= 1 {
		return
	}

	fmt.Println()
	header := fmt.Sprintf("%-20s %-16s %-8s %-8s %-8s %s", "STARTED", "STATUS", "FETCHED", "SNOOZED", "FAILED", "RUN")
	fmt.Println(ui.HeaderStyle.Render(header))
	fmt.Println(strings.Repeat("-", 80))

	for _, s := range r.History {
		fmt.Printf("%-20s %s %-8d %-8d %-8d %s\n",
			s.StartedAt.Local().Format(time.DateTime),
			ui.Pad(ui.RunStatus(s.Status), 16),
			s.Fetched,
			s.Created,
			s.Failed,
			ui.DimStyle.Render(s.RunID),
		)
	}
}
