package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jayphen/habisnooze/internal/logging"
	"github.com/Jayphen/habisnooze/internal/service"
	"github.com/Jayphen/habisnooze/internal/ui"
)

var (
	previewJSON         bool
	previewOnlyEligible bool
)

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show which dailies would be snoozed",
		Long: `Evaluate your dailies against the snooze policy without creating anything.

Each daily is listed with its decision: snooze, or the reason it is skipped.`,
		RunE: runPreview,
	}

	cmd.Flags().BoolVar(&previewJSON, "json", false, "Output in JSON format, including the todos that would be created")
	cmd.Flags().BoolVar(&previewOnlyEligible, "eligible", false, "Only list dailies that would be snoozed")

	return cmd
}

func runPreview(cmd *cobra.Command, args []string) error {
	log := logging.WithCommand("preview")

	svc, err := newService(log, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Schedule.RunTimeout)
	defer cancel()

	p, err := svc.Preview(ctx)
	if err != nil {
		log.WithError(err).Error("preview failed")
		return err
	}

	if previewOnlyEligible {
		kept := p.Evaluations[:0]
		for _, e := range p.Evaluations {
			if e.Decision.Eligible {
				kept = append(kept, e)
			}
		}
		p.Evaluations = kept
	}

	if previewJSON {
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printPreview(p)
	return nil
}

func printPreview(p *service.Preview) {
	fmt.Printf("%s %s\n",
		ui.TitleStyle.Render("Snooze preview"),
		ui.DimStyle.Render(fmt.Sprintf("reference %s, todos due %s",
			p.ReferenceDate.Format(time.DateOnly), p.DueDate.Format(time.DateOnly))),
	)
	fmt.Println()

	if len(p.Evaluations) == 0 {
		fmt.Println("No dailies found")
		return
	}

	// Header
	header := fmt.Sprintf("%-36s %-24s %-10s %s", "DAILY", "DECISION", "CHECKLIST", "ID")
	fmt.Println(ui.HeaderStyle.Render(header))
	fmt.Println(strings.Repeat("-", 90))

	for _, e := range p.Evaluations {
		checklist := "-"
		if n := len(e.Task.Checklist); n > 0 {
			done := 0
			for _, item := range e.Task.Checklist {
				if item.Completed {
					done++
				}
			}
			checklist = fmt.Sprintf("%d/%d", done, n)
		}

		fmt.Printf("%s %s %-10s %s\n",
			ui.Pad(ui.Truncate(e.Task.Text, 36), 36),
			ui.Pad(ui.Decision(e.Decision), 24),
			checklist,
			ui.DimStyle.Render(e.Task.ID),
		)
	}

	fmt.Println()
	fmt.Printf("%d of %d dailies would be snoozed\n", p.Eligible(), len(p.Evaluations))
}
