package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jayphen/habisnooze/internal/logging"
	"github.com/Jayphen/habisnooze/internal/webhook"
)

func newWebhookEventCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "webhook-event <file|->",
		Short: "Deliver a taskActivity payload without the HTTP server",
		Long: `Read a Habitica taskActivity webhook body from a file (or stdin with "-")
and hand it to the same handler 'habisnooze serve' uses.

Useful for testing webhook payloads captured from Habitica.`,
		Args: cobra.ExactArgs(1),
		RunE: runWebhookEvent,
	}
}

func runWebhookEvent(cmd *cobra.Command, args []string) error {
	log := logging.WithCommand("webhook-event")

	body, err := readPayload(args[0])
	if err != nil {
		return err
	}

	svc, err := newService(log, nil)
	if err != nil {
		return err
	}

	server := webhook.New(webhook.Config{Path: cfg.Webhook.Path}, svc, webhook.WithLogger(log))
	outcome := server.Dispatch(cmd.Context(), body)

	fmt.Printf("outcome: %s\n", outcome)
	if outcome == webhook.OutcomeFailed {
		return fmt.Errorf("handler failed")
	}
	return nil
}

func readPayload(name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return data, nil
}
