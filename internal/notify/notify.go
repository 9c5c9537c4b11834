// Package notify sends OS-native desktop notifications about snooze runs.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/Jayphen/habisnooze/internal/types"
)

// ErrUnsupported is returned on platforms without a notification command.
var ErrUnsupported = fmt.Errorf("desktop notifications are not supported on %s", runtime.GOOS)

// Notify shows a notification and waits for the notification command to
// exit. It uses osascript on macOS and notify-send on Linux.
func Notify(ctx context.Context, title, message string) error {
	cmd, err := command(ctx, runtime.GOOS, title, message)
	if err != nil {
		return err
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", cmd.Path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Send shows a notification in the background and ignores failures.
func Send(title, message string) {
	go func() {
		_ = Notify(context.Background(), title, message)
	}()
}

func command(ctx context.Context, goos, title, message string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(message), escapeAppleScript(title))
		return exec.CommandContext(ctx, "osascript", "-e", script), nil
	case "linux":
		return exec.CommandContext(ctx, "notify-send", "--app-name=habisnooze", title, message), nil
	default:
		return nil, ErrUnsupported
	}
}

var appleScriptEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// escapeAppleScript escapes special characters for AppleScript strings.
func escapeAppleScript(s string) string {
	return appleScriptEscaper.Replace(s)
}

// RunMessage renders a run summary as a notification title and body.
func RunMessage(s types.RunSummary) (title, message string) {
	switch s.Status {
	case types.RunCompleted:
		if s.Created == 0 {
			return "habisnooze: nothing to snooze", fmt.Sprintf("Checked %d dailies, none were snoozeable.", s.Fetched)
		}
		return fmt.Sprintf("habisnooze: snoozed %d %s", s.Created, plural(s.Created, "daily", "dailies")), joinTexts(s.Snoozed)
	case types.RunPartial:
		return fmt.Sprintf("habisnooze: %d snoozed, %d failed", s.Created, s.Failed),
			"Failed: " + joinTexts(s.Failures)
	case types.RunNoTasks:
		return "habisnooze: no dailies", "Habitica returned no dailies."
	case types.RunSkipped:
		return "habisnooze: run skipped", s.Error
	default:
		msg := s.Error
		if msg == "" {
			msg = "see the logs for details"
		}
		return fmt.Sprintf("habisnooze: run %s", strings.ReplaceAll(string(s.Status), "_", " ")), msg
	}
}

func joinTexts(tasks []types.SnoozedTask) string {
	const maxListed = 5
	texts := make([]string, 0, maxListed+1)
	for i, t := range tasks {
		if i == maxListed {
			texts = append(texts, fmt.Sprintf("and %d more", len(tasks)-maxListed))
			break
		}
		texts = append(texts, t.Text)
	}
	return strings.Join(texts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
