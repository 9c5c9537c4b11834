package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/Jayphen/habisnooze/internal/snooze"
	"github.com/Jayphen/habisnooze/internal/types"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"Stretch", 10, "Stretch"},
		{"Read twenty pages", 10, "Read tw..."},
		{"  padded  ", 10, "padded"},
		{"Méditation guidée", 8, "Médit..."},
		{"short", 3, "short"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestPad(t *testing.T) {
	styled := SuccessStyle.Render("ok")
	padded := Pad(styled, 6)
	if w := lipgloss.Width(padded); w != 6 {
		t.Errorf("Pad width = %d, want 6", w)
	}
	if got := Pad("toolong", 3); got != "toolong" {
		t.Errorf("Pad should not cut, got %q", got)
	}
}

func TestRunStatus(t *testing.T) {
	for _, status := range []types.RunStatus{
		types.RunCompleted, types.RunPartial, types.RunFetchFailed,
		types.RunNoTasks, types.RunCancelled, types.RunPanicked, types.RunSkipped,
	} {
		if got := RunStatus(status); !strings.Contains(got, string(status)) {
			t.Errorf("RunStatus(%s) = %q, missing status name", status, got)
		}
	}
}

func TestDecision(t *testing.T) {
	if got := Decision(snooze.Decision{Eligible: true, Reason: snooze.ReasonEligible}); !strings.Contains(got, "snooze") {
		t.Errorf("Decision(eligible) = %q", got)
	}
	if got := Decision(snooze.Decision{Reason: snooze.ReasonNotDue}); !strings.Contains(got, string(snooze.ReasonNotDue)) {
		t.Errorf("Decision(not due) = %q", got)
	}
}
