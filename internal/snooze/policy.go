// Package snooze decides which dailies are snoozeable and derives the todo
// that replaces a snoozed daily.
package snooze

import (
	"fmt"
	"time"
)

// ChecklistPolicy selects which checklist items move to the snoozed todo.
type ChecklistPolicy string

const (
	ChecklistUnfinished ChecklistPolicy = "unfinished"
	ChecklistAll        ChecklistPolicy = "all"
)

const (
	// DefaultReminderOffset puts the todo reminder at 10:00 local time.
	DefaultReminderOffset = 10 * time.Hour
	// DefaultNotes marks todos created by a snooze.
	DefaultNotes = "Daily Snoozed. Do it!!"
)

// Policy is the snooze configuration applied to one run.
type Policy struct {
	// SnoozeTagID is the Habitica tag id that opts a daily in.
	SnoozeTagID string

	// CompareDueTaskToYesterday evaluates dailies against yesterday instead
	// of today. Habitica refreshes isDue at the user's day start, which can
	// trail the local midnight the timer runs at.
	CompareDueTaskToYesterday bool

	// Location is the user's timezone; calendar days are taken in it.
	Location *time.Location

	Checklist      ChecklistPolicy
	ReminderOffset time.Duration
	Notes          string
}

// Validate checks the fields a run cannot do without.
func (p Policy) Validate() error {
	if p.SnoozeTagID == "" {
		return fmt.Errorf("snooze tag id is required")
	}
	switch p.Checklist {
	case "", ChecklistUnfinished, ChecklistAll:
	default:
		return fmt.Errorf("unknown checklist policy %q", p.Checklist)
	}
	return nil
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// ReferenceDate is the calendar day dailies are evaluated against:
// today, or yesterday when CompareDueTaskToYesterday is set.
func (p Policy) ReferenceDate(now time.Time) time.Time {
	day := StartOfDay(now, p.location())
	if p.CompareDueTaskToYesterday {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// FollowingDueDate is the due date of a snoozed todo, the day after the
// reference date.
func (p Policy) FollowingDueDate(now time.Time) time.Time {
	return p.ReferenceDate(now).AddDate(0, 0, 1)
}

// TodoOptions returns the transformer settings for this policy.
func (p Policy) TodoOptions() TodoOptions {
	return TodoOptions{
		SnoozeTagID:    p.SnoozeTagID,
		Checklist:      p.Checklist,
		ReminderOffset: p.ReminderOffset,
		Notes:          p.Notes,
	}
}
