package snooze

import (
	"time"

	"github.com/google/uuid"

	"github.com/Jayphen/habisnooze/internal/ptr"
	"github.com/Jayphen/habisnooze/internal/types"
)

// IDGenerator returns a fresh identifier on each call.
type IDGenerator func() string

// TodoOptions are the overrides applied when deriving a todo from a daily.
type TodoOptions struct {
	SnoozeTagID    string
	Checklist      ChecklistPolicy
	ReminderOffset time.Duration
	Notes          string

	// NewID defaults to random UUIDs.
	NewID IDGenerator
}

// BuildSnoozedTodo derives the todo that stands in for a snoozed daily,
// due on targetDate. The daily is left untouched and nothing in the result
// shares memory with it.
func BuildSnoozedTodo(daily *types.Task, targetDate time.Time, opts TodoOptions) types.Task {
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	notes := opts.Notes
	if notes == "" {
		notes = DefaultNotes
	}

	tags := make([]string, 0, len(daily.Tags))
	for _, tag := range daily.Tags {
		if tag != opts.SnoozeTagID {
			tags = append(tags, tag)
		}
	}

	var checklist []types.CheckItem
	if daily.Checklist != nil {
		checklist = make([]types.CheckItem, 0, len(daily.Checklist))
		for _, item := range daily.Checklist {
			if item.Completed && opts.Checklist != ChecklistAll {
				continue
			}
			checklist = append(checklist, types.CheckItem{
				ID:        newID(),
				Text:      item.Text,
				Completed: item.Completed,
			})
		}
	}

	return types.Task{
		Type:      types.TaskTypeTodo,
		Text:      daily.Text,
		Notes:     notes,
		Attribute: daily.Attribute,
		Priority:  daily.Priority,
		Value:     daily.Value,
		Tags:      tags,
		Checklist: checklist,
		Reminders: []types.Reminder{{
			ID:   newID(),
			Time: targetDate.Add(opts.ReminderOffset),
		}},
		Date:      ptr.To(targetDate),
		Completed: false,
	}
}
