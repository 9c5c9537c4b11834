// Package types defines the Habitica task model shared by the evaluator,
// the transformer and the API adapter. The shape is the flat JSON the
// Habitica v3 API sends and accepts.
package types

import (
	"strings"
	"time"
)

// TaskType is the kind of a Habitica task.
type TaskType = string

const (
	TaskTypeHabit TaskType = "habit"
	TaskTypeDaily TaskType = "daily"
	TaskTypeTodo  TaskType = "todo"
)

// ListDailys is the GET /tasks/user?type= value for dailies. Habitica
// spells it differently from the task type.
const ListDailys = "dailys"

// Task is a Habitica task of any type. Fields that only apply to some
// types are nullable so they can be dropped from create payloads.
type Task struct {
	ID        string  `json:"id,omitempty"`
	Type      string  `json:"type"`
	Text      string  `json:"text"`
	Notes     string  `json:"notes,omitempty"`
	Attribute string  `json:"attribute,omitempty"`
	Priority  float64 `json:"priority,omitempty"`
	Value     float64 `json:"value"`

	Tags      []string    `json:"tags"`
	Checklist []CheckItem `json:"checklist,omitempty"`
	Reminders []Reminder  `json:"reminders,omitempty"`

	// Daily only.
	History   []HistoryEntry `json:"history,omitempty"`
	Frequency *string        `json:"frequency,omitempty"`
	Streak    *int           `json:"streak,omitempty"`
	IsDue     *bool          `json:"isDue,omitempty"`

	// Todo only.
	Date *time.Time `json:"date,omitempty"`

	// Not used by habits.
	Completed bool `json:"completed"`
}

// IsDaily reports whether the task is a daily. Habitica always sends the
// lowercase form but user-authored payloads are not that careful.
func (t *Task) IsDaily() bool {
	return strings.EqualFold(t.Type, TaskTypeDaily)
}

// HasTag reports whether tagID is among the task's tags.
func (t *Task) HasTag(tagID string) bool {
	for _, tag := range t.Tags {
		if tag == tagID {
			return true
		}
	}
	return false
}

// CheckItem is one entry of a task checklist.
type CheckItem struct {
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Reminder is a push reminder attached to a task.
type Reminder struct {
	ID   string    `json:"id,omitempty"`
	Time time.Time `json:"time"`
}

// HistoryEntry is Habitica's per-day snapshot of a daily's state.
// Older entries may lack the isDue and completed flags.
type HistoryEntry struct {
	Date      EpochMillis `json:"date"`
	Value     *float64    `json:"value,omitempty"`
	IsDue     *bool       `json:"isDue,omitempty"`
	Completed *bool       `json:"completed,omitempty"`
}
