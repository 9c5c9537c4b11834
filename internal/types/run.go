package types

import "time"

// RunStatus is the final state of a cron run.
type RunStatus string

const (
	RunCompleted   RunStatus = "completed"
	RunPartial     RunStatus = "partial"      // some todos could not be created
	RunFetchFailed RunStatus = "fetch_failed" // dailies could not be listed
	RunNoTasks     RunStatus = "no_tasks"
	RunCancelled   RunStatus = "cancelled"
	RunPanicked    RunStatus = "panicked"
	RunSkipped     RunStatus = "skipped" // another run held the lock
)

// RunSummary describes one cron run. It is logged, counted and published
// to Redis, never read back by the snooze logic.
type RunSummary struct {
	RunID         string    `json:"runId"`
	Status        RunStatus `json:"status"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
	ReferenceDate time.Time `json:"referenceDate"`
	DueDate       time.Time `json:"dueDate"`

	Fetched  int `json:"fetched"`
	Eligible int `json:"eligible"`
	Created  int `json:"created"`
	Failed   int `json:"failed"`

	// Snoozed lists the dailies a todo was created for.
	Snoozed []SnoozedTask `json:"snoozed,omitempty"`
	// Failures lists the dailies whose todo could not be created.
	Failures []SnoozedTask `json:"failures,omitempty"`

	Error string `json:"error,omitempty"`
}

// SnoozedTask pairs a daily with the todo created for it.
type SnoozedTask struct {
	DailyID string `json:"dailyId"`
	Text    string `json:"text"`
	TodoID  string `json:"todoId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Duration is how long the run took.
func (r RunSummary) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
