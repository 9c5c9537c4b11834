package snooze

import (
	"time"

	"github.com/Jayphen/habisnooze/internal/ptr"
	"github.com/Jayphen/habisnooze/internal/types"
)

// Reason explains an eligibility decision.
type Reason string

const (
	ReasonEligible   Reason = "eligible"
	ReasonNotDaily   Reason = "not a daily"
	ReasonMissingTag Reason = "missing snooze tag"
	ReasonNotDue     Reason = "not due"
)

// Decision is the outcome of evaluating one task.
type Decision struct {
	Eligible bool   `json:"eligible"`
	Reason   Reason `json:"reason"`
}

// Evaluate decides whether task can be snoozed on referenceDate.
// The task is only read.
func Evaluate(task *types.Task, referenceDate time.Time, snoozeTagID string) Decision {
	switch {
	case task == nil || !task.IsDaily():
		return Decision{Reason: ReasonNotDaily}
	case snoozeTagID == "" || !task.HasTag(snoozeTagID):
		return Decision{Reason: ReasonMissingTag}
	case !IsDueOnDate(task, referenceDate):
		return Decision{Reason: ReasonNotDue}
	}
	return Decision{Eligible: true, Reason: ReasonEligible}
}

// IsSnoozeable reports whether task is a tagged daily that is due and
// unfinished on referenceDate.
func IsSnoozeable(task *types.Task, referenceDate time.Time, snoozeTagID string) bool {
	return Evaluate(task, referenceDate, snoozeTagID).Eligible
}

// IsDueOnDate reports whether the daily was due and left unfinished on the
// calendar day of referenceDate, taken in referenceDate's location.
//
// Either the history entry for that exact day or the live isDue/completed
// pair is enough: the two disagree while Habitica is mid-cycle.
func IsDueOnDate(task *types.Task, referenceDate time.Time) bool {
	liveDue := ptr.IsTrue(task.IsDue) && !task.Completed

	loc := referenceDate.Location()
	day := StartOfDay(referenceDate, loc)

	entry, entryDay, ok := lastEntryOnOrBefore(task.History, day, loc)
	if !ok {
		return liveDue
	}

	historyDue := ptr.IsTrue(entry.IsDue) &&
		ptr.IsFalse(entry.Completed) &&
		entryDay.Equal(day)

	return historyDue || liveDue
}

// lastEntryOnOrBefore finds the entry with the latest calendar day not after
// day. Entries sharing a day resolve to the one listed last.
func lastEntryOnOrBefore(history []types.HistoryEntry, day time.Time, loc *time.Location) (types.HistoryEntry, time.Time, bool) {
	best := -1
	var bestDay time.Time

	for i, entry := range history {
		d := StartOfDay(entry.Date.Time, loc)
		if d.After(day) {
			continue
		}
		if best == -1 || !d.Before(bestDay) {
			best = i
			bestDay = d
		}
	}

	if best == -1 {
		return types.HistoryEntry{}, time.Time{}, false
	}
	return history[best], bestDay, true
}
