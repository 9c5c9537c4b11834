package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Jayphen/habisnooze/internal/snooze"
	"github.com/Jayphen/habisnooze/internal/types"
)

// Evaluation is the decision for one daily, with the todo a run would create.
type Evaluation struct {
	Task     types.Task      `json:"task"`
	Decision snooze.Decision `json:"decision"`
	Todo     *types.Task     `json:"todo,omitempty"`
}

// Preview is a dry run: what HandleCron would do right now.
type Preview struct {
	ReferenceDate time.Time    `json:"referenceDate"`
	DueDate       time.Time    `json:"dueDate"`
	Evaluations   []Evaluation `json:"evaluations"`
}

// Eligible counts the dailies a run would snooze.
func (p *Preview) Eligible() int {
	n := 0
	for _, e := range p.Evaluations {
		if e.Decision.Eligible {
			n++
		}
	}
	return n
}

// Preview evaluates the user's dailies without creating anything.
func (s *TaskService) Preview(ctx context.Context) (*Preview, error) {
	now := s.clock.Now()
	p := &Preview{
		ReferenceDate: s.policy.ReferenceDate(now),
		DueDate:       s.policy.FollowingDueDate(now),
	}

	dailies, err := s.api.FetchTasksByType(ctx, types.ListDailys)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dailies: %w", err)
	}

	opts := s.policy.TodoOptions()
	opts.NewID = s.newID

	p.Evaluations = make([]Evaluation, 0, len(dailies))
	for i := range dailies {
		daily := &dailies[i]
		ev := Evaluation{
			Task:     *daily,
			Decision: snooze.Evaluate(daily, p.ReferenceDate, s.policy.SnoozeTagID),
		}
		if ev.Decision.Eligible {
			todo := snooze.BuildSnoozedTodo(daily, p.DueDate, opts)
			ev.Todo = &todo
		}
		p.Evaluations = append(p.Evaluations, ev)
	}

	return p, nil
}
