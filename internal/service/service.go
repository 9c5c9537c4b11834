// Package service runs the snooze workflow: it lists the user's dailies,
// picks the snoozeable ones and creates a todo for each.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Jayphen/habisnooze/internal/habitica"
	"github.com/Jayphen/habisnooze/internal/logging"
	"github.com/Jayphen/habisnooze/internal/metrics"
	"github.com/Jayphen/habisnooze/internal/snooze"
	"github.com/Jayphen/habisnooze/internal/types"
)

// TaskAPI is the part of the Habitica API the workflow needs.
// *habitica.Client implements it.
type TaskAPI interface {
	FetchTasksByType(ctx context.Context, listType string) ([]types.Task, error)
	CreateTask(ctx context.Context, task types.Task) (*types.Task, error)
}

// TaskService handles cron ticks and task activity events.
type TaskService struct {
	api     TaskAPI
	policy  snooze.Policy
	clock   snooze.Clock
	log     *logging.Logger
	metrics *metrics.Metrics
	newID   snooze.IDGenerator
	runID   func() string
}

// Option configures a TaskService.
type Option func(*TaskService)

// WithClock sets the time source. Defaults to the system clock.
func WithClock(c snooze.Clock) Option {
	return func(s *TaskService) {
		s.clock = c
	}
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *TaskService) {
		s.log = l
	}
}

// WithMetrics records runs and snoozes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *TaskService) {
		s.metrics = m
	}
}

// WithIDGenerator sets the generator for checklist and reminder ids.
func WithIDGenerator(gen snooze.IDGenerator) Option {
	return func(s *TaskService) {
		s.newID = gen
	}
}

// New creates a TaskService.
func New(api TaskAPI, policy snooze.Policy, opts ...Option) *TaskService {
	s := &TaskService{
		api:    api,
		policy: policy,
		clock:  snooze.SystemClock,
		runID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Get()
	}
	return s
}

// HandleTaskActivity accepts a webhook event. A single update does not say
// enough about a daily's day to decide on a snooze, so the event is only
// logged; the cron run does the work.
func (s *TaskService) HandleTaskActivity(ctx context.Context, event types.TaskActivityEvent) error {
	log := s.log.WithFields(map[string]interface{}{
		"event_type":   event.Type,
		"direction":    event.Direction,
		"webhook_type": event.WebhookType,
	})
	if event.Task != nil {
		log = log.WithTask(event.Task.ID, event.Task.Text)
	}
	log.Debug("task activity received, snoozing is left to the cron run")
	return nil
}

// HandleCron performs one run over the user's dailies. It never returns an
// error: failures are logged and reflected in the summary.
func (s *TaskService) HandleCron(ctx context.Context) (summary types.RunSummary) {
	now := s.clock.Now()
	summary = types.RunSummary{
		RunID:         s.runID(),
		StartedAt:     now,
		ReferenceDate: s.policy.ReferenceDate(now),
		DueDate:       s.policy.FollowingDueDate(now),
	}
	log := s.log.WithRunID(summary.RunID)

	defer func() {
		if r := recover(); r != nil {
			summary.Status = types.RunPanicked
			summary.Error = fmt.Sprint(r)
			log.WithField("panic", summary.Error).Error("snooze run panicked")
		}
		summary.FinishedAt = s.clock.Now()
		s.metrics.ObserveRun(string(summary.Status))
	}()

	log.WithFields(map[string]interface{}{
		"reference_date": summary.ReferenceDate.Format(time.DateOnly),
		"due_date":       summary.DueDate.Format(time.DateOnly),
	}).Info("snooze run started")

	dailies, err := s.api.FetchTasksByType(ctx, types.ListDailys)
	if err != nil {
		logAPIError(log, err, "failed to fetch dailies")
		summary.Status = types.RunFetchFailed
		summary.Error = err.Error()
		return summary
	}

	summary.Fetched = len(dailies)
	if len(dailies) == 0 {
		log.Warn("no tasks found")
		summary.Status = types.RunNoTasks
		return summary
	}

	opts := s.policy.TodoOptions()
	opts.NewID = s.newID

	for i := range dailies {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Warnf("run stopped after %d of %d tasks", i, len(dailies))
			summary.Status = types.RunCancelled
			summary.Error = err.Error()
			return summary
		}
		s.handleDaily(ctx, log, &dailies[i], summary.ReferenceDate, summary.DueDate, opts, &summary)
	}

	summary.Status = types.RunCompleted
	if summary.Failed > 0 {
		summary.Status = types.RunPartial
	}

	log.WithFields(map[string]interface{}{
		"fetched":  summary.Fetched,
		"eligible": summary.Eligible,
		"created":  summary.Created,
		"failed":   summary.Failed,
	}).Info("snooze run finished")

	return summary
}

func (s *TaskService) handleDaily(ctx context.Context, log *logging.Logger, daily *types.Task, refDate, dueDate time.Time, opts snooze.TodoOptions, summary *types.RunSummary) {
	log = log.WithTask(daily.ID, daily.Text)

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			log.WithField("panic", msg).Error("snoozing daily panicked")
			summary.Failed++
			summary.Failures = append(summary.Failures, types.SnoozedTask{
				DailyID: daily.ID,
				Text:    daily.Text,
				Error:   "panic: " + msg,
			})
			s.metrics.ObserveSnooze(false)
		}
	}()

	decision := snooze.Evaluate(daily, refDate, s.policy.SnoozeTagID)
	if !decision.Eligible {
		log.WithField("reason", string(decision.Reason)).Debug("daily skipped")
		return
	}
	summary.Eligible++

	todo := snooze.BuildSnoozedTodo(daily, dueDate, opts)
	log.WithField("payload", todo).Info("snoozed task detected, creating todo")

	created, err := s.api.CreateTask(ctx, todo)
	if err != nil {
		logAPIError(log, err, "failed to create snoozed todo")
		summary.Failed++
		summary.Failures = append(summary.Failures, types.SnoozedTask{
			DailyID: daily.ID,
			Text:    daily.Text,
			Error:   err.Error(),
		})
		s.metrics.ObserveSnooze(false)
		return
	}

	summary.Created++
	summary.Snoozed = append(summary.Snoozed, types.SnoozedTask{
		DailyID: daily.ID,
		Text:    daily.Text,
		TodoID:  created.ID,
	})
	s.metrics.ObserveSnooze(true)
	log.WithField("todo_id", created.ID).Info("snoozed todo created")
}

// logAPIError writes one error line for err, keeping the unknown case
// apart from structured Habitica errors.
func logAPIError(log *logging.Logger, err error, msg string) {
	var apiErr *habitica.APIError
	if !errors.As(err, &apiErr) {
		log.WithError(err).Error(msg)
		return
	}

	fields := map[string]interface{}{
		"kind": string(apiErr.Kind),
	}
	if apiErr.StatusCode != 0 {
		fields["status"] = apiErr.StatusCode
	}
	if apiErr.Message != "" {
		fields["api_message"] = apiErr.Message
	}

	if errors.Is(err, habitica.ErrUnknown) {
		log.WithFields(fields).WithError(err).Error(msg + ": unknown error")
		return
	}
	log.WithFields(fields).WithError(err).Error(msg)
}
