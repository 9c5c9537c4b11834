package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jayphen/habisnooze/internal/habitica"
	"github.com/Jayphen/habisnooze/internal/logging"
	"github.com/Jayphen/habisnooze/internal/metrics"
	"github.com/Jayphen/habisnooze/internal/ptr"
	"github.com/Jayphen/habisnooze/internal/snooze"
	"github.com/Jayphen/habisnooze/internal/types"
)

const tagID = "snooze"

var now = time.Date(2025, 6, 10, 21, 0, 0, 0, time.UTC)

// fakeAPI records calls and plays back canned results.
type fakeAPI struct {
	mu sync.Mutex

	tasks    []types.Task
	fetchErr error
	// createErrs fails the n-th CreateTask call (0-based).
	createErrs map[int]error
	// createPanics panics on the n-th CreateTask call (0-based).
	createPanics map[int]string

	fetchTypes []string
	created    []types.Task
}

func (f *fakeAPI) FetchTasksByType(ctx context.Context, listType string) ([]types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchTypes = append(f.fetchTypes, listType)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.tasks, nil
}

func (f *fakeAPI) CreateTask(ctx context.Context, task types.Task) (*types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.created)
	f.created = append(f.created, task)
	if msg, ok := f.createPanics[n]; ok {
		panic(msg)
	}
	if err := f.createErrs[n]; err != nil {
		return nil, err
	}
	task.ID = fmt.Sprintf("todo-%d", n+1)
	return &task, nil
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) entries(t *testing.T) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(c.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func (c *logCapture) errors(t *testing.T) []map[string]interface{} {
	var out []map[string]interface{}
	for _, e := range c.entries(t) {
		if e["level"] == "error" {
			out = append(out, e)
		}
	}
	return out
}

func newService(api TaskAPI, policy snooze.Policy) (*TaskService, *logCapture) {
	capture := &logCapture{}
	svc := New(api, policy,
		WithClock(snooze.FixedClock(now)),
		WithLogger(logging.New(&capture.buf, logging.DebugLevel)),
	)
	return svc, capture
}

func snoozeDaily(id string, isDue, completed bool) types.Task {
	return types.Task{
		ID:        id,
		Type:      types.TaskTypeDaily,
		Text:      "Daily " + id,
		Tags:      []string{tagID},
		IsDue:     ptr.To(isDue),
		Completed: completed,
		History:   []types.HistoryEntry{},
	}
}

func TestHandleCron_ScenarioA_SnoozesDueDaily(t *testing.T) {
	api := &fakeAPI{tasks: []types.Task{snoozeDaily("d-1", true, false)}}
	svc, _ := newService(api, snooze.Policy{SnoozeTagID: tagID, ReminderOffset: snooze.DefaultReminderOffset})

	summary := svc.HandleCron(context.Background())

	assert.Equal(t, []string{types.ListDailys}, api.fetchTypes)
	require.Len(t, api.created, 1)

	todo := api.created[0]
	assert.Equal(t, types.TaskTypeTodo, todo.Type)
	assert.False(t, todo.Completed)
	assert.NotNil(t, todo.Tags)
	assert.Empty(t, todo.Tags)
	assert.Empty(t, todo.ID)
	assert.Nil(t, todo.IsDue)
	assert.Nil(t, todo.History)

	wantDue := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	require.NotNil(t, todo.Date)
	assert.True(t, todo.Date.Equal(wantDue), "due date %v", todo.Date)
	require.Len(t, todo.Reminders, 1)
	assert.True(t, todo.Reminders[0].Time.Equal(wantDue.Add(10*time.Hour)))

	assert.Equal(t, types.RunCompleted, summary.Status)
	assert.Equal(t, 1, summary.Fetched)
	assert.Equal(t, 1, summary.Eligible)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Snoozed, 1)
	assert.Equal(t, "d-1", summary.Snoozed[0].DailyID)
	assert.Equal(t, "todo-1", summary.Snoozed[0].TodoID)
	assert.NotEmpty(t, summary.RunID)
}

func TestHandleCron_ScenarioB_CompletedDailyIsLeftAlone(t *testing.T) {
	api := &fakeAPI{tasks: []types.Task{snoozeDaily("d-1", true, true)}}
	svc, _ := newService(api, snooze.Policy{SnoozeTagID: tagID})

	summary := svc.HandleCron(context.Background())

	assert.Empty(t, api.created)
	assert.Equal(t, types.RunCompleted, summary.Status)
	assert.Equal(t, 0, summary.Eligible)
}

func TestHandleCron_ScenarioC_FetchFailure(t *testing.T) {
	api := &fakeAPI{fetchErr: &habitica.APIError{
		Kind: habitica.KindTransport,
		Op:   "list tasks",
		Err:  errors.New("dial tcp: connection refused"),
	}}
	svc, logs := newService(api, snooze.Policy{SnoozeTagID: tagID})

	var summary types.RunSummary
	require.NotPanics(t, func() {
		summary = svc.HandleCron(context.Background())
	})

	assert.Empty(t, api.created)
	assert.Equal(t, types.RunFetchFailed, summary.Status)
	assert.Contains(t, summary.Error, "connection refused")

	errs := logs.errors(t)
	require.Len(t, errs, 1)
	assert.Equal(t, "failed to fetch dailies", errs[0]["message"])
	assert.Equal(t, "transport", errs[0]["kind"])
}

func TestHandleCron_ScenarioD_OneFailureDoesNotAbortBatch(t *testing.T) {
	api := &fakeAPI{
		tasks: []types.Task{
			snoozeDaily("d-1", true, false),
			snoozeDaily("d-2", true, false),
			snoozeDaily("d-3", true, false),
		},
		createErrs: map[int]error{
			1: &habitica.APIError{Kind: habitica.KindStatus, Op: "create task", StatusCode: 400, Message: "bad"},
		},
	}
	svc, logs := newService(api, snooze.Policy{SnoozeTagID: tagID})

	summary := svc.HandleCron(context.Background())

	require.Len(t, api.created, 3)
	assert.Equal(t, "Daily d-1", api.created[0].Text)
	assert.Equal(t, "Daily d-2", api.created[1].Text)
	assert.Equal(t, "Daily d-3", api.created[2].Text)

	assert.Equal(t, types.RunPartial, summary.Status)
	assert.Equal(t, 3, summary.Eligible)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "d-2", summary.Failures[0].DailyID)

	errs := logs.errors(t)
	require.Len(t, errs, 1)
	assert.Equal(t, "d-2", errs[0]["task_id"])
	assert.Equal(t, "bad", errs[0]["api_message"])
	assert.Equal(t, float64(400), errs[0]["status"])
}

func TestHandleCron_ScenarioD_PanicDoesNotAbortBatch(t *testing.T) {
	api := &fakeAPI{
		tasks: []types.Task{
			snoozeDaily("d-1", true, false),
			snoozeDaily("d-2", true, false),
			snoozeDaily("d-3", true, false),
		},
		createPanics: map[int]string{1: "decode: unexpected shape"},
	}
	svc, logs := newService(api, snooze.Policy{SnoozeTagID: tagID})

	summary := svc.HandleCron(context.Background())

	require.Len(t, api.created, 3)
	assert.Equal(t, "Daily d-3", api.created[2].Text)

	assert.Equal(t, types.RunPartial, summary.Status)
	assert.Equal(t, 3, summary.Eligible)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "d-2", summary.Failures[0].DailyID)
	assert.Contains(t, summary.Failures[0].Error, "unexpected shape")
	assert.Empty(t, summary.Error)

	errs := logs.errors(t)
	require.Len(t, errs, 1)
	assert.Equal(t, "d-2", errs[0]["task_id"])
	assert.Equal(t, "snoozing daily panicked", errs[0]["message"])
}

func TestHandleCron_NoTasks(t *testing.T) {
	api := &fakeAPI{tasks: []types.Task{}}
	svc, logs := newService(api, snooze.Policy{SnoozeTagID: tagID})

	summary := svc.HandleCron(context.Background())

	assert.Equal(t, types.RunNoTasks, summary.Status)
	assert.Empty(t, api.created)
	assert.Empty(t, logs.errors(t))

	var warned bool
	for _, e := range logs.entries(t) {
		if e["level"] == "warn" && e["message"] == "no tasks found" {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning for an empty task list")
}

func TestHandleCron_MixedBatch(t *testing.T) {
	untagged := snoozeDaily("d-2", true, false)
	untagged.Tags = []string{"other"}
	habit := snoozeDaily("h-1", true, false)
	habit.Type = types.TaskTypeHabit
	notDue := snoozeDaily("d-3", false, false)
	dueByHistory := snoozeDaily("d-4", false, false)
	dueByHistory.History = []types.HistoryEntry{{
		Date:      types.At(time.Date(2025, 6, 10, 4, 0, 0, 0, time.UTC)),
		IsDue:     ptr.To(true),
		Completed: ptr.To(false),
	}}

	api := &fakeAPI{tasks: []types.Task{snoozeDaily("d-1", true, false), untagged, habit, notDue, dueByHistory}}
	svc, _ := newService(api, snooze.Policy{SnoozeTagID: tagID})

	summary := svc.HandleCron(context.Background())

	require.Len(t, api.created, 2)
	assert.Equal(t, "Daily d-1", api.created[0].Text)
	assert.Equal(t, "Daily d-4", api.created[1].Text)
	assert.Equal(t, 5, summary.Fetched)
	assert.Equal(t, 2, summary.Created)
}

func TestHandleCron_CompareToYesterday(t *testing.T) {
	yesterdayDue := snoozeDaily("d-1", false, false)
	yesterdayDue.History = []types.HistoryEntry{{
		Date:      types.At(time.Date(2025, 6, 9, 4, 0, 0, 0, time.UTC)),
		IsDue:     ptr.To(true),
		Completed: ptr.To(false),
	}}

	t.Run("today", func(t *testing.T) {
		api := &fakeAPI{tasks: []types.Task{yesterdayDue}}
		svc, _ := newService(api, snooze.Policy{SnoozeTagID: tagID})
		svc.HandleCron(context.Background())
		assert.Empty(t, api.created)
	})

	t.Run("yesterday", func(t *testing.T) {
		api := &fakeAPI{tasks: []types.Task{yesterdayDue}}
		svc, _ := newService(api, snooze.Policy{SnoozeTagID: tagID, CompareDueTaskToYesterday: true})
		summary := svc.HandleCron(context.Background())

		require.Len(t, api.created, 1)
		wantDue := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
		assert.True(t, api.created[0].Date.Equal(wantDue), "due date %v", api.created[0].Date)
		assert.True(t, summary.DueDate.Equal(wantDue))
	})
}

func TestHandleCron_PolicyReadPerRun(t *testing.T) {
	api := &fakeAPI{tasks: []types.Task{snoozeDaily("d-1", true, false)}}

	clockNow := now
	svc := New(api, snooze.Policy{SnoozeTagID: tagID},
		WithClock(snooze.ClockFunc(func() time.Time { return clockNow })),
		WithLogger(logging.Nop()),
	)

	first := svc.HandleCron(context.Background())
	clockNow = now.AddDate(0, 0, 3)
	second := svc.HandleCron(context.Background())

	require.Len(t, api.created, 2)
	assert.True(t, second.DueDate.Equal(first.DueDate.AddDate(0, 0, 3)))
	assert.True(t, api.created[1].Date.Equal(api.created[0].Date.AddDate(0, 0, 3)))
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestHandleCron_UnknownErrorLoggedDistinctly(t *testing.T) {
	api := &fakeAPI{
		tasks:      []types.Task{snoozeDaily("d-1", true, false)},
		createErrs: map[int]error{0: &habitica.APIError{Kind: habitica.KindUnknown, Op: "create task"}},
	}
	svc, logs := newService(api, snooze.Policy{SnoozeTagID: tagID})

	svc.HandleCron(context.Background())

	errs := logs.errors(t)
	require.Len(t, errs, 1)
	assert.Equal(t, "failed to create snoozed todo: unknown error", errs[0]["message"])
}

func TestHandleCron_PlainErrorStillLogged(t *testing.T) {
	api := &fakeAPI{fetchErr: errors.New("boom")}
	svc, logs := newService(api, snooze.Policy{SnoozeTagID: tagID})

	summary := svc.HandleCron(context.Background())

	assert.Equal(t, types.RunFetchFailed, summary.Status)
	errs := logs.errors(t)
	require.Len(t, errs, 1)
	assert.Equal(t, "boom", errs[0]["error"])
}

func TestHandleCron_CancelledContextStopsBatch(t *testing.T) {
	api := &fakeAPI{tasks: []types.Task{snoozeDaily("d-1", true, false), snoozeDaily("d-2", true, false)}}
	svc, _ := newService(api, snooze.Policy{SnoozeTagID: tagID})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := svc.HandleCron(ctx)

	assert.Equal(t, types.RunCancelled, summary.Status)
	assert.Empty(t, api.created)
}

type panickingAPI struct{}

func (panickingAPI) FetchTasksByType(ctx context.Context, listType string) ([]types.Task, error) {
	panic("unexpected shape")
}

func (panickingAPI) CreateTask(ctx context.Context, task types.Task) (*types.Task, error) {
	return nil, nil
}

func TestHandleCron_RecoversPanics(t *testing.T) {
	svc, logs := newService(panickingAPI{}, snooze.Policy{SnoozeTagID: tagID})

	var summary types.RunSummary
	require.NotPanics(t, func() {
		summary = svc.HandleCron(context.Background())
	})

	assert.Equal(t, types.RunPanicked, summary.Status)
	assert.Equal(t, "unexpected shape", summary.Error)
	assert.Len(t, logs.errors(t), 1)
	assert.False(t, summary.FinishedAt.IsZero())
}

func TestHandleCron_RecordsMetrics(t *testing.T) {
	api := &fakeAPI{
		tasks:      []types.Task{snoozeDaily("d-1", true, false), snoozeDaily("d-2", true, false)},
		createErrs: map[int]error{0: errors.New("nope")},
	}
	m := metrics.New()
	svc := New(api, snooze.Policy{SnoozeTagID: tagID},
		WithClock(snooze.FixedClock(now)),
		WithLogger(logging.Nop()),
		WithMetrics(m),
	)

	svc.HandleCron(context.Background())

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[mf.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), values["habisnooze_tasks_snoozed_total"])
	assert.Equal(t, float64(1), values["habisnooze_snooze_failures_total"])
	assert.Equal(t, float64(1), values["habisnooze_runs_total"])
}

func TestHandleCron_DeterministicIDs(t *testing.T) {
	daily := snoozeDaily("d-1", true, false)
	daily.Checklist = []types.CheckItem{{ID: "c-1", Text: "one"}}

	api := &fakeAPI{tasks: []types.Task{daily}}
	n := 0
	svc := New(api, snooze.Policy{SnoozeTagID: tagID},
		WithClock(snooze.FixedClock(now)),
		WithLogger(logging.Nop()),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)

	svc.HandleCron(context.Background())

	require.Len(t, api.created, 1)
	assert.Equal(t, "id-1", api.created[0].Checklist[0].ID)
	assert.Equal(t, "id-2", api.created[0].Reminders[0].ID)
}

func TestHandleTaskActivity_NoSideEffects(t *testing.T) {
	api := &fakeAPI{tasks: []types.Task{snoozeDaily("d-1", true, false)}}
	svc, logs := newService(api, snooze.Policy{SnoozeTagID: tagID})

	task := snoozeDaily("d-1", true, false)
	events := []types.TaskActivityEvent{
		{Type: "scored", Direction: types.DirectionDown, Task: &task, WebhookType: "taskActivity"},
		{Type: "updated"},
		{},
	}

	for _, ev := range events {
		require.NoError(t, svc.HandleTaskActivity(context.Background(), ev))
	}

	assert.Empty(t, api.fetchTypes)
	assert.Empty(t, api.created)
	assert.Empty(t, logs.errors(t))
}

func TestPreview(t *testing.T) {
	notDue := snoozeDaily("d-2", false, false)
	api := &fakeAPI{tasks: []types.Task{snoozeDaily("d-1", true, false), notDue}}
	svc, _ := newService(api, snooze.Policy{SnoozeTagID: tagID})

	p, err := svc.Preview(context.Background())
	require.NoError(t, err)

	assert.Empty(t, api.created)
	require.Len(t, p.Evaluations, 2)
	assert.Equal(t, 1, p.Eligible())
	assert.True(t, p.Evaluations[0].Decision.Eligible)
	require.NotNil(t, p.Evaluations[0].Todo)
	assert.Equal(t, types.TaskTypeTodo, p.Evaluations[0].Todo.Type)
	assert.Equal(t, snooze.ReasonNotDue, p.Evaluations[1].Decision.Reason)
	assert.Nil(t, p.Evaluations[1].Todo)
}

func TestPreview_FetchError(t *testing.T) {
	api := &fakeAPI{fetchErr: errors.New("down")}
	svc, _ := newService(api, snooze.Policy{SnoozeTagID: tagID})

	_, err := svc.Preview(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}
