// Package scheduler is the timer trigger: it runs the snooze workflow on an
// interval, one run at a time.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Jayphen/habisnooze/internal/logging"
	"github.com/Jayphen/habisnooze/internal/types"
)

const (
	DefaultInterval   = time.Hour
	DefaultRunTimeout = 5 * time.Minute

	// bookkeepingTimeout bounds lock release and summary writes, which run
	// after the run context may already be done.
	bookkeepingTimeout = 5 * time.Second
)

// CronHandler performs one run. *service.TaskService implements it.
type CronHandler interface {
	HandleCron(ctx context.Context) types.RunSummary
}

// RunLocker keeps replicas from running at the same time.
type RunLocker interface {
	AcquireRunLock(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	ReleaseRunLock(ctx context.Context, owner string) error
}

// SummaryStore records finished runs.
type SummaryStore interface {
	SetRunSummary(ctx context.Context, s *types.RunSummary) error
}

// Runner triggers HandleCron on a ticker.
type Runner struct {
	handler    CronHandler
	interval   time.Duration
	timeout    time.Duration
	runOnStart bool
	locker     RunLocker
	store      SummaryStore
	owner      string
	onFinish   func(types.RunSummary)
	log        *logging.Logger
	now        func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterval sets the time between runs.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRunTimeout bounds each run.
func WithRunTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRunOnStart runs once as soon as Start is called.
func WithRunOnStart(enabled bool) Option {
	return func(r *Runner) {
		r.runOnStart = enabled
	}
}

// WithLocker takes l's run lock around every run.
func WithLocker(l RunLocker) Option {
	return func(r *Runner) {
		r.locker = l
	}
}

// WithStore records every run summary in s.
func WithStore(s SummaryStore) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithOwner sets the lock owner name. Defaults to hostname plus a random suffix.
func WithOwner(owner string) Option {
	return func(r *Runner) {
		r.owner = owner
	}
}

// WithOnFinish calls fn with every summary the handler produced. Skipped
// runs are not reported.
func WithOnFinish(fn func(types.RunSummary)) Option {
	return func(r *Runner) {
		r.onFinish = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// New creates a Runner for h.
func New(h CronHandler, opts ...Option) *Runner {
	r := &Runner{
		handler:  h,
		interval: DefaultInterval,
		timeout:  DefaultRunTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.Get()
	}
	if r.owner == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "habisnooze"
		}
		r.owner = host + "-" + uuid.NewString()[:8]
	}
	return r
}

// Owner is the name this runner takes the run lock under.
func (r *Runner) Owner() string {
	return r.owner
}

// Start runs until ctx is done, then waits for an in-flight run to finish.
func (r *Runner) Start(ctx context.Context) error {
	log := r.log.WithFields(map[string]interface{}{
		"interval":     r.interval.String(),
		"run_timeout":  r.timeout.String(),
		"run_on_start": r.runOnStart,
		"owner":        r.owner,
	})
	log.Info("scheduler started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately, then on interval
	if r.runOnStart {
		r.trigger(ctx)
	}

	for {
		select {
		case <-ticker.C:
			r.trigger(ctx)
		case <-ctx.Done():
			log.Info("scheduler stopping")
			r.wg.Wait()
			return nil
		}
	}
}

func (r *Runner) trigger(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.RunOnce(ctx)
	}()
}

// RunOnce performs a single guarded run. A call made while another run is
// active, or while another replica holds the lock, returns a skipped
// summary without calling the handler.
func (r *Runner) RunOnce(ctx context.Context) types.RunSummary {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Warn("previous run still in progress, skipping")
		return r.skipped("previous run still in progress")
	}
	defer r.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.locker != nil {
		ok, err := r.locker.AcquireRunLock(ctx, r.owner, r.timeout)
		switch {
		case err != nil:
			r.log.WithError(err).Warn("failed to take run lock, running without it")
		case !ok:
			r.log.Info("run lock held by another replica, skipping")
			return r.skipped("run lock held by another replica")
		default:
			defer r.releaseLock()
		}
	}

	summary := r.handle(ctx)
	r.record(&summary)
	return summary
}

// handle calls the handler, turning a panic into a panicked summary.
func (r *Runner) handle(ctx context.Context) (summary types.RunSummary) {
	started := r.now()
	defer func() {
		if rec := recover(); rec != nil {
			summary = types.RunSummary{
				RunID:      uuid.NewString(),
				Status:     types.RunPanicked,
				StartedAt:  started,
				FinishedAt: r.now(),
				Error:      fmt.Sprint(rec),
			}
			r.log.WithField("panic", summary.Error).Error("run panicked")
		}
	}()
	return r.handler.HandleCron(ctx)
}

func (r *Runner) releaseLock() {
	ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()
	if err := r.locker.ReleaseRunLock(ctx, r.owner); err != nil {
		r.log.WithError(err).Warn("failed to release run lock")
	}
}

func (r *Runner) record(s *types.RunSummary) {
	log := r.log.WithRunID(s.RunID).WithFields(map[string]interface{}{
		"status":   string(s.Status),
		"duration": s.Duration().String(),
	})
	log.Info("run finished")

	if r.onFinish != nil {
		r.onFinish(*s)
	}

	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()
	if err := r.store.SetRunSummary(ctx, s); err != nil {
		log.WithError(err).Warn("failed to store run summary")
	}
}

func (r *Runner) skipped(reason string) types.RunSummary {
	now := r.now()
	return types.RunSummary{
		Status:     types.RunSkipped,
		StartedAt:  now,
		FinishedAt: now,
		Error:      reason,
	}
}
