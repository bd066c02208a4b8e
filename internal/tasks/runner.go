package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/locks"
	"github.com/entrelaunch/platform/internal/models"
	"github.com/entrelaunch/platform/pkg/logger"
	"github.com/entrelaunch/platform/pkg/metrics"
)

const defaultSchedule = "@hourly"

// EnabledFunc reports whether a task is enabled by configuration.
type EnabledFunc func(name string) bool

// Runner schedules registered tasks with cron, serialises them across
// processes through the lock service, and records every invocation in a
// TaskExecutionLog row.
type Runner struct {
	db      *gorm.DB
	locker  locks.Service
	status  *StatusService
	enabled EnabledFunc
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger

	entries []runnerEntry
}

type runnerEntry struct {
	task     Task
	schedule string
}

// Option customises the Runner.
type Option func(*Runner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Runner) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithClock overrides the clock used for execution log timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner constructs a task runner. A nil enabled func treats every task
// as enabled.
func NewRunner(db *gorm.DB, locker locks.Service, status *StatusService, enabled EnabledFunc, opts ...Option) (*Runner, error) {
	if db == nil {
		return nil, errors.New("tasks: db is required")
	}
	if locker == nil {
		return nil, errors.New("tasks: lock service is required")
	}
	if status == nil {
		status = NewStatusService()
	}
	if enabled == nil {
		enabled = func(string) bool { return true }
	}

	r := &Runner{
		db:      db,
		locker:  locker,
		status:  status,
		enabled: enabled,
		now:     time.Now,
		log:     logger.WithModule("tasks"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.cron == nil {
		r.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return r, nil
}

// Register queues a task for scheduling. Disabled tasks are recorded in the
// status map but never scheduled.
func (r *Runner) Register(task Task, schedule string) {
	if task == nil {
		return
	}
	if schedule == "" {
		schedule = defaultSchedule
	}

	r.status.SetInitialState(task.Name(), false)
	r.entries = append(r.entries, runnerEntry{task: task, schedule: schedule})
}

// Names lists the registered task names in registration order.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		names = append(names, entry.task.Name())
	}
	return names
}

// RunByName executes the named task immediately, outside its schedule.
func (r *Runner) RunByName(ctx context.Context, name string) (bool, error) {
	for _, entry := range r.entries {
		if entry.task.Name() == name {
			return r.Run(ctx, entry.task)
		}
	}
	return false, fmt.Errorf("%w %q", ErrUnknownTask, name)
}

// Start registers cron jobs for enabled tasks and launches the scheduler.
func (r *Runner) Start() error {
	for _, entry := range r.entries {
		task := entry.task
		if !r.enabled(task.Name()) {
			r.log.Info("task disabled", zap.String("task", task.Name()))
			continue
		}

		if _, err := r.cron.AddFunc(entry.schedule, func() {
			if _, err := r.Run(context.Background(), task); err != nil && !errors.Is(err, ErrTaskDisabled) {
				r.log.Warn("task run failed", zap.String("task", task.Name()), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("tasks: schedule %s: %w", task.Name(), err)
		}
	}

	r.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running jobs to complete.
func (r *Runner) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunOnce executes all enabled registered tasks sequentially. Used in tests
// and during graceful shutdown.
func (r *Runner) RunOnce(ctx context.Context) error {
	var errs error
	for _, entry := range r.entries {
		if _, err := r.Run(ctx, entry.task); err != nil && !errors.Is(err, ErrTaskDisabled) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Run executes one task under the cross-process lock. It returns false
// without error when the lock is held elsewhere (another instance is
// already running the task) and ErrTaskDisabled when configuration turned
// the task off.
func (r *Runner) Run(ctx context.Context, task Task) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	name := task.Name()

	if !r.enabled(name) {
		return false, ErrTaskDisabled
	}

	holder, err := r.locker.TryLock(ctx, "tasks:"+name)
	if err != nil {
		return false, fmt.Errorf("tasks: acquire lock for %s: %w", name, err)
	}
	if holder == nil {
		r.log.Debug("task lock held elsewhere", zap.String("task", name))
		return false, nil
	}
	defer func() { _ = holder.Close() }()

	execLog := &models.TaskExecutionLog{
		TaskName:  name,
		StartedAt: r.now(),
	}
	if err := r.db.WithContext(ctx).Create(execLog).Error; err != nil {
		return false, fmt.Errorf("tasks: create execution log for %s: %w", name, err)
	}

	r.status.SetRunning(name, true)
	ok, runErr := r.execute(ctx, task, execLog)
	r.status.SetRunning(name, false)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	execLog.Finish(r.now(), ok, errMsg)
	if err := r.db.WithContext(ctx).Save(execLog).Error; err != nil {
		r.log.Warn("task log update failed", zap.String("task", name), zap.Error(err))
	}

	result := "success"
	if !ok {
		result = "failure"
	}
	metrics.TaskRuns.WithLabelValues(name, result).Inc()

	if runErr != nil {
		r.log.Warn("task failed", zap.String("task", name), zap.Error(runErr))
	}
	return ok, nil
}

// execute isolates the task body so a panic is converted into a failed run
// instead of taking down the scheduler.
func (r *Runner) execute(ctx context.Context, task Task, execLog *models.TaskExecutionLog) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			err = fmt.Errorf("tasks: panic in %s: %v", task.Name(), rec)
		}
	}()
	return task.Execute(ctx, execLog)
}
