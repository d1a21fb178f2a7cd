package api

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives callbacks for task execution and worker lifecycle events.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay task processing.
type Observer interface {
	// OnTaskStart is called after a task has been polled, before the handler runs.
	OnTaskStart(ctx context.Context, t *Task, identity string)

	// OnTaskCompleted is called after the handler returns, for both successes
	// and failures (err != nil).
	OnTaskCompleted(ctx context.Context, t *Task, identity string, err error, duration time.Duration)

	// OnWorkerDraining is called once when a worker is signaled to stop
	// accepting new tasks.
	OnWorkerDraining(ctx context.Context, taskQueue, identity string)

	// OnWorkerFinalized is called once when a worker's terminal cleanup has
	// completed and the worker will never process another task.
	OnWorkerFinalized(ctx context.Context, taskQueue, identity string)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnTaskStart(ctx context.Context, t *Task, identity string) {}
func (NoopObserver) OnTaskCompleted(ctx context.Context, t *Task, identity string, err error, d time.Duration) {
}
func (NoopObserver) OnWorkerDraining(ctx context.Context, taskQueue, identity string)  {}
func (NoopObserver) OnWorkerFinalized(ctx context.Context, taskQueue, identity string) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnTaskStart(ctx context.Context, t *Task, identity string) {
	for _, o := range c.observers {
		o.OnTaskStart(ctx, t, identity)
	}
}

func (c *CompositeObserver) OnTaskCompleted(ctx context.Context, t *Task, identity string, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnTaskCompleted(ctx, t, identity, err, d)
	}
}

func (c *CompositeObserver) OnWorkerDraining(ctx context.Context, taskQueue, identity string) {
	for _, o := range c.observers {
		o.OnWorkerDraining(ctx, taskQueue, identity)
	}
}

func (c *CompositeObserver) OnWorkerFinalized(ctx context.Context, taskQueue, identity string) {
	for _, o := range c.observers {
		o.OnWorkerFinalized(ctx, taskQueue, identity)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs task and worker lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnTaskStart(ctx context.Context, t *Task, identity string) {
	o.Logger.InfoContext(ctx, "task_start",
		slog.String("task_id", t.ID),
		slog.String("task_queue", t.TaskQueue),
		slog.String("type", string(t.Type)),
		slog.String("identity", identity),
	)
}

func (o *LoggingObserver) OnTaskCompleted(ctx context.Context, t *Task, identity string, err error, d time.Duration) {
	if err != nil {
		o.Logger.WarnContext(ctx, "task_failed",
			slog.String("task_id", t.ID),
			slog.String("task_queue", t.TaskQueue),
			slog.String("identity", identity),
			slog.Duration("duration", d),
			slog.String("error", err.Error()),
		)
		return
	}
	o.Logger.InfoContext(ctx, "task_completed",
		slog.String("task_id", t.ID),
		slog.String("task_queue", t.TaskQueue),
		slog.String("identity", identity),
		slog.Duration("duration", d),
	)
}

func (o *LoggingObserver) OnWorkerDraining(ctx context.Context, taskQueue, identity string) {
	o.Logger.InfoContext(ctx, "worker_draining",
		slog.String("task_queue", taskQueue),
		slog.String("identity", identity),
	)
}

func (o *LoggingObserver) OnWorkerFinalized(ctx context.Context, taskQueue, identity string) {
	o.Logger.InfoContext(ctx, "worker_finalized",
		slog.String("task_queue", taskQueue),
		slog.String("identity", identity),
	)
}
