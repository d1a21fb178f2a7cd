package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/prefix-dev/sdk-core/pkg/api"
)

// pollErrBackoff paces the poll loop after a gateway error so a broken
// backend does not turn pollers into busy loops.
const pollErrBackoff = 100 * time.Millisecond

// Worker is a long-lived task processor bound to one task queue.
//
// New starts the poll loops immediately. A worker is stopped in two phases:
// SignalDrain stops task intake without waiting for in-flight work, and
// FinalizeShutdown waits for in-flight work and runs terminal cleanup.
// The dispatch layer guarantees FinalizeShutdown runs exactly once, after
// every lookup-derived handle to the worker has been released.
type Worker struct {
	cfg     api.WorkerConfig
	sticky  string
	gateway api.Gateway
	obs     api.Observer

	// taskCtx is the base context handlers run under. It is deliberately not
	// the poll context: draining must stop intake, not abort running tasks.
	taskCtx context.Context

	pollCtx    context.Context
	pollCancel context.CancelFunc
	wg         sync.WaitGroup

	draining atomic.Bool
}

// New constructs a worker for cfg and starts its pollers: MaxConcurrentTasks
// loops on cfg.TaskQueue, plus one on stickyQueue when it is non-empty.
// Zero-value config fields are defaulted (identity: random UUID,
// concurrency: 4, observer: NoopObserver).
func New(cfg api.WorkerConfig, stickyQueue string, gw api.Gateway) *Worker {
	if cfg.Identity == "" {
		cfg.Identity = uuid.NewString()
	}
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = 4
	}
	if cfg.Observer == nil {
		cfg.Observer = api.NoopObserver{}
	}
	if cfg.Handler == nil {
		cfg.Handler = func(ctx context.Context, t *api.Task) (any, error) {
			return nil, errors.New("worker: no task handler configured")
		}
	}

	pollCtx, pollCancel := context.WithCancel(context.Background())
	w := &Worker{
		cfg:        cfg,
		sticky:     stickyQueue,
		gateway:    gw,
		obs:        cfg.Observer,
		taskCtx:    context.Background(),
		pollCtx:    pollCtx,
		pollCancel: pollCancel,
	}

	for i := 0; i < cfg.MaxConcurrentTasks; i++ {
		w.wg.Add(1)
		go w.pollLoop(cfg.TaskQueue)
	}
	if stickyQueue != "" {
		w.wg.Add(1)
		go w.pollLoop(stickyQueue)
	}
	return w
}

// TaskQueue returns the primary queue this worker polls.
func (w *Worker) TaskQueue() string { return w.cfg.TaskQueue }

// StickyQueue returns the sticky queue, or "" if none was configured.
func (w *Worker) StickyQueue() string { return w.sticky }

// Identity returns the worker's identity string.
func (w *Worker) Identity() string { return w.cfg.Identity }

// SignalDrain stops task intake. It returns as soon as the signal is
// accepted; in-flight tasks keep running until they finish on their own.
// Calling it again is a no-op.
func (w *Worker) SignalDrain(ctx context.Context) {
	if !w.draining.CompareAndSwap(false, true) {
		return
	}
	w.pollCancel()
	w.obs.OnWorkerDraining(ctx, w.cfg.TaskQueue, w.cfg.Identity)
}

// FinalizeShutdown waits for the poll loops and any in-flight tasks to
// finish, then releases the worker's resources. Must be called at most once,
// after SignalDrain; the dispatch layer enforces this for registered workers.
//
// If ctx is cancelled while waiting, FinalizeShutdown returns early and the
// cleanup is considered not to have happened.
func (w *Worker) FinalizeShutdown(ctx context.Context) {
	w.SignalDrain(ctx)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return
	}
	w.obs.OnWorkerFinalized(ctx, w.cfg.TaskQueue, w.cfg.Identity)
}

func (w *Worker) pollLoop(taskQueue string) {
	defer w.wg.Done()

	for {
		t, err := w.gateway.PollTask(w.pollCtx, taskQueue)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			// A poll error is not fatal; back off and retry so one bad poll
			// doesn't kill the loop.
			slog.Warn("worker: poll failed",
				slog.String("task_queue", taskQueue),
				slog.String("identity", w.cfg.Identity),
				slog.String("error", err.Error()),
			)
			select {
			case <-w.pollCtx.Done():
				return
			case <-time.After(pollErrBackoff):
			}
			continue
		}
		if t == nil {
			continue
		}
		w.runTask(t)
	}
}

func (w *Worker) runTask(t *api.Task) {
	ctx := w.taskCtx
	w.obs.OnTaskStart(ctx, t, w.cfg.Identity)

	start := time.Now()
	out, err := w.cfg.Handler(ctx, t)
	w.obs.OnTaskCompleted(ctx, t, w.cfg.Identity, err, time.Since(start))

	res := api.TaskResult{
		TaskID:    t.ID,
		TaskQueue: t.TaskQueue,
		Identity:  w.cfg.Identity,
		Output:    out,
		Err:       err,
	}
	if cerr := w.gateway.CompleteTask(ctx, res); cerr != nil {
		slog.Warn("worker: completing task failed",
			slog.String("task_id", t.ID),
			slog.String("task_queue", t.TaskQueue),
			slog.String("error", cerr.Error()),
		)
	}
}
