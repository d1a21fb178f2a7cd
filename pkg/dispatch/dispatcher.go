package dispatch

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/prefix-dev/sdk-core/pkg/api"
	"github.com/prefix-dev/sdk-core/pkg/worker"
)

// Worker is the contract the dispatcher needs from a registered worker.
// *worker.Worker satisfies it; tests substitute instrumented fakes.
type Worker interface {
	// TaskQueue returns the queue this worker polls.
	TaskQueue() string

	// SignalDrain tells the worker to stop accepting new tasks. It returns
	// once the signal is accepted and does not wait for in-flight work.
	// Must be idempotent.
	SignalDrain(ctx context.Context)

	// FinalizeShutdown runs the worker's terminal cleanup, waiting for
	// in-flight work to finish. The dispatcher calls it exactly once, after
	// SignalDrain and after every Handle for the worker has been released.
	FinalizeShutdown(ctx context.Context)
}

var _ Worker = (*worker.Worker)(nil)

// Dispatcher maps task queue names to registered workers.
//
// Lookups are wait-free: they read an immutable snapshot through an atomic
// pointer. Mutations clone the snapshot, apply one change, and install the
// clone with a compare-and-swap, retrying on contention. Registration is rare
// next to lookup traffic, so the per-mutation allocation is a good trade.
type Dispatcher struct {
	workers atomic.Pointer[map[string]*workerRef]
	logger  *slog.Logger
}

// New creates an empty Dispatcher logging through slog.Default().
func New() *Dispatcher {
	return NewWithLogger(nil)
}

// NewWithLogger creates an empty Dispatcher using the given logger.
// If logger is nil, slog.Default() is used.
func NewWithLogger(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{logger: logger}
	empty := make(map[string]*workerRef)
	d.workers.Store(&empty)
	return d
}

// Register constructs a worker from cfg and registers it under
// cfg.TaskQueue. stickyQueue may be empty. Returns
// *api.WorkerAlreadyRegisteredError if the queue already has a worker;
// the new worker is drained and finalized before returning in that case.
func (d *Dispatcher) Register(cfg api.WorkerConfig, stickyQueue string, gw api.Gateway) error {
	w := worker.New(cfg, stickyQueue, gw)
	if err := d.RegisterWorker(cfg.TaskQueue, w); err != nil {
		// The freshly built worker already started polling; tear it down so
		// a failed registration does not leak pollers.
		w.SignalDrain(context.Background())
		w.FinalizeShutdown(context.Background())
		return err
	}
	return nil
}

// RegisterWorker registers an already-constructed worker under taskQueue.
// Returns *api.WorkerAlreadyRegisteredError if the queue already has a
// worker; the existing worker is never replaced.
//
// Two racing registrations for the same brand-new queue name are resolved by
// the install loop: one wins, the other gets the conflict error. Callers are
// still expected to serialize registrations per queue at a higher level.
func (d *Dispatcher) RegisterWorker(taskQueue string, w Worker) error {
	ref := newWorkerRef(w)
	for {
		old := d.workers.Load()
		if _, ok := (*old)[taskQueue]; ok {
			return &api.WorkerAlreadyRegisteredError{TaskQueue: taskQueue}
		}
		next := maps.Clone(*old)
		next[taskQueue] = ref
		if d.workers.CompareAndSwap(old, &next) {
			return nil
		}
	}
}

// Lookup returns a handle to the worker registered under taskQueue, or nil
// if there is none. It never blocks. The caller must Release the handle when
// done with it.
func (d *Dispatcher) Lookup(taskQueue string) *Handle {
	ref, ok := (*d.workers.Load())[taskQueue]
	if !ok {
		return nil
	}
	if !ref.acquire() {
		// The entry was removed and finalized between our snapshot read and
		// the acquire; to every observer that matters it is already gone.
		return nil
	}
	return &Handle{ref: ref}
}

// ShutdownOne drains and finalizes the worker registered under taskQueue.
// It signals the worker to drain, removes the entry so no new lookups can
// find it, then blocks until every outstanding handle is released and the
// worker's terminal cleanup has run. A queue with no worker is a no-op.
func (d *Dispatcher) ShutdownOne(ctx context.Context, taskQueue string) {
	ref, ok := (*d.workers.Load())[taskQueue]
	if !ok {
		return
	}
	d.logger.InfoContext(ctx, "shutting down worker", slog.String("task_queue", taskQueue))
	ref.worker.SignalDrain(ctx)
	if removed := d.remove(taskQueue); removed != nil {
		removed.retire(ctx)
	}
}

// ShutdownAll drains every registered worker concurrently, then empties the
// snapshot in a single swap and retires all removed workers concurrently.
// It returns once every terminal cleanup has completed.
func (d *Dispatcher) ShutdownAll(ctx context.Context) {
	d.logger.InfoContext(ctx, "shutting down all workers")

	var wg sync.WaitGroup
	for _, ref := range *d.workers.Load() {
		wg.Add(1)
		go func(ref *workerRef) {
			defer wg.Done()
			ref.worker.SignalDrain(ctx)
		}(ref)
	}
	wg.Wait()

	var removed map[string]*workerRef
	for {
		old := d.workers.Load()
		empty := make(map[string]*workerRef)
		if d.workers.CompareAndSwap(old, &empty) {
			removed = *old
			break
		}
	}

	for _, ref := range removed {
		wg.Add(1)
		go func(ref *workerRef) {
			defer wg.Done()
			ref.retire(ctx)
		}(ref)
	}
	wg.Wait()
}

// remove deletes taskQueue from the snapshot and returns its ref, or nil if
// another goroutine removed it first.
func (d *Dispatcher) remove(taskQueue string) *workerRef {
	for {
		old := d.workers.Load()
		ref, ok := (*old)[taskQueue]
		if !ok {
			return nil
		}
		next := maps.Clone(*old)
		delete(next, taskQueue)
		if d.workers.CompareAndSwap(old, &next) {
			return ref
		}
	}
}
