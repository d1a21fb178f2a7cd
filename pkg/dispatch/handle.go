package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
)

// workerRef tracks shared ownership of a registered worker so that terminal
// cleanup can run exactly once, only after every outstanding Handle has been
// released.
//
// The count starts at 1 for the dispatcher's own entry in the snapshot and
// grows by 1 for every Handle minted by Lookup. Retirement gives up the
// dispatcher's reference and waits for the count to reach zero.
type workerRef struct {
	worker Worker
	refs   atomic.Int64

	// notify is a single-slot wakeup for the retiring goroutine. Whoever
	// drops the count to zero fires it; sends never block.
	notify chan struct{}
}

func newWorkerRef(w Worker) *workerRef {
	r := &workerRef{
		worker: w,
		notify: make(chan struct{}, 1),
	}
	r.refs.Store(1)
	return r
}

// acquire registers a new borrow. It fails once the count has reached zero,
// so a goroutine holding a stale snapshot can never revive a worker whose
// terminal cleanup is already running.
func (r *workerRef) acquire() bool {
	for {
		n := r.refs.Load()
		if n == 0 {
			return false
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops one borrow. Exactly one release observes the count hitting
// zero; it wakes the retiring goroutine.
func (r *workerRef) release() {
	if r.refs.Add(-1) == 0 {
		select {
		case r.notify <- struct{}{}:
		default:
		}
	}
}

// retire gives up the dispatcher's own reference, waits until every Handle
// issued before removal has been released, and then runs the worker's
// terminal cleanup. It must be called exactly once, by the goroutine that
// removed the entry from the snapshot, after the entry is no longer visible
// to Lookup.
//
// If ctx is cancelled while waiting, retire returns without finalizing; the
// worker is left drained but not cleaned up and the caller must arrange a
// retry to avoid leaking resources.
func (r *workerRef) retire(ctx context.Context) {
	r.release()
	for r.refs.Load() != 0 {
		select {
		case <-r.notify:
		case <-ctx.Done():
			return
		}
	}
	r.worker.FinalizeShutdown(ctx)
}

// Handle is a borrow-scoped reference to a registered worker, obtained from
// Dispatcher.Lookup. The worker is guaranteed not to be finalized while the
// handle is held. Callers must call Release when done; a held handle delays
// shutdown of its queue.
//
// The zero value is not usable. Handles must not be copied.
type Handle struct {
	ref  *workerRef
	once sync.Once
}

// Worker returns the underlying worker. It must not be used after Release.
func (h *Handle) Worker() Worker {
	return h.ref.worker
}

// TaskQueue returns the queue the worker was registered under.
func (h *Handle) TaskQueue() string {
	return h.ref.worker.TaskQueue()
}

// Release gives up this handle's share of ownership. Safe to call more than
// once; only the first call has an effect.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.ref.release()
	})
}
