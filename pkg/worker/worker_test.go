package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/prefix-dev/sdk-core/internal/gateway"
	"github.com/prefix-dev/sdk-core/pkg/api"
)

// lifecycleObserver records worker lifecycle events and their order.
type lifecycleObserver struct {
	api.NoopObserver

	mu    sync.Mutex
	order []string

	drains    atomic.Int32
	finalizes atomic.Int32
}

func (o *lifecycleObserver) OnWorkerDraining(ctx context.Context, taskQueue, identity string) {
	o.drains.Add(1)
	o.mu.Lock()
	o.order = append(o.order, "drain")
	o.mu.Unlock()
}

func (o *lifecycleObserver) OnWorkerFinalized(ctx context.Context, taskQueue, identity string) {
	o.finalizes.Add(1)
	o.mu.Lock()
	o.order = append(o.order, "finalize")
	o.mu.Unlock()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWorker_ProcessesTasks(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewInMemory()

	w := New(api.WorkerConfig{
		TaskQueue: "math",
		Identity:  "worker-1",
		Handler: func(ctx context.Context, task *api.Task) (any, error) {
			return task.Payload.(int) * 2, nil
		},
	}, "", gw)
	defer w.FinalizeShutdown(ctx)

	ids := []string{"t1", "t2", "t3"}
	for i, id := range ids {
		err := gw.EnqueueTask(ctx, api.Task{
			ID:        id,
			Type:      api.TaskTypeActivity,
			TaskQueue: "math",
			Payload:   i + 1,
		})
		if err != nil {
			t.Fatalf("EnqueueTask(%s) failed: %v", id, err)
		}
	}

	for i, id := range ids {
		waitFor(t, "result of "+id, func() bool {
			_, ok := gw.Result(id)
			return ok
		})
		res, _ := gw.Result(id)
		if res.Err != nil {
			t.Fatalf("task %s failed: %v", id, res.Err)
		}
		if res.Output != (i+1)*2 {
			t.Fatalf("task %s output = %v, want %d", id, res.Output, (i+1)*2)
		}
		if res.Identity != "worker-1" {
			t.Fatalf("task %s identity = %q, want worker-1", id, res.Identity)
		}
	}
}

func TestWorker_DefaultsApplied(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewInMemory()

	// No identity, no handler: identity is a UUID and tasks fail cleanly.
	w := New(api.WorkerConfig{TaskQueue: "bare"}, "", gw)
	defer w.FinalizeShutdown(ctx)

	if _, err := uuid.Parse(w.Identity()); err != nil {
		t.Fatalf("default identity %q is not a UUID: %v", w.Identity(), err)
	}
	if w.TaskQueue() != "bare" {
		t.Fatalf("TaskQueue() = %q, want bare", w.TaskQueue())
	}
	if w.StickyQueue() != "" {
		t.Fatalf("StickyQueue() = %q, want empty", w.StickyQueue())
	}

	if err := gw.EnqueueTask(ctx, api.Task{ID: "nohandler", TaskQueue: "bare"}); err != nil {
		t.Fatalf("EnqueueTask failed: %v", err)
	}
	waitFor(t, "nohandler result", func() bool {
		_, ok := gw.Result("nohandler")
		return ok
	})
	res, _ := gw.Result("nohandler")
	if res.Err == nil {
		t.Fatal("expected error result from handler-less worker")
	}
}

func TestWorker_SignalDrainStopsIntake(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewInMemory()
	obs := &lifecycleObserver{}

	var processed atomic.Int32
	w := New(api.WorkerConfig{
		TaskQueue: "drainme",
		Handler: func(ctx context.Context, task *api.Task) (any, error) {
			processed.Add(1)
			return nil, nil
		},
		Observer: obs,
	}, "", gw)

	w.SignalDrain(ctx)
	w.SignalDrain(ctx) // idempotent

	// Once finalize returns, the poll loops are gone; tasks enqueued from
	// here on must sit in the queue untouched.
	w.FinalizeShutdown(ctx)

	if err := gw.EnqueueTask(ctx, api.Task{ID: "late", TaskQueue: "drainme"}); err != nil {
		t.Fatalf("EnqueueTask failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if got := processed.Load(); got != 0 {
		t.Fatalf("drained worker processed %d tasks, want 0", got)
	}
	if got := gw.QueueLen("drainme"); got != 1 {
		t.Fatalf("queue backlog = %d, want 1 (task left unconsumed)", got)
	}
	if got := obs.drains.Load(); got != 1 {
		t.Fatalf("observer saw %d drain events, want 1", got)
	}
	if got := obs.finalizes.Load(); got != 1 {
		t.Fatalf("observer saw %d finalize events, want 1", got)
	}
}

func TestWorker_FinalizeWaitsForInflightTask(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewInMemory()
	obs := &lifecycleObserver{}

	started := make(chan struct{})
	unblock := make(chan struct{})
	w := New(api.WorkerConfig{
		TaskQueue:          "slow",
		MaxConcurrentTasks: 1,
		Handler: func(ctx context.Context, task *api.Task) (any, error) {
			close(started)
			<-unblock
			return "finished", nil
		},
		Observer: obs,
	}, "", gw)

	if err := gw.EnqueueTask(ctx, api.Task{ID: "inflight", TaskQueue: "slow"}); err != nil {
		t.Fatalf("EnqueueTask failed: %v", err)
	}
	<-started

	w.SignalDrain(ctx)

	done := make(chan struct{})
	go func() {
		w.FinalizeShutdown(ctx)
		close(done)
	}()

	// Finalize must not complete while the task is still running.
	select {
	case <-done:
		t.Fatal("FinalizeShutdown returned while a task was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	if got := obs.finalizes.Load(); got != 0 {
		t.Fatalf("finalize event fired %d times before in-flight task ended", got)
	}

	close(unblock)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("FinalizeShutdown did not complete after task finished")
	}

	// The in-flight task completed normally and its result was reported.
	res, ok := gw.Result("inflight")
	if !ok {
		t.Fatal("in-flight task result was not recorded")
	}
	if res.Output != "finished" {
		t.Fatalf("in-flight task output = %v, want finished", res.Output)
	}

	order := func() []string {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return append([]string(nil), obs.order...)
	}()
	if len(order) != 2 || order[0] != "drain" || order[1] != "finalize" {
		t.Fatalf("lifecycle order = %v, want [drain finalize]", order)
	}
}

func TestWorker_FinalizeRespectsContext(t *testing.T) {
	gw := gateway.NewInMemory()

	unblock := make(chan struct{})
	started := make(chan struct{})
	w := New(api.WorkerConfig{
		TaskQueue:          "stuck",
		MaxConcurrentTasks: 1,
		Handler: func(ctx context.Context, task *api.Task) (any, error) {
			close(started)
			<-unblock
			return nil, nil
		},
	}, "", gw)
	defer close(unblock)

	if err := gw.EnqueueTask(context.Background(), api.Task{ID: "x", TaskQueue: "stuck"}); err != nil {
		t.Fatalf("EnqueueTask failed: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		w.FinalizeShutdown(ctx)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("FinalizeShutdown ignored context cancellation")
	}
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("unexpected ctx state: %v", ctx.Err())
	}
}
