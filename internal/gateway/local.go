package gateway

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prefix-dev/sdk-core/internal/taskqueue"
	"github.com/prefix-dev/sdk-core/pkg/api"
)

// QueueFactory builds the delivery backend for one task queue.
type QueueFactory func(taskQueue string) (taskqueue.Queue, error)

// Local is an in-process api.Gateway. It multiplexes one Queue per task
// queue name, creating them lazily through the configured factory, and keeps
// completed task results in memory for retrieval via Result.
//
// Local is safe for concurrent use and is typically shared by every worker
// in the process.
type Local struct {
	newQueue QueueFactory

	mu      sync.Mutex
	queues  map[string]taskqueue.Queue
	results map[string]api.TaskResult
}

// NewLocal creates a gateway whose per-queue backends come from newQueue.
func NewLocal(newQueue QueueFactory) *Local {
	return &Local{
		newQueue: newQueue,
		queues:   make(map[string]taskqueue.Queue),
		results:  make(map[string]api.TaskResult),
	}
}

// NewInMemory creates a gateway backed by in-memory queues. Tasks do not
// survive a process restart.
func NewInMemory() *Local {
	return NewLocal(func(string) (taskqueue.Queue, error) {
		return taskqueue.NewInMemoryQueue(1024), nil
	})
}

// NewSQLite creates a gateway whose queues persist tasks in the given
// SQLite database. All queues share one tasks table.
func NewSQLite(db *sql.DB) *Local {
	return NewLocal(func(taskQueue string) (taskqueue.Queue, error) {
		return taskqueue.NewSQLiteQueue(db, taskQueue)
	})
}

// Ensure Local implements api.Gateway.
var _ api.Gateway = (*Local)(nil)

func (g *Local) queue(taskQueue string) (taskqueue.Queue, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if q, ok := g.queues[taskQueue]; ok {
		return q, nil
	}
	q, err := g.newQueue(taskQueue)
	if err != nil {
		return nil, err
	}
	g.queues[taskQueue] = q
	return q, nil
}

// EnqueueTask makes a task available on its task queue. Empty ID, zero
// EnqueuedAt, and zero Attempt are defaulted.
func (g *Local) EnqueueTask(ctx context.Context, t api.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}
	if t.Attempt <= 0 {
		t.Attempt = 1
	}
	q, err := g.queue(t.TaskQueue)
	if err != nil {
		return err
	}
	return q.Enqueue(ctx, t)
}

// PollTask blocks until a task is available on taskQueue or ctx is cancelled.
func (g *Local) PollTask(ctx context.Context, taskQueue string) (*api.Task, error) {
	q, err := g.queue(taskQueue)
	if err != nil {
		return nil, err
	}
	return q.Dequeue(ctx)
}

// CompleteTask records the outcome of a delivered task.
func (g *Local) CompleteTask(ctx context.Context, res api.TaskResult) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[res.TaskID] = res
	return nil
}

// Result returns the recorded outcome for a task, if it has completed.
func (g *Local) Result(taskID string) (api.TaskResult, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	res, ok := g.results[taskID]
	return res, ok
}

// QueueLen reports the approximate backlog of a task queue. Queues that have
// never been touched report zero.
func (g *Local) QueueLen(taskQueue string) int {
	g.mu.Lock()
	q, ok := g.queues[taskQueue]
	g.mu.Unlock()
	if !ok {
		return 0
	}
	return q.Len()
}
