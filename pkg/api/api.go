package api

import (
	"context"
	"time"
)

// TaskType identifies what kind of work a task carries.
type TaskType string

const (
	TaskTypeWorkflow TaskType = "workflow-task"
	TaskTypeActivity TaskType = "activity-task"
)

// Task is a unit of work delivered to a worker through a Gateway.
type Task struct {
	ID        string
	Type      TaskType
	TaskQueue string

	// Payload is task-type specific and opaque to the dispatch layer.
	// Persistent gateways encode it with encoding/gob, so concrete types
	// must be gob-encodable (and registered with gob.Register where needed).
	Payload any

	EnqueuedAt time.Time

	// Attempt counts delivery attempts, starting at 1 on first delivery.
	Attempt int
}

// TaskResult reports the outcome of a processed task back to the Gateway.
type TaskResult struct {
	TaskID    string
	TaskQueue string

	// Identity of the worker that processed the task.
	Identity string

	Output any
	Err    error
}

// TaskHandler processes a single task and returns its output.
type TaskHandler func(ctx context.Context, t *Task) (any, error)

// Gateway is the client a worker uses to obtain and complete tasks.
// Implementations must be safe for concurrent use; a single Gateway is
// typically shared by every worker in the process.
type Gateway interface {
	// EnqueueTask makes a task available on its task queue.
	EnqueueTask(ctx context.Context, t Task) error

	// PollTask blocks until a task is available on the given queue or the
	// context is cancelled.
	PollTask(ctx context.Context, taskQueue string) (*Task, error)

	// CompleteTask records the outcome of a delivered task.
	CompleteTask(ctx context.Context, res TaskResult) error
}

// WorkerConfig configures a worker bound to a single task queue.
type WorkerConfig struct {
	// TaskQueue is the queue this worker polls. Also the key the worker is
	// registered under in a Dispatcher.
	TaskQueue string

	// Identity names this worker in results and observer events.
	// Defaulted to a random UUID when empty.
	Identity string

	// MaxConcurrentTasks bounds parallel task execution. Defaults to 4.
	MaxConcurrentTasks int

	// Handler is invoked for every polled task.
	Handler TaskHandler

	// Observer receives task and lifecycle events. Defaults to NoopObserver.
	Observer Observer
}
