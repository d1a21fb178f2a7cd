package taskqueue

import (
	"context"

	"github.com/prefix-dev/sdk-core/pkg/api"
)

// Queue is a single task queue's delivery backend.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, t api.Task) error

	// Dequeue removes and returns the next task, blocking until one is
	// available or the context is cancelled.
	Dequeue(ctx context.Context) (*api.Task, error)

	// Len returns the approximate number of tasks queued.
	Len() int
}
