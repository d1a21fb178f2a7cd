package api

import "fmt"

// WorkerAlreadyRegisteredError is returned when registering a worker under a
// task queue that already has one. The existing worker is left untouched.
type WorkerAlreadyRegisteredError struct {
	TaskQueue string
}

func (e *WorkerAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("worker already registered for task queue %q", e.TaskQueue)
}
