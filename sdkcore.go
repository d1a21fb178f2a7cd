package sdkcore

import (
	"database/sql"
	"log/slog"

	"github.com/prefix-dev/sdk-core/internal/gateway"
	"github.com/prefix-dev/sdk-core/pkg/api"
	"github.com/prefix-dev/sdk-core/pkg/dispatch"
	"github.com/prefix-dev/sdk-core/pkg/worker"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Task         = api.Task
	TaskType     = api.TaskType
	TaskResult   = api.TaskResult
	TaskHandler  = api.TaskHandler
	WorkerConfig = api.WorkerConfig
	Gateway      = api.Gateway

	Observer          = api.Observer
	NoopObserver      = api.NoopObserver
	LoggingObserver   = api.LoggingObserver
	CompositeObserver = api.CompositeObserver

	WorkerAlreadyRegisteredError = api.WorkerAlreadyRegisteredError

	Dispatcher = dispatch.Dispatcher
	Handle     = dispatch.Handle
	Worker     = worker.Worker
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export task type values for convenience.

const (
	TaskTypeWorkflow = api.TaskTypeWorkflow
	TaskTypeActivity = api.TaskTypeActivity
)

// Dispatcher constructors.

// NewDispatcher returns an empty worker dispatcher. One dispatcher per
// process is typical, torn down with ShutdownAll before exit, but
// independent instances are fine (and useful in tests).
func NewDispatcher() *Dispatcher {
	return dispatch.New()
}

// NewDispatcherWithLogger returns an empty dispatcher that logs through the
// given slog.Logger instead of slog.Default().
func NewDispatcherWithLogger(logger *slog.Logger) *Dispatcher {
	return dispatch.NewWithLogger(logger)
}

// Gateway constructors.
// These wrap the internal/gateway package so external callers never need to
// import internal packages.

// NewInMemoryGateway returns a Gateway backed entirely by in-memory queues.
// Tasks do not survive a process restart.
func NewInMemoryGateway() Gateway {
	return gateway.NewInMemory()
}

// NewSQLiteGateway returns a Gateway that persists queued tasks in a SQLite
// database. All task queues share one tasks table.
func NewSQLiteGateway(db *sql.DB) Gateway {
	return gateway.NewSQLite(db)
}

// NewWorker constructs a standalone worker without registering it. Most
// callers should prefer Dispatcher.Register, which builds the worker and
// tracks it for graceful shutdown; NewWorker exists for the cases where
// construction and registration happen at different layers (for example
// sticky-queue worker variants), paired with Dispatcher.RegisterWorker.
func NewWorker(cfg WorkerConfig, stickyQueue string, gw Gateway) *Worker {
	return worker.New(cfg, stickyQueue, gw)
}
