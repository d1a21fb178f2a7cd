// Package worker provides the long-lived task processor registered with the
// dispatch layer.
//
// A Worker polls its task queue (and optionally a sticky queue) through a
// Gateway, runs each task through the configured handler with bounded
// concurrency, and reports outcomes back through the Gateway. Lifecycle and
// task events are exposed through the api.Observer configured on the worker.
//
// # Lifecycle
//
// Workers start polling as soon as they are constructed. Shutdown is split
// into two phases so callers can stop intake quickly without abandoning
// running tasks:
//
//   - SignalDrain stops the poll loops and returns immediately.
//   - FinalizeShutdown waits for in-flight tasks to finish and releases the
//     worker's resources.
//
// When a worker is registered with a dispatch.Dispatcher, the dispatcher
// drives both phases and guarantees FinalizeShutdown runs exactly once, only
// after every outstanding lookup handle has been released.
package worker
