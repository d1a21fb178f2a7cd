// Package sdkcore provides the process-local core of a task-queue worker
// runtime: a concurrent worker registry with graceful, exactly-once shutdown.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Dispatcher
//  2. Worker
//  3. Gateway
//  4. Handle
//
// # Dispatcher
//
// The Dispatcher maps task queue names to long-lived workers. Lookups are
// wait-free reads of an immutable snapshot, so hot paths can resolve a queue
// name to a worker without taking a lock. Registration and shutdown go
// through a copy-modify-install cycle on the snapshot.
//
// Shutdown is graceful and exactly-once: the worker is signaled to drain,
// removed from the snapshot so new lookups cannot find it, and finalized only
// after every outstanding lookup handle has been released.
//
// # Worker
//
// A Worker polls a task queue through a Gateway and executes tasks with a
// configured handler under bounded concurrency. Workers start polling on
// construction and stop in two phases: drain (stop intake) and finalize
// (wait for in-flight work, release resources).
//
// # Gateway
//
// The Gateway is the client a worker uses to obtain and complete tasks. This
// module ships in-process gateways backed by in-memory or SQLite queues;
// remote gateways implement the same interface.
//
// # Handle
//
// Lookup returns a Handle: a borrow-scoped reference that keeps the worker
// alive until released. Holding a handle across a shutdown delays the
// worker's terminal cleanup, never races it.
//
// Typical usage:
//
//	d := sdkcore.NewDispatcher()
//	gw := sdkcore.NewInMemoryGateway()
//
//	err := d.Register(sdkcore.WorkerConfig{
//	    TaskQueue: "billing",
//	    Handler:   handleBillingTask,
//	}, "", gw)
//	...
//	if h := d.Lookup("billing"); h != nil {
//	    defer h.Release()
//	    // use h.Worker()
//	}
//	...
//	d.ShutdownAll(ctx) // before process exit
package sdkcore
