// Package api defines the shared contract between the dispatch layer, the
// worker implementation, and gateway backends: task and result types, the
// Gateway client interface, worker configuration, and the Observer used for
// logging and metrics.
//
// The package has no dependencies on the rest of the module so that both
// internal packages and user code can import it without cycles.
package api
