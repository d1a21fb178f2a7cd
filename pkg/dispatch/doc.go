// Package dispatch provides the worker registry: a concurrent map from task
// queue names to long-lived workers with graceful, exactly-once shutdown.
//
// The Dispatcher serves lookups wait-free from an atomically swapped
// immutable snapshot. Shutdown removes a worker from the snapshot, signals it
// to drain, and defers its terminal cleanup until every handle issued by
// earlier lookups has been released — without tracking borrowers
// individually. See Handle and Dispatcher for the contract.
package dispatch
