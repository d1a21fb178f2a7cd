// Package gateway provides in-process implementations of api.Gateway for
// development, tests, and single-process deployments. Workers poll tasks and
// report completions through a Gateway; producers enqueue through the same
// object.
package gateway
