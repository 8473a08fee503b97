// Package supervisor launches the server binary and proxies its lifecycle.
//
// It builds the final argument list from the resolved pipeline state, starts
// the child, forwards termination signals, and reports the child's exit code
// so the container orchestrator observes the true server status. The state
// machine is Starting -> Running -> (Stopping -> Stopped | Crashed); crashes
// are surfaced, never retried.
package supervisor
