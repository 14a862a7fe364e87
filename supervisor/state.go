// Package supervisor boots the live node for a test run and waits for it to
// report that its JSON-RPC server is up.
package supervisor

// State represents the lifecycle state of a supervised node process.
type State int

const (
	// StateStarting indicates the process was spawned and the readiness
	// marker has not been seen yet.
	StateStarting State = iota

	// StateReady indicates the readiness marker was observed.
	StateReady

	// StateFailed indicates readiness was not reached before the timeout,
	// or the process could not be spawned.
	StateFailed

	// StateTerminated indicates a ready node was stopped.
	StateTerminated
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateFailed || s == StateTerminated
}
