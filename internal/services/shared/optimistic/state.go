package optimistic

// State is the lifecycle of one mutation.
type State int

const (
	// StateIdle means no mutation has been started for the target.
	StateIdle State = iota
	// StatePending means the optimistic value is installed and the write is in flight.
	StatePending
	// StateSucceeded means the server record replaced the optimistic value.
	StateSucceeded
	// StateFailed means the snapshot was restored and the error surfaced.
	StateFailed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Settled reports whether the state is terminal.
func (s State) Settled() bool {
	return s == StateSucceeded || s == StateFailed
}
