package scheme

// State is the lifecycle state of a [Scheme].
type State int

const (
	// Uninitialized is the state before the first client opened the scheme.
	Uninitialized State = iota

	// Active is the state while external clients hold the scheme open.
	// Rescans are only possible while active.
	Active

	// Terminating is the state after the last external client closed, while
	// partitions are still open.
	Terminating

	// Destroyed is the final state, all partitions were released and the
	// medium was closed.
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Terminating:
		return "terminating"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}
