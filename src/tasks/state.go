package tasks

// State is the lifecycle position of a task record.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Valid reports whether s is one of the four lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateRunning, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Terminal reports whether s is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether a record may move from s to next.
// Moves are one-directional: pending → running → completed|failed.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePending:
		return next == StateRunning
	case StateRunning:
		return next == StateCompleted || next == StateFailed
	}
	return false
}
