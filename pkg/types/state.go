package types

// State is the persistence lifecycle stage of a tracked entity.
type State string

// Tracking states. Detached is terminal: a detached entry is no longer
// known to its context and is never written by it.
const (
	StateUnchanged State = "unchanged"
	StateAdded     State = "added"
	StateModified  State = "modified"
	StateDeleted   State = "deleted"
	StateDetached  State = "detached"
)

// validStates is the set of recognized state values.
var validStates = map[State]bool{
	StateUnchanged: true,
	StateAdded:     true,
	StateModified:  true,
	StateDeleted:   true,
	StateDetached:  true,
}

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// Valid reports whether s is a recognized state.
func (s State) Valid() bool {
	return validStates[s]
}

// ParseState converts a state name into a State.
// Returns ErrInvalidState if the name is not recognized.
func ParseState(name string) (State, error) {
	s := State(name)
	if !s.Valid() {
		return "", ErrInvalidState
	}
	return s, nil
}
