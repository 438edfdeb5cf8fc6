package chat

// SessionState only moves forward: Unregistered -> Active -> Terminated,
// or straight from Unregistered to Terminated.
type SessionState int

const (
	Unregistered SessionState = iota
	Active
	Terminated
)

func (s SessionState) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Active:
		return "active"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	switch s {
	case Unregistered:
		return next == Active || next == Terminated
	case Active:
		return next == Terminated
	default:
		return false
	}
}
