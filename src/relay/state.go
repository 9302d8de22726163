package relay

// State is the lifecycle position of an upstream feed session.
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateConnecting
	StateSubscribed
	StateStreaming
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateAuthenticated:
		return "Authenticated"
	case StateConnecting:
		return "Connecting"
	case StateSubscribed:
		return "Subscribed"
	case StateStreaming:
		return "Streaming"
	case StateReconnecting:
		return "Reconnecting"
	case StateClosed:
		return "Closed"
	default:
		return "Invalid"
	}
}

// Live reports whether the session can still deliver ticks.
func (s State) Live() bool {
	return s != StateClosed
}

// StateObserver is told about every state change of a feed session.
type StateObserver func(sessionKey string, state State)
