package engine

// Status is the lifecycle of an Engine. Disconnected and Closed are
// terminal.
type Status int

const (
	StatusIdle Status = iota
	StatusJoining
	StatusReady
	StatusDisconnected
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusJoining:
		return "joining"
	case StatusReady:
		return "ready"
	case StatusDisconnected:
		return "disconnected"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

// Terminal reports whether the engine has stopped for good.
func (s Status) Terminal() bool {
	return s == StatusDisconnected || s == StatusClosed
}
