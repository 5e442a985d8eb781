package cip

// IOConnectionEvent is a state transition of an I/O connection as reported by
// the connection manager to the application.
type IOConnectionEvent uint8

const (
	// EventStarted is reported once a connection has been opened.
	EventStarted IOConnectionEvent = iota

	// EventTimedOut is reported when the consumer watchdog expired.
	EventTimedOut

	// EventClosed is reported on Forward Close or local close.
	EventClosed
)

// String returns the event name.
func (e IOConnectionEvent) String() string {
	switch e {
	case EventStarted:
		return "STARTED"
	case EventTimedOut:
		return "TIMED_OUT"
	case EventClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Ends reports whether the event ends the connection.
func (e IOConnectionEvent) Ends() bool {
	return e == EventTimedOut || e == EventClosed
}
