package engine

// EventType enumerates transport state transitions.
type EventType int

const (
	// EventLoading is emitted when a load begins.
	EventLoading EventType = iota
	// EventPlaying is emitted when playback starts or resumes.
	EventPlaying
	// EventPaused is emitted when playback pauses.
	EventPaused
	// EventStopped is emitted when playback is stopped explicitly.
	EventStopped
	// EventCompleted is emitted when the stream reaches its natural end.
	EventCompleted
	// EventFailed is emitted once when a load fails; Err carries the reason.
	EventFailed
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventLoading:
		return "Loading"
	case EventPlaying:
		return "Playing"
	case EventPaused:
		return "Paused"
	case EventStopped:
		return "Stopped"
	case EventCompleted:
		return "Completed"
	case EventFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Event is one transport transition. Exactly one event is emitted per
// transition, in transition order.
type Event struct {
	Type EventType
	Err  error // set for EventFailed only
}
