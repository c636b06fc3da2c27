package playback

// State is the orchestrator's playback state machine.
//
// Valid transitions:
//   - Idle/Stopped/Failed → Loading (play command)
//   - Loading → Playing  (engine reports playback started)
//   - Loading → Failed   (resolution or engine load failed)
//   - Playing ↔ Paused   (toggle)
//   - Playing → Loading  (natural completion with auto-advance)
//   - Playing → Stopped  (natural completion without auto-advance)
//   - any     → Stopped  (stop command)
//
// Stopped and Failed are re-enterable, not terminal: a successful play
// command returns to Loading. Idle is never re-entered after the first
// load. A load failure never advances the queue cursor.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateStopped
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateStopped:
		return "Stopped"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsActive returns true if playback is underway (loading, playing or paused).
func (s State) IsActive() bool {
	return s == StateLoading || s == StatePlaying || s == StatePaused
}
