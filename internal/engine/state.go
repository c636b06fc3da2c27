package engine

// State is the transport-level playback state.
//
// Valid transitions:
//   - Stopped → Loading (via Load)
//   - Loading → Playing (load succeeded)
//   - Loading → Stopped (load failed or superseded)
//   - Playing → Paused  (via Pause)
//   - Paused  → Playing (via Play)
//   - Playing/Paused → Stopped (via Stop, or end of stream)
//
// No-op transitions (Play while Playing, Pause while Paused or Stopped,
// Stop while Stopped) are ignored without an event.
type State int

const (
	Stopped State = iota
	Loading
	Playing
	Paused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Loading:
		return "Loading"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a resource is loaded (Playing or Paused).
func (s State) IsActive() bool {
	return s == Playing || s == Paused
}
