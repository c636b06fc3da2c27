package playback

import (
	"time"

	"github.com/lmorel/readout/internal/queue"
)

// StateChange is emitted when the playback state changes. Reason is set
// when Current is StateFailed.
type StateChange struct {
	Previous State
	Current  State
	Reason   error
}

// ItemChange is emitted when playback moves to a different queue item.
//
// Emitted by:
//   - PlayItem/JumpTo: when a play command selects an item
//   - PlayNext/PlayPrevious: when navigating
//   - auto-advance: when an item completes and the next one loads
//
// NOT emitted by queue mutations that merely re-clamp the cursor, nor by
// pause/stop. Rapid navigation therefore coalesces naturally: one event
// per actual load, not per cursor twitch.
type ItemChange struct {
	Previous      *queue.Item
	Current       *queue.Item
	PreviousIndex int
	Index         int
}

// QueueChange is emitted when the queue contents change.
type QueueChange struct {
	Items []queue.Item
	Index int
}

// PositionChange is emitted on position ticks and after seeks.
type PositionChange struct {
	Position time.Duration
	Duration time.Duration
}

// RateChange is emitted when the playback rate changes.
type RateChange struct {
	Rate float64
}

// ErrorEvent is emitted when an operation fails in the background.
type ErrorEvent struct {
	Operation string // e.g. "resolve", "load"
	ItemID    string
	Err       error
}
