package engine

import (
	"context"
	"time"

	"github.com/lmorel/readout/internal/queue"
)

// Interface defines the transport contract for dependency injection and
// testing. Exactly one resource is loaded at a time; loading a new one
// supersedes the previous load, whose eventual outcome is discarded.
type Interface interface {
	// Load decodes the resource and starts playback. Blocking; callers run
	// it off the UI-serving goroutine. The outcome is also reported on the
	// event channel unless the load was superseded or ctx was canceled.
	Load(ctx context.Context, res queue.Resource) error
	Play()
	Pause()
	Stop()
	State() State
	Position() time.Duration
	Duration() time.Duration
	Seek(delta time.Duration)
	SeekTo(pos time.Duration)
	SetRate(rate float64)
	Rate() float64
	Events() <-chan Event
	Close() error
}

// Verify Engine implements Interface at compile time.
var _ Interface = (*Engine)(nil)
