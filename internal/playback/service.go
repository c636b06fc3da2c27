package playback

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lmorel/readout/internal/queue"
)

// ErrNotInQueue is returned when a play command names an unknown item.
var ErrNotInQueue = errors.New("item not in queue")

// ErrQueueEmpty is returned when a play command finds nothing to play.
var ErrQueueEmpty = errors.New("queue is empty")

// Service defines the playback orchestrator contract. It owns exactly one
// engine and one queue; UI surfaces read through a Bridge snapshot rather
// than holding their own engine references.
type Service interface {
	// Playback control
	PlayItem(id string) error // select the queue item by id and load it
	JumpTo(index int) error   // select the queue item by index and load it
	TogglePlayPause() error
	Stop() error
	PlayNext() error     // no-op if no next item
	PlayPrevious() error // no-op if no previous item
	SeekTo(pos time.Duration) error
	SkipForward() error  // seek by the current item's kind interval
	SkipBackward() error // seek back by the current item's kind interval
	SetRate(rate float64) error

	// Queue manipulation
	Enqueue(items ...queue.Item)
	RemoveFromQueue(index int) bool
	ReorderQueue(from, to int) bool
	ClearQueue()

	// State queries
	State() State
	FailureReason() error // set while in StateFailed
	Position() time.Duration
	Duration() time.Duration
	Rate() float64
	CurrentItem() *queue.Item
	AutoAdvance() bool
	SetAutoAdvance(enabled bool)

	// Queue queries
	QueueItems() []queue.Item
	QueueCurrentIndex() int
	QueueLen() int
	QueueIsEmpty() bool
	QueueHasNext() bool
	QueueHasPrevious() bool

	// Event subscription
	Subscribe() *Subscription

	// Lifecycle
	Close() error
}
