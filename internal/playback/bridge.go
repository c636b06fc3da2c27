package playback

import (
	"sync"
	"time"
)

// snapshotInterval bounds how often the bridge publishes: at most one
// snapshot per interval regardless of how many events arrived.
const snapshotInterval = 100 * time.Millisecond

// Snapshot is a flattened, comparable view of the playback state for
// observers that want polling semantics instead of an event stream.
// Position is truncated to whole seconds so steady playback produces
// roughly one snapshot per second, not one per tick.
type Snapshot struct {
	State       State
	ItemID      string
	Title       string
	Author      string
	Kind        string
	Index       int
	QueueLen    int
	Position    time.Duration
	Duration    time.Duration
	Rate        float64
	AutoAdvance bool
}

// Bridge adapts the service's event stream into coalesced snapshots.
// Bursts of events within one interval collapse into a single publish,
// and identical consecutive snapshots are suppressed entirely.
type Bridge struct {
	svc     Service
	sub     *Subscription
	updates chan Snapshot

	mu     sync.Mutex
	last   Snapshot
	closed bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewBridge subscribes to the service and starts coalescing. The caller
// owns the returned bridge and must Close it.
func NewBridge(svc Service) *Bridge {
	b := &Bridge{
		svc:     svc,
		sub:     svc.Subscribe(),
		updates: make(chan Snapshot, 1),
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

// Updates delivers coalesced snapshots. The channel holds at most one
// pending snapshot; a newer one replaces an unread older one.
func (b *Bridge) Updates() <-chan Snapshot {
	return b.updates
}

// Current returns the most recently published snapshot.
func (b *Bridge) Current() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *Bridge) run() {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	// Seed observers with the initial state.
	b.publish(b.snapshot())

	dirty := false
	for {
		select {
		case <-b.done:
			return
		case <-b.sub.Done:
			return
		case <-b.sub.StateChanged:
			dirty = true
		case <-b.sub.ItemChanged:
			dirty = true
		case <-b.sub.QueueChanged:
			dirty = true
		case <-b.sub.PositionChanged:
			dirty = true
		case <-b.sub.RateChanged:
			dirty = true
		case <-b.sub.Error:
			dirty = true
		case <-ticker.C:
			if !dirty {
				continue
			}
			dirty = false
			b.publish(b.snapshot())
		}
	}
}

// snapshot reads the service's current state into a comparable value.
func (b *Bridge) snapshot() Snapshot {
	snap := Snapshot{
		State:       b.svc.State(),
		Index:       b.svc.QueueCurrentIndex(),
		QueueLen:    b.svc.QueueLen(),
		Position:    b.svc.Position().Truncate(time.Second),
		Duration:    b.svc.Duration().Truncate(time.Second),
		Rate:        b.svc.Rate(),
		AutoAdvance: b.svc.AutoAdvance(),
	}
	if item := b.svc.CurrentItem(); item != nil {
		snap.ItemID = item.ID
		snap.Title = item.Title
		snap.Author = item.Author
		snap.Kind = string(item.Kind)
	}
	return snap
}

// publish sends the snapshot if it differs from the last one, replacing
// any unread snapshot still sitting in the channel.
func (b *Bridge) publish(snap Snapshot) {
	b.mu.Lock()
	if b.closed || snap == b.last {
		b.mu.Unlock()
		return
	}
	b.last = snap
	b.mu.Unlock()

	for {
		select {
		case b.updates <- snap:
			return
		default:
			select {
			case <-b.updates:
			default:
			}
		}
	}
}

// Close stops the bridge. Idempotent.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.done)
	})
}
