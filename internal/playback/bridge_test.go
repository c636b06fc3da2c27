package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmorel/readout/internal/queue"
)

func newBridgeFixture(t *testing.T, items ...queue.Item) (*fixture, *Bridge) {
	t.Helper()
	f := newFixture(t, items...)
	b := NewBridge(f.svc)
	t.Cleanup(b.Close)
	return f, b
}

func waitSnapshot(t *testing.T, b *Bridge, ok func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case snap := <-b.Updates():
			if ok(snap) {
				return snap
			}
		case <-deadline:
			t.Fatalf("no matching snapshot, last published: %+v", b.Current())
			return Snapshot{}
		}
	}
}

func TestBridgePublishesInitialSnapshot(t *testing.T) {
	_, b := newBridgeFixture(t, localItem("a", "First"))

	snap := waitSnapshot(t, b, func(Snapshot) bool { return true })
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, "a", snap.ItemID)
	assert.Equal(t, 1, snap.QueueLen)
	assert.Equal(t, 1.0, snap.Rate)
}

func TestBridgeReflectsPlayback(t *testing.T) {
	f, b := newBridgeFixture(t, localItem("a", "First Title"))

	require.NoError(t, f.svc.PlayItem("a"))

	snap := waitSnapshot(t, b, func(s Snapshot) bool { return s.State == StatePlaying })
	assert.Equal(t, "a", snap.ItemID)
	assert.Equal(t, "First Title", snap.Title)
	assert.Equal(t, string(queue.KindArticle), snap.Kind)
	assert.Equal(t, 0, snap.Index)
}

func TestBridgeCoalescesBursts(t *testing.T) {
	f, b := newBridgeFixture(t)

	// Burst of queue mutations inside one coalescing interval.
	f.svc.Enqueue(localItem("a", "First"))
	f.svc.Enqueue(localItem("b", "Second"))
	f.svc.Enqueue(localItem("c", "Third"))

	snap := waitSnapshot(t, b, func(s Snapshot) bool { return s.QueueLen == 3 })
	assert.Equal(t, 3, snap.QueueLen)

	// Nothing further happened, so no more snapshots follow.
	select {
	case snap := <-b.Updates():
		t.Fatalf("unexpected snapshot after quiescence: %+v", snap)
	case <-time.After(3 * snapshotInterval):
	}
}

func TestBridgeSuppressesIdenticalSnapshots(t *testing.T) {
	f, b := newBridgeFixture(t, localItem("a", "First"))

	first := waitSnapshot(t, b, func(Snapshot) bool { return true })

	// A rate change to the current value produces an event but no
	// structural difference.
	require.NoError(t, f.svc.SetRate(first.Rate))

	select {
	case snap := <-b.Updates():
		t.Fatalf("unexpected snapshot for no-op change: %+v", snap)
	case <-time.After(3 * snapshotInterval):
	}
}

func TestBridgeCurrent(t *testing.T) {
	f, b := newBridgeFixture(t, localItem("a", "First"))

	require.NoError(t, f.svc.PlayItem("a"))
	require.Eventually(t, func() bool {
		return b.Current().State == StatePlaying
	}, waitFor, pollTick)
}

func TestBridgeCloseIdempotent(t *testing.T) {
	_, b := newBridgeFixture(t)
	b.Close()
	b.Close()
}
