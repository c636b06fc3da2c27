package playback

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmorel/readout/internal/engine"
	"github.com/lmorel/readout/internal/queue"
	"github.com/lmorel/readout/internal/resolve"
	"github.com/lmorel/readout/internal/state"
)

const (
	waitFor  = 2 * time.Second
	pollTick = 5 * time.Millisecond
)

type fixture struct {
	svc   Service
	eng   *engine.Mock
	store *state.Mock
}

// newFixture builds a service around mock collaborators. The registry
// resolves articles to a canned local path and validates episode URLs.
func newFixture(t *testing.T, items ...queue.Item) *fixture {
	t.Helper()

	registry := resolve.NewRegistry()
	registry.Register(queue.KindArticle, resolve.ResolverFunc(
		func(_ context.Context, item queue.Item) (queue.Resource, error) {
			return queue.Resource{Path: "/tmp/narration/" + item.ID + ".mp3"}, nil
		}))
	registry.Register(queue.KindEpisode, resolve.NewEpisodeValidator())

	eng := engine.NewMock()
	store := state.NewMock()
	q := queue.NewQueue()
	q.Append(items...)

	svc := New(eng, q, registry, store, Options{AutoAdvance: true, Rate: 1.0})
	t.Cleanup(func() { svc.Close() })

	return &fixture{svc: svc, eng: eng, store: store}
}

func localItem(id, title string) queue.Item {
	return queue.Item{
		ID:       id,
		Kind:     queue.KindArticle,
		Title:    title,
		Resource: queue.Resource{Path: "/tmp/audio/" + id + ".mp3"},
	}
}

func waitState(t *testing.T, svc Service, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return svc.State() == want
	}, waitFor, pollTick, "state never reached %s (now %s)", want, svc.State())
}

func TestPlayItemReachesPlaying(t *testing.T) {
	f := newFixture(t, localItem("a", "First"), localItem("b", "Second"))

	require.Equal(t, StateIdle, f.svc.State())
	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StatePlaying)

	cur := f.svc.CurrentItem()
	require.NotNil(t, cur)
	assert.Equal(t, "a", cur.ID)
	assert.Equal(t, 0, f.svc.QueueCurrentIndex())
}

func TestPlayItemUnknownID(t *testing.T) {
	f := newFixture(t, localItem("a", "First"))

	err := f.svc.PlayItem("missing")
	require.ErrorIs(t, err, ErrNotInQueue)
	assert.Equal(t, StateIdle, f.svc.State())
	assert.Empty(t, f.eng.LoadCalls())
}

func TestTogglePlayPauseEmptyQueue(t *testing.T) {
	f := newFixture(t)

	err := f.svc.TogglePlayPause()
	require.ErrorIs(t, err, ErrQueueEmpty)
}

func TestTogglePlayPause(t *testing.T) {
	f := newFixture(t, localItem("a", "First"))

	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StatePlaying)

	require.NoError(t, f.svc.TogglePlayPause())
	waitState(t, f.svc, StatePaused)

	require.NoError(t, f.svc.TogglePlayPause())
	waitState(t, f.svc, StatePlaying)
}

func TestSubscriberSeesLoadingThenPlaying(t *testing.T) {
	f := newFixture(t, localItem("a", "First"))
	sub := f.svc.Subscribe()

	require.NoError(t, f.svc.PlayItem("a"))

	var got []State
	deadline := time.After(waitFor)
	for len(got) < 2 {
		select {
		case e := <-sub.StateChanged:
			got = append(got, e.Current)
		case <-deadline:
			t.Fatalf("timed out after states %v", got)
		}
	}
	assert.Equal(t, []State{StateLoading, StatePlaying}, got)
}

func TestAutoAdvance(t *testing.T) {
	f := newFixture(t, localItem("a", "First"), localItem("b", "Second"))
	sub := f.svc.Subscribe()

	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StatePlaying)

	// Drain the item change from the initial play command.
	select {
	case <-sub.ItemChanged:
	case <-time.After(waitFor):
		t.Fatal("no item change for initial play")
	}

	f.eng.SimulateCompleted()
	waitState(t, f.svc, StatePlaying)

	select {
	case e := <-sub.ItemChanged:
		require.NotNil(t, e.Previous)
		require.NotNil(t, e.Current)
		assert.Equal(t, "a", e.Previous.ID)
		assert.Equal(t, "b", e.Current.ID)
		assert.Equal(t, 1, e.Index)
	case <-time.After(waitFor):
		t.Fatal("no item change on auto-advance")
	}
	assert.Equal(t, 1, f.svc.QueueCurrentIndex())
}

func TestCompletionResetsPosition(t *testing.T) {
	f := newFixture(t, localItem("a", "First"), localItem("b", "Second"))

	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StatePlaying)

	f.eng.SimulateCompleted()
	require.Eventually(t, func() bool {
		return f.svc.QueueCurrentIndex() == 1
	}, waitFor, pollTick, "auto-advance never happened")

	items := f.svc.QueueItems()
	assert.Equal(t, time.Duration(0), items[0].Position)
}

func TestNoAutoAdvanceStops(t *testing.T) {
	f := newFixture(t, localItem("a", "First"), localItem("b", "Second"))
	f.svc.SetAutoAdvance(false)

	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StatePlaying)

	f.eng.SimulateCompleted()
	waitState(t, f.svc, StateStopped)

	// Cursor stays where it was; nothing new was loaded.
	assert.Equal(t, 0, f.svc.QueueCurrentIndex())
	assert.Len(t, f.eng.LoadCalls(), 1)
}

func TestCompletionOnLastItemStops(t *testing.T) {
	f := newFixture(t, localItem("a", "Only"))

	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StatePlaying)

	f.eng.SimulateCompleted()
	waitState(t, f.svc, StateStopped)
	assert.Equal(t, 0, f.svc.QueueCurrentIndex())
}

func TestLoadFailureDoesNotAdvance(t *testing.T) {
	f := newFixture(t, localItem("a", "First"), localItem("b", "Second"))
	sub := f.svc.Subscribe()

	loadErr := errors.New("decode failed")
	f.eng.SetLoadError(loadErr)

	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StateFailed)

	assert.Equal(t, 0, f.svc.QueueCurrentIndex())
	require.Error(t, f.svc.FailureReason())

	select {
	case e := <-sub.Error:
		assert.Equal(t, "load", e.Operation)
	case <-time.After(waitFor):
		t.Fatal("no error event")
	}
}

func TestFailedIsReEnterable(t *testing.T) {
	f := newFixture(t, localItem("a", "First"))

	f.eng.SetLoadError(errors.New("decode failed"))
	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StateFailed)

	f.eng.SetLoadError(nil)
	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StatePlaying)
	assert.NoError(t, f.svc.FailureReason())
}

func TestResolutionFailure(t *testing.T) {
	registry := resolve.NewRegistry()
	resolveErr := errors.New("tts unavailable")
	registry.Register(queue.KindArticle, resolve.ResolverFunc(
		func(context.Context, queue.Item) (queue.Resource, error) {
			return queue.Resource{}, resolveErr
		}))

	eng := engine.NewMock()
	q := queue.NewQueue()
	q.Append(queue.Item{ID: "a", Kind: queue.KindArticle, Title: "Unresolved"})
	svc := New(eng, q, registry, nil, Options{AutoAdvance: true, Rate: 1.0})
	t.Cleanup(func() { svc.Close() })
	sub := svc.Subscribe()

	require.NoError(t, svc.PlayItem("a"))
	waitState(t, svc, StateFailed)

	assert.Empty(t, eng.LoadCalls())
	select {
	case e := <-sub.Error:
		assert.Equal(t, "resolve", e.Operation)
		assert.Equal(t, "a", e.ItemID)
	case <-time.After(waitFor):
		t.Fatal("no error event")
	}
}

func TestResolutionStoresResource(t *testing.T) {
	item := queue.Item{ID: "art", Kind: queue.KindArticle, Title: "Needs narration"}
	f := newFixture(t, item)

	require.NoError(t, f.svc.PlayItem("art"))
	waitState(t, f.svc, StatePlaying)

	// The resolved path is written back so the next play skips resolution.
	items := f.svc.QueueItems()
	require.Len(t, items, 1)
	assert.Equal(t, "/tmp/narration/art.mp3", items[0].Resource.Path)

	calls := f.eng.LoadCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/tmp/narration/art.mp3", calls[0].Path)
}

func TestRapidNavigationSupersedesLoad(t *testing.T) {
	f := newFixture(t, localItem("a", "First"), localItem("b", "Second"))
	gate := f.eng.GateLoads()

	require.NoError(t, f.svc.PlayItem("a"))
	require.Eventually(t, func() bool {
		return len(f.eng.LoadCalls()) == 1
	}, waitFor, pollTick)

	// Supersede while the first load is still blocked.
	require.NoError(t, f.svc.PlayItem("b"))
	close(gate)
	f.eng.UngateLoads()

	waitState(t, f.svc, StatePlaying)
	cur := f.svc.CurrentItem()
	require.NotNil(t, cur)
	assert.Equal(t, "b", cur.ID)
	assert.NotEqual(t, StateFailed, f.svc.State())
}

func TestStaleResolutionDoesNotClobberNewerLoad(t *testing.T) {
	release := make(chan struct{})
	registry := resolve.NewRegistry()
	// The resolver ignores cancellation and eventually returns success,
	// like a narration call that cannot be aborted midway.
	registry.Register(queue.KindArticle, resolve.ResolverFunc(
		func(_ context.Context, item queue.Item) (queue.Resource, error) {
			<-release
			return queue.Resource{Path: "/tmp/narration/" + item.ID + ".mp3"}, nil
		}))

	eng := engine.NewMock()
	q := queue.NewQueue()
	q.Append(
		queue.Item{ID: "a", Kind: queue.KindArticle, Title: "Slow article"},
		localItem("b", "Quick local"),
	)
	svc := New(eng, q, registry, nil, Options{AutoAdvance: true, Rate: 1.0})
	t.Cleanup(func() { svc.Close() })

	require.NoError(t, svc.PlayItem("a"))
	waitState(t, svc, StateLoading)

	// Select b while a's resolver is still running, then let the stale
	// resolution finish.
	require.NoError(t, svc.PlayItem("b"))
	waitState(t, svc, StatePlaying)
	close(release)

	// The stale outcome must be discarded entirely: no engine load for
	// a's narration, no state regression away from b.
	assert.Never(t, func() bool {
		return svc.State() != StatePlaying || len(eng.LoadCalls()) != 1
	}, 500*time.Millisecond, pollTick, "stale load disturbed current playback")

	cur := svc.CurrentItem()
	require.NotNil(t, cur)
	assert.Equal(t, "b", cur.ID)
	calls := eng.LoadCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/tmp/audio/b.mp3", calls[0].Path)
}

func TestPlayNextPrevious(t *testing.T) {
	f := newFixture(t, localItem("a", "First"), localItem("b", "Second"))

	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StatePlaying)

	require.NoError(t, f.svc.PlayNext())
	require.Eventually(t, func() bool {
		return f.svc.QueueCurrentIndex() == 1
	}, waitFor, pollTick)

	require.NoError(t, f.svc.PlayPrevious())
	require.Eventually(t, func() bool {
		return f.svc.QueueCurrentIndex() == 0
	}, waitFor, pollTick)

	// At the edges both are no-ops.
	require.NoError(t, f.svc.PlayPrevious())
	assert.Equal(t, 0, f.svc.QueueCurrentIndex())
}

func TestSkipIntervalsPerKind(t *testing.T) {
	episode := queue.Item{
		ID:       "ep",
		Kind:     queue.KindEpisode,
		Title:    "Episode",
		Resource: queue.Resource{Path: "/tmp/audio/ep.mp3"},
	}
	f := newFixture(t, localItem("art", "Article"), episode)

	require.NoError(t, f.svc.PlayItem("art"))
	waitState(t, f.svc, StatePlaying)
	require.NoError(t, f.svc.SkipForward())

	require.NoError(t, f.svc.PlayItem("ep"))
	require.Eventually(t, func() bool {
		return len(f.eng.LoadCalls()) == 2 && f.svc.State() == StatePlaying
	}, waitFor, pollTick, "episode never started")
	require.NoError(t, f.svc.SkipForward())
	require.NoError(t, f.svc.SkipBackward())

	want := []time.Duration{15 * time.Second, 30 * time.Second, -30 * time.Second}
	assert.Equal(t, want, f.eng.SeekCalls())
}

func TestSkipIgnoredWhenInactive(t *testing.T) {
	f := newFixture(t, localItem("a", "First"))

	require.NoError(t, f.svc.SkipForward())
	assert.Empty(t, f.eng.SeekCalls())
}

func TestResumePositionRestored(t *testing.T) {
	item := localItem("a", "First")
	item.Position = 90 * time.Second
	f := newFixture(t, item)

	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StatePlaying)

	require.Eventually(t, func() bool {
		return f.eng.Position() == 90*time.Second
	}, waitFor, pollTick, "resume position not restored")
}

func TestStopResetsResumePosition(t *testing.T) {
	item := localItem("a", "First")
	item.Position = 90 * time.Second
	f := newFixture(t, item)

	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StatePlaying)

	require.NoError(t, f.svc.Stop())
	waitState(t, f.svc, StateStopped)

	items := f.svc.QueueItems()
	assert.Equal(t, time.Duration(0), items[0].Position)
}

func TestSetRatePersists(t *testing.T) {
	f := newFixture(t, localItem("a", "First"))

	require.NoError(t, f.svc.SetRate(1.5))
	assert.Equal(t, 1.5, f.svc.Rate())
	assert.Equal(t, 1.5, f.eng.Rate())

	settings, err := f.store.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, 1.5, settings.Rate)
}

func TestQueueMutationsPersistAndNotify(t *testing.T) {
	f := newFixture(t)
	sub := f.svc.Subscribe()

	f.svc.Enqueue(localItem("a", "First"), localItem("b", "Second"))

	select {
	case e := <-sub.QueueChanged:
		assert.Len(t, e.Items, 2)
		assert.Equal(t, 0, e.Index)
	case <-time.After(waitFor):
		t.Fatal("no queue change event")
	}

	saved, err := f.store.GetQueue()
	require.NoError(t, err)
	require.Len(t, saved.Items, 2)
	assert.Equal(t, "a", saved.Items[0].ItemID)
	assert.Equal(t, 0, saved.CurrentIndex)

	assert.True(t, f.svc.ReorderQueue(0, 1))
	assert.True(t, f.svc.RemoveFromQueue(1))
	assert.False(t, f.svc.RemoveFromQueue(5))
	assert.Equal(t, 1, f.svc.QueueLen())
}

func TestClearQueueStopsPlayback(t *testing.T) {
	f := newFixture(t, localItem("a", "First"))

	require.NoError(t, f.svc.PlayItem("a"))
	waitState(t, f.svc, StatePlaying)

	f.svc.ClearQueue()
	waitState(t, f.svc, StateStopped)
	assert.True(t, f.svc.QueueIsEmpty())
	assert.Equal(t, -1, f.svc.QueueCurrentIndex())
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture(t, localItem("a", "First"))

	require.NoError(t, f.svc.Close())
	require.NoError(t, f.svc.Close())
}
