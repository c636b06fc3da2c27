package playback

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/lmorel/readout/internal/engine"
	"github.com/lmorel/readout/internal/queue"
	"github.com/lmorel/readout/internal/resolve"
	"github.com/lmorel/readout/internal/state"
)

const (
	// positionTickInterval paces position updates to subscribers.
	positionTickInterval = 500 * time.Millisecond
	// resumeSaveInterval bounds resume-position writes: the position is
	// persisted only after this much playback since the last save.
	resumeSaveInterval = 10 * time.Second
)

// Verify serviceImpl implements Service at compile time.
var _ Service = (*serviceImpl)(nil)

// Options configure a new service.
type Options struct {
	AutoAdvance bool
	Rate        float64
}

type serviceImpl struct {
	mu sync.Mutex

	engine    engine.Interface
	queue     *queue.PlayingQueue
	resolvers *resolve.Registry
	store     state.Interface // nil disables persistence

	state       State
	prevState   State
	failure     error
	autoAdvance bool
	rate        float64

	// In-flight load tracking. Issuing a new load cancels the previous
	// one; a stale load's outcome is discarded by the generation check.
	loadGen    int
	loadCancel context.CancelFunc

	lastSavedPos time.Duration

	subs   []*Subscription
	subsMu sync.RWMutex

	done   chan struct{}
	closed bool
}

// New creates a playback service around an engine and a queue. Engine
// events are processed one at a time on a single goroutine, so state
// transitions are serialized even though the engine runs its own threads.
func New(eng engine.Interface, q *queue.PlayingQueue, resolvers *resolve.Registry, store state.Interface, opts Options) Service {
	rate := opts.Rate
	if rate <= 0 {
		rate = 1.0
	}
	s := &serviceImpl{
		engine:      eng,
		queue:       q,
		resolvers:   resolvers,
		store:       store,
		state:       StateIdle,
		autoAdvance: opts.AutoAdvance,
		rate:        rate,
		done:        make(chan struct{}),
	}
	eng.SetRate(rate)
	go s.run()
	return s
}

// run consumes engine events and the position ticker until Close.
func (s *serviceImpl) run() {
	ticker := time.NewTicker(positionTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.engine.Events():
			if !ok {
				return
			}
			s.handleEngineEvent(ev)
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *serviceImpl) handleEngineEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventLoading:
		s.setState(StateLoading, nil)
	case engine.EventPlaying:
		s.setState(StatePlaying, nil)
	case engine.EventPaused:
		s.setState(StatePaused, nil)
	case engine.EventStopped:
		s.setState(StateStopped, nil)
	case engine.EventFailed:
		s.mu.Lock()
		itemID := ""
		if cur := s.queue.Current(); cur != nil {
			itemID = cur.ID
		}
		s.mu.Unlock()
		s.setState(StateFailed, ev.Err)
		s.notifyError(ErrorEvent{Operation: "load", ItemID: itemID, Err: ev.Err})
	case engine.EventCompleted:
		s.handleCompleted()
	}
}

// handleCompleted advances the queue on natural completion, or stops.
// The finished item's resume position is reset either way.
func (s *serviceImpl) handleCompleted() {
	s.mu.Lock()
	prev := cloneItem(s.queue.Current())
	prevIdx := s.queue.CurrentIndex()
	if prev != nil {
		s.queue.SetPosition(prev.ID, 0)
	}

	if s.autoAdvance && s.queue.HasNext() {
		s.queue.SetCursor(prevIdx + 1)
		next := cloneItem(s.queue.Current())
		s.persistLocked()
		s.startLoadLocked()
		s.mu.Unlock()
		s.setState(StateLoading, nil)
		s.notifyItem(ItemChange{Previous: prev, Current: next, PreviousIndex: prevIdx, Index: prevIdx + 1})
		return
	}

	s.persistLocked()
	s.mu.Unlock()
	s.setState(StateStopped, nil)
}

// tick publishes the playback position and maintains resume bookkeeping.
func (s *serviceImpl) tick() {
	s.mu.Lock()
	if s.closed || s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	item := cloneItem(s.queue.Current())
	s.mu.Unlock()

	pos := s.engine.Position()
	dur := s.engine.Duration()

	s.mu.Lock()
	if item != nil {
		if dur > 0 && item.Duration == 0 {
			s.queue.SetDuration(item.ID, dur)
		}
		// Save on interval, not on every tick; a backwards jump (seek)
		// re-baselines immediately.
		if pos-s.lastSavedPos >= resumeSaveInterval || pos < s.lastSavedPos {
			s.queue.SetPosition(item.ID, pos)
			s.lastSavedPos = pos
			s.persistLocked()
		}
	}
	s.mu.Unlock()

	s.notifyPosition(PositionChange{Position: pos, Duration: dur})
}

// --- Playback control ---

func (s *serviceImpl) PlayItem(id string) error {
	s.mu.Lock()
	idx := s.queue.IndexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotInQueue
	}
	return s.playIndexLocked(idx)
}

func (s *serviceImpl) JumpTo(index int) error {
	s.mu.Lock()
	if s.queue.Item(index) == nil {
		s.mu.Unlock()
		return ErrNotInQueue
	}
	return s.playIndexLocked(index)
}

// playIndexLocked selects index and starts loading it. Unlocks s.mu.
func (s *serviceImpl) playIndexLocked(index int) error {
	prev := cloneItem(s.queue.Current())
	prevIdx := s.queue.CurrentIndex()
	s.queue.SetCursor(index)
	next := cloneItem(s.queue.Current())
	err := s.startLoadLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.setState(StateLoading, nil)
	s.notifyItem(ItemChange{Previous: prev, Current: next, PreviousIndex: prevIdx, Index: index})
	return nil
}

func (s *serviceImpl) TogglePlayPause() error {
	s.mu.Lock()
	switch s.state {
	case StatePlaying:
		s.mu.Unlock()
		s.engine.Pause()
		return nil
	case StatePaused:
		s.mu.Unlock()
		s.engine.Play()
		return nil
	case StateLoading:
		s.mu.Unlock()
		return nil
	default: // Idle, Stopped, Failed: start the current item if any
		if s.queue.Current() == nil {
			s.mu.Unlock()
			return ErrQueueEmpty
		}
		err := s.startLoadLocked()
		s.mu.Unlock()
		if err != nil {
			return err
		}
		s.setState(StateLoading, nil)
		return nil
	}
}

func (s *serviceImpl) Stop() error {
	s.mu.Lock()
	s.cancelLoadLocked()
	if cur := s.queue.Current(); cur != nil {
		s.queue.SetPosition(cur.ID, 0)
		s.persistLocked()
	}
	s.mu.Unlock()

	if s.engine.State() == engine.Stopped {
		// Nothing loaded; the engine will not emit a transition.
		s.setState(StateStopped, nil)
		return nil
	}
	s.engine.Stop()
	return nil
}

func (s *serviceImpl) PlayNext() error {
	s.mu.Lock()
	if !s.queue.HasNext() {
		s.mu.Unlock()
		return nil
	}
	return s.playIndexLocked(s.queue.CurrentIndex() + 1)
}

func (s *serviceImpl) PlayPrevious() error {
	s.mu.Lock()
	if !s.queue.HasPrevious() {
		s.mu.Unlock()
		return nil
	}
	return s.playIndexLocked(s.queue.CurrentIndex() - 1)
}

func (s *serviceImpl) SeekTo(pos time.Duration) error {
	s.mu.Lock()
	active := s.state == StatePlaying || s.state == StatePaused
	s.mu.Unlock()
	if !active {
		return nil
	}
	s.engine.SeekTo(pos)
	s.notifyPosition(PositionChange{Position: s.engine.Position(), Duration: s.engine.Duration()})
	return nil
}

func (s *serviceImpl) SkipForward() error {
	return s.skip(1)
}

func (s *serviceImpl) SkipBackward() error {
	return s.skip(-1)
}

// skip seeks by the current item's kind-specific interval.
func (s *serviceImpl) skip(direction int) error {
	s.mu.Lock()
	cur := s.queue.Current()
	active := s.state == StatePlaying || s.state == StatePaused
	if cur == nil || !active {
		s.mu.Unlock()
		return nil
	}
	interval := cur.Kind.SkipInterval()
	s.mu.Unlock()

	s.engine.Seek(time.Duration(direction) * interval)
	s.notifyPosition(PositionChange{Position: s.engine.Position(), Duration: s.engine.Duration()})
	return nil
}

func (s *serviceImpl) SetRate(rate float64) error {
	s.engine.SetRate(rate)
	applied := s.engine.Rate()

	s.mu.Lock()
	s.rate = applied
	store := s.store
	autoAdvance := s.autoAdvance
	s.mu.Unlock()

	if store != nil {
		if err := store.SaveSettings(state.Settings{Rate: applied, AutoAdvance: autoAdvance}); err != nil {
			zlog.Warn().Err(err).Msg("rate save failed")
		}
	}
	s.notifyRate(RateChange{Rate: applied})
	return nil
}

// --- Queue manipulation ---

func (s *serviceImpl) Enqueue(items ...queue.Item) {
	if len(items) == 0 {
		return
	}
	s.mu.Lock()
	s.queue.Append(items...)
	s.persistLocked()
	change := QueueChange{Items: s.queue.Items(), Index: s.queue.CurrentIndex()}
	s.mu.Unlock()
	s.notifyQueue(change)
}

func (s *serviceImpl) RemoveFromQueue(index int) bool {
	s.mu.Lock()
	if !s.queue.RemoveAt(index) {
		s.mu.Unlock()
		return false
	}
	s.persistLocked()
	change := QueueChange{Items: s.queue.Items(), Index: s.queue.CurrentIndex()}
	s.mu.Unlock()
	s.notifyQueue(change)
	return true
}

func (s *serviceImpl) ReorderQueue(from, to int) bool {
	s.mu.Lock()
	if !s.queue.Move(from, to) {
		s.mu.Unlock()
		return false
	}
	s.persistLocked()
	change := QueueChange{Items: s.queue.Items(), Index: s.queue.CurrentIndex()}
	s.mu.Unlock()
	s.notifyQueue(change)
	return true
}

func (s *serviceImpl) ClearQueue() {
	s.mu.Lock()
	s.cancelLoadLocked()
	s.queue.Clear()
	s.persistLocked()
	change := QueueChange{Items: nil, Index: -1}
	s.mu.Unlock()

	if s.engine.State() == engine.Stopped {
		s.setState(StateStopped, nil)
	} else {
		s.engine.Stop()
	}
	s.notifyQueue(change)
}

// --- State queries ---

func (s *serviceImpl) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *serviceImpl) FailureReason() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *serviceImpl) Position() time.Duration {
	return s.engine.Position()
}

func (s *serviceImpl) Duration() time.Duration {
	return s.engine.Duration()
}

func (s *serviceImpl) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *serviceImpl) CurrentItem() *queue.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItem(s.queue.Current())
}

func (s *serviceImpl) AutoAdvance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoAdvance
}

func (s *serviceImpl) SetAutoAdvance(enabled bool) {
	s.mu.Lock()
	s.autoAdvance = enabled
	store := s.store
	rate := s.rate
	s.mu.Unlock()

	if store != nil {
		if err := store.SaveSettings(state.Settings{Rate: rate, AutoAdvance: enabled}); err != nil {
			zlog.Warn().Err(err).Msg("auto-advance save failed")
		}
	}
}

// --- Queue queries ---

func (s *serviceImpl) QueueItems() []queue.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Items()
}

func (s *serviceImpl) QueueCurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.CurrentIndex()
}

func (s *serviceImpl) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

func (s *serviceImpl) QueueIsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.IsEmpty()
}

func (s *serviceImpl) QueueHasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.HasNext()
}

func (s *serviceImpl) QueueHasPrevious() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.HasPrevious()
}

// --- Loading ---

// startLoadLocked begins loading the current item. Caller holds s.mu.
func (s *serviceImpl) startLoadLocked() error {
	item := s.queue.Current()
	if item == nil {
		return ErrQueueEmpty
	}

	s.cancelLoadLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.loadCancel = cancel
	s.loadGen++
	gen := s.loadGen
	s.lastSavedPos = item.Position

	it := *item
	go s.resolveAndLoad(ctx, gen, it)
	return nil
}

// resolveAndLoad runs off the caller's goroutine: resolve the resource if
// the item has no local audio yet, then hand it to the engine. Outcomes of
// superseded or canceled loads are discarded.
func (s *serviceImpl) resolveAndLoad(ctx context.Context, gen int, it queue.Item) {
	res := it.Resource
	if res.Path == "" {
		resolved, err := s.resolvers.Resolve(ctx, it)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.failLoad(gen, it.ID, err)
			return
		}
		res = resolved

		s.mu.Lock()
		if gen != s.loadGen {
			// A newer load took over while the resolver ran; its outcome
			// must not reach the engine.
			s.mu.Unlock()
			return
		}
		s.queue.SetResource(it.ID, res)
		s.persistLocked()
		s.mu.Unlock()
	}

	// Re-check before touching the engine: the goroutine may have been
	// scheduled late, after a newer load already started.
	s.mu.Lock()
	stale := gen != s.loadGen
	s.mu.Unlock()
	if stale || ctx.Err() != nil {
		return
	}

	if err := s.engine.Load(ctx, res); err != nil {
		// Engine load failures for the current generation arrive as an
		// EventFailed on the event channel; superseded/canceled loads
		// produce nothing. Either way there is nothing to do here.
		return
	}

	if it.Position > 0 {
		s.mu.Lock()
		current := gen == s.loadGen
		s.mu.Unlock()
		if current {
			s.engine.SeekTo(it.Position)
		}
	}
}

// failLoad reports a resolution failure unless the load was superseded.
// The cursor is not advanced: a broken item must not be skipped silently.
func (s *serviceImpl) failLoad(gen int, itemID string, err error) {
	s.mu.Lock()
	if gen != s.loadGen || s.closed {
		s.mu.Unlock()
		return
	}
	changed := s.setStateLocked(StateFailed, err)
	prev := s.prevState
	s.mu.Unlock()
	if changed {
		s.notifyState(StateChange{Previous: prev, Current: StateFailed, Reason: err})
	}
	s.notifyError(ErrorEvent{Operation: "resolve", ItemID: itemID, Err: err})
}

// cancelLoadLocked cancels any in-flight load. Caller holds s.mu.
func (s *serviceImpl) cancelLoadLocked() {
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
	s.loadGen++
}

// --- State bookkeeping ---

func (s *serviceImpl) setState(next State, reason error) {
	s.mu.Lock()
	changed := s.setStateLocked(next, reason)
	prev := s.prevState
	s.mu.Unlock()
	if changed {
		s.notifyState(StateChange{Previous: prev, Current: next, Reason: reason})
	}
}

// setStateLocked updates the state, returning false for a no-op
// transition. Caller holds s.mu and is responsible for notifying.
func (s *serviceImpl) setStateLocked(next State, reason error) bool {
	if s.state == next {
		return false
	}
	s.prevState = s.state
	s.state = next
	if next == StateFailed {
		s.failure = reason
	} else {
		s.failure = nil
	}
	return true
}

// --- Persistence ---

// persistLocked schedules a debounced queue save. Caller holds s.mu.
func (s *serviceImpl) persistLocked() {
	if s.store == nil {
		return
	}
	items := s.queue.Items()
	stored := make([]state.QueueItem, len(items))
	for i, it := range items {
		stored[i] = state.QueueItem{
			ItemID:     it.ID,
			Kind:       string(it.Kind),
			Title:      it.Title,
			Author:     it.Author,
			Path:       it.Resource.Path,
			URL:        it.Resource.URL,
			PositionMS: it.Position.Milliseconds(),
			DurationMS: it.Duration.Milliseconds(),
		}
	}
	s.store.SaveQueueDebounced(state.QueueState{
		CurrentIndex: s.queue.CurrentIndex(),
		Items:        stored,
	})
}

// --- Subscriptions ---

func (s *serviceImpl) Subscribe() *Subscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	sub := newSubscription()
	s.subs = append(s.subs, sub)
	return sub
}

func (s *serviceImpl) notifyState(e StateChange) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendState(e)
	}
}

func (s *serviceImpl) notifyItem(e ItemChange) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendItem(e)
	}
}

func (s *serviceImpl) notifyQueue(e QueueChange) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendQueue(e)
	}
}

func (s *serviceImpl) notifyPosition(e PositionChange) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendPosition(e)
	}
}

func (s *serviceImpl) notifyRate(e RateChange) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendRate(e)
	}
}

func (s *serviceImpl) notifyError(e ErrorEvent) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendError(e)
	}
}

// --- Lifecycle ---

// Close shuts down the service: pending timers and in-flight loads are
// canceled, and no callback runs afterwards.
func (s *serviceImpl) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancelLoadLocked()
	close(s.done)
	s.mu.Unlock()

	err := s.engine.Close()

	s.subsMu.Lock()
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = nil
	s.subsMu.Unlock()

	return err
}

// cloneItem copies an item so callers never alias queue-owned memory.
func cloneItem(it *queue.Item) *queue.Item {
	if it == nil {
		return nil
	}
	c := *it
	return &c
}
