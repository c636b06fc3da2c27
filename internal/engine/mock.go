package engine

import (
	"context"
	"sync"
	"time"

	"github.com/lmorel/readout/internal/queue"
)

// Mock is a test double for the engine. Loads succeed immediately unless
// an error is set or a load gate is installed.
type Mock struct {
	mu sync.Mutex

	state     State
	position  time.Duration
	duration  time.Duration
	rate      float64
	loadErr   error
	loadGate  chan struct{} // when set, Load blocks on it (or ctx)
	loadCalls []queue.Resource
	seekCalls []time.Duration
	gen       int
	events    chan Event
	closed    bool
}

// NewMock creates a new mock engine.
func NewMock() *Mock {
	return &Mock{
		rate:   1.0,
		events: make(chan Event, eventBufferSize),
	}
}

func (m *Mock) Load(ctx context.Context, res queue.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.loadCalls = append(m.loadCalls, res)
	m.state = Loading
	gate := m.loadGate
	loadErr := m.loadErr
	m.sendLocked(Event{Type: EventLoading})
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-gate:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || ctx.Err() != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errSuperseded
	}
	if loadErr != nil {
		m.state = Stopped
		m.sendLocked(Event{Type: EventFailed, Err: loadErr})
		return loadErr
	}
	m.state = Playing
	m.position = 0
	m.sendLocked(Event{Type: EventPlaying})
	return nil
}

func (m *Mock) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Paused {
		return
	}
	m.state = Playing
	m.sendLocked(Event{Type: EventPlaying})
}

func (m *Mock) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Playing {
		return
	}
	m.state = Paused
	m.sendLocked(Event{Type: EventPaused})
}

func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Stopped {
		return
	}
	m.gen++
	m.state = Stopped
	m.position = 0
	m.sendLocked(Event{Type: EventStopped})
}

func (m *Mock) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mock) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Mock) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *Mock) Seek(delta time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekCalls = append(m.seekCalls, delta)
	m.position += delta
	if m.position < 0 {
		m.position = 0
	}
}

func (m *Mock) SeekTo(pos time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	m.position = pos
}

func (m *Mock) SetRate(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = rate
}

func (m *Mock) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

func (m *Mock) Events() <-chan Event {
	return m.events
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.events)
	return nil
}

func (m *Mock) sendLocked(ev Event) {
	if m.closed {
		return
	}
	select {
	case m.events <- ev:
	default:
	}
}

// Test helpers

// SetLoadError makes subsequent loads fail with err.
func (m *Mock) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// GateLoads makes subsequent loads block until the returned channel is
// closed (or their context is canceled).
func (m *Mock) GateLoads() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadGate = make(chan struct{})
	return m.loadGate
}

// UngateLoads removes the load gate for future loads.
func (m *Mock) UngateLoads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadGate = nil
}

// SimulateCompleted simulates the stream reaching its natural end.
func (m *Mock) SimulateCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.IsActive() {
		return
	}
	m.state = Stopped
	m.sendLocked(Event{Type: EventCompleted})
}

// SetPosition sets the reported playback position.
func (m *Mock) SetPosition(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = d
}

// SetDuration sets the reported stream duration.
func (m *Mock) SetDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}

// LoadCalls returns the resources passed to Load so far.
func (m *Mock) LoadCalls() []queue.Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queue.Resource(nil), m.loadCalls...)
}

// SeekCalls returns the deltas passed to Seek so far.
func (m *Mock) SeekCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seekCalls...)
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
