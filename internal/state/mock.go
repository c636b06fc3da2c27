package state

import "sync"

// Mock is an in-memory test double for the store.
type Mock struct {
	mu         sync.Mutex
	queue      *QueueState
	settings   *Settings
	queueErr   error
	saveCalls  int
	closed     bool
	closeCalls int
}

// NewMock creates a new mock store.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) GetQueue() (*QueueState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queueErr != nil {
		return nil, m.queueErr
	}
	if m.queue == nil {
		return &QueueState{CurrentIndex: -1}, nil
	}
	q := *m.queue
	return &q, nil
}

func (m *Mock) SaveQueue(state QueueState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = &state
	m.saveCalls++
	return nil
}

func (m *Mock) SaveQueueDebounced(state QueueState) {
	_ = m.SaveQueue(state)
}

func (m *Mock) GetSettings() (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return nil, nil
	}
	s := *m.settings
	return &s, nil
}

func (m *Mock) SaveSettings(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closeCalls++
	return nil
}

// Test helpers

func (m *Mock) SetQueue(q QueueState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = &q
}

func (m *Mock) SetQueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueErr = err
}

func (m *Mock) SaveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls
}

func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
