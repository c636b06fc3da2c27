package state

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	zlog "github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName      = "readout"
	dbFileName   = "readout.db"
	saveDebounce = 500 * time.Millisecond
)

// Manager is the durable store for the playing queue and playback settings.
// Saves are debounced: rapid successive SaveQueueDebounced calls collapse
// into one write per debounce interval, and a failed write is retried on
// the next interval instead of being surfaced.
type Manager struct {
	db        *sql.DB
	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   *QueueState
}

// Open opens (or creates) the store in the XDG data directory.
func Open() (*Manager, error) {
	dbPath, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return nil, err
	}
	return OpenAt(dbPath)
}

// OpenAt opens (or creates) the store at an explicit path.
func OpenAt(dbPath string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{db: db}, nil
}

// SaveQueueDebounced schedules a queue save. Only the most recent state is
// written; the write happens at most once per debounce interval.
func (m *Manager) SaveQueueDebounced(state QueueState) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pending = &state

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.saveTimer = time.AfterFunc(saveDebounce, m.flushPending)
}

func (m *Manager) flushPending() {
	m.saveMu.Lock()
	pending := m.pending
	m.pending = nil
	m.saveMu.Unlock()

	if pending == nil {
		return
	}
	if err := saveQueue(m.db, *pending); err != nil {
		zlog.Warn().Err(err).Msg("queue save failed, will retry on next debounce")
		m.saveMu.Lock()
		// Keep the failed state for retry unless something newer arrived.
		if m.pending == nil {
			m.pending = pending
			if m.saveTimer != nil {
				m.saveTimer.Stop()
			}
			m.saveTimer = time.AfterFunc(saveDebounce, m.flushPending)
		}
		m.saveMu.Unlock()
	}
}

// SaveQueue writes the queue state immediately.
func (m *Manager) SaveQueue(state QueueState) error {
	return saveQueue(m.db, state)
}

// GetQueue reads the saved queue state. A store with no saved queue yields
// an empty state with cursor -1, not an error.
func (m *Manager) GetQueue() (*QueueState, error) {
	return getQueue(m.db)
}

// SaveSettings writes playback settings immediately.
func (m *Manager) SaveSettings(s Settings) error {
	return saveSettings(m.db, s)
}

// GetSettings reads playback settings. A nil result with no error means
// nothing has been stored yet.
func (m *Manager) GetSettings() (*Settings, error) {
	return getSettings(m.db)
}

// Close flushes any pending debounced save and closes the store.
func (m *Manager) Close() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	pending := m.pending
	m.pending = nil
	m.saveMu.Unlock()

	if pending != nil {
		if err := saveQueue(m.db, *pending); err != nil {
			zlog.Warn().Err(err).Msg("final queue save failed")
		}
	}

	return m.db.Close()
}
