// Package service assembles the playback stack behind a single connection
// facade: persistent store, engine, resolvers, orchestrator, snapshot
// bridge and the desktop media remote.
package service

import (
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/lmorel/readout/internal/config"
	"github.com/lmorel/readout/internal/engine"
	"github.com/lmorel/readout/internal/mpris"
	"github.com/lmorel/readout/internal/playback"
	"github.com/lmorel/readout/internal/queue"
	"github.com/lmorel/readout/internal/resolve"
	"github.com/lmorel/readout/internal/state"
)

// ErrNotConnected is returned when the playback stack is used before
// Connect has completed.
var ErrNotConnected = errors.New("playback service not connected")

// ConnectionState tracks the facade lifecycle.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// Connection owns the whole playback stack. Creating one is cheap; all
// I/O (database open, queue restore, audio device init) happens inside
// Connect, off the caller's goroutine.
type Connection struct {
	cfg   *config.Config
	texts resolve.TextSource

	mu         sync.Mutex
	connState  ConnectionState
	ready      chan struct{}
	connectErr error

	store  state.Interface
	svc    playback.Service
	bridge *playback.Bridge
	remote io.Closer

	// Injection points for tests.
	openStore func() (state.Interface, error)
	newEngine func(cacheDir string) engine.Interface
	newRemote func(svc playback.Service) (io.Closer, error)
}

// New creates a disconnected facade. texts supplies article bodies for
// narration and may be nil if no articles will be played.
func New(cfg *config.Config, texts resolve.TextSource) *Connection {
	return &Connection{
		cfg:       cfg,
		texts:     texts,
		connState: Disconnected,
		openStore: func() (state.Interface, error) { return state.Open() },
		newEngine: func(cacheDir string) engine.Interface { return engine.New(cacheDir) },
		newRemote: func(svc playback.Service) (io.Closer, error) { return mpris.New(svc) },
	}
}

// Connect brings the stack up in the background and returns a channel
// closed when it is ready (successfully or not; check ConnectErr).
// Calling Connect again while connecting or connected returns the same
// channel without doing any work.
func (c *Connection) Connect() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready != nil {
		return c.ready
	}
	c.connState = Connecting
	c.ready = make(chan struct{})
	go c.connect(c.ready)
	return c.ready
}

func (c *Connection) connect(ready chan struct{}) {
	defer close(ready)
	start := time.Now()

	store, err := c.openStore()
	if err != nil {
		c.fail(errors.Wrap(err, "open state store"))
		return
	}

	saved, err := store.GetQueue()
	if err != nil {
		// Corrupt or unreadable queue data degrades to an empty queue;
		// losing the queue is preferable to refusing to play.
		zlog.Warn().Err(err).Msg("queue restore failed, starting empty")
		saved = &state.QueueState{CurrentIndex: -1}
	}
	q := restoreQueue(saved)

	settings, err := store.GetSettings()
	if err != nil {
		zlog.Warn().Err(err).Msg("settings unreadable, using config values")
		settings = nil
	}
	if settings == nil {
		// Nothing stored yet: seed from config.
		settings = &state.Settings{
			Rate:        c.cfg.Rate(),
			AutoAdvance: c.cfg.AutoAdvance(),
		}
	}

	registry := resolve.NewRegistry()
	registry.Register(queue.KindArticle, resolve.NewNarrator(
		c.cfg.NarrationLanguage(), c.cfg.NarrationCacheDir(), c.texts))
	registry.Register(queue.KindEpisode, resolve.NewEpisodeValidator())

	eng := c.newEngine(c.cfg.NarrationCacheDir())
	svc := playback.New(eng, q, registry, store, playback.Options{
		AutoAdvance: settings.AutoAdvance,
		Rate:        settings.Rate,
	})
	bridge := playback.NewBridge(svc)

	// The media remote is best-effort: no D-Bus session just means no
	// desktop integration.
	remote, err := c.newRemote(svc)
	if err != nil {
		zlog.Warn().Err(err).Msg("media remote unavailable")
		remote = nil
	}

	c.mu.Lock()
	c.store = store
	c.svc = svc
	c.bridge = bridge
	c.remote = remote
	c.connState = Connected
	c.mu.Unlock()

	zlog.Info().
		Int("queue_items", q.Len()).
		Float64("rate", settings.Rate).
		Dur("elapsed", time.Since(start)).
		Msg("playback service connected")
}

func (c *Connection) fail(err error) {
	c.mu.Lock()
	c.connectErr = err
	c.connState = Disconnected
	c.ready = nil
	c.mu.Unlock()
	zlog.Error().Err(err).Msg("playback service connect failed")
}

// ConnectErr returns the failure of the last connect attempt, if any.
func (c *Connection) ConnectErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectErr
}

// State returns the current connection state.
func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// Service returns the playback service, or ErrNotConnected before
// Connect has completed.
func (c *Connection) Service() (playback.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connState != Connected {
		return nil, ErrNotConnected
	}
	return c.svc, nil
}

// Bridge returns the snapshot bridge, or ErrNotConnected before Connect
// has completed.
func (c *Connection) Bridge() (*playback.Bridge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connState != Connected {
		return nil, ErrNotConnected
	}
	return c.bridge, nil
}

// Disconnect tears the stack down: remote first so no more commands
// arrive, then the bridge, the service (which flushes its engine), and
// finally the store so the debounced queue save lands. Idempotent.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.connState == Connecting {
		ready := c.ready
		c.mu.Unlock()
		<-ready
		c.mu.Lock()
	}
	if c.connState != Connected {
		c.mu.Unlock()
		return nil
	}
	c.connState = Disconnected
	c.ready = nil
	store, svc, bridge, remote := c.store, c.svc, c.bridge, c.remote
	c.store, c.svc, c.bridge, c.remote = nil, nil, nil, nil
	c.mu.Unlock()

	var firstErr error
	if remote != nil {
		if err := remote.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "close media remote")
		}
	}
	bridge.Close()
	if err := svc.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "close playback service")
	}
	if err := store.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "close state store")
	}
	return firstErr
}

// restoreQueue rebuilds the in-memory queue from its stored form.
func restoreQueue(saved *state.QueueState) *queue.PlayingQueue {
	items := make([]queue.Item, 0, len(saved.Items))
	for _, it := range saved.Items {
		kind := queue.ContentKind(it.Kind)
		if !kind.Valid() {
			zlog.Warn().Str("item", it.ItemID).Str("kind", it.Kind).
				Msg("dropping stored item with unknown kind")
			continue
		}
		items = append(items, queue.Item{
			ID:       it.ItemID,
			Kind:     kind,
			Title:    it.Title,
			Author:   it.Author,
			Resource: queue.Resource{Path: it.Path, URL: it.URL},
			Position: time.Duration(it.PositionMS) * time.Millisecond,
			Duration: time.Duration(it.DurationMS) * time.Millisecond,
		})
	}
	return queue.Restore(items, saved.CurrentIndex)
}
