package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/lmorel/readout/internal/queue"
)

const (
	outputSampleRate = beep.SampleRate(44100)
	resampleQuality  = 4
	eventBufferSize  = 32

	minRate = 0.5
	maxRate = 3.0
)

var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(outputSampleRate, outputSampleRate.N(100*time.Millisecond))
	})
	return speakerErr
}

// Engine drives the single underlying audio transport. Remote resources
// are fetched into the cache dir before decoding so the stream is seekable.
type Engine struct {
	mu sync.Mutex

	state     State
	streamer  beep.StreamSeekCloser
	format    beep.Format
	resampler *beep.Resampler
	ctrl      *beep.Ctrl
	file      *os.File
	rate      float64

	gen    int // load generation; stale outcomes are discarded
	events chan Event
	closed bool

	cacheDir string
}

// New creates a stopped engine. cacheDir receives fetched remote audio.
func New(cacheDir string) *Engine {
	return &Engine{
		rate:     1.0,
		events:   make(chan Event, eventBufferSize),
		cacheDir: cacheDir,
	}
}

// Load stops any current playback, decodes the resource and starts playing
// it. On success EventPlaying follows EventLoading; on failure EventFailed
// is emitted once. A load superseded by a newer Load, or canceled through
// ctx, produces no event. An already-canceled ctx is rejected before any
// state is touched, so a stale caller cannot disturb the current stream.
func (e *Engine) Load(ctx context.Context, res queue.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.gen++
	gen := e.gen
	e.releaseLocked()
	e.state = Loading
	e.mu.Unlock()
	e.emit(Event{Type: EventLoading})

	path := res.Path
	if res.IsRemote() {
		var err error
		path, err = fetchToCache(ctx, res.URL, e.cacheDir)
		if err != nil {
			return e.failLoad(gen, err)
		}
	}
	if path == "" {
		return e.failLoad(gen, errors.Mark(errors.New("resource has no audio"), ErrPlayback))
	}

	f, err := os.Open(path)
	if err != nil {
		return e.failLoad(gen, playbackError(err, "open audio file"))
	}
	streamer, format, err := decode(f, path)
	if err != nil {
		f.Close()
		return e.failLoad(gen, err)
	}
	if err := initSpeaker(); err != nil {
		streamer.Close()
		f.Close()
		return e.failLoad(gen, playbackError(err, "initialize audio output"))
	}

	e.mu.Lock()
	if e.closed || gen != e.gen || ctx.Err() != nil {
		e.mu.Unlock()
		streamer.Close()
		f.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errSuperseded
	}
	e.streamer = streamer
	e.format = format
	e.file = f
	e.resampler = beep.ResampleRatio(resampleQuality, e.ratioLocked(format), streamer)
	e.ctrl = &beep.Ctrl{Streamer: e.resampler}
	ctrl := e.ctrl
	e.state = Playing
	e.mu.Unlock()

	speaker.Clear()
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		// The callback runs on the speaker goroutine with its lock held;
		// finishing must not touch the speaker synchronously.
		go e.finished(gen)
	})))
	e.emit(Event{Type: EventPlaying})
	return nil
}

// Play resumes paused playback. No-op otherwise.
func (e *Engine) Play() {
	e.mu.Lock()
	if e.state != Paused || e.ctrl == nil {
		e.mu.Unlock()
		return
	}
	speaker.Lock()
	e.ctrl.Paused = false
	speaker.Unlock()
	e.state = Playing
	e.mu.Unlock()
	e.emit(Event{Type: EventPlaying})
}

// Pause pauses playback. No-op unless playing.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.state != Playing || e.ctrl == nil {
		e.mu.Unlock()
		return
	}
	speaker.Lock()
	e.ctrl.Paused = true
	speaker.Unlock()
	e.state = Paused
	e.mu.Unlock()
	e.emit(Event{Type: EventPaused})
}

// Stop stops playback and releases the transport. No-op if stopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == Stopped {
		e.mu.Unlock()
		return
	}
	e.gen++ // invalidate any in-flight load
	wasActive := e.streamer != nil
	e.releaseLocked()
	e.state = Stopped
	e.mu.Unlock()
	if wasActive {
		speaker.Clear()
	}
	e.emit(Event{Type: EventStopped})
}

// State returns the current transport state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Position returns the playback position within the loaded stream.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.streamer == nil {
		return 0
	}
	return e.format.SampleRate.D(e.streamer.Position())
}

// Duration returns the loaded stream's total duration (0 if none loaded).
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.streamer == nil {
		return 0
	}
	return e.format.SampleRate.D(e.streamer.Len())
}

// Seek moves the position by delta. Convenience wrapper over SeekTo.
func (e *Engine) Seek(delta time.Duration) {
	e.SeekTo(e.Position() + delta)
}

// SeekTo moves the position, clamped to [0, duration]. Seeking at or past
// the end completes the stream. Ignored if no resource is loaded.
func (e *Engine) SeekTo(pos time.Duration) {
	e.mu.Lock()
	if e.streamer == nil || !e.state.IsActive() {
		e.mu.Unlock()
		return
	}
	gen := e.gen
	if pos < 0 {
		pos = 0
	}
	target := e.format.SampleRate.N(pos)
	if target >= e.streamer.Len() {
		e.mu.Unlock()
		e.finished(gen)
		return
	}
	speaker.Lock()
	if err := e.streamer.Seek(target); err != nil {
		zlog.Warn().Err(err).Msg("seek failed")
	}
	speaker.Unlock()
	e.mu.Unlock()
}

// SetRate applies a playback-rate multiplier immediately. The value is
// clamped to a sane range; persistence is the caller's concern.
func (e *Engine) SetRate(rate float64) {
	rate = min(max(rate, minRate), maxRate)
	e.mu.Lock()
	e.rate = rate
	if e.resampler != nil {
		ratio := e.ratioLocked(e.format)
		speaker.Lock()
		e.resampler.SetRatio(ratio)
		speaker.Unlock()
	}
	e.mu.Unlock()
}

// Rate returns the current rate multiplier.
func (e *Engine) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// Events returns the transport event channel. Closed by Close.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Close stops playback and closes the event channel.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.gen++
	wasActive := e.streamer != nil
	e.releaseLocked()
	e.state = Stopped
	close(e.events)
	e.mu.Unlock()
	if wasActive {
		speaker.Clear()
	}
	return nil
}

// ratioLocked computes the resample ratio mapping the stream's sample rate
// onto the output device, scaled by the rate multiplier.
func (e *Engine) ratioLocked(format beep.Format) float64 {
	return float64(format.SampleRate) / float64(outputSampleRate) * e.rate
}

// releaseLocked closes the streamer and file. Caller holds e.mu.
func (e *Engine) releaseLocked() {
	if e.streamer != nil {
		e.streamer.Close()
		e.streamer = nil
	}
	if e.file != nil {
		e.file.Close()
		e.file = nil
	}
	e.resampler = nil
	e.ctrl = nil
}

// finished handles natural end of stream for the given load generation.
func (e *Engine) finished(gen int) {
	e.mu.Lock()
	if e.closed || gen != e.gen || !e.state.IsActive() {
		e.mu.Unlock()
		return
	}
	e.releaseLocked()
	e.state = Stopped
	e.mu.Unlock()
	e.emit(Event{Type: EventCompleted})
}

// failLoad reports a load failure unless the load was superseded or
// canceled, in which case the outcome is discarded silently.
func (e *Engine) failLoad(gen int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	e.mu.Lock()
	if e.closed || gen != e.gen {
		e.mu.Unlock()
		return err
	}
	e.state = Stopped
	e.mu.Unlock()
	e.emit(Event{Type: EventFailed, Err: err})
	return err
}

// emit sends an event without blocking; a full buffer drops the event.
func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	select {
	case e.events <- ev:
	default:
		zlog.Warn().Stringer("event", ev.Type).Msg("engine event buffer full, dropping")
	}
	e.mu.Unlock()
}

// decode picks a decoder from the file extension.
func decode(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		s, format, err := mp3.Decode(f)
		if err != nil {
			return nil, beep.Format{}, playbackError(err, "decode mp3")
		}
		return s, format, nil
	case ".wav":
		s, format, err := wav.Decode(f)
		if err != nil {
			return nil, beep.Format{}, playbackError(err, "decode wav")
		}
		return s, format, nil
	default:
		return nil, beep.Format{}, errors.Mark(
			errors.Newf("unsupported format: %s", filepath.Ext(path)), ErrPlayback)
	}
}
