package engine

import "github.com/cockroachdb/errors"

// ErrPlayback marks transport failures: decode errors, unsupported
// formats, fetch failures. Use errors.Is to classify.
var ErrPlayback = errors.New("playback failed")

// ErrClosed is returned by commands on a closed engine.
var ErrClosed = errors.New("engine closed")

// errSuperseded is returned (never emitted) when a newer Load canceled
// this one.
var errSuperseded = errors.New("load superseded")

// playbackError wraps err as a transport failure.
func playbackError(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrPlayback)
}
