//go:build linux

// Package mpris exposes playback over the MPRIS D-Bus interface so
// desktop media keys and applets can drive the service.
package mpris

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/lmorel/readout/internal/playback"
)

// Adapter connects the playback service to MPRIS over D-Bus.
type Adapter struct {
	service playback.Service
	server  *server.Server
}

// New creates and starts a new MPRIS adapter.
func New(service playback.Service) (*Adapter, error) {
	a := &Adapter{
		service: service,
	}

	rootAdapter := &rootAdapter{}
	playerAdapter := &playerAdapter{service: service}

	a.server = server.NewServer("readout", rootAdapter, playerAdapter)

	go func() {
		_ = a.server.Listen()
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	return nil // Not supported - app manages its own lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil // Track list interface not implemented
}

func (r *rootAdapter) Identity() (string, error) {
	return "Readout", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file", "https"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/mp3", "audio/wav"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter.
type playerAdapter struct {
	service playback.Service
}

func (p *playerAdapter) Next() error {
	return p.service.PlayNext()
}

func (p *playerAdapter) Previous() error {
	return p.service.PlayPrevious()
}

func (p *playerAdapter) Pause() error {
	if p.service.State() == playback.StatePlaying {
		return p.service.TogglePlayPause()
	}
	return nil
}

func (p *playerAdapter) PlayPause() error {
	return p.service.TogglePlayPause()
}

func (p *playerAdapter) Stop() error {
	return p.service.Stop()
}

func (p *playerAdapter) Play() error {
	if p.service.State() == playback.StatePlaying {
		return nil
	}
	return p.service.TogglePlayPause()
}

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	delta := time.Duration(offset) * time.Microsecond
	return p.service.SeekTo(p.service.Position() + delta)
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	return p.service.SeekTo(time.Duration(position) * time.Microsecond)
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.service.State() {
	case playback.StatePlaying, playback.StateLoading:
		return types.PlaybackStatusPlaying, nil
	case playback.StatePaused:
		return types.PlaybackStatusPaused, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return p.service.Rate(), nil
}

func (p *playerAdapter) SetRate(rate float64) error {
	return p.service.SetRate(rate)
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	item := p.service.CurrentItem()
	if item == nil {
		return types.Metadata{}, nil
	}

	return types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(item.ID)),
		Length:  types.Microseconds(item.Duration.Microseconds()),
		Title:   item.Title,
		Artist:  []string{item.Author},
	}, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return 1.0, nil // Volume control not exposed via service
}

func (p *playerAdapter) SetVolume(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Position() (int64, error) {
	return p.service.Position().Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 0.5, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 3.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return p.service.QueueHasNext(), nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.service.QueueHasPrevious(), nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return !p.service.QueueIsEmpty(), nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

func formatTrackID(id string) string {
	h := fnv.New64a()
	h.Write([]byte(id))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
