package resolve

import (
	"context"
	"net/url"

	"github.com/cockroachdb/errors"

	"github.com/lmorel/readout/internal/queue"
)

// EpisodeValidator resolves podcast episodes. Episodes are enqueued with
// their stream URL already known, so resolution is a pass-through that
// validates the URL; the engine handles fetching and caching.
type EpisodeValidator struct{}

// NewEpisodeValidator creates an episode resolver.
func NewEpisodeValidator() *EpisodeValidator {
	return &EpisodeValidator{}
}

func (v *EpisodeValidator) Resolve(_ context.Context, item queue.Item) (queue.Resource, error) {
	raw := item.Resource.URL
	if raw == "" {
		return queue.Resource{}, errors.Mark(
			errors.Newf("episode %s has no stream url", item.ID), ErrResolution)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return queue.Resource{}, resolutionError(err, "parse stream url")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return queue.Resource{}, errors.Mark(
			errors.Newf("invalid stream url: %q", raw), ErrResolution)
	}
	return queue.Resource{URL: raw}, nil
}

// Verify EpisodeValidator implements Resolver at compile time.
var _ Resolver = (*EpisodeValidator)(nil)
