package queue

import (
	"time"

	"github.com/google/uuid"
)

// ContentKind identifies the source a queue item was created from.
// It is a closed set: every kind has a skip interval and a resolver.
type ContentKind string

const (
	KindArticle ContentKind = "article"
	KindEpisode ContentKind = "episode"
)

// SkipInterval returns the seek delta applied by skip commands for this kind.
func (k ContentKind) SkipInterval() time.Duration {
	if k == KindEpisode {
		return 30 * time.Second
	}
	return 15 * time.Second
}

// Valid reports whether k is a known content kind.
func (k ContentKind) Valid() bool {
	return k == KindArticle || k == KindEpisode
}

// Resource is an opaque playable audio reference: either a local file
// (generated narration, cached download) or a remote stream URL.
type Resource struct {
	Path string // local file path, empty if remote
	URL  string // remote stream URL, empty if local
}

// IsZero reports whether the resource still has to be resolved.
func (r Resource) IsZero() bool {
	return r.Path == "" && r.URL == ""
}

// IsRemote reports whether the resource points at a remote stream.
func (r Resource) IsRemote() bool {
	return r.Path == "" && r.URL != ""
}

// Item is a single entry of the playing queue.
//
// Position and Duration are maintained by the orchestrator as playback
// progresses; the rest is set when the item is enqueued.
type Item struct {
	ID       string
	Kind     ContentKind
	Title    string
	Author   string
	Resource Resource      // zero value if audio must still be generated
	Position time.Duration // last known resume position
	Duration time.Duration // 0 if unknown
}

// NewItem creates an item with a fresh identity and no resource.
func NewItem(kind ContentKind, title, author string) Item {
	return Item{
		ID:     uuid.NewString(),
		Kind:   kind,
		Title:  title,
		Author: author,
	}
}
