// Package resolve turns queue items lacking a playable resource into one:
// article narration through TTS generation, episode stream validation.
package resolve

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/lmorel/readout/internal/queue"
)

// ErrResolution marks failures to turn an item into playable audio.
// Use errors.Is to classify.
var ErrResolution = errors.New("resolution failed")

// Resolver produces a playable resource for one content kind.
type Resolver interface {
	Resolve(ctx context.Context, item queue.Item) (queue.Resource, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, item queue.Item) (queue.Resource, error)

func (f ResolverFunc) Resolve(ctx context.Context, item queue.Item) (queue.Resource, error) {
	return f(ctx, item)
}

// Registry dispatches resolution by content kind. Kinds are a closed set,
// so dispatch is a table lookup, never type inspection.
type Registry struct {
	resolvers map[queue.ContentKind]Resolver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[queue.ContentKind]Resolver)}
}

// Register installs the resolver for a kind, replacing any previous one.
func (r *Registry) Register(kind queue.ContentKind, resolver Resolver) {
	r.resolvers[kind] = resolver
}

// Resolve dispatches to the resolver for the item's kind.
func (r *Registry) Resolve(ctx context.Context, item queue.Item) (queue.Resource, error) {
	resolver, ok := r.resolvers[item.Kind]
	if !ok {
		return queue.Resource{}, errors.Mark(
			errors.Newf("no resolver for kind %q", item.Kind), ErrResolution)
	}
	return resolver.Resolve(ctx, item)
}

// resolutionError wraps err as a resolution failure.
func resolutionError(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrResolution)
}
