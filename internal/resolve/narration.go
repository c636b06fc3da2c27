package resolve

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Duckduckgot/gtts"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/lmorel/readout/internal/queue"
)

// TextSource supplies the body text of a saved article. Content
// acquisition lives outside this core; only this narrow contract is used.
type TextSource interface {
	ArticleText(ctx context.Context, id string) (string, error)
}

// TextSourceFunc adapts a function to the TextSource interface.
type TextSourceFunc func(ctx context.Context, id string) (string, error)

func (f TextSourceFunc) ArticleText(ctx context.Context, id string) (string, error) {
	return f(ctx, id)
}

// Narrator resolves articles by synthesizing narration audio into the
// cache dir. Generated files are keyed by item id, so an item narrated
// once replays from cache.
type Narrator struct {
	speech   gtts.Speech
	texts    TextSource
	cacheDir string
}

// NewNarrator creates an article resolver generating speech in the given
// language under cacheDir.
func NewNarrator(language, cacheDir string, texts TextSource) *Narrator {
	return &Narrator{
		speech:   gtts.Speech{Folder: cacheDir, Language: language},
		texts:    texts,
		cacheDir: cacheDir,
	}
}

// Resolve returns the narration audio for the article, generating it if
// not cached yet.
func (n *Narrator) Resolve(ctx context.Context, item queue.Item) (queue.Resource, error) {
	cached := filepath.Join(n.cacheDir, item.ID+".mp3")
	if _, err := os.Stat(cached); err == nil {
		return queue.Resource{Path: cached}, nil
	}
	if err := ctx.Err(); err != nil {
		return queue.Resource{}, err
	}

	if n.texts == nil {
		return queue.Resource{}, errors.Mark(
			errors.New("no article text source configured"), ErrResolution)
	}
	text, err := n.texts.ArticleText(ctx, item.ID)
	if err != nil {
		return queue.Resource{}, resolutionError(err, "load article text")
	}
	if text == "" {
		return queue.Resource{}, errors.Mark(
			errors.Newf("article %s has no text", item.ID), ErrResolution)
	}

	if err := os.MkdirAll(n.cacheDir, 0o755); err != nil {
		return queue.Resource{}, resolutionError(err, "create narration cache dir")
	}

	// The generation call is synchronous; the orchestrator runs resolution
	// off the UI-serving goroutine and may cancel it via ctx.
	path, err := n.speech.CreateSpeechFile(text, item.ID)
	if err != nil {
		return queue.Resource{}, resolutionError(err, "generate narration")
	}
	if err := ctx.Err(); err != nil {
		return queue.Resource{}, err
	}

	zlog.Debug().Str("item", item.ID).Str("path", path).Msg("narration generated")
	return queue.Resource{Path: path}, nil
}

// Verify Narrator implements Resolver at compile time.
var _ Resolver = (*Narrator)(nil)
