package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	zlog "github.com/rs/zerolog/log"
)

// fetchToCache downloads a remote stream into the cache dir and returns
// the local path. An already-cached download is reused without a request.
// A local file is needed because decoding a network body is not seekable.
func fetchToCache(ctx context.Context, rawURL, cacheDir string) (string, error) {
	target, err := cachePath(rawURL, cacheDir)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", playbackError(err, "create audio cache dir")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", playbackError(err, "build stream request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", playbackError(err, "fetch stream")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Mark(
			errors.Newf("fetch stream: unexpected status %s", resp.Status), ErrPlayback)
	}

	tmp, err := os.CreateTemp(cacheDir, "fetch-*")
	if err != nil {
		return "", playbackError(err, "create cache file")
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", playbackError(err, "download stream")
	}
	if err := tmp.Close(); err != nil {
		return "", playbackError(err, "write cache file")
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", playbackError(err, "store cache file")
	}

	zlog.Debug().
		Str("url", rawURL).
		Str("path", target).
		Str("size", humanize.Bytes(uint64(written))).
		Msg("cached remote audio")
	return target, nil
}

// cachePath derives a stable cache file name from the URL, keeping the
// extension so the decoder can be picked.
func cachePath(rawURL, cacheDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", errors.Mark(errors.Newf("invalid stream url: %q", rawURL), ErrPlayback)
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if ext != ".mp3" && ext != ".wav" {
		ext = ".mp3"
	}

	h := fnv.New64a()
	h.Write([]byte(rawURL))
	return filepath.Join(cacheDir, fmt.Sprintf("%x%s", h.Sum64(), ext)), nil
}
