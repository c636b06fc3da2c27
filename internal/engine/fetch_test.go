package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchToCache_DownloadsAndReuses(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("fake-mp3-bytes"))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	url := srv.URL + "/episodes/12.mp3"

	path, err := fetchToCache(context.Background(), url, cacheDir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake-mp3-bytes", string(data))
	assert.Equal(t, 1, hits)

	// Second fetch reuses the cached file without a request.
	again, err := fetchToCache(context.Background(), url, cacheDir)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, 1, hits)
}

func TestFetchToCache_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := fetchToCache(context.Background(), srv.URL+"/gone.mp3", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlayback))
}

func TestFetchToCache_InvalidURL(t *testing.T) {
	_, err := fetchToCache(context.Background(), "not a url", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlayback))

	_, err = fetchToCache(context.Background(), "ftp://example.com/a.mp3", t.TempDir())
	require.Error(t, err)
}

func TestFetchToCache_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetchToCache(ctx, srv.URL+"/a.mp3", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCachePath_StableAndKeepsExtension(t *testing.T) {
	dir := t.TempDir()

	a, err := cachePath("https://cdn.example.com/show/ep.wav", dir)
	require.NoError(t, err)
	b, err := cachePath("https://cdn.example.com/show/ep.wav", dir)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, ".wav", a[len(a)-4:])

	c, err := cachePath("https://cdn.example.com/show/ep?fmt=stream", dir)
	require.NoError(t, err)
	assert.Equal(t, ".mp3", c[len(c)-4:])
}
