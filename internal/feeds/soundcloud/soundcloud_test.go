package soundcloud

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpodder/gpodder-core/internal/config"
	"github.com/gpodder/gpodder-core/internal/fetch"
)

type fakeSource struct {
	url string
}

func (s *fakeSource) FeedURL() string                { return s.url }
func (s *fakeSource) SetFeedURL(url string)          { s.url = url }
func (s *fakeSource) Credentials() (string, string)  { return "", "" }
func (s *fakeSource) CacheHeaders() (string, string) { return "", "" }

// fakeAPI serves a user with two tracks and HEAD metadata for the streams.
func fakeAPI(t *testing.T) *Handler {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/users/alice.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id": 7, "username": "Alice", "permalink": "alice",
			"avatar_url": "http://img.example/alice.jpg", "description": "Beats"}`)
	})
	mux.HandleFunc("/users/7/tracks.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"collection": [
			{"id": 1, "title": "Track One", "permalink": "track-one",
			 "permalink_url": "https://soundcloud.com/alice/track-one",
			 "created_at": "2025/06/01 10:00:00 +0000", "duration": 120000,
			 "stream_url": "%s/stream/1"},
			{"id": 2, "title": "Track Two", "permalink": "track-two",
			 "permalink_url": "https://soundcloud.com/alice/track-two",
			 "created_at": "2025/06/02 10:00:00 +0000", "duration": 60000,
			 "download_url": "%s/download/2"}
		], "next_href": ""}`, server.URL, server.URL)
	})
	mux.HandleFunc("/users/7/favorites.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"collection": [
			{"id": 3, "title": "Liked Track", "permalink": "liked-track",
			 "created_at": "2025/06/03 10:00:00 +0000", "duration": 30000,
			 "stream_url": "%s/stream/3"}
		], "next_href": ""}`, server.URL)
	})
	mux.HandleFunc("/stream/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", "4096")
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/ogg")
		w.Header().Set("Content-Length", "8192")
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	h := NewHandler(fetch.NewClient(config.TestConfig()))
	h.apiRoot = server.URL
	return h
}

func TestResolve_IgnoresOtherURLs(t *testing.T) {
	h := NewHandler(fetch.NewClient(config.TestConfig()))

	for _, url := range []string{
		"http://example.com/feed.xml",
		"https://soundcloud.com/alice/one-track",
	} {
		feed, err := h.Resolve(context.Background(), &fakeSource{url: url}, 0)
		require.NoError(t, err)
		assert.Nil(t, feed)
	}
}

func TestResolve_BuildsFeedFromAPI(t *testing.T) {
	h := fakeAPI(t)

	feed, err := h.Resolve(context.Background(), &fakeSource{url: "https://soundcloud.com/alice"}, 0)
	require.NoError(t, err)
	require.NotNil(t, feed)

	assert.Equal(t, "Alice on SoundCloud", feed.Title)
	assert.Equal(t, "https://soundcloud.com/alice", feed.Link)
	assert.Equal(t, "http://img.example/alice.jpg", feed.CoverURL)
	require.Len(t, feed.Items, 2)

	first := feed.Items[0]
	assert.Equal(t, "track-one", first.GUID)
	assert.Equal(t, "Track One", first.Title)
	assert.True(t, strings.Contains(first.URL, "consumer_key="), "stream URLs carry the consumer key")
	assert.Equal(t, "audio/mpeg", first.MimeType)
	assert.Equal(t, int64(4096), first.FileSize)
	assert.Equal(t, 120, first.Duration)
	assert.Equal(t, 2025, first.Published.Year())

	second := feed.Items[1]
	assert.True(t, strings.HasPrefix(second.URL, h.apiRoot+"/download/2"),
		"download URLs are preferred over stream URLs")
	assert.Equal(t, "audio/ogg", second.MimeType)
}

func TestResolve_Favorites(t *testing.T) {
	h := fakeAPI(t)

	feed, err := h.Resolve(context.Background(), &fakeSource{url: "https://soundcloud.com/alice/favorites"}, 0)
	require.NoError(t, err)
	require.NotNil(t, feed)

	assert.Equal(t, "Tracks favorited by Alice on SoundCloud", feed.Title)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "liked-track", feed.Items[0].GUID)
}

func TestMetadataCache(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", "100")
	}))
	defer server.Close()

	h := NewHandler(fetch.NewClient(config.TestConfig()))

	for i := 0; i < 3; i++ {
		meta, err := h.metadata(context.Background(), 42, server.URL)
		require.NoError(t, err)
		assert.Equal(t, int64(100), meta.FileSize)
	}
	assert.Equal(t, 1, requests, "metadata is probed once per track")
}

func TestMetadataCache_Concurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", "100")
	}))
	defer server.Close()

	h := NewHandler(fetch.NewClient(config.TestConfig()))

	// Podcasts update in parallel and share one handler instance.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(trackID int64) {
			defer wg.Done()
			_, err := h.metadata(context.Background(), trackID, server.URL)
			assert.NoError(t, err)
		}(int64(i % 4))
	}
	wg.Wait()
}

func TestShortcuts(t *testing.T) {
	shortcuts := NewHandler(fetch.NewClient(config.TestConfig())).Shortcuts()
	assert.Equal(t, "https://soundcloud.com/%s", shortcuts["sc"])
	assert.Equal(t, "https://soundcloud.com/%s/favorites", shortcuts["scfav"])
}
