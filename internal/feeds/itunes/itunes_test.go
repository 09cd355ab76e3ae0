package itunes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpodder/gpodder-core/internal/config"
	"github.com/gpodder/gpodder-core/internal/fetch"
	"github.com/gpodder/gpodder-core/internal/registry"
)

type fakeSource struct {
	url string
}

func (s *fakeSource) FeedURL() string                { return s.url }
func (s *fakeSource) SetFeedURL(url string)          { s.url = url }
func (s *fakeSource) Credentials() (string, string)  { return "", "" }
func (s *fakeSource) CacheHeaders() (string, string) { return "", "" }

func handlerWithLookup(t *testing.T, response string) *Handler {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)

	h := NewHandler(fetch.NewClient(config.TestConfig()))
	h.lookupURL = server.URL + "?id=%s"
	return h
}

func TestResolve_IgnoresOtherURLs(t *testing.T) {
	h := NewHandler(fetch.NewClient(config.TestConfig()))

	for _, url := range []string{
		"http://example.com/feed.xml",
		"https://www.youtube.com/watch?v=abc",
		"https://apple.com/podcast/id123",
	} {
		src := &fakeSource{url: url}
		feed, err := h.Resolve(context.Background(), src, 0)
		require.NoError(t, err)
		assert.Nil(t, feed)
		assert.Equal(t, url, src.url, "a declined URL must not be rewritten")
	}
}

func TestResolve_RewritesToFeedURL(t *testing.T) {
	h := handlerWithLookup(t, `{"resultCount": 1, "results": [{"feedUrl": "http://real.example/feed.xml"}]}`)

	src := &fakeSource{url: "https://podcasts.apple.com/us/podcast/some-show/id1234567"}
	feed, err := h.Resolve(context.Background(), src, 0)
	require.NoError(t, err)
	assert.Nil(t, feed, "the handler rewrites and declines; the chain continues")
	assert.Equal(t, "http://real.example/feed.xml", src.url)
}

func TestResolve_LegacyItunesHost(t *testing.T) {
	h := handlerWithLookup(t, `{"resultCount": 1, "results": [{"feedUrl": "http://real.example/feed.xml"}]}`)

	src := &fakeSource{url: "https://itunes.apple.com/podcast/some-show/id7654321"}
	_, err := h.Resolve(context.Background(), src, 0)
	require.NoError(t, err)
	assert.Equal(t, "http://real.example/feed.xml", src.url)
}

func TestResolve_BadCardinalityIsSourceError(t *testing.T) {
	h := handlerWithLookup(t, `{"resultCount": 0, "results": []}`)

	src := &fakeSource{url: "https://podcasts.apple.com/us/podcast/gone/id999"}
	_, err := h.Resolve(context.Background(), src, 0)

	var sourceErr *registry.SourceError
	require.ErrorAs(t, err, &sourceErr)
	assert.Equal(t, "itunes", sourceErr.Source)
	assert.Equal(t, "https://podcasts.apple.com/us/podcast/gone/id999", src.url,
		"a failed lookup must not rewrite the URL")
}

func TestResolve_MissingFeedURLIsSourceError(t *testing.T) {
	h := handlerWithLookup(t, `{"resultCount": 1, "results": [{}]}`)

	src := &fakeSource{url: "https://podcasts.apple.com/us/podcast/odd/id42"}
	_, err := h.Resolve(context.Background(), src, 0)

	var sourceErr *registry.SourceError
	require.ErrorAs(t, err, &sourceErr)
}
