package registry

import (
	"context"
	"fmt"
	"time"
)

// FeedSource is the engine's view of a podcast subscription as seen by feed
// handlers. Handlers may rewrite the feed URL as a side effect (redirect
// resolution) before passing the feed on to the next handler in the chain.
type FeedSource interface {
	FeedURL() string
	SetFeedURL(url string)
	Credentials() (username, password string)
	CacheHeaders() (etag, lastModified string)
}

// Item is one feed entry as delivered by a handler. The reconciliation
// engine turns items into episodes.
type Item struct {
	GUID            string
	Title           string
	Description     string
	DescriptionHTML string
	Link            string
	URL             string // enclosure URL
	MimeType        string
	FileSize        int64
	Published       time.Time
	Duration        int // seconds, 0 if unknown
	PaymentURL      string
	ArtURL          string
	Chapters        []Chapter
}

type Chapter struct {
	Start float64
	Title string
}

// Feed is the result of a successful feed resolution. NotModified marks the
// HTTP 304 outcome: a first-class success that carries no metadata or items.
type Feed struct {
	NotModified bool

	Title        string
	Link         string
	Description  string
	CoverURL     string
	PaymentURL   string
	ETag         string
	LastModified string
	// Serial is set when the feed declares itself a serial show; the engine
	// switches the podcast to chronological ordering.
	Serial bool

	Items []Item
}

// FeedHandler resolves a subscription URL into a Feed. Returning (nil, nil)
// means "not my feed" and the chain continues; returning an error means
// "my feed, but it failed" and aborts the whole update.
type FeedHandler interface {
	Name() string
	Resolve(ctx context.Context, src FeedSource, maxEpisodes int) (*Feed, error)
}

// DownloadURLResolver turns an enclosure URL into a directly fetchable URL.
// Empty result means no opinion.
type DownloadURLResolver func(ctx context.Context, enclosureURL string) (string, error)

// BasenameResolver lets a source plugin override the derived episode base
// name. Empty result means no opinion.
type BasenameResolver func(enclosureURL, base, sanitizedTitle string) string

// TitleResolver rewrites a feed-supplied podcast title. Empty result means
// no opinion.
type TitleResolver func(title string) string

// ContentTypeResolver classifies an enclosure URL as "audio", "video" or
// "" (no opinion).
type ContentTypeResolver func(enclosureURL string) string

// CoverArtResolver supplies an alternative cover art URL for a feed. Empty
// result means no opinion.
type CoverArtResolver func(ctx context.Context, feedURL, coverURL string) string

// ShortcutProvider contributes URL shortcut prefixes, mapping a prefix to
// an expansion template with a single %s.
type ShortcutProvider func() map[string]string

// NoHandlerError reports that no feed handler accepted a URL.
type NoHandlerError struct {
	URL string
}

func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("no feed handler for %s", e.URL)
}

// SourceError wraps a failure raised by a specific source plugin. It is
// propagated unchanged through the resolution chain.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Registry holds the ordered handler chains for every extension point.
// Resolution order is registration order; the first non-absent answer wins.
// A Registry is built explicitly at startup and passed into the engine, so
// tests can run with their own handler sets.
type Registry struct {
	feedHandlers     []FeedHandler
	fallbackHandlers []FeedHandler
	downloadURL      []DownloadURLResolver
	episodeBasename  []BasenameResolver
	podcastTitle     []TitleResolver
	contentType      []ContentTypeResolver
	coverArt         []CoverArtResolver
	shortcuts        []ShortcutProvider
}

func New() *Registry {
	return &Registry{}
}

func (r *Registry) RegisterFeedHandler(h FeedHandler) {
	r.feedHandlers = append(r.feedHandlers, h)
}

func (r *Registry) RegisterFallbackFeedHandler(h FeedHandler) {
	r.fallbackHandlers = append(r.fallbackHandlers, h)
}

func (r *Registry) RegisterDownloadURL(f DownloadURLResolver) {
	r.downloadURL = append(r.downloadURL, f)
}

func (r *Registry) RegisterEpisodeBasename(f BasenameResolver) {
	r.episodeBasename = append(r.episodeBasename, f)
}

func (r *Registry) RegisterPodcastTitle(f TitleResolver) {
	r.podcastTitle = append(r.podcastTitle, f)
}

func (r *Registry) RegisterContentType(f ContentTypeResolver) {
	r.contentType = append(r.contentType, f)
}

func (r *Registry) RegisterCoverArt(f CoverArtResolver) {
	r.coverArt = append(r.coverArt, f)
}

func (r *Registry) RegisterShortcuts(f ShortcutProvider) {
	r.shortcuts = append(r.shortcuts, f)
}

// ResolveFeed tries the feed handler chain, then the fallback chain. The
// first handler returning a feed wins; handler errors abort immediately.
func (r *Registry) ResolveFeed(ctx context.Context, src FeedSource, maxEpisodes int) (*Feed, error) {
	for _, chain := range [][]FeedHandler{r.feedHandlers, r.fallbackHandlers} {
		for _, h := range chain {
			feed, err := h.Resolve(ctx, src, maxEpisodes)
			if err != nil {
				return nil, err
			}
			if feed != nil {
				return feed, nil
			}
		}
	}

	return nil, &NoHandlerError{URL: src.FeedURL()}
}

// ResolveDownloadURL returns a fetchable URL for the enclosure, or "" when
// no resolver has an opinion.
func (r *Registry) ResolveDownloadURL(ctx context.Context, enclosureURL string) (string, error) {
	for _, f := range r.downloadURL {
		url, err := f(ctx, enclosureURL)
		if err != nil {
			return "", err
		}
		if url != "" {
			return url, nil
		}
	}
	return "", nil
}

// ResolveEpisodeBasename returns a plugin-supplied base name, or "" when no
// resolver has an opinion.
func (r *Registry) ResolveEpisodeBasename(enclosureURL, base, sanitizedTitle string) string {
	for _, f := range r.episodeBasename {
		if name := f(enclosureURL, base, sanitizedTitle); name != "" {
			return name
		}
	}
	return ""
}

// ResolvePodcastTitle returns the possibly-rewritten podcast title; the
// input title is the fallback.
func (r *Registry) ResolvePodcastTitle(title string) string {
	for _, f := range r.podcastTitle {
		if rewritten := f(title); rewritten != "" {
			return rewritten
		}
	}
	return title
}

// ResolveContentType classifies an enclosure URL, or returns "" when no
// resolver has an opinion.
func (r *Registry) ResolveContentType(enclosureURL string) string {
	for _, f := range r.contentType {
		if t := f(enclosureURL); t != "" {
			return t
		}
	}
	return ""
}

// ResolveCoverArt returns the cover art URL to fetch; the input coverURL is
// the fallback.
func (r *Registry) ResolveCoverArt(ctx context.Context, feedURL, coverURL string) string {
	for _, f := range r.coverArt {
		if url := f(ctx, feedURL, coverURL); url != "" {
			return url
		}
	}
	return coverURL
}

// URLShortcuts merges the shortcut maps of all providers. Earlier
// registrations win on prefix collisions.
func (r *Registry) URLShortcuts() map[string]string {
	merged := map[string]string{}
	for _, f := range r.shortcuts {
		for prefix, template := range f() {
			if _, exists := merged[prefix]; !exists {
				merged[prefix] = template
			}
		}
	}
	return merged
}
