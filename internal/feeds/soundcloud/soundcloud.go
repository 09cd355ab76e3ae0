package soundcloud

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/gpodder/gpodder-core/internal/debuglog"
	"github.com/gpodder/gpodder-core/internal/fetch"
	"github.com/gpodder/gpodder-core/internal/registry"
)

// consumerKey is gpodder's registered SoundCloud API key.
const consumerKey = "zrweghtEtnZLpXf3mlm8mQ"

const (
	defaultAPIRoot = "https://api.soundcloud.com"
	pageSize       = 200
	createdFormat  = "2006/01/02 15:04:05 -0700"
)

var profilePattern = regexp.MustCompile(`^https?://(?:www\.)?soundcloud\.com/([^/?#]+)(/favorites)?/?$`)

type user struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Permalink   string `json:"permalink"`
	AvatarURL   string `json:"avatar_url"`
	Description string `json:"description"`
}

type track struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Permalink    string `json:"permalink"`
	PermalinkURL string `json:"permalink_url"`
	Description  string `json:"description"`
	CreatedAt    string `json:"created_at"`
	Duration     int    `json:"duration"` // milliseconds
	DownloadURL  string `json:"download_url"`
	StreamURL    string `json:"stream_url"`
	ArtworkURL   string `json:"artwork_url"`
}

type trackPage struct {
	Collection []track `json:"collection"`
	NextHref   string  `json:"next_href"`
}

// trackMeta is probed per track with a HEAD request; the API's track JSON
// does not carry the stream's size or content type.
type trackMeta struct {
	FileSize int64
	MimeType string
}

// Handler builds podcast feeds from SoundCloud profile URLs through the
// JSON API. Unlike the URL-rewriting plugins it produces the whole feed
// itself.
type Handler struct {
	client  *fetch.Client
	apiRoot string

	// metaMu guards metaCache; one handler serves every podcast and
	// podcasts may update concurrently.
	metaMu    sync.Mutex
	metaCache map[int64]trackMeta
}

func NewHandler(client *fetch.Client) *Handler {
	return &Handler{
		client:    client,
		apiRoot:   defaultAPIRoot,
		metaCache: map[int64]trackMeta{},
	}
}

func (h *Handler) Name() string { return "soundcloud" }

func (h *Handler) Resolve(ctx context.Context, src registry.FeedSource, maxEpisodes int) (*registry.Feed, error) {
	match := profilePattern.FindStringSubmatch(src.FeedURL())
	if match == nil {
		return nil, nil
	}
	username, favorites := match[1], match[2] != ""

	u, err := h.resolveUser(ctx, username)
	if err != nil {
		return nil, &registry.SourceError{Source: h.Name(), Err: err}
	}

	listing := "tracks"
	title := fmt.Sprintf("%s on SoundCloud", u.Username)
	if favorites {
		listing = "favorites"
		title = fmt.Sprintf("Tracks favorited by %s on SoundCloud", u.Username)
	}

	feed := &registry.Feed{
		Title:       title,
		Link:        "https://soundcloud.com/" + u.Permalink,
		Description: u.Description,
		CoverURL:    u.AvatarURL,
	}

	tracks, err := h.tracks(ctx, u.ID, listing, maxEpisodes)
	if err != nil {
		return nil, &registry.SourceError{Source: h.Name(), Err: err}
	}

	for _, t := range tracks {
		item, err := h.convertTrack(ctx, t)
		if err != nil {
			debuglog.Warnf("soundcloud: skipping track %d: %v", t.ID, err)
			continue
		}
		feed.Items = append(feed.Items, item)
	}

	return feed, nil
}

func (h *Handler) resolveUser(ctx context.Context, username string) (*user, error) {
	var u user
	endpoint := fmt.Sprintf("%s/users/%s.json?consumer_key=%s", h.apiRoot, url.PathEscape(username), consumerKey)
	if err := h.client.ReadJSON(ctx, endpoint, &u); err != nil {
		return nil, fmt.Errorf("resolving user %s: %w", username, err)
	}
	return &u, nil
}

// tracks pages through the user's track listing until it runs out or the
// episode limit is reached.
func (h *Handler) tracks(ctx context.Context, userID int64, listing string, limit int) ([]track, error) {
	endpoint := fmt.Sprintf("%s/users/%d/%s.json?consumer_key=%s&linked_partitioning=1&page_size=%d",
		h.apiRoot, userID, listing, consumerKey, pageSize)

	var all []track
	for endpoint != "" {
		var page trackPage
		if err := h.client.ReadJSON(ctx, endpoint, &page); err != nil {
			return nil, fmt.Errorf("listing %s: %w", listing, err)
		}
		all = append(all, page.Collection...)
		if limit > 0 && len(all) >= limit {
			all = all[:limit]
			break
		}
		endpoint = page.NextHref
	}
	return all, nil
}

func (h *Handler) convertTrack(ctx context.Context, t track) (registry.Item, error) {
	streamURL := t.DownloadURL
	if streamURL == "" {
		streamURL = t.StreamURL
	}
	if streamURL == "" {
		return registry.Item{}, fmt.Errorf("track has no stream")
	}
	streamURL += "?consumer_key=" + consumerKey

	meta, err := h.metadata(ctx, t.ID, streamURL)
	if err != nil {
		return registry.Item{}, err
	}

	guid := t.Permalink
	if guid == "" {
		guid = strconv.FormatInt(t.ID, 10)
	}

	item := registry.Item{
		GUID:        guid,
		Title:       t.Title,
		Description: t.Description,
		Link:        t.PermalinkURL,
		URL:         streamURL,
		MimeType:    meta.MimeType,
		FileSize:    meta.FileSize,
		Duration:    t.Duration / 1000,
		ArtURL:      t.ArtworkURL,
	}
	if published, err := time.Parse(createdFormat, t.CreatedAt); err == nil {
		item.Published = published
	}
	return item, nil
}

// metadata probes the stream's size and content type, cached per track so
// repeated updates do not re-probe the whole catalogue.
func (h *Handler) metadata(ctx context.Context, trackID int64, streamURL string) (trackMeta, error) {
	h.metaMu.Lock()
	meta, ok := h.metaCache[trackID]
	h.metaMu.Unlock()
	if ok {
		return meta, nil
	}

	header, err := h.client.Head(ctx, streamURL)
	if err != nil {
		return trackMeta{}, fmt.Errorf("probing stream: %w", err)
	}

	meta = trackMeta{MimeType: header.Get("Content-Type")}
	if meta.MimeType == "" {
		meta.MimeType = "audio/mpeg"
	}
	if size, err := strconv.ParseInt(header.Get("Content-Length"), 10, 64); err == nil {
		meta.FileSize = size
	}

	h.metaMu.Lock()
	h.metaCache[trackID] = meta
	h.metaMu.Unlock()
	return meta, nil
}

// Shortcuts expands sc:<user> and scfav:<user>.
func (h *Handler) Shortcuts() map[string]string {
	return map[string]string{
		"sc":    "https://soundcloud.com/%s",
		"scfav": "https://soundcloud.com/%s/favorites",
	}
}
