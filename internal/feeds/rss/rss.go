package rss

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/gpodder/gpodder-core/internal/fetch"
	"github.com/gpodder/gpodder-core/internal/media"
	"github.com/gpodder/gpodder-core/internal/registry"
	"github.com/gpodder/gpodder-core/internal/validation"
)

const acceptHeader = "application/rss+xml, application/atom+xml, application/xml, text/xml"

// Handler is the generic RSS/Atom feed handler. It is registered as the
// fallback at the end of the resolution chain and accepts any URL, so a
// fetch or parse failure here is fatal to the update rather than a reason
// to continue the chain.
type Handler struct {
	client *fetch.Client
}

func NewHandler(client *fetch.Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) Name() string { return "rss" }

func (h *Handler) Resolve(ctx context.Context, src registry.FeedSource, maxEpisodes int) (*registry.Feed, error) {
	username, password := src.Credentials()
	etag, lastModified := src.CacheHeaders()

	resp, notModified, err := h.client.Get(ctx, src.FeedURL(), fetch.Options{
		ETag:         etag,
		LastModified: lastModified,
		Username:     username,
		Password:     password,
		Accept:       acceptHeader,
	})
	if err != nil {
		return nil, err
	}
	if notModified {
		return &registry.Feed{NotModified: true}, nil
	}
	defer resp.Body.Close()

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	feed := &registry.Feed{
		Title:        parsed.Title,
		Link:         parsed.Link,
		Description:  parsed.Description,
		PaymentURL:   paymentURL(parsed.Extensions),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	if parsed.Image != nil {
		feed.CoverURL = parsed.Image.URL
	}
	if parsed.ITunesExt != nil {
		if feed.CoverURL == "" {
			feed.CoverURL = parsed.ITunesExt.Image
		}
		feed.Serial = strings.EqualFold(parsed.ITunesExt.Type, "serial")
	}

	for _, item := range parsed.Items {
		if maxEpisodes > 0 && len(feed.Items) >= maxEpisodes {
			break
		}
		entry, ok := convertItem(item)
		if ok {
			feed.Items = append(feed.Items, entry)
		}
	}

	return feed, nil
}

// convertItem maps a parsed feed item onto a registry item. Items without a
// usable enclosure are dropped, except when the item link itself looks like
// an audio or video file (some feeds link their media instead of enclosing
// it).
func convertItem(item *gofeed.Item) (registry.Item, bool) {
	entry := registry.Item{
		Title:           item.Title,
		Description:     item.Description,
		DescriptionHTML: item.Content,
		Link:            item.Link,
		PaymentURL:      paymentURL(item.Extensions),
		Chapters:        chapters(item.Extensions),
	}

	if len(item.Enclosures) > 0 {
		enc := item.Enclosures[0]
		entry.URL = enc.URL
		entry.MimeType = enc.Type
		if size, err := strconv.ParseInt(enc.Length, 10, 64); err == nil {
			entry.FileSize = size
		}
	} else if url := linkEnclosure(item.Link); url != "" {
		entry.URL = url
	}

	if entry.URL == "" {
		return registry.Item{}, false
	}
	if entry.MimeType == "" {
		entry.MimeType = "application/octet-stream"
	}

	entry.GUID = item.GUID
	if entry.GUID == "" {
		entry.GUID = item.Link
	}
	if entry.GUID == "" {
		entry.GUID = entry.URL
	}

	if item.PublishedParsed != nil {
		entry.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		entry.Published = *item.UpdatedParsed
	}

	if item.Image != nil {
		entry.ArtURL = item.Image.URL
	}
	if item.ITunesExt != nil {
		if entry.ArtURL == "" {
			entry.ArtURL = item.ITunesExt.Image
		}
		entry.Duration = parseDuration(item.ITunesExt.Duration)
	}

	return entry, true
}

// linkEnclosure returns the item link if it points at an audio or video
// file, or "" otherwise.
func linkEnclosure(link string) string {
	if link == "" {
		return ""
	}
	_, extension := validation.FilenameFromURL(link)
	switch media.CategoryForExtension(extension) {
	case media.CategoryAudio, media.CategoryVideo:
		return link
	}
	return ""
}

// parseDuration understands the itunes:duration formats "ss",
// "mm:ss" and "hh:mm:ss".
func parseDuration(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}

// paymentURL extracts an atom:link with rel="payment" (Flattr and friends).
func paymentURL(extensions ext.Extensions) string {
	for _, link := range extensions["atom"]["link"] {
		if link.Attrs["rel"] == "payment" {
			return link.Attrs["href"]
		}
	}
	return ""
}

// chapters extracts Podlove simple chapters (psc namespace) when present.
func chapters(extensions ext.Extensions) []registry.Chapter {
	var result []registry.Chapter
	for _, chaptersExt := range extensions["psc"]["chapters"] {
		for _, child := range chaptersExt.Children["chapter"] {
			start := parseChapterStart(child.Attrs["start"])
			result = append(result, registry.Chapter{
				Start: start,
				Title: child.Attrs["title"],
			})
		}
	}
	return result
}

// parseChapterStart parses "hh:mm:ss.mmm" chapter start times into seconds.
func parseChapterStart(s string) float64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0
	}

	total := 0.0
	for _, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}
