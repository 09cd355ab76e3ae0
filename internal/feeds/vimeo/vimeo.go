package vimeo

import (
	"context"
	"fmt"
	"html"
	"regexp"

	"github.com/gpodder/gpodder-core/internal/config"
	"github.com/gpodder/gpodder-core/internal/debuglog"
	"github.com/gpodder/gpodder-core/internal/fetch"
	"github.com/gpodder/gpodder-core/internal/registry"
)

var (
	channelPattern    = regexp.MustCompile(`^https?://vimeo\.com/(channels/[^/]+|groups/[^/]+|[^/]+)$`)
	videoPattern      = regexp.MustCompile(`^https?://vimeo\.com/(?:channels/[^/]+/)?(\d+)$`)
	dataConfigPattern = regexp.MustCompile(`data-config-url="([^"]+)"`)
	titlePattern      = regexp.MustCompile(`^Vimeo / (.+)$`)
)

// formatRanking orders stream qualities from worst to best; the last
// available entry wins when the configured format is missing.
var formatRanking = []string{"mobile", "sd", "hd"}

// Plugin rewrites Vimeo channel pages into their RSS feeds and resolves
// video page URLs into direct stream URLs.
type Plugin struct {
	client *fetch.Client
	format string
}

func New(client *fetch.Client, cfg *config.Config) *Plugin {
	return &Plugin{client: client, format: cfg.Plugins.Vimeo.Format}
}

func (p *Plugin) Name() string { return "vimeo" }

// Resolve appends /videos/rss to channel, group and user page URLs, then
// declines so the generic handler parses the feed.
func (p *Plugin) Resolve(ctx context.Context, src registry.FeedSource, maxEpisodes int) (*registry.Feed, error) {
	url := src.FeedURL()
	if videoPattern.MatchString(url) {
		return nil, nil
	}
	if match := channelPattern.FindStringSubmatch(url); match != nil {
		src.SetFeedURL(fmt.Sprintf("https://vimeo.com/%s/videos/rss", match[1]))
	}
	return nil, nil
}

// ResolveDownloadURL maps a video page URL to the direct stream URL of the
// configured quality, falling back to the best available one.
func (p *Plugin) ResolveDownloadURL(ctx context.Context, enclosureURL string) (string, error) {
	match := videoPattern.FindStringSubmatch(enclosureURL)
	if match == nil {
		return "", nil
	}
	videoID := match[1]

	page, err := p.client.ReadBytes(ctx, enclosureURL, fetch.Options{})
	if err != nil {
		return "", &registry.SourceError{Source: p.Name(), Err: err}
	}

	configMatch := dataConfigPattern.FindSubmatch(page)
	if configMatch == nil {
		return "", &registry.SourceError{
			Source: p.Name(),
			Err:    fmt.Errorf("no player config found for video %s", videoID),
		}
	}
	configURL := html.UnescapeString(string(configMatch[1]))

	var player struct {
		Request struct {
			Files struct {
				H264 map[string]struct {
					URL string `json:"url"`
				} `json:"h264"`
			} `json:"files"`
		} `json:"request"`
	}
	if err := p.client.ReadJSON(ctx, configURL, &player); err != nil {
		return "", &registry.SourceError{Source: p.Name(), Err: fmt.Errorf("player config for video %s: %w", videoID, err)}
	}

	files := player.Request.Files.H264
	if stream, ok := files[p.format]; ok && stream.URL != "" {
		return stream.URL, nil
	}

	best := ""
	for _, quality := range formatRanking {
		if stream, ok := files[quality]; ok && stream.URL != "" {
			best = stream.URL
		}
	}
	if best == "" {
		return "", &registry.SourceError{
			Source: p.Name(),
			Err:    fmt.Errorf("no stream available for video %s", videoID),
		}
	}

	debuglog.Debugf("vimeo: %s format %q unavailable, using best alternative", videoID, p.format)
	return best, nil
}

// ResolveBasename names downloaded videos after their episode title.
func (p *Plugin) ResolveBasename(enclosureURL, base, sanitizedTitle string) string {
	if !videoPattern.MatchString(enclosureURL) {
		return ""
	}
	return sanitizedTitle
}

// ResolveTitle rewrites the feed title "Vimeo / X" to "X on Vimeo".
func (p *Plugin) ResolveTitle(title string) string {
	if match := titlePattern.FindStringSubmatch(title); match != nil {
		return match[1] + " on Vimeo"
	}
	return ""
}

// ResolveContentType classifies video page URLs as video.
func (p *Plugin) ResolveContentType(enclosureURL string) string {
	if videoPattern.MatchString(enclosureURL) {
		return "video"
	}
	return ""
}
