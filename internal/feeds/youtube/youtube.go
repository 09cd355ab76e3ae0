package youtube

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/gpodder/gpodder-core/internal/config"
	"github.com/gpodder/gpodder-core/internal/debuglog"
	"github.com/gpodder/gpodder-core/internal/fetch"
	"github.com/gpodder/gpodder-core/internal/registry"
)

// Format describes one downloadable YouTube stream variant.
type Format struct {
	Extension   string
	Description string
}

// Formats maps itag numbers to stream variants, best first.
var Formats = map[int]Format{
	38: {"mp4", "4K (3840x2160)"},
	37: {"mp4", "Full HD (1920x1080)"},
	22: {"mp4", "HD (1280x720)"},
	35: {"flv", "480p (854x480)"},
	18: {"mp4", "360p (640x360)"},
	34: {"flv", "360p (640x360)"},
	6:  {"flv", "270p (480x270)"},
	5:  {"flv", "240p (400x240)"},
}

var (
	channelPattern = regexp.MustCompile(`^https?://(?:www\.)?youtube\.com/channel/([A-Za-z0-9_-]+)`)
	userPattern    = regexp.MustCompile(`^https?://(?:www\.)?youtube\.com/(?:user/|c/|@)([A-Za-z0-9._-]+)`)
	videoPattern   = regexp.MustCompile(`^https?://(?:www\.)?youtube\.com/watch\?(?:.*&)?v=([A-Za-z0-9_-]+)|^https?://youtu\.be/([A-Za-z0-9_-]+)`)
	uploadsPattern = regexp.MustCompile(`^Uploads by (.+)$`)
)

const (
	feedTemplate     = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"
	playlistTemplate = "https://www.youtube.com/feeds/videos.xml?playlist_id=%s"
	videoInfoURL     = "https://www.youtube.com/get_video_info?&el=detailpage&video_id=%s"
	apiChannelsURL   = "https://www.googleapis.com/youtube/v3/channels"
)

// Plugin rewrites YouTube channel pages into the site's RSS feeds and
// resolves watch URLs into direct stream URLs. Feed parsing itself is left
// to the generic handler.
type Plugin struct {
	client           *fetch.Client
	apiKey           string
	preferredFormats []int
}

func New(client *fetch.Client, cfg *config.Config) *Plugin {
	return &Plugin{
		client:           client,
		apiKey:           cfg.Plugins.YouTube.APIKey,
		preferredFormats: cfg.Plugins.YouTube.PreferredFormats,
	}
}

func (p *Plugin) Name() string { return "youtube" }

// Resolve rewrites channel and user page URLs to the matching videos.xml
// feed, then declines so the generic handler parses it.
func (p *Plugin) Resolve(ctx context.Context, src registry.FeedSource, maxEpisodes int) (*registry.Feed, error) {
	if match := channelPattern.FindStringSubmatch(src.FeedURL()); match != nil {
		src.SetFeedURL(fmt.Sprintf(feedTemplate, match[1]))
		return nil, nil
	}

	if match := userPattern.FindStringSubmatch(src.FeedURL()); match != nil {
		channelID, err := p.channelIDForUser(ctx, match[1])
		if err != nil {
			return nil, &registry.SourceError{Source: p.Name(), Err: err}
		}
		debuglog.Infof("youtube: user %s -> channel %s", match[1], channelID)
		src.SetFeedURL(fmt.Sprintf(feedTemplate, channelID))
	}

	return nil, nil
}

// channelIDForUser resolves a legacy username or handle to a channel ID,
// preferring the Data API when a key is configured and falling back to
// scraping the channel page.
func (p *Plugin) channelIDForUser(ctx context.Context, user string) (string, error) {
	if p.apiKey != "" {
		var result struct {
			Items []struct {
				ID string `json:"id"`
			} `json:"items"`
		}
		query := url.Values{"part": {"id"}, "forUsername": {user}, "key": {p.apiKey}}
		if err := p.client.ReadJSON(ctx, apiChannelsURL+"?"+query.Encode(), &result); err == nil && len(result.Items) > 0 {
			return result.Items[0].ID, nil
		}
	}

	page, err := p.client.ReadBytes(ctx, "https://www.youtube.com/@"+user, fetch.Options{})
	if err != nil {
		return "", fmt.Errorf("resolving channel for %s: %w", user, err)
	}
	match := regexp.MustCompile(`"channelId":"([A-Za-z0-9_-]+)"`).FindSubmatch(page)
	if match == nil {
		return "", fmt.Errorf("no channel id found for %s", user)
	}
	return string(match[1]), nil
}

// VideoID extracts the video ID from a watch or youtu.be URL, or returns ""
// for non-YouTube URLs.
func VideoID(rawURL string) string {
	match := videoPattern.FindStringSubmatch(rawURL)
	if match == nil {
		return ""
	}
	if match[1] != "" {
		return match[1]
	}
	return match[2]
}

// ResolveDownloadURL maps a watch URL to the direct stream URL of the best
// available preferred format.
func (p *Plugin) ResolveDownloadURL(ctx context.Context, enclosureURL string) (string, error) {
	videoID := VideoID(enclosureURL)
	if videoID == "" {
		return "", nil
	}

	body, err := p.client.ReadBytes(ctx, fmt.Sprintf(videoInfoURL, videoID), fetch.Options{})
	if err != nil {
		return "", &registry.SourceError{Source: p.Name(), Err: err}
	}

	info, err := url.ParseQuery(string(body))
	if err != nil {
		return "", &registry.SourceError{Source: p.Name(), Err: fmt.Errorf("video info for %s: %w", videoID, err)}
	}

	streams := map[int]string{}
	for _, entry := range strings.Split(info.Get("url_encoded_fmt_stream_map"), ",") {
		fields, err := url.ParseQuery(entry)
		if err != nil {
			continue
		}
		itag, err := strconv.Atoi(fields.Get("itag"))
		if err != nil || fields.Get("url") == "" {
			continue
		}
		streams[itag] = fields.Get("url")
	}

	for _, itag := range p.preferredFormats {
		if streamURL, ok := streams[itag]; ok {
			debuglog.Debugf("youtube: %s using format %d (%s)", videoID, itag, Formats[itag].Description)
			return streamURL, nil
		}
	}

	return "", &registry.SourceError{
		Source: p.Name(),
		Err:    fmt.Errorf("no preferred format available for %s", videoID),
	}
}

// ResolveBasename names downloaded videos after their episode title; the
// stream URL basename is meaningless.
func (p *Plugin) ResolveBasename(enclosureURL, base, sanitizedTitle string) string {
	if VideoID(enclosureURL) == "" {
		return ""
	}
	return sanitizedTitle
}

// ResolveTitle rewrites the feed title "Uploads by X" to "X on YouTube".
func (p *Plugin) ResolveTitle(title string) string {
	if match := uploadsPattern.FindStringSubmatch(title); match != nil {
		return match[1] + " on YouTube"
	}
	return ""
}

// ResolveContentType classifies watch URLs as video.
func (p *Plugin) ResolveContentType(enclosureURL string) string {
	if VideoID(enclosureURL) != "" {
		return "video"
	}
	return ""
}

// ResolveCoverArt looks up the channel thumbnail through the Data API when
// an API key is configured.
func (p *Plugin) ResolveCoverArt(ctx context.Context, feedURL, coverURL string) string {
	if p.apiKey == "" {
		return ""
	}

	parsed, err := url.Parse(feedURL)
	if err != nil || !strings.HasSuffix(parsed.Host, "youtube.com") {
		return ""
	}
	channelID := parsed.Query().Get("channel_id")
	if channelID == "" {
		return ""
	}

	var result struct {
		Items []struct {
			Snippet struct {
				Thumbnails map[string]struct {
					URL string `json:"url"`
				} `json:"thumbnails"`
			} `json:"snippet"`
		} `json:"items"`
	}
	query := url.Values{"part": {"snippet"}, "id": {channelID}, "key": {p.apiKey}}
	if err := p.client.ReadJSON(ctx, apiChannelsURL+"?"+query.Encode(), &result); err != nil {
		debuglog.Warnf("youtube: channel thumbnail lookup failed: %v", err)
		return ""
	}
	if len(result.Items) == 0 {
		return ""
	}

	thumbnails := result.Items[0].Snippet.Thumbnails
	for _, size := range []string{"high", "medium", "default"} {
		if t, ok := thumbnails[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

// Shortcuts expands yt:<channel id> and ytpl:<playlist id>.
func (p *Plugin) Shortcuts() map[string]string {
	return map[string]string{
		"yt":   feedTemplate,
		"ytpl": playlistTemplate,
	}
}
