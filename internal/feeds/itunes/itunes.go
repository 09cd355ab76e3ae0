package itunes

import (
	"context"
	"fmt"
	"regexp"

	"github.com/gpodder/gpodder-core/internal/debuglog"
	"github.com/gpodder/gpodder-core/internal/fetch"
	"github.com/gpodder/gpodder-core/internal/registry"
)

var feedPattern = regexp.MustCompile(`^https?://(?:podcasts|itunes)\.apple\.com/(?:[a-zA-Z]{2}/)?podcast/.*id(\d+)`)

const defaultLookupURL = "https://itunes.apple.com/lookup?id=%s"

type lookupResult struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		FeedURL string `json:"feedUrl"`
	} `json:"results"`
}

// Handler turns Apple Podcasts page URLs into the underlying RSS feed URL.
// It never parses a feed itself: after rewriting the subscription URL it
// declines, leaving the rest of the chain to handle the real feed.
type Handler struct {
	client    *fetch.Client
	lookupURL string
}

func NewHandler(client *fetch.Client) *Handler {
	return &Handler{client: client, lookupURL: defaultLookupURL}
}

func (h *Handler) Name() string { return "itunes" }

func (h *Handler) Resolve(ctx context.Context, src registry.FeedSource, maxEpisodes int) (*registry.Feed, error) {
	match := feedPattern.FindStringSubmatch(src.FeedURL())
	if match == nil {
		return nil, nil
	}

	var result lookupResult
	if err := h.client.ReadJSON(ctx, fmt.Sprintf(h.lookupURL, match[1]), &result); err != nil {
		return nil, &registry.SourceError{Source: h.Name(), Err: err}
	}
	if result.ResultCount != 1 || len(result.Results) != 1 {
		return nil, &registry.SourceError{
			Source: h.Name(),
			Err:    fmt.Errorf("lookup for id %s returned %d results", match[1], result.ResultCount),
		}
	}
	if result.Results[0].FeedURL == "" {
		return nil, &registry.SourceError{
			Source: h.Name(),
			Err:    fmt.Errorf("lookup for id %s has no feed URL", match[1]),
		}
	}

	debuglog.Infof("itunes: %s -> %s", src.FeedURL(), result.Results[0].FeedURL)
	src.SetFeedURL(result.Results[0].FeedURL)
	return nil, nil
}
