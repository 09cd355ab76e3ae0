// Package model owns the podcast and episode entities and the feed
// reconciliation engine that keeps them in sync with their remote feeds.
package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/gpodder/gpodder-core/internal/config"
	"github.com/gpodder/gpodder-core/internal/coverart"
	"github.com/gpodder/gpodder-core/internal/debuglog"
	"github.com/gpodder/gpodder-core/internal/fetch"
	"github.com/gpodder/gpodder-core/internal/registry"
	"github.com/gpodder/gpodder-core/internal/storage"
	"github.com/gpodder/gpodder-core/internal/validation"
)

// Model is the arena owning all subscribed podcasts. Podcasts are loaded
// lazily on first access and their download folders are reconciled once
// at that point.
type Model struct {
	cfg      *config.Config
	store    *storage.Store
	registry *registry.Registry
	client   *fetch.Client
	covers   *coverart.Downloader

	downloadsDir string

	podcasts []*Podcast
	loaded   bool
}

func New(cfg *config.Config, store *storage.Store, reg *registry.Registry, client *fetch.Client, covers *coverart.Downloader) *Model {
	return &Model{
		cfg:          cfg,
		store:        store,
		registry:     reg,
		client:       client,
		covers:       covers,
		downloadsDir: cfg.Downloads.Dir,
	}
}

// Podcasts returns all subscriptions. The first call loads them from the
// store, attaches their episodes and checks each download folder for
// changes made outside the application.
func (m *Model) Podcasts(ctx context.Context) ([]*Podcast, error) {
	if m.loaded {
		return m.podcasts, nil
	}

	records, err := m.store.LoadPodcasts()
	if err != nil {
		return nil, fmt.Errorf("loading podcasts: %w", err)
	}

	for _, record := range records {
		podcast := &Podcast{Podcast: *record, model: m}
		episodes, err := m.store.LoadEpisodes(record.ID)
		if err != nil {
			return nil, fmt.Errorf("loading episodes for %s: %w", record.URL, err)
		}
		for _, e := range episodes {
			podcast.episodes = append(podcast.episodes, &Episode{Episode: *e})
		}
		podcast.sortEpisodes()
		podcast.determineCommonPrefix()
		m.podcasts = append(m.podcasts, podcast)
	}

	for _, podcast := range m.podcasts {
		if err := podcast.CheckDownloadFolder(ctx); err != nil {
			debuglog.Warnf("checking folder for %s: %v", podcast.DisplayTitle(), err)
		}
	}

	m.loaded = true
	return m.podcasts, nil
}

// NormalizeURL expands registered shortcut prefixes (yt:, sc:, fb:, ...)
// and canonicalizes the result. An empty return means the URL is
// unusable.
func (m *Model) NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)

	if prefix, rest, ok := strings.Cut(rawURL, ":"); ok {
		if template, found := m.registry.URLShortcuts()[strings.ToLower(prefix)]; found {
			rawURL = fmt.Sprintf(template, rest)
		}
	}

	return validation.NormalizeFeedURL(rawURL)
}

// Subscribe adds a podcast by URL and runs its first update. A failing
// first update rolls the subscription back completely, so a bad URL never
// leaves an orphan row behind. An already subscribed URL returns the
// existing podcast.
func (m *Model) Subscribe(ctx context.Context, rawURL string) (*Podcast, error) {
	url := m.NormalizeURL(rawURL)
	if url == "" {
		return nil, fmt.Errorf("not a valid feed URL: %q", rawURL)
	}

	podcasts, err := m.Podcasts(ctx)
	if err != nil {
		return nil, err
	}
	for _, existing := range podcasts {
		if existing.URL == url {
			return existing, nil
		}
	}

	podcast := &Podcast{
		Podcast: storage.Podcast{URL: url},
		model:   m,
	}
	if err := m.store.SavePodcast(&podcast.Podcast); err != nil {
		return nil, fmt.Errorf("creating subscription: %w", err)
	}
	m.podcasts = append(m.podcasts, podcast)

	if err := podcast.Update(ctx); err != nil {
		if rollbackErr := podcast.Unsubscribe(); rollbackErr != nil {
			debuglog.Errorf("rolling back subscription to %s: %v", url, rollbackErr)
		}
		return nil, fmt.Errorf("subscribing to %s: %w", url, err)
	}

	podcast.Section = podcast.ContentType()
	if err := m.store.SavePodcast(&podcast.Podcast); err != nil {
		debuglog.Errorf("saving subscription to %s: %v", url, err)
	}

	// Media files already sitting in the save directory count as
	// downloaded right away.
	if err := podcast.CheckDownloadFolder(ctx); err != nil {
		debuglog.Warnf("checking download folder for %q: %v", podcast.DisplayTitle(), err)
	}

	return podcast, nil
}

// UpdateAll reconciles every subscription, continuing past individual
// failures. The first error is returned after all podcasts were tried.
func (m *Model) UpdateAll(ctx context.Context) error {
	podcasts, err := m.Podcasts(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, podcast := range podcasts {
		if err := podcast.Update(ctx); err != nil {
			debuglog.Errorf("updating %s: %v", podcast.DisplayTitle(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// findUniqueFolderName probes base against sibling podcasts' folder
// names, appending a numeric disambiguator until free. The podcast's own
// current folder name counts as free, so recomputation is stable.
func (m *Model) findUniqueFolderName(podcast *Podcast, base string) string {
	taken := map[string]bool{}
	for _, other := range m.podcasts {
		if other != podcast && other.DownloadFolder != "" {
			taken[other.DownloadFolder] = true
		}
	}

	for attempt := 0; ; attempt++ {
		candidate := validation.CandidateName(base, attempt)
		if !taken[candidate] {
			return candidate
		}
	}
}

// forget drops a podcast from the in-memory collection.
func (m *Model) forget(podcast *Podcast) {
	for i, candidate := range m.podcasts {
		if candidate == podcast {
			m.podcasts = append(m.podcasts[:i], m.podcasts[i+1:]...)
			return
		}
	}
}
