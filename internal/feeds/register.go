// Package feeds wires the bundled feed source plugins into a resolution
// registry. URL-rewriting plugins run before the SoundCloud API handler,
// and the generic RSS handler catches everything else.
package feeds

import (
	"github.com/gpodder/gpodder-core/internal/config"
	"github.com/gpodder/gpodder-core/internal/feeds/itunes"
	"github.com/gpodder/gpodder-core/internal/feeds/rss"
	"github.com/gpodder/gpodder-core/internal/feeds/soundcloud"
	"github.com/gpodder/gpodder-core/internal/feeds/vimeo"
	"github.com/gpodder/gpodder-core/internal/feeds/youtube"
	"github.com/gpodder/gpodder-core/internal/fetch"
	"github.com/gpodder/gpodder-core/internal/registry"
)

// RegisterAll populates reg with every bundled plugin.
func RegisterAll(reg *registry.Registry, client *fetch.Client, cfg *config.Config) {
	yt := youtube.New(client, cfg)
	vm := vimeo.New(client, cfg)
	sc := soundcloud.NewHandler(client)

	reg.RegisterFeedHandler(itunes.NewHandler(client))
	reg.RegisterFeedHandler(yt)
	reg.RegisterFeedHandler(vm)
	reg.RegisterFeedHandler(sc)
	reg.RegisterFallbackFeedHandler(rss.NewHandler(client))

	reg.RegisterDownloadURL(yt.ResolveDownloadURL)
	reg.RegisterDownloadURL(vm.ResolveDownloadURL)

	reg.RegisterEpisodeBasename(yt.ResolveBasename)
	reg.RegisterEpisodeBasename(vm.ResolveBasename)

	reg.RegisterPodcastTitle(yt.ResolveTitle)
	reg.RegisterPodcastTitle(vm.ResolveTitle)

	reg.RegisterContentType(yt.ResolveContentType)
	reg.RegisterContentType(vm.ResolveContentType)

	reg.RegisterCoverArt(yt.ResolveCoverArt)

	reg.RegisterShortcuts(yt.Shortcuts)
	reg.RegisterShortcuts(sc.Shortcuts)
	reg.RegisterShortcuts(baseShortcuts)
}

// baseShortcuts holds source-independent prefixes.
func baseShortcuts() map[string]string {
	return map[string]string{
		"fb": "http://feeds.feedburner.com/%s",
	}
}
