package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gpodder/gpodder-core/internal/coverart"
	"github.com/gpodder/gpodder-core/internal/debuglog"
	"github.com/gpodder/gpodder-core/internal/media"
	"github.com/gpodder/gpodder-core/internal/registry"
	"github.com/gpodder/gpodder-core/internal/storage"
	"github.com/gpodder/gpodder-core/internal/validation"
)

const (
	// maxFilenameLength bounds sanitized episode and folder names.
	maxFilenameLength = 120

	// staleCutoff demotes backfilled episodes: anything published more
	// than a week before the newest known episode arrives not-new.
	staleCutoff = 7 * 24 * time.Hour

	// partialSuffix marks in-progress downloads; such files are invisible
	// to the download-folder reconciler.
	partialSuffix = ".partial"

	// coverBase is the extension-less name of the podcast cover file
	// inside the save directory.
	coverBase = "folder"
)

// Podcast is one subscription with its owned episode collection. All
// mutation of the collection goes through Podcast methods; episodes hold
// no back-pointer.
type Podcast struct {
	storage.Podcast

	model    *Model
	episodes []*Episode

	// commonPrefix is the shared leading substring of all episode titles,
	// recomputed after every update. Empty means none.
	commonPrefix string

	updating atomic.Bool
}

// FeedURL, SetFeedURL, Credentials and CacheHeaders make Podcast a feed
// source for the resolution registry.
func (p *Podcast) FeedURL() string       { return p.URL }
func (p *Podcast) SetFeedURL(url string) { p.URL = url }

func (p *Podcast) Credentials() (username, password string) {
	return p.AuthUsername, p.AuthPassword
}

func (p *Podcast) CacheHeaders() (etag, lastModified string) {
	return p.HTTPETag, p.HTTPLastModified
}

// Episodes returns the owned episode collection in display order.
func (p *Podcast) Episodes() []*Episode {
	return p.episodes
}

// Update fetches the feed and reconciles the episode collection against
// it. A second call while an update is in flight is a no-op. Fetch and
// resolver errors abort the update and propagate; filesystem and artwork
// anomalies are logged and skipped.
func (p *Podcast) Update(ctx context.Context) error {
	if !p.updating.CompareAndSwap(false, true) {
		debuglog.Debugf("podcast %d already updating, skipping", p.ID)
		return nil
	}
	defer p.updating.Store(false)

	feed, err := p.model.registry.ResolveFeed(ctx, p, p.model.cfg.Limit.Episodes)
	if err != nil {
		return err
	}
	if feed.NotModified {
		debuglog.Debugf("feed %s not modified", p.URL)
		return nil
	}

	p.consumeMetadata(feed)
	p.reconcileEpisodes(feed.Items)
	p.downloadArtwork(ctx)
	p.determineCommonPrefix()

	if err := p.model.store.SavePodcast(&p.Podcast); err != nil {
		return fmt.Errorf("saving podcast: %w", err)
	}
	return nil
}

// consumeMetadata adopts feed-level metadata. The title is sticky: once a
// podcast has a real title it is never overwritten by the feed again. The
// remaining fields always track the feed.
func (p *Podcast) consumeMetadata(feed *registry.Feed) {
	if p.Title == "" || p.Title == p.URL {
		title := feed.Title
		if title == "" {
			title = p.URL
		}
		p.Title = p.model.registry.ResolvePodcastTitle(title)
	}

	p.Link = feed.Link
	p.Description = feed.Description
	p.CoverURL = feed.CoverURL
	p.PaymentURL = feed.PaymentURL

	if feed.ETag != "" {
		p.HTTPETag = feed.ETag
	}
	if feed.LastModified != "" {
		p.HTTPLastModified = feed.LastModified
	}

	if feed.Serial {
		p.DownloadStrategy = storage.StrategyChrono
	}
}

// reconcileEpisodes diffs the fetched items against the owned collection
// by GUID: known items are updated in place, vanished items are purged
// unless downloaded or busy, and unknown items are admitted as new
// episodes subject to the staleness and strategy rules.
func (p *Podcast) reconcileEpisodes(items []registry.Item) {
	existing := make(map[string]*Episode, len(p.episodes))
	lastPublished := time.Time{}
	for _, episode := range p.episodes {
		existing[episode.GUID] = episode
		if episode.Published.After(lastPublished) {
			lastPublished = episode.Published
		}
	}

	seen := make(map[string]bool, len(items))
	var admitted []*Episode

	for _, item := range items {
		seen[item.GUID] = true

		if episode, ok := existing[item.GUID]; ok {
			episode.updateFromItem(item)
			p.saveEpisode(episode)
			continue
		}

		episode := episodeFromItem(p.ID, item)
		if !lastPublished.IsZero() && episode.Published.Before(lastPublished.Add(-staleCutoff)) {
			episode.IsNew = false
		}
		p.episodes = append(p.episodes, episode)
		admitted = append(admitted, episode)
	}

	// Purge episodes the feed no longer advertises, but never anything
	// the user already has on disk or is fetching right now.
	kept := p.episodes[:0]
	for _, episode := range p.episodes {
		if episode.ID != 0 && !seen[episode.GUID] &&
			episode.State != storage.StateDownloaded && !episode.Busy() {
			if err := p.model.store.DeleteEpisode(&episode.Episode); err != nil {
				debuglog.Errorf("deleting episode %q: %v", episode.Title, err)
				kept = append(kept, episode)
			}
			continue
		}
		kept = append(kept, episode)
	}
	p.episodes = kept

	if p.DownloadStrategy == storage.StrategyLatest && len(admitted) > 1 {
		sort.SliceStable(admitted, func(i, j int) bool {
			return admitted[i].Published.After(admitted[j].Published)
		})
		for _, episode := range admitted[1:] {
			episode.IsNew = false
		}
	}

	for _, episode := range admitted {
		p.saveEpisode(episode)
	}

	p.sortEpisodes()
}

func (p *Podcast) sortEpisodes() {
	ascending := p.DownloadStrategy == storage.StrategyChrono
	sort.SliceStable(p.episodes, func(i, j int) bool {
		if ascending {
			return p.episodes[i].Published.Before(p.episodes[j].Published)
		}
		return p.episodes[i].Published.After(p.episodes[j].Published)
	})
}

func (p *Podcast) saveEpisode(episode *Episode) {
	if err := p.model.store.SaveEpisode(&episode.Episode); err != nil {
		debuglog.Errorf("saving episode %q: %v", episode.Title, err)
	}
}

// downloadArtwork fetches the podcast cover and any per-episode art.
// Failures are logged and skipped; artwork never fails an update.
func (p *Podcast) downloadArtwork(ctx context.Context) {
	dir, err := p.SaveDir()
	if err != nil {
		debuglog.Warnf("artwork for %s: %v", p.DisplayTitle(), err)
		return
	}

	request := coverart.Request{
		BasePath: filepath.Join(dir, coverBase),
		CoverURL: p.CoverURL,
		FeedURL:  p.URL,
		Username: p.AuthUsername,
		Password: p.AuthPassword,
	}
	if _, err := p.model.covers.Get(ctx, request, true); err != nil {
		debuglog.Warnf("cover for %s: %v", p.DisplayTitle(), err)
	}

	for _, episode := range p.episodes {
		if episode.ArtURL == "" {
			continue
		}
		request := coverart.Request{
			BasePath: filepath.Join(dir, episode.artBase()),
			CoverURL: episode.ArtURL,
			FeedURL:  p.URL,
			Username: p.AuthUsername,
			Password: p.AuthPassword,
		}
		if _, err := p.model.covers.Get(ctx, request, true); err != nil {
			debuglog.Warnf("art for episode %q: %v", episode.Title, err)
		}
	}
}

// determineCommonPrefix finds the shared leading substring of all episode
// titles, trimmed back to the last space so it ends on a word boundary.
// Fewer than two episodes means no prefix.
func (p *Podcast) determineCommonPrefix() {
	if len(p.episodes) < 2 {
		p.commonPrefix = ""
		return
	}

	prefix := p.episodes[0].Title
	for _, episode := range p.episodes[1:] {
		for !strings.HasPrefix(episode.Title, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				p.commonPrefix = ""
				return
			}
		}
	}

	if !strings.HasSuffix(prefix, " ") {
		if idx := strings.LastIndex(prefix, " "); idx >= 0 {
			prefix = prefix[:idx+1]
		} else {
			prefix = ""
		}
	}
	p.commonPrefix = prefix
}

var (
	episodeNumberPattern = regexp.MustCompile(`^Episode (\d+:.*)`)
	numberColonPattern   = regexp.MustCompile(`^\d+: `)
	hashNumberPattern    = regexp.MustCompile(`^#\d+: `)
)

// TrimmedTitle returns the episode title with redundant podcast-name and
// numbering prefixes removed, when enough of the title is left over to
// stand alone.
func (p *Podcast) TrimmedTitle(episode *Episode) string {
	title := episode.Title

	// "Podcast Name - Title" and "Podcast Name: Title" become "Title".
	for _, sep := range []string{" - ", ": "} {
		prefix := p.Title + sep
		if strings.HasPrefix(title, prefix) && len(title)-len(prefix) > leftoverMin {
			return title[len(prefix):]
		}
	}

	// "Podcast Name 42: ..." and "Episode 42: ..." keep the number.
	if rest, ok := strings.CutPrefix(title, p.Title+" "); ok &&
		numberColonPattern.MatchString(rest) && len(rest) > leftoverMin {
		return rest
	}
	if m := episodeNumberPattern.FindStringSubmatch(title); m != nil && len(m[1]) > leftoverMin {
		return m[1]
	}

	// "#001: Title" becomes "001: Title".
	if p.commonPrefix == "" && hashNumberPattern.MatchString(title) && len(title)-1 > leftoverMin {
		return title[1:]
	}

	if p.commonPrefix != "" && strings.HasPrefix(title, p.commonPrefix) &&
		len(title)-len(p.commonPrefix) > leftoverMin {
		return title[len(p.commonPrefix):]
	}
	return title
}

// DisplayTitle returns the podcast title, falling back to the URL before
// the first successful update.
func (p *Podcast) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return p.URL
}

// FilenameOptions controls EpisodeFilename.
type FilenameOptions struct {
	// Create allocates a filename when none is stored yet.
	Create bool
	// ForceUpdate recomputes the wanted name even when one is stored.
	ForceUpdate bool
	// CheckOnly never allocates; combined with no stored name the result
	// is empty.
	CheckOnly bool
	// Template overrides the URL-derived base name.
	Template string
}

// EpisodeFilename returns the episode's local filename inside the save
// directory, allocating one if requested. Allocation is deterministic and
// collision-free within the podcast; a changed name triggers a best-effort
// on-disk rename that never overwrites existing data.
func (p *Podcast) EpisodeFilename(ctx context.Context, episode *Episode, opts FilenameOptions) (string, error) {
	if episode.DownloadFilename == "" && (opts.CheckOnly || !opts.Create) {
		return "", nil
	}
	if episode.DownloadFilename != "" && !opts.ForceUpdate && opts.Template == "" {
		return episode.DownloadFilename, nil
	}

	wanted := p.wantedFilename(ctx, episode, opts.Template)
	if episode.DownloadFilename == "" {
		episode.DownloadFilename = wanted
		p.saveEpisode(episode)
		return wanted, nil
	}
	if wanted == episode.DownloadFilename {
		return wanted, nil
	}

	dir, err := p.SaveDir()
	if err != nil {
		return episode.DownloadFilename, err
	}
	oldPath := filepath.Join(dir, episode.DownloadFilename)
	newPath := filepath.Join(dir, wanted)

	oldExists := fileExists(oldPath)
	newExists := fileExists(newPath)
	switch {
	case oldExists && newExists:
		debuglog.Warnf("both %s and %s exist, keeping old name", oldPath, newPath)
		return episode.DownloadFilename, nil
	case oldExists:
		if err := os.Rename(oldPath, newPath); err != nil {
			debuglog.Warnf("renaming %s: %v", oldPath, err)
			return episode.DownloadFilename, nil
		}
	}

	episode.DownloadFilename = wanted
	p.saveEpisode(episode)
	return wanted, nil
}

// WantedEpisodeFilename computes the name the allocator would assign right
// now, without persisting anything. The download-folder reconciler uses it
// to recognize externally added files.
func (p *Podcast) WantedEpisodeFilename(ctx context.Context, episode *Episode) string {
	return p.wantedFilename(ctx, episode, "")
}

func (p *Podcast) wantedFilename(ctx context.Context, episode *Episode, template string) string {
	var base, extension string
	if template != "" {
		base = filepath.Base(template)
		extension = filepath.Ext(base)
		base = strings.TrimSuffix(base, extension)
	} else {
		base, extension = validation.FilenameFromURL(episode.URL)
	}

	// Redirector URLs put a script name in the path; one extra hop gets
	// the real media URL.
	if looksLikeRedirect(base) {
		if resolved, err := p.model.client.ResolveRedirect(ctx, episode.URL); err == nil && resolved != episode.URL {
			base, extension = validation.FilenameFromURL(resolved)
		}
	}

	sanitizedTitle := validation.SanitizeFilename(episode.Title, maxFilenameLength)
	if name := p.model.registry.ResolveEpisodeBasename(episode.URL, base, sanitizedTitle); name != "" {
		base = name
	}

	if base == "" || looksLikeRedirect(base) {
		base = urlDigest(episode.URL)
	}

	base = validation.SanitizeFilename(base, maxFilenameLength)
	if base == "" {
		base = urlDigest(episode.URL)
	}
	if extension == "" {
		extension = media.ExtensionFromMimeType(episode.MimeType)
	}

	return p.findUniqueFilename(episode, base+strings.ToLower(extension))
}

// findUniqueFilename probes the candidate against sibling episodes'
// allocated names, appending a numeric disambiguator until free.
func (p *Podcast) findUniqueFilename(episode *Episode, filename string) string {
	taken := make(map[string]bool, len(p.episodes))
	for _, other := range p.episodes {
		if other != episode && other.DownloadFilename != "" {
			taken[other.DownloadFilename] = true
		}
	}

	for attempt := 0; ; attempt++ {
		candidate := validation.CandidateName(filename, attempt)
		if !taken[candidate] {
			return candidate
		}
	}
}

var redirectNames = map[string]bool{
	"redirect":  true,
	"default":   true,
	"enclosure": true,
}

func looksLikeRedirect(base string) bool {
	return base == "" || redirectNames[strings.ToLower(base)]
}

func urlDigest(url string) string {
	digest := sha256.Sum256([]byte(url))
	return hex.EncodeToString(digest[:8])
}

// SaveDir returns the podcast's on-disk folder, allocating a folder name
// on first use and creating the directory.
func (p *Podcast) SaveDir() (string, error) {
	if p.DownloadFolder == "" {
		base := validation.SanitizeFilename(p.Title, maxFilenameLength)
		if base == "" {
			base = validation.SanitizeFilename(p.URL, maxFilenameLength)
		}
		if base == "" {
			base = urlDigest(p.URL)
		}
		p.DownloadFolder = p.model.findUniqueFolderName(p, base)
		if err := p.model.store.SavePodcast(&p.Podcast); err != nil {
			return "", fmt.Errorf("saving folder name: %w", err)
		}
	}

	dir := filepath.Join(p.model.downloadsDir, p.DownloadFolder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating save directory: %w", err)
	}
	return dir, nil
}

// CoverFile returns the path of the podcast cover file if one exists.
func (p *Podcast) CoverFile() (string, error) {
	dir, err := p.SaveDir()
	if err != nil {
		return "", err
	}
	return p.model.covers.Get(context.Background(), coverart.Request{
		BasePath: filepath.Join(dir, coverBase),
		CoverURL: p.CoverURL,
		FeedURL:  p.URL,
		Username: p.AuthUsername,
		Password: p.AuthPassword,
	}, false)
}

// Rename sets a new title and moves the save directory to match. When the
// target directory already exists the contents are merged into it.
func (p *Podcast) Rename(newTitle string) error {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" || newTitle == p.Title {
		return nil
	}

	base := validation.SanitizeFilename(newTitle, maxFilenameLength)
	if base != "" {
		newFolder := p.model.findUniqueFolderName(p, base)
		if newFolder != p.DownloadFolder && p.DownloadFolder != "" {
			oldDir := filepath.Join(p.model.downloadsDir, p.DownloadFolder)
			newDir := filepath.Join(p.model.downloadsDir, newFolder)
			if err := moveDirectory(oldDir, newDir); err != nil {
				debuglog.Warnf("moving %s to %s: %v", oldDir, newDir, err)
			} else {
				p.DownloadFolder = newFolder
			}
		} else if p.DownloadFolder == "" {
			p.DownloadFolder = newFolder
		}
	}

	p.Title = newTitle
	return p.model.store.SavePodcast(&p.Podcast)
}

// moveDirectory renames src to dst, merging file by file when dst already
// exists.
func moveDirectory(src, dst string) error {
	if !fileExists(src) {
		return nil
	}
	if !fileExists(dst) {
		return os.Rename(src, dst)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.Rename(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return os.Remove(src)
}

// Unsubscribe removes the podcast: its save directory with all downloaded
// media, its episode rows and the podcast row itself.
func (p *Podcast) Unsubscribe() error {
	if p.DownloadFolder != "" {
		dir := filepath.Join(p.model.downloadsDir, p.DownloadFolder)
		if err := os.RemoveAll(dir); err != nil {
			debuglog.Warnf("removing %s: %v", dir, err)
		}
	}

	if err := p.model.store.DeletePodcast(&p.Podcast); err != nil {
		return fmt.Errorf("deleting podcast: %w", err)
	}
	p.model.forget(p)
	return nil
}

// DeleteEpisodeFile removes the episode's media and artwork from disk and
// marks it deleted.
func (p *Podcast) DeleteEpisodeFile(episode *Episode) error {
	dir, err := p.SaveDir()
	if err != nil {
		return err
	}

	if episode.DownloadFilename != "" {
		path := filepath.Join(dir, episode.DownloadFilename)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	for _, ext := range coverart.Extensions {
		os.Remove(filepath.Join(dir, episode.artBase()+ext))
	}

	episode.State = storage.StateDeleted
	episode.IsNew = false
	p.saveEpisode(episode)
	return nil
}

// MarkDownloaded records that the episode's media file finished
// downloading into the save directory under its allocated filename.
func (p *Podcast) MarkDownloaded(episode *Episode) error {
	if episode.DownloadFilename == "" {
		return fmt.Errorf("episode %q has no allocated filename", episode.Title)
	}
	dir, err := p.SaveDir()
	if err != nil {
		return err
	}
	p.importFile(episode, filepath.Join(dir, episode.DownloadFilename))
	return nil
}

// PlaybackURL returns a local path or streaming URL for the episode. The
// downloaded file wins; with allowPartial an in-progress download is
// offered for preview. Otherwise the enclosure URL goes through the
// download-url resolvers.
func (p *Podcast) PlaybackURL(ctx context.Context, episode *Episode, allowPartial bool) (string, error) {
	if episode.DownloadFilename != "" {
		dir, err := p.SaveDir()
		if err != nil {
			return "", err
		}
		path := filepath.Join(dir, episode.DownloadFilename)
		if allowPartial && fileExists(path+partialSuffix) {
			return path + partialSuffix, nil
		}
		if fileExists(path) {
			return path, nil
		}
	}
	resolved, err := p.model.registry.ResolveDownloadURL(ctx, episode.URL)
	if err != nil {
		return "", err
	}
	if resolved == "" {
		resolved = episode.URL
	}
	return resolved, nil
}

// FileAge returns how long ago the episode's downloaded file was last
// modified. The second result is false when no file is on disk.
func (p *Podcast) FileAge(episode *Episode) (time.Duration, bool) {
	if episode.DownloadFilename == "" {
		return 0, false
	}
	dir, err := p.SaveDir()
	if err != nil {
		return 0, false
	}
	info, err := os.Stat(filepath.Join(dir, episode.DownloadFilename))
	if err != nil {
		return 0, false
	}
	return time.Since(info.ModTime()), true
}

// Statistics summarizes the episode collection.
type Statistics struct {
	Total      int
	Deleted    int
	New        int
	Downloaded int
	Unplayed   int
}

func (p *Podcast) Statistics() Statistics {
	var stats Statistics
	stats.Total = len(p.episodes)
	for _, episode := range p.episodes {
		switch episode.State {
		case storage.StateDeleted:
			stats.Deleted++
		case storage.StateDownloaded:
			stats.Downloaded++
			if episode.IsNew {
				stats.Unplayed++
			}
		}
		if episode.Fresh() {
			stats.New++
		}
	}
	return stats
}

// ContentType classifies the whole podcast as audio, video or other by
// majority over its episodes. The content-type resolution chain gets the
// first say per episode.
func (p *Podcast) ContentType() string {
	audio, video := 0, 0
	for _, episode := range p.episodes {
		switch p.model.registry.ResolveContentType(episode.URL) {
		case "audio":
			audio++
			continue
		case "video":
			video++
			continue
		}
		switch episode.FileType() {
		case media.CategoryAudio:
			audio++
		case media.CategoryVideo:
			video++
		}
	}

	switch {
	case video > audio:
		return "video"
	case audio > 0:
		return "audio"
	default:
		return "other"
	}
}

// GroupBy returns the section this podcast is listed under, deriving and
// persisting one on first use.
func (p *Podcast) GroupBy() string {
	if p.Section == "" {
		p.Section = p.ContentType()
		if err := p.model.store.SavePodcast(&p.Podcast); err != nil {
			debuglog.Errorf("saving podcast %q: %v", p.DisplayTitle(), err)
		}
	}
	return p.Section
}

// CheckDownloadFolder reconciles the database against the actual folder
// contents. Missing media transitions episodes to deleted; unexpected
// files are matched against episodes in three passes of decreasing
// strictness and imported on a match.
func (p *Podcast) CheckDownloadFolder(ctx context.Context) error {
	if p.DownloadFolder == "" {
		return nil
	}
	dir, err := p.SaveDir()
	if err != nil {
		return err
	}

	known := map[string]bool{}
	for _, ext := range coverart.Extensions {
		known[coverBase+ext] = true
	}
	for _, episode := range p.episodes {
		for _, ext := range coverart.Extensions {
			known[episode.artBase()+ext] = true
		}
		if episode.State != storage.StateDownloaded || episode.DownloadFilename == "" {
			continue
		}
		if !fileExists(filepath.Join(dir, episode.DownloadFilename)) {
			debuglog.Infof("file for %q vanished, marking deleted", episode.Title)
			episode.State = storage.StateDeleted
			p.saveEpisode(episode)
			continue
		}
		known[episode.DownloadFilename] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading save directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, partialSuffix) || known[name] {
			continue
		}
		if !p.adoptExternalFile(ctx, dir, name) {
			debuglog.Infof("unrecognized external file %s", filepath.Join(dir, name))
		}
	}
	return nil
}

// adoptExternalFile tries to claim an unexpected file for an episode:
// first by exact stored filename, then by exact recomputed wanted
// filename, finally by matching base name with a compatible extension
// category. The first matching episode in iteration order wins.
func (p *Podcast) adoptExternalFile(ctx context.Context, dir, name string) bool {
	for _, episode := range p.episodes {
		if episode.DownloadFilename == name {
			p.importFile(episode, filepath.Join(dir, name))
			return true
		}
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for _, episode := range p.episodes {
		wanted := p.WantedEpisodeFilename(ctx, episode)
		if wanted == name {
			episode.DownloadFilename = name
			p.importFile(episode, filepath.Join(dir, name))
			return true
		}

		wantedExt := filepath.Ext(wanted)
		wantedBase := strings.TrimSuffix(wanted, wantedExt)
		if wantedBase != base {
			continue
		}
		fileCategory := media.CategoryForExtension(ext)
		wantedCategory := media.CategoryForExtension(wantedExt)
		if fileCategory == media.CategoryUnknown || wantedCategory == media.CategoryUnknown ||
			fileCategory == wantedCategory {
			episode.DownloadFilename = name
			p.importFile(episode, filepath.Join(dir, name))
			return true
		}
	}
	return false
}

// importFile marks an episode downloaded with the on-disk file's size.
func (p *Podcast) importFile(episode *Episode, path string) {
	debuglog.Infof("importing %s for %q", path, episode.Title)
	episode.State = storage.StateDownloaded
	episode.IsNew = true
	if info, err := os.Stat(path); err == nil {
		episode.FileSize = info.Size()
	}
	p.saveEpisode(episode)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
