package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpodder/gpodder-core/internal/registry"
	"github.com/gpodder/gpodder-core/internal/storage"
)

func june(day int) time.Time {
	return time.Date(2025, 6, day, 12, 0, 0, 0, time.UTC)
}

// subscribeWith subscribes to a stub feed and returns the podcast plus the
// handler for later mutation.
func subscribeWith(t *testing.T, feed *registry.Feed) (*Model, *Podcast, *stubHandler) {
	t.Helper()
	handler := &stubHandler{feed: feed}
	m := newTestModel(t, handler)
	podcast, err := m.Subscribe(context.Background(), "http://feed.example/show.xml")
	require.NoError(t, err)
	return m, podcast, handler
}

func TestUpdate_GUIDMatchUpdatesInPlace(t *testing.T) {
	_, podcast, handler := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Old Title", june(1)),
	))
	require.Len(t, podcast.Episodes(), 1)
	id := podcast.Episodes()[0].ID

	updated := item("ep-1", "New Title", june(1))
	updated.FileSize = 999
	handler.feed = feedWithItems("Show", updated)
	require.NoError(t, podcast.Update(context.Background()))

	require.Len(t, podcast.Episodes(), 1, "a matching GUID must never duplicate")
	episode := podcast.Episodes()[0]
	assert.Equal(t, id, episode.ID)
	assert.Equal(t, "New Title", episode.Title)
	assert.Equal(t, int64(999), episode.FileSize)
}

func TestUpdate_ReentrancyIsNoOp(t *testing.T) {
	_, podcast, handler := subscribeWith(t, feedWithItems("Show"))
	calls := handler.calls

	podcast.updating.Store(true)
	require.NoError(t, podcast.Update(context.Background()))
	assert.Equal(t, calls, handler.calls, "a re-entrant update must not fetch")
	podcast.updating.Store(false)
}

func TestUpdate_NotModified(t *testing.T) {
	_, podcast, handler := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Episode 1", june(1)),
	))

	handler.feed = &registry.Feed{NotModified: true}
	require.NoError(t, podcast.Update(context.Background()))

	assert.Equal(t, "Show", podcast.Title)
	assert.Len(t, podcast.Episodes(), 1, "a 304 outcome changes nothing")
}

func TestUpdate_TitleIsSticky(t *testing.T) {
	_, podcast, handler := subscribeWith(t, feedWithItems("First Title"))
	assert.Equal(t, "First Title", podcast.Title)

	handler.feed = feedWithItems("Second Title")
	require.NoError(t, podcast.Update(context.Background()))

	assert.Equal(t, "First Title", podcast.Title, "the first resolved title wins")
	assert.Equal(t, "about Second Title", podcast.Description,
		"description tracks the feed unconditionally")
}

func TestUpdate_SerialForcesChrono(t *testing.T) {
	feed := feedWithItems("Serial Show",
		item("ch-1", "Chapter 1", june(1)),
		item("ch-2", "Chapter 2", june(2)),
	)
	feed.Serial = true
	_, podcast, _ := subscribeWith(t, feed)

	assert.Equal(t, storage.StrategyChrono, podcast.DownloadStrategy)
	require.Len(t, podcast.Episodes(), 2)
	assert.Equal(t, "ch-1", podcast.Episodes()[0].GUID, "serial shows sort oldest first")
}

func TestUpdate_StaleBackfillArrivesNotNew(t *testing.T) {
	_, podcast, handler := subscribeWith(t, feedWithItems("Show",
		item("ep-10", "Episode 10", june(15)),
	))

	handler.feed = feedWithItems("Show",
		item("ep-10", "Episode 10", june(15)),
		item("ep-11", "Episode 11", june(16)),
		item("ep-1", "Episode 1", june(1)),
	)
	require.NoError(t, podcast.Update(context.Background()))

	byGUID := map[string]*Episode{}
	for _, episode := range podcast.Episodes() {
		byGUID[episode.GUID] = episode
	}
	assert.True(t, byGUID["ep-11"].IsNew, "a genuinely new episode stays new")
	assert.False(t, byGUID["ep-1"].IsNew,
		"an episode published over a week before the newest known one arrives not-new")
}

func TestUpdate_LatestStrategyKeepsOneNew(t *testing.T) {
	_, podcast, handler := subscribeWith(t, feedWithItems("Show"))
	podcast.DownloadStrategy = storage.StrategyLatest

	handler.feed = feedWithItems("Show",
		item("ep-1", "Episode 1", june(1)),
		item("ep-2", "Episode 2", june(2)),
		item("ep-3", "Episode 3", june(3)),
	)
	require.NoError(t, podcast.Update(context.Background()))

	newCount := 0
	for _, episode := range podcast.Episodes() {
		if episode.IsNew {
			newCount++
			assert.Equal(t, "ep-3", episode.GUID, "only the most recent item stays new")
		}
	}
	assert.Equal(t, 1, newCount)
}

func TestUpdate_PurgeSparesDownloadedAndBusy(t *testing.T) {
	_, podcast, handler := subscribeWith(t, feedWithItems("Show",
		item("gone", "Vanishes", june(1)),
		item("kept-downloaded", "Downloaded", june(2)),
		item("kept-busy", "Busy", june(3)),
		item("stays", "Stays", june(4)),
	))

	byGUID := map[string]*Episode{}
	for _, episode := range podcast.Episodes() {
		byGUID[episode.GUID] = episode
	}
	byGUID["kept-downloaded"].State = storage.StateDownloaded
	byGUID["kept-busy"].SetDownloading(fakeTask{status: StatusDownloading})

	handler.feed = feedWithItems("Show",
		item("stays", "Stays", june(4)),
	)
	require.NoError(t, podcast.Update(context.Background()))

	guids := map[string]bool{}
	for _, episode := range podcast.Episodes() {
		guids[episode.GUID] = true
	}
	assert.False(t, guids["gone"], "unadvertised plain episodes are purged")
	assert.True(t, guids["kept-downloaded"], "downloaded episodes survive the purge")
	assert.True(t, guids["kept-busy"], "mid-download episodes survive the purge")
	assert.True(t, guids["stays"])
}

func TestEpisodeFilename_Allocation(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Episode 1", june(1)),
	))
	episode := podcast.Episodes()[0]
	ctx := context.Background()

	name, err := podcast.EpisodeFilename(ctx, episode, FilenameOptions{CheckOnly: true})
	require.NoError(t, err)
	assert.Empty(t, name, "check-only with no stored name yields nothing")

	name, err = podcast.EpisodeFilename(ctx, episode, FilenameOptions{Create: true})
	require.NoError(t, err)
	assert.Equal(t, "ep-1.mp3", name)
	assert.Equal(t, "ep-1.mp3", episode.DownloadFilename, "allocation persists the name")

	again, err := podcast.EpisodeFilename(ctx, episode, FilenameOptions{})
	require.NoError(t, err)
	assert.Equal(t, name, again, "repeated calls converge")
}

func TestEpisodeFilename_CollisionFree(t *testing.T) {
	first := item("a", "Same", june(1))
	second := item("b", "Same", june(2))
	second.URL = first.URL // identical basenames
	_, podcast, _ := subscribeWith(t, feedWithItems("Show", first, second))

	ctx := context.Background()
	var names []string
	for _, episode := range podcast.Episodes() {
		name, err := podcast.EpisodeFilename(ctx, episode, FilenameOptions{Create: true})
		require.NoError(t, err)
		names = append(names, name)
	}

	require.Len(t, names, 2)
	assert.NotEqual(t, names[0], names[1])
}

func TestEpisodeFilename_HashFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer server.Close()

	entry := item("ep-1", "Episode 1", june(1))
	entry.URL = server.URL + "/"
	entry.MimeType = "audio/mpeg"
	_, podcast, _ := subscribeWith(t, feedWithItems("Show", entry))

	name, err := podcast.EpisodeFilename(context.Background(), podcast.Episodes()[0], FilenameOptions{Create: true})
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{16}\.mp3$`, name, "a nameless URL falls back to a content hash")
}

func TestEpisodeFilename_RenameOnChange(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Episode 1", june(1)),
	))
	episode := podcast.Episodes()[0]
	ctx := context.Background()

	name, err := podcast.EpisodeFilename(ctx, episode, FilenameOptions{Create: true})
	require.NoError(t, err)

	dir, err := podcast.SaveDir()
	require.NoError(t, err)
	oldPath := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(oldPath, []byte("media"), 0o644))

	renamed, err := podcast.EpisodeFilename(ctx, episode, FilenameOptions{
		Create:   true,
		Template: "better-name.mp3",
	})
	require.NoError(t, err)
	assert.Equal(t, "better-name.mp3", renamed)
	assert.NoFileExists(t, oldPath)
	assert.FileExists(t, filepath.Join(dir, "better-name.mp3"))
}

func TestEpisodeFilename_NeverOverwrites(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Episode 1", june(1)),
	))
	episode := podcast.Episodes()[0]
	ctx := context.Background()

	name, err := podcast.EpisodeFilename(ctx, episode, FilenameOptions{Create: true})
	require.NoError(t, err)

	dir, err := podcast.SaveDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "better-name.mp3"), []byte("other"), 0o644))

	kept, err := podcast.EpisodeFilename(ctx, episode, FilenameOptions{
		Create:   true,
		Template: "better-name.mp3",
	})
	require.NoError(t, err)
	assert.Equal(t, name, kept, "when both files exist the old name is kept")

	data, err := os.ReadFile(filepath.Join(dir, "better-name.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "other", string(data), "existing data is never overwritten")
}

func TestCommonPrefixAndTrimmedTitle(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Show 001: Intro", june(1)),
		item("ep-2", "Show 002: Launch", june(2)),
	))

	assert.Equal(t, "Show ", podcast.commonPrefix)

	byGUID := map[string]*Episode{}
	for _, episode := range podcast.Episodes() {
		byGUID[episode.GUID] = episode
	}
	assert.Equal(t, "001: Intro", podcast.TrimmedTitle(byGUID["ep-1"]))
	assert.Equal(t, "002: Launch", podcast.TrimmedTitle(byGUID["ep-2"]))
}

func TestCommonPrefix_NeedsTwoEpisodes(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Show 001: Intro", june(1)),
	))
	assert.Empty(t, podcast.commonPrefix)
	// The podcast-name numbering pattern still trims without a prefix
	assert.Equal(t, "001: Intro", podcast.TrimmedTitle(podcast.Episodes()[0]))
}

func TestTrimmedTitle_KeepsShortLeftovers(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Show 001", june(1)),
		item("ep-2", "Show 002", june(2)),
	))

	// The leftover "001" is too short to stand alone
	assert.Equal(t, "Show 001", podcast.TrimmedTitle(podcast.Episodes()[1]))
}

func TestCheckDownloadFolder_MissingFileMarksDeleted(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Episode 1", june(1)),
	))
	episode := podcast.Episodes()[0]
	ctx := context.Background()

	_, err := podcast.EpisodeFilename(ctx, episode, FilenameOptions{Create: true})
	require.NoError(t, err)
	episode.State = storage.StateDownloaded

	// The file was never written; reconciliation treats that as an
	// external delete.
	require.NoError(t, podcast.CheckDownloadFolder(ctx))
	assert.Equal(t, storage.StateDeleted, episode.State)
}

func TestCheckDownloadFolder_AdoptsWantedFilename(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Episode 1", june(1)),
	))
	episode := podcast.Episodes()[0]
	ctx := context.Background()

	dir, err := podcast.SaveDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ep-1.mp3"), []byte("media"), 0o644))

	require.NoError(t, podcast.CheckDownloadFolder(ctx))

	assert.Equal(t, storage.StateDownloaded, episode.State)
	assert.Equal(t, "ep-1.mp3", episode.DownloadFilename)
	assert.Equal(t, int64(5), episode.FileSize, "the on-disk size is adopted")
}

func TestCheckDownloadFolder_ExtensionCompatibleMatch(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Episode 1", june(1)),
	))
	episode := podcast.Episodes()[0]
	ctx := context.Background()

	dir, err := podcast.SaveDir()
	require.NoError(t, err)
	// Same base name, different audio extension
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ep-1.ogg"), []byte("media"), 0o644))

	require.NoError(t, podcast.CheckDownloadFolder(ctx))

	assert.Equal(t, storage.StateDownloaded, episode.State)
	assert.Equal(t, "ep-1.ogg", episode.DownloadFilename)
}

func TestCheckDownloadFolder_IgnoresPartialAndForeignFiles(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Episode 1", june(1)),
	))
	episode := podcast.Episodes()[0]
	ctx := context.Background()

	dir, err := podcast.SaveDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ep-1.mp3.partial"), []byte("half"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("unrelated"), 0o644))

	require.NoError(t, podcast.CheckDownloadFolder(ctx))

	assert.Equal(t, storage.StateNormal, episode.State)
	assert.Empty(t, episode.DownloadFilename)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"), "foreign files stay untouched")
}

func TestRename_MovesFolder(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Old Name",
		item("ep-1", "Episode 1", june(1)),
	))

	oldDir, err := podcast.SaveDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(oldDir, "keep.mp3"), []byte("media"), 0o644))

	require.NoError(t, podcast.Rename("New Name"))

	assert.Equal(t, "New Name", podcast.Title)
	newDir, err := podcast.SaveDir()
	require.NoError(t, err)
	assert.NotEqual(t, oldDir, newDir)
	assert.FileExists(t, filepath.Join(newDir, "keep.mp3"))
	assert.NoDirExists(t, oldDir)
}

func TestStatistics(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("a", "A", june(1)),
		item("b", "B", june(2)),
		item("c", "C", june(3)),
	))

	episodes := podcast.Episodes()
	episodes[0].State = storage.StateDownloaded // still IsNew: unplayed
	episodes[1].State = storage.StateDeleted
	episodes[1].IsNew = false

	stats := podcast.Statistics()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Downloaded)
	assert.Equal(t, 1, stats.Deleted)
	assert.Equal(t, 1, stats.Unplayed)
	assert.Equal(t, 1, stats.New, "only normal-state new episodes count as fresh")
}

func TestContentType(t *testing.T) {
	video := item("v", "Clip", june(1))
	video.URL = "http://media.example/clip.mp4"
	video.MimeType = "video/mp4"
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("a", "A", june(2)),
		item("b", "B", june(3)),
		video,
	))

	assert.Equal(t, "audio", podcast.ContentType(), "two audio episodes outvote one video")
}

func TestEpisodeActivity(t *testing.T) {
	episode := &Episode{}
	assert.False(t, episode.Busy())

	episode.SetDownloading(fakeTask{status: StatusQueued})
	assert.True(t, episode.Busy())

	episode.SetDownloading(fakeTask{status: StatusDone})
	assert.False(t, episode.Busy(), "a finished task no longer blocks the purge")

	episode.SetPlaying(fakeTask{status: StatusDownloading})
	assert.False(t, episode.Busy(), "playback never counts as busy")
	_, playing := episode.PlaybackTask()
	assert.True(t, playing)

	episode.SetIdle()
	_, playing = episode.PlaybackTask()
	assert.False(t, playing)
}

func TestEpisodePlayback(t *testing.T) {
	episode := &Episode{}
	episode.IsNew = true

	episode.PlaybackMark()
	assert.False(t, episode.IsNew)
	assert.False(t, episode.LastPlayback.IsZero())

	episode.ReportPlayback(300, 1800)
	assert.Equal(t, 300, episode.CurrentPosition)
	assert.Equal(t, 1800, episode.TotalTime)
	assert.False(t, episode.Finished())

	episode.ReportPlayback(1795, 0)
	assert.True(t, episode.Finished(), "within ten seconds of the end counts as finished")
}

func TestTrimmedTitle_Patterns(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Show - The First One", june(1)),
		item("ep-2", "Episode 42: The Answer", june(2)),
		item("ep-3", "#001: Numbers", june(3)),
	))

	byGUID := map[string]*Episode{}
	for _, episode := range podcast.Episodes() {
		byGUID[episode.GUID] = episode
	}
	assert.Equal(t, "The First One", podcast.TrimmedTitle(byGUID["ep-1"]))
	assert.Equal(t, "42: The Answer", podcast.TrimmedTitle(byGUID["ep-2"]))
	assert.Equal(t, "001: Numbers", podcast.TrimmedTitle(byGUID["ep-3"]))
}

func TestMarkDownloaded(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Episode 1", june(1)),
	))
	episode := podcast.Episodes()[0]
	ctx := context.Background()

	assert.Error(t, podcast.MarkDownloaded(episode), "no allocated filename yet")

	name, err := podcast.EpisodeFilename(ctx, episode, FilenameOptions{Create: true})
	require.NoError(t, err)
	dir, err := podcast.SaveDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("audio"), 0o644))

	require.NoError(t, podcast.MarkDownloaded(episode))
	assert.True(t, episode.Downloaded())
	assert.True(t, episode.IsNew)
	assert.Equal(t, int64(5), episode.FileSize)

	age, ok := podcast.FileAge(episode)
	require.True(t, ok)
	assert.GreaterOrEqual(t, age, time.Duration(0))
}

func TestPlaybackURL(t *testing.T) {
	_, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Episode 1", june(1)),
	))
	episode := podcast.Episodes()[0]
	ctx := context.Background()

	url, err := podcast.PlaybackURL(ctx, episode, false)
	require.NoError(t, err)
	assert.Equal(t, episode.URL, url, "nothing local means streaming the enclosure")

	name, err := podcast.EpisodeFilename(ctx, episode, FilenameOptions{Create: true})
	require.NoError(t, err)
	dir, err := podcast.SaveDir()
	require.NoError(t, err)
	path := filepath.Join(dir, name)

	require.NoError(t, os.WriteFile(path+".partial", []byte("par"), 0o644))
	url, err = podcast.PlaybackURL(ctx, episode, false)
	require.NoError(t, err)
	assert.Equal(t, episode.URL, url, "partial files need an explicit opt-in")
	url, err = podcast.PlaybackURL(ctx, episode, true)
	require.NoError(t, err)
	assert.Equal(t, path+".partial", url)

	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	url, err = podcast.PlaybackURL(ctx, episode, false)
	require.NoError(t, err)
	assert.Equal(t, path, url)
}

func TestUpdate_DeletedEpisodeStaysDeletedAfterRestart(t *testing.T) {
	m, podcast, _ := subscribeWith(t, feedWithItems("Show",
		item("ep-1", "Episode 1", june(1)),
	))
	episode := podcast.Episodes()[0]
	id := episode.ID
	require.NoError(t, podcast.DeleteEpisodeFile(episode))

	// A second model over the same store simulates a process restart.
	fresh := New(m.cfg, m.store, m.registry, m.client, m.covers)
	podcasts, err := fresh.Podcasts(context.Background())
	require.NoError(t, err)
	require.Len(t, podcasts, 1)
	reloaded := podcasts[0]

	require.NoError(t, reloaded.Update(context.Background()))

	require.Len(t, reloaded.Episodes(), 1, "a deleted episode must not come back as a new row")
	episode = reloaded.Episodes()[0]
	assert.Equal(t, id, episode.ID)
	assert.Equal(t, storage.StateDeleted, episode.State, "the episode must stay deleted")
	assert.False(t, episode.IsNew, "a deleted episode must not be re-marked new")
}
