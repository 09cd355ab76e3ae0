package model

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/gpodder/gpodder-core/internal/media"
	"github.com/gpodder/gpodder-core/internal/registry"
	"github.com/gpodder/gpodder-core/internal/storage"
	"github.com/gpodder/gpodder-core/internal/validation"
)

// leftoverMin is the minimum number of characters a title must keep after
// common-prefix trimming for the trimmed form to be used.
const leftoverMin = 5

// TaskStatus is the lifecycle state of an attached download task.
type TaskStatus int

const (
	StatusQueued TaskStatus = iota
	StatusDownloading
	StatusPaused
	StatusDone
	StatusFailed
	StatusCancelled
)

// Task is the episode's view of a download or playback job. The engine
// never drives the job itself; it only inspects the status to decide
// whether the episode is busy.
type Task interface {
	Status() TaskStatus
	Progress() float64
}

// activity is the episode's transient occupation. Exactly one variant is
// active at a time; the zero value means idle.
type activity struct {
	downloading Task
	playing     Task
}

// Episode is one feed entry owned by a podcast. The embedded record is
// what persists; the activity field is transient and never stored.
type Episode struct {
	storage.Episode

	activity activity
}

func episodeFromItem(podcastID int64, item registry.Item) *Episode {
	return &Episode{
		Episode: storage.Episode{
			PodcastID:       podcastID,
			GUID:            item.GUID,
			Title:           item.Title,
			Description:     item.Description,
			DescriptionHTML: item.DescriptionHTML,
			Link:            item.Link,
			URL:             item.URL,
			MimeType:        item.MimeType,
			FileSize:        item.FileSize,
			Published:       item.Published,
			TotalTime:       item.Duration,
			PaymentURL:      item.PaymentURL,
			ArtURL:          item.ArtURL,
			Chapters:        convertChapters(item.Chapters),
			State:           storage.StateNormal,
			IsNew:           true,
		},
	}
}

func convertChapters(chapters []registry.Chapter) []storage.Chapter {
	var result []storage.Chapter
	for _, c := range chapters {
		result = append(result, storage.Chapter{Start: c.Start, Title: c.Title})
	}
	return result
}

// updateFromItem refreshes the feed-controlled fields of an existing
// episode in place, keyed by GUID. State, newness and the allocated
// filename are owned by this side and never touched.
func (e *Episode) updateFromItem(item registry.Item) {
	e.Title = item.Title
	e.URL = item.URL
	e.Description = item.Description
	e.DescriptionHTML = item.DescriptionHTML
	e.Link = item.Link
	e.MimeType = item.MimeType
	e.PaymentURL = item.PaymentURL
	e.ArtURL = item.ArtURL
	if item.FileSize > 0 {
		e.FileSize = item.FileSize
	}
	if !item.Published.IsZero() {
		e.Published = item.Published
	}
	if item.Duration > 0 && e.TotalTime == 0 {
		e.TotalTime = item.Duration
	}
	if len(item.Chapters) > 0 {
		e.Chapters = convertChapters(item.Chapters)
	}
}

// SetDownloading attaches a download task. Any previous activity is
// replaced.
func (e *Episode) SetDownloading(task Task) {
	e.activity = activity{downloading: task}
}

// SetPlaying attaches a playback task. Any previous activity is replaced.
func (e *Episode) SetPlaying(task Task) {
	e.activity = activity{playing: task}
}

// SetIdle detaches the current activity.
func (e *Episode) SetIdle() {
	e.activity = activity{}
}

// DownloadTask returns the attached download task, if any.
func (e *Episode) DownloadTask() (Task, bool) {
	return e.activity.downloading, e.activity.downloading != nil
}

// PlaybackTask returns the attached playback task, if any.
func (e *Episode) PlaybackTask() (Task, bool) {
	return e.activity.playing, e.activity.playing != nil
}

// Busy reports whether the episode is mid-download. Busy episodes are
// never purged by a feed update.
func (e *Episode) Busy() bool {
	task, ok := e.DownloadTask()
	if !ok {
		return false
	}
	switch task.Status() {
	case StatusQueued, StatusDownloading, StatusPaused:
		return true
	}
	return false
}

// Fresh reports whether the episode is new and not yet materialized.
func (e *Episode) Fresh() bool {
	return e.IsNew && e.State == storage.StateNormal
}

// Downloaded reports whether the episode's media is on disk.
func (e *Episode) Downloaded() bool {
	return e.State == storage.StateDownloaded
}

// Finished reports whether playback got within ten seconds of the end.
func (e *Episode) Finished() bool {
	return e.CurrentPosition > 0 && e.TotalTime > 0 &&
		e.CurrentPosition+10 >= e.TotalTime
}

// PlaybackMark records that playback of this episode started.
func (e *Episode) PlaybackMark() {
	e.IsNew = false
	e.LastPlayback = time.Now()
}

// ReportPlayback stores a playback position update from a player.
func (e *Episode) ReportPlayback(position, total int) {
	if total > 0 {
		e.TotalTime = total
	}
	if position >= 0 {
		e.CurrentPosition = position
		e.PositionUpdated = time.Now()
	}
}

// Extension returns the episode media file's extension, preferring the
// allocated filename, then the enclosure URL, then the declared MIME type.
func (e *Episode) Extension() string {
	if e.DownloadFilename != "" {
		if ext := strings.ToLower(filepath.Ext(e.DownloadFilename)); ext != "" {
			return ext
		}
	}
	if _, ext := validation.FilenameFromURL(e.URL); ext != "" {
		return ext
	}
	return media.ExtensionFromMimeType(e.MimeType)
}

// FileType classifies the episode media as audio, video or unknown.
func (e *Episode) FileType() media.Category {
	if category := media.CategoryForExtension(e.Extension()); category != media.CategoryUnknown {
		return category
	}
	return media.CategoryForMimeType(e.MimeType)
}

// artBase is the extension-less base name of the episode's artwork file
// inside the podcast folder. It is derived from the GUID so it survives
// filename reallocation.
func (e *Episode) artBase() string {
	digest := sha256.Sum256([]byte(e.GUID))
	return "episode-" + hex.EncodeToString(digest[:4])
}
