package storage

import (
	"time"
)

// State is an episode's download lifecycle state. It progresses forward
// (NORMAL -> DOWNLOADED -> DELETED); NORMAL episodes may also go straight
// to DELETED.
type State int

const (
	StateNormal State = iota
	StateDownloaded
	StateDeleted
)

// Strategy controls how new episodes are admitted and ordered per update.
type Strategy int

const (
	// StrategyDefault keeps newest-first ordering; every admitted episode
	// that passes the staleness rule stays marked new.
	StrategyDefault Strategy = iota
	// StrategyLatest keeps only the single newest new item per update.
	StrategyLatest
	// StrategyChrono orders episodes oldest-first, for serial shows.
	StrategyChrono
)

// Chapter is a single entry of an episode's chapter list.
type Chapter struct {
	Start float64 `json:"start"`
	Title string  `json:"title"`
}

type Podcast struct {
	ID               int64    `json:"id"`
	URL              string   `json:"url"`
	Title            string   `json:"title"`
	Link             string   `json:"link"`
	Description      string   `json:"description"`
	CoverURL         string   `json:"cover_url"`
	PaymentURL       string   `json:"payment_url"`
	AuthUsername     string   `json:"auth_username"`
	AuthPassword     string   `json:"auth_password"`
	HTTPETag         string   `json:"http_etag"`
	HTTPLastModified string   `json:"http_last_modified"`
	DownloadFolder   string   `json:"download_folder"`
	DownloadStrategy Strategy `json:"download_strategy"`
	Section          string   `json:"section"`
}

type Episode struct {
	ID               int64     `json:"id"`
	PodcastID        int64     `json:"podcast_id"`
	GUID             string    `json:"guid"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	DescriptionHTML  string    `json:"description_html,omitempty"`
	Link             string    `json:"link"`
	URL              string    `json:"url"`
	MimeType         string    `json:"mime_type"`
	FileSize         int64     `json:"file_size"`
	Published        time.Time `json:"published"`
	State            State     `json:"state"`
	IsNew            bool      `json:"is_new"`
	DownloadFilename string    `json:"download_filename,omitempty"`
	PaymentURL       string    `json:"payment_url,omitempty"`
	ArtURL           string    `json:"art_url,omitempty"`
	Chapters         []Chapter `json:"chapters,omitempty"`

	// Playback position tracking, independent of the download state.
	TotalTime        int       `json:"total_time"`
	CurrentPosition  int       `json:"current_position"`
	PositionUpdated  time.Time `json:"position_updated"`
	LastPlayback     time.Time `json:"last_playback"`
}
