package coverart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gpodder/gpodder-core/internal/config"
	"github.com/gpodder/gpodder-core/internal/debuglog"
	"github.com/gpodder/gpodder-core/internal/fetch"
	"github.com/gpodder/gpodder-core/internal/registry"
	"github.com/gpodder/gpodder-core/internal/validation"
)

// Extensions lists the supported cover art file extensions, in sniffing
// order.
var Extensions = []string{".png", ".jpg", ".gif"}

var signatures = map[string][][]byte{
	".png": {[]byte("\x89PNG\r\n\x1a\n")},
	".jpg": {[]byte("\xff\xd8")},
	".gif": {[]byte("GIF89a"), []byte("GIF87a")},
}

// ErrUnknownImageType reports downloaded bytes that match no recognized
// image signature. Callers log it and skip the artwork; it is never fatal
// to an update.
var ErrUnknownImageType = errors.New("unknown image type")

// SniffExtension detects the file type of image data by its binary
// signature, ignoring whatever extension the URL claimed.
func SniffExtension(data []byte) string {
	for _, ext := range Extensions {
		for _, magic := range signatures[ext] {
			if bytes.HasPrefix(data, magic) {
				return ext
			}
		}
	}
	return ""
}

// Downloader fetches podcast and episode artwork. Fetches are idempotent
// with respect to existing files and writes are atomic.
type Downloader struct {
	client  *fetch.Client
	reg     *registry.Registry
	timeout time.Duration
}

func NewDownloader(client *fetch.Client, reg *registry.Registry, cfg *config.Config) *Downloader {
	return &Downloader{
		client:  client,
		reg:     reg,
		timeout: cfg.Network.CoverTimeout,
	}
}

// Request identifies one piece of artwork to fetch.
type Request struct {
	// BasePath is the target path without extension, e.g. ".../folder".
	BasePath string
	// CoverURL is the candidate artwork URL from the feed.
	CoverURL string
	// FeedURL identifies the podcast for the cover-art resolution chain.
	FeedURL string
	// Username and Password guard password-protected artwork.
	Username string
	Password string
}

// Get returns the path of the artwork file for the request. An already
// existing file is returned without network access. If download is false
// and no file exists, Get returns ("", nil).
func (d *Downloader) Get(ctx context.Context, req Request, download bool) (string, error) {
	for _, ext := range Extensions {
		if _, err := os.Stat(req.BasePath + ext); err == nil {
			return req.BasePath + ext, nil
		}
	}

	if !download {
		return "", nil
	}

	coverURL := d.reg.ResolveCoverArt(ctx, req.FeedURL, req.CoverURL)
	if coverURL == "" {
		return "", nil
	}

	// Password-protected feeds may keep their cover art protected too
	coverURL = validation.URLAddAuthentication(coverURL, req.Username, req.Password)

	debuglog.Infof("Downloading cover art: %s", coverURL)
	data, err := d.client.ReadBytes(ctx, coverURL, fetch.Options{Timeout: d.timeout})
	if err != nil {
		return "", fmt.Errorf("cover art download failed: %w", err)
	}

	ext := SniffExtension(data)
	if ext == "" {
		preview := data
		if len(preview) > 6 {
			preview = preview[:6]
		}
		return "", fmt.Errorf("%w: %s (%q)", ErrUnknownImageType, coverURL, preview)
	}

	target := req.BasePath + ext
	if err := writeFileAtomic(target, data); err != nil {
		return "", fmt.Errorf("saving cover art: %w", err)
	}

	return target, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so a crash never leaves a corrupt file at the
// final path.
func writeFileAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
