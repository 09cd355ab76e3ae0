// Package core assembles a ready-to-use engine from its collaborators:
// configuration, persistence, networking, the plugin registry and the
// podcast model.
package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gpodder/gpodder-core/internal/config"
	"github.com/gpodder/gpodder-core/internal/coverart"
	"github.com/gpodder/gpodder-core/internal/debuglog"
	"github.com/gpodder/gpodder-core/internal/feeds"
	"github.com/gpodder/gpodder-core/internal/fetch"
	"github.com/gpodder/gpodder-core/internal/model"
	"github.com/gpodder/gpodder-core/internal/registry"
	"github.com/gpodder/gpodder-core/internal/storage"
)

// Core holds the fully wired engine. Construct one with New, use the
// Model, then Shutdown.
type Core struct {
	Config   *config.Config
	Store    *storage.Store
	Client   *fetch.Client
	Registry *registry.Registry
	Covers   *coverart.Downloader
	Model    *model.Model
}

// Options tweaks construction. The zero value uses the default config
// location and the bundled plugins.
type Options struct {
	// ConfigPath overrides the default config file location.
	ConfigPath string
	// DatabasePath overrides the database location; default is
	// gpodder.db next to the downloads directory.
	DatabasePath string
	// Registry supplies a pre-populated handler registry; nil means the
	// bundled plugins.
	Registry *registry.Registry
	// LogLevel sets the log level; the zero value logs everything.
	LogLevel debuglog.Level
	// LogPath is passed to the logger; empty means the default file.
	LogPath string
}

func New(opts Options) (*Core, error) {
	if err := debuglog.Setup(opts.LogLevel, opts.LogPath); err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := os.MkdirAll(cfg.Downloads.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating downloads directory: %w", err)
	}

	dbPath := opts.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(filepath.Dir(cfg.Downloads.Dir), "gpodder.db")
	}
	store, err := storage.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	client := fetch.NewClient(cfg)

	reg := opts.Registry
	if reg == nil {
		reg = registry.New()
		feeds.RegisterAll(reg, client, cfg)
	}

	covers := coverart.NewDownloader(client, reg, cfg)

	return &Core{
		Config:   cfg,
		Store:    store,
		Client:   client,
		Registry: reg,
		Covers:   covers,
		Model:    model.New(cfg, store, reg, client, covers),
	}, nil
}

// Save flushes pending database state to disk.
func (c *Core) Save() error {
	return c.Store.Commit()
}

// Shutdown flushes and closes the database and the log file.
func (c *Core) Shutdown() error {
	err := c.Store.Close()
	if logErr := debuglog.Close(); err == nil {
		err = logErr
	}
	return err
}
