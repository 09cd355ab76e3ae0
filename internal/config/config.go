package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Limit     LimitConfig     `mapstructure:"limit"`
	Downloads DownloadsConfig `mapstructure:"downloads"`
	Network   NetworkConfig   `mapstructure:"network"`
	Plugins   PluginsConfig   `mapstructure:"plugins"`
}

type LimitConfig struct {
	// Episodes is the maximum number of episodes fetched per feed update.
	Episodes int `mapstructure:"episodes"`
}

type DownloadsConfig struct {
	// Dir is the base directory holding one save directory per podcast.
	Dir string `mapstructure:"dir"`
}

type NetworkConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	CoverTimeout      time.Duration `mapstructure:"cover_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type PluginsConfig struct {
	YouTube YouTubeConfig `mapstructure:"youtube"`
	Vimeo   VimeoConfig   `mapstructure:"vimeo"`
}

type YouTubeConfig struct {
	// PreferredFormats is an ordered list of itag format ids to try.
	PreferredFormats []int  `mapstructure:"preferred_formats"`
	APIKey           string `mapstructure:"api_key"`
}

type VimeoConfig struct {
	// Format is the preferred quality: hd, sd or mobile.
	Format string `mapstructure:"format"`
}

func defaultConfig() *Config {
	home, _ := os.UserHomeDir()
	downloads := filepath.Join(home, ".local", "share", "gpodder")
	if env := os.Getenv("GPODDER_DOWNLOAD_DIR"); env != "" {
		downloads = env
	} else if env := os.Getenv("GPODDER_HOME"); env != "" {
		downloads = env
	}

	return &Config{
		Limit: LimitConfig{
			Episodes: 200,
		},
		Downloads: DownloadsConfig{
			Dir: downloads,
		},
		Network: NetworkConfig{
			Timeout:           30 * time.Second,
			CoverTimeout:      5 * time.Second,
			UserAgent:         "gpodder-core/1.0 (podcast aggregator)",
			RequestsPerSecond: 4,
		},
		Plugins: PluginsConfig{
			YouTube: YouTubeConfig{
				PreferredFormats: []int{22, 35, 18, 34, 6, 5},
			},
			Vimeo: VimeoConfig{
				Format: "hd",
			},
		},
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("limit", cfg.Limit)
	v.SetDefault("downloads", cfg.Downloads)
	v.SetDefault("network", cfg.Network)
	v.SetDefault("plugins", cfg.Plugins)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, _ := os.UserHomeDir()
		configDir := filepath.Join(home, ".config", "gpodder")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("GPODDER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	config.Downloads.Dir = expandPath(config.Downloads.Dir)

	return &config, nil
}

// expandPath expands ~ to the home directory and makes the path absolute.
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func Save(config *Config, path string) error {
	v := viper.New()

	networkCfg := map[string]interface{}{
		"timeout":             config.Network.Timeout.String(),
		"cover_timeout":       config.Network.CoverTimeout.String(),
		"user_agent":          config.Network.UserAgent,
		"requests_per_second": config.Network.RequestsPerSecond,
	}

	v.Set("limit", config.Limit)
	v.Set("downloads", config.Downloads)
	v.Set("network", networkCfg)
	v.Set("plugins", config.Plugins)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
