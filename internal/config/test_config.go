package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	cfg := defaultConfig()
	cfg.Network.Timeout = 5 * time.Second
	cfg.Network.CoverTimeout = 2 * time.Second
	cfg.Network.UserAgent = "gpodder-test/1.0"
	cfg.Network.RequestsPerSecond = 0 // no throttling in tests
	return cfg
}
