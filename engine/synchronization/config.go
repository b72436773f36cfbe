package synchronization

import (
	"time"
)

type Config struct {
	BroadcastInterval time.Duration
	ScanInterval      time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		BroadcastInterval: 8 * time.Second,
		ScanInterval:      2 * time.Second,
	}
}

type OptionFunc func(*Config)

// WithBroadcastInterval sets a custom interval at which we broadcast our
// finalized state to all peers. Zero disables periodic broadcasts.
func WithBroadcastInterval(interval time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.BroadcastInterval = interval
	}
}

// WithScanInterval sets a custom interval at which we scan for pending blocks
// and request them from peers.
func WithScanInterval(interval time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.ScanInterval = interval
	}
}
