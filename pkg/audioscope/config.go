package audioscope

import (
	"time"

	"github.com/himanishpuri/AudioScope/internal/analysis"
	"github.com/himanishpuri/AudioScope/internal/overlay"
	"github.com/himanishpuri/AudioScope/internal/session"
)

type Config struct {
	DBPath          string
	TempDir         string
	WindowSize      int
	HopSize         int
	RefreshInterval time.Duration
	Logger          Logger
	Storage         Storage
	OutputFactory   session.OutputFactory
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

// WithWindowSize sets the STFT window length in samples.
func WithWindowSize(n int) Option {
	return func(c *Config) {
		c.WindowSize = n
	}
}

// WithHopSize sets the STFT hop in samples.
func WithHopSize(n int) Option {
	return func(c *Config) {
		c.HopSize = n
	}
}

// WithRefreshInterval sets how often playhead overlays redraw.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Config) {
		c.RefreshInterval = d
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithOutputFactory chooses the audio device used by sessions. The default
// is a headless clocked output.
func WithOutputFactory(f session.OutputFactory) Option {
	return func(c *Config) {
		c.OutputFactory = f
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:          "audioscope.sqlite3",
		TempDir:         "/tmp",
		WindowSize:      analysis.DefaultWindowSize,
		HopSize:         analysis.DefaultHopSize,
		RefreshInterval: overlay.DefaultInterval,
		Logger:          nil,
		OutputFactory:   session.HeadlessOutputs,
	}
}
