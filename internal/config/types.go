package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`
	HeadsUp HeadsUpConfig `json:"headsup"`

	// Storage is the optional persistence layer for snooze windows and
	// decision history. Nil means in-memory only.
	Storage *StorageConfig `json:"storage,omitempty"`

	Surface SurfaceConfig `json:"surface"`
	Audio   AudioConfig   `json:"audio"`
	Janitor JanitorConfig `json:"janitor"`
	Ingest  IngestConfig  `json:"ingest"`

	// AppNames maps package names to human-readable application names used
	// when deriving group summary text.
	AppNames map[string]string `json:"app_names,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// HeadsUpConfig controls heads-up eligibility and timing.
//
// All durations are Go duration strings (e.g. "400ms", "5s").
type HeadsUpConfig struct {
	NavigationHeadsUp bool `json:"navigation_headsup"`

	// Duration is how long an entry stays on screen before auto-dismissing.
	Duration string `json:"duration,omitempty"`
	// MinDisplay is the anti-flicker floor for externally withdrawn entries.
	MinDisplay string `json:"min_display,omitempty"`
	EnterAnim  string `json:"enter_anim,omitempty"`
	ExitAnim   string `json:"exit_anim,omitempty"`
	// Snooze is how long a user-dismissed key stays quiet. "0s" disables it.
	Snooze string `json:"snooze,omitempty"`

	// TrustedPackages alert regardless of category when their importance is
	// unknown. MutedPackages never alert.
	TrustedPackages []string `json:"trusted_packages,omitempty"`
	MutedPackages   []string `json:"muted_packages,omitempty"`
}

// StorageConfig selects the persistence backend.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./hund_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SurfaceConfig selects where heads-up entries are rendered.
type SurfaceConfig struct {
	Telegram *TelegramSurfaceConfig `json:"telegram,omitempty"`
}

type TelegramSurfaceConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// AudioConfig controls the alert sound player. RatePerSec caps how many
// alert sounds may start per second so a notification storm doesn't turn
// into a solid tone.
type AudioConfig struct {
	Enabled    bool `json:"enabled"`
	RatePerSec int  `json:"rate_per_sec,omitempty"`
	Burst      int  `json:"burst,omitempty"`
}

// JanitorConfig controls periodic maintenance (expired snooze windows,
// old decision history). Schedule is a cron expression.
type JanitorConfig struct {
	Enabled          bool   `json:"enabled"`
	Schedule         string `json:"schedule,omitempty"`
	HistoryRetention string `json:"history_retention,omitempty"` // Go duration string
}

// IngestConfig controls the local listener that feeds notification events
// into the pipeline.
type IngestConfig struct {
	// Socket is the unix socket path the listener binds.
	Socket string `json:"socket"`
	// MaxLineBytes bounds a single JSON event line. 0 means the default.
	MaxLineBytes int `json:"max_line_bytes,omitempty"`
}

// Validate checks every parseable field so a bad edit is rejected before
// commit instead of surfacing later as a runtime failure.
func (c *Config) Validate() error {
	durations := []struct {
		path string
		raw  string
	}{
		{"headsup.duration", c.HeadsUp.Duration},
		{"headsup.min_display", c.HeadsUp.MinDisplay},
		{"headsup.enter_anim", c.HeadsUp.EnterAnim},
		{"headsup.exit_anim", c.HeadsUp.ExitAnim},
		{"headsup.snooze", c.HeadsUp.Snooze},
		{"janitor.history_retention", c.Janitor.HistoryRetention},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	if c.Storage != nil {
		switch strings.TrimSpace(c.Storage.Driver) {
		case "file", "sqlite":
		case "":
			return fmt.Errorf("storage.driver: required when storage is set")
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
		}
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path: required")
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if t := c.Surface.Telegram; t != nil {
		if strings.TrimSpace(t.Token) == "" {
			return fmt.Errorf("surface.telegram.token: required")
		}
		if t.ChatID == 0 {
			return fmt.Errorf("surface.telegram.chat_id: required")
		}
		if _, err := ParseDurationField("surface.telegram.poll_timeout", t.PollTimeout); err != nil {
			return err
		}
	}
	if c.Audio.RatePerSec < 0 {
		return fmt.Errorf("audio.rate_per_sec: must be >= 0")
	}
	if c.Ingest.MaxLineBytes < 0 {
		return fmt.Errorf("ingest.max_line_bytes: must be >= 0")
	}
	return nil
}

// HeadsUpDurations resolves the timing fields with their defaults applied.
func (c *Config) HeadsUpDurations() (duration, minDisplay, enterAnim, exitAnim, snooze time.Duration, err error) {
	if duration, err = ParseDurationOrDefault("headsup.duration", c.HeadsUp.Duration, 5*time.Second); err != nil {
		return
	}
	if minDisplay, err = ParseDurationOrDefault("headsup.min_display", c.HeadsUp.MinDisplay, 2*time.Second); err != nil {
		return
	}
	if enterAnim, err = ParseDurationOrDefault("headsup.enter_anim", c.HeadsUp.EnterAnim, 400*time.Millisecond); err != nil {
		return
	}
	if exitAnim, err = ParseDurationOrDefault("headsup.exit_anim", c.HeadsUp.ExitAnim, 300*time.Millisecond); err != nil {
		return
	}
	snooze, err = ParseDurationField("headsup.snooze", c.HeadsUp.Snooze)
	return
}
