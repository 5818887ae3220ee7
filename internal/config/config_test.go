package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
logging:
  level: debug
  console: true
headsup:
  navigation_headsup: true
  duration: 8s
  snooze: 1m
  muted_packages: [com.spam.app]
storage:
  driver: file
  path: ./store
ingest:
  socket: /run/hund.sock
app_names:
  com.example.mail: Mail
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.HeadsUp.NavigationHeadsUp {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.AppNames["com.example.mail"] != "Mail" {
		t.Fatal("app_names not decoded")
	}
	d, _, _, _, snooze, err := cfg.HeadsUpDurations()
	if err != nil {
		t.Fatalf("HeadsUpDurations: %v", err)
	}
	if d != 8*time.Second || snooze != time.Minute {
		t.Fatalf("durations = %v/%v", d, snooze)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
logging:
  level: info
headsup:
  durration: 8s
ingest:
  socket: /run/hund.sock
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestHeadsUpDurationDefaults(t *testing.T) {
	t.Parallel()
	var cfg Config
	d, minDisplay, enter, exit, snooze, err := cfg.HeadsUpDurations()
	if err != nil {
		t.Fatalf("HeadsUpDurations: %v", err)
	}
	if d != 5*time.Second || minDisplay != 2*time.Second {
		t.Fatalf("display defaults = %v/%v", d, minDisplay)
	}
	if enter != 400*time.Millisecond || exit != 300*time.Millisecond {
		t.Fatalf("animation defaults = %v/%v", enter, exit)
	}
	if snooze != 0 {
		t.Fatalf("snooze default = %v, want 0", snooze)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"empty ok", func(c *Config) {}, false},
		{"bad duration", func(c *Config) { c.HeadsUp.Duration = "fast" }, true},
		{"negative duration", func(c *Config) { c.HeadsUp.Snooze = "-1s" }, true},
		{"storage without driver", func(c *Config) { c.Storage = &StorageConfig{Path: "./x"} }, true},
		{"storage unknown driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "redis", Path: "./x"} }, true},
		{"storage ok", func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite", Path: "./x.db"} }, false},
		{"telegram without token", func(c *Config) {
			c.Surface.Telegram = &TelegramSurfaceConfig{ChatID: 1}
		}, true},
		{"telegram ok", func(c *Config) {
			c.Surface.Telegram = &TelegramSurfaceConfig{Token: "t", ChatID: 1}
		}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var cfg Config
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		HeadsUp: HeadsUpConfig{Duration: "8s"},
		Storage: &StorageConfig{Driver: "file", Path: "./store"},
	}
	changed, _ := SummarizeChange(oldCfg, newCfg)
	want := []string{"headsup", "logging", "storage"}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Fatalf("changed = %v, want %v", changed, want)
		}
	}
}
