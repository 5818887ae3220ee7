package config

import (
	"reflect"
	"sort"
	"strings"

	logx "hund/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging. Secrets (the surface token) are never logged,
// only whether one is set.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Heads-up policy and timing
	if !reflect.DeepEqual(oldCfg.HeadsUp, newCfg.HeadsUp) {
		changed = append(changed, "headsup")
		attrs = append(attrs,
			logx.Bool("headsup.navigation", newCfg.HeadsUp.NavigationHeadsUp),
			logx.String("headsup.duration", strings.TrimSpace(newCfg.HeadsUp.Duration)),
			logx.String("headsup.min_display", strings.TrimSpace(newCfg.HeadsUp.MinDisplay)),
			logx.String("headsup.snooze", strings.TrimSpace(newCfg.HeadsUp.Snooze)),
			logx.Int("headsup.trusted_count", len(newCfg.HeadsUp.TrustedPackages)),
			logx.Int("headsup.muted_count", len(newCfg.HeadsUp.MutedPackages)),
		)
	}

	// Storage. Nil means disabled.
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if s := oldCfg.Storage; s != nil {
		oDriver = strings.TrimSpace(s.Driver)
		oBusy = strings.TrimSpace(s.BusyTimeout)
		oPathSet = strings.TrimSpace(s.Path) != ""
	}
	if s := newCfg.Storage; s != nil {
		nDriver = strings.TrimSpace(s.Driver)
		nBusy = strings.TrimSpace(s.BusyTimeout)
		nPathSet = strings.TrimSpace(s.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	// Surface (never log the token)
	oTG := oldCfg.Surface.Telegram
	nTG := newCfg.Surface.Telegram
	tgChanged := (oTG == nil) != (nTG == nil)
	if !tgChanged && oTG != nil && nTG != nil {
		tgChanged = oTG.ChatID != nTG.ChatID ||
			strings.TrimSpace(oTG.PollTimeout) != strings.TrimSpace(nTG.PollTimeout) ||
			(strings.TrimSpace(oTG.Token) != "") != (strings.TrimSpace(nTG.Token) != "")
	}
	if tgChanged {
		changed = append(changed, "surface")
		attrs = append(attrs, logx.Bool("surface.telegram", nTG != nil))
		if nTG != nil {
			attrs = append(attrs,
				logx.Bool("surface.token_set", strings.TrimSpace(nTG.Token) != ""),
				logx.String("surface.poll_timeout", strings.TrimSpace(nTG.PollTimeout)),
			)
		}
	}

	// Audio
	if oldCfg.Audio != newCfg.Audio {
		changed = append(changed, "audio")
		attrs = append(attrs,
			logx.Bool("audio.enabled", newCfg.Audio.Enabled),
			logx.Int("audio.rate_per_sec", newCfg.Audio.RatePerSec),
		)
	}

	// Janitor
	if oldCfg.Janitor != newCfg.Janitor {
		changed = append(changed, "janitor")
		attrs = append(attrs,
			logx.Bool("janitor.enabled", newCfg.Janitor.Enabled),
			logx.String("janitor.schedule", strings.TrimSpace(newCfg.Janitor.Schedule)),
			logx.String("janitor.history_retention", strings.TrimSpace(newCfg.Janitor.HistoryRetention)),
		)
	}

	// Ingest
	if oldCfg.Ingest != newCfg.Ingest {
		changed = append(changed, "ingest")
		attrs = append(attrs,
			logx.String("ingest.socket", strings.TrimSpace(newCfg.Ingest.Socket)),
			logx.Int("ingest.max_line_bytes", newCfg.Ingest.MaxLineBytes),
		)
	}

	// App name table for summaries
	if !reflect.DeepEqual(oldCfg.AppNames, newCfg.AppNames) {
		changed = append(changed, "app_names")
		attrs = append(attrs, logx.Int("app_names.count", len(newCfg.AppNames)))
	}

	sort.Strings(changed)
	return changed, attrs
}
