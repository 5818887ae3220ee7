// Package audio plays heads-up alert sounds. A token bucket caps how many
// sounds may start per second so a notification storm doesn't turn into a
// solid tone.
package audio

import (
	"sync"

	"golang.org/x/time/rate"

	logx "hund/pkg/logx"
)

// Config controls the player.
type Config struct {
	Enabled    bool
	RatePerSec int // 0 means default (2)
	Burst      int // 0 means default (2)
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 2
	}
	if c.Burst <= 0 {
		c.Burst = 2
	}
	return c
}

// Sink is the device that actually emits a sound.
type Sink interface {
	Play(soundURI string) error
}

// Player implements the heads-up Beeper. Calls past the rate limit are
// dropped, not queued; a late alert sound is worse than none.
type Player struct {
	mu      sync.Mutex
	enabled bool
	limiter *rate.Limiter
	sink    Sink
	log     logx.Logger
}

func New(cfg Config, sink Sink, log logx.Logger) *Player {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Player{
		enabled: cfg.Enabled,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		sink:    sink,
		log:     log,
	}
}

// Apply updates the limiter at runtime.
func (p *Player) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	p.mu.Lock()
	p.enabled = cfg.Enabled
	p.limiter.SetLimit(rate.Limit(cfg.RatePerSec))
	p.limiter.SetBurst(cfg.Burst)
	p.mu.Unlock()
}

func (p *Player) Beep(pkg, soundURI string) {
	if soundURI == "" {
		return
	}
	p.mu.Lock()
	enabled := p.enabled
	allowed := enabled && p.limiter.Allow()
	p.mu.Unlock()
	if !enabled {
		return
	}
	if !allowed {
		p.log.Debug("alert sound dropped (rate limited)",
			logx.String("package", pkg), logx.String("sound", soundURI))
		return
	}
	if p.sink == nil {
		return
	}
	if err := p.sink.Play(soundURI); err != nil {
		p.log.Warn("alert sound failed",
			logx.String("package", pkg), logx.String("sound", soundURI), logx.Err(err))
	}
}
