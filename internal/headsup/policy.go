package headsup

import (
	"sync"

	"hund/internal/notif"
)

// Policy decides whether a single item should be promoted to heads-up.
//
// The rules form a priority list, not independent predicates: the first rule
// that decides wins and later rules never run.
type Policy struct {
	mu  sync.Mutex
	cfg Config

	lock  LockState
	mute  MuteState
	trust TrustEvaluator
}

func NewPolicy(cfg Config, lock LockState, mute MuteState, trust TrustEvaluator) *Policy {
	return &Policy{cfg: cfg.withDefaults(), lock: lock, mute: mute, trust: trust}
}

func (p *Policy) Apply(cfg Config) {
	p.mu.Lock()
	p.cfg = cfg.withDefaults()
	p.mu.Unlock()
}

// ShouldShow evaluates the promotion rules in their fixed short-circuit order.
func (p *Policy) ShouldShow(it *notif.Item, ranking *notif.RankingSnapshot) bool {
	p.mu.Lock()
	navEnabled := p.cfg.NavigationHeadsUp
	p.mu.Unlock()

	// 1. Never promote over a locked display.
	if p.lock != nil && p.lock.IsLocked() {
		return false
	}
	// 2. Navigation heads-up disabled by configuration.
	if it.Category == notif.CategoryNavigation && !navEnabled {
		return false
	}
	// 3. The group summary alerts on this item's behalf.
	if it.SuppressAlertingDueToGrouping() {
		return false
	}
	// 4. Conversation muted by the user.
	if p.mute != nil && p.mute.IsMuted(it) {
		return false
	}
	// 5. Importance gate. A missing ranking entry means importance is
	// unknown: fall through and let the remaining rules decide.
	if r, ok := ranking.Get(it.Key); ok {
		return r.Importance >= notif.ImportanceHigh
	}
	// 6. Privileged/system-trusted sources always promote.
	if p.trust != nil && p.trust.IsTrustedSource(it) {
		return true
	}
	// 7. Recognized car-compatible messaging shape.
	if p.trust != nil && p.trust.IsCarCompatibleMessage(it) {
		return true
	}
	// 8. Category allowlist.
	if it.Category == notif.CategoryCall || it.Category == notif.CategoryNavigation {
		return true
	}
	return false
}
