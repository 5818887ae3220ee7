package app

import (
	"sync"
	"sync/atomic"

	"hund/internal/notif"
)

// lockFlag tracks the display lock state reported over ingest.
type lockFlag struct{ locked atomic.Bool }

func (l *lockFlag) IsLocked() bool  { return l.locked.Load() }
func (l *lockFlag) Set(locked bool) { l.locked.Store(locked) }

// muteList suppresses alerting for configured packages.
type muteList struct {
	mu   sync.RWMutex
	pkgs map[string]struct{}
}

func newMuteList(pkgs []string) *muteList {
	m := &muteList{}
	m.Set(pkgs)
	return m
}

func (m *muteList) Set(pkgs []string) {
	set := make(map[string]struct{}, len(pkgs))
	for _, p := range pkgs {
		set[p] = struct{}{}
	}
	m.mu.Lock()
	m.pkgs = set
	m.mu.Unlock()
}

func (m *muteList) IsMuted(it *notif.Item) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pkgs[it.PackageName]
	return ok
}

// trustList classifies privileged senders (config-driven allowlist) and
// recognizes car-compatible messaging shapes.
type trustList struct {
	mu   sync.RWMutex
	pkgs map[string]struct{}
}

func newTrustList(pkgs []string) *trustList {
	t := &trustList{}
	t.Set(pkgs)
	return t
}

func (t *trustList) Set(pkgs []string) {
	set := make(map[string]struct{}, len(pkgs))
	for _, p := range pkgs {
		set[p] = struct{}{}
	}
	t.mu.Lock()
	t.pkgs = set
	t.mu.Unlock()
}

func (t *trustList) IsTrustedSource(it *notif.Item) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.pkgs[it.PackageName]
	return ok
}

// IsCarCompatibleMessage reports a messaging notification with actual content
// to read out.
func (t *trustList) IsCarCompatibleMessage(it *notif.Item) bool {
	return it.Category == notif.CategoryMessage && it.Body != ""
}
