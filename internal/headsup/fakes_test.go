package headsup

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"hund/internal/notif"
)

// ---- fake clock ----

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Schedule(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward, firing due timers in chronological order.
// Callbacks run without the clock lock held so they may consult Now() or
// schedule new timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		if next.at.After(c.now) {
			c.now = next.at
		}
		next.fired = true
		fn := next.fn
		c.mu.Unlock()
		fn()
	}
}

// ---- fake surface ----

type surfaceCall struct {
	op  string // present, update, animate_in, animate_out, dismiss
	key string
}

type fakeSurface struct {
	mu         sync.Mutex
	calls      []surfaceCall
	presentErr error
	updateErr  error
}

func (s *fakeSurface) record(op, key string) {
	s.mu.Lock()
	s.calls = append(s.calls, surfaceCall{op: op, key: key})
	s.mu.Unlock()
}

func (s *fakeSurface) Present(key string, _ Template, _ *notif.Item) (ViewHandle, error) {
	if s.presentErr != nil {
		return nil, s.presentErr
	}
	s.record("present", key)
	return key, nil
}

func (s *fakeSurface) UpdateContent(h ViewHandle, _ *notif.Item) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.record("update", h.(string))
	return nil
}

func (s *fakeSurface) AnimateIn(h ViewHandle) { s.record("animate_in", h.(string)) }

func (s *fakeSurface) AnimateOut(h ViewHandle, onComplete func()) {
	s.record("animate_out", h.(string))
	if onComplete != nil {
		onComplete()
	}
}

func (s *fakeSurface) Dismiss(h ViewHandle) { s.record("dismiss", h.(string)) }

func (s *fakeSurface) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

// ---- other fakes ----

type fakeBeeper struct {
	mu    sync.Mutex
	beeps []string
}

func (b *fakeBeeper) Beep(_, soundURI string) {
	b.mu.Lock()
	b.beeps = append(b.beeps, soundURI)
	b.mu.Unlock()
}

func (b *fakeBeeper) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.beeps)
}

type fakeLock struct{ locked bool }

func (l *fakeLock) IsLocked() bool { return l.locked }

type fakeMute struct{ muted map[string]bool }

func (m *fakeMute) IsMuted(it *notif.Item) bool { return m.muted[it.Key] }

type fakeTrust struct {
	trusted map[string]bool
	carMsg  map[string]bool
}

func (t *fakeTrust) IsTrustedSource(it *notif.Item) bool        { return t.trusted[it.Key] }
func (t *fakeTrust) IsCarCompatibleMessage(it *notif.Item) bool { return t.carMsg[it.Key] }

type fakeSnoozes struct {
	mu      sync.Mutex
	puts    map[string]time.Time
	deletes []string
}

func (s *fakeSnoozes) PutSnooze(_ context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.puts == nil {
		s.puts = map[string]time.Time{}
	}
	s.puts[key] = until
	return nil
}

func (s *fakeSnoozes) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

func (s *fakeSnoozes) DeleteSnooze(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	return nil
}

var errSurfaceDown = errors.New("surface unavailable")

func sortedOps(calls []surfaceCall) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.op
	}
	sort.Strings(out)
	return out
}
