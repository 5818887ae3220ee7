package headsup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hund/internal/eventbus"
	"hund/internal/notif"
	"hund/pkg/logx"
)

// EventData is the payload published on the bus for heads-up transitions.
type EventData struct {
	Key      string    `json:"key"`
	Package  string    `json:"package"`
	Category string    `json:"category"`
	At       time.Time `json:"at"`
}

// Deps are the collaborators injected into a Manager. Surface is required.
// Clock defaults to the system clock; a nil Beeper, Bus or Snoozes degrades
// to a no-op.
type Deps struct {
	Policy  *Policy
	Surface Surface
	Beeper  Beeper
	Clock   Clock
	Bus     eventbus.Bus
	Snoozes SnoozeStore
	Log     logx.Logger
}

// Manager owns the set of currently active heads-up entries, keyed by
// notification key. It orchestrates timers, dedup, update-in-place, snooze
// windows, and removal, delegating rendering and audio to collaborators.
//
// One mutex serializes every transition, including timer callbacks, so the
// whole registry runs on a single logical timeline.
type Manager struct {
	mu  sync.Mutex
	cfg Config

	policy  *Policy
	surface Surface
	beeper  Beeper
	clock   Clock
	bus     eventbus.Bus
	snoozes SnoozeStore
	log     logx.Logger

	active  map[string]*entry
	snoozed map[string]time.Time
}

func New(cfg Config, deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	return &Manager{
		cfg:     cfg.withDefaults(),
		policy:  deps.Policy,
		surface: deps.Surface,
		beeper:  deps.Beeper,
		clock:   deps.Clock,
		bus:     deps.Bus,
		snoozes: deps.Snoozes,
		log:     deps.Log,
		active:  map[string]*entry{},
		snoozed: map[string]time.Time{},
	}
}

// Apply updates decision knobs at runtime. Entries already on screen keep the
// timers they were armed with.
func (m *Manager) Apply(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg.withDefaults()
	m.mu.Unlock()
	if m.policy != nil {
		m.policy.Apply(cfg)
	}
}

// Show processes a posted or updated notification.
//
// Ineligible items are usually a no-op, with one exception: an update that
// lost eligibility while its entry is still inside the display window
// suppresses the active heads-up (animate-out), since the content on screen
// no longer qualifies.
func (m *Manager) Show(it *notif.Item, ranking *notif.RankingSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.policy != nil && !m.policy.ShouldShow(it, ranking) {
		if e, ok := m.active[it.Key]; ok && e.timer != nil {
			m.log.Debug("active heads-up lost eligibility", logx.String("key", it.Key))
			m.animateOutLocked(e)
			m.publish(eventbus.TypeHeadsUpSuppressed, it)
		}
		return nil
	}

	if m.snoozedLocked(it.Key) {
		m.log.Debug("heads-up snoozed", logx.String("key", it.Key))
		m.publish(eventbus.TypeHeadsUpSuppressed, it)
		return nil
	}

	if e, ok := m.active[it.Key]; ok {
		return m.updateLocked(e, it, ranking)
	}
	return m.createLocked(it, ranking)
}

// Remove processes an explicit withdrawal by the origin. Entries that have
// been visible for at least MinDisplay animate out immediately; younger ones
// stay until the floor is met. Removing an unknown key is a no-op.
func (m *Manager) Remove(it *notif.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.active[it.Key]
	if !ok {
		return nil
	}

	elapsed := m.clock.Now().Sub(e.shownAt)
	if elapsed >= m.cfg.MinDisplay {
		m.animateOutLocked(e)
		m.publish(eventbus.TypeHeadsUpDismissed, e.item)
		return nil
	}
	// Anti-flicker floor: defer the animate-out for the remaining time.
	e.withdrawn = true
	m.armLocked(e, m.cfg.MinDisplay-elapsed)
	m.log.Debug("removal deferred to minimum display floor",
		logx.String("key", it.Key), logx.Duration("remaining", m.cfg.MinDisplay-elapsed))
	return nil
}

// Dismiss handles a user swipe: immediate release without the exit animation,
// plus the start of the snooze window so an instant re-post stays quiet.
// Swipe-exempt entries (see Dismissible) ignore the gesture entirely.
func (m *Manager) Dismiss(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.active[key]
	if !ok {
		return
	}
	if !m.Dismissible(e.item) {
		m.log.Debug("dismiss ignored for exempt entry", logx.String("key", key))
		return
	}
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	delete(m.active, key)
	m.surface.Dismiss(e.handle)

	if m.cfg.Snooze > 0 {
		until := m.clock.Now().Add(m.cfg.Snooze)
		m.snoozed[key] = until
		if m.snoozes != nil {
			go m.persistSnooze(key, until)
		}
	}
	m.publish(eventbus.TypeHeadsUpDismissed, e.item)
}

// Dismissible reports the swipe policy for an item: ongoing full-screen calls
// must ignore dismiss gestures. Surfaces may also consult it to withhold
// their dismiss affordance up front.
func Dismissible(it *notif.Item) bool {
	return !(it.HasFullScreenIntent && it.Category == notif.CategoryCall && it.IsOngoing())
}

func (m *Manager) Dismissible(it *notif.Item) bool { return Dismissible(it) }

// RestoreSnoozes seeds the in-memory snooze windows, typically from storage
// on startup. Expired windows are ignored.
func (m *Manager) RestoreSnoozes(windows map[string]time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	for key, until := range windows {
		if until.After(now) {
			m.snoozed[key] = until
		}
	}
}

// ActiveCount returns the number of entries currently on screen.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Active returns per-entry snapshots for operational visibility.
func (m *Manager) Active() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.active))
	for _, e := range m.active {
		out = append(out, Snapshot{
			Key:         e.key,
			PackageName: e.item.PackageName,
			Category:    e.item.Category,
			ShownAt:     e.shownAt,
			TimerArmed:  e.timer != nil,
		})
	}
	return out
}

// Stop cancels all pending timers and releases every surface handle without
// animation. Used on daemon shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.active {
		e.gen++
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		m.surface.Dismiss(e.handle)
		delete(m.active, key)
	}
}

// ---- transitions (all require m.mu held) ----

func (m *Manager) createLocked(it *notif.Item, ranking *notif.RankingSnapshot) error {
	e := &entry{
		key:          it.Key,
		item:         it,
		shownAt:      m.clock.Now(),
		newlyCreated: true,
		alertsAgain:  it.AlertsAgain(),
	}

	m.beepLocked(it, ranking)

	handle, err := m.surface.Present(it.Key, TemplateFor(it), it)
	if err != nil {
		// No entry was registered; bookkeeping stays consistent.
		return fmt.Errorf("present heads-up %s: %w", it.Key, err)
	}
	e.handle = handle
	m.surface.AnimateIn(handle)

	m.active[it.Key] = e
	if !it.HasFullScreenIntent {
		m.armLocked(e, m.cfg.Duration)
	}
	e.newlyCreated = false

	m.log.Info("heads-up shown",
		logx.String("key", it.Key),
		logx.String("package", it.PackageName),
		logx.String("category", it.Category.String()),
		logx.String("template", TemplateFor(it).String()),
		logx.Bool("auto_dismiss", !it.HasFullScreenIntent))
	m.publish(eventbus.TypeHeadsUpShown, it)
	return nil
}

func (m *Manager) updateLocked(e *entry, it *notif.Item, ranking *notif.RankingSnapshot) error {
	e.item = it
	e.alertsAgain = it.AlertsAgain()
	// A fresh update supersedes any deferred withdrawal.
	e.withdrawn = false

	if e.alertsAgain {
		// Re-alert: fresh display window, fresh sound. Content refreshes in
		// place; the enter animation never replays for updates.
		e.shownAt = m.clock.Now()
		m.beepLocked(it, ranking)
		if it.HasFullScreenIntent {
			e.gen++
			if e.timer != nil {
				e.timer.Stop()
				e.timer = nil
			}
		} else {
			m.armLocked(e, m.cfg.Duration)
		}
	}

	if err := m.surface.UpdateContent(e.handle, it); err != nil {
		return fmt.Errorf("update heads-up %s: %w", it.Key, err)
	}
	m.log.Debug("heads-up updated",
		logx.String("key", it.Key), logx.Bool("alert_again", e.alertsAgain))
	m.publish(eventbus.TypeHeadsUpUpdated, it)
	return nil
}

// armLocked replaces the entry's pending timer. The generation bump makes a
// concurrently firing old callback a no-op even if Stop() came too late.
func (m *Manager) armLocked(e *entry, d time.Duration) {
	e.gen++
	gen := e.gen
	if e.timer != nil {
		e.timer.Stop()
	}
	key := e.key
	e.timer = m.clock.Schedule(d, func() { m.expire(key, gen) })
}

// expire is the timer callback: it joins the registry timeline by taking the
// same mutex as Show/Remove.
func (m *Manager) expire(key string, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.active[key]
	if !ok || e.gen != gen {
		return
	}
	e.timer = nil
	item := e.item
	eventType := eventbus.TypeHeadsUpExpired
	if e.withdrawn {
		eventType = eventbus.TypeHeadsUpDismissed
	}
	m.animateOutLocked(e)
	m.publish(eventType, item)
}

// animateOutLocked finalizes removal: cancel the pending timer, drop the
// registry entry, then hand the handle to the surface for the exit animation.
// The completion callback only releases the handle.
func (m *Manager) animateOutLocked(e *entry) {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	delete(m.active, e.key)

	h := e.handle
	surface := m.surface
	surface.AnimateOut(h, func() { surface.Dismiss(h) })
}

func (m *Manager) beepLocked(it *notif.Item, ranking *notif.RankingSnapshot) {
	if m.beeper == nil {
		return
	}
	// Sound comes from the ranking snapshot's channel data; a channel without
	// a configured sound alerts silently.
	if r, ok := ranking.Get(it.Key); ok && r.ChannelSound != "" {
		m.beeper.Beep(it.PackageName, r.ChannelSound)
	}
}

func (m *Manager) snoozedLocked(key string) bool {
	until, ok := m.snoozed[key]
	if !ok {
		return false
	}
	if m.clock.Now().Before(until) {
		return true
	}
	delete(m.snoozed, key)
	if m.snoozes != nil {
		go m.deleteSnooze(key)
	}
	return false
}

func (m *Manager) persistSnooze(key string, until time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.snoozes.PutSnooze(ctx, key, until); err != nil {
		m.log.Warn("snooze persist failed", logx.String("key", key), logx.Err(err))
	}
}

func (m *Manager) deleteSnooze(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.snoozes.DeleteSnooze(ctx, key); err != nil {
		m.log.Debug("snooze cleanup failed", logx.String("key", key), logx.Err(err))
	}
}

func (m *Manager) publish(eventType string, it *notif.Item) {
	if m.bus == nil {
		return
	}
	now := m.clock.Now()
	m.bus.Publish(eventbus.Event{
		Type: eventType,
		Time: now,
		Data: EventData{
			Key:      it.Key,
			Package:  it.PackageName,
			Category: it.Category.String(),
			At:       now,
		},
	})
}
