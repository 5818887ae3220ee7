package headsup

import (
	"context"
	"time"

	"hund/internal/notif"
)

// Config carries the decision knobs. Durations are immutable per Apply();
// entries already on screen keep the timers they were armed with.
type Config struct {
	// NavigationHeadsUp enables heads-up promotion for navigation
	// notifications. OEM-style toggle; off suppresses the category entirely.
	NavigationHeadsUp bool

	// Duration is the auto-dismiss delay for entries without a full-screen
	// intent.
	Duration time.Duration
	// MinDisplay is the anti-flicker floor: an entry withdrawn early stays
	// visible until this much time has passed since it was first shown.
	MinDisplay time.Duration

	// EnterAnim/ExitAnim are handed to the surface collaborator; the core
	// never waits on them.
	EnterAnim time.Duration
	ExitAnim  time.Duration

	// Snooze is the suppression window after a user dismissal during which a
	// re-post of the same key is ignored.
	Snooze time.Duration
}

func (c Config) withDefaults() Config {
	if c.Duration <= 0 {
		c.Duration = 5 * time.Second
	}
	if c.MinDisplay <= 0 {
		c.MinDisplay = 2 * time.Second
	}
	if c.EnterAnim <= 0 {
		c.EnterAnim = 400 * time.Millisecond
	}
	if c.ExitAnim <= 0 {
		c.ExitAnim = 300 * time.Millisecond
	}
	if c.Snooze < 0 {
		c.Snooze = 0
	}
	return c
}

// Template selects which heads-up template the surface should inflate.
// The choice here may differ from the template the same notification gets in
// the persistent list.
type Template int

const (
	TemplateBasic Template = iota
	TemplateEmergency
	TemplateWarning
	TemplateInformation
	TemplateMessage
	TemplateInbox
)

func (t Template) String() string {
	switch t {
	case TemplateEmergency:
		return "emergency"
	case TemplateWarning:
		return "warning"
	case TemplateInformation:
		return "information"
	case TemplateMessage:
		return "message"
	case TemplateInbox:
		return "inbox"
	default:
		return "basic"
	}
}

// TemplateFor picks the heads-up template for an item.
func TemplateFor(it *notif.Item) Template {
	switch it.Category {
	case notif.CategoryEmergency:
		return TemplateEmergency
	case notif.CategoryWarning:
		return TemplateWarning
	case notif.CategoryInformation:
		return TemplateInformation
	case notif.CategoryMessage:
		return TemplateMessage
	}
	if it.Body != "" && it.SummaryText != "" {
		return TemplateInbox
	}
	return TemplateBasic
}

// ViewHandle is the surface's opaque handle for one presented entry. The
// entry owns it exclusively and releases it exactly once on removal.
type ViewHandle any

// Surface renders heads-up entries. Calls are fire-and-forget from the
// core's perspective; AnimateOut's onComplete must only release resources and
// never re-enter decision logic.
type Surface interface {
	Present(key string, tpl Template, it *notif.Item) (ViewHandle, error)
	UpdateContent(h ViewHandle, it *notif.Item) error
	AnimateIn(h ViewHandle)
	AnimateOut(h ViewHandle, onComplete func())
	Dismiss(h ViewHandle)
}

// Beeper plays the alert sound for a newly shown (or re-alerting) entry.
type Beeper interface {
	Beep(packageName, soundURI string)
}

// LockState reports whether the display is locked.
type LockState interface {
	IsLocked() bool
}

// MuteState reports whether the user muted the item's conversation.
type MuteState interface {
	IsMuted(it *notif.Item) bool
}

// TrustEvaluator classifies privileged senders and recognized car-compatible
// messaging shapes.
type TrustEvaluator interface {
	IsTrustedSource(it *notif.Item) bool
	IsCarCompatibleMessage(it *notif.Item) bool
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the callback; it reports false when the callback already
	// fired or was stopped before.
	Stop() bool
}

// Clock supplies time and scheduling so tests can drive the timeline.
type Clock interface {
	Now() time.Time
	Schedule(d time.Duration, fn func()) Timer
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Schedule(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SnoozeStore persists snooze windows across restarts. Implementations are
// best-effort; the in-memory window is authoritative.
type SnoozeStore interface {
	PutSnooze(ctx context.Context, key string, until time.Time) error
	DeleteSnooze(ctx context.Context, key string) error
}
