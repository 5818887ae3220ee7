package headsup

import (
	"time"

	"hund/internal/notif"
)

// entry is the per-active-notification runtime state. It owns at most one
// pending timer; arming a new one always cancels the previous first. The
// generation counter makes callbacks from cancelled timers no-ops even when
// Stop() loses the race against an already-fired timer.
type entry struct {
	key  string
	item *notif.Item

	shownAt      time.Time
	newlyCreated bool
	alertsAgain  bool

	handle ViewHandle

	// withdrawn marks an origin removal deferred to the minimum display floor.
	withdrawn bool

	timer Timer
	gen   uint64
}

// Snapshot is the externally visible state of one active entry.
type Snapshot struct {
	Key         string
	PackageName string
	Category    notif.Category
	ShownAt     time.Time
	TimerArmed  bool
}
