// Package headsup decides which notifications are promoted to the transient
// heads-up presentation and runs their lifecycle: eligibility, per-key
// auto-dismiss timers, update/alert-again semantics, the minimum-visible-time
// floor, snooze windows, and removal.
//
// All state transitions for all keys run on one logical timeline: a single
// mutex serializes Show/Remove/Dismiss calls and timer callbacks, so no two
// transitions interleave partially. Rendering and audio are fire-and-forget
// collaborators behind narrow interfaces; their internals are out of scope.
package headsup
