package storage

// Package storage provides a minimal persistence layer used by the daemon.
//
// It currently supports:
//   - Decision history appends (what was shown, dismissed, suppressed)
//   - Snooze window state (to survive restarts)
