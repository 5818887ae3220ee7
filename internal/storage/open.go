package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "hund/pkg/logx"
)

// Store is the persistence API used by the daemon: snooze windows that
// must survive restarts, plus an append-only decision history.
type Store interface {
	AppendHistory(ctx context.Context, e HistoryEntry) error

	PutSnooze(ctx context.Context, key string, until time.Time) error
	GetSnooze(ctx context.Context, key string) (until time.Time, ok bool, err error)
	DeleteSnooze(ctx context.Context, key string) error
	// LoadSnoozes returns every persisted window, expired ones included.
	LoadSnoozes(ctx context.Context) (map[string]time.Time, error)

	// PruneSnoozes drops windows that ended before now.
	PruneSnoozes(ctx context.Context, now time.Time) (int64, error)
	// PruneHistory drops entries recorded before the cutoff.
	PruneHistory(ctx context.Context, before time.Time) (int64, error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
