package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "hund/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.history.jsonl        (append-only JSON Lines)
//   - <prefix>.snooze.snapshot.json (periodic snapshot)
//   - <prefix>.snooze.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot. A journal record
// with until=0 is a deletion.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	historyPath string
	historyFile *os.File

	snoozeSnapshotPath string
	snoozeJournalFile  *os.File
	snoozes            map[string]int64 // unix milli

	snoozeWrites int
}

type snoozeRecord struct {
	Key   string `json:"key"`
	Until int64  `json:"until"`
}

type historyRecord struct {
	At       int64  `json:"at"` // unix milli
	Event    string `json:"event"`
	Key      string `json:"key"`
	Package  string `json:"package"`
	Category string `json:"category,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	historyPath := prefix + ".history.jsonl"
	snapPath := prefix + ".snooze.snapshot.json"
	journalPath := prefix + ".snooze.journal.jsonl"

	hf, err := os.OpenFile(historyPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	// Load snoozes from snapshot + journal.
	snoozes := map[string]int64{}
	_ = loadSnoozeSnapshot(snapPath, snoozes)
	_ = replaySnoozeJournal(journalPath, snoozes)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = hf.Close()
		return nil, err
	}

	return &fileStore{
		log:                log,
		historyPath:        historyPath,
		historyFile:        hf,
		snoozeSnapshotPath: snapPath,
		snoozeJournalFile:  jf,
		snoozes:            snoozes,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.historyFile != nil {
		err1 = s.historyFile.Close()
		s.historyFile = nil
	}
	if s.snoozeJournalFile != nil {
		err2 = s.snoozeJournalFile.Close()
		s.snoozeJournalFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *fileStore) AppendHistory(ctx context.Context, e HistoryEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile == nil {
		return errors.New("history file closed")
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	enc := json.NewEncoder(s.historyFile)
	return enc.Encode(historyRecord{
		At:       at.UnixMilli(),
		Event:    e.Event,
		Key:      e.Key,
		Package:  e.Package,
		Category: e.Category,
	})
}

func (s *fileStore) PutSnooze(ctx context.Context, key string, until time.Time) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return s.writeSnooze(key, until.UnixMilli())
}

func (s *fileStore) DeleteSnooze(ctx context.Context, key string) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return s.writeSnooze(key, 0)
}

// writeSnooze journals an upsert (ms > 0) or a deletion (ms == 0).
func (s *fileStore) writeSnooze(key string, ms int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snoozeJournalFile == nil {
		return errors.New("snooze journal closed")
	}
	if s.snoozes == nil {
		s.snoozes = map[string]int64{}
	}
	if ms == 0 {
		if _, ok := s.snoozes[key]; !ok {
			return nil
		}
		delete(s.snoozes, key)
	} else {
		s.snoozes[key] = ms
	}

	enc := json.NewEncoder(s.snoozeJournalFile)
	if err := enc.Encode(snoozeRecord{Key: key, Until: ms}); err != nil {
		return err
	}
	s.snoozeWrites++
	if s.snoozeWrites%1000 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("snooze compact failed", logx.Any("err", err))
		}
	}
	return nil
}

func (s *fileStore) GetSnooze(ctx context.Context, key string) (time.Time, bool, error) {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.snoozes[key]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *fileStore) LoadSnoozes(ctx context.Context) (map[string]time.Time, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.snoozes))
	for k, ms := range s.snoozes {
		out[k] = time.UnixMilli(ms)
	}
	return out, nil
}

func (s *fileStore) PruneSnoozes(ctx context.Context, now time.Time) (int64, error) {
	_ = ctx
	cutoff := now.UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, ms := range s.snoozes {
		if ms < cutoff {
			delete(s.snoozes, k)
			n++
		}
	}
	if n > 0 {
		if err := s.compactLocked(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// PruneHistory rewrites the history file keeping only entries at or after
// the cutoff. The rewrite is atomic (tmp + rename).
func (s *fileStore) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	_ = ctx
	cutoff := before.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile == nil {
		return 0, errors.New("history file closed")
	}

	in, err := os.Open(s.historyPath)
	if err != nil {
		return 0, err
	}
	tmp := s.historyPath + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		_ = in.Close()
		return 0, err
	}

	var dropped int64
	w := bufio.NewWriter(out)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		var r historyRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			// Unparseable lines are dropped with the prune.
			dropped++
			continue
		}
		if r.At < cutoff {
			dropped++
			continue
		}
		w.Write(sc.Bytes())
		w.WriteByte('\n')
	}
	_ = in.Close()
	if err := sc.Err(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := w.Flush(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	// Swap the append handle to the rewritten file.
	_ = s.historyFile.Close()
	if err := os.Rename(tmp, s.historyPath); err != nil {
		s.historyFile, _ = os.OpenFile(s.historyPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		return 0, err
	}
	hf, err := os.OpenFile(s.historyPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return dropped, err
	}
	s.historyFile = hf
	return dropped, nil
}

func (s *fileStore) compactLocked() error {
	if s.snoozes == nil {
		return nil
	}
	tmp := s.snoozeSnapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.snoozes); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snoozeSnapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.snoozeJournalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.snoozeJournalFile.Seek(0, 2)
	return err
}

func loadSnoozeSnapshot(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]int64
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replaySnoozeJournal(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		var r snoozeRecord
		if err := json.Unmarshal(s.Bytes(), &r); err != nil {
			continue
		}
		if r.Key == "" {
			continue
		}
		if r.Until == 0 {
			delete(out, r.Key)
			continue
		}
		out[r.Key] = r.Until
	}
	return s.Err()
}
