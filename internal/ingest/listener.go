// Package ingest is the daemon's edge: a unix-socket listener accepting
// JSON-lines notification events (posted, removed, ranking updates) from
// the platform bridge.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"hund/internal/notif"
	logx "hund/pkg/logx"
)

// Handler consumes decoded events. Implemented by the app center.
type Handler interface {
	Posted(ctx context.Context, it *notif.Item) error
	Removed(ctx context.Context, it *notif.Item) error
	RankingUpdated(ctx context.Context, snapshot *notif.RankingSnapshot)
	LockChanged(ctx context.Context, locked bool)
}

// Config controls the listener.
type Config struct {
	Socket       string
	MaxLineBytes int // 0 means default (256 KiB)
}

const defaultMaxLineBytes = 256 * 1024

// event is one line on the wire.
//
//	{"type":"posted","item":{...}}
//	{"type":"removed","item":{...}}
//	{"type":"ranking","entries":{"<key>":{"rank":1,"importance":4}}}
//	{"type":"lock","locked":true}
type event struct {
	Type    string                   `json:"type"`
	Item    *notif.Item              `json:"item,omitempty"`
	Entries map[string]notif.Ranking `json:"entries,omitempty"`
	Locked  *bool                    `json:"locked,omitempty"`
}

type Listener struct {
	cfg     Config
	handler Handler
	log     logx.Logger

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func New(cfg Config, handler Handler, log logx.Logger) (*Listener, error) {
	if strings.TrimSpace(cfg.Socket) == "" {
		return nil, errors.New("ingest socket path is empty")
	}
	if handler == nil {
		return nil, errors.New("ingest handler is nil")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = defaultMaxLineBytes
	}
	return &Listener{cfg: cfg, handler: handler, log: log, conns: map[net.Conn]struct{}{}}, nil
}

// Start binds the socket and serves until ctx is cancelled. A stale socket
// file from a previous run is removed before binding.
func (l *Listener) Start(ctx context.Context) error {
	path := l.cfg.Socket
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	l.log.Info("listening", logx.String("socket", path))
	l.wg.Add(1)
	go l.acceptLoop(ctx, ln)
	return nil
}

func (l *Listener) acceptLoop(ctx context.Context, ln net.Listener) {
	defer l.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Warn("accept failed", logx.Err(err))
			continue
		}
		l.mu.Lock()
		l.conns[conn] = struct{}{}
		l.mu.Unlock()

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.serve(ctx, conn)
			l.mu.Lock()
			delete(l.conns, conn)
			l.mu.Unlock()
		}()
	}
}

func (l *Listener) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), l.cfg.MaxLineBytes)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := l.dispatch(ctx, line); err != nil {
			l.log.Warn("event rejected", logx.Err(err))
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		l.log.Debug("connection read error", logx.Err(err))
	}
}

func (l *Listener) dispatch(ctx context.Context, line []byte) error {
	var ev event
	if err := json.Unmarshal(line, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	switch ev.Type {
	case "posted":
		if ev.Item == nil || ev.Item.Key == "" {
			return errors.New("posted event without item key")
		}
		return l.handler.Posted(ctx, ev.Item)
	case "removed":
		if ev.Item == nil || ev.Item.Key == "" {
			return errors.New("removed event without item key")
		}
		return l.handler.Removed(ctx, ev.Item)
	case "ranking":
		l.handler.RankingUpdated(ctx, notif.NewRankingSnapshot(ev.Entries))
		return nil
	case "lock":
		if ev.Locked == nil {
			return errors.New("lock event without locked flag")
		}
		l.handler.LockChanged(ctx, *ev.Locked)
		return nil
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// Stop closes the listener and all open connections, then waits for the
// serving goroutines to drain.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	ln := l.ln
	l.ln = nil
	for conn := range l.conns {
		_ = conn.Close()
	}
	l.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
