package ingest

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hund/internal/notif"
	logx "hund/pkg/logx"
)

type captureHandler struct {
	mu       sync.Mutex
	posted   []string
	removed  []string
	rankings []*notif.RankingSnapshot
	locks    []bool
	done     chan struct{} // signalled per event
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{done: make(chan struct{}, 16)}
}

func (h *captureHandler) Posted(_ context.Context, it *notif.Item) error {
	h.mu.Lock()
	h.posted = append(h.posted, it.Key)
	h.mu.Unlock()
	h.done <- struct{}{}
	return nil
}

func (h *captureHandler) Removed(_ context.Context, it *notif.Item) error {
	h.mu.Lock()
	h.removed = append(h.removed, it.Key)
	h.mu.Unlock()
	h.done <- struct{}{}
	return nil
}

func (h *captureHandler) RankingUpdated(_ context.Context, s *notif.RankingSnapshot) {
	h.mu.Lock()
	h.rankings = append(h.rankings, s)
	h.mu.Unlock()
	h.done <- struct{}{}
}

func (h *captureHandler) LockChanged(_ context.Context, locked bool) {
	h.mu.Lock()
	h.locks = append(h.locks, locked)
	h.mu.Unlock()
	h.done <- struct{}{}
}

func (h *captureHandler) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
}

func startListener(t *testing.T, h Handler) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "hund.sock")
	l, err := New(Config{Socket: socket}, h, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		l.Stop(sctx)
	})
	return socket
}

func TestListenerDispatch(t *testing.T) {
	t.Parallel()
	h := newCaptureHandler()
	socket := startListener(t, h)

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	lines := "" +
		`{"type":"posted","item":{"key":"k1","package_name":"com.example"}}` + "\n" +
		`{"type":"ranking","entries":{"k1":{"rank":0,"importance":4}}}` + "\n" +
		`{"type":"lock","locked":true}` + "\n" +
		`{"type":"removed","item":{"key":"k1","package_name":"com.example"}}` + "\n"
	if _, err := conn.Write([]byte(lines)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	h.wait(t, 4)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.posted) != 1 || h.posted[0] != "k1" {
		t.Fatalf("posted = %v", h.posted)
	}
	if len(h.removed) != 1 || h.removed[0] != "k1" {
		t.Fatalf("removed = %v", h.removed)
	}
	if len(h.rankings) != 1 {
		t.Fatalf("rankings = %d", len(h.rankings))
	}
	if r, ok := h.rankings[0].Get("k1"); !ok || r.Importance != notif.ImportanceHigh {
		t.Fatalf("ranking entry = %+v, %v", r, ok)
	}
	if len(h.locks) != 1 || !h.locks[0] {
		t.Fatalf("locks = %v", h.locks)
	}
}

func TestListenerSkipsMalformedLines(t *testing.T) {
	t.Parallel()
	h := newCaptureHandler()
	socket := startListener(t, h)

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	lines := "" +
		"not json at all\n" +
		`{"type":"bogus"}` + "\n" +
		`{"type":"posted"}` + "\n" +
		`{"type":"posted","item":{"key":"good","package_name":"p"}}` + "\n"
	if _, err := conn.Write([]byte(lines)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	h.wait(t, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.posted) != 1 || h.posted[0] != "good" {
		t.Fatalf("posted = %v; bad lines must be skipped, not fatal", h.posted)
	}
}

func TestListenerReplacesStaleSocket(t *testing.T) {
	t.Parallel()
	h := newCaptureHandler()
	socket := filepath.Join(t.TempDir(), "hund.sock")

	// A dead socket file from a crashed run must not block startup.
	stale, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("stale listen: %v", err)
	}
	stale.Close()

	l, err := New(Config{Socket: socket}, h, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start over stale socket: %v", err)
	}
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	cancel()
	l.Stop(sctx)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}, newCaptureHandler(), logx.Nop()); err == nil {
		t.Fatal("empty socket should be rejected")
	}
	if _, err := New(Config{Socket: "/tmp/x.sock"}, nil, logx.Nop()); err == nil {
		t.Fatal("nil handler should be rejected")
	}
}
