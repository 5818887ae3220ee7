// Package janitor runs periodic maintenance against the store: expired
// snooze windows and old decision history are pruned on a cron schedule.
package janitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"hund/internal/storage"
	logx "hund/pkg/logx"
)

// Config controls the maintenance schedule.
type Config struct {
	Enabled          bool
	Schedule         string        // cron spec; empty means hourly
	HistoryRetention time.Duration // 0 means keep history forever
}

const defaultSchedule = "@hourly"

type Service struct {
	mu  sync.Mutex
	cfg Config

	store storage.Store
	log   logx.Logger

	parser cron.Parser
	c      *cron.Cron

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		store: store,
		log:   log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Apply updates the schedule at runtime. A running service restarts its cron
// when the spec changes.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oldSpec := s.scheduleLocked()
	oldEnabled := s.cfg.Enabled
	s.cfg = cfg
	if s.c == nil && s.runCtx == nil {
		return
	}
	if oldSpec != s.scheduleLocked() || oldEnabled != cfg.Enabled {
		s.restartLocked()
	}
}

func (s *Service) scheduleLocked() string {
	spec := strings.TrimSpace(s.cfg.Schedule)
	if spec == "" {
		spec = defaultSchedule
	}
	return spec
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx != nil {
		return nil
	}
	if s.store == nil {
		s.log.Debug("no store; janitor idle")
		return nil
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	return s.startCronLocked()
}

func (s *Service) startCronLocked() error {
	if !s.cfg.Enabled {
		return nil
	}
	spec := s.scheduleLocked()
	c := cron.New(cron.WithParser(s.parser))
	if _, err := c.AddFunc(spec, s.sweep); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("maintenance scheduled", logx.String("schedule", spec))
	return nil
}

func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	if s.runCtx == nil || s.runCtx.Err() != nil {
		return
	}
	if err := s.startCronLocked(); err != nil {
		s.log.Warn("maintenance restart failed", logx.Err(err))
	}
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCtx = nil
	s.runCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep runs one maintenance pass immediately. Exposed so startup can clear
// stale state without waiting for the first tick.
func (s *Service) Sweep(ctx context.Context) {
	s.sweepCtx(ctx)
}

func (s *Service) sweep() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	s.sweepCtx(ctx)
}

func (s *Service) sweepCtx(ctx context.Context) {
	s.mu.Lock()
	store := s.store
	retention := s.cfg.HistoryRetention
	s.mu.Unlock()
	if store == nil {
		return
	}

	sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now()
	snoozes, err := store.PruneSnoozes(sctx, now)
	if err != nil {
		s.log.Warn("snooze prune failed", logx.Err(err))
	}

	var history int64
	if retention > 0 {
		history, err = store.PruneHistory(sctx, now.Add(-retention))
		if err != nil {
			s.log.Warn("history prune failed", logx.Err(err))
		}
	}

	if snoozes > 0 || history > 0 {
		s.log.Info("maintenance pass",
			logx.Int64("snoozes_pruned", snoozes),
			logx.Int64("history_pruned", history))
	}
}
