package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hund/internal/audio"
	"hund/internal/config"
	"hund/internal/eventbus"
	"hund/internal/headsup"
	"hund/internal/ingest"
	"hund/internal/janitor"
	"hund/internal/runtime/supervisor"
	"hund/internal/storage"
	telegram "hund/internal/surface/telegram"
	logx "hund/pkg/logx"
)

// App wires the daemon together: config manager, logging, storage, event
// bus, heads-up manager, notification center, the rendering surface, the
// janitor, and the ingest listener.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	lock  *lockFlag
	mute  *muteList
	trust *trustList

	surface  headsup.Surface
	tg       *telegram.Surface // nil when the telegram surface is not configured
	player   *audio.Player
	manager  *headsup.Manager
	center   *Center
	janitor  *janitor.Service
	listener *ingest.Listener
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if cfg.Storage != nil {
		sc, err := mapStorageConfig(cfg.Storage)
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	huCfg, err := mapHeadsUpConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	lock := &lockFlag{}
	mute := newMuteList(cfg.HeadsUp.MutedPackages)
	trust := newTrustList(cfg.HeadsUp.TrustedPackages)
	policy := headsup.NewPolicy(huCfg, lock, mute, trust)

	player := audio.New(audio.Config{
		Enabled:    cfg.Audio.Enabled,
		RatePerSec: cfg.Audio.RatePerSec,
		Burst:      cfg.Audio.Burst,
	}, nil, log.With(logx.String("comp", "audio")))

	// Surface selection: telegram when configured, otherwise a log-only
	// surface so the decision core still runs end to end.
	var (
		surf headsup.Surface
		tg   *telegram.Surface
	)
	if tc := cfg.Surface.Telegram; tc != nil {
		pollTimeout, err := config.ParseDurationField("surface.telegram.poll_timeout", tc.PollTimeout)
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		tg, err = telegram.New(telegram.Config{
			Token:       tc.Token,
			ChatID:      tc.ChatID,
			PollTimeout: pollTimeout,
		}, log.With(logx.String("comp", "surface")))
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		surf = tg
	} else {
		surf = logSurface{log: log.With(logx.String("comp", "surface"))}
		log.Info("no surface configured; heads-up entries are logged only")
	}

	var snoozes headsup.SnoozeStore
	if store != nil {
		snoozes = store
	}
	manager := headsup.New(huCfg, headsup.Deps{
		Policy:  policy,
		Surface: surf,
		Beeper:  player,
		Bus:     bus,
		Snoozes: snoozes,
		Log:     log.With(logx.String("comp", "headsup")),
	})

	center := NewCenter(manager, bus, lock, cfg.AppNames, log.With(logx.String("comp", "center")))
	if tg != nil {
		tg.SetDismissHandler(center.Dismiss)
	}

	janCfg, err := mapJanitorConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	janSvc := janitor.New(janCfg, store, log.With(logx.String("comp", "janitor")))

	listener, err := ingest.New(ingest.Config{
		Socket:       cfg.Ingest.Socket,
		MaxLineBytes: cfg.Ingest.MaxLineBytes,
	}, center, log.With(logx.String("comp", "ingest")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		lock:     lock,
		mute:     mute,
		trust:    trust,
		surface:  surf,
		tg:       tg,
		player:   player,
		manager:  manager,
		center:   center,
		janitor:  janSvc,
		listener: listener,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or
// Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	// Re-arm persisted snooze windows before any events arrive, so a key
	// dismissed just before a restart stays quiet.
	if a.store != nil {
		loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		windows, err := a.store.LoadSnoozes(loadCtx)
		cancel()
		if err != nil {
			a.log.Warn("snooze restore failed", logx.Err(err))
		} else if len(windows) > 0 {
			a.manager.RestoreSnoozes(windows)
			a.log.Info("snooze windows restored", logx.Int("count", len(windows)))
		}
	}

	if a.tg != nil {
		a.sup.Go("surface.poll", func(c context.Context) error {
			return a.tg.Start(c)
		})
	}

	if err := a.janitor.Start(a.sup.Context()); err != nil {
		return err
	}
	// One sweep at boot so a long-stopped daemon doesn't carry stale state
	// until the first cron tick.
	a.janitor.Sweep(a.sup.Context())

	if err := a.listener.Start(a.sup.Context()); err != nil {
		return err
	}

	// Persist heads-up transitions as decision history.
	if a.store != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("history.persist", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.persistEvent(c, e)
				}
			}
		})
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.String("socket", a.cfgm.Get().Ingest.Socket))
	return nil
}

// applyConfig pushes a validated config into the running components. Storage
// is the one section that cannot change live.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		if s == "storage" {
			a.log.Warn("storage config changed; restart required for changes to take effect")
			break
		}
	}

	a.logs.Apply(logx.Config{
		Level:   newCfg.Logging.Level,
		Console: newCfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: newCfg.Logging.File.Enabled,
			Path:    newCfg.Logging.File.Path,
		},
	})

	if huCfg, err := mapHeadsUpConfig(newCfg); err != nil {
		a.log.Warn("invalid headsup config; keeping previous", logx.Err(err))
	} else {
		a.manager.Apply(huCfg)
	}
	a.mute.Set(newCfg.HeadsUp.MutedPackages)
	a.trust.Set(newCfg.HeadsUp.TrustedPackages)

	a.player.Apply(audio.Config{
		Enabled:    newCfg.Audio.Enabled,
		RatePerSec: newCfg.Audio.RatePerSec,
		Burst:      newCfg.Audio.Burst,
	})

	if janCfg, err := mapJanitorConfig(newCfg); err != nil {
		a.log.Warn("invalid janitor config; keeping previous", logx.Err(err))
	} else {
		a.janitor.Apply(janCfg)
	}

	a.center.SetAppNames(newCfg.AppNames)

	a.log.Info("config reloaded", fields...)
}

func (a *App) persistEvent(ctx context.Context, e eventbus.Event) {
	data, ok := e.Data.(headsup.EventData)
	if !ok {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := a.store.AppendHistory(wctx, storage.HistoryEntry{
		At:       e.Time,
		Event:    e.Type,
		Key:      data.Key,
		Package:  data.Package,
		Category: data.Category,
	})
	if err != nil {
		a.log.Warn("history append failed",
			logx.String("type", e.Type), logx.String("key", data.Key), logx.Err(err))
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// Contract: fn MUST honor stepCtx and return promptly. If it
			// doesn't, log a leak signal.
			elapsed := time.Since(start)
			a.log.Warn(
				"stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.String("err", stepCtx.Err().Error()),
				logx.Duration("elapsed", elapsed),
			)
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// Inputs first, then the decision core, then outputs.
	step("ingest", 2*time.Second, func(c context.Context) error { return a.listener.Stop(c) })
	step("janitor", 2*time.Second, func(c context.Context) error { return a.janitor.Stop(c) })
	step("headsup", 1*time.Second, func(c context.Context) error { a.manager.Stop(); return nil })
	if a.tg != nil {
		step("surface", 2*time.Second, func(c context.Context) error { return a.tg.Stop(c) })
	}
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

func mapHeadsUpConfig(cfg *config.Config) (headsup.Config, error) {
	duration, minDisplay, enterAnim, exitAnim, snooze, err := cfg.HeadsUpDurations()
	if err != nil {
		return headsup.Config{}, err
	}
	return headsup.Config{
		NavigationHeadsUp: cfg.HeadsUp.NavigationHeadsUp,
		Duration:          duration,
		MinDisplay:        minDisplay,
		EnterAnim:         enterAnim,
		ExitAnim:          exitAnim,
		Snooze:            snooze,
	}, nil
}

func mapStorageConfig(sc *config.StorageConfig) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      sc.Driver,
		Path:        sc.Path,
		BusyTimeout: busy,
	}, nil
}

func mapJanitorConfig(cfg *config.Config) (janitor.Config, error) {
	retention, err := config.ParseDurationField("janitor.history_retention", cfg.Janitor.HistoryRetention)
	if err != nil {
		return janitor.Config{}, err
	}
	return janitor.Config{
		Enabled:          cfg.Janitor.Enabled,
		Schedule:         cfg.Janitor.Schedule,
		HistoryRetention: retention,
	}, nil
}
