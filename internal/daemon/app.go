// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/luuxx/ccp/internal/bus"
	"github.com/luuxx/ccp/internal/config"
	"github.com/luuxx/ccp/internal/domain/arbiter"
	"github.com/luuxx/ccp/internal/domain/autonomy"
	"github.com/luuxx/ccp/internal/domain/effects"
	"github.com/luuxx/ccp/internal/domain/progress"
	"github.com/luuxx/ccp/internal/domain/session/engine"
	"github.com/luuxx/ccp/internal/domain/session/model"
	"github.com/luuxx/ccp/internal/domain/settings"
	"github.com/luuxx/ccp/internal/health"
	"github.com/luuxx/ccp/internal/log"
	"github.com/luuxx/ccp/internal/loop"
	"github.com/luuxx/ccp/internal/telemetry"
)

const drainTimeout = 5 * time.Second

// App owns the long-lived runtime: the scheduling loop, settings persistence,
// run recording, config reload wiring and the HTTP server.
type App struct {
	logger       zerolog.Logger
	holder       *config.ConfigHolder
	manager      Manager
	reloadSignal os.Signal

	loop     *loop.Loop
	events   *bus.MemoryBus
	store    *settings.Store
	saver    *settings.AsyncSaver
	ledger   *progress.Ledger
	recorder *progress.Recorder
	catalog  *model.Catalog
	registry *effects.Registry
	arbiter  *arbiter.Arbiter
	engine   *engine.Engine
	autonomy *autonomy.Scheduler
	health   *health.Manager
	tracing  *telemetry.Provider
}

// Loop exposes the scheduling loop.
func (a *App) Loop() *loop.Loop { return a.loop }

// Engine exposes the session engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// Autonomy exposes the autonomy scheduler.
func (a *App) Autonomy() *autonomy.Scheduler { return a.autonomy }

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// fatal error occurs. On the way out the core is stopped on the loop, the bus
// is drained into the run history and the progress database is closed.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	// The loop, the saver and the recorder outlive ctx so shutdown can still
	// stop the core and record the interrupted run.
	bgCtx, bgCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer bgCancel()
	var bg errgroup.Group
	bg.Go(func() error {
		if err := a.loop.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	bg.Go(func() error { return a.saver.Run(bgCtx) })
	recorderDone := make(chan error, 1)
	go func() { recorderDone <- a.recorder.Run(bgCtx) }()

	a.resumeAutonomy(ctx)

	g, gctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: a failing watcher must not stop the daemon.
	g.Go(func() error {
		if err := a.holder.Watch(gctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_failed").Msg("config watcher stopped")
		}
		return nil
	})

	applyCh := make(chan config.AppConfig, 1)
	a.holder.RegisterListener(applyCh)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case cfg := <-applyCh:
				a.applyConfig(gctx, cfg)
			}
		}
	})

	if a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-gctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(log.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.holder.Reload(gctx); err != nil {
						a.logger.Warn().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("config reload failed")
					}
				}
			}
		})
	}

	g.Go(func() error { return a.manager.Start(gctx) })

	err := g.Wait()

	a.drain()
	a.events.Close()
	select {
	case <-recorderDone:
	case <-time.After(drainTimeout):
		a.logger.Warn().Str(log.FieldEvent, "progress.drain_timeout").Msg("run recorder did not drain in time")
	}
	bgCancel()
	if bgErr := bg.Wait(); bgErr != nil {
		err = errors.Join(err, bgErr)
	}
	if closeErr := a.ledger.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	a.logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped")
	return err
}

// Panic stops the session without completing it, stops autonomy, stops every
// effect and clears the interaction slot, all in one loop turn.
func (a *App) Panic(ctx context.Context) error {
	return a.loop.Do(ctx, func() { a.stopAllOnLoop("panic") })
}

func (a *App) stopAllOnLoop(reason string) {
	sessionStopped := true
	if err := a.engine.StopOnLoop(false); err != nil {
		if !errors.Is(err, engine.ErrNotRunning) {
			a.logger.Warn().Err(err).Str("reason", reason).Msg("session stop failed")
		}
		sessionStopped = false
	}
	a.autonomy.StopOnLoop()
	a.registry.StopAll()
	a.arbiter.Reset()

	a.logger.Warn().
		Str(log.FieldEvent, "daemon.stop_all").
		Str("reason", reason).
		Bool("session_stopped", sessionStopped).
		Msg("all activity stopped")
}

func (a *App) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := a.loop.Do(ctx, func() { a.stopAllOnLoop("shutdown") }); err != nil {
		a.logger.Warn().Err(err).Str(log.FieldEvent, "daemon.drain_failed").Msg("could not stop core on shutdown")
	}
}

// resumeAutonomy restarts the scheduler when the persisted record says it was
// enabled. Consent and level gating still apply.
func (a *App) resumeAutonomy(ctx context.Context) {
	var started bool
	err := a.loop.Do(ctx, func() {
		if a.store.Bool("autonomy.enabled") {
			started = a.autonomy.StartOnLoop()
		}
	})
	if err != nil {
		a.logger.Warn().Err(err).Msg("autonomy resume skipped")
		return
	}
	if started {
		a.logger.Info().Str(log.FieldEvent, "autonomy.resumed").Msg("autonomy resumed from saved settings")
	}
}

// applyConfig pushes hot-reloadable sections into the running core. Session
// tuning and the listener address take effect on restart.
func (a *App) applyConfig(ctx context.Context, cfg config.AppConfig) {
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		a.logger.Warn().Err(err).Msg("log level not applied")
	}
	a.ledger.SetPremium(cfg.Progress.Premium)

	autonomyCfg, err := AutonomyConfig(cfg.Autonomy)
	if err != nil {
		a.logger.Warn().Err(err).Str(log.FieldEvent, "config.apply_failed").Msg("autonomy config not applied")
		return
	}
	if err := a.autonomy.ApplyConfig(ctx, autonomyCfg); err != nil {
		a.logger.Warn().Err(err).Str(log.FieldEvent, "config.apply_failed").Msg("autonomy config not applied")
		return
	}
	a.logger.Info().Str(log.FieldEvent, "config.applied").Msg("runtime configuration applied")
}
