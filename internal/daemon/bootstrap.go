// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the orchestration core and owns its runtime lifecycle.
package daemon

import (
	"context"
	"fmt"
	"math/rand/v2"
	"syscall"

	"github.com/luuxx/ccp/internal/api"
	"github.com/luuxx/ccp/internal/bus"
	"github.com/luuxx/ccp/internal/clock"
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

// Option customises New.
type Option func(*options)

type options struct {
	clk          clock.Clock
	capabilities map[effects.Kind]effects.Capability
}

// WithClock replaces the wall clock driving the scheduling loop.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clk = c }
}

// WithCapability registers an in-process capability for kind. It takes
// precedence over the remote bridge.
func WithCapability(kind effects.Kind, c effects.Capability) Option {
	return func(o *options) { o.capabilities[kind] = c }
}

// New builds the core from the holder's current configuration. The returned
// App owns the progress database; Run closes it.
func New(ctx context.Context, holder *config.ConfigHolder, opts ...Option) (*App, error) {
	o := options{clk: clock.Real{}, capabilities: map[effects.Kind]effects.Capability{}}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := holder.Get()
	logger := log.WithComponent("daemon")

	engineCfg := EngineConfig(cfg.Session)
	autonomyCfg, err := AutonomyConfig(cfg.Autonomy)
	if err != nil {
		return nil, err
	}

	tracing, err := telemetry.NewProvider(ctx, TelemetryConfig(cfg))
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
		tracing = nil
	}

	catalog, err := model.LoadCatalog(cfg.Session.SessionsDir)
	if err != nil {
		return nil, fmt.Errorf("load session catalog: %w", err)
	}

	initial, err := settings.LoadFile(cfg.Settings.Path)
	if err != nil {
		return nil, err
	}

	ledger, err := progress.Open(ctx, cfg.Progress.DBPath, progress.Options{
		XPPerLevel: cfg.Progress.XPPerLevel,
		Premium:    cfg.Progress.Premium,
	})
	if err != nil {
		return nil, fmt.Errorf("open progress ledger: %w", err)
	}

	a := &App{
		logger:       logger,
		holder:       holder,
		loop:         loop.New(o.clk),
		events:       bus.NewMemoryBus(),
		saver:        settings.NewAsyncSaver(settings.FilePersister{Path: cfg.Settings.Path}),
		ledger:       ledger,
		catalog:      catalog,
		tracing:      tracing,
		reloadSignal: syscall.SIGHUP,
	}
	a.recorder = progress.NewRecorder(ledger, a.events)
	a.store = settings.NewStore(initial, a.saver)

	a.registry = effects.NewRegistry(
		effects.WithBreaker(cfg.Effects.BreakerThreshold, cfg.Effects.BreakerReset),
		effects.WithRegistryClock(o.clk),
	)
	registerCapabilities(a.registry, cfg.Effects, o, a.events)

	a.arbiter = arbiter.New(a.events, o.clk)
	a.engine = engine.New(engine.Deps{
		Loop:     a.loop,
		Settings: a.store,
		Effects:  a.registry,
		Arbiter:  a.arbiter,
		Gate:     ledger,
		Bus:      a.events,
		Rand:     newRand(),
		Config:   engineCfg,
	})
	a.autonomy = autonomy.New(autonomy.Deps{
		Loop:       a.loop,
		Settings:   a.store,
		Effects:    a.registry,
		Arbiter:    a.arbiter,
		Gate:       ledger,
		Foreground: a.engine,
		Bus:        a.events,
		Rand:       newRand(),
		Config:     autonomyCfg,
	})

	a.health = health.NewManager(cfg.Version)
	a.health.RegisterChecker(health.NewLoopChecker(a.loop.Running))
	a.health.RegisterChecker(health.NewDatabaseChecker("progress_db", ledger.DB()))
	a.health.RegisterChecker(health.NewDirChecker("sessions", cfg.Session.SessionsDir))

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = cfg.LogService
	}
	srv := api.New(api.Config{
		AllowedOrigins:    cfg.API.AllowedOrigins,
		RateLimitRequests: cfg.API.RateLimit.Requests,
		RateLimitWindow:   cfg.API.RateLimit.Window,
		TracingService:    tracingService,
		Version:           cfg.Version,
	}, api.Deps{
		Loop:     a.loop,
		Engine:   a.engine,
		Autonomy: a.autonomy,
		Arbiter:  a.arbiter,
		Settings: a.store,
		Effects:  a.registry,
		Catalog:  catalog,
		History:  ledger,
		Progress: ledger,
		Events:   a.events,
		Health:   a.health,
		Panic:    a.Panic,
		Reload:   holder.Reload,
	})

	a.manager, err = NewManager(ServerConfigFrom(cfg.API), Deps{
		Logger:     log.WithComponent("api"),
		APIHandler: srv.Handler(),
	})
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}
	if a.tracing != nil {
		a.manager.RegisterShutdownHook("telemetry", a.tracing.Shutdown)
	}

	logger.Info().
		Str(log.FieldEvent, "daemon.built").
		Int("sessions", catalog.Len()).
		Int("capabilities", len(a.registry.Kinds())).
		Bool("remote_effects", cfg.Effects.Remote).
		Msg("orchestration core assembled")
	return a, nil
}

func registerCapabilities(r *effects.Registry, cfg config.EffectsConfig, o options, pub bus.Publisher) {
	for _, kind := range effects.All() {
		if c, ok := o.capabilities[kind]; ok {
			r.Register(kind, c)
			continue
		}
		if cfg.Remote {
			r.Register(kind, effects.NewRemote(kind, pub, o.clk))
		}
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) // #nosec G404 -- effect scheduling, not security
}

// EngineConfig maps the session section onto engine tuning.
func EngineConfig(c config.SessionConfig) engine.Config {
	return engine.Config{
		TickInterval:   c.TickInterval,
		Jitter:         c.Jitter,
		PausePenaltyXP: c.PausePenaltyXP,
		BurstTail:      c.BurstTail,
		BurstMinLength: c.BurstMinLength,
		BurstMaxLength: c.BurstMaxLength,
	}
}

// AutonomyConfig maps the autonomy section onto scheduler tuning. Per-action
// overrides are merged over the built-in tables.
func AutonomyConfig(c config.AutonomyConfig) (autonomy.Config, error) {
	out := autonomy.DefaultConfig()
	out.MinLevel = c.MinLevel
	out.AnnounceDelay = c.AnnounceDelay
	out.PulseDuration = c.PulseDuration
	out.PulseOpacity = c.PulseOpacity
	out.MaxActionsPerHour = c.MaxActionsPerHour

	for name, lvl := range c.ActionLevels {
		act, err := autonomy.ParseAction(name)
		if err != nil {
			return autonomy.Config{}, fmt.Errorf("autonomy.actionLevels: %w", err)
		}
		out.ActionLevels[act] = lvl
	}
	for name, w := range c.BaseWeights {
		act, err := autonomy.ParseAction(name)
		if err != nil {
			return autonomy.Config{}, fmt.Errorf("autonomy.baseWeights: %w", err)
		}
		out.BaseWeights[act] = w
	}
	return out, nil
}

// TelemetryConfig maps the telemetry section onto the tracer provider.
func TelemetryConfig(c config.AppConfig) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    c.LogService,
		ServiceVersion: c.Version,
		Environment:    c.Telemetry.Environment,
		ExporterType:   c.Telemetry.Exporter,
		Endpoint:       c.Telemetry.Endpoint,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}
