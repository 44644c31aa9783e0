// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the daemon's HTTP control surface: session and autonomy
// commands, the settings record, run history and a websocket event stream.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/luuxx/ccp/internal/api/middleware"
	"github.com/luuxx/ccp/internal/bus"
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
)

// Config tunes the HTTP surface.
type Config struct {
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TracingService    string
	Version           string
}

// History reads finished runs.
type History interface {
	Recent(ctx context.Context, n int) ([]progress.Run, error)
}

// Progress exposes the XP standing for status responses.
type Progress interface {
	XP() int
	Level() int
	HasPremiumAccess() bool
}

// Deps wires the server to the orchestration core. Arbiter and Settings are
// loop-owned and only touched through Loop.Do.
type Deps struct {
	Loop     *loop.Loop
	Engine   *engine.Engine
	Autonomy *autonomy.Scheduler
	Arbiter  *arbiter.Arbiter
	Settings *settings.Store
	Effects  *effects.Registry
	Catalog  *model.Catalog
	History  History
	Progress Progress
	Events   bus.Bus
	Health   *health.Manager

	// Panic stops everything; Reload re-reads the configuration file.
	Panic  func(ctx context.Context) error
	Reload func(ctx context.Context) error
}

// Server is the HTTP control API.
type Server struct {
	cfg    Config
	d      Deps
	logger zerolog.Logger
}

func New(cfg Config, d Deps) *Server {
	if d.Health == nil {
		d.Health = health.NewManager(cfg.Version)
	}
	return &Server{cfg: cfg, d: d, logger: log.WithComponent("api")}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// probes and metrics bypass rate limiting and access logs
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recoverer)
		r.Get("/healthz", s.d.Health.ServeHealth)
		r.Get("/readyz", s.d.Health.ServeReady)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Route("/api/v1", func(r chi.Router) {
		middleware.ApplyStack(r, middleware.StackConfig{
			EnableCORS:        len(s.cfg.AllowedOrigins) > 0,
			AllowedOrigins:    s.cfg.AllowedOrigins,
			EnableMetrics:     true,
			TracingService:    s.cfg.TracingService,
			EnableLogging:     true,
			RateLimitRequests: s.cfg.RateLimitRequests,
			RateLimitWindow:   s.cfg.RateLimitWindow,
		})

		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)
		r.Post("/panic", s.handlePanic)
		r.Post("/config/reload", s.handleReload)
		r.Get("/history", s.handleHistory)

		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions/{name}/start", s.handleStartSession)
		r.Post("/session/pause", s.handlePause)
		r.Post("/session/resume", s.handleResume)
		r.Post("/session/stop", s.handleStop)

		r.Route("/autonomy", func(r chi.Router) {
			r.Post("/start", s.handleAutonomyStart)
			r.Post("/stop", s.handleAutonomyStop)
			r.Post("/activity", s.handleActivity)
			r.Post("/trigger", s.handleTrigger)
			r.Post("/pulse/{kind}", s.handlePulse)
			r.Delete("/pulse/{kind}", s.handleEndPulse)
		})

		r.Post("/interactions/{kind}/complete", s.handleCompleteInteraction)

		r.Get("/settings", s.handleGetSettings)
		r.Patch("/settings", s.handlePatchSettings)
	})
	return r
}
