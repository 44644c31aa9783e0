// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package engine runs one timed, multi-phase session at a time: it ramps
// effect parameters, activates delayed features, fires intermittent bursts
// and restores the prior configuration when the run ends.
package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/luuxx/ccp/internal/bus"
	"github.com/luuxx/ccp/internal/domain/effects"
	"github.com/luuxx/ccp/internal/domain/progress"
	"github.com/luuxx/ccp/internal/domain/session/model"
	"github.com/luuxx/ccp/internal/domain/settings"
	"github.com/luuxx/ccp/internal/log"
	"github.com/luuxx/ccp/internal/loop"
	"github.com/luuxx/ccp/internal/metrics"
	"github.com/luuxx/ccp/internal/telemetry"
)

var (
	ErrAlreadyRunning = errors.New("session already running")
	ErrNotRunning     = errors.New("no session running")
	ErrNotPaused      = errors.New("session not paused")
	ErrLevelLocked    = errors.New("session locked for current level")
)

// State of the engine.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Config tunes run mechanics.
type Config struct {
	TickInterval   time.Duration
	Jitter         time.Duration // delayed-start offsets vary uniformly by ±Jitter
	PausePenaltyXP int
	BurstTail      time.Duration // no burst starts this close to the end
	BurstMinLength time.Duration
	BurstMaxLength time.Duration
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		TickInterval:   time.Second,
		Jitter:         3 * time.Minute,
		PausePenaltyXP: 25,
		BurstTail:      2 * time.Minute,
		BurstMinLength: time.Minute,
		BurstMaxLength: 2 * time.Minute,
	}
}

// Slots is the interaction arbiter as the engine uses it: full-screen
// features and bursts hold the slot while their capability runs.
type Slots interface {
	TryStart(kind effects.Kind, resume func(), queue bool) bool
	Complete(kind effects.Kind)
}

// Deps are the engine's collaborators.
type Deps struct {
	Loop     *loop.Loop
	Settings *settings.Store
	Effects  *effects.Registry
	Arbiter  Slots
	Gate     progress.Gate
	Bus      bus.Publisher
	Rand     *rand.Rand
	Config   Config
}

// openSlots grants every claim. It stands in when no arbiter is wired.
type openSlots struct{}

func (openSlots) TryStart(effects.Kind, func(), bool) bool { return true }
func (openSlots) Complete(effects.Kind)                    {}

// Engine is the session engine. Exported methods without a "must be called
// on the loop" note are safe from any goroutine and marshal onto the loop.
type Engine struct {
	loop     *loop.Loop
	settings *settings.Store
	effects  *effects.Registry
	arbiter  Slots
	gate     progress.Gate
	pub      bus.Publisher
	rng      *rand.Rand
	cfg      Config

	run    *runState
	logger zerolog.Logger
	tracer trace.Tracer
}

func New(d Deps) *Engine {
	if d.Gate == nil {
		d.Gate = progress.Unrestricted{}
	}
	if d.Bus == nil {
		d.Bus = bus.Discard
	}
	if d.Effects == nil {
		d.Effects = effects.NewRegistry()
	}
	if d.Arbiter == nil {
		d.Arbiter = openSlots{}
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	cfg := d.Config
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.BurstMinLength <= 0 {
		cfg.BurstMinLength = time.Minute
	}
	if cfg.BurstMaxLength < cfg.BurstMinLength {
		cfg.BurstMaxLength = cfg.BurstMinLength
	}
	return &Engine{
		loop:     d.Loop,
		settings: d.Settings,
		effects:  d.Effects,
		arbiter:  d.Arbiter,
		gate:     d.Gate,
		pub:      d.Bus,
		rng:      d.Rand,
		cfg:      cfg,
		logger:   log.WithComponent("session"),
		tracer:   telemetry.Tracer("github.com/luuxx/ccp/internal/domain/session/engine"),
	}
}

// RunInfo describes a freshly started run.
type RunInfo struct {
	RunID     string                         `json:"runId"`
	Session   string                         `json:"session"`
	StartedAt time.Time                      `json:"startedAt"`
	Offsets   map[effects.Kind]time.Duration `json:"offsets,omitempty"`
	Bursts    []time.Duration                `json:"bursts,omitempty"`
}

// Status is a point-in-time view of the engine.
type Status struct {
	State       State                      `json:"state"`
	RunID       string                     `json:"runId,omitempty"`
	Session     string                     `json:"session,omitempty"`
	Phase       string                     `json:"phase,omitempty"`
	Elapsed     time.Duration              `json:"elapsed"`
	Remaining   time.Duration              `json:"remaining"`
	Percent     float64                    `json:"percent"`
	Pauses      int                        `json:"pauses"`
	Ramps       map[settings.Field]float64 `json:"ramps,omitempty"`
	BurstActive bool                       `json:"burstActive"`
}

// Start begins a run of sess.
func (e *Engine) Start(ctx context.Context, sess *model.Session) (RunInfo, error) {
	ctx, span := e.tracer.Start(ctx, "session.start", trace.WithAttributes(telemetry.SessionAttributes(sess.ID, "")...))
	defer span.End()

	var (
		info     RunInfo
		startErr error
	)
	if err := e.loop.Do(ctx, func() { info, startErr = e.StartOnLoop(sess) }); err != nil {
		return RunInfo{}, err
	}
	if startErr != nil {
		span.RecordError(startErr)
		span.SetAttributes(telemetry.ErrorAttributes(startErr, "precondition")...)
	} else {
		span.SetAttributes(telemetry.SessionAttributes("", info.RunID)...)
	}
	return info, startErr
}

// Pause suspends the running session. ErrNotRunning if not running.
func (e *Engine) Pause(ctx context.Context) error {
	var opErr error
	if err := e.loop.Do(ctx, func() { opErr = e.pause() }); err != nil {
		return err
	}
	return opErr
}

// Resume continues a paused session. ErrNotPaused if not paused.
func (e *Engine) Resume(ctx context.Context) error {
	var opErr error
	if err := e.loop.Do(ctx, func() { opErr = e.resume() }); err != nil {
		return err
	}
	return opErr
}

// Stop ends the run. With completed set the run is rewarded.
func (e *Engine) Stop(ctx context.Context, completed bool) error {
	ctx, span := e.tracer.Start(ctx, "session.stop")
	defer span.End()

	var (
		end   runEnd
		opErr error
	)
	if err := e.loop.Do(ctx, func() { end, opErr = e.stop(completed) }); err != nil {
		return err
	}
	if opErr != nil {
		span.SetAttributes(telemetry.ErrorAttributes(opErr, "precondition")...)
		return opErr
	}
	span.SetAttributes(telemetry.SessionAttributes(end.session, end.runID)...)
	span.SetAttributes(telemetry.SessionEndAttributes(completed, end.pauses, end.xp)...)
	return nil
}

// Status reports the current run.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	if err := e.loop.Do(ctx, func() { st = e.StatusOnLoop() }); err != nil {
		return Status{}, err
	}
	return st, nil
}

// StartOnLoop is Start for callers already on the loop. Must be called on the loop.
func (e *Engine) StartOnLoop(sess *model.Session) (RunInfo, error) {
	return e.start(sess)
}

// StopOnLoop is Stop for callers already on the loop. Must be called on the loop.
func (e *Engine) StopOnLoop(completed bool) error {
	_, err := e.stop(completed)
	return err
}

// StatusOnLoop must be called on the loop.
func (e *Engine) StatusOnLoop() Status {
	r := e.run
	if r == nil {
		return Status{State: StateIdle}
	}
	elapsed := r.elapsed(e.loop.Now())
	st := Status{
		State:       r.state,
		RunID:       r.id,
		Session:     r.sess.ID,
		Elapsed:     elapsed,
		Remaining:   max(0, r.sess.Duration-elapsed),
		Percent:     percent(elapsed, r.sess.Duration),
		Pauses:      r.pauses,
		Ramps:       make(map[settings.Field]float64, len(r.rampValues)),
		BurstActive: r.burstActive,
	}
	if r.phase >= 0 {
		st.Phase = r.sess.Phases[r.phase].Name
	}
	for f, v := range r.rampValues {
		st.Ramps[f] = v
	}
	return st
}

// ControlsEffect reports whether the active run drives kind. Must be called
// on the loop.
func (e *Engine) ControlsEffect(kind effects.Kind) bool {
	return e.run != nil && e.run.sess.Controls(kind)
}

// Active reports whether a run exists (running or paused). Must be called on the loop.
func (e *Engine) Active() bool {
	return e.run != nil
}

func (e *Engine) publish(typ string, payload any) {
	_ = e.pub.Publish(context.Background(), bus.TopicSession, bus.Message{
		Type:    typ,
		At:      e.loop.Now(),
		Payload: payload,
	})
}

func (e *Engine) levelOK(minLevel int) bool {
	return minLevel <= 0 || e.gate.IsFeatureUnlocked(minLevel)
}

// guard isolates one effect's work so a failure cannot abort the caller.
func (e *Engine) guard(kind effects.Kind, step string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncFeatureError(string(kind))
			e.logger.Error().
				Str(log.FieldEvent, "session.feature_panic").
				Str(log.FieldEffect, string(kind)).
				Str("step", step).
				Interface("panic", rec).
				Msg("session feature step panicked")
		}
	}()
	if err := fn(); err != nil {
		metrics.IncFeatureError(string(kind))
		e.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "session.feature_failed").
			Str(log.FieldEffect, string(kind)).
			Str("step", step).
			Msg("session feature step failed")
	}
}
