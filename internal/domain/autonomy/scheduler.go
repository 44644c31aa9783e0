// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package autonomy triggers effects unattended: idle and random timers feed a
// gate, a mood- and intensity-weighted draw picks the action, and overlay
// pulses revert themselves after a while.
package autonomy

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/luuxx/ccp/internal/bus"
	"github.com/luuxx/ccp/internal/domain/arbiter"
	"github.com/luuxx/ccp/internal/domain/effects"
	"github.com/luuxx/ccp/internal/domain/progress"
	"github.com/luuxx/ccp/internal/domain/settings"
	"github.com/luuxx/ccp/internal/log"
	"github.com/luuxx/ccp/internal/loop"
	"github.com/luuxx/ccp/internal/metrics"
	"github.com/luuxx/ccp/internal/telemetry"
)

// ErrRejected wraps the gate reason when a trigger does not lead to an action.
var ErrRejected = errors.New("autonomy action rejected")

// Event types published on the autonomy topic.
const (
	EventStarted      = "autonomy.started"
	EventStopped      = "autonomy.stopped"
	EventAction       = "autonomy.action"
	EventAnnouncement = "autonomy.announcement"
	EventPulseStarted = "autonomy.pulse_started"
	EventPulseEnded   = "autonomy.pulse_ended"
)

// Gate rejection reasons.
const (
	ReasonNotRunning  = "not_running"
	ReasonDisabled    = "disabled"
	ReasonCooldown    = "cooldown"
	ReasonInteraction = "interaction_active"
	ReasonBlocking    = "blocking_activity"
	ReasonNoCandidate = "no_candidates"
	ReasonBudget      = "budget"
)

// Trigger sources.
const (
	TriggerIdle    = "idle"
	TriggerRandom  = "random"
	TriggerContext = "context"
)

// Config tunes the scheduler.
type Config struct {
	MinLevel          int
	AnnounceDelay     time.Duration
	PulseDuration     time.Duration
	PulseOpacity      int
	MaxActionsPerHour int
	ActionLevels      map[Action]int
	BaseWeights       map[Action]float64
}

func DefaultConfig() Config {
	return Config{
		MinLevel:          5,
		AnnounceDelay:     3 * time.Second,
		PulseDuration:     30 * time.Second,
		PulseOpacity:      60,
		MaxActionsPerHour: 20,
		ActionLevels:      DefaultActionLevels(),
		BaseWeights:       DefaultBaseWeights(),
	}
}

// Foreground reports whether a running session drives an effect.
type Foreground interface {
	ControlsEffect(kind effects.Kind) bool
}

type Deps struct {
	Loop       *loop.Loop
	Settings   *settings.Store
	Effects    *effects.Registry
	Arbiter    *arbiter.Arbiter
	Gate       progress.Gate
	Foreground Foreground
	Bus        bus.Publisher
	Rand       *rand.Rand
	Config     Config
}

// Announcement is published before a delayed action.
type Announcement struct {
	ID     string `json:"id"`
	Action Action `json:"action"`
	Phrase string `json:"phrase"`
}

// ActionEvent is published when an action executes.
type ActionEvent struct {
	Action    Action `json:"action"`
	Trigger   string `json:"trigger"`
	Announced bool   `json:"announced"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running          bool                    `json:"running"`
	Mood             Mood                    `json:"mood"`
	CooldownUntil    time.Time               `json:"cooldownUntil,omitzero"`
	LastAction       Action                  `json:"lastAction,omitempty"`
	LastActionAt     time.Time               `json:"lastActionAt,omitzero"`
	ActivePulses     []effects.Kind          `json:"activePulses,omitempty"`
	Generations      map[effects.Kind]uint64 `json:"generations,omitempty"`
	GlobalGeneration uint64                  `json:"globalGeneration"`
	Budget           float64                 `json:"budget"`
}

// Scheduler is the autonomy scheduler. Its state is owned by the loop.
type Scheduler struct {
	loop     *loop.Loop
	settings *settings.Store
	effects  *effects.Registry
	arbiter  *arbiter.Arbiter
	gate     progress.Gate
	fg       Foreground
	pub      bus.Publisher
	rng      *rand.Rand
	cfg      Config
	limiter  *rate.Limiter

	running       bool
	ctx           context.Context
	cancel        context.CancelFunc
	idle          *loop.Task
	random        *loop.Task
	cooldown      *loop.Task
	cooldownUntil time.Time
	lastAction    Action
	lastActionAt  time.Time

	pulses    map[effects.Kind]*pulse
	gens      map[effects.Kind]uint64
	globalGen uint64

	logger zerolog.Logger
	tracer trace.Tracer
}

func New(d Deps) *Scheduler {
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
		d.Arbiter = arbiter.New(d.Bus, nil)
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &Scheduler{
		loop:     d.Loop,
		settings: d.Settings,
		effects:  d.Effects,
		arbiter:  d.Arbiter,
		gate:     d.Gate,
		fg:       d.Foreground,
		pub:      d.Bus,
		rng:      d.Rand,
		pulses:   make(map[effects.Kind]*pulse),
		gens:     make(map[effects.Kind]uint64),
		logger:   log.WithComponent("autonomy"),
		tracer:   telemetry.Tracer("github.com/luuxx/ccp/internal/domain/autonomy"),
	}
	s.setConfig(d.Config)
	return s
}

func (s *Scheduler) setConfig(cfg Config) {
	def := DefaultConfig()
	if cfg.AnnounceDelay <= 0 {
		cfg.AnnounceDelay = def.AnnounceDelay
	}
	if cfg.PulseDuration <= 0 {
		cfg.PulseDuration = def.PulseDuration
	}
	if cfg.PulseOpacity <= 0 {
		cfg.PulseOpacity = def.PulseOpacity
	}
	if cfg.ActionLevels == nil {
		cfg.ActionLevels = def.ActionLevels
	}
	if cfg.BaseWeights == nil {
		cfg.BaseWeights = def.BaseWeights
	}
	if s.limiter == nil || cfg.MaxActionsPerHour != s.cfg.MaxActionsPerHour {
		s.limiter = newBudget(cfg.MaxActionsPerHour)
	}
	s.cfg = cfg
}

func newBudget(perHour int) *rate.Limiter {
	if perHour <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), perHour)
}

// Start arms the timers. It reports false, without side effects, when the
// feature is disabled, consent is missing or the user lacks the level or
// premium entitlement.
func (s *Scheduler) Start(ctx context.Context) (bool, error) {
	var started bool
	err := s.loop.Do(ctx, func() { started = s.StartOnLoop() })
	return started, err
}

// Stop is the global stop: every pending pulse is reverted now and every
// outstanding continuation is invalidated.
func (s *Scheduler) Stop(ctx context.Context) error {
	return s.loop.Do(ctx, s.StopOnLoop)
}

// ReportUserActivity re-arms the idle timer.
func (s *Scheduler) ReportUserActivity(ctx context.Context) error {
	return s.loop.Do(ctx, func() {
		if s.running {
			s.armIdle()
		}
	})
}

// Trigger runs the gate and, if it passes, one action.
func (s *Scheduler) Trigger(ctx context.Context, reason string) (Action, error) {
	var (
		action Action
		opErr  error
	)
	if reason == "" {
		reason = TriggerContext
	}
	if err := s.loop.Do(ctx, func() { action, opErr = s.attempt(reason) }); err != nil {
		return "", err
	}
	return action, opErr
}

// ApplyConfig swaps the tuning. Timers pick it up when they next arm.
func (s *Scheduler) ApplyConfig(ctx context.Context, cfg Config) error {
	return s.loop.Do(ctx, func() { s.setConfig(cfg) })
}

// Status reports the scheduler state.
func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.loop.Do(ctx, func() { st = s.StatusOnLoop() })
	return st, err
}

// StartOnLoop must be called on the loop.
func (s *Scheduler) StartOnLoop() bool {
	if s.running {
		return true
	}
	if !s.settings.Bool("autonomy.enabled") || !s.settings.Bool("autonomy.consent") {
		s.logger.Info().Str(log.FieldEvent, "autonomy.start_refused").Msg("autonomy not enabled or no consent")
		return false
	}
	if !s.gate.HasPremiumAccess() && !s.gate.IsFeatureUnlocked(s.cfg.MinLevel) {
		s.logger.Info().
			Str(log.FieldEvent, "autonomy.start_refused").
			Int("min_level", s.cfg.MinLevel).
			Msg("autonomy locked for current level")
		return false
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true
	s.armIdle()
	s.armRandom()

	metrics.SetAutonomyRunning(true)
	s.logger.Info().Str(log.FieldEvent, "autonomy.started").Msg("autonomy started")
	s.publish(EventStarted, nil)
	return true
}

// StopOnLoop must be called on the loop.
func (s *Scheduler) StopOnLoop() {
	s.globalGen++
	for _, kind := range s.activePulses() {
		s.endPulse(s.pulses[kind], "global_stop")
	}

	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	s.idle.Cancel()
	s.random.Cancel()
	s.cooldown.Cancel()
	s.idle, s.random, s.cooldown = nil, nil, nil
	s.cooldownUntil = time.Time{}

	metrics.SetAutonomyRunning(false)
	s.logger.Info().
		Str(log.FieldEvent, "autonomy.stopped").
		Uint64(log.FieldGlobalGeneration, s.globalGen).
		Msg("autonomy stopped")
	s.publish(EventStopped, nil)
}

// StatusOnLoop must be called on the loop.
func (s *Scheduler) StatusOnLoop() Status {
	now := s.loop.Now()
	st := Status{
		Running:          s.running,
		Mood:             MoodAt(now),
		LastAction:       s.lastAction,
		LastActionAt:     s.lastActionAt,
		ActivePulses:     s.activePulses(),
		Generations:      make(map[effects.Kind]uint64, len(s.gens)),
		GlobalGeneration: s.globalGen,
		Budget:           s.limiter.TokensAt(now),
	}
	if now.Before(s.cooldownUntil) {
		st.CooldownUntil = s.cooldownUntil
	}
	for k, g := range s.gens {
		st.Generations[k] = g
	}
	return st
}

func (s *Scheduler) armIdle() {
	s.idle.Cancel()
	d := time.Duration(s.settings.Number("autonomy.idle_minutes")) * time.Minute
	s.idle = s.loop.After(s.ctx, max(d, time.Minute), func(context.Context) {
		s.idle = nil
		_, _ = s.attempt(TriggerIdle)
	})
}

func (s *Scheduler) armRandom() {
	s.random.Cancel()
	base := time.Duration(s.settings.Number("autonomy.random_interval_minutes")) * time.Minute
	base = max(base, time.Minute)
	d := time.Duration(float64(base) * (0.5 + s.rng.Float64()))
	s.random = s.loop.After(s.ctx, d, func(context.Context) {
		_, _ = s.attempt(TriggerRandom)
		if s.running {
			s.armRandom()
		}
	})
}

func (s *Scheduler) gateReason(now time.Time) string {
	switch {
	case !s.running:
		return ReasonNotRunning
	case !s.settings.Bool("autonomy.enabled"):
		return ReasonDisabled
	case now.Before(s.cooldownUntil):
		return ReasonCooldown
	case !s.arbiter.CanStart():
		return ReasonInteraction
	case s.effects.IsRunning(effects.WebVideo):
		return ReasonBlocking
	}
	return ""
}

func (s *Scheduler) candidates(now time.Time) []Candidate {
	mood := MoodAt(now)
	intensity := int(s.settings.Number("autonomy.intensity"))
	out := make([]Candidate, 0, len(allActions))
	for _, a := range allActions {
		if !s.settings.Bool(a.Toggle()) {
			continue
		}
		if lvl := s.cfg.ActionLevels[a]; lvl > 0 && !s.gate.IsFeatureUnlocked(lvl) {
			continue
		}
		if w := Weigh(a, s.cfg.BaseWeights[a], mood, intensity); w > 0 {
			out = append(out, Candidate{Action: a, Weight: w})
		}
	}
	return out
}

func (s *Scheduler) attempt(trigger string) (Action, error) {
	now := s.loop.Now()
	reject := func(reason string) (Action, error) {
		metrics.IncGateRejection(reason)
		s.logger.Debug().Str(log.FieldTrigger, trigger).Str("reason", reason).Msg("autonomy trigger rejected")
		return "", fmt.Errorf("%w: %s", ErrRejected, reason)
	}
	if reason := s.gateReason(now); reason != "" {
		return reject(reason)
	}
	action, ok := Pick(s.candidates(now), s.rng.Float64())
	if !ok {
		return reject(ReasonNoCandidate)
	}
	if !s.limiter.AllowN(now, 1) {
		return reject(ReasonBudget)
	}
	s.commit(action, trigger, now)
	return action, nil
}

// commit starts the cooldown and either runs the action or announces it and
// runs it after AnnounceDelay.
func (s *Scheduler) commit(a Action, trigger string, now time.Time) {
	s.lastAction = a
	s.lastActionAt = now
	if cd := time.Duration(s.settings.Number("autonomy.cooldown_seconds")) * time.Second; cd > 0 {
		s.cooldownUntil = now.Add(cd)
		s.cooldown.Cancel()
		s.cooldown = s.loop.After(s.ctx, cd, func(context.Context) { s.cooldown = nil })
	}
	metrics.IncAutonomyAction(string(a), trigger)

	chance := int(s.settings.Number("autonomy.announce_chance"))
	phrases := announcements[a]
	if len(phrases) == 0 || s.rng.IntN(100) >= chance {
		s.execute(a, trigger, false)
		return
	}

	ann := Announcement{ID: uuid.NewString(), Action: a, Phrase: phrases[s.rng.IntN(len(phrases))]}
	metrics.IncAnnouncement()
	s.logger.Info().
		Str(log.FieldEvent, "autonomy.announcement").
		Str(log.FieldAction, string(a)).
		Str("phrase", ann.Phrase).
		Msg("announcing action")
	s.publish(EventAnnouncement, ann)
	s.loop.After(s.ctx, s.cfg.AnnounceDelay, func(context.Context) {
		s.execute(a, trigger, true)
	})
}

func (s *Scheduler) execute(a Action, trigger string, announced bool) {
	_, span := s.tracer.Start(context.Background(), "autonomy.action", trace.WithAttributes(
		telemetry.AutonomyAttributes(string(a), trigger, string(MoodAt(s.loop.Now())))...,
	))
	defer span.End()

	kind := a.Effect()
	span.SetAttributes(telemetry.EffectAttributes(string(kind), "trigger")...)
	switch {
	case a.Pulse():
		s.startPulse(kind, false)
	case kind.FullScreen():
		s.claim(kind, false)
	default:
		if err := s.effects.TriggerOnce(kind); err != nil {
			span.RecordError(err)
			span.SetAttributes(telemetry.ErrorAttributes(err, "capability")...)
			s.logger.Warn().Err(err).Str(log.FieldAction, string(a)).Msg("autonomy action failed")
		}
	}

	s.logger.Info().
		Str(log.FieldEvent, "autonomy.action").
		Str(log.FieldAction, string(a)).
		Str(log.FieldTrigger, trigger).
		Bool("announced", announced).
		Msg("autonomy action")
	s.publish(EventAction, ActionEvent{Action: a, Trigger: trigger, Announced: announced})
}

// claim runs a full-screen interaction through the arbiter. When queued, the
// resume callback re-enters here once the slot frees. Only a resumed claim
// may treat a slot already held by kind as its own.
func (s *Scheduler) claim(kind effects.Kind, resumed bool) {
	if cur, ok := s.arbiter.Current(); resumed && ok && cur == kind {
		s.fireInteraction(kind)
		return
	}
	gen := s.globalGen
	resume := func() {
		if gen != s.globalGen {
			metrics.IncStaleCallback("autonomy")
			return
		}
		s.claim(kind, true)
	}
	if s.arbiter.TryStart(kind, resume, true) {
		s.fireInteraction(kind)
	}
}

func (s *Scheduler) fireInteraction(kind effects.Kind) {
	if err := s.effects.TriggerOnce(kind); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldInteraction, string(kind)).Msg("interaction failed to start; releasing slot")
		s.arbiter.Complete(kind)
	}
}

func (s *Scheduler) activePulses() []effects.Kind {
	out := make([]effects.Kind, 0, len(s.pulses))
	for k := range s.pulses {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (s *Scheduler) publish(typ string, payload any) {
	_ = s.pub.Publish(context.Background(), bus.TopicAutonomy, bus.Message{
		Type:    typ,
		At:      s.loop.Now(),
		Payload: payload,
	})
}
