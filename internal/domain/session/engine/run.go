// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/luuxx/ccp/internal/domain/effects"
	"github.com/luuxx/ccp/internal/domain/progress"
	"github.com/luuxx/ccp/internal/domain/ramp"
	"github.com/luuxx/ccp/internal/domain/session/model"
	"github.com/luuxx/ccp/internal/domain/settings"
	"github.com/luuxx/ccp/internal/log"
	"github.com/luuxx/ccp/internal/loop"
	"github.com/luuxx/ccp/internal/metrics"
)

// runState is owned by the loop. Its ctx is the run's cancellation token:
// every scheduled continuation is bound to it.
type runState struct {
	id     string
	sess   *model.Session
	ctx    context.Context
	cancel context.CancelFunc
	tick   *loop.Task

	state       State
	startedAt   time.Time
	anchor      time.Time     // wall time of the last start or resume
	accumulated time.Duration // elapsed before anchor
	pauses      int
	phase       int

	snapshot   settings.Snapshot
	offsets    map[effects.Kind]time.Duration
	activated  map[effects.Kind]bool
	owned      map[effects.Kind]bool // capabilities this run started
	rampValues map[settings.Field]float64

	claimed map[effects.Kind]bool // full-screen kinds holding the interaction slot
	waiting map[effects.Kind]int  // full-screen kinds queued for the slot, by ticket
	tickets int

	bursts      []time.Duration
	nextBurst   int
	burstActive bool
	burstEnd    time.Duration
}

func (r *runState) elapsed(now time.Time) time.Duration {
	switch r.state {
	case StateRunning:
		return r.accumulated + now.Sub(r.anchor)
	case StatePaused:
		return r.accumulated
	}
	return 0
}

func (e *Engine) start(sess *model.Session) (RunInfo, error) {
	if e.run != nil {
		metrics.IncSessionStart("already_running")
		return RunInfo{}, ErrAlreadyRunning
	}
	if !e.levelOK(sess.MinLevel) {
		metrics.IncSessionStart("locked")
		return RunInfo{}, ErrLevelLocked
	}

	now := e.loop.Now()
	ctx, cancel := context.WithCancel(context.Background())
	r := &runState{
		id:         uuid.NewString(),
		sess:       sess,
		ctx:        ctx,
		cancel:     cancel,
		state:      StateRunning,
		startedAt:  now,
		anchor:     now,
		phase:      -1,
		snapshot:   e.settings.Snapshot(sess.TouchedFields()...),
		offsets:    make(map[effects.Kind]time.Duration),
		activated:  make(map[effects.Kind]bool),
		owned:      make(map[effects.Kind]bool),
		rampValues: make(map[settings.Field]float64),
		claimed:    make(map[effects.Kind]bool),
		waiting:    make(map[effects.Kind]int),
	}

	for _, f := range sess.Features {
		if f.Delayed() {
			r.offsets[f.Effect] = max(0, f.StartDelay+e.jitter())
			e.guard(f.Effect, "disable", func() error {
				return e.settings.Set(settings.EnableField(f.Effect), false)
			})
		}
	}
	if b := sess.Bursts; b != nil {
		e.guard(b.Effect, "disable", func() error {
			return e.settings.Set(settings.EnableField(b.Effect), false)
		})
		r.bursts = e.planBursts(b, sess.Duration)
	}
	for _, f := range sess.Features {
		if !f.Delayed() {
			e.activate(r, f, 0)
		}
	}

	e.run = r
	r.tick = e.loop.Every(r.ctx, e.cfg.TickInterval, e.onTick(r))

	metrics.IncSessionStart("ok")
	metrics.SetSessionActive(true)
	e.logger.Info().
		Str(log.FieldEvent, "session.started").
		Str(log.FieldRunID, r.id).
		Str(log.FieldSession, sess.ID).
		Dur("duration", sess.Duration).
		Int("bursts", len(r.bursts)).
		Msg("session started")
	e.publish(model.EventStarted, model.Started{
		RunID:     r.id,
		Session:   sess.ID,
		Duration:  sess.Duration,
		StartedAt: now,
	})

	info := RunInfo{
		RunID:     r.id,
		Session:   sess.ID,
		StartedAt: now,
		Bursts:    slices.Clone(r.bursts),
	}
	if len(r.offsets) > 0 {
		info.Offsets = make(map[effects.Kind]time.Duration, len(r.offsets))
		for k, v := range r.offsets {
			info.Offsets[k] = v
		}
	}
	return info, nil
}

// jitter draws uniformly from [-Jitter, +Jitter].
func (e *Engine) jitter() time.Duration {
	j := e.cfg.Jitter
	if j <= 0 {
		return 0
	}
	return time.Duration(e.rng.Int64N(int64(2*j)+1)) - j
}

// activate applies a feature's values and the current ramp values, enables
// it and starts its capability when the level allows.
func (e *Engine) activate(r *runState, f model.Feature, elapsed time.Duration) {
	r.activated[f.Effect] = true
	e.guard(f.Effect, "apply", func() error {
		if err := e.settings.Apply(f.Values); err != nil {
			return err
		}
		for _, rp := range f.Ramps {
			v := ramp.Value(rp.From, rp.To, elapsed, r.offsets[f.Effect], r.sess.Duration)
			if err := e.settings.Set(rp.Field, v); err != nil {
				return err
			}
			r.rampValues[rp.Field] = v
		}
		return e.settings.Set(settings.EnableField(f.Effect), true)
	})
	if !e.levelOK(f.MinLevel) {
		e.logger.Info().
			Str(log.FieldRunID, r.id).
			Str(log.FieldEffect, string(f.Effect)).
			Int("min_level", f.MinLevel).
			Msg("feature locked for current level")
		return
	}
	e.startOwned(r, f.Effect)
}

// startOwned starts kind for r. A full-screen kind first claims the
// interaction slot; while another interaction holds it the start waits in the
// arbiter's queue and runs when resumed, provided the run is still running
// and the feature still enabled.
func (e *Engine) startOwned(r *runState, kind effects.Kind) {
	if kind.FullScreen() && !r.claimed[kind] {
		if _, queued := r.waiting[kind]; queued {
			return
		}
		r.tickets++
		ticket := r.tickets
		resume := func() {
			if e.run != r || r.state != StateRunning || r.waiting[kind] != ticket {
				metrics.IncStaleCallback("session")
				return
			}
			delete(r.waiting, kind)
			if e.settings.Bool(settings.EnableField(kind)) {
				e.startOwned(r, kind)
			}
		}
		if !e.arbiter.TryStart(kind, resume, true) {
			r.waiting[kind] = ticket
			e.logger.Info().
				Str(log.FieldRunID, r.id).
				Str(log.FieldInteraction, string(kind)).
				Msg("full-screen feature waiting for interaction slot")
			return
		}
		r.claimed[kind] = true
	}

	started := false
	e.guard(kind, "start", func() error {
		if err := e.effects.Start(kind); err != nil {
			return err
		}
		r.owned[kind] = true
		started = true
		return nil
	})
	if !started {
		e.release(r, kind)
	}
}

// stopOwned stops kind and gives up any claim r holds or waits for on it.
func (e *Engine) stopOwned(r *runState, kind effects.Kind) {
	delete(r.waiting, kind)
	e.guard(kind, "stop", func() error { return e.effects.Stop(kind) })
	e.release(r, kind)
}

func (e *Engine) release(r *runState, kind effects.Kind) {
	if !r.claimed[kind] {
		return
	}
	delete(r.claimed, kind)
	e.arbiter.Complete(kind)
}

func (e *Engine) onTick(r *runState) func(context.Context) {
	return func(ctx context.Context) {
		if e.run != r || r.state != StateRunning {
			metrics.IncStaleCallback("session")
			return
		}
		e.tick(r)
	}
}

func (e *Engine) tick(r *runState) {
	metrics.IncSessionTick()
	elapsed := r.elapsed(e.loop.Now())
	if elapsed >= r.sess.Duration {
		_, _ = e.stop(true)
		return
	}

	if idx := r.sess.PhaseAt(elapsed); idx != r.phase {
		r.phase = idx
		if idx >= 0 {
			name := r.sess.Phases[idx].Name
			metrics.IncPhaseChange()
			e.logger.Info().Str(log.FieldRunID, r.id).Str(log.FieldPhase, name).Msg("session phase changed")
			e.publish(model.EventPhaseChanged, model.PhaseChanged{RunID: r.id, Phase: name, Index: idx})
		}
	}

	for _, f := range r.sess.Features {
		if !r.activated[f.Effect] || len(f.Ramps) == 0 {
			continue
		}
		e.guard(f.Effect, "ramp", func() error {
			for _, rp := range f.Ramps {
				v := ramp.Value(rp.From, rp.To, elapsed, r.offsets[f.Effect], r.sess.Duration)
				if err := e.settings.Set(rp.Field, v); err != nil {
					return err
				}
				r.rampValues[rp.Field] = v
			}
			return nil
		})
	}

	for _, f := range r.sess.Features {
		if r.activated[f.Effect] || elapsed < r.offsets[f.Effect] {
			continue
		}
		e.activate(r, f, elapsed)
		e.logger.Info().Str(log.FieldRunID, r.id).Str(log.FieldEffect, string(f.Effect)).Msg("delayed feature activated")
		e.publish(model.EventFeatureStarted, model.FeatureStarted{RunID: r.id, Effect: f.Effect})
	}

	e.stepBursts(r, elapsed)

	e.publish(model.EventProgress, model.Progress{
		RunID:     r.id,
		Elapsed:   elapsed,
		Remaining: r.sess.Duration - elapsed,
		Percent:   percent(elapsed, r.sess.Duration),
	})
}

func (e *Engine) pause() error {
	r := e.run
	if r == nil || r.state != StateRunning {
		e.logger.Debug().Msg("pause ignored: no running session")
		return ErrNotRunning
	}
	r.accumulated = r.elapsed(e.loop.Now())
	r.state = StatePaused
	r.pauses++
	if r.tick != nil {
		r.tick.Cancel()
		r.tick = nil
	}
	clear(r.waiting)
	for _, kind := range sortedKinds(r.owned) {
		e.stopOwned(r, kind)
	}

	metrics.IncSessionPause()
	e.logger.Info().Str(log.FieldRunID, r.id).Int("pauses", r.pauses).Msg("session paused")
	e.publish(model.EventPaused, model.Paused{RunID: r.id, Elapsed: r.accumulated, Pauses: r.pauses})
	return nil
}

func (e *Engine) resume() error {
	r := e.run
	if r == nil || r.state != StatePaused {
		e.logger.Debug().Msg("resume ignored: no paused session")
		return ErrNotPaused
	}
	r.anchor = e.loop.Now()
	r.state = StateRunning
	r.tick = e.loop.Every(r.ctx, e.cfg.TickInterval, e.onTick(r))

	for _, kind := range e.controlledKinds(r.sess) {
		if !e.settings.Bool(settings.EnableField(kind)) || !e.levelOK(e.featureLevel(r.sess, kind)) {
			continue
		}
		e.startOwned(r, kind)
	}

	e.logger.Info().Str(log.FieldRunID, r.id).Msg("session resumed")
	e.publish(model.EventResumed, model.Paused{RunID: r.id, Elapsed: r.accumulated, Pauses: r.pauses})
	return nil
}

// runEnd summarises a finished run for the caller's span.
type runEnd struct {
	runID   string
	session string
	pauses  int
	xp      int
}

func (e *Engine) stop(completed bool) (runEnd, error) {
	r := e.run
	if r == nil {
		e.logger.Debug().Msg("stop ignored: no session")
		return runEnd{}, ErrNotRunning
	}
	end := runEnd{runID: r.id, session: r.sess.ID, pauses: r.pauses}
	now := e.loop.Now()
	elapsed := min(r.elapsed(now), r.sess.Duration)
	e.run = nil
	e.teardown(r)
	metrics.SetSessionActive(false)

	ev := e.logger.Info().
		Str(log.FieldRunID, r.id).
		Str(log.FieldSession, r.sess.ID).
		Dur("elapsed", elapsed).
		Int("pauses", r.pauses)
	if !completed {
		metrics.IncSessionEnd("stopped")
		ev.Str(log.FieldEvent, "session.stopped").Msg("session stopped")
		e.publish(model.EventStopped, model.Stopped{
			RunID:     r.id,
			Session:   r.sess.ID,
			StartedAt: r.startedAt,
			EndedAt:   now,
			Elapsed:   elapsed,
			Pauses:    r.pauses,
		})
		return end, nil
	}

	xp := progress.Reward(r.sess.BonusXP, r.pauses, e.cfg.PausePenaltyXP, e.gate.LevelMultiplier())
	metrics.IncSessionEnd("completed")
	metrics.AddXPAwarded(xp)
	ev.Str(log.FieldEvent, "session.completed").Int("xp", xp).Msg("session completed")
	e.publish(model.EventCompleted, model.Completed{
		RunID:     r.id,
		Session:   r.sess.ID,
		StartedAt: r.startedAt,
		EndedAt:   now,
		Duration:  elapsed,
		XP:        xp,
		Pauses:    r.pauses,
	})
	end.xp = xp
	return end, nil
}

// teardown cancels every continuation of r, stops what r started and
// restores the snapshot. The restore runs even if a step panics.
func (e *Engine) teardown(r *runState) {
	defer func() {
		e.settings.Restore(r.snapshot)
		e.settings.Save()
	}()
	r.cancel()
	if r.tick != nil {
		r.tick.Cancel()
		r.tick = nil
	}
	r.state = StateIdle
	clear(r.waiting)
	for _, kind := range sortedKinds(r.owned) {
		e.stopOwned(r, kind)
	}
	for _, kind := range sortedKinds(r.claimed) {
		e.release(r, kind)
	}
}

func (e *Engine) controlledKinds(s *model.Session) []effects.Kind {
	kinds := make([]effects.Kind, 0, len(s.Features)+1)
	for _, f := range s.Features {
		kinds = append(kinds, f.Effect)
	}
	if s.Bursts != nil && !slices.Contains(kinds, s.Bursts.Effect) {
		kinds = append(kinds, s.Bursts.Effect)
	}
	return kinds
}

func (e *Engine) featureLevel(s *model.Session, kind effects.Kind) int {
	for _, f := range s.Features {
		if f.Effect == kind {
			return f.MinLevel
		}
	}
	return 0
}

func sortedKinds(set map[effects.Kind]bool) []effects.Kind {
	out := make([]effects.Kind, 0, len(set))
	for k, ok := range set {
		if ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

func percent(elapsed, total time.Duration) float64 {
	return ramp.Progress(elapsed, total) * 100
}
