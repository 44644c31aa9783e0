// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package autonomy

import (
	"context"
	"errors"
	"fmt"

	"github.com/luuxx/ccp/internal/domain/effects"
	"github.com/luuxx/ccp/internal/domain/settings"
	"github.com/luuxx/ccp/internal/log"
	"github.com/luuxx/ccp/internal/loop"
	"github.com/luuxx/ccp/internal/metrics"
)

// ErrNotPulsable is returned for kinds without an overlay opacity to pulse.
var ErrNotPulsable = errors.New("effect cannot pulse")

// PulseEvent is published when a pulse starts or ends.
type PulseEvent struct {
	Kind       effects.Kind `json:"kind"`
	Generation uint64       `json:"generation"`
	Reason     string       `json:"reason,omitempty"`
}

// pulse holds the values captured before an overlay was boosted. Its restore
// runs only while gen and global are still current.
type pulse struct {
	kind        effects.Kind
	gen         uint64
	global      uint64
	origEnabled bool
	origOpacity float64
	startedCap  bool
	task        *loop.Task
}

// Pulsable reports whether kind supports pulses.
func Pulsable(kind effects.Kind) bool {
	return kind == effects.Spiral || kind == effects.PinkFilter
}

// Pulse starts a pulse of kind now, superseding an active one. It reports
// false when a session drives the overlay.
func (s *Scheduler) Pulse(ctx context.Context, kind effects.Kind) (bool, error) {
	if !Pulsable(kind) {
		return false, fmt.Errorf("%w: %s", ErrNotPulsable, kind)
	}
	var started bool
	err := s.loop.Do(ctx, func() { started = s.startPulse(kind, true) })
	return started, err
}

// EndPulse reverts an active pulse early. It reports false when none is active.
func (s *Scheduler) EndPulse(ctx context.Context, kind effects.Kind) (bool, error) {
	var ended bool
	err := s.loop.Do(ctx, func() {
		if p := s.pulses[kind]; p != nil {
			s.endPulse(p, "ended")
			ended = true
		}
	})
	return ended, err
}

func (s *Scheduler) startPulse(kind effects.Kind, manual bool) bool {
	if p := s.pulses[kind]; p != nil {
		if !manual {
			metrics.IncPulse(string(kind), "skipped_active")
			return false
		}
		s.endPulse(p, "superseded")
	}
	if s.fg != nil && s.fg.ControlsEffect(kind) {
		metrics.IncPulse(string(kind), "skipped_foreground")
		s.logger.Debug().Str(log.FieldEffect, string(kind)).Msg("pulse skipped: session drives overlay")
		return false
	}

	enable, opacity := settings.EnableField(kind), settings.OpacityField(kind)
	p := &pulse{
		kind:        kind,
		origEnabled: s.settings.Bool(enable),
		origOpacity: s.settings.Number(opacity),
	}
	if err := s.settings.Set(opacity, s.cfg.PulseOpacity); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldField, string(opacity)).Msg("pulse could not set opacity")
	}
	if err := s.settings.Set(enable, true); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldField, string(enable)).Msg("pulse could not enable overlay")
	}
	if !p.origEnabled {
		if err := s.effects.Start(kind); err != nil {
			s.logger.Warn().Err(err).Str(log.FieldEffect, string(kind)).Msg("pulse could not start overlay")
		} else {
			p.startedCap = true
		}
	}

	s.gens[kind]++
	p.gen, p.global = s.gens[kind], s.globalGen
	s.pulses[kind] = p
	p.task = s.loop.After(context.Background(), s.cfg.PulseDuration, func(context.Context) {
		s.expirePulse(kind, p.gen, p.global)
	})

	metrics.IncPulse(string(kind), "started")
	s.logger.Info().
		Str(log.FieldEvent, "autonomy.pulse_started").
		Str(log.FieldEffect, string(kind)).
		Uint64(log.FieldGeneration, p.gen).
		Bool("manual", manual).
		Msg("pulse started")
	s.publish(EventPulseStarted, PulseEvent{Kind: kind, Generation: p.gen})
	return true
}

// expirePulse is the delayed restore. A newer pulse of the same kind or a
// global stop since scheduling makes it a no-op.
func (s *Scheduler) expirePulse(kind effects.Kind, gen, global uint64) {
	p := s.pulses[kind]
	if p == nil || gen != s.gens[kind] || global != s.globalGen {
		metrics.IncStaleCallback("pulse")
		return
	}
	s.endPulse(p, "expired")
}

func (s *Scheduler) endPulse(p *pulse, reason string) {
	delete(s.pulses, p.kind)
	p.task.Cancel()

	if err := s.settings.Set(settings.OpacityField(p.kind), p.origOpacity); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldEffect, string(p.kind)).Msg("pulse could not restore opacity")
	}
	if err := s.settings.Set(settings.EnableField(p.kind), p.origEnabled); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldEffect, string(p.kind)).Msg("pulse could not restore enable flag")
	}
	if p.startedCap {
		_ = s.effects.Stop(p.kind)
	}

	metrics.IncPulse(string(p.kind), reason)
	s.logger.Info().
		Str(log.FieldEvent, "autonomy.pulse_ended").
		Str(log.FieldEffect, string(p.kind)).
		Uint64(log.FieldGeneration, p.gen).
		Str("reason", reason).
		Msg("pulse ended")
	s.publish(EventPulseEnded, PulseEvent{Kind: p.kind, Generation: p.gen, Reason: reason})
}
