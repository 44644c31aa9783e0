// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package arbiter serialises full-screen interactions: one holds the slot,
// the rest wait in arrival order.
package arbiter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/luuxx/ccp/internal/bus"
	"github.com/luuxx/ccp/internal/clock"
	"github.com/luuxx/ccp/internal/domain/effects"
	"github.com/luuxx/ccp/internal/log"
	"github.com/luuxx/ccp/internal/metrics"
)

// Event payload published on the interaction topic.
type Event struct {
	Kind    effects.Kind   `json:"kind"`
	Pending []effects.Kind `json:"pending,omitempty"`
}

type waiter struct {
	kind   effects.Kind
	resume func()
}

// Arbiter is loop-owned: all methods must be called on the scheduling loop.
type Arbiter struct {
	active    effects.Kind
	hasActive bool
	queue     []waiter

	pub    bus.Publisher
	clk    clock.Clock
	logger zerolog.Logger
}

func New(pub bus.Publisher, clk clock.Clock) *Arbiter {
	if pub == nil {
		pub = bus.Discard
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Arbiter{pub: pub, clk: clk, logger: log.WithComponent("arbiter")}
}

// CanStart reports whether the slot is free.
func (a *Arbiter) CanStart() bool {
	return !a.hasActive
}

// Current returns the kind holding the slot.
func (a *Arbiter) Current() (effects.Kind, bool) {
	return a.active, a.hasActive
}

// Pending returns the queued kinds in the order they will be resumed.
func (a *Arbiter) Pending() []effects.Kind {
	out := make([]effects.Kind, len(a.queue))
	for i, w := range a.queue {
		out[i] = w.kind
	}
	return out
}

// TryStart claims the slot for kind and reports true if it was free.
//
// When the slot is taken and queue is set, resume is appended to the FIFO and
// invoked once the kind reaches the head and the slot frees; resume is
// expected to call TryStart again. When the slot is taken and queue is unset
// the call is a re-entrant notification from a holder and does nothing.
func (a *Arbiter) TryStart(kind effects.Kind, resume func(), queue bool) bool {
	if !a.hasActive {
		a.active = kind
		a.hasActive = true
		a.logger.Debug().Str(log.FieldEvent, "arbiter.started").Str(log.FieldInteraction, string(kind)).Msg("interaction holds slot")
		a.publish("arbiter.started", kind)
		return true
	}
	if !queue {
		return false
	}
	a.queue = append(a.queue, waiter{kind: kind, resume: resume})
	a.logger.Debug().
		Str(log.FieldEvent, "arbiter.queued").
		Str(log.FieldInteraction, string(kind)).
		Int("depth", len(a.queue)).
		Msg("interaction queued")
	a.publish("arbiter.queued", kind)
	return false
}

// Complete releases the slot if kind holds it and resumes the next waiter.
// A waiter whose resume declines the slot passes it on to the one behind it.
// A non-matching kind is ignored.
func (a *Arbiter) Complete(kind effects.Kind) {
	if !a.hasActive || a.active != kind {
		metrics.IncArbiterMismatch()
		a.logger.Debug().
			Str(log.FieldEvent, "arbiter.complete_ignored").
			Str(log.FieldInteraction, string(kind)).
			Msg("completion for interaction not holding the slot")
		return
	}
	a.active = ""
	a.hasActive = false
	a.publish("arbiter.completed", kind)

	for !a.hasActive && len(a.queue) > 0 {
		next := a.queue[0]
		a.queue = a.queue[1:]
		a.resume(next)
	}
}

// Reset clears the slot and drops every waiter.
func (a *Arbiter) Reset() {
	dropped := len(a.queue)
	a.active = ""
	a.hasActive = false
	a.queue = nil
	a.logger.Info().Str(log.FieldEvent, "arbiter.reset").Int("dropped", dropped).Msg("interaction slot reset")
	a.publish("arbiter.reset", "")
}

func (a *Arbiter) resume(w waiter) {
	if w.resume == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str(log.FieldEvent, "arbiter.resume_panic").
				Str(log.FieldInteraction, string(w.kind)).
				Interface("panic", r).
				Msg("queued interaction resume panicked")
		}
	}()
	w.resume()
}

func (a *Arbiter) publish(typ string, kind effects.Kind) {
	metrics.SetArbiterState(a.hasActive, len(a.queue))
	_ = a.pub.Publish(context.Background(), bus.TopicInteraction, bus.Message{
		Type:    typ,
		At:      a.clk.Now(),
		Payload: Event{Kind: kind, Pending: a.Pending()},
	})
}
