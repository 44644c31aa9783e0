// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package effects

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/luuxx/ccp/internal/clock"
	"github.com/luuxx/ccp/internal/log"
	"github.com/luuxx/ccp/internal/metrics"
	"github.com/luuxx/ccp/internal/resilience"
)

const (
	defaultBreakerThreshold = 5
	defaultBreakerReset     = time.Minute
)

// Registry maps kinds to capabilities. A kind without a registered
// implementation resolves to Noop, so callers never nil-check.
//
// Every call is guarded: panics are recovered, failures are logged and
// counted, and a per-kind circuit breaker short-circuits an effect that keeps
// failing. Stop bypasses an open breaker so a failing effect is still asked to
// shut down; ungated calls do not feed the breaker.
type Registry struct {
	mu       sync.RWMutex
	caps     map[Kind]Capability
	breakers map[Kind]*resilience.CircuitBreaker

	threshold int
	reset     time.Duration
	clk       clock.Clock
	logger    zerolog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBreaker sets the consecutive-failure threshold and open duration.
func WithBreaker(threshold int, reset time.Duration) RegistryOption {
	return func(r *Registry) {
		r.threshold = threshold
		r.reset = reset
	}
}

// WithRegistryClock sets the clock used by the circuit breakers.
func WithRegistryClock(c clock.Clock) RegistryOption {
	return func(r *Registry) { r.clk = c }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		caps:      make(map[Kind]Capability),
		breakers:  make(map[Kind]*resilience.CircuitBreaker),
		threshold: defaultBreakerThreshold,
		reset:     defaultBreakerReset,
		clk:       clock.Real{},
		logger:    log.WithComponent("effects"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs c for kind, replacing any previous implementation.
func (r *Registry) Register(kind Kind, c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == nil {
		delete(r.caps, kind)
		return
	}
	r.caps[kind] = c
	if _, ok := r.breakers[kind]; !ok {
		r.breakers[kind] = resilience.NewCircuitBreaker(string(kind), r.threshold, r.reset, resilience.WithClock(r.clk))
	}
}

// Has reports whether a real implementation is registered for kind.
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.caps[kind]
	return ok
}

// Get returns the capability for kind, or Noop.
func (r *Registry) Get(kind Kind) Capability {
	if c, _, ok := r.lookup(kind); ok {
		return c
	}
	return Noop{}
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.caps))
	for k := range r.caps {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// BreakerState returns the breaker state for kind ("" when absent).
func (r *Registry) BreakerState(kind Kind) resilience.State {
	if _, b, ok := r.lookup(kind); ok {
		return b.State()
	}
	return ""
}

func (r *Registry) Start(kind Kind) error {
	return r.call(kind, "start", true, func(c Capability) error { return c.Start() })
}

func (r *Registry) Stop(kind Kind) error {
	return r.call(kind, "stop", false, func(c Capability) error { return c.Stop() })
}

// TriggerOnce fires a single occurrence. Kinds that do not implement Trigger
// report ErrNotTriggerable.
func (r *Registry) TriggerOnce(kind Kind) error {
	return r.call(kind, "trigger", true, func(c Capability) error {
		t, ok := c.(Trigger)
		if !ok {
			return ErrNotTriggerable
		}
		return t.TriggerOnce()
	})
}

// IsRunning reports the capability's running state; a panicking
// implementation reads as not running.
func (r *Registry) IsRunning(kind Kind) (running bool) {
	c, _, ok := r.lookup(kind)
	if !ok {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			metrics.ObserveEffectCall(string(kind), "is_running", "panic")
			r.logger.Error().Str(log.FieldEffect, string(kind)).Interface("panic", rec).Msg("effect IsRunning panicked")
			running = false
		}
	}()
	return c.IsRunning()
}

// StopAll stops every registered effect, continuing past failures.
func (r *Registry) StopAll() {
	for _, k := range r.Kinds() {
		_ = r.Stop(k)
	}
}

func (r *Registry) lookup(kind Kind) (Capability, *resilience.CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[kind]
	if !ok {
		return nil, nil, false
	}
	return c, r.breakers[kind], true
}

func (r *Registry) call(kind Kind, op string, gated bool, fn func(Capability) error) (err error) {
	c, b, ok := r.lookup(kind)
	if !ok {
		metrics.ObserveEffectCall(string(kind), op, "absent")
		return nil
	}
	if gated && !b.Allow() {
		metrics.ObserveEffectCall(string(kind), op, "short_circuit")
		return fmt.Errorf("%s %s: %w", kind, op, ErrCircuitOpen)
	}

	defer func() {
		if rec := recover(); rec != nil {
			if gated {
				b.RecordFailure()
			}
			metrics.ObserveEffectCall(string(kind), op, "panic")
			r.logger.Error().
				Str(log.FieldEvent, "effect.panic").
				Str(log.FieldEffect, string(kind)).
				Str("op", op).
				Interface("panic", rec).
				Msg("effect call panicked")
			err = fmt.Errorf("%s %s: %w: %v", kind, op, ErrEffectPanic, rec)
		}
	}()

	if err = fn(c); err != nil {
		if errors.Is(err, ErrNotTriggerable) {
			metrics.ObserveEffectCall(string(kind), op, "unsupported")
			return fmt.Errorf("%s: %w", kind, err)
		}
		if gated {
			b.RecordFailure()
		}
		metrics.ObserveEffectCall(string(kind), op, "error")
		r.logger.Warn().
			Str(log.FieldEvent, "effect.failed").
			Str(log.FieldEffect, string(kind)).
			Str("op", op).
			Err(err).
			Msg("effect call failed")
		return fmt.Errorf("%s %s: %w", kind, op, err)
	}
	if gated {
		b.RecordSuccess()
	}
	metrics.ObserveEffectCall(string(kind), op, "ok")
	return nil
}
