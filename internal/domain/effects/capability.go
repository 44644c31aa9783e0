// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package effects defines the capability surface through which the
// orchestration core drives externally implemented effects, and the registry
// that guards every call into them.
package effects

import (
	"errors"

	"github.com/luuxx/ccp/internal/resilience"
)

var (
	ErrUnknownKind    = errors.New("unknown effect kind")
	ErrNotTriggerable = errors.New("effect does not support one-shot triggers")
	ErrEffectPanic    = errors.New("effect panicked")
	ErrCircuitOpen    = resilience.ErrCircuitOpen
)

// Capability is implemented by every concrete effect.
type Capability interface {
	Start() error
	Stop() error
	IsRunning() bool
}

// Trigger is implemented by effects that can fire a single occurrence
// (one flash, one subliminal frame) without entering a running state.
type Trigger interface {
	TriggerOnce() error
}

// Noop is the capability used for kinds with no registered implementation.
type Noop struct{}

func (Noop) Start() error       { return nil }
func (Noop) Stop() error        { return nil }
func (Noop) IsRunning() bool    { return false }
func (Noop) TriggerOnce() error { return nil }

var (
	_ Capability = Noop{}
	_ Trigger    = Noop{}
)
