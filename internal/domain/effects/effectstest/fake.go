// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package effectstest provides recording capabilities for tests.
package effectstest

import (
	"sync"

	"github.com/luuxx/ccp/internal/domain/effects"
)

// Fake is a recording effect capability.
type Fake struct {
	mu       sync.Mutex
	running  bool
	starts   int
	stops    int
	triggers int

	// StartErr, if set, is returned by Start.
	StartErr error
	// PanicOnStart makes Start panic.
	PanicOnStart bool
}

func (f *Fake) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.PanicOnStart {
		panic("fake effect start")
	}
	if f.StartErr != nil {
		return f.StartErr
	}
	f.running = true
	return nil
}

func (f *Fake) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
	return nil
}

func (f *Fake) TriggerOnce() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	return nil
}

func (f *Fake) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Counts returns the number of Start, Stop and TriggerOnce calls.
func (f *Fake) Counts() (starts, stops, triggers int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops, f.triggers
}

// Set holds one Fake per kind, all registered in Registry.
type Set struct {
	Registry *effects.Registry
	fakes    map[effects.Kind]*Fake
}

// NewSet registers a Fake for every kind.
func NewSet(opts ...effects.RegistryOption) *Set {
	s := &Set{Registry: effects.NewRegistry(opts...), fakes: make(map[effects.Kind]*Fake)}
	for _, k := range effects.All() {
		f := &Fake{}
		s.fakes[k] = f
		s.Registry.Register(k, f)
	}
	return s
}

// Fake returns the fake registered for kind.
func (s *Set) Fake(kind effects.Kind) *Fake {
	return s.fakes[kind]
}
