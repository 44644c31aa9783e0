// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package loop provides the single-owner scheduling loop. Every piece of
// orchestration state (session run, interaction slot, autonomy scheduler)
// is mutated only by functions executed on the loop goroutine, so those
// components need no locks of their own.
//
// Timers never touch state directly: they marshal their body back onto the
// loop through Do and carry a cancellation context, so a callback whose
// owner has moved on observes a cancelled context and does nothing.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luuxx/ccp/internal/clock"
	"github.com/luuxx/ccp/internal/log"
	"github.com/luuxx/ccp/internal/metrics"
)

var (
	// ErrClosed is returned when work is submitted to a loop that has stopped.
	ErrClosed = errors.New("loop: closed")
	// ErrAlreadyRunning is returned by every Run after the first.
	ErrAlreadyRunning = errors.New("loop: already running")
)

// PanicError wraps a value recovered from a function executed on the loop.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("loop: recovered panic: %v", e.Value)
}

type request struct {
	fn   func()
	err  error
	done chan struct{}
}

// Loop serialises function execution onto one goroutine.
type Loop struct {
	clk     clock.Clock
	reqs    chan *request
	quit    chan struct{}
	stopped chan struct{}

	closeOnce sync.Once
	started   atomic.Bool
	running   atomic.Bool
}

// New creates a loop driven by clk. Run must be called to start it.
func New(clk clock.Clock) *Loop {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Loop{
		clk:     clk,
		reqs:    make(chan *request),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Clock returns the clock driving this loop's timers.
func (l *Loop) Clock() clock.Clock { return l.clk }

// Now returns the loop clock's current time.
func (l *Loop) Now() time.Time { return l.clk.Now() }

// Running reports whether Run is currently executing.
func (l *Loop) Running() bool { return l.running.Load() }

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.stopped }

// Run executes submitted functions until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	l.running.Store(true)
	defer func() {
		l.running.Store(false)
		l.Close()
		close(l.stopped)
	}()

	logger := log.WithComponent("loop")
	logger.Debug().Str(log.FieldEvent, "loop.start").Msg("scheduling loop started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Str(log.FieldEvent, "loop.stop").Msg("scheduling loop stopped")
			return ctx.Err()
		case <-l.quit:
			logger.Debug().Str(log.FieldEvent, "loop.stop").Msg("scheduling loop closed")
			return nil
		case req := <-l.reqs:
			l.exec(req)
		}
	}
}

func (l *Loop) exec(req *request) {
	defer close(req.done)
	defer func() {
		if r := recover(); r != nil {
			metrics.IncLoopPanic()
			logger := log.WithComponent("loop")
			logger.Error().
				Str(log.FieldEvent, "loop.panic").
				Interface("panic", r).
				Msg("recovered panic on scheduling loop")
			req.err = &PanicError{Value: r}
		}
	}()
	req.fn()
}

// Close stops the loop. Pending Do calls return ErrClosed.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.quit) })
}

// Do runs fn on the loop goroutine and waits for it to return.
//
// Do must not be called from the loop goroutine itself. It returns ctx.Err()
// if ctx ends before fn is accepted, ErrClosed if the loop has stopped, and
// a *PanicError if fn panicked.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req := &request{fn: fn, done: make(chan struct{})}
	select {
	case l.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrClosed
	case <-l.stopped:
		return ErrClosed
	}
	<-req.done
	return req.err
}
