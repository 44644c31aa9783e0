// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package loop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/luuxx/ccp/internal/clock"
	"github.com/luuxx/ccp/internal/metrics"
)

// Task is a deferred or periodic continuation owned by the loop.
//
// The context handed to fn is cancelled by Cancel or by the parent context;
// fn never runs once either has happened, even if the underlying timer had
// already fired.
type Task struct {
	l        *Loop
	ctx      context.Context
	cancel   context.CancelFunc
	fn       func(ctx context.Context)
	interval time.Duration
	repeat   bool

	mu    sync.Mutex
	timer clock.Timer
}

// After schedules fn to run once on the loop after d.
func (l *Loop) After(parent context.Context, d time.Duration, fn func(ctx context.Context)) *Task {
	return l.schedule(parent, d, fn, false)
}

// Every schedules fn to run on the loop every d until cancelled.
func (l *Loop) Every(parent context.Context, d time.Duration, fn func(ctx context.Context)) *Task {
	if d <= 0 {
		d = time.Second
	}
	return l.schedule(parent, d, fn, true)
}

func (l *Loop) schedule(parent context.Context, d time.Duration, fn func(ctx context.Context), repeat bool) *Task {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	t := &Task{
		l:        l,
		ctx:      ctx,
		cancel:   cancel,
		fn:       fn,
		interval: d,
		repeat:   repeat,
	}
	t.arm(d)
	return t
}

// Cancel prevents any further execution of the task. Safe to call repeatedly
// and from any goroutine, including the loop.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.cancel()
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}

// Active reports whether the task may still run.
func (t *Task) Active() bool {
	return t != nil && t.ctx.Err() == nil
}

func (t *Task) arm(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx.Err() != nil {
		return
	}
	t.timer = t.l.clk.AfterFunc(d, t.fire)
}

func (t *Task) fire() {
	if t.ctx.Err() != nil {
		metrics.IncTaskFired("stale")
		return
	}
	err := t.l.Do(t.ctx, func() {
		if t.ctx.Err() != nil {
			metrics.IncTaskFired("stale")
			return
		}
		metrics.IncTaskFired("run")
		t.fn(t.ctx)
	})
	switch {
	case errors.Is(err, ErrClosed):
		metrics.IncTaskFired("closed")
		t.cancel()
		return
	case err != nil && t.ctx.Err() != nil:
		metrics.IncTaskFired("stale")
		return
	}
	if t.repeat {
		t.arm(t.interval)
		return
	}
	t.cancel()
}
