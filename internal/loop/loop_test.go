// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package loop_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luuxx/ccp/internal/clock"
	"github.com/luuxx/ccp/internal/loop"
	"github.com/luuxx/ccp/internal/loop/looptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestDo_RunsOnLoopInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := loop.New(clock.NewFake(epoch))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	var seen []int
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Do(context.Background(), func() { seen = append(seen, i) }))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
	assert.True(t, l.Running())

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.False(t, l.Running())
}

func TestDo_AfterCloseReturnsErrClosed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := loop.New(clock.NewFake(epoch))
	go func() { _ = l.Run(context.Background()) }()
	l.Close()
	<-l.Done()

	err := l.Do(context.Background(), func() { t.Fatal("must not run") })
	assert.ErrorIs(t, err, loop.ErrClosed)
	assert.ErrorIs(t, l.Run(context.Background()), loop.ErrAlreadyRunning)
}

func TestDo_RecoversPanic(t *testing.T) {
	l := looptest.Start(t, clock.NewFake(epoch))

	err := l.Do(context.Background(), func() { panic("boom") })
	var pe *loop.PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.Value)

	// loop survives
	assert.NoError(t, l.Do(context.Background(), func() {}))
}

func TestDo_CancelledContextBeforeAccept(t *testing.T) {
	l := loop.New(clock.NewFake(epoch)) // never started
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Do(ctx, func() {}), context.Canceled)
}

func TestAfter_FiresOnceOnLoop(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := looptest.Start(t, clk)

	var fired int
	var firedAt time.Time
	task := l.After(context.Background(), 3*time.Second, func(context.Context) {
		fired++
		firedAt = l.Now()
	})

	clk.Advance(2 * time.Second)
	looptest.Do(t, l, func() { assert.Equal(t, 0, fired) })

	clk.Advance(10 * time.Second)
	looptest.Do(t, l, func() { assert.Equal(t, 1, fired) })
	assert.Equal(t, epoch.Add(3*time.Second), firedAt)
	assert.False(t, task.Active())
}

func TestEvery_RepeatsUntilCancelled(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := looptest.Start(t, clk)

	var ticks int
	task := l.Every(context.Background(), time.Second, func(context.Context) { ticks++ })

	clk.Advance(5 * time.Second)
	looptest.Do(t, l, func() { assert.Equal(t, 5, ticks) })

	looptest.Do(t, l, task.Cancel)
	clk.Advance(5 * time.Second)
	looptest.Do(t, l, func() { assert.Equal(t, 5, ticks) })
	assert.Equal(t, 0, clk.Pending())
}

func TestTask_CancelFromInsideCallback(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := looptest.Start(t, clk)

	var ticks int
	var task *loop.Task
	looptest.Do(t, l, func() {
		task = l.Every(context.Background(), time.Second, func(context.Context) {
			ticks++
			if ticks == 2 {
				task.Cancel()
			}
		})
	})

	clk.Advance(10 * time.Second)
	looptest.Do(t, l, func() { assert.Equal(t, 2, ticks) })
}

func TestTask_ParentCancellationSuppressesFire(t *testing.T) {
	clk := clock.NewFake(epoch)
	l := looptest.Start(t, clk)

	ctx, cancel := context.WithCancel(context.Background())
	var fired atomic.Bool
	l.After(ctx, time.Second, func(context.Context) { fired.Store(true) })

	cancel()
	clk.Advance(time.Minute)
	looptest.Do(t, l, func() {})
	assert.False(t, fired.Load())
}

func TestTask_RealClock(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := loop.New(clock.Real{})
	go func() { _ = l.Run(context.Background()) }()
	defer func() {
		l.Close()
		<-l.Done()
	}()

	done := make(chan struct{})
	l.After(context.Background(), 10*time.Millisecond, func(context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not fire")
	}
}
