// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package looptest starts scheduling loops for tests.
package looptest

import (
	"context"
	"testing"
	"time"

	"github.com/luuxx/ccp/internal/clock"
	"github.com/luuxx/ccp/internal/loop"
)

// Start runs a loop on a background goroutine and stops it when the test ends.
func Start(t testing.TB, clk clock.Clock) *loop.Loop {
	t.Helper()
	l := loop.New(clk)
	go func() { _ = l.Run(context.Background()) }()
	t.Cleanup(func() {
		l.Close()
		select {
		case <-l.Done():
		case <-time.After(5 * time.Second):
			t.Errorf("loop did not stop")
		}
	})
	return l
}

// Do runs fn on the loop and fails the test on error.
func Do(t testing.TB, l *loop.Loop, fn func()) {
	t.Helper()
	if err := l.Do(context.Background(), fn); err != nil {
		t.Fatalf("loop.Do: %v", err)
	}
}
