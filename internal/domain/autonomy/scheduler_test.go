// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package autonomy

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/luuxx/ccp/internal/bus/bustest"
	"github.com/luuxx/ccp/internal/clock"
	"github.com/luuxx/ccp/internal/domain/arbiter"
	"github.com/luuxx/ccp/internal/domain/effects"
	"github.com/luuxx/ccp/internal/domain/effects/effectstest"
	"github.com/luuxx/ccp/internal/domain/progress"
	"github.com/luuxx/ccp/internal/domain/settings"
	"github.com/luuxx/ccp/internal/loop"
	"github.com/luuxx/ccp/internal/loop/looptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// 09:00 UTC is a gentle hour.
var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type gate struct {
	level   int
	premium bool
}

func (g gate) IsFeatureUnlocked(th int) bool { return g.level >= th }
func (g gate) HasPremiumAccess() bool        { return g.premium }
func (g gate) LevelMultiplier() float64      { return 1 }

type foreground map[effects.Kind]bool

func (f foreground) ControlsEffect(k effects.Kind) bool { return f[k] }

type harness struct {
	clk   *clock.Fake
	loop  *loop.Loop
	store *settings.Store
	fx    *effectstest.Set
	arb   *arbiter.Arbiter
	rec   *bustest.Recorder
	s     *Scheduler
}

func newHarness(t *testing.T, opts ...func(*Deps)) *harness {
	t.Helper()
	clk := clock.NewFake(epoch)
	initial := settings.Default()
	initial.Autonomy.Enabled = true
	initial.Autonomy.Consent = true
	initial.Autonomy.AnnounceChance = 0

	h := &harness{
		clk:   clk,
		loop:  looptest.Start(t, clk),
		store: settings.NewStore(initial, nil),
		fx:    effectstest.NewSet(),
		rec:   &bustest.Recorder{},
	}
	h.arb = arbiter.New(h.rec, clk)
	d := Deps{
		Loop:     h.loop,
		Settings: h.store,
		Effects:  h.fx.Registry,
		Arbiter:  h.arb,
		Gate:     progress.Unrestricted{},
		Bus:      h.rec,
		Rand:     rand.New(rand.NewPCG(7, 11)),
		Config:   DefaultConfig(),
	}
	for _, o := range opts {
		o(&d)
	}
	h.s = New(d)
	return h
}

func (h *harness) do(t *testing.T, fn func()) {
	t.Helper()
	looptest.Do(t, h.loop, fn)
}

func (h *harness) set(t *testing.T, values map[settings.Field]any) {
	t.Helper()
	h.do(t, func() { require.NoError(t, h.store.Apply(values)) })
}

// only leaves exactly the given actions enabled.
func (h *harness) only(t *testing.T, actions ...Action) {
	t.Helper()
	values := make(map[settings.Field]any)
	for _, a := range Actions() {
		values[a.Toggle()] = false
	}
	for _, a := range actions {
		values[a.Toggle()] = true
	}
	h.set(t, values)
}

func (h *harness) number(t *testing.T, f settings.Field) float64 {
	var v float64
	h.do(t, func() { v = h.store.Number(f) })
	return v
}

func (h *harness) flag(t *testing.T, f settings.Field) bool {
	var v bool
	h.do(t, func() { v = h.store.Bool(f) })
	return v
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ok, err := h.s.Start(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestStart_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		consent bool
		gate    progress.Gate
		want    bool
	}{
		{name: "all met", enabled: true, consent: true, gate: progress.Unrestricted{}, want: true},
		{name: "disabled", enabled: false, consent: true, gate: progress.Unrestricted{}},
		{name: "no consent", enabled: true, consent: false, gate: progress.Unrestricted{}},
		{name: "level too low", enabled: true, consent: true, gate: gate{level: 2}},
		{name: "premium bypasses level", enabled: true, consent: true, gate: gate{level: 1, premium: true}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(d *Deps) { d.Gate = tt.gate })
			h.set(t, map[settings.Field]any{"autonomy.enabled": tt.enabled, "autonomy.consent": tt.consent})

			ok, err := h.s.Start(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			if !tt.want {
				assert.Zero(t, h.clk.Pending(), "refused start arms nothing")
				assert.Empty(t, h.rec.Messages())
			} else {
				assert.Equal(t, 2, h.clk.Pending(), "idle and random timers")
			}
		})
	}
}

func TestPulse_SupersededRestoreIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.Equal(t, 15.0, h.number(t, "spiral.opacity"))
	require.False(t, h.flag(t, "spiral.enabled"))

	ok, err := h.s.Pulse(ctx, effects.Spiral)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 60.0, h.number(t, "spiral.opacity"))
	assert.True(t, h.flag(t, "spiral.enabled"))

	var p1Gen, global uint64
	h.do(t, func() { p1Gen, global = h.s.pulses[effects.Spiral].gen, h.s.globalGen })

	h.clk.Advance(10 * time.Second)
	ok, err = h.s.Pulse(ctx, effects.Spiral)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 60.0, h.number(t, "spiral.opacity"))

	// P1's restore arriving now must not touch P2.
	h.do(t, func() { h.s.expirePulse(effects.Spiral, p1Gen, global) })
	assert.Equal(t, 60.0, h.number(t, "spiral.opacity"))

	h.clk.Advance(25 * time.Second)
	assert.Equal(t, 60.0, h.number(t, "spiral.opacity"), "P1 deadline passes without effect")

	h.clk.Advance(5 * time.Second)
	assert.Equal(t, 15.0, h.number(t, "spiral.opacity"), "P2 restores the original capture")
	assert.False(t, h.flag(t, "spiral.enabled"))

	starts, stops, _ := h.fx.Fake(effects.Spiral).Counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 2, stops)
	assert.Equal(t, 2, h.rec.Count(EventPulseStarted))
	assert.Equal(t, 2, h.rec.Count(EventPulseEnded))
}

func TestPulse_AutomaticSkipsActiveAndForeground(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Foreground = foreground{effects.PinkFilter: true} })
	var first, second, pink bool
	h.do(t, func() {
		first = h.s.startPulse(effects.Spiral, false)
		second = h.s.startPulse(effects.Spiral, false)
		pink = h.s.startPulse(effects.PinkFilter, false)
	})
	assert.True(t, first)
	assert.False(t, second, "active pulse is not stacked")
	assert.False(t, pink, "session-driven overlay is left alone")
	assert.Equal(t, 10.0, h.number(t, "pink_filter.opacity"))

	ok, err := h.s.Pulse(context.Background(), effects.Flash)
	assert.ErrorIs(t, err, ErrNotPulsable)
	assert.False(t, ok)
}

func TestStop_RevertsPulsesOnceAndSynchronously(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.set(t, map[settings.Field]any{"pink_filter.enabled": true, "pink_filter.opacity": 20})
	h.start(t)

	_, err := h.s.Pulse(ctx, effects.Spiral)
	require.NoError(t, err)
	_, err = h.s.Pulse(ctx, effects.PinkFilter)
	require.NoError(t, err)
	h.clk.Advance(5 * time.Second)

	require.NoError(t, h.s.Stop(ctx))
	assert.Equal(t, 15.0, h.number(t, "spiral.opacity"))
	assert.False(t, h.flag(t, "spiral.enabled"))
	assert.Equal(t, 20.0, h.number(t, "pink_filter.opacity"))
	assert.True(t, h.flag(t, "pink_filter.enabled"))

	st, err := h.s.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.Empty(t, st.ActivePulses)
	assert.Equal(t, uint64(1), st.GlobalGeneration)

	// A later change must survive the pulses' original deadlines.
	h.set(t, map[settings.Field]any{"spiral.opacity": 33})
	h.clk.Advance(time.Minute)
	assert.Equal(t, 33.0, h.number(t, "spiral.opacity"))
	assert.Equal(t, 2, h.rec.Count(EventPulseEnded))
	assert.Zero(t, h.clk.Pending())

	_, pinkStops, _ := h.fx.Fake(effects.PinkFilter).Counts()
	assert.Zero(t, pinkStops, "overlay that was already on keeps running")
}

func TestTrigger_GateReasons(t *testing.T) {
	ctx := context.Background()

	t.Run("not running", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.s.Trigger(ctx, "")
		assert.ErrorIs(t, err, ErrRejected)
		assert.ErrorContains(t, err, ReasonNotRunning)
	})

	t.Run("cooldown", func(t *testing.T) {
		h := newHarness(t)
		h.only(t, ActionFlash)
		h.start(t)
		a, err := h.s.Trigger(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, ActionFlash, a)
		_, err = h.s.Trigger(ctx, "")
		assert.ErrorContains(t, err, ReasonCooldown)

		h.clk.Advance(time.Minute)
		_, err = h.s.Trigger(ctx, "")
		assert.NoError(t, err, "cooldown of 60s has passed")
	})

	t.Run("interaction active", func(t *testing.T) {
		h := newHarness(t)
		h.start(t)
		h.do(t, func() { h.arb.TryStart(effects.MandatoryVideo, nil, false) })
		_, err := h.s.Trigger(ctx, "")
		assert.ErrorContains(t, err, ReasonInteraction)
	})

	t.Run("blocking activity", func(t *testing.T) {
		h := newHarness(t)
		h.start(t)
		require.NoError(t, h.fx.Fake(effects.WebVideo).Start())
		_, err := h.s.Trigger(ctx, "")
		assert.ErrorContains(t, err, ReasonBlocking)
	})

	t.Run("no candidates", func(t *testing.T) {
		h := newHarness(t)
		h.only(t)
		h.start(t)
		_, err := h.s.Trigger(ctx, "")
		assert.ErrorContains(t, err, ReasonNoCandidate)
	})

	t.Run("level gated actions are not candidates", func(t *testing.T) {
		h := newHarness(t, func(d *Deps) { d.Gate = gate{level: 5, premium: true} })
		h.only(t, ActionMindWipe)
		h.start(t)
		_, err := h.s.Trigger(ctx, "")
		assert.ErrorContains(t, err, ReasonNoCandidate)
	})

	t.Run("hourly budget", func(t *testing.T) {
		h := newHarness(t, func(d *Deps) { d.Config.MaxActionsPerHour = 1 })
		h.set(t, map[settings.Field]any{"autonomy.cooldown_seconds": 0})
		h.only(t, ActionFlash)
		h.start(t)
		_, err := h.s.Trigger(ctx, "")
		require.NoError(t, err)
		_, err = h.s.Trigger(ctx, "")
		assert.ErrorContains(t, err, ReasonBudget)
	})
}

func TestAnnouncement_DelaysActionNotCooldown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.only(t, ActionFlash)
	h.set(t, map[settings.Field]any{"autonomy.announce_chance": 100})
	h.start(t)

	a, err := h.s.Trigger(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ActionFlash, a)

	msg, ok := h.rec.Last(EventAnnouncement)
	require.True(t, ok)
	ann := msg.Payload.(Announcement)
	assert.Contains(t, Phrases(ActionFlash), ann.Phrase)
	assert.NotEmpty(t, ann.ID)

	_, _, triggers := h.fx.Fake(effects.Flash).Counts()
	assert.Zero(t, triggers, "action waits for the announcement")
	_, err = h.s.Trigger(ctx, "")
	assert.ErrorContains(t, err, ReasonCooldown, "cooldown starts before the delayed action")

	h.clk.Advance(3 * time.Second)
	_, _, triggers = h.fx.Fake(effects.Flash).Counts()
	assert.Equal(t, 1, triggers)
	msg, ok = h.rec.Last(EventAction)
	require.True(t, ok)
	assert.True(t, msg.Payload.(ActionEvent).Announced)
}

func TestStop_DropsPendingAnnouncement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.only(t, ActionFlash)
	h.set(t, map[settings.Field]any{"autonomy.announce_chance": 100})
	h.start(t)

	_, err := h.s.Trigger(ctx, "")
	require.NoError(t, err)
	require.NoError(t, h.s.Stop(ctx))
	h.clk.Advance(10 * time.Second)

	_, _, triggers := h.fx.Fake(effects.Flash).Counts()
	assert.Zero(t, triggers)
	assert.Zero(t, h.rec.Count(EventAction))
}

func TestFullScreenAction_QueuesBehindInteraction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.only(t, ActionLockCard)
	h.set(t, map[settings.Field]any{"autonomy.announce_chance": 100})
	h.start(t)

	_, err := h.s.Trigger(ctx, "")
	require.NoError(t, err)
	h.do(t, func() { require.True(t, h.arb.TryStart(effects.MandatoryVideo, nil, false)) })

	h.clk.Advance(3 * time.Second)
	var pending []effects.Kind
	h.do(t, func() { pending = h.arb.Pending() })
	assert.Equal(t, []effects.Kind{effects.LockCard}, pending)
	_, _, triggers := h.fx.Fake(effects.LockCard).Counts()
	assert.Zero(t, triggers)

	var cur effects.Kind
	h.do(t, func() {
		h.arb.Complete(effects.MandatoryVideo)
		cur, _ = h.arb.Current()
	})
	assert.Equal(t, effects.LockCard, cur)
	_, _, triggers = h.fx.Fake(effects.LockCard).Counts()
	assert.Equal(t, 1, triggers)
}

func TestFullScreenAction_SameKindWaitsForSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.only(t, ActionLockCard)
	h.set(t, map[settings.Field]any{
		"autonomy.announce_chance":  100,
		"autonomy.cooldown_seconds": 0,
	})
	h.start(t)

	_, err := h.s.Trigger(ctx, "")
	require.NoError(t, err)
	h.clk.Advance(time.Second)
	_, err = h.s.Trigger(ctx, "")
	require.NoError(t, err)
	h.clk.Advance(5 * time.Second)

	var pending []effects.Kind
	h.do(t, func() { pending = h.arb.Pending() })
	_, _, triggers := h.fx.Fake(effects.LockCard).Counts()
	assert.Equal(t, 1, triggers, "second lock card must not share the slot")
	assert.Equal(t, []effects.Kind{effects.LockCard}, pending)

	h.do(t, func() { h.arb.Complete(effects.LockCard) })
	_, _, triggers = h.fx.Fake(effects.LockCard).Counts()
	assert.Equal(t, 2, triggers)
	var cur effects.Kind
	h.do(t, func() { cur, _ = h.arb.Current() })
	assert.Equal(t, effects.LockCard, cur)
}

func TestQueuedInteraction_DroppedAfterGlobalStop(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.do(t, func() {
		h.arb.TryStart(effects.MandatoryVideo, nil, false)
		h.s.claim(effects.BubbleCount, false)
	})
	require.NoError(t, h.s.Stop(context.Background()))

	var free bool
	h.do(t, func() {
		h.arb.Complete(effects.MandatoryVideo)
		free = h.arb.CanStart()
	})
	assert.True(t, free, "stale resume does not claim the slot")
	_, _, triggers := h.fx.Fake(effects.BubbleCount).Counts()
	assert.Zero(t, triggers)
}

func TestRandomTimer_Reschedules(t *testing.T) {
	h := newHarness(t)
	h.only(t, ActionFlash, ActionBubbles, ActionSubliminal)
	h.set(t, map[settings.Field]any{
		"autonomy.random_interval_minutes": 10,
		"autonomy.idle_minutes":            240,
		"autonomy.cooldown_seconds":        0,
	})
	h.start(t)

	h.clk.Advance(2 * time.Hour)
	assert.GreaterOrEqual(t, h.rec.Count(EventAction), 8, "interval is below 15m")
	assert.Equal(t, 2, h.clk.Pending(), "random timer re-armed, idle still pending")

	for _, m := range h.rec.Messages() {
		if m.Type == EventAction {
			assert.Equal(t, TriggerRandom, m.Payload.(ActionEvent).Trigger)
		}
	}
}

func TestIdleTimer_ResetByActivity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.only(t, ActionFlash)
	h.set(t, map[settings.Field]any{
		"autonomy.random_interval_minutes": 240,
		"autonomy.idle_minutes":            5,
	})
	h.start(t)

	h.clk.Advance(4 * time.Minute)
	require.NoError(t, h.s.ReportUserActivity(ctx))
	h.clk.Advance(4 * time.Minute)
	assert.Zero(t, h.rec.Count(EventAction))

	h.clk.Advance(time.Minute + time.Second)
	require.Equal(t, 1, h.rec.Count(EventAction))
	msg, _ := h.rec.Last(EventAction)
	assert.Equal(t, TriggerIdle, msg.Payload.(ActionEvent).Trigger)

	h.clk.Advance(20 * time.Minute)
	assert.Equal(t, 1, h.rec.Count(EventAction), "idle fires once per quiet period")
}

func TestApplyConfig_ChangesPulseOpacity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.PulseOpacity = 90
	require.NoError(t, h.s.ApplyConfig(ctx, cfg))

	_, err := h.s.Pulse(ctx, effects.PinkFilter)
	require.NoError(t, err)
	assert.Equal(t, 90.0, h.number(t, "pink_filter.opacity"))

	st, err := h.s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, MoodGentle, st.Mood)
	assert.Equal(t, []effects.Kind{effects.PinkFilter}, st.ActivePulses)
	assert.Equal(t, uint64(1), st.Generations[effects.PinkFilter])

	ended, err := h.s.EndPulse(ctx, effects.PinkFilter)
	require.NoError(t, err)
	assert.True(t, ended)
	assert.Equal(t, 10.0, h.number(t, "pink_filter.opacity"))
	ended, err = h.s.EndPulse(ctx, effects.PinkFilter)
	require.NoError(t, err)
	assert.False(t, ended)
}
