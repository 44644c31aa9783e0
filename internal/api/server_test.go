// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luuxx/ccp/internal/bus"
	"github.com/luuxx/ccp/internal/clock"
	"github.com/luuxx/ccp/internal/domain/arbiter"
	"github.com/luuxx/ccp/internal/domain/autonomy"
	"github.com/luuxx/ccp/internal/domain/effects"
	"github.com/luuxx/ccp/internal/domain/effects/effectstest"
	"github.com/luuxx/ccp/internal/domain/progress"
	"github.com/luuxx/ccp/internal/domain/session/engine"
	"github.com/luuxx/ccp/internal/domain/session/model"
	"github.com/luuxx/ccp/internal/domain/settings"
	"github.com/luuxx/ccp/internal/loop"
	"github.com/luuxx/ccp/internal/loop/looptest"
	"github.com/luuxx/ccp/internal/api/middleware"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeHistory struct {
	runs  []progress.Run
	limit int
}

func (h *fakeHistory) Recent(_ context.Context, n int) ([]progress.Run, error) {
	h.limit = n
	return h.runs[:min(n, len(h.runs))], nil
}

type harness struct {
	clk     *clock.Fake
	loop    *loop.Loop
	store   *settings.Store
	fx      *effectstest.Set
	arb     *arbiter.Arbiter
	events  *bus.MemoryBus
	history *fakeHistory
	panics  int
	handler http.Handler
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	clk := clock.NewFake(epoch)
	h := &harness{
		clk:     clk,
		loop:    looptest.Start(t, clk),
		store:   settings.NewStore(settings.Default(), nil),
		fx:      effectstest.NewSet(),
		events:  bus.NewMemoryBus(),
		history: &fakeHistory{runs: []progress.Run{{RunID: "a"}, {RunID: "b"}, {RunID: "c"}}},
	}
	t.Cleanup(h.events.Close)
	h.arb = arbiter.New(h.events, clk)

	eng := engine.New(engine.Deps{
		Loop:     h.loop,
		Settings: h.store,
		Effects:  h.fx.Registry,
		Arbiter:  h.arb,
		Bus:      h.events,
		Rand:     rand.New(rand.NewPCG(1, 2)),
		Config:   engine.Config{TickInterval: time.Second},
	})
	sched := autonomy.New(autonomy.Deps{
		Loop:       h.loop,
		Settings:   h.store,
		Effects:    h.fx.Registry,
		Arbiter:    h.arb,
		Foreground: eng,
		Bus:        h.events,
		Rand:       rand.New(rand.NewPCG(3, 4)),
		Config:     autonomy.DefaultConfig(),
	})
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })
	t.Cleanup(func() { _ = eng.Stop(context.Background(), false) })

	sess := &model.Session{
		ID:       "spiral",
		Name:     "Spiral",
		Duration: 10 * time.Minute,
		Phases:   []model.Phase{{Name: "warmup"}, {Name: "deep", Start: 5 * time.Minute}},
		Settings: model.Settings{
			Features: []model.Feature{{
				Effect: effects.Spiral,
				Ramps:  []model.Ramp{{Field: "spiral.opacity", From: 10, To: 80}},
			}},
		},
	}
	require.NoError(t, sess.Validate())

	srv := New(cfg, Deps{
		Loop:     h.loop,
		Engine:   eng,
		Autonomy: sched,
		Arbiter:  h.arb,
		Settings: h.store,
		Effects:  h.fx.Registry,
		Catalog:  model.NewCatalog(sess),
		History:  h.history,
		Events:   h.events,
		Panic: func(ctx context.Context) error {
			h.panics++
			return eng.Stop(ctx, false)
		},
	})
	h.handler = srv.Handler()
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t, Config{})

	rec := h.do(t, http.MethodGet, "/api/v1/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]SessionSummary](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "spiral", list[0].ID)
	assert.Equal(t, []string{"warmup", "deep"}, list[0].Phases)
	assert.True(t, list[0].Unlocked)

	rec = h.do(t, http.MethodPost, "/api/v1/sessions/spiral/start", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	info := decode[engine.RunInfo](t, rec)
	assert.NotEmpty(t, info.RunID)

	rec = h.do(t, http.MethodPost, "/api/v1/sessions/spiral/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SESSION_RUNNING", decode[Problem](t, rec).Code)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/api/v1/session/pause", "").Code)
	status := decode[StatusResponse](t, h.do(t, http.MethodGet, "/api/v1/status", ""))
	assert.Equal(t, engine.StatePaused, status.Session.State)
	assert.Equal(t, info.RunID, status.Session.RunID)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/api/v1/session/resume", "").Code)
	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/api/v1/session/stop?completed=false", "").Code)

	rec = h.do(t, http.MethodPost, "/api/v1/session/pause", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SESSION_NOT_RUNNING", decode[Problem](t, rec).Code)
}

func TestSessionErrors(t *testing.T) {
	h := newHarness(t, Config{})

	rec := h.do(t, http.MethodPost, "/api/v1/sessions/nope/start", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	p := decode[Problem](t, rec)
	assert.Equal(t, "SESSION_NOT_FOUND", p.Code)
	assert.Equal(t, "/api/v1/sessions/nope/start", p.Instance)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = h.do(t, http.MethodPost, "/api/v1/session/stop?completed=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/session/resume", "")
	assert.Equal(t, "SESSION_NOT_PAUSED", decode[Problem](t, rec).Code)
}

func TestSettings_PatchIsAtomic(t *testing.T) {
	h := newHarness(t, Config{})

	rec := h.do(t, http.MethodPatch, "/api/v1/settings", `{"spiral.opacity": 42, "flash.enabled": false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[settings.Settings](t, rec)
	assert.Equal(t, 42, got.Spiral.Opacity)
	assert.False(t, got.Flash.Enabled)

	rec = h.do(t, http.MethodPatch, "/api/v1/settings", `{"spiral.opacity": 70, "spiral.nonsense": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_FIELD", decode[Problem](t, rec).Code)

	rec = h.do(t, http.MethodPatch, "/api/v1/settings", `{"flash.enabled": "loud", "spiral.opacity": 71}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TYPE_MISMATCH", decode[Problem](t, rec).Code)

	cur := decode[settings.Settings](t, h.do(t, http.MethodGet, "/api/v1/settings", ""))
	assert.Equal(t, 42, cur.Spiral.Opacity, "rejected patches leave nothing applied")

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPatch, "/api/v1/settings", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPatch, "/api/v1/settings", `[1]`).Code)
}

func TestAutonomyEndpoints(t *testing.T) {
	h := newHarness(t, Config{})

	rec := h.do(t, http.MethodPost, "/api/v1/autonomy/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"started": false}, decode[map[string]bool](t, rec), "disabled by default")

	rec = h.do(t, http.MethodPost, "/api/v1/autonomy/trigger", `{"reason":"context"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	p := decode[Problem](t, rec)
	assert.Equal(t, "AUTONOMY_REJECTED", p.Code)
	assert.Contains(t, p.Detail, autonomy.ReasonNotRunning)

	rec = h.do(t, http.MethodPost, "/api/v1/autonomy/pulse/spiral", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["started"])

	rec = h.do(t, http.MethodDelete, "/api/v1/autonomy/pulse/spiral", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]bool](t, rec)["ended"])

	rec = h.do(t, http.MethodPost, "/api/v1/autonomy/pulse/flash", "")
	assert.Equal(t, "NOT_PULSABLE", decode[Problem](t, rec).Code)

	rec = h.do(t, http.MethodPost, "/api/v1/autonomy/pulse/lasers", "")
	assert.Equal(t, "UNKNOWN_EFFECT", decode[Problem](t, rec).Code)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/api/v1/autonomy/activity", "").Code)
	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/api/v1/autonomy/stop", "").Code)
}

func TestCompleteInteraction_ReleasesSlot(t *testing.T) {
	h := newHarness(t, Config{})
	looptest.Do(t, h.loop, func() {
		require.True(t, h.arb.TryStart(effects.MindWipe, nil, false))
	})

	// mismatched completion is ignored
	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/api/v1/interactions/lock_card/complete", "").Code)
	status := decode[StatusResponse](t, h.do(t, http.MethodGet, "/api/v1/status", ""))
	assert.Equal(t, effects.MindWipe, status.Interaction.Active)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/api/v1/interactions/mind_wipe/complete", "").Code)
	status = decode[StatusResponse](t, h.do(t, http.MethodGet, "/api/v1/status", ""))
	assert.Empty(t, status.Interaction.Active)
}

func TestHistory_Limit(t *testing.T) {
	h := newHarness(t, Config{})

	runs := decode[[]progress.Run](t, h.do(t, http.MethodGet, "/api/v1/history?limit=2", ""))
	assert.Len(t, runs, 2)
	assert.Equal(t, 2, h.history.limit)

	h.do(t, http.MethodGet, "/api/v1/history?limit=100000", "")
	assert.Equal(t, maxHistoryLimit, h.history.limit)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/v1/history?limit=-1", "").Code)
}

func TestPanic(t *testing.T) {
	h := newHarness(t, Config{})
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/v1/sessions/spiral/start", "").Code)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodPost, "/api/v1/panic", "").Code)
	assert.Equal(t, 1, h.panics)
	status := decode[StatusResponse](t, h.do(t, http.MethodGet, "/api/v1/status", ""))
	assert.Equal(t, engine.StateIdle, status.Session.State)
}

func TestReload_NotWired(t *testing.T) {
	h := newHarness(t, Config{})
	assert.Equal(t, http.StatusNotImplemented, h.do(t, http.MethodPost, "/api/v1/config/reload", "").Code)
}

func TestMiddleware_RequestIDAndRateLimit(t *testing.T) {
	h := newHarness(t, Config{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(middleware.HeaderRequestID))

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/status", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, h.do(t, http.MethodGet, "/api/v1/status", "").Code)

	// probes are not rate limited
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/metrics", "").Code)
}

func TestEvents_StreamsBusMessages(t *testing.T) {
	h := newHarness(t, Config{})
	srv := httptest.NewServer(h.handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events?topic=" + bus.TopicSession
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = resp.Body.Close()

	msgs := make(chan bus.Message, 256)
	go func() {
		defer close(msgs)
		for {
			var msg bus.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case msgs <- msg:
			default:
			}
		}
	}()

	// the subscription is registered after the upgrade; retry until seen
	require.Eventually(t, func() bool {
		_ = h.events.Publish(context.Background(), bus.TopicSession, bus.Message{Type: "stream.ready"})
		for {
			select {
			case msg := <-msgs:
				if msg.Type == "stream.ready" {
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 20*time.Millisecond)

	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/v1/sessions/spiral/start", "").Code)
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-msgs:
			require.True(t, ok, "event stream closed early")
			if msg.Type != model.EventStarted {
				continue
			}
			assert.Equal(t, bus.TopicSession, msg.Topic)
			return
		case <-timeout:
			t.Fatal("no session.started event on the stream")
		}
	}
}
