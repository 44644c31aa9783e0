// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	body   string
}

func fakeDaemon(t *testing.T, status int, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(body)})
		if reply == "" {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--addr", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands_RouteToAPI(t *testing.T) {
	tests := []struct {
		args   []string
		method string
		path   string
		query  string
	}{
		{args: []string{"status"}, method: http.MethodGet, path: "/api/v1/status"},
		{args: []string{"start", "morning-drift"}, method: http.MethodPost, path: "/api/v1/sessions/morning-drift/start"},
		{args: []string{"pause"}, method: http.MethodPost, path: "/api/v1/session/pause"},
		{args: []string{"resume"}, method: http.MethodPost, path: "/api/v1/session/resume"},
		{args: []string{"stop", "--completed"}, method: http.MethodPost, path: "/api/v1/session/stop", query: "completed=true"},
		{args: []string{"panic"}, method: http.MethodPost, path: "/api/v1/panic"},
		{args: []string{"autonomy", "stop"}, method: http.MethodPost, path: "/api/v1/autonomy/stop"},
		{args: []string{"autonomy", "activity"}, method: http.MethodPost, path: "/api/v1/autonomy/activity"},
		{args: []string{"autonomy", "pulse", "spiral"}, method: http.MethodPost, path: "/api/v1/autonomy/pulse/spiral"},
		{args: []string{"autonomy", "pulse", "spiral", "--end"}, method: http.MethodDelete, path: "/api/v1/autonomy/pulse/spiral"},
		{args: []string{"history", "--limit", "5"}, method: http.MethodGet, path: "/api/v1/history", query: "limit=5"},
		{args: []string{"complete", "lock_card"}, method: http.MethodPost, path: "/api/v1/interactions/lock_card/complete"},
		{args: []string{"reload"}, method: http.MethodPost, path: "/api/v1/config/reload"},
	}
	for _, tt := range tests {
		t.Run(tt.path+" "+tt.method, func(t *testing.T) {
			srv, calls := fakeDaemon(t, http.StatusOK, `{}`)
			_, err := run(t, srv, tt.args...)
			require.NoError(t, err)
			require.Len(t, *calls, 1)
			got := (*calls)[0]
			assert.Equal(t, tt.method, got.method)
			assert.Equal(t, tt.path, got.path)
			assert.Equal(t, tt.query, got.query)
		})
	}
}

func TestSettingsSet_SendsTypedPatch(t *testing.T) {
	srv, calls := fakeDaemon(t, http.StatusOK, `{"spiral":{"opacity":40}}`)
	out, err := run(t, srv, "settings", "set", "spiral.opacity=40", "flash.enabled=false", "subliminal.text=hello there")
	require.NoError(t, err)
	assert.Contains(t, out, `"opacity": 40`)

	got := (*calls)[0]
	assert.Equal(t, http.MethodPatch, got.method)
	var patch map[string]any
	require.NoError(t, json.Unmarshal([]byte(got.body), &patch))
	assert.Equal(t, map[string]any{
		"spiral.opacity":  float64(40),
		"flash.enabled":   false,
		"subliminal.text": "hello there",
	}, patch)
}

func TestSettingsSet_RejectsMalformedAssignment(t *testing.T) {
	srv, calls := fakeDaemon(t, http.StatusOK, `{}`)
	_, err := run(t, srv, "settings", "set", "spiral.opacity")
	assert.ErrorContains(t, err, "field=value")
	assert.Empty(t, *calls)
}

func TestProblemResponsesBecomeErrors(t *testing.T) {
	srv, _ := fakeDaemon(t, http.StatusConflict, `{"status":409,"code":"SESSION_RUNNING","title":"Conflict","detail":"session already running"}`)
	_, err := run(t, srv, "start", "morning-drift")
	assert.EqualError(t, err, "SESSION_RUNNING: session already running")
}

func TestAutonomyStart_ReportsRefusal(t *testing.T) {
	srv, _ := fakeDaemon(t, http.StatusOK, `{"started":false}`)
	_, err := run(t, srv, "autonomy", "start")
	assert.ErrorContains(t, err, "autonomy not started")
}

func TestSessions_PrintsTable(t *testing.T) {
	srv, _ := fakeDaemon(t, http.StatusOK, `[{"id":"morning-drift","name":"Morning Drift","duration":1800000000000,"minLevel":1,"unlocked":true}]`)
	out, err := run(t, srv, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "morning-drift")
	assert.Contains(t, out, "30m0s")
}

func TestNewClient_NormalisesAddress(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8765", newClient("127.0.0.1:8765/", 0).base)
	assert.Equal(t, "https://ccp.local", newClient("https://ccp.local", 0).base)
}

func TestVersionFlag(t *testing.T) {
	srv, calls := fakeDaemon(t, http.StatusOK, `{}`)
	out, err := run(t, srv, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "commit:")
	assert.Empty(t, *calls)
}
