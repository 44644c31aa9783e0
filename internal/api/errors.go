// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/luuxx/ccp/internal/domain/autonomy"
	"github.com/luuxx/ccp/internal/domain/effects"
	"github.com/luuxx/ccp/internal/domain/session/engine"
	"github.com/luuxx/ccp/internal/domain/session/model"
	"github.com/luuxx/ccp/internal/domain/settings"
	"github.com/luuxx/ccp/internal/log"
	"github.com/luuxx/ccp/internal/loop"
)

// Problem is the RFC 7807 style error body.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// first match wins
var errorTable = []errorMapping{
	{model.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
	{model.ErrInvalidSession, http.StatusUnprocessableEntity, "INVALID_SESSION"},
	{engine.ErrAlreadyRunning, http.StatusConflict, "SESSION_RUNNING"},
	{engine.ErrNotRunning, http.StatusConflict, "SESSION_NOT_RUNNING"},
	{engine.ErrNotPaused, http.StatusConflict, "SESSION_NOT_PAUSED"},
	{engine.ErrLevelLocked, http.StatusForbidden, "LEVEL_LOCKED"},
	{autonomy.ErrRejected, http.StatusConflict, "AUTONOMY_REJECTED"},
	{autonomy.ErrNotPulsable, http.StatusBadRequest, "NOT_PULSABLE"},
	{effects.ErrUnknownKind, http.StatusBadRequest, "UNKNOWN_EFFECT"},
	{settings.ErrUnknownField, http.StatusBadRequest, "UNKNOWN_FIELD"},
	{settings.ErrTypeMismatch, http.StatusBadRequest, "TYPE_MISMATCH"},
	{loop.ErrClosed, http.StatusServiceUnavailable, "SHUTTING_DOWN"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "TIMEOUT"},
	{context.Canceled, http.StatusServiceUnavailable, "CANCELED"},
}

func classify(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a problem response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "api.request_failed").
			Str(log.FieldPath, r.URL.Path).
			Msg("request failed")
	}
	writeProblem(w, r, status, code, err.Error())
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	p := Problem{
		Type:      "ccp/" + code,
		Title:     http.StatusText(status),
		Status:    status,
		Code:      code,
		Detail:    detail,
		Instance:  r.URL.EscapedPath(),
		RequestID: log.RequestIDFromContext(r.Context()),
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusBadRequest, "BAD_REQUEST", detail)
}
