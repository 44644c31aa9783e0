// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strconv"

	"github.com/luuxx/ccp/internal/domain/autonomy"
	"github.com/luuxx/ccp/internal/domain/effects"
	"github.com/luuxx/ccp/internal/domain/session/engine"
	"github.com/luuxx/ccp/internal/log"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// InteractionStatus describes the full-screen slot.
type InteractionStatus struct {
	Active  effects.Kind   `json:"active,omitempty"`
	Pending []effects.Kind `json:"pending,omitempty"`
}

// ProgressStatus is the XP standing.
type ProgressStatus struct {
	XP      int  `json:"xp"`
	Level   int  `json:"level"`
	Premium bool `json:"premium"`
}

// StatusResponse is a consistent view of the whole core, read in one loop turn.
type StatusResponse struct {
	Version     string            `json:"version,omitempty"`
	Session     engine.Status     `json:"session"`
	Autonomy    autonomy.Status   `json:"autonomy"`
	Interaction InteractionStatus `json:"interaction"`
	Progress    *ProgressStatus   `json:"progress,omitempty"`
	Effects     []effects.Kind    `json:"effects"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Version: s.cfg.Version, Effects: s.d.Effects.Kinds()}
	err := s.d.Loop.Do(r.Context(), func() {
		resp.Session = s.d.Engine.StatusOnLoop()
		resp.Autonomy = s.d.Autonomy.StatusOnLoop()
		if kind, ok := s.d.Arbiter.Current(); ok {
			resp.Interaction.Active = kind
		}
		resp.Interaction.Pending = s.d.Arbiter.Pending()
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p := s.d.Progress; p != nil {
		resp.Progress = &ProgressStatus{XP: p.XP(), Level: p.Level(), Premium: p.HasPremiumAccess()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.d.History == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, r, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	runs, err := s.d.History.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request) {
	if s.d.Panic == nil {
		writeProblem(w, r, http.StatusNotImplemented, "PANIC_UNAVAILABLE", "panic stop is not wired")
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Warn().
		Str(log.FieldEvent, "panic.requested").
		Msg("panic stop requested")
	if err := s.d.Panic(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.d.Reload == nil {
		writeProblem(w, r, http.StatusNotImplemented, "RELOAD_UNAVAILABLE", "configuration reload is not available")
		return
	}
	if err := s.d.Reload(r.Context()); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "RELOAD_FAILED", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
