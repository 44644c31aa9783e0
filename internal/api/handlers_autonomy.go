// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luuxx/ccp/internal/domain/autonomy"
	"github.com/luuxx/ccp/internal/domain/effects"
)

func (s *Server) handleAutonomyStart(w http.ResponseWriter, r *http.Request) {
	started, err := s.d.Autonomy.Start(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"started": started})
}

func (s *Server) handleAutonomyStop(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Autonomy.Stop(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Autonomy.ReportUserActivity(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type triggerRequest struct {
	Reason string `json:"reason"`
}

// handleTrigger runs one autonomy attempt. The body is optional.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, r, "invalid JSON body")
		return
	}
	action, err := s.d.Autonomy.Trigger(r.Context(), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]autonomy.Action{"action": action})
}

func (s *Server) handlePulse(w http.ResponseWriter, r *http.Request) {
	kind, err := effects.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	started, err := s.d.Autonomy.Pulse(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"started": started})
}

func (s *Server) handleEndPulse(w http.ResponseWriter, r *http.Request) {
	kind, err := effects.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ended, err := s.d.Autonomy.EndPulse(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ended": ended})
}

// handleCompleteInteraction is called by the renderer when a full-screen
// interaction finishes. A completion for a kind not holding the slot is a
// no-op.
func (s *Server) handleCompleteInteraction(w http.ResponseWriter, r *http.Request) {
	kind, err := effects.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = s.d.Loop.Do(r.Context(), func() {
		if remote, ok := s.d.Effects.Get(kind).(*effects.Remote); ok {
			remote.MarkStopped()
		}
		s.d.Arbiter.Complete(kind)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
