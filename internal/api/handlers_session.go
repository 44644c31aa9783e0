// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/luuxx/ccp/internal/log"
)

// SessionSummary is the catalog listing entry.
type SessionSummary struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Duration    time.Duration `json:"duration"`
	MinLevel    int           `json:"minLevel"`
	Unlocked    bool          `json:"unlocked"`
	Phases      []string      `json:"phases,omitempty"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	list := s.d.Catalog.List()
	out := make([]SessionSummary, 0, len(list))
	for _, sess := range list {
		sum := SessionSummary{
			ID:          sess.ID,
			Name:        sess.Name,
			Description: sess.Description,
			Duration:    sess.Duration,
			MinLevel:    sess.MinLevel,
			Unlocked:    s.d.Progress == nil || s.d.Progress.Level() >= sess.MinLevel,
		}
		for _, p := range sess.Phases {
			sum.Phases = append(sum.Phases, p.Name)
		}
		out = append(out, sum)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.d.Catalog.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	info, err := s.d.Engine.Start(r.Context(), sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := log.ContextWithRunID(r.Context(), info.RunID)
	logger := log.WithComponentFromContext(ctx, "api")
	logger.Info().
		Str(log.FieldEvent, "api.session_started").
		Str(log.FieldSession, sess.ID).
		Msg("session started via api")
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Engine.Pause(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Engine.Resume(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStop ends the run; ?completed=true rewards it as if it ran out.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	completed := false
	if v := r.URL.Query().Get("completed"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, r, "completed must be a boolean")
			return
		}
		completed = parsed
	}
	if err := s.d.Engine.Stop(r.Context(), completed); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
