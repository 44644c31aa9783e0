// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/luuxx/ccp/internal/domain/settings"
	"github.com/luuxx/ccp/internal/log"
)

const maxSettingsBody = 64 << 10

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	var cur settings.Settings
	if err := s.d.Loop.Do(r.Context(), func() { cur = s.d.Settings.Get() }); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

// handlePatchSettings applies {"field": value, ...} atomically: when any
// field is rejected nothing changes.
func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBody))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		badRequest(w, r, "invalid JSON body")
		return
	}
	if len(body) == 0 {
		badRequest(w, r, "no fields given")
		return
	}
	values := make(map[settings.Field]any, len(body))
	fields := make([]settings.Field, 0, len(body))
	for k, v := range body {
		values[settings.Field(k)] = v
		fields = append(fields, settings.Field(k))
	}

	var (
		cur      settings.Settings
		applyErr error
	)
	err := s.d.Loop.Do(r.Context(), func() {
		before := s.d.Settings.Snapshot(fields...)
		if applyErr = s.d.Settings.Apply(values); applyErr != nil {
			s.d.Settings.Restore(before)
			return
		}
		s.d.Settings.Save()
		cur = s.d.Settings.Get()
	})
	if err == nil {
		err = applyErr
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "settings.patched").
		Int("fields", len(fields)).
		Msg("settings updated")
	writeJSON(w, http.StatusOK, cur)
}
