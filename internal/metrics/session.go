// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccp_session_starts_total",
		Help: "Session start attempts by result",
	}, []string{"result"}) // result=started|already_running|level_locked|invalid

	sessionEndsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccp_session_ends_total",
		Help: "Finished session runs by outcome",
	}, []string{"outcome"}) // outcome=completed|stopped

	sessionPausesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ccp_session_pauses_total",
		Help: "Total number of session pauses",
	})

	sessionTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ccp_session_ticks_total",
		Help: "Total number of processed session ticks",
	})

	sessionPhaseChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ccp_session_phase_changes_total",
		Help: "Total number of session phase transitions",
	})

	sessionXPAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ccp_session_xp_awarded_total",
		Help: "Total XP awarded by completed sessions",
	})

	sessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ccp_session_active",
		Help: "Whether a session run is active (1) or idle (0)",
	})

	sessionFeatureErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccp_session_feature_errors_total",
		Help: "Per-feature failures isolated during a session tick",
	}, []string{"effect"})
)

// IncSessionStart records a session start attempt.
func IncSessionStart(result string) {
	sessionStartsTotal.WithLabelValues(result).Inc()
}

// IncSessionEnd records a finished run.
func IncSessionEnd(outcome string) {
	sessionEndsTotal.WithLabelValues(outcome).Inc()
}

// IncSessionPause records a pause.
func IncSessionPause() {
	sessionPausesTotal.Inc()
}

// IncSessionTick records a processed tick.
func IncSessionTick() {
	sessionTicksTotal.Inc()
}

// IncPhaseChange records a phase transition.
func IncPhaseChange() {
	sessionPhaseChanges.Inc()
}

// AddXPAwarded records awarded XP.
func AddXPAwarded(xp int) {
	if xp > 0 {
		sessionXPAwarded.Add(float64(xp))
	}
}

// SetSessionActive flips the active-run gauge.
func SetSessionActive(active bool) {
	if active {
		sessionActive.Set(1)
		return
	}
	sessionActive.Set(0)
}

// IncFeatureError records an isolated per-feature failure.
func IncFeatureError(effect string) {
	sessionFeatureErrors.WithLabelValues(effect).Inc()
}
