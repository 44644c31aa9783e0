// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	autonomyActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccp_autonomy_actions_total",
		Help: "Autonomous actions fired by action and trigger",
	}, []string{"action", "trigger"})

	autonomyGateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccp_autonomy_gate_rejections_total",
		Help: "Autonomy triggers rejected by the gate, by reason",
	}, []string{"reason"}) // reason=stopped|cooldown|interaction|blocking|budget|no_candidates

	autonomyAnnouncements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ccp_autonomy_announcements_total",
		Help: "Total number of announcements emitted before an action",
	})

	autonomyPulsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccp_autonomy_pulses_total",
		Help: "Pulse lifecycle outcomes by kind",
	}, []string{"kind", "outcome"}) // outcome=started|restored|superseded|ended|cancelled|skipped

	autonomyRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ccp_autonomy_running",
		Help: "Whether the autonomy scheduler is running (1) or not (0)",
	})
)

// IncAutonomyAction records a fired autonomous action.
func IncAutonomyAction(action, trigger string) {
	autonomyActionsTotal.WithLabelValues(action, trigger).Inc()
}

// IncGateRejection records a rejected trigger.
func IncGateRejection(reason string) {
	autonomyGateRejections.WithLabelValues(reason).Inc()
}

// IncAnnouncement records an announcement.
func IncAnnouncement() {
	autonomyAnnouncements.Inc()
}

// IncPulse records a pulse lifecycle outcome.
func IncPulse(kind, outcome string) {
	autonomyPulsesTotal.WithLabelValues(kind, outcome).Inc()
}

// SetAutonomyRunning flips the running gauge.
func SetAutonomyRunning(running bool) {
	if running {
		autonomyRunning.Set(1)
		return
	}
	autonomyRunning.Set(0)
}
