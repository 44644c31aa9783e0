// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	effectCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccp_effect_calls_total",
		Help: "Effect capability calls by kind, operation and outcome",
	}, []string{"effect", "op", "outcome"}) // outcome=ok|error|panic|short_circuit|absent

	arbiterActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ccp_arbiter_active",
		Help: "Whether a full-screen interaction holds the slot (1) or not (0)",
	})

	arbiterQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ccp_arbiter_queue_depth",
		Help: "Number of interactions waiting for the slot",
	})

	arbiterMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ccp_arbiter_complete_mismatch_total",
		Help: "Complete calls ignored because the kind did not hold the slot",
	})
)

// ObserveEffectCall records one guarded capability call.
func ObserveEffectCall(effect, op, outcome string) {
	effectCallsTotal.WithLabelValues(effect, op, outcome).Inc()
}

// SetArbiterState mirrors the interaction slot into gauges.
func SetArbiterState(active bool, queued int) {
	if active {
		arbiterActive.Set(1)
	} else {
		arbiterActive.Set(0)
	}
	arbiterQueueDepth.Set(float64(queued))
}

// IncArbiterMismatch records an ignored stale completion.
func IncArbiterMismatch() {
	arbiterMismatches.Inc()
}
