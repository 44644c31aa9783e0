// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ccp_effect_breaker_state",
		Help: "Effect circuit breaker state by effect kind (active state=1, others 0)",
	}, []string{"effect", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccp_effect_breaker_trips_total",
		Help: "Total number of effect circuit breaker trips (transitions to open state)",
	}, []string{"effect", "reason"})
)

var circuitStates = []string{"closed", "half-open", "open"}

// SetCircuitBreakerState records the active circuit breaker state for an effect.
func SetCircuitBreakerState(effect, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(effect, s).Set(value)
	}
}

// RecordCircuitBreakerTrip increments the trip counter when an effect breaker opens.
func RecordCircuitBreakerTrip(effect, reason string) {
	circuitBreakerTrips.WithLabelValues(effect, reason).Inc()
}
