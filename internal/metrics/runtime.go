// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loopPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ccp_loop_panics_total",
		Help: "Total number of panics recovered on the scheduling loop",
	})

	loopTasksFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccp_loop_tasks_fired_total",
		Help: "Scheduled task firings by outcome",
	}, []string{"outcome"}) // outcome=run|stale|closed

	staleCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccp_stale_callbacks_total",
		Help: "Deferred continuations that found their generation or run superseded",
	}, []string{"component"})
)

// IncLoopPanic records a recovered panic on the scheduling loop.
func IncLoopPanic() {
	loopPanicsTotal.Inc()
}

// IncTaskFired records the outcome of a scheduled task firing.
func IncTaskFired(outcome string) {
	loopTasksFired.WithLabelValues(outcome).Inc()
}

// IncStaleCallback records a self-detected stale continuation.
func IncStaleCallback(component string) {
	staleCallbacksTotal.WithLabelValues(component).Inc()
}
