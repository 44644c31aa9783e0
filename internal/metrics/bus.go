// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	busPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccp_bus_published_total",
		Help: "Total number of events published on the in-process bus by topic",
	}, []string{"topic"})

	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ccp_bus_dropped_total",
		Help: "Total number of in-process bus deliveries dropped by topic and reason",
	}, []string{"topic", "reason"})
)

// IncBusPublished records a published bus event for the given topic.
func IncBusPublished(topic string) {
	if topic == "" {
		topic = "unknown"
	}
	busPublishedTotal.WithLabelValues(topic).Inc()
}

// IncBusDrop records a dropped bus delivery for the given topic.
func IncBusDrop(topic string) {
	IncBusDropReason(topic, "full")
}

// IncBusDropReason records a dropped bus delivery with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}
