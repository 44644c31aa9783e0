// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the daemon.
const (
	// Session attributes
	SessionNameKey      = "session.name"
	SessionRunIDKey     = "session.run_id"
	SessionCompletedKey = "session.completed"
	SessionPausesKey    = "session.pauses"
	SessionXPKey        = "session.xp"

	// Autonomy attributes
	AutonomyActionKey    = "autonomy.action"
	AutonomyTriggerKey   = "autonomy.trigger"
	AutonomyAnnouncedKey = "autonomy.announced"
	AutonomyMoodKey      = "autonomy.mood"

	// Effect attributes
	EffectKindKey = "effect.kind"
	EffectOpKey   = "effect.op"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes creates session span attributes. An empty run id is
// omitted (the id is only known once the run started).
func SessionAttributes(name, runID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if name != "" {
		attrs = append(attrs, attribute.String(SessionNameKey, name))
	}
	if runID != "" {
		attrs = append(attrs, attribute.String(SessionRunIDKey, runID))
	}
	return attrs
}

// SessionEndAttributes describes how a run ended.
func SessionEndAttributes(completed bool, pauses, xp int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(SessionCompletedKey, completed),
		attribute.Int(SessionPausesKey, pauses),
		attribute.Int(SessionXPKey, xp),
	}
}

// AutonomyAttributes creates autonomy action span attributes.
func AutonomyAttributes(action, trigger, mood string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AutonomyActionKey, action),
		attribute.String(AutonomyTriggerKey, trigger),
	}
	if mood != "" {
		attrs = append(attrs, attribute.String(AutonomyMoodKey, mood))
	}
	return attrs
}

// EffectAttributes creates attributes for a capability call.
func EffectAttributes(kind, op string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(EffectKindKey, kind),
		attribute.String(EffectOpKey, op),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
