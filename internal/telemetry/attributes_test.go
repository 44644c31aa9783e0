// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSessionAttributes(t *testing.T) {
	tests := []struct {
		name    string
		session string
		runID   string
		want    []attribute.KeyValue
	}{
		{"both", "edging", "r1", []attribute.KeyValue{
			attribute.String(SessionNameKey, "edging"),
			attribute.String(SessionRunIDKey, "r1"),
		}},
		{"no run id", "edging", "", []attribute.KeyValue{attribute.String(SessionNameKey, "edging")}},
		{"empty", "", "", []attribute.KeyValue{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SessionAttributes(tt.session, tt.runID))
		})
	}
}

func TestSessionEndAttributes(t *testing.T) {
	attrs := SessionEndAttributes(true, 2, 50)
	assert.Equal(t, []attribute.KeyValue{
		attribute.Bool(SessionCompletedKey, true),
		attribute.Int(SessionPausesKey, 2),
		attribute.Int(SessionXPKey, 50),
	}, attrs)
}

func TestAutonomyAttributes(t *testing.T) {
	assert.Len(t, AutonomyAttributes("flash", "idle", ""), 2)
	attrs := AutonomyAttributes("flash", "random", "playful")
	assert.Contains(t, attrs, attribute.String(AutonomyMoodKey, "playful"))
}

func TestEffectAndErrorAttributes(t *testing.T) {
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(EffectKindKey, "spiral"),
		attribute.String(EffectOpKey, "start"),
	}, EffectAttributes("spiral", "start"))

	attrs := ErrorAttributes(errors.New("boom"), "capability")
	assert.Contains(t, attrs, attribute.Bool(ErrorKey, true))
	assert.Contains(t, attrs, attribute.String(ErrorTypeKey, "capability"))
}
