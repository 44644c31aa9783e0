// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID     = "run_id"
	FieldSession   = "session"
	FieldRequestID = "request_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldTrigger   = "trigger"

	// Effect fields
	FieldEffect      = "effect"
	FieldAction      = "action"
	FieldInteraction = "interaction"
	FieldField       = "field"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldPhase    = "phase"
	FieldMood     = "mood"

	// Generation fields
	FieldGeneration       = "generation"
	FieldGlobalGeneration = "global_generation"

	// Path fields
	FieldPath = "path"
)
