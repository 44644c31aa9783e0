// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"time"

	"github.com/luuxx/ccp/internal/domain/effects"
)

// Event types published on the session topic. Each fires exactly once per
// transition.
const (
	EventStarted        = "session.started"
	EventPhaseChanged   = "session.phase_changed"
	EventProgress       = "session.progress"
	EventFeatureStarted = "session.feature_started"
	EventBurstStarted   = "session.burst_started"
	EventBurstEnded     = "session.burst_ended"
	EventPaused         = "session.paused"
	EventResumed        = "session.resumed"
	EventCompleted      = "session.completed"
	EventStopped        = "session.stopped"
)

type Started struct {
	RunID     string        `json:"runId"`
	Session   string        `json:"session"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"startedAt"`
}

type PhaseChanged struct {
	RunID string `json:"runId"`
	Phase string `json:"phase"`
	Index int    `json:"index"`
}

type Progress struct {
	RunID     string        `json:"runId"`
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"`
	Percent   float64       `json:"percent"`
}

type FeatureStarted struct {
	RunID  string       `json:"runId"`
	Effect effects.Kind `json:"effect"`
}

type Burst struct {
	RunID  string        `json:"runId"`
	Effect effects.Kind  `json:"effect"`
	Length time.Duration `json:"length,omitempty"`
}

type Paused struct {
	RunID   string        `json:"runId"`
	Elapsed time.Duration `json:"elapsed"`
	Pauses  int           `json:"pauses"`
}

// Completed is published when a run reaches its full duration (or is stopped
// as completed) and carries the awarded XP.
type Completed struct {
	RunID     string        `json:"runId"`
	Session   string        `json:"session"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
	Duration  time.Duration `json:"duration"`
	XP        int           `json:"xp"`
	Pauses    int           `json:"pauses"`
}

// Stopped is published when a run ends early.
type Stopped struct {
	RunID     string        `json:"runId"`
	Session   string        `json:"session"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
	Elapsed   time.Duration `json:"elapsed"`
	Pauses    int           `json:"pauses"`
}
