// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model defines session definitions, their YAML catalog and the
// events a session run publishes.
package model

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/luuxx/ccp/internal/domain/effects"
	"github.com/luuxx/ccp/internal/domain/settings"
)

var ErrInvalidSession = errors.New("invalid session")

// Session is an immutable, pre-authored bundle of effect settings and a
// phase schedule.
type Session struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description,omitempty"`
	Duration    time.Duration `yaml:"duration" json:"duration"`
	Phases      []Phase       `yaml:"phases" json:"phases,omitempty"`
	Settings    `yaml:",inline" json:"settings"`
}

// Phase is a named section of a session beginning at Start.
type Phase struct {
	Name  string        `yaml:"name" json:"name"`
	Start time.Duration `yaml:"start" json:"start"`
}

// Settings is the per-session effect bundle.
type Settings struct {
	Features []Feature `yaml:"features" json:"features"`
	Bursts   *Bursts   `yaml:"bursts" json:"bursts,omitempty"`
	BonusXP  int       `yaml:"bonusXP" json:"bonusXP"`
	MinLevel int       `yaml:"minLevel" json:"minLevel"`
}

// Feature enables one effect for the session. A positive StartDelay defers
// activation (with jitter); Values are applied when the feature activates and
// Ramps interpolate number fields across the rest of the session.
type Feature struct {
	Effect     effects.Kind           `yaml:"effect" json:"effect"`
	StartDelay time.Duration          `yaml:"startDelay" json:"startDelay,omitempty"`
	Values     map[settings.Field]any `yaml:"values" json:"values,omitempty"`
	Ramps      []Ramp                 `yaml:"ramps" json:"ramps,omitempty"`
	MinLevel   int                    `yaml:"minLevel" json:"minLevel,omitempty"`
}

// Ramp moves a number field from From to To.
type Ramp struct {
	Field settings.Field `yaml:"field" json:"field"`
	From  float64        `yaml:"from" json:"from"`
	To    float64        `yaml:"to" json:"to"`
}

// Bursts configures intermittent activations of one effect.
type Bursts struct {
	Effect   effects.Kind  `yaml:"effect" json:"effect"`
	MinCount int           `yaml:"minCount" json:"minCount"`
	MaxCount int           `yaml:"maxCount" json:"maxCount"`
	MinGap   time.Duration `yaml:"minGap" json:"minGap"`
}

// Delayed reports whether the feature activates after the session starts.
func (f Feature) Delayed() bool { return f.StartDelay > 0 }

// TouchedFields lists every settings field a run of s may write, sorted.
func (s *Session) TouchedFields() []settings.Field {
	set := make(map[settings.Field]struct{})
	for _, f := range s.Features {
		set[settings.EnableField(f.Effect)] = struct{}{}
		for field := range f.Values {
			set[field] = struct{}{}
		}
		for _, r := range f.Ramps {
			set[r.Field] = struct{}{}
		}
	}
	if s.Bursts != nil {
		set[settings.EnableField(s.Bursts.Effect)] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Controls reports whether the session drives kind through a feature or bursts.
func (s *Session) Controls(kind effects.Kind) bool {
	for _, f := range s.Features {
		if f.Effect == kind {
			return true
		}
	}
	return s.Bursts != nil && s.Bursts.Effect == kind
}

// PhaseAt returns the index of the active phase at elapsed: the last phase,
// scanning from the end, whose Start is not after elapsed. -1 when none.
func (s *Session) PhaseAt(elapsed time.Duration) int {
	for i := len(s.Phases) - 1; i >= 0; i-- {
		if s.Phases[i].Start <= elapsed {
			return i
		}
	}
	return -1
}

// Validate checks the definition and normalises Values to canonical types.
func (s *Session) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidSession, s.Name, fmt.Sprintf(format, args...))
	}

	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSession)
	}
	if s.ID == "" {
		s.ID = SlugID(s.Name)
	}
	if !IsSafeSessionID(s.ID) {
		return invalid("id %q must match [a-zA-Z0-9_-]+", s.ID)
	}
	if s.Duration <= 0 {
		return invalid("duration must be positive")
	}
	if s.BonusXP < 0 {
		return invalid("bonusXP must not be negative")
	}
	for i, p := range s.Phases {
		if p.Start < 0 || p.Start >= s.Duration {
			return invalid("phase %q starts outside the session", p.Name)
		}
		if i > 0 && p.Start < s.Phases[i-1].Start {
			return invalid("phases must be ordered by start")
		}
	}

	seen := make(map[effects.Kind]bool)
	for i := range s.Features {
		f := &s.Features[i]
		if !f.Effect.Valid() {
			return invalid("feature %d: unknown effect %q", i, f.Effect)
		}
		if seen[f.Effect] {
			return invalid("feature %d: effect %q listed twice", i, f.Effect)
		}
		seen[f.Effect] = true
		if f.StartDelay < 0 || f.StartDelay >= s.Duration {
			return invalid("feature %q: startDelay outside the session", f.Effect)
		}
		for field, v := range f.Values {
			coerced, err := settings.Coerce(field, v)
			if err != nil {
				return invalid("feature %q: %v", f.Effect, err)
			}
			f.Values[field] = coerced
		}
		for _, r := range f.Ramps {
			kind, err := r.Field.Kind()
			if err != nil {
				return invalid("feature %q: %v", f.Effect, err)
			}
			if kind != settings.KindNumber {
				return invalid("feature %q: ramp on non-number field %s", f.Effect, r.Field)
			}
		}
	}

	if b := s.Bursts; b != nil {
		if !b.Effect.Valid() {
			return invalid("bursts: unknown effect %q", b.Effect)
		}
		if b.MinCount < 1 || b.MaxCount < b.MinCount {
			return invalid("bursts: need 1 <= minCount <= maxCount")
		}
		if b.MinGap < 0 {
			return invalid("bursts: minGap must not be negative")
		}
	}
	return nil
}
