// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/luuxx/ccp/internal/domain/effects"
)

var (
	ErrUnknownField = errors.New("unknown settings field")
	ErrTypeMismatch = errors.New("settings value type mismatch")
)

// Field names one overridable value of the record, e.g. "spiral.opacity".
type Field string

// ValueKind is the dynamic type of a field's value.
type ValueKind int

const (
	KindBool ValueKind = iota + 1
	KindNumber
	KindStrings
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindStrings:
		return "strings"
	default:
		return "unknown"
	}
}

// Field values are bool, float64 or []string depending on the field's kind.
type fieldDef struct {
	kind ValueKind
	get  func(*Settings) any
	set  func(*Settings, any)
}

func boolField(p func(*Settings) *bool) fieldDef {
	return fieldDef{
		kind: KindBool,
		get:  func(s *Settings) any { return *p(s) },
		set:  func(s *Settings, v any) { *p(s) = v.(bool) },
	}
}

// intField stores numbers rounded to the nearest integer and clamped to [lo, hi].
func intField(p func(*Settings) *int, lo, hi int) fieldDef {
	return fieldDef{
		kind: KindNumber,
		get:  func(s *Settings) any { return float64(*p(s)) },
		set: func(s *Settings, v any) {
			n := int(math.Round(v.(float64)))
			*p(s) = min(max(n, lo), hi)
		},
	}
}

func floatField(p func(*Settings) *float64, lo, hi float64) fieldDef {
	return fieldDef{
		kind: KindNumber,
		get:  func(s *Settings) any { return *p(s) },
		set:  func(s *Settings, v any) { *p(s) = math.Min(math.Max(v.(float64), lo), hi) },
	}
}

func stringsField(p func(*Settings) *[]string) fieldDef {
	return fieldDef{
		kind: KindStrings,
		get:  func(s *Settings) any { return slices.Clone(*p(s)) },
		set:  func(s *Settings, v any) { *p(s) = slices.Clone(v.([]string)) },
	}
}

const (
	percentMax = 100
	countMax   = 10_000
)

var fields = map[Field]fieldDef{
	"audio.master_volume": intField(func(s *Settings) *int { return &s.Audio.MasterVolume }, 0, percentMax),

	"flash.enabled":   boolField(func(s *Settings) *bool { return &s.Flash.Enabled }),
	"flash.per_hour":  intField(func(s *Settings) *int { return &s.Flash.PerHour }, 0, countMax),
	"flash.opacity":   intField(func(s *Settings) *int { return &s.Flash.Opacity }, 0, percentMax),
	"flash.volume":    intField(func(s *Settings) *int { return &s.Flash.Volume }, 0, percentMax),
	"flash.clickable": boolField(func(s *Settings) *bool { return &s.Flash.Clickable }),

	"subliminal.enabled": boolField(func(s *Settings) *bool { return &s.Subliminal.Enabled }),
	"subliminal.per_min": intField(func(s *Settings) *int { return &s.Subliminal.PerMin }, 0, countMax),
	"subliminal.frames":  intField(func(s *Settings) *int { return &s.Subliminal.Frames }, 1, 60),
	"subliminal.opacity": intField(func(s *Settings) *int { return &s.Subliminal.Opacity }, 0, percentMax),
	"subliminal.phrases": stringsField(func(s *Settings) *[]string { return &s.Subliminal.Phrases }),

	"bubbles.enabled": boolField(func(s *Settings) *bool { return &s.Bubbles.Enabled }),
	"bubbles.per_min": intField(func(s *Settings) *int { return &s.Bubbles.PerMin }, 0, countMax),
	"bubbles.volume":  intField(func(s *Settings) *int { return &s.Bubbles.Volume }, 0, percentMax),

	"spiral.enabled": boolField(func(s *Settings) *bool { return &s.Spiral.Enabled }),
	"spiral.opacity": intField(func(s *Settings) *int { return &s.Spiral.Opacity }, 0, percentMax),
	"spiral.speed":   floatField(func(s *Settings) *float64 { return &s.Spiral.Speed }, 0, 10),

	"pink_filter.enabled": boolField(func(s *Settings) *bool { return &s.PinkFilter.Enabled }),
	"pink_filter.opacity": intField(func(s *Settings) *int { return &s.PinkFilter.Opacity }, 0, percentMax),

	"bouncing_text.enabled": boolField(func(s *Settings) *bool { return &s.BouncingText.Enabled }),
	"bouncing_text.speed":   intField(func(s *Settings) *int { return &s.BouncingText.Speed }, 1, 100),
	"bouncing_text.opacity": intField(func(s *Settings) *int { return &s.BouncingText.Opacity }, 0, percentMax),
	"bouncing_text.phrases": stringsField(func(s *Settings) *[]string { return &s.BouncingText.Phrases }),

	"mandatory_video.enabled":  boolField(func(s *Settings) *bool { return &s.MandatoryVideo.Enabled }),
	"mandatory_video.per_hour": intField(func(s *Settings) *int { return &s.MandatoryVideo.PerHour }, 0, countMax),
	"mandatory_video.volume":   intField(func(s *Settings) *int { return &s.MandatoryVideo.Volume }, 0, percentMax),
	"mandatory_video.strict":   boolField(func(s *Settings) *bool { return &s.MandatoryVideo.Strict }),

	"web_video.enabled": boolField(func(s *Settings) *bool { return &s.WebVideo.Enabled }),
	"web_video.volume":  intField(func(s *Settings) *int { return &s.WebVideo.Volume }, 0, percentMax),

	"lock_card.enabled":  boolField(func(s *Settings) *bool { return &s.LockCard.Enabled }),
	"lock_card.per_hour": intField(func(s *Settings) *int { return &s.LockCard.PerHour }, 0, countMax),
	"lock_card.repeats":  intField(func(s *Settings) *int { return &s.LockCard.Repeats }, 1, 100),
	"lock_card.strict":   boolField(func(s *Settings) *bool { return &s.LockCard.Strict }),
	"lock_card.phrases":  stringsField(func(s *Settings) *[]string { return &s.LockCard.Phrases }),

	"mind_wipe.enabled":  boolField(func(s *Settings) *bool { return &s.MindWipe.Enabled }),
	"mind_wipe.per_hour": intField(func(s *Settings) *int { return &s.MindWipe.PerHour }, 0, countMax),
	"mind_wipe.volume":   intField(func(s *Settings) *int { return &s.MindWipe.Volume }, 0, percentMax),

	"brain_drain.enabled":   boolField(func(s *Settings) *bool { return &s.BrainDrain.Enabled }),
	"brain_drain.intensity": intField(func(s *Settings) *int { return &s.BrainDrain.Intensity }, 1, 10),

	"bubble_count.enabled":    boolField(func(s *Settings) *bool { return &s.BubbleCount.Enabled }),
	"bubble_count.per_hour":   intField(func(s *Settings) *int { return &s.BubbleCount.PerHour }, 0, countMax),
	"bubble_count.difficulty": intField(func(s *Settings) *int { return &s.BubbleCount.Difficulty }, 1, 3),

	"autonomy.enabled":                 boolField(func(s *Settings) *bool { return &s.Autonomy.Enabled }),
	"autonomy.consent":                 boolField(func(s *Settings) *bool { return &s.Autonomy.Consent }),
	"autonomy.intensity":               intField(func(s *Settings) *int { return &s.Autonomy.Intensity }, 1, 10),
	"autonomy.idle_minutes":            intField(func(s *Settings) *int { return &s.Autonomy.IdleMinutes }, 1, 240),
	"autonomy.random_interval_minutes": intField(func(s *Settings) *int { return &s.Autonomy.RandomIntervalMinutes }, 1, 240),
	"autonomy.cooldown_seconds":        intField(func(s *Settings) *int { return &s.Autonomy.CooldownSeconds }, 0, 3600),
	"autonomy.announce_chance":         intField(func(s *Settings) *int { return &s.Autonomy.AnnounceChance }, 0, percentMax),

	"autonomy.actions.flash":           boolField(func(s *Settings) *bool { return &s.Autonomy.Actions.Flash }),
	"autonomy.actions.subliminal":      boolField(func(s *Settings) *bool { return &s.Autonomy.Actions.Subliminal }),
	"autonomy.actions.bubbles":         boolField(func(s *Settings) *bool { return &s.Autonomy.Actions.Bubbles }),
	"autonomy.actions.bouncing_text":   boolField(func(s *Settings) *bool { return &s.Autonomy.Actions.BouncingText }),
	"autonomy.actions.mind_wipe":       boolField(func(s *Settings) *bool { return &s.Autonomy.Actions.MindWipe }),
	"autonomy.actions.spiral_pulse":    boolField(func(s *Settings) *bool { return &s.Autonomy.Actions.SpiralPulse }),
	"autonomy.actions.pink_pulse":      boolField(func(s *Settings) *bool { return &s.Autonomy.Actions.PinkPulse }),
	"autonomy.actions.mandatory_video": boolField(func(s *Settings) *bool { return &s.Autonomy.Actions.MandatoryVideo }),
	"autonomy.actions.lock_card":       boolField(func(s *Settings) *bool { return &s.Autonomy.Actions.LockCard }),
	"autonomy.actions.bubble_count":    boolField(func(s *Settings) *bool { return &s.Autonomy.Actions.BubbleCount }),
}

// Fields returns every known field, sorted.
func Fields() []Field {
	out := make([]Field, 0, len(fields))
	for f := range fields {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Kind returns the value kind of f.
func (f Field) Kind() (ValueKind, error) {
	def, ok := fields[f]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return def.kind, nil
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	_, ok := fields[f]
	return ok
}

// EnableField returns the enable flag of an effect kind.
func EnableField(kind effects.Kind) Field {
	return Field(string(kind) + ".enabled")
}

// OpacityField returns the opacity field of an overlay kind.
func OpacityField(kind effects.Kind) Field {
	return Field(string(kind) + ".opacity")
}

// Coerce converts a loosely typed value (decoded YAML or JSON) into the
// canonical type of f: bool, float64 or []string.
func Coerce(f Field, v any) (any, error) {
	def, ok := fields[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	mismatch := func() error {
		return fmt.Errorf("%w: %s wants %s, got %T", ErrTypeMismatch, f, def.kind, v)
	}

	switch def.kind {
	case KindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, mismatch()
			}
			return parsed, nil
		}
	case KindNumber:
		var n float64
		switch x := v.(type) {
		case float64:
			n = x
		case float32:
			n = float64(x)
		case int:
			n = float64(x)
		case int64:
			n = float64(x)
		case int32:
			n = float64(x)
		case uint:
			n = float64(x)
		case uint64:
			n = float64(x)
		case json.Number:
			parsed, err := x.Float64()
			if err != nil {
				return nil, mismatch()
			}
			n = parsed
		default:
			return nil, mismatch()
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, mismatch()
		}
		return n, nil
	case KindStrings:
		switch x := v.(type) {
		case []string:
			return slices.Clone(x), nil
		case []any:
			out := make([]string, 0, len(x))
			for _, item := range x {
				s, ok := item.(string)
				if !ok {
					return nil, mismatch()
				}
				out = append(out, s)
			}
			return out, nil
		}
	}
	return nil, mismatch()
}
