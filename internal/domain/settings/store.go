// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog"

	"github.com/luuxx/ccp/internal/log"
)

// Saver accepts a copy of the record for asynchronous persistence.
// Submit must not block.
type Saver interface {
	Submit(Settings)
}

// Store owns the live record. It has no locking of its own: every call must
// happen on the scheduling loop.
type Store struct {
	cur    Settings
	saver  Saver
	logger zerolog.Logger
}

// NewStore creates a store holding a copy of initial. saver may be nil.
func NewStore(initial Settings, saver Saver) *Store {
	return &Store{
		cur:    initial.Clone(),
		saver:  saver,
		logger: log.WithComponent("settings"),
	}
}

// Get returns a deep copy of the record.
func (s *Store) Get() Settings {
	return s.cur.Clone()
}

// Value returns the canonical value of f.
func (s *Store) Value(f Field) (any, error) {
	def, ok := fields[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return def.get(&s.cur), nil
}

// Bool returns a bool field, false for unknown or non-bool fields.
func (s *Store) Bool(f Field) bool {
	v, err := s.Value(f)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Number returns a number field, 0 for unknown or non-number fields.
func (s *Store) Number(f Field) float64 {
	v, err := s.Value(f)
	if err != nil {
		return 0
	}
	n, _ := v.(float64)
	return n
}

// Set coerces v into f's kind and writes it.
func (s *Store) Set(f Field, v any) error {
	coerced, err := Coerce(f, v)
	if err != nil {
		return err
	}
	fields[f].set(&s.cur, coerced)
	return nil
}

// Apply sets several fields, stopping at the first error. Fields are applied
// in sorted order so a failure leaves a deterministic prefix applied.
func (s *Store) Apply(values map[Field]any) error {
	for _, f := range slices.Sorted(maps.Keys(values)) {
		if err := s.Set(f, values[f]); err != nil {
			return err
		}
	}
	return nil
}

// Update mutates the record in place.
func (s *Store) Update(fn func(*Settings)) {
	fn(&s.cur)
}

// Replace swaps in a copy of next.
func (s *Store) Replace(next Settings) {
	s.cur = next.Clone()
}

// Snapshot captures the current values of the named fields. Unknown fields
// are skipped.
func (s *Store) Snapshot(fs ...Field) Snapshot {
	snap := Snapshot{values: make(map[Field]any, len(fs))}
	for _, f := range fs {
		def, ok := fields[f]
		if !ok {
			s.logger.Warn().Str(log.FieldField, string(f)).Msg("snapshot skipped unknown field")
			continue
		}
		snap.values[f] = def.get(&s.cur)
	}
	return snap
}

// Restore writes back exactly the fields captured in snap.
func (s *Store) Restore(snap Snapshot) {
	for f, v := range snap.values {
		fields[f].set(&s.cur, cloneValue(v))
	}
}

// Save hands a copy of the record to the saver without waiting.
func (s *Store) Save() {
	if s.saver == nil {
		return
	}
	s.saver.Submit(s.cur.Clone())
}

// Snapshot is an immutable capture of selected field values.
type Snapshot struct {
	values map[Field]any
}

// Fields lists the captured fields, sorted.
func (s Snapshot) Fields() []Field {
	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of captured fields.
func (s Snapshot) Len() int { return len(s.values) }

// Value returns the captured value of f.
func (s Snapshot) Value(f Field) (any, bool) {
	v, ok := s.values[f]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Values returns a copy of every captured value.
func (s Snapshot) Values() map[Field]any {
	out := make(map[Field]any, len(s.values))
	for f, v := range s.values {
		out[f] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	if ss, ok := v.([]string); ok {
		return slices.Clone(ss)
	}
	return v
}
