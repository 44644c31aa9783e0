// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luuxx/ccp/internal/domain/effects"
)

type recordingSaver struct{ got []Settings }

func (r *recordingSaver) Submit(s Settings) { r.got = append(r.got, s) }

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		in      any
		want    any
		wantErr error
	}{
		{name: "bool", field: "spiral.enabled", in: true, want: true},
		{name: "bool from string", field: "spiral.enabled", in: "false", want: false},
		{name: "int to number", field: "spiral.opacity", in: 40, want: 40.0},
		{name: "json number", field: "spiral.opacity", in: json.Number("12.5"), want: 12.5},
		{name: "yaml list", field: "subliminal.phrases", in: []any{"a", "b"}, want: []string{"a", "b"}},
		{name: "number for bool", field: "spiral.enabled", in: 1, wantErr: ErrTypeMismatch},
		{name: "mixed list", field: "subliminal.phrases", in: []any{"a", 3}, wantErr: ErrTypeMismatch},
		{name: "unknown", field: "spiral.colour", in: "pink", wantErr: ErrUnknownField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.field, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEveryEffectHasEnableField(t *testing.T) {
	for _, k := range effects.All() {
		assert.True(t, EnableField(k).Valid(), k)
	}
	assert.True(t, OpacityField(effects.Spiral).Valid())
	assert.True(t, OpacityField(effects.PinkFilter).Valid())
}

func TestStore_SetRoundsAndClamps(t *testing.T) {
	s := NewStore(Default(), nil)

	require.NoError(t, s.Set("spiral.opacity", 44.6))
	assert.Equal(t, 45.0, s.Number("spiral.opacity"))

	require.NoError(t, s.Set("spiral.opacity", 250))
	assert.Equal(t, 100.0, s.Number("spiral.opacity"))

	require.NoError(t, s.Set("autonomy.intensity", 0))
	assert.Equal(t, 1, s.Get().Autonomy.Intensity)
}

func TestStore_SnapshotRestoreExactFields(t *testing.T) {
	initial := Default()
	initial.Subliminal.Phrases = []string{"relax", "focus"}
	s := NewStore(initial, nil)

	snap := s.Snapshot("spiral.enabled", "spiral.opacity", "subliminal.phrases", "nope")
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, []Field{"spiral.enabled", "spiral.opacity", "subliminal.phrases"}, snap.Fields())

	require.NoError(t, s.Apply(map[Field]any{
		"spiral.enabled":     true,
		"spiral.opacity":     80,
		"subliminal.phrases": []string{"deeper"},
		"flash.opacity":      5, // not captured, must survive restore
	}))
	s.Restore(snap)

	want := initial.Clone()
	want.Flash.Opacity = 5
	if diff := cmp.Diff(want, s.Get()); diff != "" {
		t.Fatalf("restored settings mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SnapshotIsDeepCopy(t *testing.T) {
	initial := Default()
	initial.LockCard.Phrases = []string{"one"}
	s := NewStore(initial, nil)

	snap := s.Snapshot("lock_card.phrases")
	s.Update(func(cur *Settings) { cur.LockCard.Phrases[0] = "mutated" })

	v, ok := snap.Value("lock_card.phrases")
	require.True(t, ok)
	assert.Equal(t, []string{"one"}, v)
}

func TestStore_GetIsDeepCopy(t *testing.T) {
	initial := Default()
	initial.BouncingText.Phrases = []string{"a"}
	s := NewStore(initial, nil)

	got := s.Get()
	got.BouncingText.Phrases[0] = "b"
	assert.Equal(t, []string{"a"}, s.Get().BouncingText.Phrases)
}

func TestStore_SaveSubmitsCopy(t *testing.T) {
	saver := &recordingSaver{}
	s := NewStore(Default(), saver)

	s.Save()
	require.NoError(t, s.Set("pink_filter.opacity", 70))
	s.Save()

	require.Len(t, saver.got, 2)
	assert.Equal(t, 10, saver.got[0].PinkFilter.Opacity)
	assert.Equal(t, 70, saver.got[1].PinkFilter.Opacity)
}

func TestStore_ApplyStopsAtFirstError(t *testing.T) {
	s := NewStore(Default(), nil)
	err := s.Apply(map[Field]any{
		"bubbles.enabled": true,
		"spiral.enabled":  "maybe",
	})
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.True(t, s.Bool("bubbles.enabled"), "sorted prefix applied")
}
