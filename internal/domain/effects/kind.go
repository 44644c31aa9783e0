// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package effects

import (
	"fmt"
	"slices"
)

// Kind identifies a concrete effect implementation.
type Kind string

const (
	Flash          Kind = "flash"
	Subliminal     Kind = "subliminal"
	Bubbles        Kind = "bubbles"
	Spiral         Kind = "spiral"
	PinkFilter     Kind = "pink_filter"
	BouncingText   Kind = "bouncing_text"
	MandatoryVideo Kind = "mandatory_video"
	WebVideo       Kind = "web_video"
	LockCard       Kind = "lock_card"
	MindWipe       Kind = "mind_wipe"
	BrainDrain     Kind = "brain_drain"
	BubbleCount    Kind = "bubble_count"
)

var allKinds = []Kind{
	Flash, Subliminal, Bubbles, Spiral, PinkFilter, BouncingText,
	MandatoryVideo, WebVideo, LockCard, MindWipe, BrainDrain, BubbleCount,
}

// All returns every known kind in declaration order.
func All() []Kind {
	return slices.Clone(allKinds)
}

func (k Kind) String() string { return string(k) }

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return slices.Contains(allKinds, k)
}

// FullScreen reports whether the effect demands the user's full attention and
// therefore must hold the interaction slot while it runs.
func (k Kind) FullScreen() bool {
	switch k {
	case MandatoryVideo, LockCard, BubbleCount, WebVideo:
		return true
	default:
		return false
	}
}

// ParseKind validates s as an effect kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}
