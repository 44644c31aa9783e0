// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package progress tracks XP, levels and entitlements, and keeps the run
// history.
package progress

import "math"

const (
	// DefaultXPPerLevel is the XP needed to advance one level.
	DefaultXPPerLevel = 1000

	levelBonusStep = 0.02
	maxMultiplier  = 2.0
)

// Gate is consulted (never mutated) by the orchestration core before it
// starts level-gated features or autonomy.
type Gate interface {
	IsFeatureUnlocked(levelThreshold int) bool
	HasPremiumAccess() bool
	LevelMultiplier() float64
}

// Unrestricted unlocks everything and applies no multiplier.
type Unrestricted struct{}

func (Unrestricted) IsFeatureUnlocked(int) bool { return true }
func (Unrestricted) HasPremiumAccess() bool     { return true }
func (Unrestricted) LevelMultiplier() float64   { return 1 }

// LevelFor returns the level reached with xp.
func LevelFor(xp, xpPerLevel int) int {
	if xpPerLevel <= 0 {
		xpPerLevel = DefaultXPPerLevel
	}
	if xp < 0 {
		xp = 0
	}
	return 1 + xp/xpPerLevel
}

// MultiplierFor is the reward multiplier at level: +2% per level above 1,
// capped at 2x.
func MultiplierFor(level int) float64 {
	if level < 1 {
		level = 1
	}
	return math.Min(maxMultiplier, 1+levelBonusStep*float64(level-1))
}

// Reward computes the XP for a completed run:
// round(max(0, bonus - pauses*penalty) * multiplier).
func Reward(bonus, pauses, penaltyPerPause int, multiplier float64) int {
	base := max(0, bonus-pauses*penaltyPerPause)
	return int(math.Round(float64(base) * multiplier))
}

var _ Gate = Unrestricted{}
