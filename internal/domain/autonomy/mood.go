// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package autonomy

import "time"

// Mood biases action selection by time of day.
type Mood string

const (
	MoodGentle      Mood = "gentle"
	MoodAttentive   Mood = "attentive"
	MoodPlayful     Mood = "playful"
	MoodMischievous Mood = "mischievous"
)

// MoodAt derives the mood from the hour of t in its own location:
// 06-11 gentle, 12-17 attentive, 18-22 playful, otherwise mischievous.
func MoodAt(t time.Time) Mood {
	switch h := t.Hour(); {
	case h >= 6 && h < 12:
		return MoodGentle
	case h >= 12 && h < 18:
		return MoodAttentive
	case h >= 18 && h < 23:
		return MoodPlayful
	default:
		return MoodMischievous
	}
}

var moodMultipliers = map[Mood]map[Action]float64{
	MoodGentle: {
		ActionFlash:          1.2,
		ActionSubliminal:     1.3,
		ActionBubbles:        1.4,
		ActionSpiralPulse:    1.2,
		ActionPinkPulse:      1.3,
		ActionMindWipe:       0.5,
		ActionMandatoryVideo: 0.5,
		ActionLockCard:       0.6,
		ActionBubbleCount:    0.8,
	},
	MoodAttentive: {
		ActionMandatoryVideo: 1.1,
		ActionLockCard:       1.3,
		ActionBubbleCount:    1.4,
	},
	MoodPlayful: {
		ActionFlash:        1.1,
		ActionBubbles:      1.3,
		ActionBouncingText: 1.4,
		ActionPinkPulse:    1.3,
		ActionBubbleCount:  1.2,
		ActionLockCard:     0.8,
	},
	MoodMischievous: {
		ActionSubliminal:     1.2,
		ActionSpiralPulse:    1.3,
		ActionMindWipe:       1.6,
		ActionMandatoryVideo: 1.5,
		ActionLockCard:       1.4,
		ActionBubbles:        0.7,
	},
}

// Multiplier is the mood's weight factor for a; 1 when the mood is neutral
// about it.
func (m Mood) Multiplier(a Action) float64 {
	if f, ok := moodMultipliers[m][a]; ok {
		return f
	}
	return 1
}
