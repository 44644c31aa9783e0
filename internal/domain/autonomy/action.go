// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package autonomy

import (
	"fmt"

	"github.com/luuxx/ccp/internal/domain/effects"
	"github.com/luuxx/ccp/internal/domain/settings"
)

// Action is something the scheduler may do unattended.
type Action string

const (
	ActionFlash          Action = "flash"
	ActionSubliminal     Action = "subliminal"
	ActionBubbles        Action = "bubbles"
	ActionBouncingText   Action = "bouncing_text"
	ActionMindWipe       Action = "mind_wipe"
	ActionSpiralPulse    Action = "spiral_pulse"
	ActionPinkPulse      Action = "pink_pulse"
	ActionMandatoryVideo Action = "mandatory_video"
	ActionLockCard       Action = "lock_card"
	ActionBubbleCount    Action = "bubble_count"
)

var allActions = []Action{
	ActionFlash, ActionSubliminal, ActionBubbles, ActionBouncingText, ActionMindWipe,
	ActionSpiralPulse, ActionPinkPulse, ActionMandatoryVideo, ActionLockCard, ActionBubbleCount,
}

var actionEffects = map[Action]effects.Kind{
	ActionFlash:          effects.Flash,
	ActionSubliminal:     effects.Subliminal,
	ActionBubbles:        effects.Bubbles,
	ActionBouncingText:   effects.BouncingText,
	ActionMindWipe:       effects.MindWipe,
	ActionSpiralPulse:    effects.Spiral,
	ActionPinkPulse:      effects.PinkFilter,
	ActionMandatoryVideo: effects.MandatoryVideo,
	ActionLockCard:       effects.LockCard,
	ActionBubbleCount:    effects.BubbleCount,
}

// Actions returns every action in a stable order.
func Actions() []Action {
	return append([]Action(nil), allActions...)
}

// ParseAction validates s.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := actionEffects[a]; !ok {
		return "", fmt.Errorf("unknown autonomy action %q", s)
	}
	return a, nil
}

// Effect is the effect kind the action drives.
func (a Action) Effect() effects.Kind { return actionEffects[a] }

// Toggle is the settings field enabling the action.
func (a Action) Toggle() settings.Field {
	return settings.Field("autonomy.actions." + string(a))
}

// Pulse reports whether the action is a temporary overlay boost.
func (a Action) Pulse() bool {
	return a == ActionSpiralPulse || a == ActionPinkPulse
}

// Disruptive actions are scaled by the intensity setting.
func (a Action) Disruptive() bool {
	switch a {
	case ActionMindWipe, ActionMandatoryVideo, ActionLockCard, ActionBubbleCount:
		return true
	}
	return false
}

// DefaultBaseWeights are the relative selection weights before mood and
// intensity.
func DefaultBaseWeights() map[Action]float64 {
	return map[Action]float64{
		ActionFlash:          10,
		ActionSubliminal:     8,
		ActionBubbles:        8,
		ActionBouncingText:   6,
		ActionMindWipe:       3,
		ActionSpiralPulse:    5,
		ActionPinkPulse:      5,
		ActionMandatoryVideo: 2,
		ActionLockCard:       2,
		ActionBubbleCount:    2,
	}
}

// DefaultActionLevels are the minimum levels per action. Unlisted actions
// are always available.
func DefaultActionLevels() map[Action]int {
	return map[Action]int{
		ActionSpiralPulse:    2,
		ActionPinkPulse:      2,
		ActionBouncingText:   3,
		ActionBubbleCount:    5,
		ActionLockCard:       8,
		ActionMandatoryVideo: 10,
		ActionMindWipe:       12,
	}
}

var announcements = map[Action][]string{
	ActionFlash:          {"Look at this.", "Eyes up.", "Something for you."},
	ActionSubliminal:     {"Don't mind the whispers.", "Just a thought."},
	ActionBubbles:        {"Bubbles incoming.", "Pop them all."},
	ActionBouncingText:   {"Follow the words.", "Read along."},
	ActionMindWipe:       {"Let it all go.", "Clearing your head."},
	ActionSpiralPulse:    {"Watch it turn.", "Deeper for a moment."},
	ActionPinkPulse:      {"Everything turns pink.", "A little tint."},
	ActionMandatoryVideo: {"Time for a video.", "Stop and watch."},
	ActionLockCard:       {"Type it out.", "A little exercise."},
	ActionBubbleCount:    {"Count with me.", "How many can you see?"},
}

// Phrases returns the announcement phrases for a.
func Phrases(a Action) []string {
	return append([]string(nil), announcements[a]...)
}
