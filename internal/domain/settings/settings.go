// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package settings holds the effect configuration record shared by the
// session engine, the autonomy scheduler and the user.
package settings

import "slices"

// Settings is the effect configuration record.
type Settings struct {
	Audio          AudioSettings        `yaml:"audio" json:"audio"`
	Flash          FlashSettings        `yaml:"flash" json:"flash"`
	Subliminal     SubliminalSettings   `yaml:"subliminal" json:"subliminal"`
	Bubbles        BubbleSettings       `yaml:"bubbles" json:"bubbles"`
	Spiral         SpiralSettings       `yaml:"spiral" json:"spiral"`
	PinkFilter     OverlaySettings      `yaml:"pinkFilter" json:"pinkFilter"`
	BouncingText   BouncingTextSettings `yaml:"bouncingText" json:"bouncingText"`
	MandatoryVideo VideoSettings        `yaml:"mandatoryVideo" json:"mandatoryVideo"`
	WebVideo       WebVideoSettings     `yaml:"webVideo" json:"webVideo"`
	LockCard       LockCardSettings     `yaml:"lockCard" json:"lockCard"`
	MindWipe       MindWipeSettings     `yaml:"mindWipe" json:"mindWipe"`
	BrainDrain     BrainDrainSettings   `yaml:"brainDrain" json:"brainDrain"`
	BubbleCount    BubbleCountSettings  `yaml:"bubbleCount" json:"bubbleCount"`
	Autonomy       AutonomySettings     `yaml:"autonomy" json:"autonomy"`
}

type AudioSettings struct {
	MasterVolume int `yaml:"masterVolume" json:"masterVolume"`
}

type FlashSettings struct {
	Enabled   bool `yaml:"enabled" json:"enabled"`
	PerHour   int  `yaml:"perHour" json:"perHour"`
	Opacity   int  `yaml:"opacity" json:"opacity"`
	Volume    int  `yaml:"volume" json:"volume"`
	Clickable bool `yaml:"clickable" json:"clickable"`
}

type SubliminalSettings struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	PerMin  int      `yaml:"perMin" json:"perMin"`
	Frames  int      `yaml:"frames" json:"frames"`
	Opacity int      `yaml:"opacity" json:"opacity"`
	Phrases []string `yaml:"phrases" json:"phrases"`
}

type BubbleSettings struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	PerMin  int  `yaml:"perMin" json:"perMin"`
	Volume  int  `yaml:"volume" json:"volume"`
}

type SpiralSettings struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Opacity int     `yaml:"opacity" json:"opacity"`
	Speed   float64 `yaml:"speed" json:"speed"`
}

type OverlaySettings struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Opacity int  `yaml:"opacity" json:"opacity"`
}

type BouncingTextSettings struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Speed   int      `yaml:"speed" json:"speed"`
	Opacity int      `yaml:"opacity" json:"opacity"`
	Phrases []string `yaml:"phrases" json:"phrases"`
}

type VideoSettings struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	PerHour int  `yaml:"perHour" json:"perHour"`
	Volume  int  `yaml:"volume" json:"volume"`
	Strict  bool `yaml:"strict" json:"strict"`
}

type WebVideoSettings struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Volume  int  `yaml:"volume" json:"volume"`
}

type LockCardSettings struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	PerHour int      `yaml:"perHour" json:"perHour"`
	Repeats int      `yaml:"repeats" json:"repeats"`
	Strict  bool     `yaml:"strict" json:"strict"`
	Phrases []string `yaml:"phrases" json:"phrases"`
}

type MindWipeSettings struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	PerHour int  `yaml:"perHour" json:"perHour"`
	Volume  int  `yaml:"volume" json:"volume"`
}

type BrainDrainSettings struct {
	Enabled   bool `yaml:"enabled" json:"enabled"`
	Intensity int  `yaml:"intensity" json:"intensity"`
}

type BubbleCountSettings struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	PerHour    int  `yaml:"perHour" json:"perHour"`
	Difficulty int  `yaml:"difficulty" json:"difficulty"`
}

// AutonomySettings is the user-facing part of the autonomy scheduler.
type AutonomySettings struct {
	Enabled               bool            `yaml:"enabled" json:"enabled"`
	Consent               bool            `yaml:"consent" json:"consent"`
	Intensity             int             `yaml:"intensity" json:"intensity"`
	IdleMinutes           int             `yaml:"idleMinutes" json:"idleMinutes"`
	RandomIntervalMinutes int             `yaml:"randomIntervalMinutes" json:"randomIntervalMinutes"`
	CooldownSeconds       int             `yaml:"cooldownSeconds" json:"cooldownSeconds"`
	AnnounceChance        int             `yaml:"announceChance" json:"announceChance"`
	Actions               AutonomyActions `yaml:"actions" json:"actions"`
}

// AutonomyActions toggles each action the scheduler may pick.
type AutonomyActions struct {
	Flash          bool `yaml:"flash" json:"flash"`
	Subliminal     bool `yaml:"subliminal" json:"subliminal"`
	Bubbles        bool `yaml:"bubbles" json:"bubbles"`
	BouncingText   bool `yaml:"bouncingText" json:"bouncingText"`
	MindWipe       bool `yaml:"mindWipe" json:"mindWipe"`
	SpiralPulse    bool `yaml:"spiralPulse" json:"spiralPulse"`
	PinkPulse      bool `yaml:"pinkPulse" json:"pinkPulse"`
	MandatoryVideo bool `yaml:"mandatoryVideo" json:"mandatoryVideo"`
	LockCard       bool `yaml:"lockCard" json:"lockCard"`
	BubbleCount    bool `yaml:"bubbleCount" json:"bubbleCount"`
}

// Default returns the configuration used when nothing has been saved yet.
func Default() Settings {
	return Settings{
		Audio:          AudioSettings{MasterVolume: 100},
		Flash:          FlashSettings{Enabled: true, PerHour: 10, Opacity: 60, Volume: 50, Clickable: true},
		Subliminal:     SubliminalSettings{PerMin: 5, Frames: 2, Opacity: 80},
		Bubbles:        BubbleSettings{PerMin: 5, Volume: 50},
		Spiral:         SpiralSettings{Opacity: 15, Speed: 1},
		PinkFilter:     OverlaySettings{Opacity: 10},
		BouncingText:   BouncingTextSettings{Speed: 5, Opacity: 80},
		MandatoryVideo: VideoSettings{PerHour: 1, Volume: 60},
		WebVideo:       WebVideoSettings{Volume: 60},
		LockCard:       LockCardSettings{PerHour: 1, Repeats: 3},
		MindWipe:       MindWipeSettings{PerHour: 2, Volume: 50},
		BrainDrain:     BrainDrainSettings{Intensity: 5},
		BubbleCount:    BubbleCountSettings{PerHour: 1, Difficulty: 2},
		Autonomy: AutonomySettings{
			Intensity:             5,
			IdleMinutes:           5,
			RandomIntervalMinutes: 15,
			CooldownSeconds:       60,
			AnnounceChance:        30,
			Actions: AutonomyActions{
				Flash:        true,
				Subliminal:   true,
				Bubbles:      true,
				BouncingText: true,
				SpiralPulse:  true,
				PinkPulse:    true,
			},
		},
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	out.Subliminal.Phrases = slices.Clone(s.Subliminal.Phrases)
	out.BouncingText.Phrases = slices.Clone(s.BouncingText.Phrases)
	out.LockCard.Phrases = slices.Clone(s.LockCard.Phrases)
	return out
}
