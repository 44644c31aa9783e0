// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/luuxx/ccp/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("dataDir", cfg.DataDir, false)
	v.OneOf("logLevel", cfg.LogLevel, validate.LogLevels())
	v.NotEmpty("logService", cfg.LogService)

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.DurationRange("api.shutdownTimeout", cfg.API.ShutdownTimeout, time.Second, 5*time.Minute)
	if cfg.API.RateLimit.Requests > 0 {
		v.PositiveDuration("api.rateLimit.window", cfg.API.RateLimit.Window)
	} else {
		v.NonNegative("api.rateLimit.requests", cfg.API.RateLimit.Requests)
	}

	s := cfg.Session
	v.DurationRange("session.tickInterval", s.TickInterval, 10*time.Millisecond, time.Minute)
	v.DurationRange("session.jitter", s.Jitter, 0, time.Hour)
	v.NonNegative("session.pausePenaltyXP", s.PausePenaltyXP)
	v.DurationRange("session.burstTail", s.BurstTail, 0, time.Hour)
	v.PositiveDuration("session.burstMinLength", s.BurstMinLength)
	if s.BurstMaxLength < s.BurstMinLength {
		v.AddError("session.burstMaxLength", "must not be shorter than burstMinLength", s.BurstMaxLength)
	}

	a := cfg.Autonomy
	v.Range("autonomy.minLevel", a.MinLevel, 0, 1000)
	v.DurationRange("autonomy.announceDelay", a.AnnounceDelay, 0, time.Minute)
	v.DurationRange("autonomy.pulseDuration", a.PulseDuration, time.Second, 10*time.Minute)
	v.Range("autonomy.pulseOpacity", a.PulseOpacity, 1, 100)
	v.NonNegative("autonomy.maxActionsPerHour", a.MaxActionsPerHour)
	for name, lvl := range a.ActionLevels {
		v.NonNegative("autonomy.actionLevels."+name, lvl)
	}
	for name, w := range a.BaseWeights {
		v.FloatRange("autonomy.baseWeights."+name, w, 0, 1000)
	}

	v.NonNegative("effects.breakerThreshold", cfg.Effects.BreakerThreshold)
	if cfg.Effects.BreakerThreshold > 0 {
		v.PositiveDuration("effects.breakerReset", cfg.Effects.BreakerReset)
	}

	v.NotEmpty("progress.dbPath", cfg.Progress.DBPath)
	v.Positive("progress.xpPerLevel", cfg.Progress.XPPerLevel)
	v.NotEmpty("settings.path", cfg.Settings.Path)

	if t := cfg.Telemetry; t.Enabled {
		v.OneOf("telemetry.exporter", t.Exporter, []string{"http", "grpc"})
		v.ListenAddr("telemetry.endpoint", t.Endpoint)
		v.FloatRange("telemetry.samplingRate", t.SamplingRate, 0, 1)
	}

	return v.Err()
}
