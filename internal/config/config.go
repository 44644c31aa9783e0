// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for the ccp daemon.
// Precedence is ENV > file > defaults.
package config

import (
	"path/filepath"
	"time"
)

// AppConfig is the daemon configuration.
type AppConfig struct {
	Version    string          `yaml:"-" json:"version"`
	DataDir    string          `yaml:"dataDir" env:"DATA_DIR" json:"dataDir"`
	LogLevel   string          `yaml:"logLevel" env:"LOG_LEVEL" json:"logLevel"`
	LogService string          `yaml:"logService" env:"LOG_SERVICE" json:"logService"`
	API        APIConfig       `yaml:"api" envPrefix:"API_" json:"api"`
	Session    SessionConfig   `yaml:"session" envPrefix:"SESSION_" json:"session"`
	Autonomy   AutonomyConfig  `yaml:"autonomy" envPrefix:"AUTONOMY_" json:"autonomy"`
	Effects    EffectsConfig   `yaml:"effects" envPrefix:"EFFECTS_" json:"effects"`
	Progress   ProgressConfig  `yaml:"progress" envPrefix:"PROGRESS_" json:"progress"`
	Settings   SettingsConfig  `yaml:"settings" envPrefix:"SETTINGS_" json:"settings"`
	Telemetry  TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_" json:"telemetry"`
}

type APIConfig struct {
	ListenAddr      string          `yaml:"listenAddr" env:"LISTEN_ADDR" json:"listenAddr"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT" json:"shutdownTimeout"`
	AllowedOrigins  []string        `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS" json:"allowedOrigins,omitempty"`
	RateLimit       RateLimitConfig `yaml:"rateLimit" envPrefix:"RATE_LIMIT_" json:"rateLimit"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests" env:"REQUESTS" json:"requests"`
	Window   time.Duration `yaml:"window" env:"WINDOW" json:"window"`
}

type SessionConfig struct {
	TickInterval   time.Duration `yaml:"tickInterval" env:"TICK_INTERVAL" json:"tickInterval"`
	Jitter         time.Duration `yaml:"jitter" env:"JITTER" json:"jitter"`
	PausePenaltyXP int           `yaml:"pausePenaltyXP" env:"PAUSE_PENALTY_XP" json:"pausePenaltyXP"`
	BurstTail      time.Duration `yaml:"burstTail" env:"BURST_TAIL" json:"burstTail"`
	BurstMinLength time.Duration `yaml:"burstMinLength" env:"BURST_MIN_LENGTH" json:"burstMinLength"`
	BurstMaxLength time.Duration `yaml:"burstMaxLength" env:"BURST_MAX_LENGTH" json:"burstMaxLength"`
	SessionsDir    string        `yaml:"sessionsDir" env:"DIR" json:"sessionsDir"`
}

type AutonomyConfig struct {
	MinLevel          int                `yaml:"minLevel" env:"MIN_LEVEL" json:"minLevel"`
	AnnounceDelay     time.Duration      `yaml:"announceDelay" env:"ANNOUNCE_DELAY" json:"announceDelay"`
	PulseDuration     time.Duration      `yaml:"pulseDuration" env:"PULSE_DURATION" json:"pulseDuration"`
	PulseOpacity      int                `yaml:"pulseOpacity" env:"PULSE_OPACITY" json:"pulseOpacity"`
	MaxActionsPerHour int                `yaml:"maxActionsPerHour" env:"MAX_ACTIONS_PER_HOUR" json:"maxActionsPerHour"`
	ActionLevels      map[string]int     `yaml:"actionLevels" json:"actionLevels,omitempty"`
	BaseWeights       map[string]float64 `yaml:"baseWeights" json:"baseWeights,omitempty"`
}

type EffectsConfig struct {
	BreakerThreshold int           `yaml:"breakerThreshold" env:"BREAKER_THRESHOLD" json:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset" env:"BREAKER_RESET" json:"breakerReset"`

	// Remote registers bus-bridged capabilities for every effect kind.
	Remote bool `yaml:"remote" env:"REMOTE" json:"remote"`
}

type ProgressConfig struct {
	DBPath     string `yaml:"dbPath" env:"DB_PATH" json:"dbPath"`
	Premium    bool   `yaml:"premium" env:"PREMIUM" json:"premium"`
	XPPerLevel int    `yaml:"xpPerLevel" env:"XP_PER_LEVEL" json:"xpPerLevel"`
}

type SettingsConfig struct {
	Path string `yaml:"path" env:"PATH" json:"path"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED" json:"enabled"`
	Exporter     string  `yaml:"exporter" env:"EXPORTER" json:"exporter"`
	Endpoint     string  `yaml:"endpoint" env:"ENDPOINT" json:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate" env:"SAMPLING_RATE" json:"samplingRate"`
	Environment  string  `yaml:"environment" env:"ENVIRONMENT" json:"environment"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:    "./data",
		LogLevel:   "info",
		LogService: "ccp",
		API: APIConfig{
			ListenAddr:      "127.0.0.1:8765",
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       RateLimitConfig{Requests: 120, Window: time.Minute},
		},
		Session: SessionConfig{
			TickInterval:   time.Second,
			Jitter:         3 * time.Minute,
			PausePenaltyXP: 25,
			BurstTail:      2 * time.Minute,
			BurstMinLength: time.Minute,
			BurstMaxLength: 2 * time.Minute,
		},
		Autonomy: AutonomyConfig{
			MinLevel:          5,
			AnnounceDelay:     3 * time.Second,
			PulseDuration:     30 * time.Second,
			PulseOpacity:      60,
			MaxActionsPerHour: 20,
		},
		Effects: EffectsConfig{
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Progress: ProgressConfig{XPPerLevel: 1000},
		Telemetry: TelemetryConfig{
			Exporter:     "http",
			Endpoint:     "localhost:4318",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

// resolvePaths fills data-dir relative defaults.
func (c *AppConfig) resolvePaths() {
	join := func(p *string, name string) {
		if *p == "" {
			*p = filepath.Join(c.DataDir, name)
		}
	}
	join(&c.Progress.DBPath, "progress.db")
	join(&c.Settings.Path, "settings.yaml")
	join(&c.Session.SessionsDir, "sessions")
}
