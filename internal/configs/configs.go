/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures server parameters by reading operating system environment variables,
including the running environment, port, CORS allowed origins, database connection,
and the pacing of game phases.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// GameConfig holds the tunable pacing and threshold policy for games.
// All durations are whole seconds because the phase clock ticks at
// 1-second resolution.
type GameConfig struct {
	// NightSeconds is the duration of the night phase.
	NightSeconds int

	// DaySeconds is the duration of the day (discussion) phase.
	DaySeconds int

	// VotingSeconds is the duration of the voting phase.
	VotingSeconds int

	// AutoStartFullSeconds is the countdown started when a waiting room
	// reaches its maximum player count.
	AutoStartFullSeconds int

	// AutoStartReadySeconds is the countdown started when a waiting room
	// first reaches its minimum player count.
	AutoStartReadySeconds int

	// ResetSeconds is how long a finished room keeps its revealed roles
	// before reopening for the next game.
	ResetSeconds int
}

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	JWTSecret      string

	// Database Settings
	DatabaseDSN string

	// AdminNickname names the account promoted to admin on login, if any.
	AdminNickname string

	// Game pacing policy
	Game GameConfig
}

// DefaultGameConfig returns the game pacing defaults used when no
// environment overrides are present.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		NightSeconds:          30,
		DaySeconds:            60,
		VotingSeconds:         30,
		AutoStartFullSeconds:  3,
		AutoStartReadySeconds: 16,
		ResetSeconds:          15,
	}
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type
// conversions and validation. It returns a pointer to the AppConfig struct and any
// error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr != "" {
		origins := strings.Split(originsStr, ",")
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{}
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if cfg.Environment == "development" {
		if jwtSecret == "" {
			jwtSecret = "your_default_insecure_secret_key_change_me"
		}
	} else {
		if jwtSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
	}
	cfg.JWTSecret = jwtSecret

	// --- Database Settings ---
	// An empty DSN in development selects the in-memory store.
	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")
	if cfg.DatabaseDSN == "" && cfg.Environment != "development" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required in %s environment", cfg.Environment)
	}

	cfg.AdminNickname = os.Getenv("ADMIN_NICKNAME")

	// --- Game pacing ---
	cfg.Game = DefaultGameConfig()
	if err := loadSeconds("NIGHT_SECONDS", &cfg.Game.NightSeconds); err != nil {
		return nil, err
	}
	if err := loadSeconds("DAY_SECONDS", &cfg.Game.DaySeconds); err != nil {
		return nil, err
	}
	if err := loadSeconds("VOTING_SECONDS", &cfg.Game.VotingSeconds); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadSeconds overrides dst with the named environment variable when set.
// The value must be a positive whole number of seconds.
func loadSeconds(name string, dst *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	if seconds <= 0 {
		return fmt.Errorf("%s must be a positive number of seconds, got %d", name, seconds)
	}

	*dst = seconds
	return nil
}
