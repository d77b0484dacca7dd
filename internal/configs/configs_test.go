package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, name := range []string{
		"ENVIRONMENT", "PORT", "ALLOWED_ORIGINS", "JWT_SECRET",
		"DATABASE_URL", "ADMIN_NICKNAME",
		"NIGHT_SECONDS", "DAY_SECONDS", "VOTING_SECONDS",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadConfigDevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.DatabaseDSN)
	assert.Equal(t, DefaultGameConfig(), cfg.Game)
}

func TestLoadConfigProductionRequiresSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "prod-secret")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://app@db/mafia")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "prod-secret", cfg.JWTSecret)
}

func TestLoadConfigParsesOriginsAndOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("ADMIN_NICKNAME", "Overseer")
	t.Setenv("NIGHT_SECONDS", "45")
	t.Setenv("VOTING_SECONDS", "20")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "Overseer", cfg.AdminNickname)
	assert.Equal(t, 45, cfg.Game.NightSeconds)
	assert.Equal(t, 60, cfg.Game.DaySeconds)
	assert.Equal(t, 20, cfg.Game.VotingSeconds)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	clearEnv(t)

	t.Setenv("PORT", "not-a-port")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "PORT")

	t.Setenv("PORT", "80")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "privileged")

	t.Setenv("PORT", "8080")
	t.Setenv("NIGHT_SECONDS", "-5")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "NIGHT_SECONDS")
}
