package config

import (
	"strings"
	"testing"
	"time"

	apperrors "starboard-bot/errors"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yaml == "" {
		return v
	}
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return v
}

const validStarboard = `
starboard:
  guild_id: "100"
  queue_channel: "200"
  post_channel: "300"
  reviewers: ["1", "2"]
`

func TestStarboard_DefaultsFillMissingKeys(t *testing.T) {
	cfg, err := starboardFrom(newViper(t, validStarboard))
	require.NoError(t, err)

	assert.True(t, cfg.Active)
	assert.Equal(t, "100", cfg.GuildID)
	assert.Equal(t, "⭐", cfg.StarEmoji)
	assert.Equal(t, 5, cfg.Threshold)
	assert.Equal(t, []string{"1", "2"}, cfg.Reviewers)
	assert.Equal(t, 10*time.Second, cfg.ReviewTimeout)
	assert.Equal(t, 6*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "@every 30m", cfg.PruneSchedule)
}

func TestStarboard_ExplicitValues(t *testing.T) {
	cfg, err := starboardFrom(newViper(t, validStarboard+`
  threshold: 3
  star_emoji: "🌟"
  review_timeout: 2s
  cache_ttl: 1h
  prune_schedule: "*/5 * * * *"
`))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Threshold)
	assert.Equal(t, "🌟", cfg.StarEmoji)
	assert.Equal(t, 2*time.Second, cfg.ReviewTimeout)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
}

func TestStarboard_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{"missing guild", "starboard:\n  queue_channel: \"2\"\n  post_channel: \"3\"\n", "starboard.guild_id"},
		{"missing queue", "starboard:\n  guild_id: \"1\"\n  post_channel: \"3\"\n", "starboard.queue_channel"},
		{"same channels", "starboard:\n  guild_id: \"1\"\n  queue_channel: \"2\"\n  post_channel: \"2\"\n", "starboard.post_channel"},
		{"zero threshold", validStarboard + "  threshold: 0\n", "starboard.threshold"},
		{"bad schedule", validStarboard + "  prune_schedule: \"whenever\"\n", "starboard.prune_schedule"},
		{"tiny ttl", validStarboard + "  cache_ttl: 1s\n", "starboard.cache_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := starboardFrom(newViper(t, tt.yaml))
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidConfig))

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.key, appErr.Context["config_key"])
		})
	}
}

func TestStarboard_InactiveSkipsChannelChecks(t *testing.T) {
	cfg, err := starboardFrom(newViper(t, "starboard:\n  active: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Active)
}

func TestDatabase(t *testing.T) {
	cfg, err := databaseFrom(newViper(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "./data/starboard.db", cfg.Path)

	_, err = databaseFrom(newViper(t, "database:\n  driver: postgres\n"))
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidConfig))

	cfg, err = databaseFrom(newViper(t, "database:\n  driver: postgres\n  dsn: postgres://localhost/starboard\n"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/starboard", cfg.DSN)

	_, err = databaseFrom(newViper(t, "database:\n  driver: mysql\n"))
	assert.Error(t, err)
}

func TestGuard(t *testing.T) {
	cfg, err := guardFrom(newViper(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, 30*time.Second, cfg.TTL)

	_, err = guardFrom(newViper(t, "guard:\n  backend: redis\n"))
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidConfig))

	cfg, err = guardFrom(newViper(t, "guard:\n  backend: redis\n  redis_addr: localhost:6379\n  ttl: 1m\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.TTL)
}
