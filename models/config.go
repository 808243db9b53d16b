package models

import "time"

// CommandsConfig is the `commands` section of config.yaml.
type CommandsConfig struct {
	Auth AuthConfig `mapstructure:"auth"`
}

// AuthConfig lists the ids allowed to run privileged commands.
type AuthConfig struct {
	Developers  []string `mapstructure:"developers"`
	AdminsRoles []string `mapstructure:"adminsRoles"`
	Guest       []string `mapstructure:"guest"`
}

// StarboardConfig is the `starboard` section of the configuration.
type StarboardConfig struct {
	Active        bool          `mapstructure:"active"`
	GuildID       string        `mapstructure:"guild_id"`
	QueueChannel  string        `mapstructure:"queue_channel"`
	PostChannel   string        `mapstructure:"post_channel"`
	StarEmoji     string        `mapstructure:"star_emoji"`
	Threshold     int           `mapstructure:"threshold"`
	Reviewers     []string      `mapstructure:"reviewers"`
	ReviewTimeout time.Duration `mapstructure:"review_timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	PruneSchedule string        `mapstructure:"prune_schedule"`
}

// DatabaseConfig selects and locates the persistent store.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// GuardConfig selects the in-flight guard backend.
type GuardConfig struct {
	Backend   string        `mapstructure:"backend"` // memory or redis
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// StatusConfig is the local HTTP surface for metrics and inspection.
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// GRPCConfig is the gRPC health endpoint.
type GRPCConfig struct {
	HealthAddr string `mapstructure:"health_addr"`
}
