package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "starboard-bot/errors"
	"starboard-bot/models"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// LoadConfig 从多个源加载配置：.env 文件、config.yaml、以及 ./config/ 目录下的 JSON 文件。
// 配置加载顺序:
// 1. .env 文件 (用于环境变量)
// 2. config.yaml (基础配置)
// 3. config/starboard.json (合并到主配置)
// 环境变量会覆盖配置文件中的同名设置。
func LoadConfig() {
	// 1. 从 .env 文件加载环境变量，如果文件不存在则忽略。
	if err := godotenv.Load(); err != nil {
		log.Printf("未找到 .env 文件，将跳过加载。")
	}

	SetDefaults(viper.GetViper())

	// 2. 设置并读取基础配置文件 (config.yaml)。
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("未找到基础配置文件 (config.yaml)，将仅使用环境变量和后续合并的配置。")
		} else {
			panic(fmt.Errorf("解析基础配置文件时发生致命错误: %w", err))
		}
	}

	// 3. 合并精选配置文件 (config/starboard.json)。
	viper.SetConfigName("starboard")
	viper.SetConfigType("json")
	viper.AddConfigPath("./config")

	if err := viper.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("未找到精选配置文件 (config/starboard.json)，将跳过合并。")
		} else {
			panic(fmt.Errorf("合并精选配置文件时发生致命错误: %w", err))
		}
	}
}

// SetDefaults 写入所有可选键的默认值。
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bot.logLevel", "info")
	v.SetDefault("bot.logFormat", "text")

	v.SetDefault("starboard.active", true)
	v.SetDefault("starboard.star_emoji", "⭐")
	v.SetDefault("starboard.threshold", 5)
	v.SetDefault("starboard.review_timeout", "10s")
	v.SetDefault("starboard.cache_ttl", "6h")
	v.SetDefault("starboard.prune_schedule", "@every 30m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/starboard.db")

	v.SetDefault("guard.backend", "memory")
	v.SetDefault("guard.ttl", "30s")

	v.SetDefault("status.addr", "127.0.0.1:9090")
	v.SetDefault("grpc.health_addr", "127.0.0.1:9091")
}

// 时长写成 "10s"，列表可以写成逗号分隔的环境变量。
func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// Starboard 读取并校验 `starboard` 配置段。
func Starboard() (models.StarboardConfig, error) {
	return starboardFrom(viper.GetViper())
}

// Database 读取并校验 `database` 配置段。
func Database() (models.DatabaseConfig, error) {
	return databaseFrom(viper.GetViper())
}

// Guard 读取并校验 `guard` 配置段。
func Guard() (models.GuardConfig, error) {
	return guardFrom(viper.GetViper())
}

// Status 读取本地状态服务的配置。
func Status() models.StatusConfig {
	return models.StatusConfig{Addr: viper.GetString("status.addr")}
}

// GRPC 读取 gRPC 健康检查端点的配置。
func GRPC() models.GRPCConfig {
	return models.GRPCConfig{HealthAddr: viper.GetString("grpc.health_addr")}
}

// sections 只用于解码。UnmarshalKey 在配置文件里已有同名段时会丢掉默认值，
// Unmarshal 会合并所有来源。
type sections struct {
	Starboard models.StarboardConfig `mapstructure:"starboard"`
	Database  models.DatabaseConfig  `mapstructure:"database"`
	Guard     models.GuardConfig     `mapstructure:"guard"`
}

func decode(v *viper.Viper) (sections, error) {
	var s sections
	if err := v.Unmarshal(&s, decodeHook()); err != nil {
		return s, apperrors.Wrap(err, apperrors.ErrCodeInvalidConfig, "failed to decode config")
	}
	return s, nil
}

func starboardFrom(v *viper.Viper) (models.StarboardConfig, error) {
	s, err := decode(v)
	if err != nil {
		return models.StarboardConfig{}, err
	}
	cfg := s.Starboard

	// 未启用时只需要默认值能被解析
	if cfg.Active {
		switch {
		case cfg.GuildID == "":
			return cfg, apperrors.NewConfigError("starboard.guild_id", "guild_id is required")
		case cfg.QueueChannel == "":
			return cfg, apperrors.NewConfigError("starboard.queue_channel", "queue_channel is required")
		case cfg.PostChannel == "":
			return cfg, apperrors.NewConfigError("starboard.post_channel", "post_channel is required")
		case cfg.QueueChannel == cfg.PostChannel:
			return cfg, apperrors.NewConfigError("starboard.post_channel", "post_channel must differ from queue_channel")
		}
	}
	if cfg.StarEmoji == "" {
		return cfg, apperrors.NewConfigError("starboard.star_emoji", "star_emoji must not be empty")
	}
	if cfg.Threshold < 1 {
		return cfg, apperrors.NewConfigError("starboard.threshold", fmt.Sprintf("threshold must be at least 1, got %d", cfg.Threshold))
	}
	if cfg.ReviewTimeout <= 0 {
		return cfg, apperrors.NewConfigError("starboard.review_timeout", "review_timeout must be positive")
	}
	if cfg.CacheTTL < time.Minute {
		return cfg, apperrors.NewConfigError("starboard.cache_ttl", "cache_ttl must be at least 1m")
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		return cfg, apperrors.NewConfigError("starboard.prune_schedule", fmt.Sprintf("invalid prune_schedule: %v", err))
	}
	return cfg, nil
}

func databaseFrom(v *viper.Viper) (models.DatabaseConfig, error) {
	s, err := decode(v)
	if err != nil {
		return models.DatabaseConfig{}, err
	}
	cfg := s.Database
	switch cfg.Driver {
	case "sqlite":
		if cfg.Path == "" {
			return cfg, apperrors.NewConfigError("database.path", "path is required for sqlite")
		}
	case "postgres":
		if cfg.DSN == "" {
			return cfg, apperrors.NewConfigError("database.dsn", "dsn is required for postgres")
		}
	default:
		return cfg, apperrors.NewConfigError("database.driver", fmt.Sprintf("unknown driver %q", cfg.Driver))
	}
	return cfg, nil
}

func guardFrom(v *viper.Viper) (models.GuardConfig, error) {
	s, err := decode(v)
	if err != nil {
		return models.GuardConfig{}, err
	}
	cfg := s.Guard
	switch cfg.Backend {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return cfg, apperrors.NewConfigError("guard.redis_addr", "redis_addr is required for the redis guard")
		}
		if cfg.TTL <= 0 {
			return cfg, apperrors.NewConfigError("guard.ttl", "ttl must be positive")
		}
	default:
		return cfg, apperrors.NewConfigError("guard.backend", fmt.Sprintf("unknown guard backend %q", cfg.Backend))
	}
	return cfg, nil
}
