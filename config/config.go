// config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	MailboxMemory = "memory"
	MailboxRedis  = "redis"
)

// AppConfig holds the complete configuration for the service
type AppConfig struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	ServiceName string            `mapstructure:"service_name"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Rating      RatingConfig      `mapstructure:"rating"`
	ProfileSync ProfileSyncConfig `mapstructure:"profile_sync"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	R2          R2Config          `mapstructure:"r2"`
}

type HTTPConfig struct {
	Addr           string `mapstructure:"addr"`
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

type GatewayConfig struct {
	Token string `mapstructure:"token"`
}

// AuthConfig points at the auth service used by the notification stream.
// An empty URL leaves the stream disabled.
type AuthConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MatchmakingConfig struct {
	Mode           string        `mapstructure:"mode"`
	MailboxBackend string        `mapstructure:"mailbox_backend"`
	QueueTTL       time.Duration `mapstructure:"queue_ttl"`
	MailboxTTL     time.Duration `mapstructure:"mailbox_ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

type RatingConfig struct {
	Default   int `mapstructure:"default"`
	WinDelta  int `mapstructure:"win_delta"`
	LossDelta int `mapstructure:"loss_delta"`
	DrawDelta int `mapstructure:"draw_delta"`
}

// ProfileSyncConfig points at the profile service that owns user accounts.
// An empty URL disables the sync worker.
type ProfileSyncConfig struct {
	URL      string        `mapstructure:"url"`
	Path     string        `mapstructure:"path"`
	Token    string        `mapstructure:"token"`
	Interval time.Duration `mapstructure:"interval"`
}

type ArchiveConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type R2Config struct {
	AccountID       string `mapstructure:"account_id"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	Bucket          string `mapstructure:"bucket"`
}

// Load reads .env (if present), then defaults, environment variables and an
// optional config file.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("service_name", "chess-matchmaking")
	v.SetDefault("http.addr", ":3000")
	v.SetDefault("http.allowed_origins", "http://localhost:3000")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("redis.db", 0)
	v.SetDefault("matchmaking.mode", "p2p_random")
	v.SetDefault("matchmaking.mailbox_backend", MailboxMemory)
	v.SetDefault("matchmaking.queue_ttl", 10*time.Minute)
	v.SetDefault("matchmaking.mailbox_ttl", 10*time.Minute)
	v.SetDefault("matchmaking.sweep_interval", 30*time.Second)
	v.SetDefault("rating.default", 1200)
	v.SetDefault("rating.win_delta", 10)
	v.SetDefault("rating.loss_delta", -10)
	v.SetDefault("rating.draw_delta", 0)
	v.SetDefault("profile_sync.path", "/api/v1/public/profiles")
	v.SetDefault("profile_sync.interval", time.Minute)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.interval", time.Minute)
	v.SetDefault("archive.batch_size", 50)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	// Unmarshal only sees env vars for keys viper already knows about.
	v.BindEnv("gateway.token", "GAME_SERVICE_TOKEN", "GATEWAY_TOKEN")
	v.BindEnv("auth.url", "AUTH_SERVICE_URL")
	v.BindEnv("auth.token", "AUTH_SERVICE_TOKEN")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("http.addr", "HTTP_ADDR")
	v.BindEnv("http.allowed_origins", "ALLOWED_ORIGINS")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("profile_sync.url", "SYNC_SERVICE_URL", "PROFILE_SYNC_URL")
	v.BindEnv("profile_sync.token", "PROFILE_SYNC_TOKEN")
	v.BindEnv("r2.account_id", "CLOUDFLARE_ACCOUNT_ID")
	v.BindEnv("r2.endpoint", "R2_ENDPOINT")
	v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	v.BindEnv("r2.access_key_secret", "R2_ACCESS_KEY_SECRET")
	v.BindEnv("r2.bucket", "R2_BUCKET_NAME")

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is usable
func (c *AppConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service_name is required")
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Environment == "production" && c.Gateway.Token == "" {
		return errors.New("gateway.token is required in production")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return errors.New("database.driver must be postgres or memory")
	}

	switch c.Matchmaking.MailboxBackend {
	case MailboxMemory:
	case MailboxRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis mailbox")
		}
	default:
		return errors.New("matchmaking.mailbox_backend must be memory or redis")
	}

	if c.Matchmaking.QueueTTL < 0 || c.Matchmaking.MailboxTTL < 0 {
		return errors.New("matchmaking ttl values must not be negative")
	}
	if c.Matchmaking.SweepInterval <= 0 {
		return errors.New("matchmaking.sweep_interval must be positive")
	}
	if c.Rating.WinDelta < 0 || c.Rating.LossDelta > 0 {
		return errors.New("rating.win_delta must be >= 0 and rating.loss_delta <= 0")
	}

	if c.Archive.Enabled {
		if c.R2.Bucket == "" {
			return errors.New("r2.bucket is required when archive is enabled")
		}
		if c.R2.AccountID == "" && c.R2.Endpoint == "" {
			return errors.New("r2.account_id or r2.endpoint is required when archive is enabled")
		}
		if c.Archive.BatchSize <= 0 {
			return errors.New("archive.batch_size must be positive")
		}
	}
	return nil
}

// Origins splits the comma-separated allowed origins and trims each entry.
func (c HTTPConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
