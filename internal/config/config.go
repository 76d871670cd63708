// Package config loads application configuration from defaults, an optional YAML file
// and STOCKWATCH_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/bissquit/stockwatch/internal/stock"
)

// EnvPrefix prefixes every environment variable. A double underscore separates
// nesting levels: STOCKWATCH_INGEST__POLL__INTERVAL=10s sets ingest.poll.interval.
const EnvPrefix = "STOCKWATCH_"

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
	DriverMemory   = "memory"
)

// Cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Log           LogConfig           `koanf:"log"`
	CORS          CORSConfig          `koanf:"cors"`
	Storage       StorageConfig       `koanf:"storage"`
	Database      DatabaseConfig      `koanf:"database"`
	MongoDB       MongoDBConfig       `koanf:"mongodb"`
	Cache         CacheConfig         `koanf:"cache"`
	Ingest        IngestConfig        `koanf:"ingest"`
	Notifications NotificationsConfig `koanf:"notifications"`
	JWT           JWTConfig           `koanf:"jwt"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// StorageConfig selects the snapshot and subscription store.
type StorageConfig struct {
	Driver string `koanf:"driver"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
}

// MongoDBConfig contains MongoDB settings.
type MongoDBConfig struct {
	URI             string        `koanf:"uri"`
	Database        string        `koanf:"database"`
	MaxPoolSize     uint64        `koanf:"max_pool_size"`
	MinPoolSize     uint64        `koanf:"min_pool_size"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
}

// CacheConfig contains active snapshot cache settings.
type CacheConfig struct {
	Driver string        `koanf:"driver"`
	TTL    time.Duration `koanf:"ttl"`
	Redis  RedisConfig   `koanf:"redis"`
}

// RedisConfig contains Redis settings.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// IngestConfig contains stock source settings.
type IngestConfig struct {
	Poll       PollConfig        `koanf:"poll"`
	Discord    DiscordConfig     `koanf:"discord"`
	BonusItems []stock.BonusItem `koanf:"bonus_items"`
}

// PollConfig contains HTTP polling settings.
type PollConfig struct {
	Enabled  bool          `koanf:"enabled"`
	URL      string        `koanf:"url"`
	Interval time.Duration `koanf:"interval"`
	Timeout  time.Duration `koanf:"timeout"`
}

// DiscordConfig contains Discord gateway settings.
type DiscordConfig struct {
	Enabled      bool     `koanf:"enabled"`
	Token        string   `koanf:"token"`
	ChannelIDs   []string `koanf:"channel_ids"`
	AuthorMarker string   `koanf:"author_marker"`
	TitleMarker  string   `koanf:"title_marker"`
}

// NotificationsConfig contains delivery settings.
type NotificationsConfig struct {
	Enabled  bool           `koanf:"enabled"`
	Worker   WorkerConfig   `koanf:"worker"`
	Telegram TelegramConfig `koanf:"telegram"`
}

// WorkerConfig contains notification worker settings.
type WorkerConfig struct {
	Concurrency int           `koanf:"concurrency"`
	QueueSize   int           `koanf:"queue_size"`
	SendTimeout time.Duration `koanf:"send_timeout"`
}

// TelegramConfig contains Telegram bot settings.
type TelegramConfig struct {
	Enabled   bool          `koanf:"enabled"`
	BotToken  string        `koanf:"bot_token"`
	RateLimit float64       `koanf:"rate_limit"`
	Timeout   time.Duration `koanf:"timeout"`
}

// JWTConfig contains API token settings.
type JWTConfig struct {
	SecretKey string `koanf:"secret_key"`
	Issuer    string `koanf:"issuer"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{Driver: DriverPostgres},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
			MigrateOnStart:  true,
		},
		MongoDB: MongoDBConfig{
			Database:        "stockwatch",
			MaxPoolSize:     50,
			MinPoolSize:     10,
			MaxConnIdleTime: 30 * time.Second,
			ConnectTimeout:  10 * time.Second,
		},
		Cache: CacheConfig{
			Driver: CacheMemory,
			TTL:    30 * time.Second,
			Redis:  RedisConfig{KeyPrefix: "stockwatch:"},
		},
		Ingest: IngestConfig{
			Poll: PollConfig{
				Enabled:  true,
				URL:      "https://plantsvsbrainrots.com/api/latest-message",
				Interval: 5 * time.Second,
				Timeout:  10 * time.Second,
			},
			Discord: DiscordConfig{
				AuthorMarker: "PVB Stock Alerts",
				TitleMarker:  "Plants vs Brainrots Stock",
			},
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Worker: WorkerConfig{
				Concurrency: 5,
				QueueSize:   64,
				SendTimeout: 15 * time.Second,
			},
			Telegram: TelegramConfig{
				RateLimit: 25,
				Timeout:   10 * time.Second,
			},
		},
		JWT: JWTConfig{Issuer: "stockwatch-bot"},
	}
}

// Load reads .env (if present), the YAML file at path (if non-empty) and the environment,
// then validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// listKeys are the settings read from the environment as comma-separated lists.
var listKeys = map[string]struct{}{
	"cors.allowed_origins":       {},
	"ingest.discord.channel_ids": {},
}

// envValue maps an environment variable to its config key and splits list values.
func envValue(name, value string) (string, any) {
	key := envKey(name)
	if _, ok := listKeys[key]; ok {
		return key, splitList(value)
	}
	return key, value
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envKey maps STOCKWATCH_INGEST__POLL__URL to ingest.poll.url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres driver"))
		}
	case DriverMongoDB:
		if c.MongoDB.URI == "" {
			errs = append(errs, errors.New("mongodb.uri is required for the mongodb driver"))
		}
		if c.MongoDB.Database == "" {
			errs = append(errs, errors.New("mongodb.database is required for the mongodb driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	switch c.Cache.Driver {
	case CacheNone, CacheMemory, "":
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.driver %q", c.Cache.Driver))
	}

	if c.Ingest.Poll.Enabled {
		if c.Ingest.Poll.URL == "" {
			errs = append(errs, errors.New("ingest.poll.url is required when polling is enabled"))
		}
		if c.Ingest.Poll.Interval < time.Second {
			errs = append(errs, errors.New("ingest.poll.interval must be at least 1s"))
		}
	}

	if c.Ingest.Discord.Enabled {
		if c.Ingest.Discord.Token == "" {
			errs = append(errs, errors.New("ingest.discord.token is required when discord is enabled"))
		}
		if len(c.Ingest.Discord.ChannelIDs) == 0 {
			errs = append(errs, errors.New("ingest.discord.channel_ids is required when discord is enabled"))
		}
	}

	if c.Notifications.Telegram.Enabled && c.Notifications.Telegram.BotToken == "" {
		errs = append(errs, errors.New("notifications.telegram.bot_token is required when telegram is enabled"))
	}

	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
