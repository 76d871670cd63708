package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, `
server:
  port: "8081"
storage:
  driver: memory
cache:
  driver: none
ingest:
  poll:
    interval: 10s
  bonus_items:
    - label: "🌵 🌵 🌵 🌵 Cactus"
      value: "+4 stock"
jwt:
  secret_key: from-file
`)
	t.Setenv("STOCKWATCH_JWT__SECRET_KEY", "from-env")
	t.Setenv("STOCKWATCH_INGEST__DISCORD__ENABLED", "true")
	t.Setenv("STOCKWATCH_INGEST__DISCORD__TOKEN", "discord-token")
	t.Setenv("STOCKWATCH_INGEST__DISCORD__CHANNEL_IDS", "111,222")
	t.Setenv("STOCKWATCH_NOTIFICATIONS__WORKER__CONCURRENCY", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, CacheNone, cfg.Cache.Driver)
	assert.Equal(t, 10*time.Second, cfg.Ingest.Poll.Interval)
	assert.Equal(t, 10*time.Second, cfg.Ingest.Poll.Timeout)
	require.Len(t, cfg.Ingest.BonusItems, 1)
	assert.Equal(t, "+4 stock", cfg.Ingest.BonusItems[0].Value)
	assert.Equal(t, "from-env", cfg.JWT.SecretKey)
	assert.True(t, cfg.Ingest.Discord.Enabled)
	assert.Equal(t, []string{"111", "222"}, cfg.Ingest.Discord.ChannelIDs)
	assert.Equal(t, 3, cfg.Notifications.Worker.Concurrency)
	assert.Equal(t, 64, cfg.Notifications.Worker.QueueSize)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("STOCKWATCH_DATABASE__URL", "postgres://localhost/stockwatch")
	t.Setenv("STOCKWATCH_JWT__SECRET_KEY", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/stockwatch", cfg.Database.URL)
	assert.True(t, cfg.Database.MigrateOnStart)
	assert.Equal(t, 5*time.Second, cfg.Ingest.Poll.Interval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidConfig(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret_key")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "ingest.poll.url", envKey("STOCKWATCH_INGEST__POLL__URL"))
	assert.Equal(t, "server.metrics_port", envKey("STOCKWATCH_SERVER__METRICS_PORT"))
}

func TestEnvValue(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		value   string
		wantKey string
		want    any
	}{
		{name: "scalar keeps commas", env: "STOCKWATCH_JWT__SECRET_KEY", value: "a,b", wantKey: "jwt.secret_key", want: "a,b"},
		{name: "channel ids", env: "STOCKWATCH_INGEST__DISCORD__CHANNEL_IDS", value: "111, 222,,333", wantKey: "ingest.discord.channel_ids", want: []string{"111", "222", "333"}},
		{name: "single origin", env: "STOCKWATCH_CORS__ALLOWED_ORIGINS", value: "https://a.example", wantKey: "cors.allowed_origins", want: []string{"https://a.example"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, value := envValue(tt.env, tt.value)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.want, value)
		})
	}
}

func TestLoad_EnvLists(t *testing.T) {
	t.Setenv("STOCKWATCH_STORAGE__DRIVER", "memory")
	t.Setenv("STOCKWATCH_JWT__SECRET_KEY", "secret")
	t.Setenv("STOCKWATCH_CORS__ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "PVB Stock Alerts", cfg.Ingest.Discord.AuthorMarker)
	assert.Equal(t, "Plants vs Brainrots Stock", cfg.Ingest.Discord.TitleMarker)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Database.URL = "postgres://localhost/db"
		cfg.JWT.SecretKey = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{name: "valid defaults", modify: func(*Config) {}},
		{name: "memory driver", modify: func(c *Config) { c.Storage.Driver = DriverMemory; c.Database.URL = "" }},
		{name: "unknown driver", modify: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: "unknown storage.driver"},
		{name: "postgres without url", modify: func(c *Config) { c.Database.URL = "" }, wantErr: "database.url"},
		{name: "mongodb without uri", modify: func(c *Config) { c.Storage.Driver = DriverMongoDB }, wantErr: "mongodb.uri"},
		{name: "mongodb", modify: func(c *Config) { c.Storage.Driver = DriverMongoDB; c.MongoDB.URI = "mongodb://localhost" }},
		{name: "redis without addr", modify: func(c *Config) { c.Cache.Driver = CacheRedis }, wantErr: "cache.redis.addr"},
		{name: "unknown cache", modify: func(c *Config) { c.Cache.Driver = "memcached" }, wantErr: "unknown cache.driver"},
		{name: "poll without url", modify: func(c *Config) { c.Ingest.Poll.URL = "" }, wantErr: "ingest.poll.url"},
		{name: "poll interval too short", modify: func(c *Config) { c.Ingest.Poll.Interval = 500 * time.Millisecond }, wantErr: "at least 1s"},
		{name: "poll disabled ignores interval", modify: func(c *Config) { c.Ingest.Poll.Enabled = false; c.Ingest.Poll.Interval = 0 }},
		{name: "discord without token", modify: func(c *Config) {
			c.Ingest.Discord.Enabled = true
			c.Ingest.Discord.ChannelIDs = []string{"1"}
		}, wantErr: "ingest.discord.token"},
		{name: "discord without channels", modify: func(c *Config) {
			c.Ingest.Discord.Enabled = true
			c.Ingest.Discord.Token = "t"
		}, wantErr: "ingest.discord.channel_ids"},
		{name: "telegram without token", modify: func(c *Config) { c.Notifications.Telegram.Enabled = true }, wantErr: "bot_token"},
		{name: "missing jwt secret", modify: func(c *Config) { c.JWT.SecretKey = "" }, wantErr: "jwt.secret_key"},
		{name: "unknown log format", modify: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
