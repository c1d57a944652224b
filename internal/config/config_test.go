package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8880", cfg.Scan.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.Scan.Timeout)
	assert.Equal(t, 5, cfg.Quota.DailyLimit)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 300*time.Millisecond, cfg.Hover.Debounce)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
scan:
  apiBaseURL: https://api.caniclickit.com
  timeout: 3s
storage:
  driver: memory
cache:
  ttl: 1m
`)
	t.Setenv("CICI_SERVER_PORT", "9100")
	t.Setenv("CICI_SCAN_API_KEY", "k-env")
	t.Setenv("CICI_CORS_ALLOWED_ORIGINS", "chrome-extension://abc,http://localhost:3000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "https://api.caniclickit.com", cfg.Scan.APIBaseURL)
	assert.Equal(t, "k-env", cfg.Scan.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Scan.Timeout)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, []string{"chrome-extension://abc", "http://localhost:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := Load(missing)
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg, err := LoadOptional(missing)
	require.NoError(t, err)
	assert.Equal(t, 8787, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad base url", func(c *Config) { c.Scan.APIBaseURL = "ftp://x" }, "scan.apiBaseURL"},
		{"zero limit", func(c *Config) { c.Quota.DailyLimit = 0 }, "quota.dailyLimit"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.dsn"},
		{"mysql without host", func(c *Config) { c.Storage.Driver = "mysql" }, "database.host"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "redis" }, "unknown storage.driver"},
		{"archive bucket", func(c *Config) { c.Archive.Driver = "s3" }, "archive.bucketName"},
		{"minio endpoint", func(c *Config) { c.Archive.Driver = "minio"; c.Archive.BucketName = "b" }, "archive.endpoint"},
		{"rate limit", func(c *Config) { c.RateLimit.Burst = 0 }, "rateLimit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestMySQLDSN(t *testing.T) {
	c := Default()
	c.Database.User, c.Database.Password = "cici", "pw"
	c.Database.Host, c.Database.Name = "db", "caniclickit"
	assert.Equal(t, "cici:pw@tcp(db:3306)/caniclickit?parseTime=true&charset=utf8mb4&loc=UTC", c.MySQLDSN())
}
