package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
listen: ":9090"
cors_origins:
  - https://mail.example
domains:
  - mail.example
  - alt.example
key_time_zone: UTC
session_ttl: 168h
log:
  level: debug
redis:
  addr: redis:6379
  db: 2
login:
  max_attempts: 3
  cooldown: 5m
oauth:
  client_id: client
  redirect_uri: https://mail.example/oauth/callback
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mailauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func serveFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	root := NewRootCmd()
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	fs := serve.Flags()
	fs.AddFlagSet(root.PersistentFlags())
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadConfig_Layers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://mail:mail@db/mail")
	t.Setenv("MAILAUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := loadConfig(writeConfig(t, sampleConfig), serveFlags(t, "--listen", ":7070"))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Listen, "changed flags win over the file")
	assert.Equal(t, []string{"mail.example", "alt.example"}, cfg.Domains)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "debug", cfg.Log.Level, "file wins over flag defaults")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 3, cfg.Login.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Login.Cooldown)
	assert.Equal(t, "postgres://mail:mail@db/mail", cfg.Secrets.DatabaseURL)

	ec := cfg.engineConfig()
	require.NoError(t, ec.Validate())
	assert.Equal(t, "client", ec.OAuth.ClientID)
	assert.Equal(t, 168*time.Hour, ec.Session.TTL)
	assert.True(t, ec.Metrics.Enabled)
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig("", serveFlags(t))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "Asia/Shanghai", cfg.KeyTimeZone)
	assert.Equal(t, 30*24*time.Hour, cfg.SessionTTL)
}

func TestLoadConfig_DotenvDoesNotOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("MAILAUTH_TURNSTILE_SECRET=from-file\nREDIS_PASSWORD=from-file\n"), 0o600))
	t.Setenv("REDIS_PASSWORD", "from-env")
	t.Setenv("MAILAUTH_TURNSTILE_SECRET", "")
	require.NoError(t, os.Unsetenv("MAILAUTH_TURNSTILE_SECRET"))

	cfg, err := loadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Secrets.TurnstileSecret)
	assert.Equal(t, "from-env", cfg.Secrets.RedisPassword)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "")

	root := NewRootCmd()
	root.SetArgs([]string{"migrate", "version"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadConfig_TrustProxyHeaders(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig("", serveFlags(t))
	require.NoError(t, err)
	assert.False(t, cfg.TrustProxyHeaders, "proxy headers are ignored unless configured")

	cfg, err = loadConfig(writeConfig(t, "trust_proxy_headers: true\n"), serveFlags(t))
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxyHeaders)

	cfg, err = loadConfig("", serveFlags(t, "--trust_proxy_headers"))
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxyHeaders)
}
