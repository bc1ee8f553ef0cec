package main

import (
	"errors"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/mailAuth"
)

// appConfig is the non-secret configuration. It is layered from built-in
// defaults, the YAML file and command-line flags, in that order.
type appConfig struct {
	Listen      string   `koanf:"listen"`
	CORSOrigins []string `koanf:"cors_origins"`
	// TrustProxyHeaders reads client addresses from X-Forwarded-For and
	// X-Real-IP.
	TrustProxyHeaders bool `koanf:"trust_proxy_headers"`
	Metrics     bool     `koanf:"metrics"`
	OTelMetrics bool     `koanf:"otel_metrics"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`

	Redis struct {
		Addr string `koanf:"addr"`
		DB   int    `koanf:"db"`
	} `koanf:"redis"`

	Domains     []string      `koanf:"domains"`
	KeyTimeZone string        `koanf:"key_time_zone"`
	SessionTTL  time.Duration `koanf:"session_ttl"`

	Login struct {
		MaxAttempts      int           `koanf:"max_attempts"`
		Cooldown         time.Duration `koanf:"cooldown"`
		EnableIPThrottle bool          `koanf:"ip_throttle"`
	} `koanf:"login"`

	OAuth struct {
		ClientID    string `koanf:"client_id"`
		RedirectURI string `koanf:"redirect_uri"`
		AuthURL     string `koanf:"auth_url"`
		TokenURL    string `koanf:"token_url"`
		ProfileURL  string `koanf:"profile_url"`
	} `koanf:"oauth"`

	Turnstile struct {
		Endpoint string `koanf:"endpoint"`
	} `koanf:"turnstile"`

	Secrets secrets `koanf:"-"`
}

// secrets come from the environment only, optionally seeded from a .env
// file in the working directory.
type secrets struct {
	DatabaseURL       string `env:"DATABASE_URL"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	JWTSecret         string `env:"MAILAUTH_JWT_SECRET"`
	OAuthClientSecret string `env:"MAILAUTH_OAUTH_CLIENT_SECRET"`
	TurnstileSecret   string `env:"MAILAUTH_TURNSTILE_SECRET"`
}

func defaultAppConfig() appConfig {
	var cfg appConfig
	cfg.Listen = ":8080"
	cfg.Metrics = true
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Redis.Addr = "localhost:6379"
	cfg.KeyTimeZone = "Asia/Shanghai"
	cfg.SessionTTL = 30 * 24 * time.Hour
	cfg.Login.MaxAttempts = 5
	cfg.Login.Cooldown = 15 * time.Minute
	return cfg
}

// loadConfig layers path (when non-empty) and the changed flags in fs over
// the defaults, then reads secrets from the environment.
func loadConfig(path string, fs *pflag.FlagSet) (appConfig, error) {
	cfg := defaultAppConfig()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}
	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return cfg, oops.Code("CONFIG_INVALID").With("operation", "load flags").Wrap(err)
		}
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}

	if err := loadDotenv(".env"); err != nil {
		return cfg, err
	}
	if err := env.Parse(&cfg.Secrets); err != nil {
		return cfg, oops.Code("CONFIG_INVALID").With("operation", "parse env").Wrap(err)
	}
	return cfg, nil
}

// loadDotenv exports the variables in path without overriding ones already
// set. A missing file is not an error.
func loadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
	}
	return nil
}

// engineConfig maps the layered configuration onto the engine's Config.
func (c appConfig) engineConfig() mailAuth.Config {
	cfg := mailAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(c.Secrets.JWTSecret)
	cfg.JWT.TTL = c.SessionTTL
	cfg.Session.TTL = c.SessionTTL
	cfg.Registration.Domains = c.Domains
	cfg.Registration.KeyTimeZone = c.KeyTimeZone
	cfg.Login.MaxAttempts = c.Login.MaxAttempts
	cfg.Login.Cooldown = c.Login.Cooldown
	cfg.Login.EnableIPThrottle = c.Login.EnableIPThrottle
	cfg.OAuth = mailAuth.OAuthConfig{
		ClientID:     c.OAuth.ClientID,
		ClientSecret: c.Secrets.OAuthClientSecret,
		RedirectURI:  c.OAuth.RedirectURI,
		AuthURL:      c.OAuth.AuthURL,
		TokenURL:     c.OAuth.TokenURL,
		ProfileURL:   c.OAuth.ProfileURL,
	}
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = c.Metrics || c.OTelMetrics
	cfg.Metrics.EnableLatencyHistograms = cfg.Metrics.Enabled
	return cfg
}
