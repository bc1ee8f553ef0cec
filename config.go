package mailAuth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/mailAuth/session"
)

// Config defines a public type used by mailAuth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT          JWTConfig
	Session      SessionConfig
	Password     PasswordConfig
	Registration RegistrationConfig
	Login        LoginConfig
	OAuth        OAuthConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls the signed session credential.
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the per-user session entry in Redis.
type SessionConfig struct {
	RedisPrefix  string
	TTL          time.Duration
	MaxTokens    int
	MaxRetries   uint64
	RetryBackoff time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters and the accepted password
// length range, counted in characters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxLength   int
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig describes the mail domains served and the registration
// throttle.
//
// Domains is the ordered list of domains mailboxes may be created under; the
// first entry is used for federated registrations. KeyTimeZone is the IANA
// zone registration-key expiry days are evaluated in.
type RegistrationConfig struct {
	Domains                  []string
	MaxLocalPartLength       int
	KeyTimeZone              string
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

// LoginConfig controls the failed-login throttle.
type LoginConfig struct {
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig is the federated provider client registration. Empty
// endpoints fall back to LinuxDo Connect.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	ProfileURL   string
	Scopes       []string
}

// AuditConfig controls asynchronous audit delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// EventTypes limits delivery to the listed event types. Empty delivers
	// every event.
	EventTypes []string
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:           30 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		Session: SessionConfig{
			RedisPrefix:  "mail:auth",
			TTL:          30 * 24 * time.Hour,
			MaxTokens:    10,
			MaxRetries:   5,
			RetryBackoff: 10 * time.Millisecond,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   6,
			MaxLength:   30,
		},
		Registration: RegistrationConfig{
			MaxLocalPartLength:       30,
			KeyTimeZone:              "Asia/Shanghai",
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: false,
			MaxAttempts:              10,
			Cooldown:                 15 * time.Minute,
		},
		Login: LoginConfig{
			EnableIPThrottle: false,
			MaxAttempts:      5,
			Cooldown:         15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Registration.Domains = cloneStrings(cfg.Registration.Domains)
	out.OAuth.Scopes = cloneStrings(cfg.OAuth.Scopes)
	out.Audit.EventTypes = cloneStrings(cfg.Audit.EventTypes)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
		return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.MaxTokens <= 0 || c.Session.MaxTokens > session.DefaultMaxTokens {
		return fmt.Errorf("Session MaxTokens must be between 1 and %d", session.DefaultMaxTokens)
	}
	if c.Session.RetryBackoff < 0 {
		return errors.New("Session RetryBackoff must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return errors.New("Password Time and Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return errors.New("Password SaltLength and KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Registration
	if c.Registration.MaxLocalPartLength <= 0 {
		return errors.New("Registration MaxLocalPartLength must be > 0")
	}
	for _, d := range c.Registration.Domains {
		if strings.TrimSpace(d) == "" || strings.Contains(d, "@") {
			return errors.New("Registration Domains must be bare domain names")
		}
	}
	if (c.Registration.EnableIPThrottle || c.Registration.EnableIdentifierThrottle) &&
		(c.Registration.MaxAttempts <= 0 || c.Registration.Cooldown <= 0) {
		return errors.New("Registration throttle requires MaxAttempts > 0 and Cooldown > 0")
	}

	// Login
	if c.Login.MaxAttempts <= 0 || c.Login.Cooldown <= 0 {
		return errors.New("Login MaxAttempts and Cooldown must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
