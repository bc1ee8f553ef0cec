package mailAuth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/mailAuth/internal/audit"
	"github.com/MrEthical07/mailAuth/internal/limiters"
	"github.com/MrEthical07/mailAuth/internal/rate"
	"github.com/MrEthical07/mailAuth/internal/stores"
	"github.com/MrEthical07/mailAuth/jwt"
	"github.com/MrEthical07/mailAuth/oauth"
	"github.com/MrEthical07/mailAuth/password"
	"github.com/MrEthical07/mailAuth/session"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

const tracerName = "github.com/MrEthical07/mailAuth"

// Builder defines a public type used by mailAuth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store      IdentityStore
	verifier   HumanVerifier
	auditSink  AuditSink
	logger     *slog.Logger
	httpClient *http.Client
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for session entries, throttles and the
// verification counter. It is required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityStore sets the persistent store of users, accounts, roles,
// keys and settings. It is required.
func (b *Builder) WithIdentityStore(store IdentityStore) *Builder {
	b.store = store
	return b
}

// WithVerifier sets the human-verification provider. Without one every
// required challenge fails.
func (b *Builder) WithVerifier(v HumanVerifier) *Builder {
	b.verifier = v
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink sets where audit events are delivered when Config.Audit is
// enabled. A nil sink discards them.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger. The default is slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithHTTPClient sets the client used to reach the OAuth provider.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithClock overrides the time source, mainly for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the authenticate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, wires every collaborator and returns a
// ready Engine. A Builder can only be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("identity store required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Registration.KeyTimeZone)
	if err != nil {
		return nil, fmt.Errorf("registration key time zone: %w", err)
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.JWT.TTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	prefix := cfg.Session.RedisPrefix

	engine := &Engine{
		config: cfg,
		store:  b.store,
		sessions: session.NewStore(b.redis, session.Config{
			Prefix:       prefix,
			MaxTokens:    cfg.Session.MaxTokens,
			TTL:          cfg.Session.TTL,
			MaxRetries:   cfg.Session.MaxRetries,
			RetryBackoff: cfg.Session.RetryBackoff,
		}),
		signer:   jm,
		hasher:   ph,
		verifier: b.verifier,
		counter:  stores.NewVerificationCounter(b.redis, prefix),
		registerLimiter: limiters.NewRegistrationLimiter(b.redis, limiters.RegistrationConfig{
			Prefix:                   prefix,
			EnableIdentifierThrottle: cfg.Registration.EnableIdentifierThrottle,
			EnableIPThrottle:         cfg.Registration.EnableIPThrottle,
			MaxAttempts:              cfg.Registration.MaxAttempts,
			Cooldown:                 cfg.Registration.Cooldown,
		}),
		loginLimiter: rate.New(b.redis, rate.Config{
			Prefix:                prefix,
			EnableIPThrottle:      cfg.Login.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Login.MaxAttempts,
			LoginCooldownDuration: cfg.Login.Cooldown,
		}),
		bridge: oauth.NewBridge(oauth.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURI:  cfg.OAuth.RedirectURI,
			AuthURL:      cfg.OAuth.AuthURL,
			TokenURL:     cfg.OAuth.TokenURL,
			ProfileURL:   cfg.OAuth.ProfileURL,
			Scopes:       cloneStrings(cfg.OAuth.Scopes),
		}, b.httpClient),
		metrics:     NewMetrics(cfg.Metrics),
		tracer:      otel.Tracer(tracerName),
		keyLocation: loc,
		now:         b.now,
		logger:      b.logger,
	}

	if engine.now == nil {
		engine.now = time.Now
	}
	if engine.logger == nil {
		engine.logger = slog.Default()
	}

	sink := b.auditSink
	if sink == nil {
		sink = NoOpSink{}
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		EventTypes: cfg.Audit.EventTypes,
	}, sink)

	b.built = true

	return engine, nil
}
