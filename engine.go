package mailAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/mailAuth/internal/audit"
	"github.com/MrEthical07/mailAuth/internal/limiters"
	"github.com/MrEthical07/mailAuth/internal/policy"
	"github.com/MrEthical07/mailAuth/internal/rate"
	"github.com/MrEthical07/mailAuth/internal/stores"
	"github.com/MrEthical07/mailAuth/jwt"
	"github.com/MrEthical07/mailAuth/oauth"
	"github.com/MrEthical07/mailAuth/password"
	"github.com/MrEthical07/mailAuth/session"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Engine defines a public type used by mailAuth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config          Config
	store           IdentityStore
	sessions        *session.Store
	signer          *jwt.Manager
	hasher          *password.Argon2
	bridge          *oauth.Bridge
	verifier        HumanVerifier
	counter         *stores.VerificationCounter
	registerLimiter *limiters.RegistrationLimiter
	loginLimiter    *rate.Limiter
	audit           *audit.Dispatcher
	metrics         *Metrics
	logger          *slog.Logger
	tracer          trace.Tracer
	keyLocation     *time.Location
	now             func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close flushes queued audit events and stops the dispatcher goroutine. It is
// safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByType breaks AuditDropped down per event type.
func (e *Engine) AuditDroppedByType() map[string]uint64 {
	if e == nil || e.audit == nil {
		return map[string]uint64{}
	}
	return e.audit.DroppedByType()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot never fails; with metrics disabled it returns empty maps.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Domains returns the configured mail domains in order.
func (e *Engine) Domains() []string {
	return cloneStrings(e.config.Registration.Domains)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "mailAuth."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, auditErrorCode(err))
	}
	span.End()
}

// storeError wraps a failure of the identity store that is not part of the
// store contract.
func storeError(op string, err error) error {
	return ErrIdentityStoreUnavailable.withCause(fmt.Errorf("%s: %w", op, err))
}

// admit applies the registration toggle and the user-count ceiling from the
// setting snapshot.
func (e *Engine) admit(ctx context.Context, setting Setting) error {
	if setting.Registration == RegistrationClosed {
		return ErrRegistrationDisabled
	}

	var count int64
	if setting.MaxUsers > 0 {
		n, err := e.store.CountUsers(ctx)
		if err != nil {
			return storeError("count users", err)
		}
		count = n
	}

	return outcomeError(policy.CheckAdmission(setting.Registration, setting.MaxUsers, count))
}

// defaultRole loads the role assigned when no registration key grants one.
func (e *Engine) defaultRole(ctx context.Context) (*Role, error) {
	role, err := e.store.DefaultRole(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInternal.withCause(errors.New("no default role configured"))
	}
	if err != nil {
		return nil, storeError("default role", err)
	}
	return role, nil
}

func (e *Engine) touch(ctx context.Context, userID int64) {
	activity := Activity{
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		At:        e.now().UTC(),
	}
	if err := e.store.TouchUser(ctx, userID, activity); err != nil {
		e.logger.WarnContext(ctx, "last activity update failed", "user_id", userID, "error", err)
	}
}

func checkStanding(user *User) error {
	if user.Deleted {
		return ErrAccountDeleted
	}
	if user.Status == UserBanned {
		return ErrAccountBanned
	}
	return nil
}

func outcomeError(o policy.Outcome) error {
	switch o {
	case policy.Allowed:
		return nil
	case policy.RegistrationDisabled:
		return ErrRegistrationDisabled
	case policy.CapacityExceeded:
		return ErrCapacityExceeded
	case policy.MissingKey:
		return ErrMissingKey
	case policy.InvalidKey:
		return ErrInvalidKey
	case policy.KeyExhausted:
		return ErrKeyExhausted
	case policy.KeyExpired:
		return ErrKeyExpired
	default:
		return ErrInternal.withCause(fmt.Errorf("unknown gate outcome %d", o))
	}
}
