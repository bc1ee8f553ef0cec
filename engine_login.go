package mailAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/mailAuth/internal/rate"
	"github.com/MrEthical07/mailAuth/password"
)

// Login describes the login operation and its observable behavior.
//
// Login checks the password of the user registered under email and, on
// success, returns a signed session credential whose token has been appended
// to the user's session entry. No such user and a wrong password are
// reported as distinct errors. Failed attempts count toward the login
// throttle.
func (e *Engine) Login(ctx context.Context, email, pwd string) (result *LoginResult, err error) {
	ctx, span := e.startSpan(ctx, "Login")
	defer func() { endSpan(span, err) }()

	result, err = e.login(ctx, email, pwd)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, 0, email, err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, result.UserID, email, nil, nil)
	return result, nil
}

func (e *Engine) login(ctx context.Context, email, pwd string) (*LoginResult, error) {
	if email == "" || pwd == "" {
		return nil, ErrCredentialsMissing
	}

	ip := clientIPFromContext(ctx)
	if err := e.loginLimiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitRateLimit(ctx, "login", email)
			return nil, ErrRateLimited
		}
		return nil, ErrInternal.withCause(err)
	}

	user, err := e.store.UserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		e.recordLoginFailure(ctx, email, ip)
		return nil, ErrNoSuchUser
	}
	if err != nil {
		return nil, storeError("user by email", err)
	}

	if err := checkStanding(user); err != nil {
		if errors.Is(err, ErrAccountBanned) {
			// Credentials issued before the ban stop authenticating.
			if err := e.sessions.Delete(ctx, user.ID); err != nil {
				e.logger.WarnContext(ctx, "banned user session cleanup failed", "user_id", user.ID, "error", err)
			}
		}
		return nil, err
	}

	digest := password.Digest{Hash: user.PasswordHash, Salt: user.PasswordSalt}
	ok, err := e.hasher.Verify(pwd, digest)
	if err != nil {
		return nil, ErrInternal.withCause(err)
	}
	if !ok {
		e.recordLoginFailure(ctx, email, ip)
		return nil, ErrIncorrectPassword
	}
	e.upgradePassword(ctx, user.ID, pwd, digest)

	if err := e.loginLimiter.ResetLogin(ctx, email, ip); err != nil {
		e.logger.WarnContext(ctx, "login throttle reset failed", "error", err)
	}

	return e.issueSession(ctx, user)
}

// upgradePassword rehashes pwd when digest was derived with weaker
// parameters than the current configuration. Failures are logged only.
func (e *Engine) upgradePassword(ctx context.Context, userID int64, pwd string, digest password.Digest) {
	stale, err := e.hasher.NeedsUpgrade(digest)
	if err != nil || !stale {
		return
	}
	next, err := e.hasher.Hash(pwd)
	if err != nil {
		e.logger.WarnContext(ctx, "password rehash failed", "user_id", userID, "error", err)
		return
	}
	if err := e.store.UpdatePassword(ctx, userID, next.Hash, next.Salt); err != nil {
		e.logger.WarnContext(ctx, "password rehash not stored", "user_id", userID, "error", err)
		return
	}
	e.metricInc(MetricPasswordRehashed)
}

func (e *Engine) recordLoginFailure(ctx context.Context, email, ip string) {
	if err := e.loginLimiter.IncrementLogin(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		e.logger.WarnContext(ctx, "login throttle update failed", "error", err)
	}
}
