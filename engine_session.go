package mailAuth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/mailAuth/internal"
	"github.com/MrEthical07/mailAuth/session"
)

// issueSession mints a fresh session token, signs a credential binding it to
// the user, appends it to the user's session entry and records the login
// activity.
func (e *Engine) issueSession(ctx context.Context, user *User) (*LoginResult, error) {
	token, err := internal.NewSessionToken()
	if err != nil {
		return nil, ErrSessionCreationFailed.withCause(err)
	}

	credential, err := e.signer.Issue(user.ID, token)
	if err != nil {
		return nil, ErrSessionCreationFailed.withCause(err)
	}

	if _, err := e.sessions.Upsert(ctx, user.ID, token, sessionSnapshot(user)); err != nil {
		return nil, ErrSessionCreationFailed.withCause(err)
	}
	e.metricInc(MetricSessionCreated)

	e.touch(ctx, user.ID)

	return &LoginResult{Credential: credential, UserID: user.ID}, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout removes the token of the session attached to ctx (see WithSession)
// from the session entry of userID, leaving the entry's expiry untouched.
// Removing a token that is no longer listed is a no-op. A ctx without a
// session for userID fails with ErrUnauthorized.
func (e *Engine) Logout(ctx context.Context, userID int64) (err error) {
	ctx, span := e.startSpan(ctx, "Logout")
	defer func() { endSpan(span, err) }()

	s, ok := SessionFromContext(ctx)
	if !ok || s.UserID != userID {
		return ErrUnauthorized
	}

	removed, err := e.sessions.Remove(ctx, userID, s.Token)
	if err != nil {
		err = ErrSessionInvalidationFailed.withCause(err)
		e.emitAudit(ctx, auditEventLogout, false, userID, "", err, nil)
		return err
	}
	if removed {
		e.metricInc(MetricSessionInvalidated)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, userID, "", nil, nil)
	return nil
}

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate verifies the signature and expiry of credential and checks
// that its token is still listed in the user's session entry, so a
// credential whose token was logged out or evicted is rejected with
// ErrUnauthorized.
func (e *Engine) Authenticate(ctx context.Context, credential string) (Session, error) {
	start := time.Now()

	claims, err := e.signer.Parse(credential)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return Session{}, ErrUnauthorized.withCause(err)
	}

	ok, err := e.sessions.Contains(ctx, claims.UserID, claims.Token)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return Session{}, ErrInternal.withCause(err)
	}
	if !ok {
		e.metricInc(MetricAuthenticateFailure)
		return Session{}, ErrUnauthorized
	}

	e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	return Session{UserID: claims.UserID, Token: claims.Token}, nil
}

// RevokeSessions ends every session of userID by dropping the whole entry.
// Credentials issued earlier fail Authenticate afterwards.
func (e *Engine) RevokeSessions(ctx context.Context, userID int64) (err error) {
	ctx, span := e.startSpan(ctx, "RevokeSessions")
	defer func() { endSpan(span, err) }()

	if err := e.sessions.Delete(ctx, userID); err != nil {
		err = ErrSessionInvalidationFailed.withCause(err)
		e.emitAudit(ctx, auditEventSessionsRevoked, false, userID, "", err, nil)
		return err
	}
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventSessionsRevoked, true, userID, "", nil, nil)
	return nil
}

// SessionTokens returns the tokens currently listed for userID, oldest
// first. A user without an entry has none.
func (e *Engine) SessionTokens(ctx context.Context, userID int64) ([]string, error) {
	entry, err := e.sessions.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, session.ErrEntryNotFound) {
			return nil, nil
		}
		return nil, ErrInternal.withCause(err)
	}
	return entry.Tokens, nil
}

func sessionSnapshot(user *User) session.User {
	return session.User{
		ID:               user.ID,
		Email:            user.Email,
		RoleID:           user.RoleID,
		Status:           uint8(user.Status),
		ExternalID:       user.ExternalID,
		ExternalUsername: user.ExternalUsername,
		CreatedAt:        user.CreatedAt,
	}
}
