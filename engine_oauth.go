package mailAuth

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/mailAuth/internal"
	"github.com/MrEthical07/mailAuth/oauth"
)

// AuthorizationURL returns the provider authorize URL the browser is sent to
// for federated login. It fails with ErrProviderConfigMissing when the client
// id or redirect URI is not configured.
func (e *Engine) AuthorizationURL() (string, error) {
	u, err := e.bridge.AuthorizationURL()
	if err != nil {
		return "", e.bridgeError(context.Background(), err)
	}
	return u, nil
}

// OAuthLoginWithCode describes the oauthloginwithcode operation and its observable behavior.
//
// OAuthLoginWithCode exchanges the authorization code from the provider
// callback for a profile and continues with OAuthLogin. Provider failures are
// reported as ErrTokenExchangeFailed or ErrProfileFetchFailed; the raw
// provider error is logged and kept as the cause, never shown to callers.
func (e *Engine) OAuthLoginWithCode(ctx context.Context, code string) (result *LoginResult, err error) {
	ctx, span := e.startSpan(ctx, "OAuthLoginWithCode")
	defer func() { endSpan(span, err) }()

	profile, err := e.bridge.Login(ctx, code)
	if err != nil {
		err = e.bridgeError(ctx, err)
		e.metricInc(MetricOAuthLoginFailure)
		e.emitAudit(ctx, auditEventOAuthLoginFailure, false, 0, "", err, nil)
		return nil, err
	}

	return e.OAuthLogin(ctx, profile)
}

// OAuthLogin describes the oauthlogin operation and its observable behavior.
//
// OAuthLogin signs in the local user linked to profile, creating one on first
// sight. A new user gets the email <username>@<first configured domain> and
// the default role; registration keys are never consulted. For a known user
// a changed trust level is stored on a best-effort basis. The same
// soft-delete and ban checks as Login apply before a session is issued.
func (e *Engine) OAuthLogin(ctx context.Context, profile *ExternalProfile) (result *LoginResult, err error) {
	ctx, span := e.startSpan(ctx, "OAuthLogin")
	defer func() { endSpan(span, err) }()

	result, err = e.oauthLogin(ctx, profile)
	if err != nil {
		e.metricInc(MetricOAuthLoginFailure)
		e.emitAudit(ctx, auditEventOAuthLoginFailure, false, 0, "", err, externalMetadata(profile))
		return nil, err
	}

	e.metricInc(MetricOAuthLoginSuccess)
	e.emitAudit(ctx, auditEventOAuthLoginSuccess, true, result.UserID, "", nil, externalMetadata(profile))
	return result, nil
}

func (e *Engine) oauthLogin(ctx context.Context, profile *ExternalProfile) (*LoginResult, error) {
	if !profile.Valid() {
		return nil, ErrExternalProfileInvalid
	}

	user, err := e.store.UserByExternalID(ctx, profile.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		user, err = e.provisionExternal(ctx, profile)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, storeError("user by external id", err)
	default:
		e.refreshTrustLevel(ctx, user, profile)
	}

	if err := checkStanding(user); err != nil {
		return nil, err
	}

	return e.issueSession(ctx, user)
}

// provisionExternal creates the local user for a first-time federated login.
func (e *Engine) provisionExternal(ctx context.Context, profile *ExternalProfile) (*User, error) {
	setting, err := e.store.LoadSetting(ctx)
	if err != nil {
		return nil, storeError("load setting", err)
	}

	if err := e.admit(ctx, setting); err != nil {
		return nil, err
	}

	if setting.MinTrustLevel > 0 && profile.Level() < setting.MinTrustLevel {
		return nil, ErrTrustLevelTooLow
	}

	domains := e.config.Registration.Domains
	if len(domains) == 0 || domains[0] == "" {
		return nil, ErrNoDomainConfigured
	}
	email := profile.Username + "@" + domains[0]

	_, err = e.store.AccountByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, storeError("account by email", err)
	default:
		return nil, ErrEmailAlreadyExists
	}

	role, err := e.defaultRole(ctx)
	if err != nil {
		return nil, err
	}

	secret, err := internal.NewUnusablePassword()
	if err != nil {
		return nil, ErrInternal.withCause(err)
	}
	digest, err := e.hasher.Hash(secret)
	if err != nil {
		return nil, ErrInternal.withCause(err)
	}

	name := profile.Name
	if name == "" {
		name = profile.Username
	}

	user, err := e.store.CreateUser(ctx, NewUser{
		Email:              email,
		PasswordHash:       digest.Hash,
		PasswordSalt:       digest.Salt,
		RoleID:             role.ID,
		ExternalID:         profile.ID,
		ExternalUsername:   profile.Username,
		ExternalTrustLevel: profile.Level(),
		AccountName:        name,
		CreatedAt:          e.now().UTC(),
		CreateIP:           clientIPFromContext(ctx),
	})
	if errors.Is(err, ErrDuplicate) {
		// A concurrent callback may have linked the same external id first.
		existing, lookupErr := e.store.UserByExternalID(ctx, profile.ID)
		if lookupErr == nil {
			return existing, nil
		}
		return nil, ErrEmailAlreadyExists
	}
	if err != nil {
		return nil, storeError("create user", err)
	}

	e.metricInc(MetricOAuthUserCreated)
	e.emitAudit(ctx, auditEventOAuthUserCreated, true, user.ID, email, nil, externalMetadata(profile))
	return user, nil
}

func (e *Engine) refreshTrustLevel(ctx context.Context, user *User, profile *ExternalProfile) {
	if profile.TrustLevel == nil || *profile.TrustLevel == user.ExternalTrustLevel {
		return
	}
	if err := e.store.UpdateExternalTrustLevel(ctx, user.ID, *profile.TrustLevel); err != nil {
		e.logger.WarnContext(ctx, "external trust level update failed", "user_id", user.ID, "error", err)
		return
	}
	user.ExternalTrustLevel = *profile.TrustLevel
}

// bridgeError maps provider bridge failures onto business errors.
func (e *Engine) bridgeError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, oauth.ErrAuthCodeMissing):
		return ErrAuthCodeMissing
	case errors.Is(err, oauth.ErrConfigMissing):
		return ErrProviderConfigMissing
	case errors.Is(err, oauth.ErrTokenExchange):
		e.metricInc(MetricUpstreamFailure)
		e.logger.WarnContext(ctx, "oauth token exchange failed", "error", err)
		return ErrTokenExchangeFailed.withCause(err)
	case errors.Is(err, oauth.ErrProfileFetch):
		e.metricInc(MetricUpstreamFailure)
		e.logger.WarnContext(ctx, "oauth profile fetch failed", "error", err)
		return ErrProfileFetchFailed.withCause(err)
	default:
		return ErrInternal.withCause(err)
	}
}

func externalMetadata(profile *ExternalProfile) func() map[string]string {
	if profile == nil {
		return nil
	}
	return func() map[string]string {
		return map[string]string{
			"external_id":       profile.ID,
			"external_username": profile.Username,
			"trust_level":       strconv.Itoa(profile.Level()),
		}
	}
}
