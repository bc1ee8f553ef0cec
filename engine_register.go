package mailAuth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/mailAuth/internal/limiters"
	"github.com/MrEthical07/mailAuth/internal/policy"
)

// Register describes the register operation and its observable behavior.
//
// Register loads the current Setting, applies the registration gate, input
// validation, registration-key resolution, account checks, role domain
// permission and human verification, in that order, and only then creates
// the User, its Account and the key decrement in one atomic write. Every
// refusal happens before any write. The result reports whether the next
// registration will have to pass human verification.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (result *RegisterResult, err error) {
	ctx, span := e.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	result, err = e.register(ctx, req)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, 0, req.Email, err, nil)
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, result.UserID, req.Email, nil, func() map[string]string {
		return map[string]string{
			"role_id":        strconv.FormatInt(result.RoleID, 10),
			"next_challenge": strconv.FormatBool(result.NextChallengeRequired),
		}
	})
	return result, nil
}

func (e *Engine) register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	setting, err := e.store.LoadSetting(ctx)
	if err != nil {
		return nil, storeError("load setting", err)
	}

	if err := e.admit(ctx, setting); err != nil {
		return nil, err
	}

	if err := e.validateRegistration(req.Email, req.Password); err != nil {
		return nil, err
	}

	ip := clientIPFromContext(ctx)
	if err := e.registerLimiter.Enforce(ctx, req.Email, ip); err != nil {
		if errors.Is(err, limiters.ErrRegistrationRateLimited) {
			e.metricInc(MetricRegisterRateLimited)
			e.emitRateLimit(ctx, "register", req.Email)
			return nil, ErrRateLimited
		}
		return nil, ErrInternal.withCause(err)
	}

	grant, err := e.resolveKey(ctx, setting.KeyMode, req.RegistrationKey)
	if err != nil {
		return nil, err
	}

	account, err := e.store.AccountByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, storeError("account by email", err)
	case account.Deleted:
		return nil, ErrAccountSoftDeleted
	default:
		return nil, ErrAccountAlreadyExists
	}

	role, err := e.grantedRole(ctx, grant)
	if err != nil {
		return nil, err
	}
	if !policy.DomainPermitted(role.AllowedDomains, req.Email) {
		if grant.FromKey() {
			return nil, ErrDomainNotPermittedByKey
		}
		return nil, ErrDomainNotPermitted
	}

	challenged, err := e.verifyHuman(ctx, setting, req.VerificationToken)
	if err != nil {
		return nil, err
	}

	digest, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, ErrInternal.withCause(err)
	}

	nu := NewUser{
		Email:        req.Email,
		PasswordHash: digest.Hash,
		PasswordSalt: digest.Salt,
		RoleID:       role.ID,
		RegKeyID:     grant.KeyID,
		AccountName:  policy.LocalPart(req.Email),
		CreatedAt:    e.now().UTC(),
		CreateIP:     ip,
	}
	user, err := e.store.CreateUser(ctx, nu)
	redeemed := grant.FromKey()
	if errors.Is(err, ErrKeyNotRedeemable) && setting.KeyMode == KeyOptional {
		// The key ran out after it was read; optional mode falls back to
		// the default role instead of failing.
		user, err = e.createWithDefaultRole(ctx, nu)
		redeemed = false
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrKeyNotRedeemable):
			return nil, ErrKeyExhausted
		case errors.Is(err, ErrDuplicate):
			return nil, ErrAccountAlreadyExists
		case errors.As(err, new(*Error)):
			return nil, err
		default:
			return nil, storeError("create user", err)
		}
	}
	if redeemed {
		e.metricInc(MetricKeyRedeemed)
	}

	e.touch(ctx, user.ID)

	return &RegisterResult{
		UserID:                user.ID,
		RoleID:                user.RoleID,
		NextChallengeRequired: e.recordVerification(ctx, setting, challenged),
	}, nil
}

func (e *Engine) createWithDefaultRole(ctx context.Context, nu NewUser) (*User, error) {
	role, err := e.defaultRole(ctx)
	if err != nil {
		return nil, err
	}
	if !policy.DomainPermitted(role.AllowedDomains, nu.Email) {
		return nil, ErrDomainNotPermitted
	}
	nu.RoleID = role.ID
	nu.RegKeyID = 0
	return e.store.CreateUser(ctx, nu)
}

// validateRegistration checks, in order: email syntax, password maximum
// length, local part length, password minimum length and domain membership.
// Lengths count characters, not bytes.
func (e *Engine) validateRegistration(email, pwd string) error {
	if !policy.ValidEmail(email) {
		return ErrNotEmailFormat
	}

	pwdLen := utf8.RuneCountInString(pwd)
	if pwdLen > e.config.Password.MaxLength {
		return ErrPasswordTooLong
	}
	if utf8.RuneCountInString(policy.LocalPart(email)) > e.config.Registration.MaxLocalPartLength {
		return ErrEmailNameTooLong
	}
	if pwdLen < e.config.Password.MinLength {
		return ErrPasswordTooShort
	}
	if !policy.DomainListed(e.config.Registration.Domains, email) {
		return ErrEmailDomainInvalid
	}

	return nil
}

// resolveKey looks up the supplied code, unless keys are closed, and lets
// the gate decide what it grants.
func (e *Engine) resolveKey(ctx context.Context, mode KeyMode, code string) (policy.Grant, error) {
	if mode == KeyClosed {
		return policy.Grant{}, nil
	}

	code = strings.TrimSpace(code)
	var key *policy.Key
	if code != "" {
		stored, err := e.store.RegistrationKeyByCode(ctx, code)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return policy.Grant{}, storeError("registration key by code", err)
		default:
			key = &policy.Key{
				ID:        stored.ID,
				Remaining: stored.Remaining,
				ExpiresAt: stored.ExpiresAt,
				RoleID:    stored.RoleID,
			}
		}
	}

	grant, outcome := policy.ResolveKey(mode, code, key, e.now(), e.keyLocation)
	if err := outcomeError(outcome); err != nil {
		return policy.Grant{}, err
	}
	return grant, nil
}

func (e *Engine) grantedRole(ctx context.Context, grant policy.Grant) (*Role, error) {
	if !grant.FromKey() {
		return e.defaultRole(ctx)
	}

	role, err := e.store.RoleByID(ctx, grant.RoleID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidKey.withCause(errors.New("registration key grants an unknown role"))
	}
	if err != nil {
		return nil, storeError("role by id", err)
	}
	return role, nil
}

// verifyHuman decides whether this registration must pass a challenge and,
// if so, validates the token with the provider. It reports whether a
// challenge was required. A counter that cannot be read requires a
// challenge.
func (e *Engine) verifyHuman(ctx context.Context, setting Setting, token string) (bool, error) {
	var count int64
	if setting.Verification == VerifyCount {
		n, err := e.counter.Count(ctx)
		if err != nil {
			e.logger.WarnContext(ctx, "verification counter read failed", "error", err)
			n = setting.VerificationThreshold
		}
		count = n
	}

	if !policy.ShouldChallenge(setting.Verification, count, setting.VerificationThreshold) {
		return false, nil
	}
	e.metricInc(MetricVerificationChallenged)

	if e.verifier == nil {
		e.metricInc(MetricVerificationFailed)
		return true, ErrVerificationFailed.withCause(errors.New("no human verifier configured"))
	}

	ok, err := e.verifier.Verify(ctx, token, clientIPFromContext(ctx))
	if err != nil {
		e.metricInc(MetricVerificationFailed)
		e.logger.WarnContext(ctx, "human verification provider failed", "error", err)
		return true, ErrVerificationFailed.withCause(err)
	}
	if !ok {
		e.metricInc(MetricVerificationFailed)
		return true, ErrVerificationFailed
	}

	return true, nil
}

// recordVerification updates the rolling counter after a successful
// registration and reports whether the next registration will be
// challenged. In count mode a skipped challenge increments the counter and a
// passed challenge resets it.
func (e *Engine) recordVerification(ctx context.Context, setting Setting, challenged bool) bool {
	switch setting.Verification {
	case VerifyOpen:
		return true
	case VerifyCount:
	default:
		return false
	}

	if challenged {
		if err := e.counter.Reset(ctx); err != nil {
			e.logger.WarnContext(ctx, "verification counter reset failed", "error", err)
		}
		return policy.NextChallenge(VerifyCount, 0, setting.VerificationThreshold)
	}

	n, err := e.counter.Increment(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "verification counter increment failed", "error", err)
		return true
	}
	return policy.NextChallenge(VerifyCount, n, setting.VerificationThreshold)
}
