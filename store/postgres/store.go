// Package postgres implements mailAuth.IdentityStore on PostgreSQL through
// pgx. The schema lives in the embedded migrations and is applied with
// Migrator.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/MrEthical07/mailAuth"
)

// uniqueViolation is the SQLSTATE reported for a unique constraint failure.
const uniqueViolation = "23505"

// poolIface is the subset of *pgxpool.Pool the store uses. pgxmock pools
// satisfy it as well.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is a PostgreSQL identity store.
type Store struct {
	pool    poolIface
	closeFn func()
}

// New wraps an existing pool. The caller owns the pool's lifetime.
func New(pool poolIface) *Store {
	return &Store{pool: pool}
}

// Open connects a pgx pool to dsn. Close releases it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("IDENTITY_STORE_CONNECT").With("operation", "open pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("IDENTITY_STORE_CONNECT").With("operation", "ping").Wrap(err)
	}
	return &Store{pool: pool, closeFn: pool.Close}, nil
}

// Close releases the pool opened by Open. It is a no-op for stores built
// with New.
func (s *Store) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

func queryError(op string, err error) error {
	return oops.Code("IDENTITY_STORE_QUERY").With("operation", op).Wrap(err)
}

// LoadSetting reads the single settings row. A missing row reads as the
// zero Setting: registration open, keys and verification off.
func (s *Store) LoadSetting(ctx context.Context) (mailAuth.Setting, error) {
	var (
		setting                  mailAuth.Setting
		reg, keyMode, verifyMode int16
	)
	err := s.pool.QueryRow(ctx,
		`SELECT registration, key_mode, verification, verification_threshold, max_users, min_trust_level
		 FROM settings WHERE id = 1`,
	).Scan(&reg, &keyMode, &verifyMode, &setting.VerificationThreshold, &setting.MaxUsers, &setting.MinTrustLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return mailAuth.Setting{}, nil
	}
	if err != nil {
		return mailAuth.Setting{}, queryError("load setting", err)
	}
	setting.Registration = mailAuth.RegistrationMode(reg)
	setting.KeyMode = mailAuth.KeyMode(keyMode)
	setting.Verification = mailAuth.VerifyMode(verifyMode)
	return setting, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, queryError("count users", err)
	}
	return n, nil
}

const userColumns = `id, email, password_hash, password_salt, role_id, COALESCE(reg_key_id, 0),
	COALESCE(external_id, ''), external_username, external_trust_level, deleted, status,
	created_at, last_active_at`

func scanUser(row pgx.Row) (*mailAuth.User, error) {
	var (
		u          mailAuth.User
		status     int16
		lastActive *time.Time
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.PasswordSalt, &u.RoleID, &u.RegKeyID,
		&u.ExternalID, &u.ExternalUsername, &u.ExternalTrustLevel, &u.Deleted, &status,
		&u.CreatedAt, &lastActive)
	if err != nil {
		return nil, err
	}
	u.Status = mailAuth.UserStatus(status)
	if lastActive != nil {
		u.LastActiveAt = *lastActive
	}
	return &u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*mailAuth.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mailAuth.ErrNotFound
	}
	if err != nil {
		return nil, queryError("user by email", err)
	}
	return u, nil
}

func (s *Store) UserByExternalID(ctx context.Context, externalID string) (*mailAuth.User, error) {
	if externalID == "" {
		return nil, mailAuth.ErrNotFound
	}
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mailAuth.ErrNotFound
	}
	if err != nil {
		return nil, queryError("user by external id", err)
	}
	return u, nil
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (*mailAuth.Account, error) {
	var a mailAuth.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, email, name, deleted FROM accounts WHERE email = $1`, email,
	).Scan(&a.ID, &a.UserID, &a.Email, &a.Name, &a.Deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mailAuth.ErrNotFound
	}
	if err != nil {
		return nil, queryError("account by email", err)
	}
	return &a, nil
}

func (s *Store) RoleByID(ctx context.Context, id int64) (*mailAuth.Role, error) {
	var r mailAuth.Role
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, allowed_domains, is_default FROM roles WHERE id = $1`, id,
	).Scan(&r.ID, &r.Name, &r.AllowedDomains, &r.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mailAuth.ErrNotFound
	}
	if err != nil {
		return nil, queryError("role by id", err)
	}
	return &r, nil
}

// DefaultRole returns the lowest-id role flagged as default.
func (s *Store) DefaultRole(ctx context.Context) (*mailAuth.Role, error) {
	var r mailAuth.Role
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, allowed_domains, is_default FROM roles WHERE is_default ORDER BY id LIMIT 1`,
	).Scan(&r.ID, &r.Name, &r.AllowedDomains, &r.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mailAuth.ErrNotFound
	}
	if err != nil {
		return nil, queryError("default role", err)
	}
	return &r, nil
}

func (s *Store) RegistrationKeyByCode(ctx context.Context, code string) (*mailAuth.RegistrationKey, error) {
	var (
		k       mailAuth.RegistrationKey
		expires *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, remaining, expires_at, role_id FROM reg_keys WHERE code = $1`, code,
	).Scan(&k.ID, &k.Code, &k.Remaining, &expires, &k.RoleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mailAuth.ErrNotFound
	}
	if err != nil {
		return nil, queryError("registration key by code", err)
	}
	if expires != nil {
		k.ExpiresAt = *expires
	}
	return &k, nil
}

// CreateUser redeems the key, inserts the user and inserts its account in
// one transaction. The key decrement is conditional on a positive balance so
// concurrent redemptions of the last use cannot both commit.
func (s *Store) CreateUser(ctx context.Context, nu mailAuth.NewUser) (*mailAuth.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, oops.Code("IDENTITY_STORE_TX").With("operation", "begin transaction").Wrap(err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // no-op after commit
	}()

	if nu.RegKeyID != 0 {
		tag, err := tx.Exec(ctx,
			`UPDATE reg_keys SET remaining = remaining - 1 WHERE id = $1 AND remaining > 0`, nu.RegKeyID)
		if err != nil {
			return nil, queryError("redeem key", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, mailAuth.ErrKeyNotRedeemable
		}
	}

	user := &mailAuth.User{
		Email:              nu.Email,
		PasswordHash:       nu.PasswordHash,
		PasswordSalt:       nu.PasswordSalt,
		RoleID:             nu.RoleID,
		RegKeyID:           nu.RegKeyID,
		ExternalID:         nu.ExternalID,
		ExternalUsername:   nu.ExternalUsername,
		ExternalTrustLevel: nu.ExternalTrustLevel,
		Status:             mailAuth.UserActive,
		CreatedAt:          nu.CreatedAt,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, password_salt, role_id, reg_key_id, external_id,
			external_username, external_trust_level, create_ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		nu.Email, nu.PasswordHash, nu.PasswordSalt, nu.RoleID, nullInt64(nu.RegKeyID), nullString(nu.ExternalID),
		nu.ExternalUsername, nu.ExternalTrustLevel, nu.CreateIP, nu.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return nil, insertError("insert user", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (user_id, email, name) VALUES ($1, $2, $3)`,
		user.ID, nu.Email, nu.AccountName)
	if err != nil {
		return nil, insertError("insert account", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, oops.Code("IDENTITY_STORE_TX").With("operation", "commit transaction").Wrap(err)
	}
	return user, nil
}

func insertError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return mailAuth.ErrDuplicate
	}
	return queryError(op, err)
}

func (s *Store) UpdateExternalTrustLevel(ctx context.Context, userID int64, level int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET external_trust_level = $2 WHERE id = $1`, userID, level)
	if err != nil {
		return queryError("update trust level", err)
	}
	if tag.RowsAffected() == 0 {
		return mailAuth.ErrNotFound
	}
	return nil
}

func (s *Store) TouchUser(ctx context.Context, userID int64, a mailAuth.Activity) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET last_active_at = $2, last_active_ip = $3, last_user_agent = $4 WHERE id = $1`,
		userID, a.At, a.IP, a.UserAgent)
	if err != nil {
		return queryError("touch user", err)
	}
	if tag.RowsAffected() == 0 {
		return mailAuth.ErrNotFound
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID int64, hash, salt string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, password_salt = $3 WHERE id = $1`,
		userID, hash, salt)
	if err != nil {
		return queryError("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return mailAuth.ErrNotFound
	}
	return nil
}

func nullInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

var _ mailAuth.IdentityStore = (*Store)(nil)
