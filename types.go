package mailAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/mailAuth/internal/policy"
	"github.com/MrEthical07/mailAuth/oauth"
)

// UserStatus is the moderation state of a user.
type UserStatus uint8

const (
	// UserActive is a user in good standing.
	UserActive UserStatus = iota
	// UserBanned is a user refused at login.
	UserBanned
)

// RegistrationMode toggles new account creation.
type RegistrationMode = policy.RegistrationMode

// Registration modes.
const (
	RegistrationOpen   = policy.RegistrationOpen
	RegistrationClosed = policy.RegistrationClosed
)

// KeyMode selects how registration keys are consulted.
type KeyMode = policy.KeyMode

// Registration key modes.
const (
	KeyClosed   = policy.KeyClosed
	KeyRequired = policy.KeyRequired
	KeyOptional = policy.KeyOptional
)

// VerifyMode selects when registration must pass human verification.
type VerifyMode = policy.VerifyMode

// Human-verification modes.
const (
	VerifyClosed = policy.VerifyClosed
	VerifyOpen   = policy.VerifyOpen
	VerifyCount  = policy.VerifyCount
)

// ExternalProfile is the identity returned by the federated provider.
type ExternalProfile = oauth.Profile

// User is the identity record.
type User struct {
	ID                 int64
	Email              string
	PasswordHash       string
	PasswordSalt       string
	RoleID             int64
	RegKeyID           int64
	ExternalID         string
	ExternalUsername   string
	ExternalTrustLevel int
	Deleted            bool
	Status             UserStatus
	CreatedAt          time.Time
	LastActiveAt       time.Time
}

// Account is the mailbox-facing profile owned by exactly one User.
type Account struct {
	ID      int64
	UserID  int64
	Email   string
	Name    string
	Deleted bool
}

// Role is a named permission bundle.
//
// AllowedDomains is a comma-separated list of domain glob patterns; empty
// permits every domain.
type Role struct {
	ID             int64
	Name           string
	AllowedDomains string
	IsDefault      bool
}

// RegistrationKey is a redeemable code granting RoleID. A zero ExpiresAt
// never expires.
type RegistrationKey struct {
	ID        int64
	Code      string
	Remaining int64
	ExpiresAt time.Time
	RoleID    int64
}

// Setting is the snapshot of service policy read at the start of each use
// case. MaxUsers and MinTrustLevel <= 0 mean unlimited.
type Setting struct {
	Registration          RegistrationMode
	KeyMode               KeyMode
	Verification          VerifyMode
	VerificationThreshold int64
	MaxUsers              int64
	MinTrustLevel         int
}

// NewUser is everything CreateUser persists in one atomic write: the User,
// its Account and, when RegKeyID is set, the conditional decrement of that
// key.
type NewUser struct {
	Email              string
	PasswordHash       string
	PasswordSalt       string
	RoleID             int64
	RegKeyID           int64
	ExternalID         string
	ExternalUsername   string
	ExternalTrustLevel int
	AccountName        string
	CreatedAt          time.Time
	CreateIP           string
}

// Activity is the last-activity bookkeeping written after a login.
type Activity struct {
	IP        string
	UserAgent string
	At        time.Time
}

// IdentityStore is the persistent store of users, accounts, roles,
// registration keys and settings.
//
// Lookups that match nothing return ErrNotFound. CreateUser must be atomic:
// on any error no User, Account or key decrement is visible. A key with no
// remaining uses at commit time yields ErrKeyNotRedeemable; a taken email or
// external id yields ErrDuplicate.
type IdentityStore interface {
	LoadSetting(ctx context.Context) (Setting, error)
	CountUsers(ctx context.Context) (int64, error)
	// UserByEmail includes soft-deleted users.
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByExternalID(ctx context.Context, externalID string) (*User, error)
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	RoleByID(ctx context.Context, id int64) (*Role, error)
	DefaultRole(ctx context.Context) (*Role, error)
	RegistrationKeyByCode(ctx context.Context, code string) (*RegistrationKey, error)
	CreateUser(ctx context.Context, u NewUser) (*User, error)
	UpdateExternalTrustLevel(ctx context.Context, userID int64, level int) error
	// UpdatePassword replaces the stored hash and salt.
	UpdatePassword(ctx context.Context, userID int64, hash, salt string) error
	TouchUser(ctx context.Context, userID int64, a Activity) error
}

// HumanVerifier validates a human-verification token with the provider.
type HumanVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	VerificationToken string `json:"token"`
	RegistrationKey   string `json:"code"`
}

// RegisterResult reports the created user and whether the next registration
// will have to pass human verification.
type RegisterResult struct {
	UserID                int64 `json:"userId"`
	RoleID                int64 `json:"roleId"`
	NextChallengeRequired bool  `json:"regVerifyOpen"`
}

// LoginResult carries the signed session credential.
type LoginResult struct {
	Credential string `json:"token"`
	UserID     int64  `json:"userId"`
}
