package policy

import "time"

// RegistrationMode toggles new account creation.
type RegistrationMode uint8

const (
	RegistrationOpen RegistrationMode = iota
	RegistrationClosed
)

// KeyMode selects how registration keys are consulted.
type KeyMode uint8

const (
	KeyClosed KeyMode = iota
	KeyRequired
	KeyOptional
)

// Outcome is the closed set of results a gate check can produce.
type Outcome uint8

const (
	Allowed Outcome = iota
	RegistrationDisabled
	CapacityExceeded
	MissingKey
	InvalidKey
	KeyExhausted
	KeyExpired
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case RegistrationDisabled:
		return "registration_disabled"
	case CapacityExceeded:
		return "capacity_exceeded"
	case MissingKey:
		return "missing_key"
	case InvalidKey:
		return "invalid_key"
	case KeyExhausted:
		return "key_exhausted"
	case KeyExpired:
		return "key_expired"
	default:
		return "unknown"
	}
}

// Key is the subset of a registration key the gate needs.
type Key struct {
	ID        int64
	Remaining int64
	ExpiresAt time.Time
	RoleID    int64
}

// Grant is the role a resolved key hands out. A zero Grant means the caller
// falls back to the default role.
type Grant struct {
	RoleID int64
	KeyID  int64
}

// FromKey reports whether the grant came from a redeemed registration key.
func (g Grant) FromKey() bool {
	return g.KeyID != 0
}

// CheckAdmission applies the registration toggle and the user-count ceiling.
// maxUsers <= 0 means unlimited.
func CheckAdmission(mode RegistrationMode, maxUsers, userCount int64) Outcome {
	if mode == RegistrationClosed {
		return RegistrationDisabled
	}
	if maxUsers > 0 && userCount >= maxUsers {
		return CapacityExceeded
	}
	return Allowed
}

// ResolveKey decides which role a supplied registration code grants.
//
// key is the stored record for code, or nil when the code is unknown or was
// not looked up. Optional mode never fails: any unusable code yields a zero
// Grant.
func ResolveKey(mode KeyMode, code string, key *Key, now time.Time, loc *time.Location) (Grant, Outcome) {
	switch mode {
	case KeyRequired:
		if code == "" {
			return Grant{}, MissingKey
		}
		if key == nil {
			return Grant{}, InvalidKey
		}
		if key.Remaining <= 0 {
			return Grant{}, KeyExhausted
		}
		if KeyExpiredOn(key.ExpiresAt, now, loc) {
			return Grant{}, KeyExpired
		}
		return Grant{RoleID: key.RoleID, KeyID: key.ID}, Allowed
	case KeyOptional:
		if code == "" || key == nil || key.Remaining <= 0 || KeyExpiredOn(key.ExpiresAt, now, loc) {
			return Grant{}, Allowed
		}
		return Grant{RoleID: key.RoleID, KeyID: key.ID}, Allowed
	default:
		return Grant{}, Allowed
	}
}

// KeyExpiredOn reports whether expiry falls on a calendar day strictly before
// the day of now, both evaluated in loc. A zero expiry never expires.
func KeyExpiredOn(expiry, now time.Time, loc *time.Location) bool {
	if expiry.IsZero() {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	return startOfDay(expiry, loc).Before(startOfDay(now, loc))
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
