// Package memory is an in-process mailAuth.IdentityStore guarded by one
// mutex. It backs tests and single-node development setups.
package memory

import (
	"context"
	"sync"

	"github.com/MrEthical07/mailAuth"
)

// Store keeps every record in maps. The zero value is not usable; call New.
type Store struct {
	mu       sync.RWMutex
	setting  mailAuth.Setting
	users    map[int64]*mailAuth.User
	accounts map[int64]*mailAuth.Account
	roles    map[int64]*mailAuth.Role
	keys     map[string]*mailAuth.RegistrationKey
	activity map[int64]mailAuth.Activity
	nextUser int64
	nextAcct int64
}

// New returns an empty store with an open registration setting.
func New() *Store {
	return &Store{
		users:    make(map[int64]*mailAuth.User),
		accounts: make(map[int64]*mailAuth.Account),
		roles:    make(map[int64]*mailAuth.Role),
		keys:     make(map[string]*mailAuth.RegistrationKey),
		activity: make(map[int64]mailAuth.Activity),
	}
}

// SetSetting replaces the setting returned by LoadSetting.
func (s *Store) SetSetting(setting mailAuth.Setting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setting = setting
}

// PutRole inserts or replaces a role.
func (s *Store) PutRole(role mailAuth.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := role
	s.roles[r.ID] = &r
}

// PutKey inserts or replaces a registration key by code.
func (s *Store) PutKey(key mailAuth.RegistrationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key
	s.keys[k.Code] = &k
}

// PutUser inserts a user and its account directly, bypassing CreateUser.
// A zero ID is assigned.
func (s *Store) PutUser(user mailAuth.User) *mailAuth.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	if u.ID == 0 {
		s.nextUser++
		u.ID = s.nextUser
	} else if u.ID > s.nextUser {
		s.nextUser = u.ID
	}
	s.users[u.ID] = &u
	s.nextAcct++
	s.accounts[s.nextAcct] = &mailAuth.Account{ID: s.nextAcct, UserID: u.ID, Email: u.Email, Deleted: u.Deleted}
	out := u
	return &out
}

// Users returns copies of every stored user.
func (s *Store) Users() []mailAuth.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mailAuth.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out
}

// Accounts returns copies of every stored account.
func (s *Store) Accounts() []mailAuth.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mailAuth.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	return out
}

// Key returns a copy of the key stored under code.
func (s *Store) Key(code string) (mailAuth.RegistrationKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[code]
	if !ok {
		return mailAuth.RegistrationKey{}, false
	}
	return *k, true
}

// LastActivity returns the activity recorded by TouchUser.
func (s *Store) LastActivity(userID int64) (mailAuth.Activity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.activity[userID]
	return a, ok
}

func (s *Store) LoadSetting(context.Context) (mailAuth.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.setting, nil
}

func (s *Store) CountUsers(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*mailAuth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, mailAuth.ErrNotFound
}

func (s *Store) UserByExternalID(_ context.Context, externalID string) (*mailAuth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if externalID != "" && u.ExternalID == externalID {
			out := *u
			return &out, nil
		}
	}
	return nil, mailAuth.ErrNotFound
}

func (s *Store) AccountByEmail(_ context.Context, email string) (*mailAuth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Email == email {
			out := *a
			return &out, nil
		}
	}
	return nil, mailAuth.ErrNotFound
}

func (s *Store) RoleByID(_ context.Context, id int64) (*mailAuth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, mailAuth.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (s *Store) DefaultRole(context.Context) (*mailAuth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *mailAuth.Role
	for _, r := range s.roles {
		if r.IsDefault && (found == nil || r.ID < found.ID) {
			found = r
		}
	}
	if found == nil {
		return nil, mailAuth.ErrNotFound
	}
	out := *found
	return &out, nil
}

func (s *Store) RegistrationKeyByCode(_ context.Context, code string) (*mailAuth.RegistrationKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[code]
	if !ok {
		return nil, mailAuth.ErrNotFound
	}
	out := *k
	return &out, nil
}

// CreateUser checks uniqueness and the key balance and applies all writes
// under one lock, so a failure leaves nothing behind.
func (s *Store) CreateUser(_ context.Context, nu mailAuth.NewUser) (*mailAuth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == nu.Email || (nu.ExternalID != "" && u.ExternalID == nu.ExternalID) {
			return nil, mailAuth.ErrDuplicate
		}
	}
	for _, a := range s.accounts {
		if a.Email == nu.Email {
			return nil, mailAuth.ErrDuplicate
		}
	}

	var key *mailAuth.RegistrationKey
	if nu.RegKeyID != 0 {
		for _, k := range s.keys {
			if k.ID == nu.RegKeyID {
				key = k
				break
			}
		}
		if key == nil || key.Remaining <= 0 {
			return nil, mailAuth.ErrKeyNotRedeemable
		}
	}

	if key != nil {
		key.Remaining--
	}

	s.nextUser++
	user := &mailAuth.User{
		ID:                 s.nextUser,
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
	s.users[user.ID] = user

	s.nextAcct++
	s.accounts[s.nextAcct] = &mailAuth.Account{
		ID:     s.nextAcct,
		UserID: user.ID,
		Email:  nu.Email,
		Name:   nu.AccountName,
	}

	out := *user
	return &out, nil
}

func (s *Store) UpdateExternalTrustLevel(_ context.Context, userID int64, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return mailAuth.ErrNotFound
	}
	u.ExternalTrustLevel = level
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, userID int64, hash, salt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return mailAuth.ErrNotFound
	}
	u.PasswordHash = hash
	u.PasswordSalt = salt
	return nil
}

func (s *Store) TouchUser(_ context.Context, userID int64, a mailAuth.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return mailAuth.ErrNotFound
	}
	u.LastActiveAt = a.At
	s.activity[userID] = a
	return nil
}

var _ mailAuth.IdentityStore = (*Store)(nil)
