package internal

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// NewSessionToken returns a fresh per-session secret. The value is what a
// SessionEntry lists and what the signed credential embeds.
func NewSessionToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewUnusablePassword returns a random password for accounts that are not
// meant to sign in with one, such as federated registrations.
func NewUnusablePassword() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	var pad [12]byte
	if _, err := rand.Read(pad[:]); err != nil {
		return "", err
	}
	return id.String() + base64.RawURLEncoding.EncodeToString(pad[:]), nil
}
