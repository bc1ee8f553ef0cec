package session

import (
	"encoding/json"
	"errors"
	"time"
)

// DefaultMaxTokens is the number of concurrent sessions a user may hold.
const DefaultMaxTokens = 10

// ErrEntryCorrupt is returned when a stored entry cannot be decoded.
var ErrEntryCorrupt = errors.New("session entry corrupt")

// User is the denormalized copy of the account owner kept with the entry.
type User struct {
	ID               int64     `json:"userId"`
	Email            string    `json:"email"`
	RoleID           int64     `json:"type"`
	Status           uint8     `json:"status"`
	ExternalID       string    `json:"oauthId,omitempty"`
	ExternalUsername string    `json:"oauthUsername,omitempty"`
	CreatedAt        time.Time `json:"createTime"`
}

// Entry is the authoritative session state of one user.
type Entry struct {
	Tokens      []string  `json:"tokens"`
	User        User      `json:"user"`
	RefreshTime time.Time `json:"refreshTime"`
}

// Contains reports whether token is one of the entry's live tokens.
func (e *Entry) Contains(token string) bool {
	if e == nil || token == "" {
		return false
	}
	for _, t := range e.Tokens {
		if t == token {
			return true
		}
	}
	return false
}

// push appends token, first evicting from the front so the list never holds
// more than max tokens.
func (e *Entry) push(token string, max int) {
	if max <= 0 {
		max = DefaultMaxTokens
	}
	for len(e.Tokens) >= max {
		e.Tokens = e.Tokens[1:]
	}
	e.Tokens = append(e.Tokens, token)
}

// remove drops the first occurrence of token and reports whether it was found.
func (e *Entry) remove(token string) bool {
	for i, t := range e.Tokens {
		if t == token {
			e.Tokens = append(e.Tokens[:i:i], e.Tokens[i+1:]...)
			return true
		}
	}
	return false
}

func encodeEntry(e *Entry) ([]byte, error) {
	if e.Tokens == nil {
		e.Tokens = []string{}
	}
	return json.Marshal(e)
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, ErrEntryCorrupt
	}
	if e.Tokens == nil {
		e.Tokens = []string{}
	}
	return &e, nil
}
