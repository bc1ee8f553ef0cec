package oauth

import (
	"encoding/json"
	"fmt"
)

// Profile is the external identity returned by the provider.
//
// The provider sends "id" as a JSON number; it is kept as its decimal string
// form so it can be compared and stored without precision loss.
type Profile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	AvatarTemplate string `json:"avatar_template"`
	Active         bool   `json:"active"`
	Silenced       bool   `json:"silenced"`
	TrustLevel     *int   `json:"trust_level"`
}

// Level returns the trust level, or 0 when the provider sent none.
func (p *Profile) Level() int {
	if p == nil || p.TrustLevel == nil {
		return 0
	}
	return *p.TrustLevel
}

// Valid reports whether the profile carries the id and username needed to
// link a local account.
func (p *Profile) Valid() bool {
	return p != nil && p.ID != "" && p.Username != ""
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	type alias Profile
	raw := struct {
		ID json.RawMessage `json:"id"`
		*alias
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.ID = ""
	if len(raw.ID) == 0 || string(raw.ID) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw.ID, &s); err == nil {
		p.ID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw.ID, &n); err != nil {
		return fmt.Errorf("profile id: %w", err)
	}
	p.ID = n.String()
	return nil
}
