package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/oauth2"
)

// LinuxDo Connect endpoints used when Config leaves them empty.
const (
	DefaultAuthURL    = "https://connect.linux.do/oauth2/authorize"
	DefaultTokenURL   = "https://connect.linux.do/oauth2/token"
	DefaultProfileURL = "https://connect.linux.do/api/user"
	DefaultScope      = "user"
)

const maxBodyBytes = 64 << 10

var (
	// ErrAuthCodeMissing is returned when Login receives an empty code.
	ErrAuthCodeMissing = errors.New("authorization code missing")
	// ErrConfigMissing is returned when client id, secret, or redirect URI
	// are not configured.
	ErrConfigMissing = errors.New("oauth provider config missing")
	// ErrTokenExchange is returned when the code-for-token call fails.
	ErrTokenExchange = errors.New("oauth token exchange failed")
	// ErrProfileFetch is returned when the profile call fails.
	ErrProfileFetch = errors.New("oauth profile fetch failed")
)

// Config names the provider client registration and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	ProfileURL   string
	Scopes       []string
}

// Bridge talks to one OAuth provider. It is safe for concurrent use.
type Bridge struct {
	config Config
	oauth  *oauth2.Config
	client *http.Client
}

// NewBridge fills endpoint defaults and returns a Bridge. A nil client uses
// http.DefaultClient. Missing credentials are reported per call, not here.
func NewBridge(cfg Config, client *http.Client) *Bridge {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.ProfileURL == "" {
		cfg.ProfileURL = DefaultProfileURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{DefaultScope}
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &Bridge{
		config: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: client,
	}
}

// AuthorizationURL returns the provider authorize URL carrying client id,
// redirect URI, response type "code" and the configured scope. The result
// depends only on configuration.
func (b *Bridge) AuthorizationURL() (string, error) {
	if b.config.ClientID == "" || b.config.RedirectURI == "" {
		return "", ErrConfigMissing
	}
	return b.oauth.AuthCodeURL(""), nil
}

// Login exchanges code for an access token and fetches the profile it
// grants.
func (b *Bridge) Login(ctx context.Context, code string) (*Profile, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrAuthCodeMissing
	}

	token, err := b.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	return b.FetchProfile(ctx, token)
}

// Exchange trades code for a token at the token endpoint.
func (b *Bridge) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if b.config.ClientID == "" || b.config.ClientSecret == "" || b.config.RedirectURI == "" {
		return nil, ErrConfigMissing
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.client)
	token, err := b.oauth.Exchange(ctx, code)
	if err != nil {
		builder := oops.Code("OAUTH_TOKEN_EXCHANGE").With("endpoint", b.config.TokenURL).With("cause", err.Error())
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			if re.Response != nil {
				builder = builder.With("status", re.Response.StatusCode)
			}
			builder = builder.With("body", truncate(string(re.Body)))
		}
		return nil, builder.Wrap(ErrTokenExchange)
	}
	if token.AccessToken == "" {
		return nil, oops.Code("OAUTH_TOKEN_EXCHANGE").With("endpoint", b.config.TokenURL).Wrapf(ErrTokenExchange, "response carried no access token")
	}

	return token, nil
}

// FetchProfile reads the profile endpoint with token as bearer credential.
func (b *Bridge) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	if token == nil || token.AccessToken == "" {
		return nil, ErrProfileFetch
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.config.ProfileURL, nil)
	if err != nil {
		return nil, oops.Code("OAUTH_PROFILE_FETCH").With("cause", err.Error()).Wrap(ErrProfileFetch)
	}
	req.Header.Set("Accept", "application/json")
	token.SetAuthHeader(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, oops.Code("OAUTH_PROFILE_FETCH").With("endpoint", b.config.ProfileURL).With("cause", err.Error()).Wrap(ErrProfileFetch)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, oops.Code("OAUTH_PROFILE_FETCH").With("endpoint", b.config.ProfileURL).With("cause", err.Error()).Wrap(ErrProfileFetch)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, oops.Code("OAUTH_PROFILE_FETCH").
			With("endpoint", b.config.ProfileURL).
			With("status", resp.StatusCode).
			With("body", truncate(string(body))).
			Wrap(ErrProfileFetch)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, oops.Code("OAUTH_PROFILE_FETCH").
			With("endpoint", b.config.ProfileURL).
			With("body", truncate(string(body))).
			Wrapf(ErrProfileFetch, "decode profile: %v", err)
	}

	return &profile, nil
}

func truncate(s string) string {
	const limit = 512
	if len(s) <= limit {
		return s
	}
	return s[:limit] + fmt.Sprintf("...(%d bytes)", len(s))
}
