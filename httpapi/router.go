// Package httpapi exposes the mailAuth use cases over HTTP with chi.
//
// Every response is a JSON envelope {code, message, data}. code mirrors the
// HTTP status and message is rendered from the error's message key in the
// language negotiated from Accept-Language.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrEthical07/mailAuth"
	"github.com/MrEthical07/mailAuth/i18n"
	"github.com/MrEthical07/mailAuth/middleware"
)

// Service is the set of use cases the router serves. *mailAuth.Engine
// satisfies it.
type Service interface {
	Register(ctx context.Context, req mailAuth.RegisterRequest) (*mailAuth.RegisterResult, error)
	Login(ctx context.Context, email, pwd string) (*mailAuth.LoginResult, error)
	Logout(ctx context.Context, userID int64) error
	Authenticate(ctx context.Context, credential string) (mailAuth.Session, error)
	AuthorizationURL() (string, error)
	OAuthLoginWithCode(ctx context.Context, code string) (*mailAuth.LoginResult, error)
	Health(ctx context.Context) mailAuth.HealthStatus
}

// Options configures NewRouter.
type Options struct {
	// AllowedOrigins enables CORS for the listed origins. Empty disables CORS.
	AllowedOrigins []string
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable it only behind a proxy that overwrites them; the
	// address feeds the per-IP throttles.
	TrustProxyHeaders bool
	// Metrics, when set, is mounted at GET /metrics.
	Metrics    http.Handler
	Translator *i18n.Translator
	Logger     *slog.Logger
}

type handler struct {
	svc    Service
	tr     *i18n.Translator
	logger *slog.Logger
}

// NewRouter returns the HTTP handler for svc.
func NewRouter(svc Service, opts Options) http.Handler {
	h := &handler{
		svc:    svc,
		tr:     opts.Translator,
		logger: opts.Logger,
	}
	if h.tr == nil {
		h.tr = i18n.New()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	r := chi.NewRouter()
	if opts.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.ClientInfo)

	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.With(middleware.Guard(svc, h.deny)).Delete("/logout", h.logout)
	r.Get("/oauth/linuxdo/url", h.oauthURL)
	r.Post("/oauth/linuxdo/callback", h.oauthCallback)
	r.Get("/healthz", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	return r
}

// NewServer wraps handler in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
