package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	// Bundled zone data so key expiry days resolve on minimal images.
	_ "time/tzdata"

	"github.com/MrEthical07/mailAuth"
	"github.com/MrEthical07/mailAuth/httpapi"
	"github.com/MrEthical07/mailAuth/i18n"
	"github.com/MrEthical07/mailAuth/internal/logging"
	otelexport "github.com/MrEthical07/mailAuth/metrics/export/otel"
	promexport "github.com/MrEthical07/mailAuth/metrics/export/prometheus"
	"github.com/MrEthical07/mailAuth/store/postgres"
	"github.com/MrEthical07/mailAuth/verify/turnstile"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	cmd.Flags().Bool("metrics", true, "expose Prometheus metrics at /metrics")
	cmd.Flags().Bool("trust_proxy_headers", false, "take client addresses from X-Forwarded-For and X-Real-IP")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Secrets.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	logger := logging.Setup("mailauth", version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Open(ctx, cfg.Secrets.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer store.Close()

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Secrets.RedisPassword,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	builder := mailAuth.New().
		WithConfig(cfg.engineConfig()).
		WithRedis(rdb).
		WithIdentityStore(store).
		WithLogger(logger).
		WithAuditSink(mailAuth.NewSlogSink(logger.With("component", "audit"))).
		WithHTTPClient(httpClient)
	if cfg.Secrets.TurnstileSecret != "" {
		builder = builder.WithVerifier(turnstile.New(cfg.Secrets.TurnstileSecret, cfg.Turnstile.Endpoint, httpClient))
	} else {
		logger.Warn("no turnstile secret configured; registrations that require human verification will be refused")
	}

	engine, err := builder.Build()
	if err != nil {
		return oops.Code("ENGINE_INIT_FAILED").Wrap(err)
	}
	defer engine.Close()

	opts := httpapi.Options{
		AllowedOrigins:    cfg.CORSOrigins,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Translator:        i18n.New(),
		Logger:            logger,
	}
	if cfg.Metrics {
		opts.Metrics = promexport.Handler(promexport.NewCollector(engine))
	}
	if cfg.OTelMetrics {
		exp, err := otelexport.NewExporter(otel.GetMeterProvider().Meter("github.com/MrEthical07/mailAuth"), engine)
		if err != nil {
			return oops.Code("METRICS_INIT_FAILED").Wrap(err)
		}
		defer func() { _ = exp.Close() }()
	}

	srv := httpapi.NewServer(cfg.Listen, httpapi.NewRouter(engine, opts))
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}
