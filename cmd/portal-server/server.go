package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/portal/portal/internal/config"
	"github.com/portal/portal/internal/domain/clinicalattribute"
	"github.com/portal/portal/internal/platform/auth"
	"github.com/portal/portal/internal/platform/db"
	"github.com/portal/portal/internal/platform/middleware"
	"github.com/portal/portal/internal/platform/openapi"
	"github.com/portal/portal/internal/platform/telemetry"
)

const (
	apiPrefix       = "/api"
	maxBodySize     = "64M"
	shutdownTimeout = 10 * time.Second
)

// serverDeps are the collaborators newServer mounts. Tests substitute the
// service, guard and pool with in-memory doubles.
type serverDeps struct {
	cfg     *config.Config
	logger  zerolog.Logger
	svc     clinicalattribute.ClinicalAttributeService
	guard   clinicalattribute.StudyGuard
	pool    db.Pinger
	metrics *telemetry.Metrics
	auth    echo.MiddlewareFunc
}

func newAPIDocs(baseURL string) *openapi.Generator {
	docs := openapi.NewGenerator("Portal API", version, baseURL)
	docs.SetDescription("Clinical attribute metadata of cancer studies")
	docs.Add(clinicalattribute.Operations(apiPrefix)...)
	return docs
}

// newServer builds the echo instance with middleware and routes installed.
func newServer(d serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	e.Use(telemetry.TracingMiddleware(nil))
	e.Use(d.metrics.Middleware())
	e.Use(middleware.Logger(d.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  d.cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"total-count", middleware.RequestIDHeader},
	}))
	e.Use(d.auth)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(d.pool))
	e.GET("/metrics", d.metrics.Handler())
	newAPIDocs("").RegisterRoutes(e)

	// API group
	api := e.Group(apiPrefix)
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: d.cfg.RateLimitRPS,
		BurstSize:         d.cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(middleware.BodyLimit(maxBodySize))
	api.Use(middleware.RequestTimeout(d.cfg.RequestTimeout))

	clinicalattribute.NewHandler(d.svc, d.guard).RegisterRoutes(api)
	return e
}

// authMiddleware picks the development bypass or JWT verification. The JWT
// verifier uses the shared HMAC key when configured, otherwise the issuer's
// JWKS.
func authMiddleware(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (echo.MiddlewareFunc, error) {
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: all requests are granted admin access")
		return auth.DevAuthMiddleware(), nil
	}

	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		Skipper:  auth.AuthSkipper,
	}

	key, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	if key != nil {
		jwtCfg.SigningKey = key
		return auth.JWTMiddleware(jwtCfg), nil
	}

	jwksURL, err := auth.ResolveJWKSURL(ctx, cfg.AuthIssuer, cfg.AuthJWKSURL)
	if err != nil {
		return nil, err
	}
	jwtCfg.KeyFunc, err = auth.NewJWKSKeyFunc(ctx, jwksURL, logger)
	if err != nil {
		return nil, err
	}
	return auth.JWTMiddleware(jwtCfg), nil
}

// newLogger writes JSON to w, or human-readable lines in development. A nil
// cfg is used before configuration has loaded.
func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		bootLogger := newLogger(os.Stdout, nil)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	logger := newLogger(os.Stdout, cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Telemetry
	telCfg := telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	}
	shutdownTracing, err := telemetry.Setup(ctx, telCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown failed")
		}
	}()

	metrics := telemetry.NewMetrics(telCfg)
	if err := metrics.RegisterPool(pool.Stat); err != nil {
		logger.Fatal().Err(err).Msg("failed to register pool metrics")
	}

	// Auth
	authMW, err := authMiddleware(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure authentication")
	}

	repo := clinicalattribute.NewClinicalAttributeRepoPG(pool)
	e := newServer(serverDeps{
		cfg:     cfg,
		logger:  logger,
		svc:     clinicalattribute.NewService(repo),
		guard:   auth.NewStudyGuard(cfg.PublicStudies, repo),
		pool:    pool,
		metrics: metrics,
		auth:    authMW,
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
