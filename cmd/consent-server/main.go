package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mysehat/consent/internal/config"
	"github.com/mysehat/consent/internal/domain/aigov"
	"github.com/mysehat/consent/internal/domain/audit"
	"github.com/mysehat/consent/internal/domain/consent"
	"github.com/mysehat/consent/internal/domain/emergency"
	"github.com/mysehat/consent/internal/domain/hospital"
	"github.com/mysehat/consent/internal/platform/auth"
	"github.com/mysehat/consent/internal/platform/db"
	"github.com/mysehat/consent/internal/platform/kvstore"
	"github.com/mysehat/consent/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "consent-server",
		Short: "DPDP consent and audit API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the consent API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the consent store schema in PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrate")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := kvstore.NewPostgres(pool).Bootstrap(ctx); err != nil {
				return fmt.Errorf("bootstrap consent store: %w", err)
			}
			fmt.Println("Consent store schema is up to date.")
			return nil
		},
	}
}

// openStore builds the root key-value store from the configured backend.
// The returned cleanup closes the postgres pool when one was opened.
func openStore(ctx context.Context, cfg *config.Config) (kvstore.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		store := kvstore.NewPostgres(pool)
		if err := store.Bootstrap(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("bootstrap consent store: %w", err)
		}
		return store, pool.Close, nil
	case config.BackendFile:
		store, err := kvstore.OpenFile(cfg.StorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open store file: %w", err)
		}
		return store, func() {}, nil
	default:
		return kvstore.NewMemory(), func() {}, nil
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Store
	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open consent store")
	}
	defer closeStore()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("consent store ready")

	var pool *pgxpool.Pool
	if pg, ok := store.(*kvstore.Postgres); ok {
		pool = pg.Pool()
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-User-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.JWTSecret),
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
		}))
	}

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))

	// Domain registries. The hospital, emergency, and AI services route
	// their audit writes through the owning user's consent manager so
	// each user keeps a single audit trail.
	consents := consent.NewRegistry(store, logger)
	hospitals := hospital.NewRegistry(store, func(userID string) hospital.Recorder {
		return consents.Manager(userID)
	}, logger)
	emergencies := emergency.NewRegistry(store, func(userID string) emergency.ConsentSource {
		return consents.Manager(userID)
	}, logger)
	aiGov := aigov.NewRegistry(store, func(userID string) aigov.ConsentSource {
		return consents.Manager(userID)
	}, logger)

	consent.NewHandler(consents).RegisterRoutes(apiV1)
	audit.NewHandler(consents).RegisterRoutes(apiV1)
	hospital.NewHandler(hospitals).RegisterRoutes(apiV1)
	emergency.NewHandler(emergencies).RegisterRoutes(apiV1)
	aigov.NewHandler(aiGov).RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
