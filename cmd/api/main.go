package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cdwhitlock/warden/internal/auth"
	"github.com/cdwhitlock/warden/internal/background"
	"github.com/cdwhitlock/warden/internal/config"
	"github.com/cdwhitlock/warden/internal/database"
	"github.com/cdwhitlock/warden/internal/handlers"
	middlewareCustom "github.com/cdwhitlock/warden/internal/middleware"
	"github.com/cdwhitlock/warden/internal/repositories"
	"github.com/cdwhitlock/warden/internal/routes"
	"github.com/cdwhitlock/warden/internal/services"
	pkgauth "github.com/cdwhitlock/warden/pkg/auth"
	pkglogger "github.com/cdwhitlock/warden/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	for _, warning := range cfg.Warnings {
		logger.Warn("configuration warning", slog.String("warning", warning))
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	credRepo := repositories.NewCredentialRepository(db)
	revocationRepo := repositories.NewRevocationRepository(db)

	// Revocation records expire with the tokens they cover
	cleanupManager := background.NewCleanupManager(revocationRepo, cfg.Auth.TokenTTL, logger, cfg.Auth.CleanupInterval)

	// Token manager: issuance plus stepwise verification against the
	// revocation store and credential store
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.TokenTTL,
		revocationRepo,
		credRepo,
		cfg.Auth.FailClosed,
		logger,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	lockoutService := services.NewLockoutService(credRepo, services.LockoutConfig{
		Threshold: cfg.Auth.LockoutThreshold,
		Duration:  cfg.Auth.LockoutDuration,
	}, logger, auditLogger)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	})

	passwordPolicy := pkgauth.NewPasswordPolicy(pkgauth.DefaultPolicyConfig())

	authService := services.NewAuthService(
		credRepo,
		lockoutService,
		revocationRepo,
		tokenManager,
		passwordPolicy,
		timingDelay,
		logger,
		auditLogger,
	)

	cookies := auth.CookieConfig{Production: cfg.Server.Env == "production"}
	csrfGuard := auth.NewCSRFGuard(cfg.Auth.CSRFSecret, cfg.Auth.CSRFTokenSize)

	authHandler := handlers.NewAuthHandler(authService, csrfGuard, cookies, logger)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middlewareCustom.CSRFProtection(csrfGuard, cookies, cfg.Auth.CSRFIgnoredMethods, logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, tokenManager, cookies, logger)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
