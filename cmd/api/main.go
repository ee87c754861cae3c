package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/carebridge/securitycore/internal/auth"
	"github.com/carebridge/securitycore/internal/background"
	"github.com/carebridge/securitycore/internal/config"
	"github.com/carebridge/securitycore/internal/database"
	"github.com/carebridge/securitycore/internal/handlers"
	"github.com/carebridge/securitycore/internal/models"
	"github.com/carebridge/securitycore/internal/ratelimit"
	"github.com/carebridge/securitycore/internal/repositories"
	"github.com/carebridge/securitycore/internal/routes"
	"github.com/carebridge/securitycore/internal/services"
	pkgauth "github.com/carebridge/securitycore/pkg/auth"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
	"github.com/go-chi/chi/v5"
)

func main() {
	logLevel := parseLogLevel(os.Getenv("LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
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
	accountRepo := repositories.NewAccountRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	eventRepo := repositories.NewSecurityEventRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)

	// Initialize token and TOTP managers
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	totpManager, err := auth.NewTOTPManager(cfg.MFA.EncryptionKey, cfg.MFA.Issuer)
	if err != nil {
		logger.Error("failed to initialize TOTP manager", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	auditService := services.NewAuditService(eventRepo, auditRepo, logger)

	lockoutService := services.NewLockoutService(accountRepo, auditService, services.LockoutConfig{
		MaxFailedAttempts: cfg.Lockout.MaxFailedAttempts,
		LockDuration:      cfg.Lockout.LockDuration,
	}, logger)

	mfaService := services.NewMFAService(accountRepo, totpManager, auditService, logger)

	monitorService := services.NewMonitorService(attemptRepo, accountRepo, auditService, cfg.Monitor, logger)

	authService := services.NewAuthService(
		accountRepo,
		sessionRepo,
		attemptRepo,
		lockoutService,
		mfaService,
		auditService,
		tokenManager,
		cfg.Auth.AttemptRetention,
		logger,
	)

	// Alert pipeline. The channel is buffered and writes never block;
	// alerts dropped under pressure still live in the event stream.
	alertCh := make(chan models.Alert, 64)

	notifierCtx, notifierCancel := context.WithCancel(context.Background())
	defer notifierCancel()

	if cfg.Alerts.Enabled {
		alertSender, err := services.NewAWSSESAlertSender(
			cfg.Alerts.AWSRegion,
			cfg.Alerts.FromAddress,
			cfg.Alerts.ToAddress,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize alert sender", slog.Any("error", err))
			os.Exit(1)
		}

		notifier := services.NewAlertNotifier(alertSender, logger)
		go notifier.Run(notifierCtx, alertCh)
	} else {
		go drainAlerts(notifierCtx, alertCh)
	}

	// Rate limit windows
	rateLimits := ratelimit.NewStore(5*time.Minute, logger)
	defer rateLimits.Stop()

	// Bootstrap first admin account if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminAccount(bootCtx, accountRepo, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}
	bootCancel()

	cookieConfig := auth.CookieConfig{
		Secure: cfg.Server.Env == "production",
	}

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, cookieConfig, cfg.Auth.SessionIdleTimeout)
	mfaHandler := handlers.NewMFAHandler(mfaService)
	securityHandler := handlers.NewSecurityHandler(lockoutService, auditService, monitorService, alertCh)

	// Setup router
	router := chi.NewRouter()
	routes.RegisterRoutes(router, authHandler, mfaHandler, securityHandler, routes.Config{
		TokenManager: tokenManager,
		RateLimits:   rateLimits,
		IPConfig:     ipConfig,
		CookieConfig: cookieConfig,
		Env:          cfg.Server.Env,
		Logger:       logger,
	})

	// Health check with database
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background sweeps and the scheduled monitor scan
	sweepManager := background.NewSweepManager(attemptRepo, auditRepo, sessionRepo, monitorService, alertCh, background.SweepConfig{
		SweepInterval:      cfg.Auth.SweepInterval,
		ScanInterval:       cfg.Monitor.ScanInterval,
		AuditRetention:     cfg.Auth.AuditRetention,
		SessionIdleTimeout: cfg.Auth.SessionIdleTimeout,
	}, logger)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweepManager.Start(sweepCtx)

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

	sweepCancel()
	sweepManager.Stop()
	notifierCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// drainAlerts keeps the alert channel from filling when email delivery
// is disabled. The alerts are already persisted as security events.
func drainAlerts(ctx context.Context, alerts <-chan models.Alert) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-alerts:
			if !ok {
				return
			}
		}
	}
}

// ensureAdminAccount creates the first admin account if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminAccount(ctx context.Context, accountRepo *repositories.AccountRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin account creation")
		return nil
	}

	// Check if admin already exists
	_, err := accountRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin account already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	if err := pkgauth.ValidatePassword(adminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD is too weak: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now()
	admin := &models.Account{
		Email:             adminEmail,
		Name:              "Admin",
		PasswordHash:      hashedPassword,
		Role:              "admin",
		Status:            "active",
		PasswordChangedAt: &now,
	}

	if _, err := accountRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("admin account created successfully")
	return nil
}
