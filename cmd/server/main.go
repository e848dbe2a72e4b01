package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/adapters/backend"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/adapters/logging"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/adapters/paystack"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/adapters/postgres"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/adapters/secrets"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/auth"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/catalog"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/config"
	paymentsHandler "github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/handlers/payments"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/middleware"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/services/checkout"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/services/entitlement"
	subscriptionService "github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/services/subscription"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/internal/services/verification"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/httpclient"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/observability"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/resilience"
	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/shutdown"
)

func main() {
	// Local development convenience; production injects real env vars.
	_ = godotenv.Load()

	cfg, cfgErr := config.LoadFromEnv()

	logger := initLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting subscription service",
		zap.String("version", "0.1.0"),
	)

	if cfgErr != nil {
		// Keep the health endpoint up and red instead of crash-looping;
		// the deploy fails its readiness probe with a visible reason.
		logger.Error("Configuration invalid", zap.Error(cfgErr))
		healthChecker := observability.NewHealthChecker(nil, cfgErr)
		metricsServer := observability.StartMetricsServer("9090", healthChecker)
		sm := shutdown.NewManager(logger, 10*time.Second)
		sm.Register("metrics-server", func(ctx context.Context) error {
			return observability.ShutdownMetricsServer(metricsServer)
		})
		sm.WaitForShutdown()
		return
	}

	ctx := context.Background()

	if err := secrets.LoadProcessorSecrets(ctx, cfg, logger); err != nil {
		logger.Fatal("Failed to load processor secrets", zap.Error(err))
	}

	dbPool, err := initDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	portLogger := logging.NewZapLogger(logger)

	// Adapters
	db := postgres.NewDBExecutor(dbPool)
	subscriptionRepo := postgres.NewSubscriptionRepository(dbPool)
	paymentRepo := postgres.NewPaymentRepository(dbPool)
	bypassRepo := postgres.NewBypassRepository(dbPool)

	processorHTTP := httpclient.New(httpclient.ProcessorConfig(), time.Duration(cfg.Processor.Timeout)*time.Second)
	backendHTTP := httpclient.New(httpclient.BackendConfig(), time.Duration(cfg.Backend.Timeout)*time.Second)

	gateway := paystack.NewClient(cfg.Processor.BaseURL, cfg.Processor.SecretKey, processorHTTP, portLogger)
	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.ServiceToken, backendHTTP, portLogger)

	// Services
	planCatalog := catalog.New(cfg.Payments.Currency, cfg.Processor.MonthlyPlanCode, cfg.Processor.AnnualPlanCode)
	orchestrator := checkout.NewOrchestrator(
		planCatalog, backendClient, gateway, paymentRepo, portLogger,
		cfg.Payments.CallbackURL, cfg.Payments.Currency, cfg.Payments.TestPaymentsEnabled,
	)
	verifier := verification.NewService(
		gateway, db, subscriptionRepo, paymentRepo, planCatalog, portLogger,
		cfg.Payments.TestPaymentsEnabled,
	)
	subscriptions := subscriptionService.NewService(subscriptionRepo, paymentRepo, gateway, planCatalog, portLogger)
	gate := entitlement.NewGate(subscriptionRepo, bypassRepo, portLogger)
	bypass := entitlement.NewBypassService(bypassRepo, portLogger)

	// HTTP surface
	verifier0 := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	authn := middleware.NewAuthenticator(verifier0, portLogger)
	rateLimiter := middleware.NewRateLimiter(10, 20)
	securityHeaders := middleware.NewSecurityHeaders(!cfg.IsProduction())
	webhookVerifier := paystack.NewWebhookVerifier(cfg.Processor.WebhookSecret)

	handler := paymentsHandler.NewHandler(
		planCatalog, orchestrator, verifier, subscriptions, gate, bypass, webhookVerifier, portLogger,
	)

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestTimeout(resilience.DefaultTimeoutConfig()))
	router.Use(observability.Middleware)
	router.Use(securityHeaders.Middleware)
	router.Use(rateLimiter.Middleware)
	router.Mount("/", handler.Routes(authn))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthChecker := observability.NewHealthChecker(dbPool, nil)
	metricsServer := observability.StartMetricsServer(fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker)

	shutdownManager := shutdown.NewManager(logger, 30*time.Second)
	shutdownManager.Register("metrics-server", func(ctx context.Context) error {
		return observability.ShutdownMetricsServer(metricsServer)
	})
	shutdownManager.Register("rate-limiter", func(ctx context.Context) error {
		rateLimiter.Shutdown()
		return nil
	})
	shutdownManager.Register("http-server", func(ctx context.Context) error {
		return httpServer.Shutdown(ctx)
	})

	go func() {
		logger.Info("HTTP server listening",
			zap.String("address", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	shutdownManager.WaitForShutdown()
	logger.Info("Server stopped")
}

// requestTimeout bounds every request by the outermost tier of the
// timeout hierarchy. Inner layers carry their own tighter deadlines.
func requestTimeout(tc *resilience.TimeoutConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := tc.HandlerContext(r.Context())
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// initLogger builds the process logger. Falls back to development
// settings when configuration failed to load.
func initLogger(cfg *config.Config) *zap.Logger {
	if cfg == nil || cfg.Logger.Development {
		logger, _ := zap.NewDevelopment()
		return logger
	}

	zapCfg := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logger, _ := zapCfg.Build()
	return logger
}

// initDatabase creates and verifies the PostgreSQL connection pool
func initDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
