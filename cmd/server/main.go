// Persona Chat - multi-agent persona chat server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/personachat/internal/agent"
	"github.com/ashureev/personachat/internal/api"
	"github.com/ashureev/personachat/internal/config"
	"github.com/ashureev/personachat/internal/domain"
	"github.com/ashureev/personachat/internal/history"
	"github.com/ashureev/personachat/internal/identity"
	"github.com/ashureev/personachat/internal/llm"
	"github.com/ashureev/personachat/internal/middleware"
	"github.com/ashureev/personachat/internal/store"
	"github.com/ashureev/personachat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "db_driver", cfg.DBDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	var extraAgents []*domain.AgentConfig
	if cfg.AgentSeedFile != "" {
		extraAgents, err = store.LoadSeedFile(cfg.AgentSeedFile)
		if err != nil {
			slog.Error("Failed to load agent seed file", "path", cfg.AgentSeedFile, "error", err)
			os.Exit(1)
		}
	}
	if err := store.Seed(ctx, repo, extraAgents, logger); err != nil {
		slog.Error("Failed to seed agent configurations", "error", err)
		os.Exit(1)
	}

	var provider llm.Provider
	if cfg.GeminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, chat turns will report a provider error")
		provider = llm.Unavailable{}
	} else {
		gemini, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("Failed to initialize Gemini client, chat turns will report a provider error", "error", err)
			provider = llm.Unavailable{Err: err}
		} else {
			slog.Info("Gemini provider initialized", "model", gemini.Model())
			provider = gemini
		}
	}

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}

	// Initialize services.
	ledger := history.NewLedger(repo, logger)
	svc := agent.NewService(agent.NewResolver(repo), ledger, provider, agent.Config{
		HistoryMaxMessages: cfg.History.MaxMessages,
		HistoryMaxChars:    cfg.History.MaxCharsPerMessage,
		LLMTimeout:         cfg.LLMTimeout,
	}, logger,
		agent.WithMetrics(agent.NewMetrics(prometheus.DefaultRegisterer)),
		agent.WithConversationLogger(conversationLogger),
	)
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	limiter := newRateLimiter(ctx, cfg, logger)
	agentHandler := agent.NewHandler(svc, repo, ledger, limiter, agent.HandlerConfig{
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}, logger)
	healthHandler := api.NewHealthHandler(repo, cfg.HealthCheckTimeout)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())
	agentHandler.RegisterRoutes(r)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// The write timeout must outlast the model call.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if closer, ok := limiter.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			slog.Error("Failed to close rate limiter", "error", err)
		}
	}
	if stopper, ok := limiter.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	slog.Info("Server stopped successfully")
}

// newRateLimiter prefers the shared Redis limiter and falls back to a
// per-process one when Redis is not configured or unreachable.
func newRateLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) agent.RateLimiter {
	rl := cfg.RateLimit
	if rl.RedisURL != "" {
		limiter, err := agent.NewRedisRateLimiter(ctx, rl.RedisURL, rl.RequestsPerWindow, rl.WindowDuration, logger)
		if err == nil {
			slog.Info("Using Redis rate limiter", "limit", rl.RequestsPerWindow, "window", rl.WindowDuration)
			return limiter
		}
		slog.Warn("Redis rate limiter unavailable, using in-memory limiter", "error", err)
	}
	slog.Info("Using in-memory rate limiter", "limit", rl.RequestsPerWindow, "window", rl.WindowDuration)
	return agent.NewMemoryRateLimiter(rl.RequestsPerWindow, rl.WindowDuration)
}
