// Assessor - guided assessment chat server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/assessor/internal/api"
	"github.com/ashureev/assessor/internal/chatws"
	"github.com/ashureev/assessor/internal/config"
	"github.com/ashureev/assessor/internal/dialog"
	"github.com/ashureev/assessor/internal/health"
	"github.com/ashureev/assessor/internal/identity"
	"github.com/ashureev/assessor/internal/llm"
	"github.com/ashureev/assessor/internal/middleware"
	"github.com/ashureev/assessor/internal/retention"
	"github.com/ashureev/assessor/internal/store"
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

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected")

	if !cfg.LLMReady() {
		slog.Warn("OPENAI_API_KEY not set; chat turns will return the fallback message")
	}
	completer := llm.NewCompleter(cfg.LLM.Mode, cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)

	// Initialize services.
	svc := dialog.NewService(repo, completer, dialog.Options{
		HistoryWindow: cfg.HistoryWindow,
		LLMTimeout:    cfg.LLM.Timeout,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
	})
	hub := chatws.NewHub()
	svc.SetNotifier(hub)

	// Initialize handlers.
	apiHandler := api.NewHandler(svc, cfg.MaxUploadBytes)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	apiHandler.UseForChat(limiter.Middleware(func(r *http.Request) string {
		return chi.URLParam(r, "sessionID")
	}))
	healthHandler := api.NewHealthHandler(repo, cfg.LLMReady())
	wsHandler := chatws.NewHandler(svc, hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(middleware.CORSOptions{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedHeaders: []string{identity.RespondentHeaderName},
		ExposedHeaders: []string{"Content-Disposition", "Retry-After"},
		MaxAge:         10 * time.Minute,
	}))
	r.Use(identity.Middleware)

	healthHandler.RegisterHealth(r)
	apiHandler.RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	var grpcLis net.Listener
	if cfg.GRPCPort != "" {
		grpcLis, err = net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	sweeper := retention.NewSweeper(repo, cfg.SessionRetention, 0, hub.CloseSession)
	g.Go(func() error { return sweeper.Run(gctx) })

	if grpcLis != nil {
		hs := health.NewServer(repo.Ping, 0)
		g.Go(func() error { return hs.Serve(gctx, grpcLis) })
	}

	return g.Wait()
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
