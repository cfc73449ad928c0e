// Develove - local AI code generation server
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

	"github.com/develove/develove/internal/api"
	"github.com/develove/develove/internal/config"
	"github.com/develove/develove/internal/installer"
	"github.com/develove/develove/internal/llm"
	"github.com/develove/develove/internal/middleware"
	"github.com/develove/develove/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	probe := installer.NewProbe(cfg.OllamaHost)
	orch := installer.NewOrchestrator(probe, installer.NewExecRunner(), cfg.MarkerPath, cfg.Models, cfg.HealthWait)
	gateway := llm.NewGateway(cfg.OllamaHost, cfg.DefaultModel(), cfg.GenerateTimeout)

	// Health state is always recomputed, never read from the marker.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 5*time.Second)
	slog.Info("Runtime state",
		"installed", orch.Installed(),
		"server_running", probe.ServerRunning(startupCtx))
	startupCancel()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, gateway, orch, probe)
	installHandler := api.NewInstallHandler(baseHandler)
	chatHandler := api.NewChatHandler(baseHandler)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	installHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)

	// Create server. Installation requests can run for minutes (model pull),
	// so writes are not bounded.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
