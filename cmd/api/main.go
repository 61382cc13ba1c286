package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rodneygagnon/qckstrt/internal/api"
	"github.com/rodneygagnon/qckstrt/internal/app"
	"github.com/rodneygagnon/qckstrt/internal/auth"
	"github.com/rodneygagnon/qckstrt/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(os.Stdout, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	jwtMW, err := auth.NewJWTMiddleware(cfg.Auth.JWTSecret)
	if err != nil {
		slog.Error("AUTH_JWT_SECRET is required", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(api.Deps{
		Documents:    a.Documents,
		Orchestrator: a.Orchestrator,
		Events:       a.Adapter,
		Verifier:     a.Verifier,
		Auth:         jwtMW,
		Checks:       a.Checks,
		Logger:       logger,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
