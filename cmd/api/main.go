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

	"librarydesk/internal/api"
	"librarydesk/internal/config"
	"librarydesk/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.NewDefault(cfg.App.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := api.NewServer(ctx, cfg, log)
	if err != nil {
		log.Error("init server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer server.Close()

	if err := server.SeedAdminUser(ctx); err != nil {
		log.Error("seed admin user failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	server.StartScheduler(ctx)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", slog.String("addr", cfg.App.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", slog.String("error", err.Error()))
	}

	log.Info("server exited")
}
