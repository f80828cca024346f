package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	environment "queue-bot/internal/env"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize environment
	env, err := environment.Setup(ctx)
	if err != nil {
		log.Fatalf("Failed to setup environment: %v", err)
	}

	logger := env.Logger
	logger.Info("Starting queue-bot application")

	// Start observability server in background
	if env.Servers.HTTP.Observability != nil {
		serve(logger, "observability", env.Servers.HTTP.Observability)
	}

	serve(logger, "api", env.Servers.HTTP.API)

	// Telegram нужен только для привязки контактов и уведомлений
	startTelegramBot(ctx, env)

	if err := env.Services.Workers.Start(); err != nil {
		logger.Error("Failed to start workers", slog.Any("error", err))
		shutdown(env)
		os.Exit(1)
	}

	logger.Info("Queue bot started successfully. Press Ctrl+C to stop.")
	<-ctx.Done()

	logger.Info("Shutting down application...")
	shutdown(env)
	logger.Info("Application stopped")
}

func serve(logger *slog.Logger, name string, srv *http.Server) {
	go func() {
		logger.Info("Starting "+name+" server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(name+" server error", slog.Any("error", err))
		}
	}()
}

func shutdown(env *environment.Env) {
	logger := env.Logger

	// Create context with timeout for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.Config.ShutdownDuration)
	defer cancel()

	// Сначала перестаем принимать запросы, потом дожидаемся уведомлений
	for name, srv := range map[string]*http.Server{
		"api":           env.Servers.HTTP.API,
		"observability": env.Servers.HTTP.Observability,
	} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server shutdown error", slog.String("server", name), slog.Any("error", err))
		}
	}

	if env.Clients.TelegramBot != nil {
		env.Clients.TelegramBot.Stop()
	}

	env.Services.Workers.Stop()

	done := make(chan struct{})
	go func() {
		env.Services.Orders.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("Pending notifications were not flushed before shutdown deadline")
	}

	env.Close()
}

func startTelegramBot(ctx context.Context, env *environment.Env) {
	logger := env.Logger

	if env.Clients.TelegramBot == nil || env.Services.TelegramRouter == nil {
		logger.Info("Telegram bot is disabled")
		return
	}

	env.Clients.TelegramBot.Start(ctx)

	logger.Info("Started listening for updates with router...")
	go env.Services.TelegramRouter.Run(ctx, env.Clients.TelegramBot.Updates())
}
