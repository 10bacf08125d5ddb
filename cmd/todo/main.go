package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prperemyshlev/todo-session/internal/cli"
	"github.com/prperemyshlev/todo-session/internal/config"
	"github.com/prperemyshlev/todo-session/pkg/observability"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadClient(ctx)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := observability.InitLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	app, err := cli.Build(cfg, logger, os.Stdout)
	if err != nil {
		logger.Fatal("Failed to build client", zap.Error(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Shutdown error", zap.Error(err))
		}
	}()

	if err := app.Start(ctx); err != nil {
		logger.Error("Failed to start session", zap.Error(err))
		return
	}

	if err := app.Run(ctx, os.Stdin); err != nil {
		logger.Error("Client stopped", zap.Error(err))
	}
}
