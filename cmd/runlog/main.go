package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/draftsmith-hq/genprobe/internal/app"
	"github.com/draftsmith-hq/genprobe/internal/config"
	"github.com/draftsmith-hq/genprobe/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "runlog failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	history, err := app.NewHistory(cfg, log)
	if err != nil {
		log.ErrorObj("failed to initialize history", "error", err)
		return err
	}

	if err := history.Run(ctx); err != nil {
		return fmt.Errorf("history run: %w", err)
	}

	return nil
}
