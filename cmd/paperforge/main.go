package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"paperforge/internal/app"
	"paperforge/internal/config"
	"paperforge/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: paperforge <document> [data-dir]")
		os.Exit(2)
	}
	sourcePath := os.Args[1]
	dataDir := ""
	if len(os.Args) > 2 {
		dataDir = os.Args[2]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application := app.New(cfg, logger)

	deliverable, err := application.Run(ctx, sourcePath, dataDir)
	if err != nil {
		logger.Error("pipeline failed", "error", err)
		os.Exit(1)
	}

	logger.Info("project generated",
		"project", deliverable.ProjectName,
		"files", len(deliverable.Files),
		"failed_tasks", deliverable.FailedTasks())
}
