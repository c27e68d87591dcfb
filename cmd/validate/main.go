package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	appcfg "github.com/jo-hoe/mcpipeline/internal/config"
	"github.com/jo-hoe/mcpipeline/internal/pipeline"
	"github.com/jo-hoe/mcpipeline/internal/rules"
	"github.com/jo-hoe/mcpipeline/internal/stage"
)

func main() {
	configPath := flag.String("config", "", "path to pipeline.yaml (optional)")
	flag.Parse()

	cfg, err := appcfg.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// Rules are mandatory: validating without them would fail every job.
	validator, err := rules.Load(logger, cfg.RulesPath)
	if err != nil {
		logger.Error("failed to load validation rules", "err", err)
		os.Exit(1)
	}

	store := stage.NewStore(logger, cfg.BaseDir)
	proc := pipeline.NewValidator(logger, store, validator)

	sum, err := proc.Run(context.Background())
	if err != nil {
		logger.Error("validation pass failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("processed=%d succeeded=%d failed=%d skipped=%d\n",
		sum.Processed, sum.Succeeded, sum.Failed, sum.Skipped)
}
