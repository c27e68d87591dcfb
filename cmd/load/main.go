package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jo-hoe/mcpipeline/internal/common"
	appcfg "github.com/jo-hoe/mcpipeline/internal/config"
	"github.com/jo-hoe/mcpipeline/internal/pipeline"
	"github.com/jo-hoe/mcpipeline/internal/stage"
	"github.com/jo-hoe/mcpipeline/internal/target"
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

	reg := target.NewRegistry()
	reg.Add(common.TargetTypeSimulated, target.NewSimulated(logger, cfg.Loader.MinDelay, cfg.Loader.MaxDelay))
	reg.Add(common.TargetTypeSQLite, target.NewSQLiteSink(logger, cfg.Loader.SQLitePath))

	store := stage.NewStore(logger, cfg.BaseDir)
	proc := pipeline.NewLoader(logger, store, reg)

	sum, err := proc.Run(context.Background())
	if err != nil {
		logger.Error("loading pass failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("processed=%d succeeded=%d failed=%d skipped=%d\n",
		sum.Processed, sum.Succeeded, sum.Failed, sum.Skipped)
}
