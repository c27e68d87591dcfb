package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	appcfg "github.com/jo-hoe/mcpipeline/internal/config"
	"github.com/jo-hoe/mcpipeline/internal/datagen"
	"github.com/jo-hoe/mcpipeline/internal/intake"
	"github.com/jo-hoe/mcpipeline/internal/stage"
)

func main() {
	configPath := flag.String("config", "", "path to pipeline.yaml (optional)")
	department := flag.String("department", "", "uploading department (e.g. Sales, Marketing)")
	filename := flag.String("filename", "", "base name for the uploaded file (without extension)")
	flag.Parse()

	if *department == "" || *filename == "" {
		fmt.Fprintln(os.Stderr, "both -department and -filename are required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := appcfg.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	store := stage.NewStore(logger, cfg.BaseDir)
	svc := intake.New(logger, store, datagen.CSV{})

	record, err := svc.SubmitNew(*department, *filename)
	if err != nil {
		logger.Error("upload failed", "err", err)
		os.Exit(1)
	}
	logger.Info("upload complete", "job_id", record.JobID, "status", record.StatusInfo.CurrentStatus)
}
