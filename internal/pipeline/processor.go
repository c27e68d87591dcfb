// Package pipeline drives one stage of the directory queue: scan a stage
// directory for MCP documents, claim eligible jobs, run the stage's external
// check and move the job pair to the directory of its resolved status.
package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jo-hoe/mcpipeline/internal/common"
	"github.com/jo-hoe/mcpipeline/internal/mcp"
	"github.com/jo-hoe/mcpipeline/internal/stage"
)

// Checker is the external check contract of a stage. Implementations return
// ok plus an optional failure message; they must not panic and are assumed to
// always return.
type Checker interface {
	Check(ctx context.Context, dataPath string, directives mcp.Directives) (bool, string)
}

// Summary accumulates the per-pass counters.
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
}

// Processor runs one pipeline stage over its source directory: sequential,
// single pass, run to completion. Every error is per-job; a bad job never
// aborts the pass.
//
// The claim status is evidence of work in progress, not a lock: only one
// processor instance per directory is assumed. Two concurrent instances can
// both read a record before either persists the claim.
type Processor struct {
	Log      *slog.Logger
	Store    *stage.Store
	Actor    string
	Incoming mcp.Status
	Claim    mcp.Status
	Success  mcp.Status
	Failure  mcp.Status
	Checker  Checker
}

// NewValidator builds the processor for the validation stage.
func NewValidator(logger *slog.Logger, store *stage.Store, checker Checker) *Processor {
	return &Processor{
		Log:      logger,
		Store:    store,
		Actor:    common.ActorValidator,
		Incoming: mcp.StatusUploaded,
		Claim:    mcp.StatusValidating,
		Success:  mcp.StatusValidated,
		Failure:  mcp.StatusValidationFailed,
		Checker:  checker,
	}
}

// NewLoader builds the processor for the loading stage.
func NewLoader(logger *slog.Logger, store *stage.Store, checker Checker) *Processor {
	return &Processor{
		Log:      logger,
		Store:    store,
		Actor:    common.ActorLoader,
		Incoming: mcp.StatusValidated,
		Claim:    mcp.StatusLoading,
		Success:  mcp.StatusLoaded,
		Failure:  mcp.StatusLoadFailed,
		Checker:  checker,
	}
}

// Run performs one full pass over the stage's source directory. Jobs are
// processed one at a time in no guaranteed order.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	dir, err := p.Store.DirFor(p.Incoming)
	if err != nil {
		return sum, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.Log.Info("source directory does not exist, nothing to do", "dir", dir)
			return sum, nil
		}
		return sum, err
	}

	p.Log.Info("scanning directory", "dir", dir, "actor", p.Actor)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), common.MCPSuffix) {
			continue
		}
		p.processOne(ctx, filepath.Join(dir, entry.Name()), &sum)
	}

	p.Log.Info("pass complete",
		"actor", p.Actor,
		"processed", sum.Processed,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"skipped", sum.Skipped)
	return sum, nil
}

func (p *Processor) processOne(ctx context.Context, mcpPath string, sum *Summary) {
	record, err := mcp.Load(mcpPath)
	if err != nil {
		p.Log.Warn("skipping unreadable mcp file", "path", mcpPath, "err", err)
		sum.Skipped++
		return
	}

	log := p.Log.With("job_id", record.JobID)
	if got := record.StatusInfo.CurrentStatus; got != p.Incoming {
		log.Debug("skipping job in different status", "status", got, "expected", p.Incoming)
		sum.Skipped++
		return
	}

	// Claim before the expensive work so an abandoned run leaves evidence on
	// disk. The claim is persisted to the current location; the pair has not
	// moved yet.
	record.Transition(p.Claim, p.Actor, "", "")
	if err := record.Save(mcpPath); err != nil {
		log.Error("failed to persist claim status, leaving job for a future pass", "err", err)
		sum.Skipped++
		return
	}
	sum.Processed++
	log.Info("processing job", "status", p.Claim)

	ok, msg := p.Checker.Check(ctx, record.CurrentDataFilepath, record.ProcessingDirectives)

	var final mcp.Status
	if ok {
		final = p.Success
		record.Transition(final, p.Actor, "", "")
		sum.Succeeded++
		log.Info("check succeeded", "status", final)
	} else {
		final = p.Failure
		record.Transition(final, p.Actor, "", msg)
		sum.Failed++
		log.Warn("check failed", "status", final, "reason", msg)
	}

	if err := p.Store.Relocate(record, final); err != nil {
		if final != p.Failure || !dataFileMissing(record.CurrentDataFilepath) {
			log.Error("critical: relocation failed, mcp not saved in target directory",
				"status", final, "err", err)
			return
		}
		// The job failed because its data file is gone; archive the metadata
		// alone so the failure does not stick in the stage directory.
		if archErr := p.Store.RelocateMCPOnly(record, final); archErr != nil {
			log.Error("critical: relocation failed, mcp not saved in target directory",
				"status", final, "err", err, "archive_err", archErr)
			return
		}
		log.Warn("data file gone, archived mcp document alone", "status", final)
	}
	if err := record.Save(record.CurrentMCPFilepath); err != nil {
		log.Error("critical: failed to save final mcp state after move",
			"status", final, "path", record.CurrentMCPFilepath, "err", err)
	}
}

func dataFileMissing(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}
