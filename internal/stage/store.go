package stage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jo-hoe/mcpipeline/internal/common"
	"github.com/jo-hoe/mcpipeline/internal/mcp"
)

// ErrUnknownStatus is returned when a status has no directory assigned. This
// is a configuration error, never silently mapped to a default directory.
var ErrUnknownStatus = errors.New("no directory for status")

// ErrPartialMove marks a relocation that moved the data file but failed on
// the MCP file. The store attempts to move the data file back; whether that
// revert succeeded is part of the wrapped error text. Either way the record's
// on-disk state needs external reconciliation before the job is trusted again.
var ErrPartialMove = errors.New("partial relocation")

// Store owns the status→directory table and relocates the data/MCP file pair
// between stage directories.
type Store struct {
	log  *slog.Logger
	dirs map[mcp.Status]string
}

// NewStore builds a Store rooted at baseDir. The table is closed: every
// status of the enum has exactly one directory.
func NewStore(logger *slog.Logger, baseDir string) *Store {
	return &Store{
		log: logger,
		dirs: map[mcp.Status]string{
			mcp.StatusUploaded:         filepath.Join(baseDir, common.IncomingDirName),
			mcp.StatusValidating:       filepath.Join(baseDir, common.ProcessingDirName),
			mcp.StatusValidated:        filepath.Join(baseDir, common.ProcessingDirName),
			mcp.StatusLoading:          filepath.Join(baseDir, common.ProcessingDirName),
			mcp.StatusLoaded:           filepath.Join(baseDir, common.ArchiveSuccessDirName),
			mcp.StatusValidationFailed: filepath.Join(baseDir, common.ArchiveFailedDirName),
			mcp.StatusLoadFailed:       filepath.Join(baseDir, common.ArchiveFailedDirName),
		},
	}
}

// DirFor maps a status to the directory both job files must reside in.
func (s *Store) DirFor(status mcp.Status) (string, error) {
	dir, ok := s.dirs[status]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	return dir, nil
}

// Relocate moves the record's data and MCP files into the directory mapped to
// status and rewrites the record's path fields accordingly. Both files must
// exist before the move; the path fields are only rewritten once both moves
// succeeded. On a partial move the data file is moved back best-effort;
// callers must still re-check file existence before trusting the pair.
func (s *Store) Relocate(r *mcp.Record, status mcp.Status) error {
	targetDir, err := s.DirFor(status)
	if err != nil {
		return err
	}

	oldData := r.CurrentDataFilepath
	oldMCP := r.CurrentMCPFilepath
	if oldData == "" || oldMCP == "" {
		return fmt.Errorf("record %s has empty file paths", r.JobID)
	}
	if _, err := os.Stat(oldData); err != nil {
		return fmt.Errorf("data file missing before move: %w", err)
	}
	if _, err := os.Stat(oldMCP); err != nil {
		return fmt.Errorf("mcp file missing before move: %w", err)
	}

	if err := os.MkdirAll(targetDir, common.DirPerm); err != nil {
		return fmt.Errorf("ensure target dir: %w", err)
	}

	newData := filepath.Join(targetDir, filepath.Base(oldData))
	newMCP := filepath.Join(targetDir, filepath.Base(oldMCP))

	if err := moveFile(oldData, newData); err != nil {
		return fmt.Errorf("move data file: %w", err)
	}
	if err := moveFile(oldMCP, newMCP); err != nil {
		if revertErr := moveFile(newData, oldData); revertErr != nil {
			s.log.Error("revert of data file failed after partial move",
				"job_id", r.JobID, "data_file", newData, "err", revertErr)
			return fmt.Errorf("%w: mcp move failed (%v), data file stranded at %s (revert: %v)",
				ErrPartialMove, err, newData, revertErr)
		}
		return fmt.Errorf("%w: mcp move failed (%v), data file reverted", ErrPartialMove, err)
	}

	r.CurrentDataFilepath = newData
	r.CurrentMCPFilepath = newMCP
	return nil
}

// RelocateMCPOnly moves just the MCP document into the directory mapped to
// status. It is the archival fallback for failed jobs whose data file is
// already gone: the failure must land in the archive instead of sticking in
// the stage directory. The data path keeps its last known location.
func (s *Store) RelocateMCPOnly(r *mcp.Record, status mcp.Status) error {
	targetDir, err := s.DirFor(status)
	if err != nil {
		return err
	}
	oldMCP := r.CurrentMCPFilepath
	if _, err := os.Stat(oldMCP); err != nil {
		return fmt.Errorf("mcp file missing before move: %w", err)
	}
	if err := os.MkdirAll(targetDir, common.DirPerm); err != nil {
		return fmt.Errorf("ensure target dir: %w", err)
	}
	newMCP := filepath.Join(targetDir, filepath.Base(oldMCP))
	if err := moveFile(oldMCP, newMCP); err != nil {
		return fmt.Errorf("move mcp file: %w", err)
	}
	r.CurrentMCPFilepath = newMCP
	return nil
}

// moveFile renames src to dst, falling back to copy+remove when the rename
// fails (e.g. across filesystems).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src) // #nosec G304 - paths derive from the stage table
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, common.FilePerm) // #nosec G304
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("close destination: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}
