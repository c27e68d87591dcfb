package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jo-hoe/mcpipeline/internal/common"
)

// ErrMalformed marks an MCP document that exists but cannot be decoded. A
// processor must skip such a job without mutating or moving anything; the
// document stays in place for a later pass or manual inspection.
var ErrMalformed = errors.New("malformed mcp document")

// SidecarPath returns the MCP file path for a given data file path.
func SidecarPath(dataPath string) string {
	return dataPath + common.MCPSuffix
}

// Load reads and decodes the MCP document at path. A missing file returns the
// underlying fs error; an undecodable file returns an error wrapping
// ErrMalformed.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from a directory scan we own
	if err != nil {
		return nil, fmt.Errorf("read mcp file: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if r.JobID == "" {
		return nil, fmt.Errorf("%w: %s: missing job_id", ErrMalformed, path)
	}
	return &r, nil
}

// Save writes the record as indented JSON to path, creating the parent
// directory if needed.
func (r *Record) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mcp: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), common.DirPerm); err != nil {
		return fmt.Errorf("ensure mcp dir: %w", err)
	}
	if err := os.WriteFile(path, data, common.FilePerm); err != nil {
		return fmt.Errorf("write mcp file: %w", err)
	}
	return nil
}
