package mcp

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jo-hoe/mcpipeline/internal/common"
)

// Status represents the lifecycle status of a pipeline job.
type Status string

const (
	StatusPending          Status = "Pending"
	StatusUploaded         Status = "Uploaded"
	StatusValidating       Status = "Validating"
	StatusValidated        Status = "Validated"
	StatusValidationFailed Status = "ValidationFailed"
	StatusLoading          Status = "Loading"
	StatusLoaded           Status = "Loaded"
	StatusLoadFailed       Status = "LoadFailed"
)

// Terminal reports whether a job in this status is archived and must not be
// picked up by any stage again.
func (s Status) Terminal() bool {
	switch s {
	case StatusLoaded, StatusValidationFailed, StatusLoadFailed:
		return true
	}
	return false
}

// HistoryEntry is one recorded status transition.
type HistoryEntry struct {
	Status       Status    `json:"status"`
	TimestampUTC time.Time `json:"timestamp_utc"`
	Actor        string    `json:"actor"`
	Details      string    `json:"details,omitempty"`
}

// StatusInfo is the mutable status envelope of a Record.
type StatusInfo struct {
	CurrentStatus Status         `json:"current_status"`
	StatusHistory []HistoryEntry `json:"status_history"`
	ErrorMessage  string         `json:"error_message"`
}

// Directives is the immutable stage configuration set at intake. It tells the
// validator which rule set to check against and the loader where to deliver.
type Directives struct {
	ValidationRulesetID   string `json:"validation_ruleset_id"`
	LoadTargetType        string `json:"load_target_type"`
	LoadTargetDestination string `json:"load_target_destination"`
}

// Record is the Metadata Control Package (MCP): the per-job metadata document
// that travels next to the data file through every pipeline stage. Field names
// are part of the on-disk format and must not change.
type Record struct {
	MCPVersion             string            `json:"mcp_version"`
	JobID                  string            `json:"job_id"`
	SourceFilenameOriginal string            `json:"source_filename_original"`
	CurrentDataFilepath    string            `json:"current_data_filepath"`
	CurrentMCPFilepath     string            `json:"current_mcp_filepath"`
	UploadTimestampUTC     time.Time         `json:"upload_timestamp_utc"`
	SourceContext          map[string]string `json:"source_context"`
	ProcessingDirectives   Directives        `json:"processing_directives"`
	StatusInfo             StatusInfo        `json:"status_info"`
}

// New builds a Record with a fresh job id in status Pending and an empty
// history. The caller sets the file paths once the artifacts are written.
func New(sourceFilename string, sourceContext map[string]string, directives Directives) *Record {
	return &Record{
		MCPVersion:             common.MCPVersion,
		JobID:                  uuid.NewString(),
		SourceFilenameOriginal: sourceFilename,
		UploadTimestampUTC:     time.Now().UTC(),
		SourceContext:          sourceContext,
		ProcessingDirectives:   directives,
		StatusInfo: StatusInfo{
			CurrentStatus: StatusPending,
			StatusHistory: []HistoryEntry{},
		},
	}
}

// Transition sets the current status and appends exactly one history entry.
// If errorMessage is non-empty it overwrites status_info.error_message and is
// folded into the entry's details. History is append-only; entries are never
// removed or rewritten.
func (r *Record) Transition(newStatus Status, actor, details, errorMessage string) {
	entry := HistoryEntry{
		Status:       newStatus,
		TimestampUTC: time.Now().UTC(),
		Actor:        actor,
		Details:      details,
	}
	if errorMessage != "" {
		r.StatusInfo.ErrorMessage = errorMessage
		entry.Details = strings.TrimSpace(details + " Error: " + errorMessage)
	}
	r.StatusInfo.CurrentStatus = newStatus
	r.StatusInfo.StatusHistory = append(r.StatusInfo.StatusHistory, entry)
}
