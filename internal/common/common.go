package common

// Shared constants to enforce DRY and avoid magic strings/numbers.

// MCP document constants
const (
	MCPVersion = "1.0"
	MCPSuffix  = ".mcp.json"
)

// Subdirectory names under the configured base directory.
const (
	IncomingDirName       = "incoming"
	ProcessingDirName     = "processing_loading"
	ArchiveSuccessDirName = "archive/success"
	ArchiveFailedDirName  = "archive/failed"
)

// Actor names recorded in status history entries.
const (
	ActorIntake    = "upload"
	ActorValidator = "validate"
	ActorLoader    = "load"
)

// Load target types dispatched by the loader registry.
const (
	TargetTypeSimulated = "SIMULATED_DB"
	TargetTypeSQLite    = "SQLITE_DB"
)

// Defaults and limits
const (
	DefaultRulesPath    = "config/validation_rules.json"
	DirPerm             = 0o750
	FilePerm            = 0o644
	SQLiteBusyTimeoutMS = 5000
)
