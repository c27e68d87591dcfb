package target

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/jo-hoe/mcpipeline/internal/common"
	"github.com/jo-hoe/mcpipeline/internal/mcp"
)

// SQLiteSink is a real destination behind the load contract: it loads the CSV
// rows into a table named by load_target_destination.
type SQLiteSink struct {
	Log  *slog.Logger
	Path string
}

func NewSQLiteSink(logger *slog.Logger, path string) *SQLiteSink {
	return &SQLiteSink{Log: logger, Path: path}
}

// Ensure SQLiteSink implements Loader
var _ Loader = (*SQLiteSink)(nil)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (s *SQLiteSink) Load(ctx context.Context, dataPath string, d mcp.Directives) (bool, string) {
	if !identRe.MatchString(d.LoadTargetDestination) {
		return false, fmt.Sprintf("invalid load_target_destination %q", d.LoadTargetDestination)
	}

	f, err := os.Open(dataPath) // #nosec G304 - path comes from the MCP record
	if err != nil {
		return false, fmt.Sprintf("data file not found at %s", dataPath)
	}
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return false, fmt.Sprintf("read CSV: %v", err)
	}
	if len(rows) == 0 {
		return false, "CSV file is empty or has no header row"
	}
	header := rows[0]
	for _, col := range header {
		if !identRe.MatchString(strings.TrimSpace(col)) {
			return false, fmt.Sprintf("invalid column name %q", col)
		}
	}

	// Busy timeout to avoid SQLITE_BUSY in concurrent access.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", s.Path, common.SQLiteBusyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return false, fmt.Sprintf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := s.insertRows(ctx, db, d.LoadTargetDestination, header, rows[1:]); err != nil {
		return false, err.Error()
	}

	s.Log.Info("rows loaded into sqlite",
		"table", d.LoadTargetDestination, "rows", len(rows)-1, "db", s.Path)
	return true, ""
}

func (s *SQLiteSink) insertRows(ctx context.Context, db *sql.DB, table string, header []string, rows [][]string) error {
	cols := make([]string, len(header))
	placeholders := make([]string, len(header))
	for i, col := range header {
		cols[i] = strings.TrimSpace(col) + " TEXT"
		placeholders[i] = "?"
	}
	schema := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, strings.Join(placeholders, ", ")) // #nosec G201 - identifiers validated above
	for _, row := range rows {
		if len(row) != len(header) {
			_ = tx.Rollback()
			return fmt.Errorf("row has %d fields, header has %d", len(row), len(header))
		}
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = v
		}
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
