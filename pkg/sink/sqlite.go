package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SnapshotColumn holds the run date of every stored row.
const SnapshotColumn = "snapshot_date"

// SQLiteSink stores each table as a SQLite table of text columns. A write
// replaces the rows of the same snapshot date and keeps older snapshots.
type SQLiteSink struct {
	db     *sql.DB
	now    Clock
	logger zerolog.Logger
}

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(path string, logger zerolog.Logger) (*SQLiteSink, error) {
	if path == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	return &SQLiteSink{
		db:     db,
		now:    time.Now,
		logger: logger.With().Str("sink", "sqlite").Logger(),
	}, nil
}

// WithClock replaces the clock used for snapshot dates.
func (s *SQLiteSink) WithClock(now Clock) *SQLiteSink {
	s.now = now
	return s
}

// DB exposes the underlying handle for queries.
func (s *SQLiteSink) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Write stores table under name for today's snapshot date. New columns are
// added to an existing table; columns absent from the table are left NULL.
func (s *SQLiteSink) Write(ctx context.Context, name string, table Table) error {
	if err := table.Validate(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	for _, c := range table.Columns {
		if c == SnapshotColumn {
			return fmt.Errorf("write %s: column %q is reserved", name, SnapshotColumn)
		}
	}

	snapshot := s.now().Format(DateLayout)
	ident := quoteIdent(name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s TEXT NOT NULL)", ident, quoteIdent(SnapshotColumn))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	existing, err := tableColumns(ctx, tx, name)
	if err != nil {
		return err
	}
	for _, c := range table.Columns {
		if _, ok := existing[c]; ok {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", ident, quoteIdent(c))
		if _, err := tx.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("add column %s.%s: %w", name, c, err)
		}
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", ident, quoteIdent(SnapshotColumn))
	if _, err := tx.ExecContext(ctx, del, snapshot); err != nil {
		return fmt.Errorf("clear snapshot %s: %w", snapshot, err)
	}

	columns := make([]string, 0, len(table.Columns)+1)
	placeholders := make([]string, 0, len(table.Columns)+1)
	columns = append(columns, quoteIdent(SnapshotColumn))
	placeholders = append(placeholders, "?")
	for _, c := range table.Columns {
		columns = append(columns, quoteIdent(c))
		placeholders = append(placeholders, "?")
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ident, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(table.Columns)+1)
	args[0] = snapshot
	for _, row := range table.Rows {
		for i, cell := range row {
			args[i+1] = cell
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}

	s.logger.Info().
		Str("table", name).
		Str("snapshot", snapshot).
		Int("rows", table.Len()).
		Msg("Table written")

	return nil
}

func tableColumns(ctx context.Context, tx *sql.Tx, name string) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", name)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", name, err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		cols[col] = struct{}{}
	}
	return cols, rows.Err()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
