package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// utf8BOM lets spreadsheet tools detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSink writes each table to <Dir>/<name>_<YYYYMMDD>.csv.
type CSVSink struct {
	dir    string
	now    Clock
	logger zerolog.Logger
}

// NewCSV creates a CSV sink writing under dir.
func NewCSV(dir string, logger zerolog.Logger) *CSVSink {
	return &CSVSink{
		dir:    dir,
		now:    time.Now,
		logger: logger.With().Str("sink", "csv").Logger(),
	}
}

// WithClock replaces the clock used for date stamps.
func (s *CSVSink) WithClock(now Clock) *CSVSink {
	s.now = now
	return s
}

// Path returns the file a table with this name is written to today.
func (s *CSVSink) Path(name string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", name, s.now().Format(DateLayout)))
}

// Write replaces the dated file for name. The file is written to a temporary
// path first, so a failed write leaves no partial output behind.
func (s *CSVSink) Write(ctx context.Context, name string, table Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := table.Validate(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	path := s.Path(name)
	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := writeCSV(tmp, table); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	s.logger.Info().
		Str("path", path).
		Int("rows", table.Len()).
		Int("columns", len(table.Columns)).
		Msg("Table written")

	return nil
}

func writeCSV(f *os.File, table Table) error {
	if _, err := f.Write(utf8BOM); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns); err != nil {
		return err
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return err
	}
	return w.Error()
}
