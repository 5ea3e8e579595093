// Package sink persists merged analysis tables.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DateLayout stamps output names with the run date (YYYYMMDD).
const DateLayout = "20060102"

// Table is a row-oriented result: every row has one cell per column.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Validate checks that the header is usable and every row matches it.
func (t Table) Validate() error {
	if len(t.Columns) == 0 {
		return errors.New("table has no columns")
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if c == "" {
			return errors.New("table has an empty column name")
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// Sink persists a named table.
type Sink interface {
	Write(ctx context.Context, name string, table Table) error
}

// Clock returns the current time; sinks use it for date stamps.
type Clock func() time.Time

// multi writes to every sink in order.
type multi []Sink

// Multi returns a sink that writes each table to all sinks. Every sink is
// attempted; the errors are joined.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Write(ctx context.Context, name string, table Table) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, name, table); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
