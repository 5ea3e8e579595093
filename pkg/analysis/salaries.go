package analysis

import (
	"context"
	"sort"

	"github.com/Sternrassler/job-analyzer/pkg/batch"
	"github.com/Sternrassler/job-analyzer/pkg/client"
	"github.com/Sternrassler/job-analyzer/pkg/sink"
	"github.com/Sternrassler/job-analyzer/pkg/taxonomy"
)

// Columns appended to every salary row.
const (
	ColumnSalaryJobCode = "job_code"
	ColumnSalaryType    = "salary_type"
)

// SalaryKey identifies one salary request.
type SalaryKey struct {
	JobCode string
	Type    client.SalaryType
}

// SalaryResult is the outcome of one salary request.
type SalaryResult = batch.Result[SalaryKey, []client.Record]

// SalaryEntry is one salary bracket stamped with its category and type.
type SalaryEntry struct {
	JobCode    string
	SalaryType client.SalaryType
	Bracket    client.Record
}

// SalaryKeys returns one key per job code and salary type, codes outermost.
func SalaryKeys(codes []string) []SalaryKey {
	keys := make([]SalaryKey, 0, len(codes)*len(client.AllSalaryTypes))
	for _, code := range codes {
		for _, t := range client.AllSalaryTypes {
			keys = append(keys, SalaryKey{JobCode: code, Type: t})
		}
	}
	return keys
}

// RunSalaries fetches monthly and annual salary brackets of every category
// and writes the salaries table.
func (a *Analyzer) RunSalaries(ctx context.Context) error {
	cats, err := a.loadCategories(ctx)
	if err != nil {
		return err
	}

	fetcher := batch.New(batch.Config{
		Name:           "salaries",
		MaxConcurrency: a.config.SalaryConcurrency,
		Timeout:        a.config.RequestTimeout,
		ProgressEvery:  a.config.ProgressEvery,
		Logger:         a.logger,
	}, func(ctx context.Context, key SalaryKey) ([]client.Record, error) {
		return a.source.Salary(ctx, key.JobCode, key.Type)
	})

	results := fetcher.FetchAll(ctx, SalaryKeys(taxonomy.Codes(cats)))

	return a.write(ctx, SalariesTable, SalaryTable(FlattenSalaries(results)))
}

// FlattenSalaries stamps every bracket of every successful result with its
// key. Entries are ordered by job code, then salary type, then bracket order.
func FlattenSalaries(results []SalaryResult) []SalaryEntry {
	var entries []SalaryEntry
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		for _, rec := range r.Payload {
			entries = append(entries, SalaryEntry{
				JobCode:    r.Key.JobCode,
				SalaryType: r.Key.Type,
				Bracket:    rec,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].JobCode != entries[j].JobCode {
			return entries[i].JobCode < entries[j].JobCode
		}
		return entries[i].SalaryType < entries[j].SalaryType
	})
	return entries
}

// SalaryTable lays entries out as rows: bracket fields in first-seen order,
// then job_code and salary_type. The appended columns take precedence over
// bracket fields of the same name.
func SalaryTable(entries []SalaryEntry) sink.Table {
	cols := newColumnSet()
	for _, e := range entries {
		for _, k := range e.Bracket.Keys() {
			if k == ColumnSalaryJobCode || k == ColumnSalaryType {
				continue
			}
			cols.add(k)
		}
	}
	bracketCols := len(cols.names)
	cols.add(ColumnSalaryJobCode, ColumnSalaryType)

	table := sink.Table{Columns: cols.names}
	for _, e := range entries {
		row := make([]string, len(cols.names))
		for i := 0; i < bracketCols; i++ {
			row[i] = e.Bracket.Cell(cols.names[i])
		}
		row[bracketCols] = e.JobCode
		row[bracketCols+1] = e.SalaryType.Label()
		table.Rows = append(table.Rows, row)
	}
	return table
}
