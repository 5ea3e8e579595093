package analysis

import (
	"context"

	"github.com/Sternrassler/job-analyzer/pkg/batch"
	"github.com/Sternrassler/job-analyzer/pkg/client"
	"github.com/Sternrassler/job-analyzer/pkg/sink"
	"github.com/Sternrassler/job-analyzer/pkg/taxonomy"
	"github.com/rs/zerolog"
)

// Category columns leading every skills row.
const (
	ColumnParentCode = "parent_code"
	ColumnParentName = "parent_name"
	ColumnJobCode    = "job_code"
	ColumnJobName    = "job_name"
)

// SkillResult is the outcome of fetching one category's skill profile.
type SkillResult = batch.Result[string, client.SkillPayload]

// RunSkills fetches the job and cert cards of every category, joins them onto
// the taxonomy and writes the skills table.
func (a *Analyzer) RunSkills(ctx context.Context) error {
	cats, err := a.loadCategories(ctx)
	if err != nil {
		return err
	}

	fetcher := batch.New(batch.Config{
		Name:           "skills",
		MaxConcurrency: a.config.SkillConcurrency,
		// two sequential requests per key
		Timeout:       2 * a.config.RequestTimeout,
		ProgressEvery: a.config.ProgressEvery,
		Logger:        a.logger,
	}, a.fetchSkill)

	results := fetcher.FetchAll(ctx, taxonomy.Codes(cats))

	table, _ := MergeSkills(cats, results, a.logger)
	return a.write(ctx, SkillsTable, table)
}

// fetchSkill fetches the job card then the cert card of one category. Both
// must succeed; the cert lists replace those of the job card.
func (a *Analyzer) fetchSkill(ctx context.Context, jobCode string) (client.SkillPayload, error) {
	jobCtx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	job, err := a.source.JobCard(jobCtx, jobCode)
	cancel()
	if err != nil {
		return client.SkillPayload{}, err
	}

	certCtx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	cert, err := a.source.CertCard(certCtx, jobCode)
	cancel()
	if err != nil {
		return client.SkillPayload{}, err
	}

	return job.WithCerts(cert), nil
}

// MergeSkills inner-joins successful skill payloads onto the categories by
// job code. Rows follow the category order. Columns are the category columns
// followed by every payload field in first-seen order; a payload field named
// like a category column is shadowed by it. Categories without a successful
// payload are returned as dropped.
func MergeSkills(cats []taxonomy.FlatCategory, results []SkillResult, logger zerolog.Logger) (sink.Table, []string) {
	byCode := make(map[string]client.SkillPayload, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if _, dup := byCode[r.Payload.JobCode]; !dup {
			byCode[r.Payload.JobCode] = r.Payload
		}
	}

	type joined struct {
		cat     taxonomy.FlatCategory
		payload client.SkillPayload
	}

	cols := newColumnSet(ColumnParentCode, ColumnParentName, ColumnJobCode, ColumnJobName)
	var rows []joined
	var dropped []string
	for _, cat := range cats {
		payload, ok := byCode[cat.JobCode]
		if !ok {
			dropped = append(dropped, cat.JobCode)
			continue
		}
		rows = append(rows, joined{cat: cat, payload: payload})
		cols.add(payload.Record.Keys()...)
	}

	table := sink.Table{Columns: cols.names}
	for _, j := range rows {
		row := make([]string, len(cols.names))
		row[0] = j.cat.ParentCode
		row[1] = j.cat.ParentName
		row[2] = j.cat.JobCode
		row[3] = j.cat.JobName
		for i := 4; i < len(cols.names); i++ {
			row[i] = j.payload.Record.Cell(cols.names[i])
		}
		table.Rows = append(table.Rows, row)
	}

	if len(dropped) > 0 {
		logger.Warn().
			Int("dropped", len(dropped)).
			Int("joined", len(rows)).
			Msg("Categories without skill data omitted")
		logger.Debug().
			Strs("keys", dropped).
			Msg("Omitted categories")
	}

	return table, dropped
}
