// Package analysis runs the job, skill and salary analyses: it loads the
// category taxonomy, fetches per-key data through bounded batches, merges the
// results into tables and hands them to a sink.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/job-analyzer/pkg/client"
	"github.com/Sternrassler/job-analyzer/pkg/sink"
	"github.com/Sternrassler/job-analyzer/pkg/taxonomy"
	"github.com/rs/zerolog"
)

// ErrEmptyResult is returned when an analysis produced no rows. Nothing is
// written in that case.
var ErrEmptyResult = errors.New("empty result")

// Output table names.
const (
	SkillsTable   = "104_skills"
	SalariesTable = "104_salaries"
	JobsTable     = "104_jobs"
	JobURLsTable  = "104_job_urls"
)

// Source is the remote job site.
type Source interface {
	JobCategories(ctx context.Context) ([]*taxonomy.CategoryNode, error)
	JobCard(ctx context.Context, jobCode string) (client.SkillPayload, error)
	CertCard(ctx context.Context, jobCode string) (client.CertPayload, error)
	Salary(ctx context.Context, jobCode string, salaryType client.SalaryType) ([]client.Record, error)
	SearchPage(ctx context.Context, q client.SearchQuery, page int) (client.SearchPage, error)
	DetailBaseURL() string
}

// Mode selects which analyses run.
type Mode string

const (
	ModeAll    Mode = "all"
	ModeJob    Mode = "job"
	ModeSkill  Mode = "skill"
	ModeSalary Mode = "salary"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAll, ModeJob, ModeSkill, ModeSalary:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want all, job, skill or salary)", s)
	}
}

// Steps expands a mode into the analyses it runs, in run order.
func (m Mode) Steps() []Mode {
	if m == ModeAll {
		return []Mode{ModeJob, ModeSkill, ModeSalary}
	}
	return []Mode{m}
}

// Config holds the batch settings of each analysis.
type Config struct {
	// Concurrency ceilings per analysis
	SkillConcurrency  int
	SalaryConcurrency int
	JobConcurrency    int

	// RequestTimeout bounds one JSON endpoint request
	RequestTimeout time.Duration

	// SearchTimeout bounds one search page request
	SearchTimeout time.Duration

	// ProgressEvery logs batch progress every N keys
	ProgressEvery int

	Logger zerolog.Logger
}

// DefaultConfig returns the ceilings and timeouts used against the live site.
func DefaultConfig() Config {
	return Config{
		SkillConcurrency:  10,
		SalaryConcurrency: 20,
		JobConcurrency:    10,
		RequestTimeout:    10 * time.Second,
		SearchTimeout:     20 * time.Second,
		ProgressEvery:     100,
		Logger:            zerolog.Nop(),
	}
}

// Analyzer runs analyses against a source and writes to a sink.
type Analyzer struct {
	source Source
	sink   sink.Sink
	config Config
	logger zerolog.Logger
}

// New creates an analyzer. Zero config values fall back to the defaults.
func New(source Source, out sink.Sink, cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.SkillConcurrency <= 0 {
		cfg.SkillConcurrency = def.SkillConcurrency
	}
	if cfg.SalaryConcurrency <= 0 {
		cfg.SalaryConcurrency = def.SalaryConcurrency
	}
	if cfg.JobConcurrency <= 0 {
		cfg.JobConcurrency = def.JobConcurrency
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}

	return &Analyzer{
		source: source,
		sink:   out,
		config: cfg,
		logger: cfg.Logger.With().Str("component", "analysis").Logger(),
	}
}

// Run executes the analyses of mode in order. An analysis that ends with
// ErrEmptyResult is logged and does not fail the run; any other error is
// logged, the remaining analyses still run and the errors are joined.
func (a *Analyzer) Run(ctx context.Context, mode Mode, q client.SearchQuery) error {
	a.logger.Info().Str("mode", string(mode)).Msg("===== Analysis started =====")

	var errs []error
	for _, step := range mode.Steps() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		err := a.runStep(ctx, step, q)
		switch {
		case err == nil:
		case errors.Is(err, ErrEmptyResult):
			a.logger.Warn().Err(err).Str("mode", string(step)).Msg("Analysis produced no rows")
		default:
			a.logger.Error().Err(err).Str("mode", string(step)).Msg("Analysis failed")
			errs = append(errs, fmt.Errorf("%s analysis: %w", step, err))
		}
	}

	a.logger.Info().Str("mode", string(mode)).Msg("===== Analysis finished =====")
	return errors.Join(errs...)
}

func (a *Analyzer) runStep(ctx context.Context, step Mode, q client.SearchQuery) error {
	logger := a.logger.With().Str("mode", string(step)).Logger()
	logger.Info().Msgf("===== %s analysis started =====", step)

	var err error
	switch step {
	case ModeJob:
		err = a.RunJobs(ctx, q)
	case ModeSkill:
		err = a.RunSkills(ctx)
	case ModeSalary:
		err = a.RunSalaries(ctx)
	default:
		err = fmt.Errorf("unknown mode %q", step)
	}

	logger.Info().Msgf("===== %s analysis finished =====", step)
	return err
}

// loadCategories fetches and flattens the taxonomy, sorted by job code.
func (a *Analyzer) loadCategories(ctx context.Context) ([]taxonomy.FlatCategory, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()

	nodes, err := a.source.JobCategories(callCtx)
	if err != nil {
		return nil, fmt.Errorf("fetch job categories: %w", err)
	}

	cats, err := taxonomy.Flatten(nodes)
	if err != nil {
		return nil, fmt.Errorf("flatten job categories: %w", err)
	}
	taxonomy.SortByCode(cats)

	a.logger.Info().
		Int("nodes", taxonomy.CountNodes(nodes)).
		Int("categories", len(cats)).
		Msg("Job categories loaded")

	return cats, nil
}

// write hands a non-empty table to the sink.
func (a *Analyzer) write(ctx context.Context, name string, table sink.Table) error {
	if table.Len() == 0 {
		return fmt.Errorf("%s: %w", name, ErrEmptyResult)
	}
	if err := a.sink.Write(ctx, name, table); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	a.logger.Info().Str("table", name).Int("rows", table.Len()).Msg("Results saved")
	return nil
}

// columnSet collects column names in first-seen order.
type columnSet struct {
	names []string
	seen  map[string]struct{}
}

func newColumnSet(names ...string) *columnSet {
	c := &columnSet{seen: make(map[string]struct{})}
	c.add(names...)
	return c
}

func (c *columnSet) add(names ...string) {
	for _, n := range names {
		if _, ok := c.seen[n]; ok {
			continue
		}
		c.seen[n] = struct{}{}
		c.names = append(c.names, n)
	}
}
