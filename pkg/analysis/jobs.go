package analysis

import (
	"context"
	"fmt"
	"sort"

	"github.com/Sternrassler/job-analyzer/pkg/batch"
	"github.com/Sternrassler/job-analyzer/pkg/client"
	"github.com/Sternrassler/job-analyzer/pkg/sink"
)

// Columns added by the job listing analysis.
const (
	ColumnPage      = "page"
	ColumnDetailURL = "detail_url"
	ColumnURL       = "url"
)

// PageResult is the outcome of one search page request.
type PageResult = batch.Result[int, client.SearchPage]

// ListingPage is the listings of one search page.
type ListingPage struct {
	Page int
	Jobs []client.JobListing
}

// RunJobs searches the job listings matching q. The first page gives the page
// count; the remaining pages are fetched concurrently. It writes the listings
// table and the de-duplicated detail URL table.
func (a *Analyzer) RunJobs(ctx context.Context, q client.SearchQuery) error {
	firstCtx, cancel := context.WithTimeout(ctx, a.config.SearchTimeout)
	first, err := a.source.SearchPage(firstCtx, q, 1)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch page count: %w", err)
	}

	a.logger.Info().
		Int("total_pages", first.TotalPage).
		Str("category", q.Category).
		Str("keywords", q.Keywords).
		Msg("Job search started")

	if first.TotalPage <= 0 {
		return fmt.Errorf("%s: no pages: %w", JobsTable, ErrEmptyResult)
	}

	pages := []ListingPage{{Page: 1, Jobs: first.Jobs}}

	if first.TotalPage > 1 {
		keys := make([]int, 0, first.TotalPage-1)
		for p := 2; p <= first.TotalPage; p++ {
			keys = append(keys, p)
		}

		fetcher := batch.New(batch.Config{
			Name:           "jobs",
			MaxConcurrency: a.config.JobConcurrency,
			Timeout:        a.config.SearchTimeout,
			ProgressEvery:  a.config.ProgressEvery,
			Logger:         a.logger,
		}, func(ctx context.Context, page int) (client.SearchPage, error) {
			return a.source.SearchPage(ctx, q, page)
		})

		pages = append(pages, CollectPages(fetcher.FetchAll(ctx, keys))...)
		sort.Slice(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })
	}

	base := a.source.DetailBaseURL()
	listings := ListingTable(pages, base)
	if err := a.write(ctx, JobsTable, listings); err != nil {
		return err
	}

	urls := DetailURLs(pages, base)
	a.logger.Info().Int("urls", len(urls)).Msg("Job URLs collected")
	return a.write(ctx, JobURLsTable, URLTable(urls))
}

// CollectPages keeps the successful search pages.
func CollectPages(results []PageResult) []ListingPage {
	var pages []ListingPage
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		pages = append(pages, ListingPage{Page: r.Key, Jobs: r.Payload.Jobs})
	}
	return pages
}

// ListingTable lays listings out as rows: page, listing fields in first-seen
// order, then the detail URL.
func ListingTable(pages []ListingPage, detailBase string) sink.Table {
	cols := newColumnSet(ColumnPage)
	for _, p := range pages {
		for _, job := range p.Jobs {
			for _, k := range job.Record.Keys() {
				if k != ColumnDetailURL {
					cols.add(k)
				}
			}
		}
	}
	cols.add(ColumnDetailURL)

	n := len(cols.names)
	table := sink.Table{Columns: cols.names}
	for _, p := range pages {
		for _, job := range p.Jobs {
			row := make([]string, n)
			row[0] = fmt.Sprint(p.Page)
			for i := 1; i < n-1; i++ {
				row[i] = job.Record.Cell(cols.names[i])
			}
			row[n-1] = job.DetailURL(detailBase)
			table.Rows = append(table.Rows, row)
		}
	}
	return table
}

// DetailURLs returns the sorted, de-duplicated detail URLs of all listings.
func DetailURLs(pages []ListingPage, detailBase string) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, p := range pages {
		for _, job := range p.Jobs {
			u := job.DetailURL(detailBase)
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)
	return urls
}

// URLTable is a one-column table of URLs.
func URLTable(urls []string) sink.Table {
	table := sink.Table{Columns: []string{ColumnURL}}
	for _, u := range urls {
		table.Rows = append(table.Rows, []string{u})
	}
	return table
}
