// Package batch provides bounded parallel fetching of keyed remote calls.
//
// The job site serves one JSON document per category key (or per key and salary
// type), so an analysis issues thousands of small independent requests. This
// package runs them through a fixed worker pool so that no more than
// MaxConcurrency calls are in flight, each with its own timeout.
//
// Example usage:
//
//	cfg := batch.DefaultConfig()
//	cfg.Name = "salaries"
//	cfg.MaxConcurrency = 20
//	fetcher := batch.New(cfg, func(ctx context.Context, code string) ([]client.Record, error) {
//		return src.Salary(ctx, code, client.SalaryMonthly)
//	})
//	results := fetcher.FetchAll(ctx, codes)
//
// The batch fetcher:
//   - Feeds keys to a worker pool through an unbuffered queue
//   - Attempts every key exactly once (no retries)
//   - Converts a failed call into a Result carrying the error; siblings continue
//   - Marks keys left unresolved by context cancellation with ErrCancelled
//   - Returns only after every key is accounted for, in completion order
//   - Logs progress and exports Prometheus counters per batch name
package batch
