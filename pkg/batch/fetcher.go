// Package batch provides bounded parallel fetching of keyed remote calls
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrCancelled marks keys that were not resolved because the batch context
// was cancelled.
var ErrCancelled = errors.New("cancelled")

// Prometheus metrics for batch fetching.
var (
	batchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobsite_batch_items_total",
		Help: "Batch items resolved by batch name and outcome",
	}, []string{"batch", "outcome"})

	batchInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jobsite_batch_in_flight",
		Help: "Calls currently in flight by batch name",
	}, []string{"batch"})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobsite_batch_duration_seconds",
		Help:    "Wall time of a whole batch by batch name",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"batch"})
)

// Config holds batch fetcher configuration
type Config struct {
	// Name labels logs and metrics (e.g. "skills", "salaries", "jobs")
	Name string
	// MaxConcurrency is the maximum number of calls in flight
	MaxConcurrency int
	// Timeout per call
	Timeout time.Duration
	// ProgressEvery logs progress every N resolved keys (0 disables)
	ProgressEvery int
	// OnProgress is called after every resolved key with done/total counts
	OnProgress func(done, total int)
	// Logger receives batch and per-key logs
	Logger zerolog.Logger
}

// DefaultConfig returns safe default configuration
func DefaultConfig() Config {
	return Config{
		Name:           "batch",
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
		ProgressEvery:  100,
		Logger:         zerolog.Nop(),
	}
}

// CallFunc performs the remote call for one key.
type CallFunc[K comparable, P any] func(ctx context.Context, key K) (P, error)

// Result is the outcome of one key: Err is nil on success.
type Result[K comparable, P any] struct {
	Key     K
	Payload P
	Err     error
}

// OK reports whether the call succeeded.
func (r Result[K, P]) OK() bool {
	return r.Err == nil
}

// Fetcher runs a CallFunc over a set of keys using a worker pool.
type Fetcher[K comparable, P any] struct {
	call   CallFunc[K, P]
	config Config
}

// New creates a new batch fetcher
func New[K comparable, P any](config Config, call CallFunc[K, P]) *Fetcher[K, P] {
	if config.Name == "" {
		config.Name = "batch"
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Fetcher[K, P]{
		call:   call,
		config: config,
	}
}

// FetchAll calls the fetcher's CallFunc once for every key, with at most
// MaxConcurrency calls in flight. It returns only after every key has a
// Result, in completion order. Individual failures never stop the batch.
func (f *Fetcher[K, P]) FetchAll(ctx context.Context, keys []K) []Result[K, P] {
	start := time.Now()
	total := len(keys)
	logger := f.config.Logger.With().Str("batch", f.config.Name).Logger()

	if total == 0 {
		return nil
	}

	workers := f.config.MaxConcurrency
	if workers > total {
		workers = total
	}

	logger.Info().
		Int("total", total).
		Int("workers", workers).
		Msg("Starting parallel fetch")

	// Create channels
	keyQueue := make(chan K)
	results := make(chan Result[K, P], workers)

	// Fill key queue; stop handing out work once cancelled
	var skipped []K
	go func() {
		defer close(keyQueue)
		for i, key := range keys {
			select {
			case keyQueue <- key:
			case <-ctx.Done():
				skipped = keys[i:]
				return
			}
		}
	}()

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go f.worker(ctx, keyQueue, results, &wg, i, logger)
	}

	// Close results channel when all workers done
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results
	collected := make([]Result[K, P], 0, total)
	failed := 0
	record := func(r Result[K, P]) {
		collected = append(collected, r)
		if r.Err != nil {
			failed++
			batchItemsTotal.WithLabelValues(f.config.Name, outcome(r.Err)).Inc()
		} else {
			batchItemsTotal.WithLabelValues(f.config.Name, "success").Inc()
		}

		done := len(collected)
		if f.config.OnProgress != nil {
			f.config.OnProgress(done, total)
		}
		if f.config.ProgressEvery > 0 && done%f.config.ProgressEvery == 0 && done < total {
			logger.Info().
				Int("done", done).
				Int("total", total).
				Float64("progress_pct", float64(done)/float64(total)*100).
				Msg("Fetch progress")
		}
	}

	for r := range results {
		record(r)
	}

	// Keys never handed to a worker; skipped is safe to read once keyQueue is closed
	// and every worker has returned.
	for _, key := range skipped {
		record(Result[K, P]{Key: key, Err: fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())})
	}

	duration := time.Since(start)
	batchDuration.WithLabelValues(f.config.Name).Observe(duration.Seconds())

	logger.Info().
		Int("succeeded", len(collected)-failed).
		Int("failed", failed).
		Int("total", total).
		Dur("duration", duration).
		Msg("Fetch complete")

	return collected
}

// worker processes keys from the queue
func (f *Fetcher[K, P]) worker(ctx context.Context, keyQueue <-chan K, results chan<- Result[K, P], wg *sync.WaitGroup, workerID int, logger zerolog.Logger) {
	defer wg.Done()
	processed := 0

	for key := range keyQueue {
		// Check context cancellation
		if err := ctx.Err(); err != nil {
			results <- Result[K, P]{Key: key, Err: fmt.Errorf("%w: %v", ErrCancelled, err)}
			continue
		}

		results <- f.fetchOne(ctx, key, logger)
		processed++
	}

	logger.Debug().
		Int("worker_id", workerID).
		Int("keys_processed", processed).
		Msg("Worker completed")
}

// fetchOne performs a single call with its own timeout.
func (f *Fetcher[K, P]) fetchOne(ctx context.Context, key K, logger zerolog.Logger) Result[K, P] {
	callCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	gauge := batchInFlight.WithLabelValues(f.config.Name)
	gauge.Inc()
	payload, err := f.call(callCtx, key)
	gauge.Dec()

	if err != nil {
		// A cancelled batch context outranks whatever the call reported.
		if ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
			err = fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		logger.Warn().
			Err(err).
			Interface("key", key).
			Msg("Fetch failed")
		return Result[K, P]{Key: key, Err: err}
	}

	return Result[K, P]{Key: key, Payload: payload}
}

// Partition splits results into successes and failures, preserving order.
func Partition[K comparable, P any](results []Result[K, P]) (ok, failed []Result[K, P]) {
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		ok = append(ok, r)
	}
	return ok, failed
}

// FailedKeys returns the keys of failed results in order.
func FailedKeys[K comparable, P any](results []Result[K, P]) []K {
	var keys []K
	for _, r := range results {
		if r.Err != nil {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

// outcome classifies an error for the items counter.
func outcome(err error) string {
	if errors.Is(err, ErrCancelled) {
		return "cancelled"
	}
	var classified interface{ Kind() string }
	if errors.As(err, &classified) {
		return classified.Kind()
	}
	return "error"
}
