package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/job-analyzer/pkg/analysis"
	"github.com/Sternrassler/job-analyzer/pkg/cache"
	"github.com/Sternrassler/job-analyzer/pkg/client"
	"github.com/Sternrassler/job-analyzer/pkg/config"
	"github.com/Sternrassler/job-analyzer/pkg/logging"
	"github.com/Sternrassler/job-analyzer/pkg/metrics"
	"github.com/Sternrassler/job-analyzer/pkg/sink"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	mode        string
	category    string
	keywords    string
	order       int
	configPath  string
	metricsAddr string
	outputDir   string
	refresh     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "job-analyzer [--mode all|job|skill|salary]",
		Short: "job-analyzer collects job listings, skill profiles and salary statistics from 104.com.tw.",
		Example: `  job-analyzer --mode all --category 2007001000 --keywords Python
  job-analyzer --mode salary --config config.json5`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.mode, "mode", string(analysis.ModeAll), "analysis mode: all, job, skill or salary")
	flags.StringVar(&opts.category, "category", "", "job category code for the job search, e.g. 2007001000")
	flags.StringVar(&opts.keywords, "keywords", "", "keywords for the job search, e.g. Python")
	flags.IntVar(&opts.order, "order", client.OrderRelevance, "job search order: 15 relevance, 16 most recently updated")
	flags.StringVar(&opts.configPath, "config", config.DefaultPath, "path to the json5 config file")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running, e.g. :9090")
	flags.StringVar(&opts.outputDir, "output-dir", "", "override the CSV output directory")
	flags.BoolVar(&opts.refresh, "refresh", false, "drop cached site responses before running")

	return cmd
}

func run(ctx context.Context, opts *options, stderr io.Writer) error {
	mode, err := analysis.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	if opts.order != client.OrderRelevance && opts.order != client.OrderUpdated {
		return fmt.Errorf("unknown order %d (want %d or %d)", opts.order, client.OrderRelevance, client.OrderUpdated)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	fileLevel, _ := logging.ParseLevel(cfg.Log.FileLevel)
	logger, closer, err := logging.Setup(logging.Config{
		Level:     level,
		Pretty:    cfg.Log.Pretty,
		Output:    stderr,
		File:      cfg.Log.File,
		FileLevel: fileLevel,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closer.Close()

	logger.Debug().Strs("sources", cfg.Sources).Msg("Configuration loaded")

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Start(cfg.MetricsAddr, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	cacheManager, closeCache := openCache(ctx, cfg.Redis, logger)
	defer closeCache()
	if cacheManager != nil && opts.refresh {
		deleted, err := cacheManager.Purge(ctx)
		if err != nil {
			return fmt.Errorf("purge cache: %w", err)
		}
		logger.Info().Int("keys", deleted).Msg("Response cache purged")
	}

	site, err := client.New(client.Config{
		CategoriesURL:  cfg.Site.CategoriesURL,
		GuideBaseURL:   cfg.Site.GuideBaseURL,
		SearchURL:      cfg.Site.SearchURL,
		DetailBaseURL:  cfg.Site.DetailBaseURL,
		UserAgent:      cfg.Site.UserAgent,
		Referer:        cfg.Site.Referer,
		AcceptLanguage: cfg.Site.AcceptLanguage,
		Timeout:        cfg.Site.Timeout.Duration,
		Cache:          cacheManager,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	out, closeSink, err := openSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	analyzer := analysis.New(site, out, analysis.Config{
		SkillConcurrency:  cfg.Batch.SkillConcurrency,
		SalaryConcurrency: cfg.Batch.SalaryConcurrency,
		JobConcurrency:    cfg.Batch.JobConcurrency,
		RequestTimeout:    cfg.Batch.RequestTimeout.Duration,
		SearchTimeout:     cfg.Batch.SearchTimeout.Duration,
		ProgressEvery:     cfg.Batch.ProgressEvery,
		Logger:            logger,
	})

	start := time.Now()
	err = analyzer.Run(ctx, mode, client.SearchQuery{
		Category: opts.category,
		Keywords: opts.keywords,
		Order:    opts.order,
	})
	if err != nil {
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Run failed")
		return err
	}

	logger.Info().Dur("duration", time.Since(start)).Msg("Run complete")
	return nil
}

// openCache connects to Redis when configured. An unreachable Redis disables
// caching for the run instead of failing it.
func openCache(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (*cache.Manager, func()) {
	if cfg.Addr == "" {
		return nil, func() {}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	manager := cache.NewManager(redisClient, cfg.TTL.Duration)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := manager.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis unavailable, caching disabled")
		redisClient.Close()
		return nil, func() {}
	}

	logger.Info().Str("addr", cfg.Addr).Dur("ttl", manager.TTL()).Msg("Response cache enabled")
	return manager, func() { redisClient.Close() }
}

func openSink(cfg config.Config, logger zerolog.Logger) (sink.Sink, func(), error) {
	switch cfg.Sink {
	case config.SinkCSV:
		return sink.NewCSV(cfg.OutputDir, logger), func() {}, nil
	case config.SinkSQLite, config.SinkBoth:
		db, err := sink.OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite sink: %w", err)
		}
		closeDB := func() { db.Close() }
		if cfg.Sink == config.SinkBoth {
			return sink.Multi(sink.NewCSV(cfg.OutputDir, logger), db), closeDB, nil
		}
		return db, closeDB, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}
