// Package config loads the job analyzer configuration from a json5 file, an
// optional local override file and the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/Sternrassler/job-analyzer/pkg/logging"
	"github.com/titanous/json5"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "config.json5"

// Environment variables that override file values.
const (
	EnvOutputDir   = "JOB_ANALYZER_OUTPUT_DIR"
	EnvLogLevel    = "JOB_ANALYZER_LOG_LEVEL"
	EnvRedisAddr   = "JOB_ANALYZER_REDIS_ADDR"
	EnvSink        = "JOB_ANALYZER_SINK"
	EnvMetricsAddr = "JOB_ANALYZER_METRICS_ADDR"
)

// Sink kinds.
const (
	SinkCSV    = "csv"
	SinkSQLite = "sqlite"
	SinkBoth   = "both"
)

// Duration is a time.Duration written as a string such as "10s".
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	// json5 hands over single-quoted strings verbatim
	if n := len(data); n >= 2 && data[0] == '\'' && data[n-1] == '\'' {
		data = []byte(`"` + string(data[1:n-1]) + `"`)
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d.Duration = parsed
		return nil
	}

	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Config is the full program configuration.
type Config struct {
	// OutputDir receives the CSV files
	OutputDir string `json:"outputDir"`

	// Sink is csv, sqlite or both
	Sink string `json:"sink"`

	// SQLitePath is the database file of the sqlite sink
	SQLitePath string `json:"sqlitePath"`

	// MetricsAddr serves Prometheus metrics while running; empty disables
	MetricsAddr string `json:"metricsAddr"`

	Log   LogConfig   `json:"log"`
	Redis RedisConfig `json:"redis"`
	Site  SiteConfig  `json:"site"`
	Batch BatchConfig `json:"batch"`

	// Sources lists the files that were merged, in order
	Sources []string `json:"-"`
}

// LogConfig configures console and file logging.
type LogConfig struct {
	Level     string `json:"level"`
	Pretty    bool   `json:"pretty"`
	File      string `json:"file"`
	FileLevel string `json:"fileLevel"`
}

// RedisConfig configures the optional response cache; empty Addr disables it.
type RedisConfig struct {
	Addr     string   `json:"addr"`
	Password string   `json:"password"`
	DB       int      `json:"db"`
	TTL      Duration `json:"ttl"`
}

// SiteConfig holds the job site endpoints and request identity.
type SiteConfig struct {
	CategoriesURL  string   `json:"categoriesUrl"`
	GuideBaseURL   string   `json:"guideBaseUrl"`
	SearchURL      string   `json:"searchUrl"`
	DetailBaseURL  string   `json:"detailBaseUrl"`
	UserAgent      string   `json:"userAgent"`
	Referer        string   `json:"referer"`
	AcceptLanguage string   `json:"acceptLanguage"`
	Timeout        Duration `json:"timeout"`
}

// BatchConfig holds concurrency ceilings and per-request timeouts.
type BatchConfig struct {
	SkillConcurrency  int      `json:"skillConcurrency"`
	SalaryConcurrency int      `json:"salaryConcurrency"`
	JobConcurrency    int      `json:"jobConcurrency"`
	RequestTimeout    Duration `json:"requestTimeout"`
	SearchTimeout     Duration `json:"searchTimeout"`
	ProgressEvery     int      `json:"progressEvery"`
}

// Default returns the configuration used when no file sets a value.
func Default() Config {
	return Config{
		OutputDir:  "output",
		Sink:       SinkCSV,
		SQLitePath: filepath.Join("output", "job_analyzer.db"),
		Log: LogConfig{
			Level:     string(logging.LevelInfo),
			File:      filepath.Join("logs", "analysis.log"),
			FileLevel: string(logging.LevelDebug),
		},
		Redis: RedisConfig{
			TTL: Duration{6 * time.Hour},
		},
		Site: SiteConfig{
			CategoriesURL:  "https://static.104.com.tw/category-tool/json/JobCat.json",
			GuideBaseURL:   "https://be.guide.104.com.tw",
			SearchURL:      "https://www.104.com.tw/jobs/search/list",
			DetailBaseURL:  "https://www.104.com.tw/job/ajax/content/",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
			Referer:        "https://www.104.com.tw/jobs/search",
			AcceptLanguage: "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7",
			Timeout:        Duration{30 * time.Second},
		},
		Batch: BatchConfig{
			SkillConcurrency:  10,
			SalaryConcurrency: 20,
			JobConcurrency:    10,
			RequestTimeout:    Duration{10 * time.Second},
			SearchTimeout:     Duration{20 * time.Second},
			ProgressEvery:     100,
		},
	}
}

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// LocalPath returns the override file for path: <name>.local.<ext>.
func LocalPath(path string) string {
	prefix, ext := splitExt(filepath.Base(path))
	if ext == "" {
		return filepath.Join(filepath.Dir(path), prefix+".local")
	}
	return filepath.Join(filepath.Dir(path), fmt.Sprintf("%s.local.%s", prefix, ext))
}

// Load builds the configuration. Later sources win:
//  1. Default()
//  2. <path>
//  3. <name>.local.<ext> next to path
//  4. environment variables
//
// Missing files are skipped. Only non-zero values override, so a file cannot
// reset a default to zero.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}

	out := Default()
	for _, p := range []string{path, LocalPath(path)} {
		merged, err := mergeFile(&out, p)
		if err != nil {
			return out, err
		}
		if merged {
			out.Sources = append(out.Sources, p)
		}
	}

	applyEnv(&out)

	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

func mergeFile(dst *Config, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read config %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return false, nil
	}

	var override Config
	if err := json5.Unmarshal(data, &override); err != nil {
		return false, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := mergo.Merge(dst, override, mergo.WithOverride); err != nil {
		return false, fmt.Errorf("merge config %s: %w", path, err)
	}
	return true, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvOutputDir); ok && v != "" {
		cfg.OutputDir = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvRedisAddr); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := os.LookupEnv(EnvSink); ok && v != "" {
		cfg.Sink = v
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
}

// Validate rejects configurations the program cannot run with.
func (c Config) Validate() error {
	switch c.Sink {
	case SinkCSV, SinkBoth:
		if c.OutputDir == "" {
			return fmt.Errorf("outputDir is required for the %s sink", c.Sink)
		}
		if c.Sink == SinkBoth && c.SQLitePath == "" {
			return fmt.Errorf("sqlitePath is required for the %s sink", c.Sink)
		}
	case SinkSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlitePath is required for the %s sink", c.Sink)
		}
	default:
		return fmt.Errorf("unknown sink %q (want csv, sqlite or both)", c.Sink)
	}

	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	if c.Log.FileLevel != "" {
		if _, ok := logging.ParseLevel(c.Log.FileLevel); !ok {
			return fmt.Errorf("unknown file log level %q", c.Log.FileLevel)
		}
	}

	if c.Batch.SkillConcurrency <= 0 || c.Batch.SalaryConcurrency <= 0 || c.Batch.JobConcurrency <= 0 {
		return fmt.Errorf("batch concurrency ceilings must be positive")
	}
	if c.Batch.RequestTimeout.Duration <= 0 || c.Batch.SearchTimeout.Duration <= 0 {
		return fmt.Errorf("batch timeouts must be positive")
	}

	if c.Site.CategoriesURL == "" || c.Site.GuideBaseURL == "" || c.Site.SearchURL == "" {
		return fmt.Errorf("site URLs are required")
	}
	return nil
}
