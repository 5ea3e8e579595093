// Package client provides the HTTP client for the job site's JSON endpoints
// with typed payloads, error classification and optional response caching.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/job-analyzer/pkg/cache"
	"github.com/Sternrassler/job-analyzer/pkg/taxonomy"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for site requests.
var (
	siteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobsite_requests_total",
		Help: "Total job site requests by endpoint and status",
	}, []string{"endpoint", "status"})

	siteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobsite_request_duration_seconds",
		Help:    "Job site request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"endpoint"})

	siteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobsite_errors_total",
		Help: "Total job site errors by endpoint and class",
	}, []string{"endpoint", "class"})
)

// Logical endpoint names used in logs, metrics and errors.
const (
	EndpointCategories = "categories"
	EndpointJobCard    = "job_card"
	EndpointCertCard   = "cert_card"
	EndpointSalary     = "salary"
	EndpointSearch     = "search"
)

// Client talks to the job site.
type Client struct {
	http   *resty.Client
	cache  *cache.Manager
	config Config
	logger zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// CategoriesURL serves the job category tree
	CategoriesURL string

	// GuideBaseURL hosts the job card, cert card and salary endpoints
	GuideBaseURL string

	// SearchURL is the job search list endpoint
	SearchURL string

	// DetailBaseURL is prefixed to a job id to form its detail URL
	DetailBaseURL string

	// Request headers
	UserAgent      string
	Referer        string
	AcceptLanguage string

	// Timeout bounds every request at the transport level; callers usually
	// pass a shorter deadline through the context
	Timeout time.Duration

	// Cache is optional; nil disables response caching
	Cache *cache.Manager

	Logger zerolog.Logger
}

// DefaultConfig returns the configuration for the live site.
func DefaultConfig() Config {
	return Config{
		CategoriesURL:  "https://static.104.com.tw/category-tool/json/JobCat.json",
		GuideBaseURL:   "https://be.guide.104.com.tw",
		SearchURL:      "https://www.104.com.tw/jobs/search/list",
		DetailBaseURL:  "https://www.104.com.tw/job/ajax/content/",
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36",
		Referer:        "https://www.104.com.tw/jobs/search",
		AcceptLanguage: "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7",
		Timeout:        30 * time.Second,
		Logger:         zerolog.Nop(),
	}
}

// New creates a new site client.
func New(cfg Config) (*Client, error) {
	if cfg.CategoriesURL == "" || cfg.GuideBaseURL == "" || cfg.SearchURL == "" {
		return nil, fmt.Errorf("categories, guide and search URLs are required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json, text/plain, */*")
	if cfg.Referer != "" {
		httpClient.SetHeader("Referer", cfg.Referer)
	}
	if cfg.AcceptLanguage != "" {
		httpClient.SetHeader("Accept-Language", cfg.AcceptLanguage)
	}

	return &Client{
		http:   httpClient,
		cache:  cfg.Cache,
		config: cfg,
		logger: cfg.Logger.With().Str("component", "jobsite-client").Logger(),
	}, nil
}

// DetailBaseURL returns the prefix for job detail URLs.
func (c *Client) DetailBaseURL() string {
	return c.config.DetailBaseURL
}

// JobCategories fetches the job category tree.
func (c *Client) JobCategories(ctx context.Context) ([]*taxonomy.CategoryNode, error) {
	var nodes []*taxonomy.CategoryNode
	req := request{
		endpoint: EndpointCategories,
		url:      c.config.CategoriesURL,
		headers:  map[string]string{"Accept": "application/json"},
	}
	if err := c.getJSON(ctx, req, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// JobCard fetches the skill profile of one category.
func (c *Client) JobCard(ctx context.Context, jobCode string) (SkillPayload, error) {
	var payload SkillPayload
	req := request{
		endpoint: EndpointJobCard,
		url:      c.config.GuideBaseURL + "/wow/jobCard/job",
		query:    url.Values{"jobCode": []string{jobCode}},
		key:      jobCode,
	}
	if err := c.getJSON(ctx, req, &payload); err != nil {
		return SkillPayload{}, err
	}
	return payload, nil
}

// CertCard fetches the tool, skill and certificate lists of one category.
func (c *Client) CertCard(ctx context.Context, jobCode string) (CertPayload, error) {
	var payload CertPayload
	req := request{
		endpoint: EndpointCertCard,
		url:      c.config.GuideBaseURL + "/wow/jobCard/cert",
		query:    url.Values{"jobCode": []string{jobCode}},
		key:      jobCode,
	}
	if err := c.getJSON(ctx, req, &payload); err != nil {
		return CertPayload{}, err
	}
	return payload, nil
}

// Salary fetches the salary brackets of one category for one salary type.
// A missing or null salaryList yields no rows and no error.
func (c *Client) Salary(ctx context.Context, jobCode string, salaryType SalaryType) ([]Record, error) {
	var payload salaryResponse
	req := request{
		endpoint: EndpointSalary,
		url:      c.config.GuideBaseURL + "/api/job/seniority/" + url.PathEscape(jobCode),
		query:    url.Values{"type": []string{strconv.Itoa(int(salaryType))}},
		key:      fmt.Sprintf("%s/%s", jobCode, salaryType),
	}
	if err := c.getJSON(ctx, req, &payload); err != nil {
		return nil, err
	}
	return payload.SalaryList, nil
}

// SearchPage fetches one page (1-based) of job search results.
func (c *Client) SearchPage(ctx context.Context, q SearchQuery, page int) (SearchPage, error) {
	query := url.Values{
		"ro":   []string{"0"},
		"page": []string{strconv.Itoa(page)},
	}
	if q.Order != 0 {
		query.Set("order", strconv.Itoa(q.Order))
	}
	if q.Keywords != "" {
		query.Set("keyword", q.Keywords)
	}
	if q.Category != "" {
		query.Set("jobcat", q.Category)
	}

	var payload searchResponse
	req := request{
		endpoint: EndpointSearch,
		url:      c.config.SearchURL,
		query:    query,
		key:      "page " + strconv.Itoa(page),
		headers: map[string]string{
			"Accept":           "application/json, text/javascript, */*; q=0.01",
			"X-Requested-With": "XMLHttpRequest",
		},
	}
	if err := c.getJSON(ctx, req, &payload); err != nil {
		return SearchPage{}, err
	}

	if payload.Data == nil || payload.Data.TotalPage == nil {
		return SearchPage{}, &SourceError{
			Class:    ErrorClassDecode,
			Endpoint: EndpointSearch,
			Key:      req.key,
			Err:      errMissingField("data.totalPage"),
		}
	}

	return SearchPage{
		TotalPage: *payload.Data.TotalPage,
		Jobs:      payload.Data.List,
	}, nil
}

type request struct {
	endpoint string
	url      string
	query    url.Values
	headers  map[string]string
	key      string
}

// getJSON performs a GET and decodes the body into out, consulting the cache
// first when one is configured. Only bodies that decode are cached.
func (c *Client) getJSON(ctx context.Context, req request, out any) error {
	cacheKey := cache.CacheKey{Endpoint: req.url, QueryParams: req.query}

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			if decodeErr := json.Unmarshal(entry.Data, out); decodeErr == nil {
				c.logger.Debug().
					Str("endpoint", req.endpoint).
					Str("key", req.key).
					Msg("Served from cache")
				return nil
			}
			_ = c.cache.Delete(ctx, cacheKey)
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", req.endpoint).Msg("Cache get error")
		}
	}

	startTime := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(req.query).
		SetHeaders(req.headers).
		Get(req.url)
	siteRequestDuration.WithLabelValues(req.endpoint).Observe(time.Since(startTime).Seconds())

	// Handle network errors
	if err != nil {
		siteRequestsTotal.WithLabelValues(req.endpoint, "network_error").Inc()
		siteErrorsTotal.WithLabelValues(req.endpoint, string(ErrorClassNetwork)).Inc()
		return &SourceError{
			Class:    ErrorClassNetwork,
			Endpoint: req.endpoint,
			Key:      req.key,
			Err:      err,
		}
	}

	status := resp.StatusCode()
	siteRequestsTotal.WithLabelValues(req.endpoint, strconv.Itoa(status)).Inc()

	// Handle HTTP errors
	if !resp.IsSuccess() {
		class := classifyStatus(status)
		siteErrorsTotal.WithLabelValues(req.endpoint, string(class)).Inc()
		c.logger.Debug().
			Str("endpoint", req.endpoint).
			Str("key", req.key).
			Int("status", status).
			Str("error_class", string(class)).
			Msg("Site request error")
		return &SourceError{
			Class:      class,
			Endpoint:   req.endpoint,
			Key:        req.key,
			StatusCode: status,
			Err:        fmt.Errorf("%s", resp.Status()),
		}
	}

	body := resp.Body()
	if err := json.Unmarshal(body, out); err != nil {
		siteErrorsTotal.WithLabelValues(req.endpoint, string(ErrorClassDecode)).Inc()
		return &SourceError{
			Class:      ErrorClassDecode,
			Endpoint:   req.endpoint,
			Key:        req.key,
			StatusCode: status,
			Err:        err,
		}
	}

	c.logger.Debug().
		Str("endpoint", req.endpoint).
		Str("key", req.key).
		Int("status", status).
		Dur("duration", time.Since(startTime)).
		Msg("Site request complete")

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, cache.NewEntry(body, status, c.cache.TTL())); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", req.endpoint).Msg("Failed to cache response")
		}
	}

	return nil
}
