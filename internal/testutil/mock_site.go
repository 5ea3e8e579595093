// Package testutil provides a mock job site for tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Paths served by the mock site.
const (
	CategoriesPath = "/category-tool/json/JobCat.json"
	JobCardPath    = "/wow/jobCard/job"
	CertCardPath   = "/wow/jobCard/cert"
	SalaryPrefix   = "/api/job/seniority/"
	SearchPath     = "/jobs/search/list"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSite is a configurable mock job site. Responses are keyed by path
// and, for the per-category endpoints, by the request's key parameters.
type MockSite struct {
	server *httptest.Server
	mu     sync.RWMutex

	categories MockResponse
	jobCards   map[string]MockResponse
	certCards  map[string]MockResponse
	salaries   map[string]MockResponse
	pages      map[string]MockResponse
	handlers   map[string]http.HandlerFunc

	// Tracking
	requestCount      int
	pathCounts        map[string]int
	lastRequestHeader http.Header
}

// NewMockSite starts a mock site. Unconfigured keys answer 404.
func NewMockSite() *MockSite {
	mock := &MockSite{
		categories: NewNotFoundResponse(),
		jobCards:   make(map[string]MockResponse),
		certCards:  make(map[string]MockResponse),
		salaries:   make(map[string]MockResponse),
		pages:      make(map[string]MockResponse),
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.lastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		write(w, mock.route(r))
	}))

	return mock
}

func (m *MockSite) route(r *http.Request) MockResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := r.URL.Query()
	lookup := func(set map[string]MockResponse, key string) MockResponse {
		if resp, ok := set[key]; ok {
			return resp
		}
		return NewNotFoundResponse()
	}

	switch path := r.URL.Path; {
	case path == CategoriesPath:
		return m.categories
	case path == JobCardPath:
		return lookup(m.jobCards, q.Get("jobCode"))
	case path == CertCardPath:
		return lookup(m.certCards, q.Get("jobCode"))
	case strings.HasPrefix(path, SalaryPrefix):
		code := strings.TrimPrefix(path, SalaryPrefix)
		return lookup(m.salaries, code+"/"+q.Get("type"))
	case path == SearchPath:
		return lookup(m.pages, q.Get("page"))
	default:
		return NewNotFoundResponse()
	}
}

func write(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server URL.
func (m *MockSite) URL() string {
	return m.server.URL
}

// CategoriesURL returns the category tree URL.
func (m *MockSite) CategoriesURL() string {
	return m.server.URL + CategoriesPath
}

// SearchURL returns the search list URL.
func (m *MockSite) SearchURL() string {
	return m.server.URL + SearchPath
}

// Close shuts down the mock server.
func (m *MockSite) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSite) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastRequestHeader = nil
}

// SetHandler overrides routing for a path.
func (m *MockSite) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetCategories configures the category tree response.
func (m *MockSite) SetCategories(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = resp
}

// SetJobCard configures the job card response for a category.
func (m *MockSite) SetJobCard(jobCode string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobCards[jobCode] = resp
}

// SetCertCard configures the cert card response for a category.
func (m *MockSite) SetCertCard(jobCode string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.certCards[jobCode] = resp
}

// SetSalary configures the salary response for a category and salary type id.
func (m *MockSite) SetSalary(jobCode, salaryType string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.salaries[jobCode+"/"+salaryType] = resp
}

// SetSearchPage configures the response for a 1-based search page.
func (m *MockSite) SetSearchPage(page string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = resp
}

// RequestCount returns the number of requests made to the server.
func (m *MockSite) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests made to one path.
func (m *MockSite) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockSite) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "not found"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewSlowResponse creates a JSON response delayed by d.
func NewSlowResponse(body string, d time.Duration) MockResponse {
	resp := NewJSONResponse(body)
	resp.Delay = d
	return resp
}
