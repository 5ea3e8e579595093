package analysis

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/job-analyzer/pkg/client"
	"github.com/Sternrassler/job-analyzer/pkg/sink"
	"github.com/Sternrassler/job-analyzer/pkg/taxonomy"
	"github.com/stretchr/testify/require"
)

const testDetailBase = "https://www.104.com.tw/job/ajax/content/"

// fakeSource serves canned payloads; unknown keys fail with a 404.
type fakeSource struct {
	categories    []*taxonomy.CategoryNode
	categoriesErr error
	jobCards      map[string]client.SkillPayload
	certCards     map[string]client.CertPayload
	salaries      map[SalaryKey][]client.Record
	pages         map[int]client.SearchPage
	delay         time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		jobCards:  make(map[string]client.SkillPayload),
		certCards: make(map[string]client.CertPayload),
		salaries:  make(map[SalaryKey][]client.Record),
		pages:     make(map[int]client.SearchPage),
	}
}

func notFound(endpoint, key string) error {
	return &client.SourceError{
		Class:      client.ErrorClassClient,
		Endpoint:   endpoint,
		Key:        key,
		StatusCode: 404,
	}
}

func (f *fakeSource) enter(ctx context.Context) error {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			f.inFlight.Add(-1)
			return ctx.Err()
		}
	}
	f.inFlight.Add(-1)
	return nil
}

func (f *fakeSource) JobCategories(ctx context.Context) ([]*taxonomy.CategoryNode, error) {
	if f.categoriesErr != nil {
		return nil, f.categoriesErr
	}
	return f.categories, nil
}

func (f *fakeSource) JobCard(ctx context.Context, jobCode string) (client.SkillPayload, error) {
	if err := f.enter(ctx); err != nil {
		return client.SkillPayload{}, err
	}
	p, ok := f.jobCards[jobCode]
	if !ok {
		return client.SkillPayload{}, notFound(client.EndpointJobCard, jobCode)
	}
	return p, nil
}

func (f *fakeSource) CertCard(ctx context.Context, jobCode string) (client.CertPayload, error) {
	p, ok := f.certCards[jobCode]
	if !ok {
		return client.CertPayload{}, notFound(client.EndpointCertCard, jobCode)
	}
	return p, nil
}

func (f *fakeSource) Salary(ctx context.Context, jobCode string, salaryType client.SalaryType) ([]client.Record, error) {
	if err := f.enter(ctx); err != nil {
		return nil, err
	}
	key := SalaryKey{JobCode: jobCode, Type: salaryType}
	recs, ok := f.salaries[key]
	if !ok {
		return nil, notFound(client.EndpointSalary, jobCode)
	}
	return recs, nil
}

func (f *fakeSource) SearchPage(ctx context.Context, q client.SearchQuery, page int) (client.SearchPage, error) {
	if err := f.enter(ctx); err != nil {
		return client.SearchPage{}, err
	}
	p, ok := f.pages[page]
	if !ok {
		return client.SearchPage{}, notFound(client.EndpointSearch, "page")
	}
	return p, nil
}

func (f *fakeSource) DetailBaseURL() string {
	return testDetailBase
}

// memorySink keeps written tables by name.
type memorySink struct {
	mu     sync.Mutex
	tables map[string]sink.Table
	err    error
}

func newMemorySink() *memorySink {
	return &memorySink{tables: make(map[string]sink.Table)}
}

func (m *memorySink) Write(_ context.Context, name string, table sink.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tables[name] = table
	return nil
}

func (m *memorySink) table(name string) (sink.Table, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	return t, ok
}

func skillPayload(t *testing.T, body string) client.SkillPayload {
	t.Helper()
	var p client.SkillPayload
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return p
}

func certPayload(t *testing.T, body string) client.CertPayload {
	t.Helper()
	var p client.CertPayload
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return p
}

func records(t *testing.T, bodies ...string) []client.Record {
	t.Helper()
	out := make([]client.Record, len(bodies))
	for i, b := range bodies {
		require.NoError(t, json.Unmarshal([]byte(b), &out[i]))
	}
	return out
}

func listings(t *testing.T, bodies ...string) []client.JobListing {
	t.Helper()
	out := make([]client.JobListing, len(bodies))
	for i, b := range bodies {
		require.NoError(t, json.Unmarshal([]byte(b), &out[i]))
	}
	return out
}

// sampleTree is one root with categories X, Y and Z.
func sampleTree() []*taxonomy.CategoryNode {
	return []*taxonomy.CategoryNode{{
		Code:        "R",
		DisplayName: "root",
		Children: []*taxonomy.CategoryNode{
			{Code: "Z", DisplayName: "zeta"},
			{Code: "X", DisplayName: "ex"},
			{Code: "Y", DisplayName: "why"},
		},
	}}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RequestTimeout = time.Second
	cfg.SearchTimeout = time.Second
	return cfg
}
