package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// SkillPayload is the job card of one category: the skill profile served by
// the job card endpoint, kept field for field.
type SkillPayload struct {
	JobCode string
	Record  Record
}

// UnmarshalJSON requires a jobCode member (string or number).
func (p *SkillPayload) UnmarshalJSON(data []byte) error {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	code, ok := rec.Scalar("jobCode")
	if !ok || code == "" {
		return errMissingField("jobCode")
	}
	p.JobCode = code
	p.Record = rec
	return nil
}

// Cert list members copied from the cert card onto the job card.
const (
	FieldHardToolList  = "hardToolList"
	FieldHardSkillList = "hardSkillList"
	FieldHardCertList  = "hardCertList"
)

// CertPayload holds the tool, skill and certificate lists of one category.
type CertPayload struct {
	HardToolList  []json.RawMessage `json:"hardToolList"`
	HardSkillList []json.RawMessage `json:"hardSkillList"`
	HardCertList  []json.RawMessage `json:"hardCertList"`
}

// WithCerts returns a copy of the job card whose three cert list members are
// replaced by the cert card's lists. Absent lists become empty arrays.
func (p SkillPayload) WithCerts(c CertPayload) SkillPayload {
	out := SkillPayload{JobCode: p.JobCode, Record: p.Record.Clone()}
	out.Record.Set(FieldHardToolList, rawList(c.HardToolList))
	out.Record.Set(FieldHardSkillList, rawList(c.HardSkillList))
	out.Record.Set(FieldHardCertList, rawList(c.HardCertList))
	return out
}

func rawList(items []json.RawMessage) json.RawMessage {
	if items == nil {
		items = []json.RawMessage{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return json.RawMessage("[]")
	}
	return data
}

// SalaryType selects monthly or annual salary statistics.
type SalaryType int

const (
	SalaryMonthly SalaryType = 1
	SalaryAnnual  SalaryType = 2
)

// AllSalaryTypes lists every salary type queried by the salary analysis.
var AllSalaryTypes = []SalaryType{SalaryMonthly, SalaryAnnual}

// String returns the name written to output rows.
func (t SalaryType) String() string {
	switch t {
	case SalaryMonthly:
		return "monthly"
	case SalaryAnnual:
		return "annual"
	default:
		return fmt.Sprintf("type_%d", int(t))
	}
}

// Label returns the site's own label for the type.
func (t SalaryType) Label() string {
	switch t {
	case SalaryMonthly:
		return "月薪"
	case SalaryAnnual:
		return "年薪"
	default:
		return t.String()
	}
}

type salaryResponse struct {
	SalaryList []Record `json:"salaryList"`
}

// SearchQuery filters the job listing search.
type SearchQuery struct {
	Category string
	Keywords string
	// Order is 15 for relevance, 16 for most recently updated
	Order int
}

// Search orderings.
const (
	OrderRelevance = 15
	OrderUpdated   = 16
)

// SearchPage is one page of search results.
type SearchPage struct {
	TotalPage int
	Jobs      []JobListing
}

// JobListing is one search result; Link is the listing's link.job.
type JobListing struct {
	Link   string
	Record Record
}

// UnmarshalJSON requires link.job.
func (l *JobListing) UnmarshalJSON(data []byte) error {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	rawLink, ok := rec.Get("link")
	if !ok {
		return errMissingField("link.job")
	}
	var link struct {
		Job string `json:"job"`
	}
	if err := json.Unmarshal(rawLink, &link); err != nil || link.Job == "" {
		return errMissingField("link.job")
	}
	l.Link = link.Job
	l.Record = rec
	return nil
}

// JobID returns the last path segment of the listing link.
func (l JobListing) JobID() string {
	link := l.Link
	if u, err := url.Parse(link); err == nil {
		link = u.Path
	} else if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	return path.Base(strings.TrimRight(link, "/"))
}

// DetailURL joins the detail endpoint base with the listing's job id.
func (l JobListing) DetailURL(base string) string {
	return base + l.JobID()
}

type searchResponse struct {
	Data *struct {
		TotalPage *int         `json:"totalPage"`
		List      []JobListing `json:"list"`
	} `json:"data"`
}
