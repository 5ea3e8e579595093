package analysis

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Sternrassler/job-analyzer/pkg/batch"
	"github.com/Sternrassler/job-analyzer/pkg/client"
	"github.com/Sternrassler/job-analyzer/pkg/taxonomy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeSkills_InnerJoin(t *testing.T) {
	cats := []taxonomy.FlatCategory{
		{JobCode: "X", JobName: "ex", ParentCode: "R", ParentName: "root"},
		{JobCode: "Y", JobName: "why", ParentCode: "R", ParentName: "root"},
		{JobCode: "Z", JobName: "zeta", ParentCode: "R", ParentName: "root"},
	}
	results := []SkillResult{
		{Key: "Z", Payload: skillPayload(t, `{"jobCode": "Z", "summary": "z", "hardToolList": ["Go"]}`)},
		{Key: "Y", Err: errors.New("boom")},
		{Key: "X", Payload: skillPayload(t, `{"jobCode": "X", "summary": "x", "level": 3}`)},
	}

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	table, dropped := MergeSkills(cats, results, logger)

	assert.Equal(t, []string{"Y"}, dropped)
	assert.Equal(t, []string{
		ColumnParentCode, ColumnParentName, ColumnJobCode, ColumnJobName,
		"jobCode", "summary", "level", "hardToolList",
	}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"R", "root", "X", "ex", "X", "x", "3", ""}, table.Rows[0])
	assert.Equal(t, []string{"R", "root", "Z", "zeta", "Z", "z", "", `["Go"]`}, table.Rows[1])

	logs := buf.String()
	assert.Contains(t, logs, `"dropped":1`)
	assert.Contains(t, logs, `"keys":["Y"]`)
}

func TestMergeSkills_NoDropsNoWarning(t *testing.T) {
	cats := []taxonomy.FlatCategory{{JobCode: "X", JobName: "ex"}}
	results := []SkillResult{{Key: "X", Payload: skillPayload(t, `{"jobCode": "X"}`)}}

	var buf bytes.Buffer
	table, dropped := MergeSkills(cats, results, zerolog.New(&buf))

	assert.Empty(t, dropped)
	assert.Len(t, table.Rows, 1)
	assert.Empty(t, buf.String())
}

func TestMergeSkills_CategoryColumnsShadowPayload(t *testing.T) {
	cats := []taxonomy.FlatCategory{{JobCode: "X", JobName: "from taxonomy"}}
	results := []SkillResult{{Key: "X", Payload: skillPayload(t, `{"jobCode": "X", "job_name": "from card"}`)}}

	table, _ := MergeSkills(cats, results, zerolog.Nop())

	assert.Equal(t, []string{ColumnParentCode, ColumnParentName, ColumnJobCode, ColumnJobName, "jobCode"}, table.Columns)
	assert.Equal(t, "from taxonomy", table.Rows[0][3])
}

func TestMergeSkills_AllFailed(t *testing.T) {
	cats := []taxonomy.FlatCategory{{JobCode: "X"}, {JobCode: "Y"}}
	results := []SkillResult{{Key: "X", Err: client.ErrNetwork}, {Key: "Y", Err: batch.ErrCancelled}}

	table, dropped := MergeSkills(cats, results, zerolog.Nop())

	assert.Equal(t, 0, table.Len())
	assert.Equal(t, []string{"X", "Y"}, dropped)
}

func TestRunSkills(t *testing.T) {
	src := newFakeSource()
	src.categories = sampleTree()
	src.jobCards["X"] = skillPayload(t, `{"jobCode": "X", "hardToolList": [], "summary": "x"}`)
	src.jobCards["Y"] = skillPayload(t, `{"jobCode": "Y", "summary": "y"}`)
	src.jobCards["Z"] = skillPayload(t, `{"jobCode": "Z", "summary": "z"}`)
	src.certCards["X"] = certPayload(t, `{"hardToolList": ["Go"], "hardSkillList": ["SQL"], "hardCertList": []}`)
	src.certCards["Z"] = certPayload(t, `{"hardToolList": ["Rust"]}`)
	// Y has a job card but no cert card: partial success counts as failure

	out := newMemorySink()
	err := New(src, out, testConfig()).RunSkills(context.Background())
	require.NoError(t, err)

	table, ok := out.table(SkillsTable)
	require.True(t, ok)
	assert.Equal(t, []string{
		ColumnParentCode, ColumnParentName, ColumnJobCode, ColumnJobName,
		"jobCode", "hardToolList", "summary", "hardSkillList", "hardCertList",
	}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"R", "root", "X", "ex", "X", `["Go"]`, "x", `["SQL"]`, `[]`}, table.Rows[0])
	assert.Equal(t, []string{"R", "root", "Z", "zeta", "Z", `["Rust"]`, "z", `[]`, `[]`}, table.Rows[1])
}

func TestRunSkills_TaxonomyErrors(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		src := newFakeSource()
		src.categoriesErr = &client.SourceError{Class: client.ErrorClassServer, Endpoint: client.EndpointCategories, StatusCode: 503}

		err := New(src, newMemorySink(), testConfig()).RunSkills(context.Background())
		assert.ErrorIs(t, err, client.ErrNetwork)
	})

	t.Run("malformed", func(t *testing.T) {
		loop := &taxonomy.CategoryNode{Code: "L"}
		loop.Children = []*taxonomy.CategoryNode{loop}

		src := newFakeSource()
		src.categories = []*taxonomy.CategoryNode{loop}

		err := New(src, newMemorySink(), testConfig()).RunSkills(context.Background())
		assert.ErrorIs(t, err, taxonomy.ErrMalformedTaxonomy)
		assert.Zero(t, src.calls.Load(), "no fetches for a malformed taxonomy")
	})
}
