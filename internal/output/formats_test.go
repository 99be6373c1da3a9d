package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wesleyorama2/restbench/internal/benchmark"
	"github.com/wesleyorama2/restbench/internal/testcase"
	"gopkg.in/yaml.v3"
)

func sampleReport() *Report {
	return &Report{
		Name:     "people api",
		Started:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration: 1500 * time.Millisecond,
		Tests: []testcase.Result{
			{Name: "list", Group: "people", Passed: true, StatusCode: 200, Duration: 12 * time.Millisecond},
			{
				Name: "create", Group: "people", StatusCode: 500, Duration: 30 * time.Millisecond,
				Failures: []testcase.Failure{{Type: "status", Message: "status code 500 not in expected [201]"}},
			},
			{Name: "ping", Group: "health", Passed: true, StatusCode: 204},
		},
		Benchmarks: []*benchmark.Result{
			{
				Name: "list bench", Group: "people", WarmupRuns: 1, BenchmarkRuns: 10, Failures: 2,
				Aggregates: []benchmark.Aggregate{
					{Metric: "total_time", Aggregate: "mean", Value: 0.25, Samples: 8},
					{Metric: "total_time", Aggregate: "mean_harmonic", Samples: 8, Err: errors.New("division by zero")},
				},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{
		"":       FormatText,
		"TEXT":   FormatText,
		"json":   FormatJSON,
		" yaml ": FormatYAML,
		"junit":  FormatJUnit,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestReportCounts(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, 2, r.Passed())
	assert.Equal(t, 1, r.Failed())
	assert.False(t, r.OK())

	r.Tests = r.Tests[:1]
	assert.True(t, r.OK())

	r.Benchmarks[0].Failures = 10
	assert.True(t, BenchmarkFailed(r.Benchmarks[0]))
	assert.False(t, r.OK())
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), FormatJSON))

	var data ReportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "people api", data.Name)
	assert.Equal(t, "2024-05-01T12:00:00Z", data.Timestamp)
	assert.Equal(t, int64(1500), data.Duration)
	assert.Equal(t, 3, data.TotalTests)
	assert.Equal(t, 1, data.FailedTests)
	require.Len(t, data.Tests, 3)
	assert.Equal(t, []FailureData{{Type: "status", Message: "status code 500 not in expected [201]"}}, data.Tests[1].Failures)

	require.Len(t, data.Benchmarks, 1)
	aggs := data.Benchmarks[0].Aggregates
	require.Len(t, aggs, 2)
	require.NotNil(t, aggs[0].Value)
	assert.Equal(t, 0.25, *aggs[0].Value)
	assert.Nil(t, aggs[1].Value)
	assert.Equal(t, "division by zero", aggs[1].Error)
}

func TestWriteReportYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), FormatYAML))

	var data ReportData
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "people api", data.Name)
	assert.Equal(t, 2, data.PassedTests)
	assert.Equal(t, "list bench", data.Benchmarks[0].Name)
}

func TestWriteReportJUnit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), FormatJUnit))
	assert.True(t, strings.HasPrefix(buf.String(), xml.Header))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	require.Len(t, suites.TestSuites, 3)

	people := suites.TestSuites[0]
	assert.Equal(t, "people", people.Name)
	assert.Equal(t, 2, people.Tests)
	assert.Equal(t, 1, people.Failures)
	require.NotNil(t, people.TestCases[1].Failure)
	assert.Contains(t, people.TestCases[1].Failure.Content, "status: status code 500")

	assert.Equal(t, "health", suites.TestSuites[1].Name)

	bench := suites.TestSuites[2]
	assert.Equal(t, "benchmarks", bench.Name)
	require.Len(t, bench.TestCases, 1)
	assert.Nil(t, bench.TestCases[0].Failure)
	assert.Contains(t, bench.TestCases[0].SystemOut, "total_time mean = 0.25 (n=8)")
	assert.Contains(t, bench.TestCases[0].SystemOut, "total_time mean_harmonic = N/A")
}

func TestWriteReportText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), FormatText))

	out := buf.String()
	assert.Contains(t, out, "✓ PASS [people] list (200, 12ms)")
	assert.Contains(t, out, "✗ FAIL [people] create (500, 30ms)")
	assert.Contains(t, out, "status: status code 500 not in expected [201]")
	assert.Contains(t, out, "⚠ BENCH [people] list bench (1 warmup, 10 runs, 2 failed)")
	assert.Contains(t, out, "N/A")
	assert.Contains(t, out, "people api: 2 passed, 1 failed, 1 benchmarks in 1.5s")
	assert.NotContains(t, out, "\x1b[")
}

func TestWriteReportUnknownFormat(t *testing.T) {
	err := WriteReport(&bytes.Buffer{}, sampleReport(), OutputFormat("xml"))
	assert.Error(t, err)
}
