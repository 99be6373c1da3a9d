package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wesleyorama2/restbench/internal/benchmark"
	"github.com/wesleyorama2/restbench/internal/testcase"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the available report formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
	// FormatJUnit outputs in JUnit XML format (for CI/CD integration)
	FormatJUnit OutputFormat = "junit"
)

// ParseFormat validates a report format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML, FormatJUnit:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown report format %q (expected text, json, yaml or junit)", s)
}

// Report gathers everything a test set run produced.
type Report struct {
	Name       string
	Started    time.Time
	Duration   time.Duration
	Tests      []testcase.Result
	Benchmarks []*benchmark.Result
}

// Passed counts passing tests.
func (r *Report) Passed() int {
	n := 0
	for _, t := range r.Tests {
		if t.Passed {
			n++
		}
	}
	return n
}

// Failed counts failing tests.
func (r *Report) Failed() int {
	return len(r.Tests) - r.Passed()
}

// OK reports whether every test passed and no benchmark failed outright.
func (r *Report) OK() bool {
	if r.Failed() > 0 {
		return false
	}
	for _, b := range r.Benchmarks {
		if BenchmarkFailed(b) {
			return false
		}
	}
	return true
}

// BenchmarkFailed reports whether every measured iteration of r failed.
func BenchmarkFailed(r *benchmark.Result) bool {
	return r.BenchmarkRuns > 0 && r.Failures >= r.BenchmarkRuns
}

// FailureData is a single failed check
type FailureData struct {
	Type    string `json:"type" yaml:"type"`
	Message string `json:"message" yaml:"message"`
}

// TestData is the structured form of a test result
type TestData struct {
	Name       string        `json:"name" yaml:"name"`
	Group      string        `json:"group" yaml:"group"`
	Passed     bool          `json:"passed" yaml:"passed"`
	StatusCode int           `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Duration   int64         `json:"durationMs" yaml:"durationMs"`
	Failures   []FailureData `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// AggregateData is the structured form of one reduction
type AggregateData struct {
	Metric    string   `json:"metric" yaml:"metric"`
	Aggregate string   `json:"aggregate" yaml:"aggregate"`
	Value     *float64 `json:"value" yaml:"value"`
	Samples   int      `json:"samples" yaml:"samples"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// BenchmarkData is the structured form of a benchmark result
type BenchmarkData struct {
	Name          string               `json:"name" yaml:"name"`
	Group         string               `json:"group" yaml:"group"`
	WarmupRuns    int                  `json:"warmupRuns" yaml:"warmupRuns"`
	BenchmarkRuns int                  `json:"benchmarkRuns" yaml:"benchmarkRuns"`
	Failures      int                  `json:"failures" yaml:"failures"`
	Unavailable   map[string]int       `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
	Results       map[string][]float64 `json:"results,omitempty" yaml:"results,omitempty"`
	Aggregates    []AggregateData      `json:"aggregates" yaml:"aggregates"`
}

// ReportData is the structured form of a whole run
type ReportData struct {
	Name        string          `json:"name" yaml:"name"`
	Timestamp   string          `json:"timestamp" yaml:"timestamp"`
	Duration    int64           `json:"durationMs" yaml:"durationMs"`
	TotalTests  int             `json:"totalTests" yaml:"totalTests"`
	PassedTests int             `json:"passedTests" yaml:"passedTests"`
	FailedTests int             `json:"failedTests" yaml:"failedTests"`
	Tests       []TestData      `json:"tests" yaml:"tests"`
	Benchmarks  []BenchmarkData `json:"benchmarks" yaml:"benchmarks"`
}

// Data converts r to its serializable form.
func (r *Report) Data() ReportData {
	d := ReportData{
		Name:        r.Name,
		Timestamp:   r.Started.Format(time.RFC3339),
		Duration:    r.Duration.Milliseconds(),
		TotalTests:  len(r.Tests),
		PassedTests: r.Passed(),
		FailedTests: r.Failed(),
		Tests:       make([]TestData, 0, len(r.Tests)),
		Benchmarks:  make([]BenchmarkData, 0, len(r.Benchmarks)),
	}
	for _, t := range r.Tests {
		td := TestData{
			Name:       t.Name,
			Group:      t.Group,
			Passed:     t.Passed,
			StatusCode: t.StatusCode,
			Duration:   t.Duration.Milliseconds(),
		}
		for _, f := range t.Failures {
			td.Failures = append(td.Failures, FailureData{Type: f.Type, Message: f.Message})
		}
		d.Tests = append(d.Tests, td)
	}
	for _, b := range r.Benchmarks {
		bd := BenchmarkData{
			Name:          b.Name,
			Group:         b.Group,
			WarmupRuns:    b.WarmupRuns,
			BenchmarkRuns: b.BenchmarkRuns,
			Failures:      b.Failures,
			Results:       b.Results,
			Aggregates:    make([]AggregateData, 0, len(b.Aggregates)),
		}
		if len(b.Unavailable) > 0 {
			bd.Unavailable = b.Unavailable
		}
		for _, a := range b.Aggregates {
			ad := AggregateData{Metric: a.Metric, Aggregate: a.Aggregate, Samples: a.Samples}
			if a.Err != nil {
				ad.Error = a.Err.Error()
			} else {
				v := a.Value
				ad.Value = &v
			}
			bd.Aggregates = append(bd.Aggregates, ad)
		}
		d.Benchmarks = append(d.Benchmarks, bd)
	}
	return d
}

// JUnitTestSuites represents the root element containing all test suites
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents a JUnit test suite
type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a JUnit test case
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

// JUnitFailure represents a JUnit test failure
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// JUnit converts r into one suite per test group. Benchmarks are reported
// in a "benchmarks" suite with their aggregates as system output.
func (r *Report) JUnit() *JUnitTestSuites {
	timestamp := r.Started.Format(time.RFC3339)
	suites := &JUnitTestSuites{}
	index := make(map[string]int)

	suiteFor := func(name string) *JUnitTestSuite {
		i, ok := index[name]
		if !ok {
			i = len(suites.TestSuites)
			index[name] = i
			suites.TestSuites = append(suites.TestSuites, JUnitTestSuite{Name: name, Timestamp: timestamp})
		}
		return &suites.TestSuites[i]
	}

	for _, t := range r.Tests {
		suite := suiteFor(t.Group)
		tc := JUnitTestCase{
			Name:      t.Name,
			Classname: "restbench." + t.Group,
			Time:      t.Duration.Seconds(),
		}
		if !t.Passed {
			msgs := make([]string, 0, len(t.Failures))
			for _, f := range t.Failures {
				msgs = append(msgs, f.Error())
			}
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("Test failed with %d check failures", len(t.Failures)),
				Type:    "AssertionError",
				Content: strings.Join(msgs, "\n"),
			}
			suite.Failures++
		}
		suite.Tests++
		suite.Time += tc.Time
		suite.TestCases = append(suite.TestCases, tc)
	}

	for _, b := range r.Benchmarks {
		suite := suiteFor("benchmarks")
		var out []string
		for _, a := range b.Aggregates {
			value := "N/A"
			if a.Err == nil {
				value = FormatValue(a.Value)
			}
			out = append(out, fmt.Sprintf("%s %s = %s (n=%d)", a.Metric, a.Aggregate, value, a.Samples))
		}
		tc := JUnitTestCase{
			Name:      b.Name,
			Classname: "restbench.benchmark." + b.Group,
			SystemOut: strings.Join(out, "\n"),
		}
		if BenchmarkFailed(b) {
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("all %d iterations failed", b.BenchmarkRuns),
				Type:    "BenchmarkError",
			}
			suite.Failures++
		}
		suite.Tests++
		suite.TestCases = append(suite.TestCases, tc)
	}

	return suites
}

// WriteReport serializes r in the given format. The text format replays the
// console output without colors.
func WriteReport(w io.Writer, r *Report, format OutputFormat) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r.Data())
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r.Data()); err != nil {
			return err
		}
		return enc.Close()
	case FormatJUnit:
		data, err := xml.MarshalIndent(r.JUnit(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal junit report: %w", err)
		}
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case FormatText, "":
		c := NewConsole(w, true, false)
		c.Header(r.Name, len(r.Tests), len(r.Benchmarks))
		for _, t := range r.Tests {
			c.TestResult(t)
		}
		for _, b := range r.Benchmarks {
			c.BenchmarkResult(b)
		}
		c.Summary(r)
		return nil
	}
	return fmt.Errorf("unknown report format %q", format)
}
