package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/restbench/internal/benchmark"
	"github.com/wesleyorama2/restbench/internal/testcase"
)

// Console prints test and benchmark outcomes as they complete.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	scheme  *ColorScheme
	noColor bool
	verbose bool
}

// NewConsole returns a console writing to w. Colors are used only when
// UseColor allows them.
func NewConsole(w io.Writer, noColor, verbose bool) *Console {
	c := &Console{w: w, verbose: verbose, noColor: !UseColor(w, noColor)}
	if c.noColor {
		c.scheme = NoColorScheme()
	} else {
		c.scheme = ForcedColorScheme()
	}
	return c
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.w, format, args...)
}

// Header prints the banner of a test set run.
func (c *Console) Header(name string, tests, benchmarks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := strings.Repeat("━", 56)
	c.printf("%s\n", c.scheme.Dim.Sprint(line))
	c.printf("%s  %s\n", c.scheme.Highlight.Sprint(name),
		c.scheme.Dim.Sprintf("%d tests, %d benchmarks", tests, benchmarks))
	c.printf("%s\n", c.scheme.Dim.Sprint(line))
}

// TestResult prints one test outcome with its failures.
func (c *Console) TestResult(r testcase.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	icon, label := SuccessIcon(c.noColor), c.scheme.Pass.Sprint("PASS")
	if !r.Passed {
		icon, label = ErrorIcon(c.noColor), c.scheme.Fail.Sprint("FAIL")
	}

	status := "-"
	if r.StatusCode != 0 {
		status = strconv.Itoa(r.StatusCode)
	}
	c.printf("%s %s %s %s %s\n", icon, label,
		c.scheme.Group.Sprintf("[%s]", r.Group), r.Name,
		c.scheme.Dim.Sprintf("(%s, %dms)", status, r.Duration.Milliseconds()))

	for _, f := range r.Failures {
		c.printf("    %s %s\n", c.scheme.Warn.Sprintf("%s:", f.Type), f.Message)
	}
	if r.Body != "" {
		c.printf("  Body:\n  %s\n", formatJSONString(r.Body))
	}
}

// BenchmarkResult prints the aggregates and raw sample counts of a
// benchmark.
func (c *Console) BenchmarkResult(r *benchmark.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	icon := InfoIcon(c.noColor)
	if BenchmarkFailed(r) {
		icon = ErrorIcon(c.noColor)
	} else if r.Failures > 0 {
		icon = WarningIcon(c.noColor)
	}
	c.printf("%s %s %s %s %s\n", icon, c.scheme.Method.Sprint("BENCH"),
		c.scheme.Group.Sprintf("[%s]", r.Group), r.Name,
		c.scheme.Dim.Sprintf("(%d warmup, %d runs, %d failed)", r.WarmupRuns, r.BenchmarkRuns, r.Failures))

	for _, a := range r.Aggregates {
		value := c.scheme.Fail.Sprint("N/A")
		if a.Err == nil {
			value = c.scheme.Value.Sprint(FormatValue(a.Value))
		}
		c.printf("    %-20s %-15s %s %s\n", c.scheme.Metric.Sprint(a.Metric), a.Aggregate, value,
			c.scheme.Dim.Sprintf("(n=%d)", a.Samples))
		if a.Err != nil && c.verbose {
			c.printf("      %s\n", a.Err)
		}
	}
	for _, m := range r.RawMetrics() {
		c.printf("    %-20s %-15s %s\n", c.scheme.Metric.Sprint(m), "raw",
			c.scheme.Dim.Sprintf("%d samples", len(r.Results[m])))
	}
	names := make([]string, 0, len(r.Unavailable))
	for m := range r.Unavailable {
		names = append(names, m)
	}
	sort.Strings(names)
	for _, m := range names {
		c.printf("    %s %s unavailable in %d iterations\n", WarningIcon(c.noColor), m, r.Unavailable[m])
	}
}

// Summary prints the totals of a finished run.
func (c *Console) Summary(r *Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.printf("\n")
	passed := c.scheme.Pass.Sprintf("%d passed", r.Passed())
	failed := c.scheme.Dim.Sprintf("%d failed", r.Failed())
	if r.Failed() > 0 {
		failed = c.scheme.Fail.Sprintf("%d failed", r.Failed())
	}
	c.printf("%s: %s, %s, %d benchmarks %s\n", c.scheme.Highlight.Sprint(r.Name),
		passed, failed, len(r.Benchmarks), c.scheme.Dim.Sprintf("in %s", r.Duration.Round(time.Millisecond)))
}

// FormatValue renders an aggregate value with six significant digits.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// formatJSONString attempts to pretty-print a JSON string
func formatJSONString(s string) string {
	var prettyJSON bytes.Buffer
	err := json.Indent(&prettyJSON, []byte(s), "  ", "  ")
	if err != nil {
		return s
	}
	return prettyJSON.String()
}
