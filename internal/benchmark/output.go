package benchmark

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// MetricsToTuples lays raw samples out as a table: a header row of metric
// names in sorted order, then one row per iteration. Columns shorter than
// the longest one leave empty cells.
func MetricsToTuples(results map[string][]float64) [][]string {
	names := make([]string, 0, len(results))
	rows := 0
	for name, values := range results {
		names = append(names, name)
		rows = max(rows, len(values))
	}
	sort.Strings(names)

	out := make([][]string, 0, rows+1)
	out = append(out, names)
	for i := 0; i < rows; i++ {
		row := make([]string, len(names))
		for j, name := range names {
			if values := results[name]; i < len(values) {
				row[j] = formatFloat(values[i])
			}
		}
		out = append(out, row)
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteResult serializes r in the given format.
func WriteResult(w io.Writer, r *Result, format string) error {
	switch strings.ToLower(format) {
	case FormatCSV, "":
		return WriteCSV(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	}
	return fmt.Errorf("%w: %q", ErrInvalidOutputFormat, format)
}

// WriteResultFile writes r to path, truncating any existing file. Missing
// parent directories are created.
func WriteResultFile(path string, r *Result, format string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteResult(f, r, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes a header block, the raw sample table and the aggregate
// table. Failed reductions are written as N/A.
func WriteCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	records := [][]string{
		{"Benchmark", r.Name},
		{"Benchmark Group", r.Group},
		{"Failures", strconv.Itoa(r.Failures)},
	}

	if len(r.Results) > 0 {
		records = append(records, []string{"Results", ""})
		records = append(records, MetricsToTuples(r.Results)...)
	}

	if len(r.Aggregates) > 0 {
		records = append(records, []string{"Aggregates", ""})
		for _, a := range r.Aggregates {
			value := "N/A"
			if a.Err == nil {
				value = formatFloat(a.Value)
			}
			records = append(records, []string{a.Metric, a.Aggregate, value, strconv.Itoa(a.Samples)})
		}
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

type jsonAggregate struct {
	Metric    string   `json:"metric"`
	Aggregate string   `json:"aggregate"`
	Value     *float64 `json:"value"`
	Samples   int      `json:"samples"`
	Error     string   `json:"error,omitempty"`
}

type jsonResult struct {
	Name          string               `json:"benchmark_name"`
	Group         string               `json:"benchmark_group"`
	WarmupRuns    int                  `json:"warmup_runs"`
	BenchmarkRuns int                  `json:"benchmark_runs"`
	Failures      int                  `json:"failures"`
	Unavailable   map[string]int       `json:"unavailable,omitempty"`
	Results       map[string][]float64 `json:"results"`
	Aggregates    []jsonAggregate      `json:"aggregates"`
}

// WriteJSON writes r as an indented JSON document.
func WriteJSON(w io.Writer, r *Result) error {
	out := jsonResult{
		Name:          r.Name,
		Group:         r.Group,
		WarmupRuns:    r.WarmupRuns,
		BenchmarkRuns: r.BenchmarkRuns,
		Failures:      r.Failures,
		Results:       r.Results,
		Aggregates:    make([]jsonAggregate, 0, len(r.Aggregates)),
	}
	if len(r.Unavailable) > 0 {
		out.Unavailable = r.Unavailable
	}
	if out.Results == nil {
		out.Results = map[string][]float64{}
	}
	for _, a := range r.Aggregates {
		ja := jsonAggregate{Metric: a.Metric, Aggregate: a.Aggregate, Samples: a.Samples}
		if a.Err != nil {
			ja.Error = a.Err.Error()
		} else {
			v := a.Value
			ja.Value = &v
		}
		out.Aggregates = append(out.Aggregates, ja)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
