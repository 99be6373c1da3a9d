package benchmark

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wesleyorama2/restbench/internal/metrics"
	"github.com/wesleyorama2/restbench/internal/parsing"
	"github.com/wesleyorama2/restbench/internal/testcase"
)

// MetricEntry is one declared metric with an optional aggregate. An empty
// Aggregate declares a raw metric.
type MetricEntry struct {
	Metric    string
	Aggregate string
}

// MetricsSpec is the parsed form of the metrics field. It is one of
// SingleMetric, MetricList or MetricMapping.
type MetricsSpec interface {
	Entries() []MetricEntry
}

// SingleMetric declares one raw metric: metrics: total_time
type SingleMetric string

// Entries implements MetricsSpec.
func (s SingleMetric) Entries() []MetricEntry {
	return []MetricEntry{{Metric: string(s)}}
}

// MetricList is a list mixing raw names and single-key {metric: aggregate}
// mappings.
type MetricList []MetricEntry

// Entries implements MetricsSpec.
func (l MetricList) Entries() []MetricEntry {
	return l
}

// MetricMapping is a {metric: aggregate} mapping. Entries are ordered by
// metric name.
type MetricMapping []MetricEntry

// Entries implements MetricsSpec.
func (m MetricMapping) Entries() []MetricEntry {
	return m
}

// ParseMetricsSpec classifies a metrics node into its MetricsSpec variant.
func ParseMetricsSpec(v interface{}) (MetricsSpec, error) {
	switch t := v.(type) {
	case string:
		return SingleMetric(t), nil

	case []interface{}:
		list := make(MetricList, 0, len(t))
		for i, item := range t {
			switch it := item.(type) {
			case string:
				list = append(list, MetricEntry{Metric: it})
			case map[string]interface{}, map[interface{}]interface{}:
				entries, err := mappingEntries(it)
				if err != nil {
					return nil, fmt.Errorf("entry %d: %w", i, err)
				}
				list = append(list, entries...)
			default:
				return nil, fmt.Errorf("%w: entry %d has type %T", ErrInvalidMetricsSpec, i, item)
			}
		}
		return list, nil

	case map[string]interface{}, map[interface{}]interface{}:
		entries, err := mappingEntries(t)
		if err != nil {
			return nil, err
		}
		return MetricMapping(entries), nil
	}
	return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidMetricsSpec, v)
}

func mappingEntries(v interface{}) ([]MetricEntry, error) {
	m, ok := parsing.Normalize(v).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: metric names must be strings", ErrInvalidMetricsSpec)
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	entries := make([]MetricEntry, 0, len(m))
	for _, name := range names {
		agg, ok := m[name].(string)
		if !ok {
			return nil, fmt.Errorf("%w: aggregate for %q must be a string, got %T", ErrInvalidMetricsSpec, name, m[name])
		}
		entries = append(entries, MetricEntry{Metric: name, Aggregate: agg})
	}
	return entries, nil
}

// Apply declares every entry of spec on b.
func Apply(b *Benchmark, spec MetricsSpec) error {
	for _, e := range spec.Entries() {
		var err error
		if e.Aggregate == "" {
			err = b.AddMetric(e.Metric)
		} else {
			err = b.AddMetric(e.Metric, e.Aggregate)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Option configures ParseBenchmark.
type Option func(*parseOptions)

type parseOptions struct {
	metricSet    *metrics.MetricSet
	aggregateSet *metrics.AggregateSet
	baseDir      string
}

// WithMetricSet validates metrics against ms instead of the standard set.
func WithMetricSet(ms *metrics.MetricSet) Option {
	return func(o *parseOptions) { o.metricSet = ms }
}

// WithAggregateSet validates aggregates against as instead of the standard
// set.
func WithAggregateSet(as *metrics.AggregateSet) Option {
	return func(o *parseOptions) { o.aggregateSet = as }
}

// WithBaseDir resolves file references in validators relative to dir.
func WithBaseDir(dir string) Option {
	return func(o *parseOptions) { o.baseDir = dir }
}

// ParseBenchmark builds a benchmark from a configuration node. The node may
// be a mapping or a list of single-key mappings; keys are case-insensitive.
// Any invalid field rejects the whole benchmark.
func ParseBenchmark(baseURL string, node interface{}, opts ...Option) (*Benchmark, error) {
	o := parseOptions{baseDir: "."}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := parsing.Node(node)
	if err != nil {
		return nil, &ParseError{Field: "node", Err: err}
	}

	b := New(o.metricSet, o.aggregateSet)
	if err := testcase.ParseTest(baseURL, cfg, &b.Test, o.baseDir); err != nil {
		return nil, err
	}

	for key, value := range cfg {
		switch key {
		case "warmup_runs":
			if b.WarmupRuns, err = runCount(value); err != nil {
				return nil, &ParseError{Field: key, Err: err}
			}
		case "benchmark_runs":
			if b.BenchmarkRuns, err = runCount(value); err != nil {
				return nil, &ParseError{Field: key, Err: err}
			}
		case "output_format":
			s, ok := value.(string)
			format := strings.ToLower(strings.TrimSpace(s))
			if !ok || !validFormat(format) {
				return nil, &ParseError{Field: key, Err: fmt.Errorf("%w: %v (expected one of %s)", ErrInvalidOutputFormat, value, strings.Join(OutputFormats, ", "))}
			}
			b.OutputFormat = format
		case "output_file":
			s, ok := value.(string)
			if !ok {
				return nil, &ParseError{Field: key, Err: fmt.Errorf("%w: expected a string, got %T", ErrInvalidOutputFile, value)}
			}
			b.OutputFile = s
		case "metrics":
			spec, err := ParseMetricsSpec(value)
			if err != nil {
				return nil, &ParseError{Field: key, Err: err}
			}
			if err := Apply(b, spec); err != nil {
				return nil, &ParseError{Field: key, Err: err}
			}
		}
	}
	return b, nil
}

func runCount(v interface{}) (int, error) {
	n, err := parsing.Int(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRunCount, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrInvalidRunCount, n)
	}
	return n, nil
}

func validFormat(f string) bool {
	for _, known := range OutputFormats {
		if f == known {
			return true
		}
	}
	return false
}
