// Package benchmark repeats a single test many times, collects per-exchange
// metrics and reduces them into statistical aggregates.
package benchmark

import (
	"errors"
	"fmt"

	"github.com/wesleyorama2/restbench/internal/metrics"
	"github.com/wesleyorama2/restbench/internal/testcase"
)

// Defaults applied by ParseBenchmark.
const (
	DefaultWarmupRuns    = 10
	DefaultBenchmarkRuns = 100
	DefaultOutputFormat  = FormatCSV
)

// Output formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// OutputFormats lists the accepted output formats.
var OutputFormats = []string{FormatCSV, FormatJSON}

// Errors wrapped by ParseError.
var (
	ErrUnknownMetric       = errors.New("unknown metric")
	ErrUnknownAggregate    = errors.New("unknown aggregate")
	ErrInvalidMetricsSpec  = errors.New("invalid metrics specification")
	ErrInvalidOutputFormat = errors.New("invalid output format")
	ErrInvalidOutputFile   = errors.New("invalid output file")
	ErrInvalidRunCount     = errors.New("invalid run count")
)

// ParseError reports a benchmark field that could not be parsed.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("benchmark %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Benchmark extends a single test with repetition counts and the metrics to
// collect. Metric tables are only written while parsing.
type Benchmark struct {
	testcase.Test

	WarmupRuns    int
	BenchmarkRuns int
	OutputFormat  string
	OutputFile    string

	metricSet    *metrics.MetricSet
	aggregateSet *metrics.AggregateSet

	metrics           []string
	metricIndex       map[string]struct{}
	rawMetrics        []string
	rawIndex          map[string]struct{}
	aggregatedMetrics map[string][]string
	aggregatedOrder   []string
}

// New returns a benchmark with defaults applied, validated against the
// given registries.
func New(ms *metrics.MetricSet, as *metrics.AggregateSet) *Benchmark {
	if ms == nil {
		ms = metrics.StandardMetrics()
	}
	if as == nil {
		as = metrics.StandardAggregates()
	}
	return &Benchmark{
		Test:              *testcase.New(),
		WarmupRuns:        DefaultWarmupRuns,
		BenchmarkRuns:     DefaultBenchmarkRuns,
		OutputFormat:      DefaultOutputFormat,
		metricSet:         ms,
		aggregateSet:      as,
		metricIndex:       make(map[string]struct{}),
		rawIndex:          make(map[string]struct{}),
		aggregatedMetrics: make(map[string][]string),
	}
}

// AddMetric declares metric for collection. Without an aggregate the metric
// is reported raw; each call with an aggregate appends one reduction, and
// repeated aggregates are kept.
func (b *Benchmark) AddMetric(name string, aggregate ...string) error {
	name = metrics.Normalize(name)
	if !b.metricSet.Has(name) {
		return fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}

	if len(aggregate) == 0 {
		b.declare(name)
		if _, ok := b.rawIndex[name]; !ok {
			b.rawIndex[name] = struct{}{}
			b.rawMetrics = append(b.rawMetrics, name)
		}
		return nil
	}

	aggs := make([]string, 0, len(aggregate))
	for _, a := range aggregate {
		a = metrics.Normalize(a)
		if !b.aggregateSet.Has(a) {
			return fmt.Errorf("%w: %q", ErrUnknownAggregate, a)
		}
		aggs = append(aggs, a)
	}

	b.declare(name)
	if _, ok := b.aggregatedMetrics[name]; !ok {
		b.aggregatedOrder = append(b.aggregatedOrder, name)
	}
	b.aggregatedMetrics[name] = append(b.aggregatedMetrics[name], aggs...)
	return nil
}

func (b *Benchmark) declare(name string) {
	if _, ok := b.metricIndex[name]; ok {
		return
	}
	b.metricIndex[name] = struct{}{}
	b.metrics = append(b.metrics, name)
}

// Metrics returns every declared metric in declaration order.
func (b *Benchmark) Metrics() []string {
	return append([]string(nil), b.metrics...)
}

// RawMetrics returns the metrics reported without aggregation.
func (b *Benchmark) RawMetrics() []string {
	return append([]string(nil), b.rawMetrics...)
}

// AggregatedMetrics returns the metrics that have reductions, in declaration
// order.
func (b *Benchmark) AggregatedMetrics() []string {
	return append([]string(nil), b.aggregatedOrder...)
}

// Aggregates returns the reductions requested for metric, in request order.
func (b *Benchmark) Aggregates(metric string) []string {
	return append([]string(nil), b.aggregatedMetrics[metric]...)
}

// HasMetric reports whether metric was declared.
func (b *Benchmark) HasMetric(metric string) bool {
	_, ok := b.metricIndex[metric]
	return ok
}

// MetricSet returns the metric registry the benchmark was validated against.
func (b *Benchmark) MetricSet() *metrics.MetricSet {
	return b.metricSet
}

// AggregateSet returns the aggregate registry the benchmark was validated
// against.
func (b *Benchmark) AggregateSet() *metrics.AggregateSet {
	return b.aggregateSet
}

// Copy returns a shallow copy. Metric tables, templates and binds are shared
// with the original, so neither must be mutated afterwards.
func (b *Benchmark) Copy() *Benchmark {
	cp := *b
	return &cp
}
