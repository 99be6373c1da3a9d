package benchmark

// Aggregate is one (metric, aggregate, value) reduction. Err is set when the
// reduction could not be computed, in which case Value is meaningless.
type Aggregate struct {
	Metric    string
	Aggregate string
	Value     float64
	Samples   int
	Err       error
}

// Samples holds the raw per-iteration observations of every collected
// metric, in iteration order.
type Samples map[string][]float64

// Result is the analyzed output of one benchmark run.
type Result struct {
	Name  string
	Group string

	WarmupRuns    int
	BenchmarkRuns int
	// Failures counts measured iterations that produced no exchange.
	Failures int
	// Unavailable counts, per metric, the samples dropped because an
	// exchange did not expose the metric.
	Unavailable map[string]int

	// Results holds the raw samples of the metrics declared without
	// aggregation. Metrics that never produced a sample are absent.
	Results map[string][]float64
	// Aggregates holds one entry per requested reduction, in metric
	// declaration order and then request order.
	Aggregates []Aggregate

	rawOrder []string
}

// RawMetrics returns the keys of Results in declaration order.
func (r *Result) RawMetrics() []string {
	out := make([]string, 0, len(r.Results))
	for _, m := range r.rawOrder {
		if _, ok := r.Results[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Analyze reduces raw samples according to the metrics declared on b.
func Analyze(b *Benchmark, samples Samples) *Result {
	res := &Result{
		Name:          b.Name,
		Group:         b.Group,
		WarmupRuns:    b.WarmupRuns,
		BenchmarkRuns: b.BenchmarkRuns,
		Unavailable:   make(map[string]int),
		Results:       make(map[string][]float64),
		rawOrder:      b.RawMetrics(),
	}

	for _, metric := range b.AggregatedMetrics() {
		values := samples[metric]
		for _, name := range b.Aggregates(metric) {
			agg := Aggregate{Metric: metric, Aggregate: name, Samples: len(values)}
			agg.Value, agg.Err = b.AggregateSet().Apply(name, values)
			res.Aggregates = append(res.Aggregates, agg)
		}
	}

	for _, metric := range b.RawMetrics() {
		if values, ok := samples[metric]; ok && len(values) > 0 {
			res.Results[metric] = values
		}
	}
	return res
}
