package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/HdrHistogram/hdrhistogram-go"
)

var (
	// ErrEmptySample is returned by reductions that are undefined for an
	// empty sample.
	ErrEmptySample = errors.New("empty sample")
	// ErrDivisionByZero is returned by mean_harmonic when a sample is zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrNegativeSample is returned by histogram-backed reductions.
	ErrNegativeSample = errors.New("negative sample")
	// ErrSampleOutOfRange is returned by histogram-backed reductions for
	// samples too large to scale into the histogram.
	ErrSampleOutOfRange = errors.New("sample out of range")
)

// AggregateFunc reduces a sample sequence to a single value.
type AggregateFunc func(samples []float64) (float64, error)

// Standard aggregate names.
const (
	Mean           = "mean"
	MeanArithmetic = "mean_arithmetic"
	MeanHarmonic   = "mean_harmonic"
	Median         = "median"
	StdDeviation   = "std_deviation"
	Sum            = "sum"
	Total          = "total"
	Min            = "min"
	Max            = "max"
	P50            = "p50"
	P90            = "p90"
	P95            = "p95"
	P99            = "p99"
)

// AggregateSet is a read-only table of reductions.
type AggregateSet struct {
	funcs map[string]AggregateFunc
}

// NewAggregateSet copies funcs into a new set. Names are normalized.
func NewAggregateSet(funcs map[string]AggregateFunc) *AggregateSet {
	s := &AggregateSet{funcs: make(map[string]AggregateFunc, len(funcs))}
	for name, fn := range funcs {
		s.funcs[Normalize(name)] = fn
	}
	return s
}

// Lookup returns the reduction registered under name.
func (s *AggregateSet) Lookup(name string) (AggregateFunc, bool) {
	fn, ok := s.funcs[name]
	return fn, ok
}

// Has reports whether name is registered.
func (s *AggregateSet) Has(name string) bool {
	_, ok := s.funcs[name]
	return ok
}

// Names returns the registered names in sorted order.
func (s *AggregateSet) Names() []string {
	return sortedKeys(s.funcs)
}

// Apply runs the named reduction over samples.
func (s *AggregateSet) Apply(name string, samples []float64) (float64, error) {
	fn, ok := s.funcs[name]
	if !ok {
		return 0, fmt.Errorf("aggregate %q is not registered", name)
	}
	return fn(samples)
}

// ArithmeticMean returns sum/len.
func ArithmeticMean(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmptySample
	}
	total, _ := SumOf(samples)
	return total / float64(len(samples)), nil
}

// HarmonicMean returns 1 / mean(1/x). Any zero sample fails the reduction.
func HarmonicMean(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmptySample
	}
	var inv float64
	for _, v := range samples {
		if v == 0 {
			return 0, ErrDivisionByZero
		}
		inv += 1 / v
	}
	if inv == 0 {
		return 0, ErrDivisionByZero
	}
	return float64(len(samples)) / inv, nil
}

// MedianOf returns the middle value, or the mean of the two middle values
// for an even-length sample.
func MedianOf(samples []float64) (float64, error) {
	n := len(samples)
	if n == 0 {
		return 0, ErrEmptySample
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2], nil
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2, nil
}

// StdDev returns the population standard deviation. Empty and single-element
// samples yield 0.
func StdDev(samples []float64) (float64, error) {
	if len(samples) < 2 {
		return 0, nil
	}
	mean, _ := ArithmeticMean(samples)
	var ss float64
	for _, v := range samples {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(samples))), nil
}

// SumOf returns the arithmetic sum. An empty sample sums to 0.
func SumOf(samples []float64) (float64, error) {
	var total float64
	for _, v := range samples {
		total += v
	}
	return total, nil
}

// MinOf returns the smallest sample.
func MinOf(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmptySample
	}
	m := samples[0]
	for _, v := range samples[1:] {
		m = math.Min(m, v)
	}
	return m, nil
}

// MaxOf returns the largest sample.
func MaxOf(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmptySample
	}
	m := samples[0]
	for _, v := range samples[1:] {
		m = math.Max(m, v)
	}
	return m, nil
}

// percentileScale converts samples to the integer domain of the histogram.
// Timing metrics are in seconds, so this keeps microsecond resolution.
const percentileScale = 1e6

// Percentile returns a reduction computing the q-th percentile (0-100) using
// an HDR histogram with three significant figures.
func Percentile(q float64) AggregateFunc {
	return func(samples []float64) (float64, error) {
		if len(samples) == 0 {
			return 0, ErrEmptySample
		}
		highest := int64(2)
		scaled := make([]int64, len(samples))
		for i, v := range samples {
			if v < 0 || math.IsNaN(v) {
				return 0, ErrNegativeSample
			}
			sv := math.Round(v * percentileScale)
			if sv >= math.MaxInt64 {
				return 0, fmt.Errorf("%w: %v", ErrSampleOutOfRange, v)
			}
			scaled[i] = int64(sv)
			if scaled[i] > highest {
				highest = scaled[i]
			}
		}

		h := hdrhistogram.New(1, highest, 3)
		for _, v := range scaled {
			if err := h.RecordValue(v); err != nil {
				return 0, fmt.Errorf("record %d: %w", v, err)
			}
		}
		return float64(h.ValueAtQuantile(q)) / percentileScale, nil
	}
}

var standardAggregates = NewAggregateSet(map[string]AggregateFunc{
	Mean:           ArithmeticMean,
	MeanArithmetic: ArithmeticMean,
	MeanHarmonic:   HarmonicMean,
	Median:         MedianOf,
	StdDeviation:   StdDev,
	Sum:            SumOf,
	Total:          SumOf,
	Min:            MinOf,
	Max:            MaxOf,
	P50:            Percentile(50),
	P90:            Percentile(90),
	P95:            Percentile(95),
	P99:            Percentile(99),
})

// StandardAggregates returns the built-in aggregate set.
func StandardAggregates() *AggregateSet {
	return standardAggregates
}
