package metrics

import (
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lhttp "github.com/wesleyorama2/restbench/internal/http"
)

func TestStandardMetricNames(t *testing.T) {
	want := []string{
		AppConnectTime, ConnectTime, NameLookupTime, NumConnects, PreTransferTime,
		RedirectCount, RedirectTime, RequestSize, SizeDownload, SizeUpload,
		SpeedDownload, SpeedUpload, StartTransferTime, TotalTime,
	}
	assert.Equal(t, want, StandardMetrics().Names())
}

func TestStandardAggregateNames(t *testing.T) {
	for _, name := range []string{Mean, MeanArithmetic, MeanHarmonic, Median, StdDeviation, Sum, Total} {
		assert.True(t, StandardAggregates().Has(name), name)
	}
	assert.False(t, StandardAggregates().Has("mode"))
}

func exchange() *lhttp.Exchange {
	return &lhttp.Exchange{
		StatusCode:  200,
		Headers:     http.Header{"Content-Length": []string{"12"}},
		Body:        []byte("hello world!"),
		RequestSize: 6,
		Redirects:   []string{"http://a/1", "http://a/2"},
		NumConnects: 1,
		Timing: lhttp.TimingInfo{
			NameLookup:    10 * time.Millisecond,
			Connect:       20 * time.Millisecond,
			AppConnect:    30 * time.Millisecond,
			PreTransfer:   40 * time.Millisecond,
			StartTransfer: 50 * time.Millisecond,
			Redirect:      5 * time.Millisecond,
			TotalTime:     2 * time.Second,
		},
	}
}

func TestExtractStandardMetrics(t *testing.T) {
	x := exchange()
	set := StandardMetrics()

	tests := map[string]float64{
		NameLookupTime:    0.01,
		ConnectTime:       0.02,
		AppConnectTime:    0.03,
		PreTransferTime:   0.04,
		StartTransferTime: 0.05,
		RedirectTime:      0.005,
		TotalTime:         2,
		SizeDownload:      12,
		SizeUpload:        12,
		RequestSize:       12,
		SpeedDownload:     6,
		SpeedUpload:       3,
		RedirectCount:     2,
		NumConnects:       1,
	}
	for name, want := range tests {
		got, err := set.Extract(name, x)
		require.NoError(t, err, name)
		assert.InDelta(t, want, got, 1e-9, name)
	}
}

func TestSizeUploadUnavailable(t *testing.T) {
	x := exchange()
	x.Headers = http.Header{}
	_, err := StandardMetrics().Extract(SizeUpload, x)
	assert.True(t, errors.Is(err, ErrMetricUnavailable))

	x.Headers.Set("Content-Length", "lots")
	_, err = StandardMetrics().Extract(SizeUpload, x)
	assert.True(t, errors.Is(err, ErrMetricUnavailable))
}

func TestSpeedUnavailableWithoutElapsedTime(t *testing.T) {
	x := exchange()
	x.Timing.TotalTime = 0
	_, err := StandardMetrics().Extract(SpeedDownload, x)
	assert.True(t, errors.Is(err, ErrMetricUnavailable))
}

func TestExtractUnknownMetric(t *testing.T) {
	_, err := StandardMetrics().Extract("bogus", exchange())
	assert.True(t, errors.Is(err, ErrMetricUnavailable))
}

func TestInjectedSets(t *testing.T) {
	ms := NewMetricSet(map[string]MetricFunc{
		" Status ": func(x *lhttp.Exchange) (float64, error) { return float64(x.StatusCode), nil },
	})
	assert.Equal(t, []string{"status"}, ms.Names())
	v, err := ms.Extract("status", exchange())
	require.NoError(t, err)
	assert.Equal(t, 200.0, v)

	as := NewAggregateSet(map[string]AggregateFunc{"first": func(s []float64) (float64, error) { return s[0], nil }})
	_, ok := as.Lookup("first")
	assert.True(t, ok)
	assert.False(t, as.Has(Mean))
	_, err = as.Apply(Mean, []float64{1})
	assert.Error(t, err)
}

func TestArithmeticMean(t *testing.T) {
	v, err := ArithmeticMean([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	_, err = ArithmeticMean(nil)
	assert.True(t, errors.Is(err, ErrEmptySample))
}

func TestHarmonicMean(t *testing.T) {
	v, err := HarmonicMean([]float64{1, 4, 4})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-12)

	_, err = HarmonicMean([]float64{1, 0, 2})
	assert.True(t, errors.Is(err, ErrDivisionByZero))

	_, err = HarmonicMean(nil)
	assert.True(t, errors.Is(err, ErrEmptySample))
}

func TestMedian(t *testing.T) {
	tests := []struct {
		samples []float64
		want    float64
	}{
		{[]float64{3}, 3},
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
		{[]float64{7, 8, 10}, 8},
		{[]float64{1, 1, 1, 5}, 1},
	}
	for _, tt := range tests {
		got, err := MedianOf(tt.samples)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.samples)
	}

	in := []float64{3, 1, 2}
	_, _ = MedianOf(in)
	assert.Equal(t, []float64{3, 1, 2}, in, "median must not reorder its input")

	_, err := MedianOf(nil)
	assert.True(t, errors.Is(err, ErrEmptySample))
}

func TestStdDev(t *testing.T) {
	v, err := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-12)

	v, err = StdDev([]float64{42})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = StdDev(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = StdDev([]float64{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 1e-12)
}

func TestSumAndTotal(t *testing.T) {
	for _, name := range []string{Sum, Total} {
		v, err := StandardAggregates().Apply(name, []float64{1, 2.5, 3})
		require.NoError(t, err)
		assert.Equal(t, 6.5, v)

		v, err = StandardAggregates().Apply(name, nil)
		require.NoError(t, err)
		assert.Equal(t, 0.0, v)
	}
}

func TestMinMax(t *testing.T) {
	lo, err := MinOf([]float64{3, -1, 2})
	require.NoError(t, err)
	assert.Equal(t, -1.0, lo)

	hi, err := MaxOf([]float64{3, -1, 2})
	require.NoError(t, err)
	assert.Equal(t, 3.0, hi)

	_, err = MaxOf(nil)
	assert.True(t, errors.Is(err, ErrEmptySample))
}

func TestPercentiles(t *testing.T) {
	samples := make([]float64, 0, 100)
	for i := 1; i <= 100; i++ {
		samples = append(samples, float64(i)/1000)
	}

	tests := map[string]float64{P50: 0.050, P90: 0.090, P95: 0.095, P99: 0.099}
	for name, want := range tests {
		got, err := StandardAggregates().Apply(name, samples)
		require.NoError(t, err, name)
		assert.InEpsilon(t, want, got, 0.01, name)
	}

	v, err := Percentile(99)([]float64{0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	_, err = Percentile(50)([]float64{-1})
	assert.True(t, errors.Is(err, ErrNegativeSample))

	_, err = Percentile(50)([]float64{math.NaN()})
	assert.True(t, errors.Is(err, ErrNegativeSample))

	_, err = Percentile(50)(nil)
	assert.True(t, errors.Is(err, ErrEmptySample))

	_, err = Percentile(50)([]float64{1, 1e13})
	assert.True(t, errors.Is(err, ErrSampleOutOfRange))
	_, err = Percentile(50)([]float64{math.Inf(1)})
	assert.True(t, errors.Is(err, ErrSampleOutOfRange))
}
