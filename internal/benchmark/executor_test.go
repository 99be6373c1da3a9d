package benchmark

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wesleyorama2/restbench/internal/binding"
	"github.com/wesleyorama2/restbench/internal/generator"
	lhttp "github.com/wesleyorama2/restbench/internal/http"
	"github.com/wesleyorama2/restbench/internal/metrics"
	"github.com/wesleyorama2/restbench/internal/testcase"
	"pkt.systems/pslog"
)

// scriptedPerformer replays a fixed list of outcomes, then keeps returning
// the last one.
type scriptedPerformer struct {
	mu       sync.Mutex
	calls    int
	outcomes []outcome
	onCall   func(n int)
}

type outcome struct {
	x   *lhttp.Exchange
	err error
}

func (p *scriptedPerformer) Perform(ctx context.Context, t *testcase.Test, bctx *binding.Context) (*lhttp.Exchange, error) {
	p.mu.Lock()
	n := p.calls
	p.calls++
	p.mu.Unlock()

	if p.onCall != nil {
		p.onCall(n)
	}
	if err := t.UpdateContextBefore(bctx); err != nil {
		return nil, err
	}
	o := p.outcomes[min(n, len(p.outcomes)-1)]
	return o.x, o.err
}

func exchange(total time.Duration, body string) *lhttp.Exchange {
	return &lhttp.Exchange{
		StatusCode: http.StatusOK,
		Headers:    http.Header{},
		Body:       []byte(body),
		Timing:     lhttp.TimingInfo{TotalTime: total, Connect: total / 4},
	}
}

func newBench(t *testing.T, warmup, runs int, metricsNode interface{}) *Benchmark {
	t.Helper()
	b, err := ParseBenchmark("http://api", map[string]interface{}{
		"url":            "/",
		"warmup_runs":    warmup,
		"benchmark_runs": runs,
		"metrics":        metricsNode,
	})
	require.NoError(t, err)
	return b
}

func TestAnalyzeRawAndAggregated(t *testing.T) {
	b := New(nil, nil)
	require.NoError(t, b.AddMetric("request_size"))
	require.NoError(t, b.AddMetric("connect_time"))
	require.NoError(t, b.AddMetric("request_size", "median"))
	require.NoError(t, b.AddMetric("total_time", "mean_harmonic"))
	require.NoError(t, b.AddMetric("total_time", "std_deviation"))

	res := Analyze(b, Samples{
		"connect_time": {1, 4, 7},
		"total_time":   {0.5, 0.7, 0.9},
	})

	assert.Len(t, res.Results, 1)
	assert.Equal(t, []float64{1, 4, 7}, res.Results["connect_time"])
	assert.NotContains(t, res.Results, "request_size")
	assert.Equal(t, []string{"connect_time"}, res.RawMetrics())

	require.Len(t, res.Aggregates, 3)
	assert.Equal(t, "request_size", res.Aggregates[0].Metric)
	assert.ErrorIs(t, res.Aggregates[0].Err, metrics.ErrEmptySample)

	hm := res.Aggregates[1]
	assert.Equal(t, "total_time", hm.Metric)
	assert.Equal(t, "mean_harmonic", hm.Aggregate)
	require.NoError(t, hm.Err)
	assert.InDelta(t, 3/(1/0.5+1/0.7+1/0.9), hm.Value, 1e-12)
	assert.Equal(t, 3, hm.Samples)

	sd := res.Aggregates[2]
	assert.Equal(t, "std_deviation", sd.Aggregate)
	require.NoError(t, sd.Err)
	assert.InDelta(t, 0.163299, sd.Value, 1e-6)
}

func TestAnalyzeDistinctCounts(t *testing.T) {
	b := newBench(t, 0, 0, []interface{}{
		map[string]interface{}{"total_time": "mean_harmonic"},
		map[string]interface{}{"total_time": "std_deviation"},
		"connect_time",
	})

	res := Analyze(b, Samples{
		"connect_time": {1, 4, 7},
		"total_time":   {0.5, 0.7, 0.9},
	})

	assert.Len(t, b.Metrics(), 2)
	assert.Len(t, res.Aggregates, 2)
	assert.Len(t, res.Results, 1)
	for _, a := range res.Aggregates {
		assert.Equal(t, "total_time", a.Metric)
	}
}

func TestAnalyzeHarmonicMeanZeroSample(t *testing.T) {
	b := New(nil, nil)
	require.NoError(t, b.AddMetric("total_time", "mean_harmonic", "mean"))

	res := Analyze(b, Samples{"total_time": {0, 1, 2}})
	require.Len(t, res.Aggregates, 2)
	assert.ErrorIs(t, res.Aggregates[0].Err, metrics.ErrDivisionByZero)
	require.NoError(t, res.Aggregates[1].Err)
	assert.Equal(t, 1.0, res.Aggregates[1].Value)
}

func TestExecutorRunCounts(t *testing.T) {
	p := &scriptedPerformer{outcomes: []outcome{{x: exchange(100*time.Millisecond, "abc")}}}
	var phases []Phase
	e := NewExecutor(p, WithPhaseHook(func(_ string, ph Phase) { phases = append(phases, ph) }))

	b := newBench(t, 3, 5, []interface{}{"size_download", map[string]interface{}{"total_time": "mean"}})
	res, err := e.Run(context.Background(), b, binding.NewContext())
	require.NoError(t, err)

	assert.Equal(t, 8, p.calls)
	assert.Equal(t, []Phase{PhaseWarmup, PhaseMeasure, PhaseAnalyze}, phases)
	assert.Equal(t, 0, res.Failures)
	assert.Equal(t, []float64{3, 3, 3, 3, 3}, res.Results["size_download"])
	require.Len(t, res.Aggregates, 1)
	assert.InDelta(t, 0.1, res.Aggregates[0].Value, 1e-9)
	assert.Equal(t, 5, res.Aggregates[0].Samples)
}

func TestExecutorZeroRuns(t *testing.T) {
	p := &scriptedPerformer{outcomes: []outcome{{x: exchange(time.Millisecond, "")}}}
	var phases []Phase
	e := NewExecutor(p, WithPhaseHook(func(_ string, ph Phase) { phases = append(phases, ph) }))

	b := newBench(t, 0, 0, map[string]interface{}{"total_time": "sum"})
	res, err := e.Run(context.Background(), b, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, p.calls)
	assert.Equal(t, []Phase{PhaseAnalyze}, phases)
	require.Len(t, res.Aggregates, 1)
	assert.NoError(t, res.Aggregates[0].Err)
	assert.Equal(t, 0.0, res.Aggregates[0].Value)
}

func TestExecutorFailedIterations(t *testing.T) {
	boom := errors.New("connection refused")
	p := &scriptedPerformer{outcomes: []outcome{
		{err: boom}, // warm-up, ignored
		{x: exchange(10*time.Millisecond, "a")},
		{err: boom},
		{x: exchange(30*time.Millisecond, "abc")},
	}}

	var logs bytes.Buffer
	e := NewExecutor(p, WithLogger(pslog.NewStructured(&logs)))

	b := newBench(t, 1, 3, []interface{}{"size_download", map[string]interface{}{"total_time": "max"}})
	res, err := e.Run(context.Background(), b, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, []float64{1, 3}, res.Results["size_download"])
	require.Len(t, res.Aggregates, 1)
	assert.Equal(t, 2, res.Aggregates[0].Samples)
	assert.InDelta(t, 0.03, res.Aggregates[0].Value, 1e-9)
	assert.Contains(t, logs.String(), "benchmark iteration failed")
}

func TestExecutorUnavailableMetric(t *testing.T) {
	withLength := exchange(10*time.Millisecond, "xy")
	withLength.Headers.Set("Content-Length", "2")
	p := &scriptedPerformer{outcomes: []outcome{
		{x: exchange(10*time.Millisecond, "xy")},
		{x: withLength},
	}}
	e := NewExecutor(p)

	b := newBench(t, 0, 2, map[string]interface{}{"size_upload": "mean"})
	res, err := e.Run(context.Background(), b, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Failures)
	assert.Equal(t, map[string]int{"size_upload": 1}, res.Unavailable)
	require.Len(t, res.Aggregates, 1)
	assert.Equal(t, 1, res.Aggregates[0].Samples)
	assert.Equal(t, 2.0, res.Aggregates[0].Value)
}

func TestExecutorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &scriptedPerformer{
		outcomes: []outcome{{x: exchange(time.Millisecond, "")}},
		onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	e := NewExecutor(p)

	b := newBench(t, 0, 10, "total_time")
	res, err := e.Run(ctx, b, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, p.calls)
}

func TestExecutorRebindsGeneratorsEachIteration(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	bctx := binding.NewContext()
	require.NoError(t, bctx.AddGenerator("ids", generator.NumberSequence(1, 1)))

	b, err := ParseBenchmark(server.URL, map[string]interface{}{
		"url":             map[string]interface{}{"template": "/items/{{id}}"},
		"generator_binds": map[string]interface{}{"id": "ids"},
		"warmup_runs":     2,
		"benchmark_runs":  3,
		"metrics":         []interface{}{"size_download", map[string]interface{}{"total_time": "p50"}},
	})
	require.NoError(t, err)

	e := NewExecutor(testcase.NewRunner())
	res, err := e.Run(context.Background(), b, bctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"/items/1", "/items/2", "/items/3", "/items/4", "/items/5"}, paths)
	assert.Equal(t, []float64{11, 11, 11}, res.Results["size_download"])
	require.Len(t, res.Aggregates, 1)
	require.NoError(t, res.Aggregates[0].Err)
	assert.GreaterOrEqual(t, res.Aggregates[0].Value, 0.0)

	v, ok := bctx.Value("id")
	require.True(t, ok)
	assert.Equal(t, 5, v)
}
