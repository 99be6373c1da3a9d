package benchmark

import (
	"context"
	"errors"
	"io"

	"github.com/wesleyorama2/restbench/internal/binding"
	lhttp "github.com/wesleyorama2/restbench/internal/http"
	"github.com/wesleyorama2/restbench/internal/metrics"
	"github.com/wesleyorama2/restbench/internal/testcase"
	"pkt.systems/pslog"
)

// Performer executes one realized iteration of a test.
type Performer interface {
	Perform(ctx context.Context, t *testcase.Test, bctx *binding.Context) (*lhttp.Exchange, error)
}

// Phase identifies the stage an executor is in.
type Phase string

const (
	PhaseWarmup  Phase = "warmup"
	PhaseMeasure Phase = "measure"
	PhaseAnalyze Phase = "analyze"
)

// Executor runs benchmarks sequentially on the calling goroutine.
type Executor struct {
	performer Performer
	logger    pslog.Base
	onPhase   func(name string, phase Phase)
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l pslog.Base) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithPhaseHook registers fn to be called when a benchmark enters a phase.
func WithPhaseHook(fn func(name string, phase Phase)) ExecutorOption {
	return func(e *Executor) { e.onPhase = fn }
}

// NewExecutor builds an executor around p.
func NewExecutor(p Performer, opts ...ExecutorOption) *Executor {
	e := &Executor{performer: p}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.logger == nil {
		e.logger = pslog.NewWithOptions(io.Discard, pslog.Options{MinLevel: pslog.InfoLevel})
	}
	return e
}

func (e *Executor) enter(b *Benchmark, phase Phase) {
	e.logger.Debug("benchmark phase", "name", b.Name, "phase", string(phase))
	if e.onPhase != nil {
		e.onPhase(b.Name, phase)
	}
}

// Run executes the warm-up iterations, then the measured iterations, and
// reduces the collected samples. Iteration failures are counted in the
// result; only context cancellation aborts the run.
func (e *Executor) Run(ctx context.Context, b *Benchmark, bctx *binding.Context) (*Result, error) {
	if bctx == nil {
		bctx = binding.NewContext()
	}

	if b.WarmupRuns > 0 {
		e.enter(b, PhaseWarmup)
		for i := 0; i < b.WarmupRuns; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if _, err := e.performer.Perform(ctx, &b.Test, bctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				e.logger.Debug("warmup iteration failed", "name", b.Name, "iteration", i, "err", err)
			}
		}
	}

	samples := make(Samples, len(b.metrics))
	failures := 0
	unavailable := make(map[string]int)

	if b.BenchmarkRuns > 0 {
		e.enter(b, PhaseMeasure)
		for i := 0; i < b.BenchmarkRuns; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			x, err := e.performer.Perform(ctx, &b.Test, bctx)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				failures++
				e.logger.Warn("benchmark iteration failed", "name", b.Name, "iteration", i, "err", err)
				continue
			}
			e.collect(b, x, samples, unavailable)
		}
	}

	e.enter(b, PhaseAnalyze)
	res := Analyze(b, samples)
	res.Failures = failures
	res.Unavailable = unavailable
	return res, nil
}

func (e *Executor) collect(b *Benchmark, x *lhttp.Exchange, samples Samples, unavailable map[string]int) {
	for _, name := range b.metrics {
		v, err := b.metricSet.Extract(name, x)
		if err != nil {
			unavailable[name]++
			if !errors.Is(err, metrics.ErrMetricUnavailable) {
				e.logger.Warn("metric extraction failed", "name", b.Name, "metric", name, "err", err)
			} else {
				e.logger.Debug("metric unavailable", "name", b.Name, "metric", name, "err", err)
			}
			continue
		}
		samples[name] = append(samples[name], v)
	}
}
