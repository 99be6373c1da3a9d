// Package runner executes a loaded test set: every test in order against a
// shared binding context, then every benchmark.
package runner

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/wesleyorama2/restbench/internal/benchmark"
	"github.com/wesleyorama2/restbench/internal/config"
	lhttp "github.com/wesleyorama2/restbench/internal/http"
	"github.com/wesleyorama2/restbench/internal/output"
	"github.com/wesleyorama2/restbench/internal/testcase"
	"pkt.systems/pslog"
)

// Summary is the outcome of one test set run.
type Summary struct {
	output.Report

	// BenchmarkFiles lists the files benchmark results were written to.
	BenchmarkFiles []string
	// Stopped is set when a failing stop_on_failure test ended the run early.
	Stopped bool
}

// Runner runs test sets.
type Runner struct {
	logger         pslog.Base
	console        *output.Console
	clientOpts     []lhttp.ClientOption
	timeout        time.Duration
	printBodies    bool
	skipBenchmarks bool
	outputDir      string
	benchOut       io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger handed to the test runner and the executor.
func WithLogger(l pslog.Base) Option {
	return func(r *Runner) { r.logger = l }
}

// WithConsole prints results as they complete.
func WithConsole(c *output.Console) Option {
	return func(r *Runner) { r.console = c }
}

// WithClientOptions configures the HTTP client built for each test set.
func WithClientOptions(opts ...lhttp.ClientOption) Option {
	return func(r *Runner) { r.clientOpts = append(r.clientOpts, opts...) }
}

// WithTimeout overrides the timeout configured by the test set.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithPrintBodies keeps response bodies in test results even when the test
// set does not ask for it.
func WithPrintBodies(enabled bool) Option {
	return func(r *Runner) { r.printBodies = enabled }
}

// WithSkipBenchmarks runs tests only.
func WithSkipBenchmarks(skip bool) Option {
	return func(r *Runner) { r.skipBenchmarks = skip }
}

// WithOutputDir resolves relative benchmark output files against dir.
func WithOutputDir(dir string) Option {
	return func(r *Runner) { r.outputDir = dir }
}

// WithBenchmarkWriter receives the results of benchmarks that name no
// output file.
func WithBenchmarkWriter(w io.Writer) Option {
	return func(r *Runner) { r.benchOut = w }
}

// New builds a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = pslog.NewWithOptions(io.Discard, pslog.Options{MinLevel: pslog.InfoLevel})
	}
	return r
}

func (r *Runner) client(ts *config.TestSet) *lhttp.Client {
	opts := append([]lhttp.ClientOption(nil), r.clientOpts...)
	timeout := r.timeout
	if timeout == 0 {
		timeout = ts.Config.Timeout
	}
	if timeout > 0 {
		opts = append(opts, lhttp.WithTimeout(timeout))
	}
	return lhttp.NewClient(opts...)
}

// Run executes ts. Test failures are reported in the summary; the error is
// reserved for context cancellation and result files that cannot be
// written.
func (r *Runner) Run(ctx context.Context, ts *config.TestSet) (*Summary, error) {
	sum := &Summary{Report: output.Report{Name: ts.Name, Started: time.Now()}}
	defer func() { sum.Duration = time.Since(sum.Started) }()

	bctx, err := ts.NewContext()
	if err != nil {
		return sum, err
	}

	tests := testcase.NewRunner(
		testcase.WithClient(r.client(ts)),
		testcase.WithLogger(r.logger),
		testcase.WithPrintBodies(r.printBodies || ts.Config.PrintBodies),
	)
	logger := r.logger
	if l, ok := logger.(pslog.Logger); ok {
		logger = l.With("testset", ts.Name)
	}

	benchmarks := len(ts.Benchmarks)
	if r.skipBenchmarks {
		benchmarks = 0
	}
	if r.console != nil {
		r.console.Header(ts.Name, len(ts.Tests), benchmarks)
	}
	logger.Info("running test set", "tests", len(ts.Tests), "benchmarks", benchmarks)

	for _, t := range ts.Tests {
		warnStaticPlaceholders(logger, t)
	}
	for _, b := range ts.Benchmarks {
		warnStaticPlaceholders(logger, &b.Test)
	}

	for _, t := range ts.Tests {
		res := tests.Run(ctx, t, bctx)
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Tests = append(sum.Tests, res)
		if r.console != nil {
			r.console.TestResult(res)
		}
		if !res.Passed && t.StopOnFailure {
			logger.Warn("stopping test set after failure", "test", t.Name)
			sum.Stopped = true
			break
		}
	}

	if !r.skipBenchmarks && !sum.Stopped {
		exec := benchmark.NewExecutor(tests,
			benchmark.WithLogger(r.logger),
			benchmark.WithPhaseHook(func(name string, phase benchmark.Phase) {
				logger.Debug("benchmark phase", "benchmark", name, "phase", string(phase))
			}),
		)
		for _, b := range ts.Benchmarks {
			res, err := exec.Run(ctx, b, bctx)
			if err != nil {
				return sum, err
			}
			sum.Benchmarks = append(sum.Benchmarks, res)
			if r.console != nil {
				r.console.BenchmarkResult(res)
			}
			if err := r.writeBenchmark(sum, b, res); err != nil {
				return sum, err
			}
		}
	}

	sum.Duration = time.Since(sum.Started)
	if r.console != nil {
		r.console.Summary(&sum.Report)
	}
	logger.Info("test set finished", "passed", sum.Passed(), "failed", sum.Failed(), "dur", sum.Duration.String())
	return sum, nil
}

func warnStaticPlaceholders(logger pslog.Base, t *testcase.Test) {
	for _, field := range t.StaticPlaceholders() {
		logger.Warn("placeholder in static field is sent literally, use {template: ...}", "test", t.Name, "field", field)
	}
}

func (r *Runner) writeBenchmark(sum *Summary, b *benchmark.Benchmark, res *benchmark.Result) error {
	if b.OutputFile == "" {
		if r.benchOut == nil {
			return nil
		}
		return benchmark.WriteResult(r.benchOut, res, b.OutputFormat)
	}

	path := b.OutputFile
	if !filepath.IsAbs(path) && r.outputDir != "" {
		path = filepath.Join(r.outputDir, path)
	}
	if err := benchmark.WriteResultFile(path, res, b.OutputFormat); err != nil {
		return fmt.Errorf("benchmark %s: %w", b.Name, err)
	}
	sum.BenchmarkFiles = append(sum.BenchmarkFiles, path)
	r.logger.Info("benchmark results written", "benchmark", b.Name, "file", path, "format", b.OutputFormat)
	return nil
}
