package testcase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/wesleyorama2/restbench/internal/binding"
	lhttp "github.com/wesleyorama2/restbench/internal/http"
	"pkt.systems/pslog"
)

// Result is the outcome of one test run.
type Result struct {
	Name       string        `json:"name"`
	Group      string        `json:"group"`
	Passed     bool          `json:"passed"`
	StatusCode int           `json:"status_code,omitempty"`
	Duration   time.Duration `json:"duration"`
	Failures   []Failure     `json:"failures,omitempty"`
	Body       string        `json:"body,omitempty"`
	Err        error         `json:"-"`
}

// Runner executes tests over an HTTP client.
type Runner struct {
	client      *lhttp.Client
	logger      pslog.Base
	printBodies bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClient sets the HTTP client.
func WithClient(c *lhttp.Client) RunnerOption {
	return func(r *Runner) { r.client = c }
}

// WithLogger sets the logger.
func WithLogger(l pslog.Base) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithPrintBodies keeps response bodies in results.
func WithPrintBodies(enabled bool) RunnerOption {
	return func(r *Runner) { r.printBodies = enabled }
}

// NewRunner builds a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.client == nil {
		r.client = lhttp.NewClient()
	}
	if r.logger == nil {
		r.logger = pslog.NewWithOptions(io.Discard, pslog.Options{MinLevel: pslog.InfoLevel})
	}
	return r
}

// Perform binds the test's variables and generators, realizes the request
// and executes it. No validation or extraction happens.
func (r *Runner) Perform(ctx context.Context, t *Test, bctx *binding.Context) (*lhttp.Exchange, error) {
	if err := t.UpdateContextBefore(bctx); err != nil {
		return nil, err
	}
	req, err := t.Realize(bctx)
	if err != nil {
		return nil, err
	}
	return r.client.Do(ctx, req)
}

// Run executes t once: request, status check, validators and extraction.
func (r *Runner) Run(ctx context.Context, t *Test, bctx *binding.Context) Result {
	res := Result{Name: t.Name, Group: t.Group}

	if t.Delay > 0 {
		select {
		case <-ctx.Done():
			res.Err = ctx.Err()
			return res
		case <-time.After(t.Delay):
		}
	}

	start := time.Now()
	x, err := r.Perform(ctx, t, bctx)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		res.Failures = append(res.Failures, Failure{Type: "request", Message: err.Error()})
		r.logger.Error("request failed", "name", t.Name, "group", t.Group, "err", err)
		return res
	}
	res.StatusCode = x.StatusCode
	res.Duration = x.Elapsed()
	if r.printBodies {
		res.Body = x.BodyString()
	}

	if !t.ExpectsStatus(x.StatusCode) {
		res.Failures = append(res.Failures, Failure{
			Type:    "status",
			Message: fmt.Sprintf("status code %d not in expected %v", x.StatusCode, t.ExpectedStatus),
		})
	}

	for _, v := range t.Validators {
		if f := v.Validate(x, bctx); f != nil {
			res.Failures = append(res.Failures, *f)
		}
	}

	if len(res.Failures) == 0 {
		if err := t.UpdateContextAfter(bctx, x); err != nil {
			res.Failures = append(res.Failures, Failure{Type: "extract_binds", Message: err.Error()})
		}
	}

	res.Passed = len(res.Failures) == 0
	if res.Passed {
		r.logger.Debug("test passed", "name", t.Name, "status", x.StatusCode, "dur", res.Duration.String())
	} else {
		for _, f := range res.Failures {
			r.logger.Warn("check failed", "name", t.Name, "type", f.Type, "msg", f.Message)
		}
	}
	return res
}
