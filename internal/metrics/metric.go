// Package metrics defines the named per-exchange measurements a benchmark can
// collect and the named reductions that can be applied to their samples.
//
// Both registries are immutable once built. The package-level standard sets
// are shared by every benchmark; tests and embedders can construct their own
// sets and inject them instead.
package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	lhttp "github.com/wesleyorama2/restbench/internal/http"
)

// ErrMetricUnavailable is returned when an exchange does not expose the
// requested measurement.
var ErrMetricUnavailable = errors.New("metric unavailable")

// MetricFunc extracts one numeric observation from a completed exchange.
type MetricFunc func(x *lhttp.Exchange) (float64, error)

// Standard metric names.
const (
	NameLookupTime    = "namelookup_time"
	ConnectTime       = "connect_time"
	AppConnectTime    = "appconnect_time"
	PreTransferTime   = "pretransfer_time"
	StartTransferTime = "starttransfer_time"
	RedirectTime      = "redirect_time"
	TotalTime         = "total_time"
	SizeDownload      = "size_download"
	SizeUpload        = "size_upload"
	RequestSize       = "request_size"
	SpeedDownload     = "speed_download"
	SpeedUpload       = "speed_upload"
	RedirectCount     = "redirect_count"
	NumConnects       = "num_connects"
)

// MetricSet is a read-only table of metric extractors.
type MetricSet struct {
	funcs map[string]MetricFunc
}

// NewMetricSet copies funcs into a new set. Names are normalized.
func NewMetricSet(funcs map[string]MetricFunc) *MetricSet {
	s := &MetricSet{funcs: make(map[string]MetricFunc, len(funcs))}
	for name, fn := range funcs {
		s.funcs[Normalize(name)] = fn
	}
	return s
}

// Lookup returns the extractor registered under name.
func (s *MetricSet) Lookup(name string) (MetricFunc, bool) {
	fn, ok := s.funcs[name]
	return fn, ok
}

// Has reports whether name is registered.
func (s *MetricSet) Has(name string) bool {
	_, ok := s.funcs[name]
	return ok
}

// Names returns the registered names in sorted order.
func (s *MetricSet) Names() []string {
	return sortedKeys(s.funcs)
}

// Extract evaluates the named metric against x.
func (s *MetricSet) Extract(name string, x *lhttp.Exchange) (float64, error) {
	fn, ok := s.funcs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not registered", ErrMetricUnavailable, name)
	}
	return fn(x)
}

// Normalize lowercases and trims a metric or aggregate name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func seconds(pick func(t lhttp.TimingInfo) float64) MetricFunc {
	return func(x *lhttp.Exchange) (float64, error) {
		return pick(x.Timing), nil
	}
}

func sizeUpload(x *lhttp.Exchange) (float64, error) {
	raw := x.Header("Content-Length")
	if raw == "" {
		return 0, fmt.Errorf("%w: no content-length header", ErrMetricUnavailable)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad content-length %q", ErrMetricUnavailable, raw)
	}
	return float64(n), nil
}

func speed(bytes func(x *lhttp.Exchange) int64) MetricFunc {
	return func(x *lhttp.Exchange) (float64, error) {
		total := x.Timing.TotalTime.Seconds()
		if total <= 0 {
			return 0, fmt.Errorf("%w: zero elapsed time", ErrMetricUnavailable)
		}
		return float64(bytes(x)) / total, nil
	}
}

var standardMetrics = NewMetricSet(map[string]MetricFunc{
	NameLookupTime:    seconds(func(t lhttp.TimingInfo) float64 { return t.NameLookup.Seconds() }),
	ConnectTime:       seconds(func(t lhttp.TimingInfo) float64 { return t.Connect.Seconds() }),
	AppConnectTime:    seconds(func(t lhttp.TimingInfo) float64 { return t.AppConnect.Seconds() }),
	PreTransferTime:   seconds(func(t lhttp.TimingInfo) float64 { return t.PreTransfer.Seconds() }),
	StartTransferTime: seconds(func(t lhttp.TimingInfo) float64 { return t.StartTransfer.Seconds() }),
	RedirectTime:      seconds(func(t lhttp.TimingInfo) float64 { return t.Redirect.Seconds() }),
	TotalTime:         seconds(func(t lhttp.TimingInfo) float64 { return t.TotalTime.Seconds() }),
	SizeDownload: func(x *lhttp.Exchange) (float64, error) {
		return float64(len(x.Body)), nil
	},
	SizeUpload: sizeUpload,
	RequestSize: func(x *lhttp.Exchange) (float64, error) {
		return float64(len(x.Body)), nil
	},
	SpeedDownload: speed(func(x *lhttp.Exchange) int64 { return int64(len(x.Body)) }),
	SpeedUpload:   speed(func(x *lhttp.Exchange) int64 { return x.RequestSize }),
	RedirectCount: func(x *lhttp.Exchange) (float64, error) {
		return float64(len(x.Redirects)), nil
	},
	NumConnects: func(x *lhttp.Exchange) (float64, error) {
		return float64(x.NumConnects), nil
	},
})

// StandardMetrics returns the built-in metric set.
func StandardMetrics() *MetricSet {
	return standardMetrics
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
