package http

import (
	"encoding/json"
	"net/http"
	"time"
)

// TimingInfo holds the per-phase durations of an exchange together with
// cumulative marks measured from StartTime, the way curl reports them.
type TimingInfo struct {
	StartTime           time.Time
	DNSLookupTime       time.Duration
	TCPConnectTime      time.Duration
	TLSHandshakeTime    time.Duration
	TimeToFirstByte     time.Duration
	ContentTransferTime time.Duration
	TotalTime           time.Duration

	NameLookup    time.Duration
	Connect       time.Duration
	AppConnect    time.Duration
	PreTransfer   time.Duration
	StartTransfer time.Duration
	Redirect      time.Duration
}

// normalize keeps the cumulative marks monotonic when a phase was skipped,
// e.g. on a reused connection.
func (t *TimingInfo) normalize() {
	if t.Connect < t.NameLookup {
		t.Connect = t.NameLookup
	}
	if t.PreTransfer < t.Connect {
		t.PreTransfer = t.Connect
	}
	if t.AppConnect > 0 && t.PreTransfer < t.AppConnect {
		t.PreTransfer = t.AppConnect
	}
	if t.StartTransfer < t.PreTransfer {
		t.StartTransfer = t.PreTransfer
	}
}

// Exchange is a completed request/response pair
type Exchange struct {
	Method      string
	URL         string
	StatusCode  int
	Status      string
	Headers     http.Header
	Body        []byte
	RequestSize int64
	Redirects   []string
	NumConnects int
	Timing      TimingInfo
}

// BodyString returns the response body as a string
func (x *Exchange) BodyString() string {
	return string(x.Body)
}

// DecodeJSON unmarshals the response body into v
func (x *Exchange) DecodeJSON(v interface{}) error {
	return json.Unmarshal(x.Body, v)
}

// Header returns the first value of a response header
func (x *Exchange) Header(key string) string {
	return x.Headers.Get(key)
}

// Elapsed returns the total time of the exchange
func (x *Exchange) Elapsed() time.Duration {
	return x.Timing.TotalTime
}
