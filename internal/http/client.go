package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

const defaultMaxRedirects = 10

// Client executes requests and records curl-style timing for each exchange
type Client struct {
	httpClient   *http.Client
	headers      map[string]string
	maxRedirects int
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a new HTTP client with the given options
func NewClient(options ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers:      make(map[string]string),
		maxRedirects: defaultMaxRedirects,
	}

	for _, option := range options {
		option(client)
	}

	if client.httpClient.CheckRedirect == nil {
		client.httpClient.CheckRedirect = client.checkRedirect
	}

	return client
}

// WithTimeout sets the per-exchange timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHeader adds a header sent with every request
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification
func WithInsecureSkipVerify() ClientOption {
	return func(c *Client) {
		transport, ok := c.httpClient.Transport.(*http.Transport)
		if !ok || transport == nil {
			transport = http.DefaultTransport.(*http.Transport).Clone()
		}
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
		c.httpClient.Transport = transport
	}
}

// WithMaxRedirects limits how many redirects are followed. Zero disables
// redirect following.
func WithMaxRedirects(n int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = n
	}
}

type redirectKey struct{}

type redirectTracker struct {
	hops    []string
	lastHop time.Time
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > c.maxRedirects || c.maxRedirects == 0 {
		return http.ErrUseLastResponse
	}
	if tr, ok := req.Context().Value(redirectKey{}).(*redirectTracker); ok {
		tr.hops = append(tr.hops, req.URL.String())
		tr.lastHop = time.Now()
	}
	return nil
}

// Do executes an HTTP request and returns the exchange with detailed timing information
func (c *Client) Do(ctx context.Context, req *Request) (*Exchange, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	tracker := &redirectTracker{}
	ctx = context.WithValue(ctx, redirectKey{}, tracker)

	httpReq, err := req.Build(ctx)
	if err != nil {
		return nil, err
	}

	for key, value := range c.headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}

	exchange := &Exchange{
		Method:      httpReq.Method,
		URL:         httpReq.URL.String(),
		RequestSize: int64(len(req.Body)),
	}
	timing := TimingInfo{StartTime: time.Now()}
	start := timing.StartTime

	var dnsStart, connectStart, tlsHandshakeStart time.Time
	lastPhaseEnd := start

	trace := &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			dnsStart = time.Now()
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			now := time.Now()
			timing.DNSLookupTime = now.Sub(dnsStart)
			timing.NameLookup = now.Sub(start)
			lastPhaseEnd = now
		},
		ConnectStart: func(network, addr string) {
			connectStart = time.Now()
		},
		ConnectDone: func(network, addr string, err error) {
			if err != nil {
				return
			}
			now := time.Now()
			timing.TCPConnectTime = now.Sub(connectStart)
			timing.Connect = now.Sub(start)
			exchange.NumConnects++
			lastPhaseEnd = now
		},
		TLSHandshakeStart: func() {
			tlsHandshakeStart = time.Now()
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err != nil {
				return
			}
			now := time.Now()
			timing.TLSHandshakeTime = now.Sub(tlsHandshakeStart)
			timing.AppConnect = now.Sub(start)
			lastPhaseEnd = now
		},
		GotConn: func(info httptrace.GotConnInfo) {
			now := time.Now()
			timing.PreTransfer = now.Sub(start)
			lastPhaseEnd = now
		},
		GotFirstResponseByte: func() {
			now := time.Now()
			timing.TimeToFirstByte = now.Sub(lastPhaseEnd)
			timing.StartTransfer = now.Sub(start)
		},
	}

	httpReq = httpReq.WithContext(httptrace.WithClientTrace(ctx, trace))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	contentTransferStart := time.Now()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	timing.ContentTransferTime = time.Since(contentTransferStart)
	timing.TotalTime = time.Since(start)

	if len(tracker.hops) > 0 {
		timing.Redirect = tracker.lastHop.Sub(start)
	}
	timing.normalize()

	exchange.StatusCode = httpResp.StatusCode
	exchange.Status = httpResp.Status
	exchange.Headers = httpResp.Header
	exchange.Body = body
	exchange.Redirects = tracker.hops
	exchange.Timing = timing

	return exchange, nil
}
