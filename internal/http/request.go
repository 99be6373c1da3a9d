package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
)

// Request represents a fully realized HTTP request
type Request struct {
	Method   string
	URL      string
	Headers  map[string]string
	Body     []byte
	username string
	password string
	useAuth  bool
}

// NewRequest creates a new HTTP request
func NewRequest(method, url string) *Request {
	return &Request{
		Method:  method,
		URL:     url,
		Headers: make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithBody sets the body of the request
func (r *Request) WithBody(body []byte) *Request {
	r.Body = body
	return r
}

// WithBasicAuth sets HTTP basic authentication credentials
func (r *Request) WithBasicAuth(username, password string) *Request {
	r.username, r.password, r.useAuth = username, password, true
	return r
}

// Build constructs an http.Request bound to ctx
func (r *Request) Build(ctx context.Context) (*http.Request, error) {
	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if len(r.Body) > 0 {
		bodyReader = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}
	if r.useAuth {
		req.SetBasicAuth(r.username, r.password)
	}

	return req, nil
}
