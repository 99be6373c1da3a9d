package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected method POST, got %s", r.Method)
		}
		if r.URL.Path != "/test" {
			t.Errorf("Expected path /test, got %s", r.URL.Path)
		}
		if r.Header.Get("X-Test-Header") != "test-value" {
			t.Errorf("Expected header X-Test-Header: test-value, got %s", r.Header.Get("X-Test-Header"))
		}
		if r.Header.Get("User-Agent") != "restbench-test" {
			t.Errorf("Expected client header User-Agent, got %s", r.Header.Get("User-Agent"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"a":1}` {
			t.Errorf("Unexpected request body %s", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"success"}`))
	}))
	defer server.Close()

	client := NewClient(
		WithTimeout(5*time.Second),
		WithHeader("User-Agent", "restbench-test"),
	)

	req := NewRequest("post", server.URL+"/test").
		WithHeader("X-Test-Header", "test-value").
		WithBody([]byte(`{"a":1}`))

	x, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}

	if x.StatusCode != http.StatusCreated {
		t.Errorf("Expected status code %d, got %d", http.StatusCreated, x.StatusCode)
	}
	if x.Header("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type: application/json, got %s", x.Header("Content-Type"))
	}
	if x.BodyString() != `{"message":"success"}` {
		t.Errorf("Unexpected body %s", x.BodyString())
	}
	if x.RequestSize != 7 {
		t.Errorf("Expected request size 7, got %d", x.RequestSize)
	}

	var decoded map[string]string
	if err := x.DecodeJSON(&decoded); err != nil || decoded["message"] != "success" {
		t.Errorf("DecodeJSON failed: %v %v", decoded, err)
	}
}

func TestClient_TimingMarks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient()
	x, err := client.Do(context.Background(), NewRequest("GET", server.URL))
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}

	tm := x.Timing
	if tm.TotalTime <= 0 {
		t.Fatalf("Expected positive total time, got %v", tm.TotalTime)
	}
	if tm.StartTransfer < 5*time.Millisecond {
		t.Errorf("Expected start transfer to include server delay, got %v", tm.StartTransfer)
	}
	if !(tm.Connect <= tm.PreTransfer && tm.PreTransfer <= tm.StartTransfer && tm.StartTransfer <= tm.TotalTime) {
		t.Errorf("Cumulative marks not monotonic: %+v", tm)
	}
	if tm.AppConnect != 0 {
		t.Errorf("Expected no TLS handshake on plain HTTP, got %v", tm.AppConnect)
	}
	if x.NumConnects != 1 {
		t.Errorf("Expected one new connection, got %d", x.NumConnects)
	}
	if x.Elapsed() != tm.TotalTime {
		t.Errorf("Elapsed should equal total time")
	}

	// A second request reuses the kept-alive connection
	x, err = client.Do(context.Background(), NewRequest("GET", server.URL))
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}
	if x.NumConnects != 0 {
		t.Errorf("Expected reused connection, got %d new connections", x.NumConnects)
	}
}

func TestClient_TLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer server.Close()

	// Self-signed certificate is rejected by default
	if _, err := NewClient().Do(context.Background(), NewRequest("GET", server.URL)); err == nil {
		t.Errorf("Expected certificate error")
	}

	x, err := NewClient(WithInsecureSkipVerify()).Do(context.Background(), NewRequest("GET", server.URL))
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}
	if x.Timing.AppConnect <= 0 || x.Timing.TLSHandshakeTime <= 0 {
		t.Errorf("Expected TLS timing, got %+v", x.Timing)
	}
}

func TestClient_Redirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/c", http.StatusFound)
	})
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("done"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	x, err := NewClient().Do(context.Background(), NewRequest("GET", server.URL+"/a"))
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}
	if len(x.Redirects) != 2 {
		t.Fatalf("Expected 2 redirects, got %v", x.Redirects)
	}
	if !strings.HasSuffix(x.Redirects[1], "/c") {
		t.Errorf("Unexpected redirect history %v", x.Redirects)
	}
	if x.Timing.Redirect <= 0 || x.Timing.Redirect > x.Timing.TotalTime {
		t.Errorf("Unexpected redirect time %v", x.Timing.Redirect)
	}

	x, err = NewClient(WithMaxRedirects(0)).Do(context.Background(), NewRequest("GET", server.URL+"/a"))
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}
	if x.StatusCode != http.StatusFound || len(x.Redirects) != 0 {
		t.Errorf("Expected redirect not followed, got %d %v", x.StatusCode, x.Redirects)
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := NewClient(WithTimeout(20*time.Millisecond)).Do(context.Background(), NewRequest("GET", server.URL))
	if err == nil {
		t.Errorf("Expected timeout error")
	}
}

func TestRequest_Build(t *testing.T) {
	req := NewRequest("", "http://example.com/x?y=1").
		WithHeader("Accept", "text/plain").
		WithBasicAuth("user", "pass")

	httpReq, err := req.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if httpReq.Method != http.MethodGet {
		t.Errorf("Expected default method GET, got %s", httpReq.Method)
	}
	if httpReq.URL.Query().Get("y") != "1" {
		t.Errorf("Expected query to be preserved, got %s", httpReq.URL.RawQuery)
	}
	if user, pass, ok := httpReq.BasicAuth(); !ok || user != "user" || pass != "pass" {
		t.Errorf("Basic auth not applied")
	}
	if httpReq.Body != nil {
		t.Errorf("Expected no body")
	}

	if _, err := NewRequest("GET", "://bad").Build(context.Background()); err == nil {
		t.Errorf("Expected error for malformed URL")
	}
}
