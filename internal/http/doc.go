// Package http executes realized test requests and records how long each
// phase of the exchange took.
//
// Every Exchange carries two views of timing: per-phase durations (DNS, TCP,
// TLS, time to first byte, content transfer) and cumulative marks measured
// from the start of the request, matching the curl variables the benchmark
// metrics are named after:
//
//	client := http.NewClient(
//	    http.WithTimeout(10*time.Second),
//	    http.WithHeader("User-Agent", "restbench"),
//	)
//
//	req := http.NewRequest("POST", "http://localhost:8080/users").
//	    WithHeader("Content-Type", "application/json").
//	    WithBody([]byte(`{"name":"ada"}`))
//
//	x, err := client.Do(ctx, req)
//	fmt.Println(x.StatusCode, x.Timing.StartTransfer, x.NumConnects)
package http
