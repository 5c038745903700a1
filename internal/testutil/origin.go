// Package testutil provides a scriptable origin server for transport and
// scheduler tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// ScriptedResponse defines the behavior of one response from the origin.
type ScriptedResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Origin is a configurable origin server. Paths without a script answer
// 200 with a small HTML page. Scripted responses are consumed in order;
// the last one repeats.
type Origin struct {
	server *httptest.Server

	mu      sync.Mutex
	scripts map[string][]ScriptedResponse
	hits    map[string]int

	// RequestCount is the total number of requests served.
	RequestCount int
}

// NewOrigin starts an origin server. Callers must Close it.
func NewOrigin() *Origin {
	o := &Origin{
		scripts: make(map[string][]ScriptedResponse),
		hits:    make(map[string]int),
	}
	o.server = httptest.NewServer(http.HandlerFunc(o.handle))
	return o
}

// Script installs the response sequence for a path.
func (o *Origin) Script(path string, responses ...ScriptedResponse) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scripts[path] = responses
}

// URL returns the absolute URL of a path on the origin.
func (o *Origin) URL(path string) string {
	return o.server.URL + path
}

// Hits returns how many requests a path received.
func (o *Origin) Hits(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

// Total returns the total number of requests served.
func (o *Origin) Total() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.RequestCount
}

// Close shuts the server down.
func (o *Origin) Close() {
	o.server.Close()
}

func (o *Origin) handle(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.RequestCount++
	o.hits[r.URL.Path]++
	script, ok := o.scripts[r.URL.Path]
	var resp ScriptedResponse
	if ok && len(script) > 0 {
		resp = script[0]
		if len(script) > 1 {
			o.scripts[r.URL.Path] = script[1:]
		}
	}
	o.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><head><title>origin</title></head><body>ok</body></html>"))
		return
	}

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp.Body))
}
