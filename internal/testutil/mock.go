// Package testutil provides httptest-backed doubles of the search proxy and
// the Data API for tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockResponse defines a canned response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// server is the shared request-tracking core of the mocks.
type server struct {
	srv      *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []*url.URL
	headers  []http.Header
}

func newServer(fallback http.HandlerFunc) *server {
	s := &server{handlers: make(map[string]http.HandlerFunc)}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		u := *r.URL
		s.requests = append(s.requests, &u)
		s.headers = append(s.headers, r.Header.Clone())
		handler, exists := s.handlers[r.URL.Path]
		s.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		fallback(w, r)
	}))
	return s
}

// URL returns the mock server URL.
func (s *server) URL() string {
	return s.srv.URL
}

// Close shuts down the mock server.
func (s *server) Close() {
	s.srv.Close()
}

// Reset clears all tracked requests.
func (s *server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
	s.headers = nil
}

// SetHandler overrides the handler for a path.
func (s *server) SetHandler(path string, handler http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (s *server) SetResponse(path string, resp MockResponse) {
	s.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests received.
func (s *server) RequestCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

// Requests returns a copy of the request URLs received, in order.
func (s *server) Requests() []*url.URL {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*url.URL, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastHeader returns the headers of the most recent request.
func (s *server) LastHeader() http.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.headers) == 0 {
		return nil
	}
	return s.headers[len(s.headers)-1]
}

// NewErrorResponse creates a plain-text error response with the given status.
func NewErrorResponse(status int, body string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
	}
}
