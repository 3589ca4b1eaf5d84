// Package mockup provides an in-process mock Redfish service for tests.
//
// A Service is built from a map of resource paths to JSON payloads and
// served over net/http/httptest, so tests exercise the real transport
// stack end to end. CountingTransport wraps any transport and records
// per-path GET counts, which is how tests assert that the planner's fetch
// deduplication actually coalesced shared prefixes into single requests.
package mockup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/roach88/redpath/internal/redfish/transport"
)

// Service is an in-process Redfish service backed by a static resource
// map.
type Service struct {
	srv       *httptest.Server
	resources map[string]json.RawMessage
}

// NewService starts a service from a map of resource path to payload.
// Payloads may be any JSON-marshalable value; they are serialized once at
// startup. Unknown paths return 404 with a Redfish-style error body.
func NewService(resources map[string]any) (*Service, error) {
	serialized := make(map[string]json.RawMessage, len(resources))
	for path, payload := range resources {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		serialized[path] = raw
	}

	s := &Service{resources: serialized}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s, nil
}

// URL returns the service's base URL.
func (s *Service) URL() string { return s.srv.URL }

// Transport returns an HTTP transport pointed at the service, with
// retries disabled so failure tests stay fast.
func (s *Service) Transport() transport.Transport {
	return transport.NewHTTP(s.srv.URL, transport.WithRetryMax(0))
}

// Close shuts the service down.
func (s *Service) Close() { s.srv.Close() }

func (s *Service) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	raw, ok := s.resources[r.URL.Path]
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"Base.1.0.GeneralError","message":"resource not found"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

// CountingTransport wraps a Transport and records how many GETs each path
// received. Safe for concurrent use.
type CountingTransport struct {
	next transport.Transport

	mu     sync.Mutex
	counts map[string]int
}

// NewCountingTransport wraps next with per-path GET counting.
func NewCountingTransport(next transport.Transport) *CountingTransport {
	return &CountingTransport{next: next, counts: make(map[string]int)}
}

// RootURI implements transport.Transport.
func (t *CountingTransport) RootURI() string { return t.next.RootURI() }

// Get implements transport.Transport.
func (t *CountingTransport) Get(ctx context.Context, path string) (transport.Result, error) {
	t.mu.Lock()
	t.counts[path]++
	t.mu.Unlock()
	return t.next.Get(ctx, path)
}

// Count returns how many times path was fetched.
func (t *CountingTransport) Count(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[path]
}

// Counts returns a copy of all per-path fetch counts.
func (t *CountingTransport) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}
