package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RecordedRequest is a copy of a request the fake upstream received.
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Upstream is a fake clinical REST API. Routes are registered per method and path;
// unregistered routes answer 404 with a JSON message the way the real backend does.
type Upstream struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewUpstream starts a fake upstream that is closed when the test ends.
func NewUpstream(t testing.TB) *Upstream {
	t.Helper()
	u := &Upstream{routes: make(map[string]http.HandlerFunc)}
	u.Server = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.Close)
	return u
}

// Handle registers h for method and path. A later registration replaces an earlier one.
func (u *Upstream) Handle(method, path string, h http.HandlerFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.routes[method+" "+path] = h
}

// HandleJSON registers a handler that always answers status with v encoded as JSON.
func (u *Upstream) HandleJSON(method, path string, status int, v any) {
	u.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, v)
	})
}

// Calls returns how many requests hit method and path.
func (u *Upstream) Calls(method, path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, r := range u.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Requests returns a copy of every request received so far, in arrival order.
func (u *Upstream) Requests() []RecordedRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]RecordedRequest, len(u.requests))
	copy(out, u.requests)
	return out
}

// Last returns the most recent request for method and path.
func (u *Upstream) Last(method, path string) (RecordedRequest, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i := len(u.requests) - 1; i >= 0; i-- {
		if u.requests[i].Method == method && u.requests[i].Path == path {
			return u.requests[i], true
		}
	}
	return RecordedRequest{}, false
}

func (u *Upstream) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec := RecordedRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Header:   r.Header.Clone(),
		Body:     body,
	}

	u.mu.Lock()
	u.requests = append(u.requests, rec)
	h := u.routes[r.Method+" "+r.URL.Path]
	u.mu.Unlock()

	if h == nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{"message": "route not found"})
		return
	}
	h(w, r)
}

// WriteJSON writes v as a JSON response with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
