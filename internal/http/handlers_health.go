package httpx

import (
	"context"
	"io"
	"net/http"
	"sort"
	"time"
)

const (
	healthResponse     = `{"status":"ok"}`
	readyCheckTimeout  = 2 * time.Second
	readyStatusOK      = "ok"
	readyStatusFailing = "failing"
)

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// readyHandler runs every check and answers 503 when any fails.
func readyHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = readyStatusFailing
				continue
			}
			results[name] = readyStatusOK
		}

		overall := readyStatusOK
		if status != http.StatusOK {
			overall = readyStatusFailing
		}
		WriteJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}
