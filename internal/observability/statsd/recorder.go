package statsd

import (
	"maps"
	"sync"
	"time"
)

// Metric is one observation captured by Recorder.
type Metric struct {
	Kind  string // "count", "gauge" or "timing"
	Name  string
	Value float64
	Tags  map[string]string
}

// Recorder is an in-memory Sink for tests and for the admin CLI's dry runs.
type Recorder struct {
	mu      sync.Mutex
	metrics []Metric
}

var _ Sink = (*Recorder)(nil)

func (r *Recorder) add(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.Tags = maps.Clone(m.Tags)
	r.metrics = append(r.metrics, m)
}

// Count records a counter increment.
func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.add(Metric{Kind: "count", Name: name, Value: float64(value), Tags: tags})
}

// Gauge records a gauge value.
func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	r.add(Metric{Kind: "gauge", Name: name, Value: value, Tags: tags})
}

// Timing records a duration in milliseconds.
func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.add(Metric{Kind: "timing", Name: name, Value: float64(value) / float64(time.Millisecond), Tags: tags})
}

// Metrics returns a copy of everything recorded so far.
func (r *Recorder) Metrics() []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Metric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

// Counts returns the recorded counters named name.
func (r *Recorder) Counts(name string) []Metric {
	var out []Metric
	for _, m := range r.Metrics() {
		if m.Kind == "count" && m.Name == name {
			out = append(out, m)
		}
	}
	return out
}
