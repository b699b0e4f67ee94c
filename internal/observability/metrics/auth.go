package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/target/clinic-portal/internal/observability/errors"
	"github.com/target/clinic-portal/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Refresh triggers.
const (
	TriggerGuard = "guard"
	TriggerRetry = "retry"
)

// RefreshMetric captures one silent refresh attempt.
type RefreshMetric struct {
	Trigger  string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitRefresh emits auth.refresh counters and timings.
func EmitRefresh(sink statsd.Sink, in RefreshMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"trigger": in.Trigger,
		"result":  in.Result,
	}
	addErrorClass(tags, in.Result, in.Err)

	sink.Count("auth.refresh", 1, tags)
	if in.Duration > 0 {
		sink.Timing("auth.refresh.duration", in.Duration, CloneTags(tags))
	}
}

// GuardMetric captures the outcome of the route guard for one request.
type GuardMetric struct {
	// Outcome is one of "authenticated", "refreshed" or "redirected".
	Outcome string
	// Client is "browser" or "api".
	Client string
}

// EmitGuard emits the auth.guard counter.
func EmitGuard(sink statsd.Sink, in GuardMetric) {
	if sink == nil {
		return
	}
	sink.Count("auth.guard", 1, map[string]string{
		"outcome": in.Outcome,
		"client":  in.Client,
	})
}

// UpstreamMetric captures one request to the clinical API.
type UpstreamMetric struct {
	Method   string
	Status   int
	Attempt  string
	Duration time.Duration
	Err      error
}

// EmitUpstream emits upstream.request counters and timings.
func EmitUpstream(sink statsd.Sink, in UpstreamMetric) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	if in.Err != nil || in.Status >= 400 {
		result = ResultError
	}
	tags := map[string]string{
		"method":  in.Method,
		"status":  statusClass(in.Status),
		"attempt": in.Attempt,
		"result":  result,
	}
	addErrorClass(tags, result, in.Err)

	sink.Count("upstream.request", 1, tags)
	if in.Duration > 0 {
		sink.Timing("upstream.request.duration", in.Duration, CloneTags(tags))
	}
}

func statusClass(status int) string {
	if status <= 0 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}

func addErrorClass(tags map[string]string, result string, err error) {
	if err == nil || result != ResultError {
		return
	}
	if class := obserrors.Classify(err); class != "" {
		tags["error_class"] = class
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
