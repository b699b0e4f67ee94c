package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/clinic-portal/internal/observability/statsd"
)

func TestEmitRefresh(t *testing.T) {
	var rec statsd.Recorder

	EmitRefresh(&rec, RefreshMetric{
		Trigger:  TriggerRetry,
		Result:   ResultError,
		Duration: 20 * time.Millisecond,
		Err:      errors.New("refresh rejected"),
	})

	counts := rec.Counts("auth.refresh")
	require.Len(t, counts, 1)
	assert.Equal(t, map[string]string{
		"trigger":     "retry",
		"result":      "error",
		"error_class": "errors_errorstring",
	}, counts[0].Tags)
	assert.Len(t, rec.Metrics(), 2)
}

func TestEmitUpstream(t *testing.T) {
	var rec statsd.Recorder

	EmitUpstream(&rec, UpstreamMetric{Method: "GET", Status: 401, Attempt: "fresh"})
	EmitUpstream(&rec, UpstreamMetric{Method: "POST", Status: 201, Attempt: "retried", Duration: time.Millisecond})

	counts := rec.Counts("upstream.request")
	require.Len(t, counts, 2)
	assert.Equal(t, "4xx", counts[0].Tags["status"])
	assert.Equal(t, ResultError, counts[0].Tags["result"])
	assert.Equal(t, "2xx", counts[1].Tags["status"])
	assert.Equal(t, ResultSuccess, counts[1].Tags["result"])
	assert.Equal(t, "none", statusClass(0))
}

func TestEmit_NilSink(t *testing.T) {
	EmitRefresh(nil, RefreshMetric{})
	EmitGuard(nil, GuardMetric{})
	EmitUpstream(nil, UpstreamMetric{})

	var rec statsd.Recorder
	EmitGuard(&rec, GuardMetric{Outcome: "redirected", Client: "browser"})
	assert.Len(t, rec.Counts("auth.guard"), 1)
	assert.Nil(t, CloneTags(nil))
}
