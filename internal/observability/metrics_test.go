package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
}

func TestRecordSessionOpCounts(t *testing.T) {
	before := testutil.ToFloat64(sessionOps.WithLabelValues("noop3", "ok"))
	RecordSessionOp("noop3", "ok", 3*time.Millisecond)
	RecordSessionOp("noop3", "ok", 4*time.Millisecond)
	after := testutil.ToFloat64(sessionOps.WithLabelValues("noop3", "ok"))
	if after-before != 2 {
		t.Fatalf("expected 2 recorded ops, got %v", after-before)
	}
}

func TestNodeConnectionGauge(t *testing.T) {
	NodeConnectionOpened("node-gauge")
	NodeConnectionOpened("node-gauge")
	NodeConnectionClosed("node-gauge")
	if got := testutil.ToFloat64(nodeConnections.WithLabelValues("node-gauge")); got != 1 {
		t.Fatalf("expected 1 open connection, got %v", got)
	}
}

func TestRecordNodeRequestAndHTTP(t *testing.T) {
	RecordNodeRequest("node-a", "get", "not_found")
	if got := testutil.ToFloat64(nodeRequests.WithLabelValues("node-a", "get", "not_found")); got < 1 {
		t.Fatalf("expected node request recorded, got %v", got)
	}
	RecordHTTPRequest("node-a", "GET", "/health", 200, 2*time.Millisecond)
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("node-a", "GET", "/health", "200")); got < 1 {
		t.Fatalf("expected http request recorded, got %v", got)
	}
}
