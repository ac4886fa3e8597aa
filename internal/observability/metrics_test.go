package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(cqiCalls.WithLabelValues("CTRL_PING", "STATUS"))
	RecordCall("CTRL_PING", "STATUS", 3*time.Millisecond)
	after := testutil.ToFloat64(cqiCalls.WithLabelValues("CTRL_PING", "STATUS"))
	if after != before+1 {
		t.Fatalf("calls_total not incremented: before=%v after=%v", before, after)
	}

	RecordProbe("cqp.local:4877", false, 20*time.Millisecond)
	if got := testutil.ToFloat64(probeUp.WithLabelValues("cqp.local:4877")); got != 0 {
		t.Fatalf("expected probe down, got %v", got)
	}
	RecordProbe("cqp.local:4877", true, 10*time.Millisecond)
	if got := testutil.ToFloat64(probeUp.WithLabelValues("cqp.local:4877")); got != 1 {
		t.Fatalf("expected probe up, got %v", got)
	}
	if got := testutil.ToFloat64(probeFailures.WithLabelValues("cqp.local:4877")); got < 1 {
		t.Fatalf("expected a recorded failure, got %v", got)
	}

	RecordHTTPRequest("probe", "GET", "/health", 200)
	log.Info().Msg("observability/metrics: registration idempotent and recording paths executed")
}
