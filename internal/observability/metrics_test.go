package observability

import (
	"testing"
	"time"

	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/danmuck/uwbranging/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("uwbctl", "GET", "/health", 200, 12*time.Millisecond)
	RecordSendFailure("controller")
	RecordSessionStarted()
	RecordSessionEnded()
	RecordRangingSample("position")
	RecordRangingStartFailure()
	RecordAddressCollision()

	logging.Infof("observability/metrics: registration idempotent and recording paths executed")
}

func TestNegotiationCounterLabels(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(negotiations.WithLabelValues("controlee", OutcomeIncompatible))
	RecordNegotiation("controlee", OutcomeIncompatible)
	after := testutil.ToFloat64(negotiations.WithLabelValues("controlee", OutcomeIncompatible))
	if after-before != 1 {
		t.Fatalf("expected counter to advance by 1, got %v -> %v", before, after)
	}

	before = testutil.ToFloat64(payloadDrops.WithLabelValues("controller", DropMalformed))
	RecordPayloadDropped("controller", DropMalformed)
	if got := testutil.ToFloat64(payloadDrops.WithLabelValues("controller", DropMalformed)); got-before != 1 {
		t.Fatalf("expected drop counter to advance by 1")
	}
}
