package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Login("ok")
	m.Renewal("ok")
	m.Invalidation("logout")
	m.Finalize("ok")
	m.TimerArmed(true)
}

func TestCountersIncrement(t *testing.T) {
	m := New()
	m.Renewal("ok")
	m.Renewal("ok")
	m.Renewal("failed")
	m.Finalize("rejected")

	if got := testutil.ToFloat64(m.RenewalCounter("ok")); got != 2 {
		t.Fatalf("renewals ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RenewalCounter("failed")); got != 1 {
		t.Fatalf("renewals failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FinalizeCounter("rejected")); got != 1 {
		t.Fatalf("finalize rejected = %v, want 1", got)
	}
}
