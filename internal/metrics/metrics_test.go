package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init() // a second call must not panic (MustRegister would on a duplicate)
}

func TestRecordFillIncrementsByLabel(t *testing.T) {
	before := testutil.ToFloat64(MatchingFillsTotal.WithLabelValues("limit", "buy"))
	RecordFill("limit", "buy")
	after := testutil.ToFloat64(MatchingFillsTotal.WithLabelValues("limit", "buy"))
	if after != before+1 {
		t.Fatalf("MatchingFillsTotal{limit,buy} = %v, want %v", after, before+1)
	}
}

func TestRecordRiskRejectionIncrementsByReason(t *testing.T) {
	before := testutil.ToFloat64(RiskGateRejections.WithLabelValues("max_open_positions"))
	RecordRiskRejection("max_open_positions")
	after := testutil.ToFloat64(RiskGateRejections.WithLabelValues("max_open_positions"))
	if after != before+1 {
		t.Fatalf("RiskGateRejections{max_open_positions} = %v, want %v", after, before+1)
	}
}

func TestSetKillSwitch(t *testing.T) {
	SetKillSwitch(true)
	if got := testutil.ToFloat64(RiskGateKillSwitchActive); got != 1 {
		t.Fatalf("RiskGateKillSwitchActive = %v, want 1", got)
	}
	SetKillSwitch(false)
	if got := testutil.ToFloat64(RiskGateKillSwitchActive); got != 0 {
		t.Fatalf("RiskGateKillSwitchActive = %v, want 0", got)
	}
}

func TestSetEquity(t *testing.T) {
	SetEquity(10500.25, 2.5, 7.1)
	if got := testutil.ToFloat64(EquityCurrent); got != 10500.25 {
		t.Fatalf("EquityCurrent = %v, want 10500.25", got)
	}
	if got := testutil.ToFloat64(EquityDrawdownPct); got != 2.5 {
		t.Fatalf("EquityDrawdownPct = %v, want 2.5", got)
	}
	if got := testutil.ToFloat64(EquityMaxDrawdownPct); got != 7.1 {
		t.Fatalf("EquityMaxDrawdownPct = %v, want 7.1", got)
	}
}
