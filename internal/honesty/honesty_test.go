package honesty

import (
	"testing"

	"github.com/hourline/backtestcore/internal/fixedpoint"
	"github.com/hourline/backtestcore/internal/windowpnl"
)

func buildSeries(t *testing.T) *windowpnl.WindowPnLSeries {
	t.Helper()
	s := windowpnl.NewSeries()
	w1 := windowpnl.NewWindowPnL(0, "btc-updown-15m-0")
	w1.AddFill(1, 10, fixedpoint.FromWhole(5), true)
	w1.IsFinalized = true
	s.AddWindow(w1)

	w2 := windowpnl.NewWindowPnL(900_000_000_000, "btc-updown-15m-0")
	w2.AddFill(2, 20, fixedpoint.FromWhole(-2), false)
	w2.AddFee(3, fixedpoint.FromWhole(1))
	w2.IsFinalized = true
	s.AddWindow(w2)
	return s
}

func TestFromValuesComputesStats(t *testing.T) {
	t.Parallel()

	values := []fixedpoint.Amount{
		fixedpoint.FromWhole(1), fixedpoint.FromWhole(2), fixedpoint.FromWhole(3),
		fixedpoint.FromWhole(4), fixedpoint.FromWhole(5),
	}
	stats, ok := FromValues(values)
	if !ok {
		t.Fatal("FromValues returned ok=false for a non-empty slice")
	}
	if stats.Count != 5 {
		t.Errorf("Count = %d, want 5", stats.Count)
	}
	if got, want := stats.Mean, fixedpoint.FromWhole(3); got.Cmp(want) != 0 {
		t.Errorf("Mean = %s, want %s", got, want)
	}
	if got, want := stats.Median, fixedpoint.FromWhole(3); got.Cmp(want) != 0 {
		t.Errorf("Median = %s, want %s", got, want)
	}
	if got, want := stats.Min, fixedpoint.FromWhole(1); got.Cmp(want) != 0 {
		t.Errorf("Min = %s, want %s", got, want)
	}
	if got, want := stats.Max, fixedpoint.FromWhole(5); got.Cmp(want) != 0 {
		t.Errorf("Max = %s, want %s", got, want)
	}
}

func TestFromValuesEmptySliceUndefined(t *testing.T) {
	t.Parallel()

	_, ok := FromValues(nil)
	if ok {
		t.Error("FromValues on an empty slice should return ok=false")
	}
}

func TestFromWindowSeriesIdentityVerified(t *testing.T) {
	t.Parallel()

	s := buildSeries(t)
	m, err := FromWindowSeries(s, nil, true)
	if err != nil {
		t.Fatalf("FromWindowSeries: %v", err)
	}
	if !m.IdentityVerified {
		t.Error("IdentityVerified should be true for a series built from AddFill/AddFee")
	}
	want := m.TotalGrossPnl.Sub(m.TotalFees).Add(m.TotalSettlement)
	if m.TotalNetPnl.Cmp(want) != 0 {
		t.Errorf("TotalNetPnl = %s, want %s", m.TotalNetPnl, want)
	}
}

func TestFromWindowSeriesProductionGradeHardErrorsOnViolation(t *testing.T) {
	t.Parallel()

	s := buildSeries(t)
	// Force a drift between the cached total and the per-window sum.
	s.TotalNetPnl = s.TotalNetPnl.Add(fixedpoint.FromWhole(1))

	if _, err := FromWindowSeries(s, nil, true); err == nil {
		t.Error("FromWindowSeries in production_grade mode should hard-error on an identity violation")
	}
}

func TestFromWindowSeriesNonProductionGradeRecordsViolation(t *testing.T) {
	t.Parallel()

	s := buildSeries(t)
	s.TotalNetPnl = s.TotalNetPnl.Add(fixedpoint.FromWhole(1))

	m, err := FromWindowSeries(s, nil, false)
	if err != nil {
		t.Fatalf("FromWindowSeries in non-production-grade mode should not error: %v", err)
	}
	if m.IdentityVerified {
		t.Error("IdentityVerified should be false after the induced drift")
	}
	if m.IdentityError == "" {
		t.Error("IdentityError should be populated when identity fails outside production grade")
	}
}

func TestFromWindowSeriesNotionalUndefinedWhenNil(t *testing.T) {
	t.Parallel()

	s := buildSeries(t)
	m, err := FromWindowSeries(s, nil, true)
	if err != nil {
		t.Fatalf("FromWindowSeries: %v", err)
	}
	if m.NotionalDefined {
		t.Error("NotionalDefined should be false when totalNotional is nil")
	}
}

func TestFromWindowSeriesNotionalDefinedWhenPositive(t *testing.T) {
	t.Parallel()

	s := buildSeries(t)
	notional := fixedpoint.FromWhole(100)
	m, err := FromWindowSeries(s, &notional, true)
	if err != nil {
		t.Fatalf("FromWindowSeries: %v", err)
	}
	if !m.NotionalDefined {
		t.Error("NotionalDefined should be true for a positive notional")
	}
	if m.NetReturnPerNotional == nil {
		t.Error("NetReturnPerNotional should be computed for a positive notional")
	}
}

func TestMetricsHashIsDeterministic(t *testing.T) {
	t.Parallel()

	a, err := FromWindowSeries(buildSeries(t), nil, true)
	if err != nil {
		t.Fatalf("FromWindowSeries: %v", err)
	}
	b, err := FromWindowSeries(buildSeries(t), nil, true)
	if err != nil {
		t.Fatalf("FromWindowSeries: %v", err)
	}
	if a.MetricsHash != b.MetricsHash {
		t.Error("two runs over identical series should produce the same MetricsHash")
	}
}
