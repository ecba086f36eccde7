// Package honesty computes the post-run performance metrics a published
// backtest artifact must carry, including the gross/fees/net identity
// check that gates production-grade runs. Ported from the backtest core
// reference implementation's honesty module.
package honesty

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"github.com/hourline/backtestcore/internal/fixedpoint"
	"github.com/hourline/backtestcore/internal/windowpnl"
)

// IdentityViolationError reports the gross/fees/settlement/net identity
// failing to hold, as a hard error in production_grade mode.
type IdentityViolationError struct {
	ExpectedNet fixedpoint.Amount
	ActualNet   fixedpoint.Amount
	Gross       fixedpoint.Amount
	Fees        fixedpoint.Amount
}

func (e *IdentityViolationError) Error() string {
	return fmt.Sprintf("honesty: identity violation: expected net %s, actual net %s (gross=%s fees=%s)",
		e.ExpectedNet, e.ActualNet, e.Gross, e.Fees)
}

// DistributionStats summarizes a set of per-window Amount values.
type DistributionStats struct {
	Count    int
	Mean     fixedpoint.Amount
	Median   fixedpoint.Amount
	P05      fixedpoint.Amount
	P95      fixedpoint.Amount
	Min      fixedpoint.Amount
	Max      fixedpoint.Amount
	StdDev   fixedpoint.Amount
}

// FromValues computes DistributionStats over a slice of Amounts, returning
// ok=false for an empty slice.
func FromValues(values []fixedpoint.Amount) (DistributionStats, bool) {
	n := len(values)
	if n == 0 {
		return DistributionStats{}, false
	}
	sorted := make([]fixedpoint.Amount, n)
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })

	sum := fixedpoint.Zero()
	for _, v := range values {
		sum = sum.Add(v)
	}
	mean := sum.DivAmount(fixedpoint.FromWhole(int64(n)))

	p05idx := clampIdx(n*5/100, n)
	p95idx := clampIdx(n*95/100, n)

	var sqDiffSum float64
	meanF := mean.Float64()
	for _, v := range values {
		d := v.Float64() - meanF
		sqDiffSum += d * d
	}
	variance := sqDiffSum / float64(n)
	stdDev := fixedpoint.FromFloat(math.Sqrt(variance))

	return DistributionStats{
		Count:  n,
		Mean:   mean,
		Median: sorted[n/2],
		P05:    sorted[p05idx],
		P95:    sorted[p95idx],
		Min:    sorted[0],
		Max:    sorted[n-1],
		StdDev: stdDev,
	}, true
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Metrics is the full set of published performance numbers for a run.
type Metrics struct {
	TotalGrossPnl   fixedpoint.Amount
	TotalFees       fixedpoint.Amount
	TotalNetPnl     fixedpoint.Amount
	TotalSettlement fixedpoint.Amount
	WindowsTraded   uint64
	WindowsFinalized uint64
	TotalTrades     uint64

	NetOverGrossRatio  *fixedpoint.RatioValue
	FeesOverGrossRatio *fixedpoint.RatioValue

	NetPnlPerWindow   *fixedpoint.PerWindowValue
	GrossPnlPerWindow *fixedpoint.PerWindowValue
	FeesPerWindow     *fixedpoint.PerWindowValue

	TotalNotionalTraded      *fixedpoint.Amount
	NetReturnPerNotional     *fixedpoint.RatioValue
	NotionalDefined          bool
	NotionalUndefinedReason  string

	WindowPnlStats *DistributionStats

	IdentityVerified bool
	IdentityError    string

	MetricsHash uint64
}

// FromWindowSeries computes Metrics from a finalized WindowPnLSeries. In
// production_grade mode, an identity violation returns a hard error instead
// of a recorded-but-not-fatal one.
func FromWindowSeries(series *windowpnl.WindowPnLSeries, totalNotional *fixedpoint.Amount, productionGrade bool) (*Metrics, error) {
	m := &Metrics{
		TotalGrossPnl:    series.TotalGrossPnl,
		TotalFees:        series.TotalFees,
		TotalNetPnl:      series.TotalNetPnl,
		TotalSettlement:  series.TotalSettlement,
		WindowsFinalized: series.FinalizedCount,
		WindowsTraded:    uint64(len(series.Windows)),
		TotalTrades:      series.TotalTrades,
	}

	expectedNet := m.TotalGrossPnl.Sub(m.TotalFees).Add(m.TotalSettlement)
	m.IdentityVerified = expectedNet.Cmp(m.TotalNetPnl) == 0
	if !m.IdentityVerified {
		err := &IdentityViolationError{ExpectedNet: expectedNet, ActualNet: m.TotalNetPnl, Gross: m.TotalGrossPnl, Fees: m.TotalFees}
		if productionGrade {
			return nil, err
		}
		m.IdentityError = err.Error()
	}

	grossForRatios := m.TotalGrossPnl.Add(m.TotalSettlement)
	if r, ok := fixedpoint.NewRatio(m.TotalNetPnl, grossForRatios); ok {
		m.NetOverGrossRatio = &r
	}
	if r, ok := fixedpoint.NewRatio(m.TotalFees, grossForRatios); ok {
		m.FeesOverGrossRatio = &r
	}

	if pw, ok := fixedpoint.NewPerWindowValue(m.TotalNetPnl, m.WindowsFinalized); ok {
		m.NetPnlPerWindow = &pw
	}
	if pw, ok := fixedpoint.NewPerWindowValue(m.TotalGrossPnl, m.WindowsFinalized); ok {
		m.GrossPnlPerWindow = &pw
	}
	if pw, ok := fixedpoint.NewPerWindowValue(m.TotalFees, m.WindowsFinalized); ok {
		m.FeesPerWindow = &pw
	}

	switch {
	case totalNotional == nil:
		m.NotionalDefined = false
		m.NotionalUndefinedReason = "notional base not defined canonically in codebase"
	case totalNotional.IsZero():
		m.TotalNotionalTraded = totalNotional
		m.NotionalDefined = true
		m.NotionalUndefinedReason = "zero"
	case totalNotional.IsNeg():
		m.TotalNotionalTraded = totalNotional
		m.NotionalDefined = true
		m.NotionalUndefinedReason = "negative (invalid)"
	default:
		m.TotalNotionalTraded = totalNotional
		m.NotionalDefined = true
		if r, ok := fixedpoint.NewRatio(m.TotalNetPnl, *totalNotional); ok {
			m.NetReturnPerNotional = &r
		}
	}

	var perWindowNet []fixedpoint.Amount
	for _, w := range series.Windows {
		perWindowNet = append(perWindowNet, w.NetPnl)
	}
	if stats, ok := FromValues(perWindowNet); ok {
		m.WindowPnlStats = &stats
	}

	m.MetricsHash = m.computeHash()
	return m, nil
}

func (m *Metrics) computeHash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d|%d|%t",
		m.TotalGrossPnl, m.TotalFees, m.TotalNetPnl, m.TotalSettlement,
		m.WindowsFinalized, m.TotalTrades, m.IdentityVerified)
	if m.NotionalDefined && m.TotalNotionalTraded != nil {
		fmt.Fprintf(h, "|%s", m.TotalNotionalTraded.String())
	}
	return h.Sum64()
}

func (m *Metrics) FormatCompact() string {
	return fmt.Sprintf("net=%.4f gross=%.4f fees=%.4f windows=%d trades=%d identity=%v",
		m.TotalNetPnl.Float64(), m.TotalGrossPnl.Float64(), m.TotalFees.Float64(),
		m.WindowsFinalized, m.TotalTrades, m.IdentityVerified)
}

func (m *Metrics) FormatSummary() string {
	check := "VERIFIED"
	if !m.IdentityVerified {
		check = "FAILED: " + m.IdentityError
	}
	return fmt.Sprintf(
		"╔══════════════════════════════════════════════╗\n"+
			"║ HONESTY METRICS SUMMARY                       ║\n"+
			"╠══════════════════════════════════════════════╣\n"+
			"║ net pnl:        %14.4f               ║\n"+
			"║ gross pnl:      %14.4f               ║\n"+
			"║ fees:           %14.4f               ║\n"+
			"║ settlement:     %14.4f               ║\n"+
			"║ windows:        %14d               ║\n"+
			"║ trades:         %14d               ║\n"+
			"║ identity:       %-22s ║\n"+
			"╚══════════════════════════════════════════════╝",
		m.TotalNetPnl.Float64(), m.TotalGrossPnl.Float64(), m.TotalFees.Float64(),
		m.TotalSettlement.Float64(), m.WindowsFinalized, m.TotalTrades, check,
	)
}
