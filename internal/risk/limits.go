// Package risk implements the pre-trade risk gate: an ordered chain of
// checks that can block or shrink an order, and Kelly-criterion position
// sizing. Ported from the backtest core reference implementation's risk
// module, in the teacher repo's gate/sizer split (risk/gate.go,
// risk/sizing.go) rather than the original's single struct.
package risk

import (
	"time"

	"github.com/hourline/backtestcore/internal/fixedpoint"
)

// Limits mirrors the reference implementation's RiskLimits, each field a
// hard ceiling checked in Manager.Evaluate's fixed order.
type Limits struct {
	MaxGrossExposureMult     float64
	MaxMarketPositionUsd     fixedpoint.Amount
	MaxMarketPositionPct     float64
	MaxOrderSize             int64
	MaxOrderNotional         fixedpoint.Amount
	MaxOutstandingOrders     int
	MaxOutstandingPerMarket  int
	MaxDrawdownPct           float64
	MinCashBalance           fixedpoint.Amount
	MinCashPct               float64
	MaxDailyLoss             fixedpoint.Amount
	MaxTradesPerDay          int
	Cooldown                 time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxGrossExposureMult:    3.0,
		MaxMarketPositionUsd:    fixedpoint.FromWhole(1000),
		MaxMarketPositionPct:    0.25,
		MaxOrderSize:            10_000,
		MaxOrderNotional:        fixedpoint.FromWhole(500),
		MaxOutstandingOrders:    50,
		MaxOutstandingPerMarket: 10,
		MaxDrawdownPct:          0.20,
		MinCashBalance:          fixedpoint.FromWhole(50),
		MinCashPct:              0.05,
		MaxDailyLoss:            fixedpoint.FromWhole(200),
		MaxTradesPerDay:         200,
		Cooldown:                0,
	}
}

func ConservativeLimits() Limits {
	l := DefaultLimits()
	l.MaxGrossExposureMult = 1.5
	l.MaxMarketPositionPct = 0.10
	l.MaxDrawdownPct = 0.10
	l.MaxTradesPerDay = 50
	l.Cooldown = 30 * time.Second
	return l
}

func AggressiveLimits() Limits {
	l := DefaultLimits()
	l.MaxGrossExposureMult = 6.0
	l.MaxMarketPositionPct = 0.50
	l.MaxDrawdownPct = 0.35
	l.MaxTradesPerDay = 1000
	l.Cooldown = 0
	return l
}

// KellyParams tunes KellySizer.Calculate. Defaults are quarter-Kelly, the
// reference implementation's conservative-by-default stance.
type KellyParams struct {
	KellyFraction     float64
	MaxPositionPct    float64
	MinEdge           float64
	MaxEdgeCap        float64
	ConfidenceFactor  float64
	VolScale          bool
	TargetVol         float64
}

func DefaultKellyParams() KellyParams {
	return KellyParams{KellyFraction: 0.25, MaxPositionPct: 0.20, MinEdge: 0.02, MaxEdgeCap: 0.30, ConfidenceFactor: 1.0, VolScale: false, TargetVol: 0.5}
}

func ConservativeKellyParams() KellyParams {
	p := DefaultKellyParams()
	p.KellyFraction = 0.125
	p.MaxPositionPct = 0.10
	return p
}

func ModerateKellyParams() KellyParams {
	p := DefaultKellyParams()
	p.KellyFraction = 0.5
	p.MaxPositionPct = 0.30
	return p
}

func AggressiveKellyParams() KellyParams {
	p := DefaultKellyParams()
	p.KellyFraction = 1.0
	p.MaxPositionPct = 0.50
	return p
}
