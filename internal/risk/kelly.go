package risk

import (
	"math"

	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
)

// BlockReason names why a Kelly sizing or gate check declined or shrank a
// trade.
type BlockReason int8

const (
	BlockNone BlockReason = iota
	BlockInsufficientEdge
	BlockDrawdownStop
	BlockGrossExposure
	BlockMarketPosition
	BlockOrderSize
	BlockOrderNotional
	BlockOutstandingOrders
	BlockMarketOrders
	BlockInsufficientCash
	BlockMinCash
	BlockDailyLoss
	BlockDailyTrades
	BlockCooldown
	BlockMarketHalted
)

func (b BlockReason) String() string {
	switch b {
	case BlockNone:
		return "none"
	case BlockInsufficientEdge:
		return "insufficient_edge"
	case BlockDrawdownStop:
		return "drawdown_stop"
	case BlockGrossExposure:
		return "gross_exposure"
	case BlockMarketPosition:
		return "market_position"
	case BlockOrderSize:
		return "order_size"
	case BlockOrderNotional:
		return "order_notional"
	case BlockOutstandingOrders:
		return "outstanding_orders"
	case BlockMarketOrders:
		return "market_orders"
	case BlockInsufficientCash:
		return "insufficient_cash"
	case BlockMinCash:
		return "min_cash"
	case BlockDailyLoss:
		return "daily_loss"
	case BlockDailyTrades:
		return "daily_trades"
	case BlockCooldown:
		return "cooldown"
	case BlockMarketHalted:
		return "market_halted"
	default:
		return "unknown"
	}
}

// KellyResult is the outcome of a Kelly sizing calculation.
type KellyResult struct {
	RecommendedSize fixedpoint.Amount
	KellyFraction   float64
	FullKelly       float64
	Edge            float64
	Blocked         bool
	BlockReason     BlockReason
}

// KellySizer computes a position size from an estimated win probability,
// a market price, and the available bankroll.
type KellySizer struct {
	Params KellyParams
}

func NewKellySizer(params KellyParams) *KellySizer {
	return &KellySizer{Params: params}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Calculate sizes a Yes/No bet given an estimated probability, the current
// market price (in [0,1]), the bankroll, and (optionally) realized
// volatility for vol-adjusted Kelly.
func (k *KellySizer) Calculate(estimatedProb, marketPrice float64, bankroll fixedpoint.Amount, currentVol float64, horizonSeconds float64) KellyResult {
	rawEdge := estimatedProb - marketPrice
	adjustedEdge := rawEdge * k.Params.ConfidenceFactor

	if adjustedEdge < k.Params.MinEdge {
		return KellyResult{Edge: adjustedEdge, Blocked: true, BlockReason: BlockInsufficientEdge}
	}

	cappedEdge := math.Min(adjustedEdge, k.Params.MaxEdgeCap)

	var fullKelly float64
	if marketPrice >= 0.99 {
		fullKelly = 0
	} else {
		fullKelly = cappedEdge / (1 - marketPrice)
	}

	kellyFraction := fullKelly * k.Params.KellyFraction

	if k.Params.VolScale && currentVol > 0 {
		sigmaSqrtT := currentVol * math.Sqrt(horizonSeconds)
		denom := math.Max(sigmaSqrtT, k.Params.TargetVol)
		volScalar := clampF(k.Params.TargetVol/denom, 0.25, 2.0)
		kellyFraction *= volScalar
	}

	kellyFraction = clampF(kellyFraction, 0, k.Params.MaxPositionPct)

	recommended := bankroll.MulAmount(fixedpoint.FromFloat(kellyFraction))

	return KellyResult{
		RecommendedSize: recommended,
		KellyFraction:   kellyFraction,
		FullKelly:       fullKelly,
		Edge:            cappedEdge,
	}
}

// CalculateSideSize sizes from a side-aware fair value vs bid/ask spread,
// using the complement probability for Sell.
func (k *KellySizer) CalculateSideSize(side coretypes.Side, ourFairValue, marketBid, marketAsk float64, bankroll fixedpoint.Amount) KellyResult {
	if side == coretypes.Buy {
		return k.Calculate(ourFairValue, marketAsk, bankroll, 0, 0)
	}
	return k.Calculate(1-ourFairValue, 1-marketBid, bankroll, 0, 0)
}
