package risk

import (
	"time"

	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
	"github.com/rs/zerolog/log"
)

// SizeReduced records that an order was shrunk rather than blocked outright.
type SizeReduced struct {
	Original fixedpoint.Amount
	Reduced  fixedpoint.Amount
	Reason   BlockReason
}

// Decision is the result of a pre-trade Evaluate call.
type Decision struct {
	Approved    bool
	BlockReason BlockReason
	Reduced     *SizeReduced
}

// ProposedOrder is the candidate trade Evaluate judges.
type ProposedOrder struct {
	TokenId      coretypes.TokenId
	Side         coretypes.Side
	Size         int64
	PriceTicks   coretypes.PriceTicks
	Notional     fixedpoint.Amount
	MarketHalted bool
}

// PortfolioState is the subset of portfolio/oms state the gate needs,
// passed in rather than imported to keep this package free of a dependency
// on the concrete portfolio/oms types.
type PortfolioState struct {
	CashBalance          fixedpoint.Amount
	GrossExposure        fixedpoint.Amount
	Bankroll             fixedpoint.Amount
	MarketPosition       fixedpoint.Amount
	OutstandingOrders    int
	OutstandingPerMarket int
	DailyRealizedPnl     fixedpoint.Amount
	DailyTradesCount     int
	PeakEquity           fixedpoint.Amount
	CurrentEquity        fixedpoint.Amount
	LastTradeAt          time.Time
}

// Manager runs the fixed-order pre-trade check chain: market halt, cooldown, drawdown,
// daily loss, daily trade count, order size, notional, gross exposure,
// per-market exposure, open-order counts, cash buffer. The first failing
// check short-circuits the rest, the same numbered-step discipline the
// live bot's CanTrade used.
type Manager struct {
	Limits Limits
	Now    func() time.Time
}

func NewManager(limits Limits) *Manager {
	return &Manager{Limits: limits, Now: time.Now}
}

// Evaluate runs the ordered check chain against a proposed order and the
// current portfolio state.
func (m *Manager) Evaluate(order ProposedOrder, state PortfolioState) Decision {
	if order.MarketHalted {
		return m.blocked(BlockMarketHalted)
	}
	if m.Limits.Cooldown > 0 && !state.LastTradeAt.IsZero() {
		if m.Now().Sub(state.LastTradeAt) < m.Limits.Cooldown {
			return m.blocked(BlockCooldown)
		}
	}
	if m.Limits.MaxDrawdownPct > 0 && state.PeakEquity.IsPos() {
		drawdown := state.PeakEquity.Sub(state.CurrentEquity).DivAmount(state.PeakEquity).Float64()
		if drawdown >= m.Limits.MaxDrawdownPct {
			return m.blocked(BlockDrawdownStop)
		}
	}
	if m.Limits.MaxDailyLoss.IsPos() && state.DailyRealizedPnl.IsNeg() {
		if state.DailyRealizedPnl.Abs().Cmp(m.Limits.MaxDailyLoss) >= 0 {
			return m.blocked(BlockDailyLoss)
		}
	}
	if m.Limits.MaxTradesPerDay > 0 && state.DailyTradesCount >= m.Limits.MaxTradesPerDay {
		return m.blocked(BlockDailyTrades)
	}
	if order.Size > m.Limits.MaxOrderSize {
		return m.blocked(BlockOrderSize)
	}
	if m.Limits.MaxOrderNotional.IsPos() && order.Notional.Cmp(m.Limits.MaxOrderNotional) > 0 {
		return m.blocked(BlockOrderNotional)
	}
	if m.Limits.MaxGrossExposureMult > 0 && state.Bankroll.IsPos() {
		projected := state.GrossExposure.Add(order.Notional)
		maxExposure := state.Bankroll.MulAmount(fixedpoint.FromFloat(m.Limits.MaxGrossExposureMult))
		if projected.Cmp(maxExposure) > 0 {
			return m.blocked(BlockGrossExposure)
		}
	}
	if (m.Limits.MaxMarketPositionPct > 0 || m.Limits.MaxMarketPositionUsd.IsPos()) && state.CurrentEquity.IsPos() {
		projected := state.MarketPosition.Add(order.Notional)
		maxMarket := m.Limits.MaxMarketPositionUsd
		if m.Limits.MaxMarketPositionPct > 0 {
			byPct := state.CurrentEquity.MulAmount(fixedpoint.FromFloat(m.Limits.MaxMarketPositionPct))
			if !maxMarket.IsPos() || byPct.Cmp(maxMarket) < 0 {
				maxMarket = byPct
			}
		}
		if maxMarket.IsPos() && projected.Cmp(maxMarket) > 0 {
			return m.blocked(BlockMarketPosition)
		}
	}
	if m.Limits.MaxOutstandingOrders > 0 && state.OutstandingOrders >= m.Limits.MaxOutstandingOrders {
		return m.blocked(BlockOutstandingOrders)
	}
	if m.Limits.MaxOutstandingPerMarket > 0 && state.OutstandingPerMarket >= m.Limits.MaxOutstandingPerMarket {
		return m.blocked(BlockMarketOrders)
	}
	if m.Limits.MinCashBalance.IsPos() && state.CashBalance.Sub(order.Notional).Cmp(m.Limits.MinCashBalance) < 0 {
		return m.blocked(BlockInsufficientCash)
	}
	if m.Limits.MinCashPct > 0 && state.Bankroll.IsPos() {
		minCash := state.Bankroll.MulAmount(fixedpoint.FromFloat(m.Limits.MinCashPct))
		if state.CashBalance.Sub(order.Notional).Cmp(minCash) < 0 {
			return m.blocked(BlockMinCash)
		}
	}
	return Decision{Approved: true}
}

func (m *Manager) blocked(reason BlockReason) Decision {
	log.Warn().Str("reason", reason.String()).Msg("risk gate blocked order")
	return Decision{Approved: false, BlockReason: reason}
}

// ReduceToFit shrinks a proposed order's size down to whatever the gross
// exposure headroom allows, rather than blocking outright. ok is false if
// no reduction helps (headroom is zero or negative).
func (m *Manager) ReduceToFit(order ProposedOrder, state PortfolioState, pricePerUnit fixedpoint.Amount) (SizeReduced, bool) {
	headroom := state.Bankroll.MulAmount(fixedpoint.FromFloat(m.Limits.MaxGrossExposureMult)).Sub(state.GrossExposure)
	if !headroom.IsPos() || pricePerUnit.IsZero() {
		return SizeReduced{}, false
	}
	maxUnits := headroom.DivAmount(pricePerUnit).Units() / fixedpoint.AmountScale
	if maxUnits <= 0 || maxUnits >= order.Size {
		return SizeReduced{}, false
	}
	return SizeReduced{
		Original: fixedpoint.FromWhole(order.Size),
		Reduced:  fixedpoint.FromWhole(maxUnits),
		Reason:   BlockGrossExposure,
	}, true
}
