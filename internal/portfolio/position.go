// Package portfolio tracks per-token positions and realized/unrealized PnL.
// Under strict accounting, the only way to change a Position's economic
// state is through Portfolio.ApplyFill / ApplySettlement, which post to the
// ledger first; the direct mutation helper Portfolio.SetPositionDirect
// exists for the non-strict (exploratory/backtest-tooling) mode and panics
// when strict accounting is enabled, mirroring the backtest core reference
// implementation's guard-macro discipline without needing a macro system.
package portfolio

import (
	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
)

// Position is one token's inventory and cost basis.
type Position struct {
	TokenId        coretypes.TokenId
	Size           int64 // signed: positive long, negative short
	CostBasis      fixedpoint.Amount
	AvgEntryPrice  fixedpoint.Amount
	RealizedPnl    fixedpoint.Amount
}

func newPosition(tokenId coretypes.TokenId) *Position {
	return &Position{
		TokenId:       tokenId,
		CostBasis:     fixedpoint.Zero(),
		AvgEntryPrice: fixedpoint.Zero(),
		RealizedPnl:   fixedpoint.Zero(),
	}
}

// applyFill folds one fill's effect on this position, returning the
// realized PnL delta booked for a closing/flipping fill (zero for a pure
// opening/adding fill). side is the position-holder's side for this fill:
// Buy increases Size, Sell decreases it.
func (p *Position) applyFill(side coretypes.Side, qty int64, price fixedpoint.Amount) fixedpoint.Amount {
	signedQty := qty
	if side == coretypes.Sell {
		signedQty = -qty
	}

	sameDirection := p.Size == 0 || (p.Size > 0) == (signedQty > 0)
	if sameDirection {
		notional := price.MulInt(abs64(signedQty))
		p.CostBasis = p.CostBasis.Add(notional)
		p.Size += signedQty
		if p.Size != 0 {
			p.AvgEntryPrice = p.CostBasis.DivAmount(fixedpoint.FromWhole(abs64(p.Size)))
		}
		return fixedpoint.Zero()
	}

	// Closing, possibly flipping: the portion up to |p.Size| realizes PnL
	// against the existing average entry price; any residual beyond that
	// opens a new position in the opposite direction at the fill price.
	closingQty := min64(abs64(signedQty), abs64(p.Size))
	var realized fixedpoint.Amount
	if p.Size > 0 {
		// was long, selling: pnl = (price - avgEntry) * closingQty
		realized = price.Sub(p.AvgEntryPrice).MulInt(closingQty)
	} else {
		// was short, buying to cover: pnl = (avgEntry - price) * closingQty
		realized = p.AvgEntryPrice.Sub(price).MulInt(closingQty)
	}
	p.RealizedPnl = p.RealizedPnl.Add(realized)

	closedFraction := fixedpoint.FromWhole(closingQty).DivAmount(fixedpoint.FromWhole(abs64(p.Size)))
	p.CostBasis = p.CostBasis.Sub(p.CostBasis.MulAmount(closedFraction))

	remainderQty := abs64(signedQty) - closingQty
	if p.Size > 0 {
		p.Size -= closingQty
	} else {
		p.Size += closingQty
	}

	if remainderQty > 0 {
		// Flip: residual opens fresh in the new direction at fill price.
		newSize := remainderQty
		if signedQty < 0 {
			newSize = -remainderQty
		}
		p.Size = newSize
		p.CostBasis = price.MulInt(remainderQty)
		p.AvgEntryPrice = price
	} else if p.Size != 0 {
		p.AvgEntryPrice = p.CostBasis.DivAmount(fixedpoint.FromWhole(abs64(p.Size)))
	} else {
		p.CostBasis = fixedpoint.Zero()
		p.AvgEntryPrice = fixedpoint.Zero()
	}

	return realized
}

// MarketPosition bundles the Yes/No positions of a single market so the
// risk manager and honesty metrics can reason about a market's combined
// exposure without reaching back into the Portfolio's flat token map. It
// holds no reference back to the Portfolio itself, only to the two
// Position objects it wraps.
type MarketPosition struct {
	MarketId   string
	Yes        *Position
	No         *Position
	Resolution *coretypes.Outcome
	ResolvedAt coretypes.Nanos
}

func newMarketPosition(marketId string) *MarketPosition {
	return &MarketPosition{
		MarketId: marketId,
		Yes:      newPosition(coretypes.TokenId{MarketId: marketId, Outcome: coretypes.Yes}),
		No:       newPosition(coretypes.TokenId{MarketId: marketId, Outcome: coretypes.No}),
	}
}

// HedgedAmount is the portion of the position that is fully hedged: holding
// equal Yes and No inventory nets to a fixed payout regardless of outcome.
func (mp *MarketPosition) HedgedAmount() int64 {
	yes, no := mp.Yes.Size, mp.No.Size
	if yes <= 0 || no <= 0 {
		return 0
	}
	return min64(yes, no)
}

// Resolve records the market's settled outcome, used by the portfolio's
// equity computation to stop marking a resolved market to a live price.
func (mp *MarketPosition) Resolve(winner coretypes.Outcome, at coretypes.Nanos) {
	w := winner
	mp.Resolution = &w
	mp.ResolvedAt = at
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
