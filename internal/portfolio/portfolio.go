package portfolio

import (
	"fmt"

	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
	"github.com/hourline/backtestcore/internal/ledger"
)

// EquityPoint is one sample of the running equity curve.
type EquityPoint struct {
	AtNs   coretypes.Nanos
	Equity fixedpoint.Amount
}

// Portfolio owns the ledger and the per-market Yes/No position bundles it
// funds. When StrictAccounting is true, the only economic mutation path is
// ApplyFill / ApplySettlement; calling the direct position-mutation helpers
// panics.
type Portfolio struct {
	Ledger           *ledger.Ledger
	markets          map[string]*MarketPosition
	StrictAccounting bool

	InitialCash         fixedpoint.Amount
	TotalFees           fixedpoint.Amount
	TotalRealizedPnl    fixedpoint.Amount
	EquityHighWatermark fixedpoint.Amount
	EquityCurve         []EquityPoint
	TradeCount          uint64
	WinningTrades       uint64
	LosingTrades        uint64
}

func New(strictAccounting bool) *Portfolio {
	return &Portfolio{
		Ledger:              ledger.New(),
		markets:             make(map[string]*MarketPosition),
		StrictAccounting:    strictAccounting,
		InitialCash:         fixedpoint.Zero(),
		TotalFees:           fixedpoint.Zero(),
		TotalRealizedPnl:    fixedpoint.Zero(),
		EquityHighWatermark: fixedpoint.Zero(),
	}
}

// NewFunded is New with a starting cash balance booked against an equity
// account, so CashBalance and the initial equity sample both reflect it.
func NewFunded(strictAccounting bool, initialCash fixedpoint.Amount) (*Portfolio, error) {
	pf := New(strictAccounting)
	pf.InitialCash = initialCash
	pf.EquityHighWatermark = initialCash
	if initialCash.IsZero() {
		return pf, nil
	}
	postings := []ledger.Posting{
		{Account: ledger.CashAccount(), Amount: initialCash},
		{Account: ledger.FundingAccount(), Amount: initialCash.Neg()},
	}
	if _, err := pf.Ledger.Post(postings, "initial capitalization", 0); err != nil {
		return nil, err
	}
	pf.EquityCurve = append(pf.EquityCurve, EquityPoint{AtNs: 0, Equity: initialCash})
	return pf, nil
}

func (pf *Portfolio) marketFor(marketId string) *MarketPosition {
	mp, ok := pf.markets[marketId]
	if !ok {
		mp = newMarketPosition(marketId)
		pf.markets[marketId] = mp
	}
	return mp
}

// MarketPosition returns the Yes/No position bundle for a market, creating
// an empty one on first access.
func (pf *Portfolio) MarketPosition(marketId string) *MarketPosition {
	return pf.marketFor(marketId)
}

// Markets returns every market the portfolio has touched, keyed by market id.
func (pf *Portfolio) Markets() map[string]*MarketPosition {
	return pf.markets
}

func (pf *Portfolio) Position(tokenId coretypes.TokenId) *Position {
	mp := pf.marketFor(tokenId.MarketId)
	if tokenId.Outcome == coretypes.Yes {
		return mp.Yes
	}
	return mp.No
}

// ApplyFill is the sole publication-valid path for a trade's economic
// effect: it posts cash/position/fee legs to the ledger and then updates
// the in-memory Position to match. This is always available, strict mode
// or not — strict mode only forbids the *direct* mutation helpers below.
func (pf *Portfolio) ApplyFill(tokenId coretypes.TokenId, side coretypes.Side, qty int64, price, fee fixedpoint.Amount, at coretypes.Nanos) (fixedpoint.Amount, error) {
	pos := pf.Position(tokenId)
	realized := pos.applyFill(side, qty, price)

	notional := price.MulInt(qty)
	cashDelta := notional.Neg()
	if side == coretypes.Sell {
		cashDelta = notional
	}
	cashDelta = cashDelta.Sub(fee)

	postings := []ledger.Posting{
		{Account: ledger.CashAccount(), Amount: cashDelta},
		{Account: ledger.PositionAccount(tokenId), Amount: cashDelta.Neg().Sub(fee)},
		{Account: ledger.FeePaidAccount(), Amount: fee},
	}
	if _, err := pf.Ledger.Post(postings, fmt.Sprintf("fill %s %s", tokenId, side), at); err != nil {
		return fixedpoint.Zero(), err
	}

	pf.TotalFees = pf.TotalFees.Add(fee)
	if !realized.IsZero() {
		pf.TotalRealizedPnl = pf.TotalRealizedPnl.Add(realized)
		pf.TradeCount++
		if realized.IsPos() {
			pf.WinningTrades++
		} else if realized.IsNeg() {
			pf.LosingTrades++
		}
	}
	pf.sampleEquity(at, map[coretypes.TokenId]fixedpoint.Amount{tokenId: price})
	return realized, nil
}

// ApplySettlement books the cash transfer a window's resolution pays out
// or collects for a token's final position, and records the market's
// winning outcome so Equity stops marking it to a live price.
func (pf *Portfolio) ApplySettlement(tokenId coretypes.TokenId, settlementCash fixedpoint.Amount, at coretypes.Nanos) error {
	postings := []ledger.Posting{
		{Account: ledger.CashAccount(), Amount: settlementCash},
		{Account: ledger.SettlementAccount(), Amount: settlementCash.Neg()},
	}
	if _, err := pf.Ledger.Post(postings, fmt.Sprintf("settlement %s", tokenId), at); err != nil {
		return err
	}
	pf.marketFor(tokenId.MarketId).Resolve(tokenId.Outcome, at)
	pf.sampleEquity(at, nil)
	return nil
}

// directMutationGuard panics when strict accounting is enabled. Every
// direct position-mutation helper below calls this first, so the only way
// to silently drift the books is to disable strict accounting explicitly.
func (pf *Portfolio) directMutationGuard(caller string) {
	if pf.StrictAccounting {
		panic(fmt.Sprintf("portfolio: direct mutation via %s is forbidden under strict accounting; use ApplyFill/ApplySettlement", caller))
	}
}

// SetPositionDirect overwrites a position's fields without touching the
// ledger. Exploratory/tooling use only — forbidden under strict accounting.
func (pf *Portfolio) SetPositionDirect(tokenId coretypes.TokenId, size int64, avgEntry fixedpoint.Amount) {
	pf.directMutationGuard("Portfolio.SetPositionDirect")
	pos := pf.Position(tokenId)
	pos.Size = size
	pos.AvgEntryPrice = avgEntry
	pos.CostBasis = avgEntry.MulInt(abs64(size))
}

func (pf *Portfolio) CashBalance() fixedpoint.Amount {
	return pf.Ledger.Balance(ledger.CashAccount())
}

// MarketNotional is the cost-basis notional of a single market's combined
// Yes/No inventory, the figure the risk manager's per-market exposure cap
// (spec §4.5 item 8) checks against.
func (pf *Portfolio) MarketNotional(marketId string) fixedpoint.Amount {
	mp := pf.marketFor(marketId)
	return mp.Yes.CostBasis.Add(mp.No.CostBasis)
}

// GrossExposure is the cost-basis notional of every open position across
// every market, the figure the risk manager's portfolio-wide exposure cap
// checks against.
func (pf *Portfolio) GrossExposure() fixedpoint.Amount {
	total := fixedpoint.Zero()
	for _, mp := range pf.markets {
		total = total.Add(mp.Yes.CostBasis).Add(mp.No.CostBasis)
	}
	return total
}

// Equity is cash plus the mark-to-market value of every open, unresolved
// position. markPrices supplies a current price per token; a token with no
// entry (or belonging to an already-resolved market) is valued at its cost
// basis instead of marked live.
func (pf *Portfolio) Equity(markPrices map[coretypes.TokenId]fixedpoint.Amount) fixedpoint.Amount {
	equity := pf.CashBalance()
	for _, mp := range pf.markets {
		for _, pos := range []*Position{mp.Yes, mp.No} {
			if pos.Size == 0 {
				continue
			}
			price, ok := markPrices[pos.TokenId]
			if mp.Resolution != nil || !ok {
				price = pos.AvgEntryPrice
			}
			equity = equity.Add(price.MulInt(pos.Size))
		}
	}
	return equity
}

// sampleEquity appends an equity-curve point and raises the high-watermark
// if the current mark exceeds it. marks may be nil for a settlement-only
// update, in which case open positions value at cost basis.
func (pf *Portfolio) sampleEquity(at coretypes.Nanos, marks map[coretypes.TokenId]fixedpoint.Amount) {
	equity := pf.Equity(marks)
	pf.EquityCurve = append(pf.EquityCurve, EquityPoint{AtNs: at, Equity: equity})
	if equity.Cmp(pf.EquityHighWatermark) > 0 {
		pf.EquityHighWatermark = equity
	}
}
