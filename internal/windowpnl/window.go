// Package windowpnl accumulates per-window trading PnL and validates the
// running series against its own sum and ordering invariants. Ported
// directly from the backtest core reference implementation's window_pnl
// module.
package windowpnl

import (
	"fmt"
	"hash/fnv"

	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
	"github.com/hourline/backtestcore/internal/settlement"
)

type WindowId = coretypes.Nanos

// WindowPnL is one market's accounting record for one 15-minute window.
type WindowPnL struct {
	WindowStartNs     coretypes.Nanos
	WindowEndNs       coretypes.Nanos
	MarketId          string
	GrossPnl          fixedpoint.Amount
	Fees              fixedpoint.Amount
	SettlementTransfer fixedpoint.Amount
	NetPnl            fixedpoint.Amount
	TradesCount       uint64
	MakerFillsCount   uint64
	TakerFillsCount   uint64
	TotalVolume       int64
	StartPrice        *float64
	EndPrice          *float64
	Outcome           *coretypes.Outcome
	Resolution        settlement.ResolutionKind
	IsFinalized       bool
	FinalizedAtNs     coretypes.Nanos
	LedgerEntryIds    []uint64
}

func NewWindowPnL(windowStartNs coretypes.Nanos, marketId string) *WindowPnL {
	return &WindowPnL{
		WindowStartNs: windowStartNs,
		WindowEndNs:   windowStartNs + coretypes.Window15m,
		MarketId:      marketId,
		GrossPnl:      fixedpoint.Zero(),
		Fees:          fixedpoint.Zero(),
		NetPnl:        fixedpoint.Zero(),
	}
}

func (w *WindowPnL) WindowId() WindowId { return w.WindowStartNs }

func (w *WindowPnL) AddFill(entryId uint64, volume int64, pnlDelta fixedpoint.Amount, isMaker bool) {
	w.GrossPnl = w.GrossPnl.Add(pnlDelta)
	w.TotalVolume += volume
	w.TradesCount++
	if isMaker {
		w.MakerFillsCount++
	} else {
		w.TakerFillsCount++
	}
	w.LedgerEntryIds = append(w.LedgerEntryIds, entryId)
	w.recomputeNetPnl()
}

func (w *WindowPnL) AddFee(entryId uint64, feeAmount fixedpoint.Amount) {
	w.Fees = w.Fees.Add(feeAmount)
	w.LedgerEntryIds = append(w.LedgerEntryIds, entryId)
	w.recomputeNetPnl()
}

// FinalizeSettlement moves the window to its terminal state from a
// settlement Event. A Resolved event records the winner and start/end
// prices and applies settlementCash; a Void event finalizes the window
// with no winner and (by convention) no settlement transfer; an
// Unresolved event leaves the window open — it is not a terminal state,
// and the driver is expected to call this again once the oracle catches
// up, so IsFinalized is left untouched here.
func (w *WindowPnL) FinalizeSettlement(event settlement.Event, settlementCash fixedpoint.Amount, decisionTimeNs coretypes.Nanos) {
	w.Resolution = event.Resolution
	if event.Resolution == settlement.ResolutionUnresolved {
		return
	}
	if event.Resolution == settlement.ResolutionResolved {
		w.SettlementTransfer = w.SettlementTransfer.Add(settlementCash)
		w.StartPrice = floatPtr(event.StartPrice)
		w.EndPrice = floatPtr(event.EndPrice)
		outcome := event.Outcome
		w.Outcome = &outcome
	}
	w.IsFinalized = true
	w.FinalizedAtNs = decisionTimeNs
	w.recomputeNetPnl()
}

func (w *WindowPnL) recomputeNetPnl() {
	w.NetPnl = w.GrossPnl.Sub(w.Fees).Add(w.SettlementTransfer)
}

func (w *WindowPnL) GrossPnlFloat64() float64 { return w.GrossPnl.Float64() }
func (w *WindowPnL) NetPnlFloat64() float64   { return w.NetPnl.Float64() }

// FingerprintHash is a deterministic hash over the window's fields, used to
// detect accidental divergence between re-runs of the same scenario.
func (w *WindowPnL) FingerprintHash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s|%d|%d|%d|%d|%t",
		w.WindowStartNs, w.MarketId, w.GrossPnl.String(), w.Fees.String(),
		w.SettlementTransfer.String(), w.NetPnl.String(), w.TradesCount,
		w.MakerFillsCount, w.TakerFillsCount, w.TotalVolume, w.IsFinalized)
	return h.Sum64()
}

func floatPtr(f float64) *float64 { return &f }
