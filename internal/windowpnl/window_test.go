package windowpnl

import (
	"testing"

	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
	"github.com/hourline/backtestcore/internal/settlement"
)

func TestAddFillUpdatesCountsAndNetPnl(t *testing.T) {
	t.Parallel()

	w := NewWindowPnL(0, "btc-updown-15m-0")
	w.AddFill(1, 10, fixedpoint.FromWhole(5), true)
	w.AddFill(2, 5, fixedpoint.FromWhole(-2), false)

	if w.TradesCount != 2 {
		t.Errorf("TradesCount = %d, want 2", w.TradesCount)
	}
	if w.MakerFillsCount != 1 || w.TakerFillsCount != 1 {
		t.Errorf("MakerFillsCount=%d TakerFillsCount=%d, want 1/1", w.MakerFillsCount, w.TakerFillsCount)
	}
	if got, want := w.GrossPnl, fixedpoint.FromWhole(3); got.Cmp(want) != 0 {
		t.Errorf("GrossPnl = %s, want %s", got, want)
	}
	// P-Window-Id: net = gross - fees + settlement.
	want := w.GrossPnl.Sub(w.Fees).Add(w.SettlementTransfer)
	if w.NetPnl.Cmp(want) != 0 {
		t.Errorf("NetPnl = %s, want %s (gross-fees+settlement)", w.NetPnl, want)
	}
}

func TestAddFeeReducesNetPnl(t *testing.T) {
	t.Parallel()

	w := NewWindowPnL(0, "btc-updown-15m-0")
	w.AddFill(1, 10, fixedpoint.FromWhole(10), true)
	w.AddFee(2, fixedpoint.FromWhole(1))

	if got, want := w.NetPnl, fixedpoint.FromWhole(9); got.Cmp(want) != 0 {
		t.Errorf("NetPnl = %s, want %s", got, want)
	}
}

func TestFinalizeSettlementSetsOutcomeAndNetPnl(t *testing.T) {
	t.Parallel()

	w := NewWindowPnL(0, "btc-updown-15m-0")
	w.AddFill(1, 10, fixedpoint.FromWhole(2), true)

	evt := settlement.Resolve("btc-updown-15m-0", 0, coretypes.Window15m, 100.0, 101.0, false, coretypes.Window15m)
	w.FinalizeSettlement(evt, fixedpoint.FromWhole(3), coretypes.Window15m)

	if !w.IsFinalized {
		t.Fatal("IsFinalized should be true after FinalizeSettlement")
	}
	if w.Outcome == nil || *w.Outcome != coretypes.Yes {
		t.Errorf("Outcome = %v, want Yes", w.Outcome)
	}
	want := fixedpoint.FromWhole(5) // 2 gross - 0 fees + 3 settlement
	if w.NetPnl.Cmp(want) != 0 {
		t.Errorf("NetPnl after settlement = %s, want %s", w.NetPnl, want)
	}
}

func TestFinalizeSettlementVoidHasNoWinner(t *testing.T) {
	t.Parallel()

	w := NewWindowPnL(0, "btc-updown-15m-0")
	w.AddFill(1, 10, fixedpoint.FromWhole(2), true)

	evt := settlement.Void("btc-updown-15m-0", 0, coretypes.Window15m, "market cancelled upstream", coretypes.Window15m)
	w.FinalizeSettlement(evt, fixedpoint.Zero(), coretypes.Window15m)

	if !w.IsFinalized {
		t.Fatal("a Void event is terminal and should finalize the window")
	}
	if w.Outcome != nil {
		t.Errorf("Outcome = %v, want nil for a Void window", w.Outcome)
	}
	if w.Resolution != settlement.ResolutionVoid {
		t.Errorf("Resolution = %v, want ResolutionVoid", w.Resolution)
	}
}

func TestFinalizeSettlementUnresolvedDoesNotFinalize(t *testing.T) {
	t.Parallel()

	w := NewWindowPnL(0, "btc-updown-15m-0")
	w.AddFill(1, 10, fixedpoint.FromWhole(2), true)

	evt := settlement.Unresolve("btc-updown-15m-0", 0, coretypes.Window15m, "oracle price stale", coretypes.Window15m)
	w.FinalizeSettlement(evt, fixedpoint.FromWhole(3), coretypes.Window15m)

	if w.IsFinalized {
		t.Error("an Unresolved event must not finalize the window")
	}
	if w.Resolution != settlement.ResolutionUnresolved {
		t.Errorf("Resolution = %v, want ResolutionUnresolved", w.Resolution)
	}
	if !w.SettlementTransfer.IsZero() {
		t.Error("an Unresolved event must not apply a settlement transfer")
	}
}

func TestFingerprintHashIsDeterministic(t *testing.T) {
	t.Parallel()

	a := NewWindowPnL(0, "btc-updown-15m-0")
	a.AddFill(1, 10, fixedpoint.FromWhole(2), true)

	b := NewWindowPnL(0, "btc-updown-15m-0")
	b.AddFill(1, 10, fixedpoint.FromWhole(2), true)

	if a.FingerprintHash() != b.FingerprintHash() {
		t.Error("two windows built from identical inputs must hash identically")
	}

	c := NewWindowPnL(0, "btc-updown-15m-0")
	c.AddFill(1, 10, fixedpoint.FromWhole(3), true)
	if a.FingerprintHash() == c.FingerprintHash() {
		t.Error("windows with different PnL should not collide in FingerprintHash")
	}
}
