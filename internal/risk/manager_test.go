package risk

import (
	"testing"

	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
)

func testToken() coretypes.TokenId {
	return coretypes.TokenId{MarketId: "BTC-updown-15m-0", Outcome: coretypes.Yes}
}

func baseState() PortfolioState {
	return PortfolioState{
		CashBalance:   fixedpoint.FromWhole(1000),
		Bankroll:      fixedpoint.FromWhole(1000),
		PeakEquity:    fixedpoint.FromWhole(1000),
		CurrentEquity: fixedpoint.FromWhole(1000),
	}
}

func TestEvaluateApprovesOrdinaryOrder(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	order := ProposedOrder{TokenId: testToken(), Side: coretypes.Buy, Size: 10, Notional: fixedpoint.FromWhole(10)}

	decision := m.Evaluate(order, baseState())
	if !decision.Approved {
		t.Fatalf("got blocked with reason %v, want approved", decision.BlockReason)
	}
}

func TestEvaluateBlocksHaltedMarketFirst(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	order := ProposedOrder{TokenId: testToken(), Size: 10, MarketHalted: true}

	decision := m.Evaluate(order, baseState())
	if decision.Approved || decision.BlockReason != BlockMarketHalted {
		t.Errorf("got approved=%v reason=%v, want blocked with BlockMarketHalted", decision.Approved, decision.BlockReason)
	}
}

func TestEvaluateBlocksOnDrawdownStop(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	state := baseState()
	// 25% drawdown exceeds DefaultLimits' 20% cap.
	state.CurrentEquity = fixedpoint.FromWhole(750)

	decision := m.Evaluate(ProposedOrder{TokenId: testToken(), Size: 10}, state)
	if decision.Approved || decision.BlockReason != BlockDrawdownStop {
		t.Errorf("got approved=%v reason=%v, want blocked with BlockDrawdownStop", decision.Approved, decision.BlockReason)
	}
}

func TestEvaluateBlocksOnDailyLoss(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	state := baseState()
	state.DailyRealizedPnl = fixedpoint.FromWhole(-200) // == MaxDailyLoss

	decision := m.Evaluate(ProposedOrder{TokenId: testToken(), Size: 10}, state)
	if decision.Approved || decision.BlockReason != BlockDailyLoss {
		t.Errorf("got approved=%v reason=%v, want blocked with BlockDailyLoss", decision.Approved, decision.BlockReason)
	}
}

func TestEvaluateBlocksOnOrderSize(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	order := ProposedOrder{TokenId: testToken(), Size: DefaultLimits().MaxOrderSize + 1}

	decision := m.Evaluate(order, baseState())
	if decision.Approved || decision.BlockReason != BlockOrderSize {
		t.Errorf("got approved=%v reason=%v, want blocked with BlockOrderSize", decision.Approved, decision.BlockReason)
	}
}

func TestEvaluateBlocksOnOrderNotional(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	order := ProposedOrder{TokenId: testToken(), Size: 10, Notional: fixedpoint.FromWhole(501)}

	decision := m.Evaluate(order, baseState())
	if decision.Approved || decision.BlockReason != BlockOrderNotional {
		t.Errorf("got approved=%v reason=%v, want blocked with BlockOrderNotional", decision.Approved, decision.BlockReason)
	}
}

func TestEvaluateBlocksOnGrossExposure(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	state := baseState()
	state.GrossExposure = fixedpoint.FromWhole(2995) // near the 3x bankroll cap

	order := ProposedOrder{TokenId: testToken(), Size: 10, Notional: fixedpoint.FromWhole(10)}
	decision := m.Evaluate(order, state)
	if decision.Approved || decision.BlockReason != BlockGrossExposure {
		t.Errorf("got approved=%v reason=%v, want blocked with BlockGrossExposure", decision.Approved, decision.BlockReason)
	}
}

func TestEvaluateBlocksOnMarketPositionUsdCapTighterThanPct(t *testing.T) {
	t.Parallel()

	limits := DefaultLimits()
	limits.MaxMarketPositionUsd = fixedpoint.FromWhole(100) // tighter than 25% of a 1000 bankroll
	m := NewManager(limits)
	state := baseState()
	state.MarketPosition = fixedpoint.FromWhole(90)

	order := ProposedOrder{TokenId: testToken(), Size: 10, Notional: fixedpoint.FromWhole(20)}
	decision := m.Evaluate(order, state)
	if decision.Approved || decision.BlockReason != BlockMarketPosition {
		t.Errorf("got approved=%v reason=%v, want blocked with BlockMarketPosition", decision.Approved, decision.BlockReason)
	}
}

func TestEvaluateBlocksOnMarketPositionPctCapTighterThanUsd(t *testing.T) {
	t.Parallel()

	limits := DefaultLimits()
	limits.MaxMarketPositionUsd = fixedpoint.FromWhole(10_000) // far looser than the pct cap
	limits.MaxMarketPositionPct = 0.10                         // 10% of a 1000 equity = 100
	m := NewManager(limits)
	state := baseState()
	state.MarketPosition = fixedpoint.FromWhole(90)

	order := ProposedOrder{TokenId: testToken(), Size: 10, Notional: fixedpoint.FromWhole(20)}
	decision := m.Evaluate(order, state)
	if decision.Approved || decision.BlockReason != BlockMarketPosition {
		t.Errorf("got approved=%v reason=%v, want blocked with BlockMarketPosition", decision.Approved, decision.BlockReason)
	}
}

func TestEvaluateBlocksOnOutstandingOrders(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	state := baseState()
	state.OutstandingOrders = DefaultLimits().MaxOutstandingOrders

	decision := m.Evaluate(ProposedOrder{TokenId: testToken(), Size: 10}, state)
	if decision.Approved || decision.BlockReason != BlockOutstandingOrders {
		t.Errorf("got approved=%v reason=%v, want blocked with BlockOutstandingOrders", decision.Approved, decision.BlockReason)
	}
}

func TestEvaluateBlocksOnMinCashBalance(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	state := baseState()
	state.CashBalance = fixedpoint.FromWhole(60)

	order := ProposedOrder{TokenId: testToken(), Size: 10, Notional: fixedpoint.FromWhole(20)}
	decision := m.Evaluate(order, state)
	if decision.Approved || decision.BlockReason != BlockInsufficientCash {
		t.Errorf("got approved=%v reason=%v, want blocked with BlockInsufficientCash", decision.Approved, decision.BlockReason)
	}
}

func TestReduceToFitShrinksOrderWithinHeadroom(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	state := baseState()
	state.GrossExposure = fixedpoint.FromWhole(2990) // headroom = 3000-2990 = 10

	order := ProposedOrder{TokenId: testToken(), Size: 1000}
	reduced, ok := m.ReduceToFit(order, state, fixedpoint.FromWhole(1))
	if !ok {
		t.Fatal("ReduceToFit should find a reduction within headroom")
	}
	if reduced.Reduced.Units() >= fixedpoint.FromWhole(1000).Units() {
		t.Errorf("reduced size %s should be smaller than the original", reduced.Reduced)
	}
}

func TestReduceToFitReportsNoReductionWhenNoHeadroom(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	state := baseState()
	state.GrossExposure = fixedpoint.FromWhole(3000) // exactly at the cap, no headroom

	order := ProposedOrder{TokenId: testToken(), Size: 10}
	_, ok := m.ReduceToFit(order, state, fixedpoint.FromWhole(1))
	if ok {
		t.Error("ReduceToFit should report no reduction when headroom is zero")
	}
}
