package windowpnl

import (
	"fmt"
	"hash/fnv"

	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
)

// WindowAccountingError is the typed error family for series-level
// invariant violations, mirroring the reference implementation's
// WindowAccountingError enum.
type WindowAccountingError struct {
	Kind          string
	Field         string
	Expected      string
	Computed      string
	WindowA       WindowId
	WindowB       WindowId
	WindowAEnd    coretypes.Nanos
	WindowBStart  coretypes.Nanos
	WindowId      WindowId
	MarketId      string
	WindowStartNs coretypes.Nanos
	Message       string
}

func (e *WindowAccountingError) Error() string {
	switch e.Kind {
	case "sum_mismatch":
		return fmt.Sprintf("window accounting: %s sum mismatch: expected %s, computed %s", e.Field, e.Expected, e.Computed)
	case "overlap":
		return fmt.Sprintf("window accounting: overlap between windows %d and %d", e.WindowA, e.WindowB)
	case "gap":
		return fmt.Sprintf("window accounting: gap between window end %d and next start %d", e.WindowAEnd, e.WindowBStart)
	case "window_not_found":
		return fmt.Sprintf("window accounting: window %d not found", e.WindowId)
	case "already_finalized":
		return fmt.Sprintf("window accounting: window %d already finalized", e.WindowId)
	case "missing_window":
		return fmt.Sprintf("window accounting: no active window for market %s at %d", e.MarketId, e.WindowStartNs)
	default:
		return fmt.Sprintf("window accounting: internal error: %s", e.Message)
	}
}

func errSumMismatch(field, expected, computed string) error {
	return &WindowAccountingError{Kind: "sum_mismatch", Field: field, Expected: expected, Computed: computed}
}
func errOverlap(a, b WindowId) error {
	return &WindowAccountingError{Kind: "overlap", WindowA: a, WindowB: b}
}
func errWindowNotFound(id WindowId) error {
	return &WindowAccountingError{Kind: "window_not_found", WindowId: id}
}
func errAlreadyFinalized(id WindowId) error {
	return &WindowAccountingError{Kind: "already_finalized", WindowId: id}
}
func errMissingWindow(marketId string, windowStartNs coretypes.Nanos) error {
	return &WindowAccountingError{Kind: "missing_window", MarketId: marketId, WindowStartNs: windowStartNs}
}

// WindowPnLSeries is the ordered, finalized record of windows, with
// running totals kept in sync on every append.
type WindowPnLSeries struct {
	Windows          []*WindowPnL
	TotalNetPnl      fixedpoint.Amount
	TotalGrossPnl    fixedpoint.Amount
	TotalFees        fixedpoint.Amount
	TotalSettlement  fixedpoint.Amount
	TotalTrades      uint64
	FinalizedCount   uint64
	ActiveWindows    uint64
	SeriesHash       uint64
}

func NewSeries() *WindowPnLSeries {
	return &WindowPnLSeries{
		TotalNetPnl:     fixedpoint.Zero(),
		TotalGrossPnl:   fixedpoint.Zero(),
		TotalFees:       fixedpoint.Zero(),
		TotalSettlement: fixedpoint.Zero(),
	}
}

// AddWindow appends a finalized window. window_start_ns must be strictly
// greater than the previous window's (W1) — violating this is an internal
// programming error, not recoverable input, so it panics exactly as the
// reference implementation does.
func (s *WindowPnLSeries) AddWindow(w *WindowPnL) {
	if len(s.Windows) > 0 {
		prev := s.Windows[len(s.Windows)-1]
		if w.WindowStartNs <= prev.WindowStartNs {
			panic("windowpnl: windows must be added in strictly increasing window_start_ns order")
		}
	}
	s.Windows = append(s.Windows, w)
	s.TotalGrossPnl = s.TotalGrossPnl.Add(w.GrossPnl)
	s.TotalFees = s.TotalFees.Add(w.Fees)
	s.TotalSettlement = s.TotalSettlement.Add(w.SettlementTransfer)
	s.TotalNetPnl = s.TotalNetPnl.Add(w.NetPnl)
	s.TotalTrades += w.TradesCount
	if w.IsFinalized {
		s.FinalizedCount++
	} else {
		s.ActiveWindows++
	}
	s.recomputeSeriesHash()
}

func (s *WindowPnLSeries) recomputeSeriesHash() {
	h := fnv.New64a()
	for _, w := range s.Windows {
		fmt.Fprintf(h, "%d:", w.FingerprintHash())
	}
	s.SeriesHash = h.Sum64()
}

// ValidateSumInvariant checks W2: the running totals equal the sum over
// all windows.
func (s *WindowPnLSeries) ValidateSumInvariant() error {
	gross, fees, settlement, net := fixedpoint.Zero(), fixedpoint.Zero(), fixedpoint.Zero(), fixedpoint.Zero()
	for _, w := range s.Windows {
		gross = gross.Add(w.GrossPnl)
		fees = fees.Add(w.Fees)
		settlement = settlement.Add(w.SettlementTransfer)
		net = net.Add(w.NetPnl)
	}
	if gross.Cmp(s.TotalGrossPnl) != 0 {
		return errSumMismatch("gross_pnl", s.TotalGrossPnl.String(), gross.String())
	}
	if fees.Cmp(s.TotalFees) != 0 {
		return errSumMismatch("fees", s.TotalFees.String(), fees.String())
	}
	if settlement.Cmp(s.TotalSettlement) != 0 {
		return errSumMismatch("settlement", s.TotalSettlement.String(), settlement.String())
	}
	if net.Cmp(s.TotalNetPnl) != 0 {
		return errSumMismatch("net_pnl", s.TotalNetPnl.String(), net.String())
	}
	return nil
}

// ValidateContinuity checks W3: no two windows for the same market overlap.
func (s *WindowPnLSeries) ValidateContinuity() error {
	lastEndByMarket := make(map[string]coretypes.Nanos)
	lastIdByMarket := make(map[string]WindowId)
	for _, w := range s.Windows {
		if end, ok := lastEndByMarket[w.MarketId]; ok && w.WindowStartNs < end {
			return errOverlap(lastIdByMarket[w.MarketId], w.WindowId())
		}
		lastEndByMarket[w.MarketId] = w.WindowEndNs
		lastIdByMarket[w.MarketId] = w.WindowId()
	}
	return nil
}

func (s *WindowPnLSeries) TotalNetPnlFloat64() float64 { return s.TotalNetPnl.Float64() }

// WindowAccountingEngine tracks active (in-progress) windows per market and
// finalizes them into a WindowPnLSeries.
type WindowAccountingEngine struct {
	active          map[string]map[WindowId]*WindowPnL
	finalized       *WindowPnLSeries
	productionGrade bool
	firstError      error
}

func NewEngine(productionGrade bool) *WindowAccountingEngine {
	return &WindowAccountingEngine{
		active:          make(map[string]map[WindowId]*WindowPnL),
		finalized:       NewSeries(),
		productionGrade: productionGrade,
	}
}

func (e *WindowAccountingEngine) getOrCreate(marketId string, windowStartNs coretypes.Nanos) *WindowPnL {
	if e.active[marketId] == nil {
		e.active[marketId] = make(map[WindowId]*WindowPnL)
	}
	w, ok := e.active[marketId][windowStartNs]
	if !ok {
		w = NewWindowPnL(windowStartNs, marketId)
		e.active[marketId][windowStartNs] = w
	}
	return w
}

func (e *WindowAccountingEngine) ProcessFill(entryId uint64, marketId string, windowStartNs coretypes.Nanos, volume int64, pnlDelta fixedpoint.Amount, isMaker bool) {
	e.getOrCreate(marketId, windowStartNs).AddFill(entryId, volume, pnlDelta, isMaker)
}

func (e *WindowAccountingEngine) ProcessFee(entryId uint64, marketId string, windowStartNs coretypes.Nanos, feeAmount fixedpoint.Amount) {
	e.getOrCreate(marketId, windowStartNs).AddFee(entryId, feeAmount)
}

// FinalizeWindow locates the active window for a market/window-start pair,
// validating it is known and not already finalized. Callers then call
// WindowPnL.FinalizeSettlement on the returned window and pass it to
// Commit to publish it into the finalized series.
func (e *WindowAccountingEngine) FinalizeWindow(marketId string, windowStartNs coretypes.Nanos) (*WindowPnL, error) {
	byWindow, ok := e.active[marketId]
	if !ok {
		return nil, e.latch(errMissingWindow(marketId, windowStartNs))
	}
	w, ok := byWindow[windowStartNs]
	if !ok {
		return nil, e.latch(errWindowNotFound(windowStartNs))
	}
	if w.IsFinalized {
		return nil, e.latch(errAlreadyFinalized(windowStartNs))
	}
	return w, nil
}

func (e *WindowAccountingEngine) latch(err error) error {
	if e.productionGrade {
		return err
	}
	if e.firstError == nil {
		e.firstError = err
	}
	return err
}

// FinalizeEmptyWindow produces a zero-activity finalized record for a
// window that saw no fills or fees, so the series stays continuous (W3)
// even through quiet windows.
func (e *WindowAccountingEngine) FinalizeEmptyWindow(marketId string, windowStartNs, windowEndNs coretypes.Nanos, decisionTimeNs coretypes.Nanos) *WindowPnL {
	w := NewWindowPnL(windowStartNs, marketId)
	w.WindowEndNs = windowEndNs
	w.IsFinalized = true
	w.FinalizedAtNs = decisionTimeNs
	return w
}

func (e *WindowAccountingEngine) FinalizedSeries() *WindowPnLSeries { return e.finalized }
func (e *WindowAccountingEngine) FirstError() error                 { return e.firstError }
func (e *WindowAccountingEngine) HasErrors() bool                   { return e.firstError != nil }

// Commit moves a located active window into the finalized series and
// removes it from the active set. Callers first fetch the window via
// FinalizeWindow (for validation), mutate it with WindowPnL.FinalizeSettlement,
// then call Commit to publish it.
func (e *WindowAccountingEngine) Commit(marketId string, w *WindowPnL) {
	delete(e.active[marketId], w.WindowStartNs)
	e.finalized.AddWindow(w)
}
