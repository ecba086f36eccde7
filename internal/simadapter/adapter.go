package simadapter

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
	"github.com/hourline/backtestcore/internal/matching"
	"github.com/hourline/backtestcore/internal/oms"
	"github.com/hourline/backtestcore/internal/portfolio"
	"github.com/rs/zerolog/log"
)

// ScheduledTimer is a one-shot callback the adapter will surface once
// CurrentTime reaches FireAt.
type ScheduledTimer struct {
	TimerId uint64
	FireAt  coretypes.Nanos
	Payload string
}

// openOrderInternal is the adapter's own lightweight view of a live order,
// separate from oms.Order since the adapter only needs enough to report
// fills back to a strategy, not the full lifecycle bookkeeping.
type openOrderInternal struct {
	orderId       coretypes.OrderId
	clientOrderId coretypes.ClientOrderId
	tokenId       coretypes.TokenId
	side          coretypes.Side
	price         coretypes.PriceTicks
	originalSize  int64
	remainingSize int64
	createdAt     coretypes.Nanos
}

// Adapter is the simulated order-sender: one matching engine, one OMS, a
// trader identity, and a timer wheel, all advanced by an externally driven
// clock (SetTime) rather than wall time, so runs stay deterministic.
type Adapter struct {
	CurrentTime coretypes.Nanos
	TraderId    coretypes.TraderId

	Matching *matching.MatchingEngine
	Oms      *oms.OrderManagementSystem
	Parity   ParityMode
	stats    ParityStats

	Portfolio *portfolio.Portfolio

	openOrders map[coretypes.OrderId]*openOrderInternal
	nextTimer  uint64
	timers     map[uint64]ScheduledTimer
}

// New builds an adapter in Full OMS parity against a Polymarket-shaped
// venue profile, the reference implementation's default.
func New(fees matching.FeeSchedule, stp matching.SelfTradePrevention, strictAccounting bool) *Adapter {
	return NewWithParity(fees, stp, strictAccounting, ParityFull, oms.PolymarketConstraints())
}

func NewWithParity(fees matching.FeeSchedule, stp matching.SelfTradePrevention, strictAccounting bool, parity ParityMode, constraints oms.VenueConstraints) *Adapter {
	a := &Adapter{
		TraderId:   coretypes.TraderId(uuid.NewString()),
		Matching:   matching.NewMatchingEngine(fees, stp),
		Oms:        oms.New(constraints),
		Parity:     parity,
		Portfolio:  portfolio.New(strictAccounting),
		openOrders: make(map[coretypes.OrderId]*openOrderInternal),
		timers:     make(map[uint64]ScheduledTimer),
	}
	a.stats = ParityStats{Mode: parity, ValidForProduction: parity.IsValidForProduction()}
	return a
}

func (a *Adapter) ParityStats() ParityStats {
	a.stats.OmsStats = &a.Oms.Stats
	return a.stats
}

func (a *Adapter) SetTime(now coretypes.Nanos) { a.CurrentTime = now }

func (a *Adapter) SetMarketStatus(tokenId coretypes.TokenId, status oms.MarketStatus) {
	a.Oms.SetMarketStatus(tokenId, status, a.CurrentTime)
}

// SendOrder creates the order through the OMS (validating under the
// configured parity mode) and submits it to the matching engine, applying
// any resulting fills to OMS and open-order bookkeeping via
// processFillOmsOnly. It does not post the fills to the Portfolio; that is
// done separately through ApplyFillEconomics.
func (a *Adapter) SendOrder(clientId coretypes.ClientOrderId, tokenId coretypes.TokenId, side coretypes.Side, tif coretypes.TimeInForce, price coretypes.PriceTicks, qty int64, postOnly, reduceOnly bool) (coretypes.OrderId, error) {
	if a.Parity == ParityBypass {
		return a.sendOrderBypass(clientId, tokenId, side, tif, price, qty, postOnly, reduceOnly)
	}

	orderId, err := a.Oms.CreateOrder(clientId, tokenId, side, oms.OrderTypeLimit, tif, price, qty, postOnly, reduceOnly, a.CurrentTime)
	if err != nil {
		a.recordRejectStat(err)
		return 0, err
	}
	if err := a.Oms.SendOrder(orderId, a.CurrentTime); err != nil {
		a.recordRejectStat(err)
		return 0, err
	}
	a.Oms.OnOrderAck(orderId, a.CurrentTime)

	a.openOrders[orderId] = &openOrderInternal{
		orderId: orderId, clientOrderId: clientId, tokenId: tokenId, side: side,
		price: price, originalSize: qty, remainingSize: qty, createdAt: a.CurrentTime,
	}

	mo := &matching.Order{
		OrderId: orderId, ClientOrderId: clientId, TokenId: tokenId, TraderId: a.TraderId,
		Side: side, PriceTicks: price, OriginalSize: qty, RemainingSize: qty,
		TimeInForce: tif, PostOnly: postOnly, ReduceOnly: reduceOnly, CreatedAt: a.CurrentTime,
	}
	result := a.Matching.Submit(mo, a.CurrentTime)

	for _, fill := range result.Fills {
		a.processFillOmsOnly(fill)
	}
	return orderId, nil
}

func (a *Adapter) sendOrderBypass(clientId coretypes.ClientOrderId, tokenId coretypes.TokenId, side coretypes.Side, tif coretypes.TimeInForce, price coretypes.PriceTicks, qty int64, postOnly, reduceOnly bool) (coretypes.OrderId, error) {
	mo := &matching.Order{
		OrderId: coretypes.OrderId(len(a.openOrders) + 1), ClientOrderId: clientId, TokenId: tokenId,
		TraderId: a.TraderId, Side: side, PriceTicks: price, OriginalSize: qty, RemainingSize: qty,
		TimeInForce: tif, PostOnly: postOnly, ReduceOnly: reduceOnly, CreatedAt: a.CurrentTime,
	}
	result := a.Matching.Submit(mo, a.CurrentTime)
	a.openOrders[mo.OrderId] = &openOrderInternal{
		orderId: mo.OrderId, clientOrderId: clientId, tokenId: tokenId, side: side,
		price: price, originalSize: qty, remainingSize: result.RemainingSize, createdAt: a.CurrentTime,
	}
	return mo.OrderId, nil
}

func (a *Adapter) recordRejectStat(err error) {
	a.stats.WouldRejectCount++
	switch err {
	case oms.ErrRateLimited:
		a.stats.RateLimitedOrders++
	case oms.ErrDuplicateClientId:
		a.stats.DuplicateClientIds++
	case oms.ErrMarketNotOpen:
		a.stats.MarketStatusRejects++
	default:
		a.stats.ValidationFailures++
	}
}

// CancelOrder requests cancellation through the OMS.
func (a *Adapter) CancelOrder(orderId coretypes.OrderId) error {
	book := a.Matching.BookFor(a.openOrders[orderId].tokenId)
	book.Cancel(orderId)
	if a.Parity == ParityBypass {
		delete(a.openOrders, orderId)
		return nil
	}
	_, err := a.Oms.RequestCancel(orderId, a.CurrentTime)
	if err != nil {
		return err
	}
	a.Oms.OnCancelAck(orderId, a.CurrentTime)
	delete(a.openOrders, orderId)
	return nil
}

// processFillOmsOnly updates OMS and open-order bookkeeping only. This is
// always safe: it never touches Portfolio directly. Callers still need to
// post the fill's economic effect through Portfolio.ApplyFill separately —
// kept as two steps so that strict-accounting mode can audit exactly where
// economic mutation happens.
func (a *Adapter) processFillOmsOnly(fill matching.Fill) {
	fillPrice := fixedpoint.FromFloat(fill.PriceTicks.Float64())
	fee := a.computeFee(fill)

	if a.Parity != ParityBypass {
		a.Oms.OnFill(fill.TakerOrderId, fill.Size, fillPrice, fee, a.CurrentTime)
		a.Oms.OnFill(fill.MakerOrderId, fill.Size, fillPrice, fixedpoint.Zero(), a.CurrentTime)
	}

	if o, ok := a.openOrders[fill.TakerOrderId]; ok {
		o.remainingSize -= fill.Size
		if o.remainingSize <= 0 {
			delete(a.openOrders, fill.TakerOrderId)
		}
	}
	if o, ok := a.openOrders[fill.MakerOrderId]; ok {
		o.remainingSize -= fill.Size
		if o.remainingSize <= 0 {
			delete(a.openOrders, fill.MakerOrderId)
		}
	}

	log.Debug().Uint64("taker", uint64(fill.TakerOrderId)).Uint64("maker", uint64(fill.MakerOrderId)).
		Int64("size", fill.Size).Msg("fill processed (oms only)")
}

func (a *Adapter) computeFee(fill matching.Fill) fixedpoint.Amount {
	notional := fixedpoint.FromFloat(fill.PriceTicks.Float64()).MulInt(fill.Size)
	return notional.MulAmount(a.Matching.TakerFeeRate())
}

// ApplyFillEconomics posts a fill's ledger entries through the Portfolio —
// the sole publication-valid path for the resulting position/cash change.
// Forbidden to call with an unposted fill under strict accounting other
// than through this method; there is no direct-mutate shortcut exposed
// here at all, unlike Portfolio's own escape hatch for exploratory mode.
func (a *Adapter) ApplyFillEconomics(tokenId coretypes.TokenId, side coretypes.Side, qty int64, price, fee fixedpoint.Amount) (fixedpoint.Amount, error) {
	return a.Portfolio.ApplyFill(tokenId, side, qty, price, fee, a.CurrentTime)
}

// ScheduleTimer registers a one-shot callback to fire at fireAt.
func (a *Adapter) ScheduleTimer(fireAt coretypes.Nanos, payload string) uint64 {
	a.nextTimer++
	id := a.nextTimer
	a.timers[id] = ScheduledTimer{TimerId: id, FireAt: fireAt, Payload: payload}
	return id
}

// CheckTimers returns and removes every timer whose FireAt has passed.
func (a *Adapter) CheckTimers() []ScheduledTimer {
	var fired []ScheduledTimer
	for id, t := range a.timers {
		if t.FireAt <= a.CurrentTime {
			fired = append(fired, t)
			delete(a.timers, id)
		}
	}
	return fired
}

func (a *Adapter) String() string {
	return fmt.Sprintf("Adapter(trader=%s, parity=%s, t=%d)", a.TraderId, a.Parity.Description(), a.CurrentTime)
}
