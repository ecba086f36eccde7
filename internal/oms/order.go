// Package oms implements the order-management state machine: venue
// constraint validation, rate limiting, and the Live/PartiallyFilled/Done
// lifecycle, including out-of-order venue message buffering. Ported from
// the backtest core's Rust reference implementation's oms module, kept in
// the teacher's Go idiom (exported state-machine methods returning bool/
// error rather than a typed Result).
package oms

import (
	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
)

type OrderState int8

const (
	StateNew OrderState = iota
	StatePendingAck
	StateLive
	StatePartiallyFilled
	StatePendingCancel
	StateDone
)

func (s OrderState) IsTerminal() bool { return s == StateDone }

func (s OrderState) IsActive() bool {
	switch s {
	case StateLive, StatePartiallyFilled, StatePendingCancel:
		return true
	default:
		return false
	}
}

func (s OrderState) CanCancel() bool {
	switch s {
	case StateLive, StatePartiallyFilled, StatePendingAck:
		return true
	default:
		return false
	}
}

type TerminalReason int8

const (
	ReasonNone TerminalReason = iota
	ReasonFilled
	ReasonCancelled
	ReasonRejected
	ReasonExpired
	ReasonCancelRejected
	ReasonMarketHalted
	ReasonMarketResolved
)

// Order mirrors venue-visible order state, independent of the matching
// engine's internal resting-order representation.
type Order struct {
	OrderId       coretypes.OrderId
	ClientOrderId coretypes.ClientOrderId
	TokenId       coretypes.TokenId
	Side          coretypes.Side
	OrderType     OrderType
	TimeInForce   coretypes.TimeInForce
	Price         coretypes.PriceTicks
	OriginalQty   int64
	FilledQty     int64
	RemainingQty  int64
	AvgFillPrice  fixedpoint.Amount
	TotalFees     fixedpoint.Amount
	State         OrderState
	RejectReason  string
	TerminalReason TerminalReason
	PostOnly      bool
	ReduceOnly    bool

	CreatedAt    coretypes.Nanos
	SentAt       coretypes.Nanos
	AckedAt      coretypes.Nanos
	LastFillAt   coretypes.Nanos
	DoneAt       coretypes.Nanos
	CancelSentAt coretypes.Nanos
	CancelReqId  uint64
}

type OrderType int8

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
)

func newOrder(id coretypes.OrderId, clientId coretypes.ClientOrderId, tokenId coretypes.TokenId, side coretypes.Side, orderType OrderType, tif coretypes.TimeInForce, price coretypes.PriceTicks, qty int64, postOnly, reduceOnly bool, now coretypes.Nanos) *Order {
	return &Order{
		OrderId:       id,
		ClientOrderId: clientId,
		TokenId:       tokenId,
		Side:          side,
		OrderType:     orderType,
		TimeInForce:   tif,
		Price:         price,
		OriginalQty:   qty,
		RemainingQty:  qty,
		AvgFillPrice:  fixedpoint.Zero(),
		TotalFees:     fixedpoint.Zero(),
		State:         StateNew,
		PostOnly:      postOnly,
		ReduceOnly:    reduceOnly,
		CreatedAt:     now,
	}
}

func (o *Order) markSent(now coretypes.Nanos) bool {
	if o.State != StateNew {
		return false
	}
	o.State = StatePendingAck
	o.SentAt = now
	return true
}

func (o *Order) ack(now coretypes.Nanos) bool {
	if o.State != StatePendingAck {
		return false
	}
	o.State = StateLive
	o.AckedAt = now
	return true
}

func (o *Order) reject(reason string, now coretypes.Nanos) bool {
	if o.State.IsTerminal() {
		return false
	}
	o.State = StateDone
	o.TerminalReason = ReasonRejected
	o.RejectReason = reason
	o.DoneAt = now
	return true
}

// applyFill folds a fill into this order's running average price and fee
// total, transitioning to PartiallyFilled or Done (Filled) as appropriate.
func (o *Order) applyFill(fillQty int64, fillPrice fixedpoint.Amount, fee fixedpoint.Amount, now coretypes.Nanos) bool {
	if o.State.IsTerminal() || fillQty <= 0 {
		return false
	}
	prevFilled := fixedpoint.FromWhole(o.FilledQty)
	newFilled := fixedpoint.FromWhole(o.FilledQty + fillQty)
	weighted := o.AvgFillPrice.MulAmount(prevFilled).Add(fillPrice.MulAmount(fixedpoint.FromWhole(fillQty)))
	if !newFilled.IsZero() {
		o.AvgFillPrice = weighted.DivAmount(newFilled)
	}
	o.FilledQty += fillQty
	o.RemainingQty -= fillQty
	o.TotalFees = o.TotalFees.Add(fee)
	o.LastFillAt = now

	if o.RemainingQty <= 0 {
		o.State = StateDone
		o.TerminalReason = ReasonFilled
		o.DoneAt = now
	} else {
		o.State = StatePartiallyFilled
	}
	return true
}

func (o *Order) requestCancel(reqId uint64, now coretypes.Nanos) bool {
	if !o.State.CanCancel() {
		return false
	}
	o.State = StatePendingCancel
	o.CancelReqId = reqId
	o.CancelSentAt = now
	return true
}

func (o *Order) cancelAck(now coretypes.Nanos) bool {
	if o.State != StatePendingCancel {
		return false
	}
	o.State = StateDone
	o.TerminalReason = ReasonCancelled
	o.DoneAt = now
	return true
}

// cancelReject reverts a cancel attempt, returning the order to whichever
// active state it would have been in had the cancel never been requested.
func (o *Order) cancelReject(now coretypes.Nanos) bool {
	if o.State != StatePendingCancel {
		return false
	}
	if o.FilledQty > 0 {
		o.State = StatePartiallyFilled
	} else {
		o.State = StateLive
	}
	return true
}

func (o *Order) forceTerminal(reason TerminalReason, now coretypes.Nanos) {
	if o.State.IsTerminal() {
		return
	}
	o.State = StateDone
	o.TerminalReason = reason
	o.DoneAt = now
}
