// Package matching implements the limit order book and matching engine for
// binary outcome tokens: FIFO price-time priority and self-trade
// prevention, following a two-phase plan/apply structure so that
// match decisions are always computed against a stable, unmutated view of
// the book before anything is written back. The engine holds the maker/taker
// fee schedule and exposes its rates, but a Fill carries no fee amount: fees
// are computed by the caller from the fill's price and size.
package matching

import (
	"github.com/hourline/backtestcore/internal/coretypes"
)

// Order is a single resting or incoming order against a token's book.
type Order struct {
	OrderId       coretypes.OrderId
	ClientOrderId coretypes.ClientOrderId
	TokenId       coretypes.TokenId
	TraderId      coretypes.TraderId
	Side          coretypes.Side
	PriceTicks    coretypes.PriceTicks
	OriginalSize  int64
	RemainingSize int64
	TimeInForce   coretypes.TimeInForce
	GoodTilNs     coretypes.Nanos
	PostOnly      bool
	ReduceOnly    bool
	CreatedAt     coretypes.Nanos
}

func (o *Order) isExpired(now coretypes.Nanos) bool {
	return o.TimeInForce == coretypes.Gtt && now >= o.GoodTilNs
}

// SelfTradePrevention selects how the engine resolves an incoming order
// that would match against a resting order from the same trader.
type SelfTradePrevention int8

const (
	STPCancelNewest SelfTradePrevention = iota
	STPCancelOldest
	STPCancelBoth
	STPDecrementAndCancel
)

// Fill is one match between a taker order and a resting maker order.
type Fill struct {
	TakerOrderId coretypes.OrderId
	MakerOrderId coretypes.OrderId
	TokenId      coretypes.TokenId
	PriceTicks   coretypes.PriceTicks
	Size         int64
	TakerTraderId coretypes.TraderId
	MakerTraderId coretypes.TraderId
}

// RejectReason explains why an order was not accepted onto the book.
type RejectReason int8

const (
	RejectNone RejectReason = iota
	RejectPostOnlyWouldCross
	RejectFokNotFullyFillable
	RejectWouldSelfTrade
)
