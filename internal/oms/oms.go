package oms

import (
	"errors"
	"fmt"

	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
	"github.com/rs/zerolog/log"
)

var (
	ErrMarketNotOpen        = errors.New("oms: market is not open")
	ErrSizeOutOfBounds      = errors.New("oms: order size outside venue bounds")
	ErrPriceOutOfBounds     = errors.New("oms: order price outside venue bounds")
	ErrOrderTypeNotAllowed  = errors.New("oms: order type not allowed by venue")
	ErrTifNotAllowed        = errors.New("oms: time-in-force not allowed by venue")
	ErrPostOnlyNotAllowed   = errors.New("oms: post-only not allowed by venue")
	ErrReduceOnlyNotAllowed = errors.New("oms: reduce-only not allowed by venue")
	ErrTooManyOpenPerToken  = errors.New("oms: too many open orders for token")
	ErrTooManyOpenTotal     = errors.New("oms: too many open orders total")
	ErrDuplicateClientId    = errors.New("oms: duplicate client order id")
	ErrRateLimited          = errors.New("oms: rate limited")
	ErrOrderNotFound        = errors.New("oms: order not found")
	ErrCannotCancel         = errors.New("oms: order cannot be cancelled in its current state")
)

type pendingKind int8

const (
	pendingFill pendingKind = iota
	pendingCancelAck
)

type pendingMessage struct {
	kind      pendingKind
	fillQty   int64
	fillPrice fixedpoint.Amount
	fee       fixedpoint.Amount
	at        coretypes.Nanos
}

// Stats mirrors the venue-message counters the backtest core's reference
// implementation tracks for post-run reporting.
type Stats struct {
	OrdersCreated         int64
	OrdersSent            int64
	OrdersAcked           int64
	OrdersRejected        int64
	OrdersFilled          int64
	OrdersPartiallyFilled int64
	OrdersCancelled       int64
	CancelsRejected       int64
	RateLimitedOrders     int64
	RateLimitedCancels    int64
	ValidationFailures    int64
	OutOfOrderMessages    int64
	TotalVolume           int64
	TotalFees             fixedpoint.Amount
}

// OrderManagementSystem is the venue-facing order lifecycle state machine.
type OrderManagementSystem struct {
	constraints VenueConstraints

	orders         map[coretypes.OrderId]*Order
	clientToOrder  map[coretypes.ClientOrderId]coretypes.OrderId
	openByToken    map[coretypes.TokenId]map[coretypes.OrderId]bool
	marketStatus   map[coretypes.TokenId]MarketStatus
	pendingByOrder map[coretypes.OrderId][]pendingMessage

	orderLimiter  *RateLimiter
	cancelLimiter *RateLimiter

	nextOrderId  coretypes.OrderId
	nextCancelId uint64

	Stats Stats
}

func New(constraints VenueConstraints) *OrderManagementSystem {
	return &OrderManagementSystem{
		constraints:    constraints,
		orders:         make(map[coretypes.OrderId]*Order),
		clientToOrder:  make(map[coretypes.ClientOrderId]coretypes.OrderId),
		openByToken:    make(map[coretypes.TokenId]map[coretypes.OrderId]bool),
		marketStatus:   make(map[coretypes.TokenId]MarketStatus),
		pendingByOrder: make(map[coretypes.OrderId][]pendingMessage),
		orderLimiter:   NewRateLimiter(constraints.MaxOrdersPerSecond),
		cancelLimiter:  NewRateLimiter(constraints.MaxCancelsPerSecond),
		Stats:          Stats{TotalFees: fixedpoint.Zero()},
	}
}

func (s *OrderManagementSystem) validate(tokenId coretypes.TokenId, orderType OrderType, tif coretypes.TimeInForce, price coretypes.PriceTicks, qty int64, postOnly, reduceOnly bool) error {
	if status, ok := s.marketStatus[tokenId]; ok && status != MarketOpen {
		return ErrMarketNotOpen
	}
	if qty < s.constraints.MinOrderSize || qty > s.constraints.MaxOrderSize {
		return ErrSizeOutOfBounds
	}
	if price < s.constraints.MinPrice || price > s.constraints.MaxPrice {
		return ErrPriceOutOfBounds
	}
	if !s.constraints.AllowedOrderTypes[orderType] {
		return ErrOrderTypeNotAllowed
	}
	if !s.constraints.AllowedTimeInForce[tif] {
		return ErrTifNotAllowed
	}
	if postOnly && !s.constraints.PostOnlyAllowed {
		return ErrPostOnlyNotAllowed
	}
	if reduceOnly && !s.constraints.ReduceOnlyAllowed {
		return ErrReduceOnlyNotAllowed
	}
	if len(s.openByToken[tokenId]) >= s.constraints.MaxOpenOrdersPerToken {
		return ErrTooManyOpenPerToken
	}
	total := 0
	for _, set := range s.openByToken {
		total += len(set)
	}
	if total >= s.constraints.MaxTotalOpenOrders {
		return ErrTooManyOpenTotal
	}
	return nil
}

// CreateOrder validates and registers a new order, returning its assigned
// OrderId. The order starts in StateNew; SendOrder transitions it onward.
func (s *OrderManagementSystem) CreateOrder(clientId coretypes.ClientOrderId, tokenId coretypes.TokenId, side coretypes.Side, orderType OrderType, tif coretypes.TimeInForce, price coretypes.PriceTicks, qty int64, postOnly, reduceOnly bool, now coretypes.Nanos) (coretypes.OrderId, error) {
	if _, exists := s.clientToOrder[clientId]; exists {
		s.Stats.ValidationFailures++
		return 0, ErrDuplicateClientId
	}
	if err := s.validate(tokenId, orderType, tif, price, qty, postOnly, reduceOnly); err != nil {
		s.Stats.ValidationFailures++
		return 0, err
	}

	s.nextOrderId++
	id := s.nextOrderId
	o := newOrder(id, clientId, tokenId, side, orderType, tif, price, qty, postOnly, reduceOnly, now)
	s.orders[id] = o
	s.clientToOrder[clientId] = id
	s.Stats.OrdersCreated++
	return id, nil
}

// SendOrder rate-limits and marks an order sent to the venue.
func (s *OrderManagementSystem) SendOrder(orderId coretypes.OrderId, now coretypes.Nanos) error {
	o, ok := s.orders[orderId]
	if !ok {
		return ErrOrderNotFound
	}
	if !s.orderLimiter.TryAcquire(now) {
		s.Stats.RateLimitedOrders++
		return ErrRateLimited
	}
	if !o.markSent(now) {
		return fmt.Errorf("oms: order %d not in sendable state", orderId)
	}
	s.Stats.OrdersSent++
	if s.openByToken[o.TokenId] == nil {
		s.openByToken[o.TokenId] = make(map[coretypes.OrderId]bool)
	}
	s.openByToken[o.TokenId][orderId] = true
	return nil
}

func (s *OrderManagementSystem) OnOrderAck(orderId coretypes.OrderId, now coretypes.Nanos) bool {
	o, ok := s.orders[orderId]
	if !ok || !o.ack(now) {
		return false
	}
	s.Stats.OrdersAcked++
	s.drainPending(orderId, now)
	return true
}

func (s *OrderManagementSystem) OnOrderReject(orderId coretypes.OrderId, reason string, now coretypes.Nanos) bool {
	o, ok := s.orders[orderId]
	if !ok || !o.reject(reason, now) {
		return false
	}
	s.Stats.OrdersRejected++
	s.removeFromOpen(o)
	return true
}

// OnFill applies a fill, buffering it if the order is unknown or still in
// PendingAck — out-of-order venue delivery is expected, not an error.
func (s *OrderManagementSystem) OnFill(orderId coretypes.OrderId, fillQty int64, fillPrice, fee fixedpoint.Amount, now coretypes.Nanos) bool {
	o, ok := s.orders[orderId]
	if !ok || o.State == StatePendingAck {
		s.Stats.OutOfOrderMessages++
		s.pendingByOrder[orderId] = append(s.pendingByOrder[orderId], pendingMessage{
			kind: pendingFill, fillQty: fillQty, fillPrice: fillPrice, fee: fee, at: now,
		})
		return ok
	}
	return s.applyFillNow(o, fillQty, fillPrice, fee, now)
}

func (s *OrderManagementSystem) applyFillNow(o *Order, fillQty int64, fillPrice, fee fixedpoint.Amount, now coretypes.Nanos) bool {
	if !o.applyFill(fillQty, fillPrice, fee, now) {
		return false
	}
	s.Stats.TotalVolume += fillQty
	s.Stats.TotalFees = s.Stats.TotalFees.Add(fee)
	if o.State == StateDone {
		s.Stats.OrdersFilled++
		s.removeFromOpen(o)
	} else {
		s.Stats.OrdersPartiallyFilled++
	}
	return true
}

func (s *OrderManagementSystem) RequestCancel(orderId coretypes.OrderId, now coretypes.Nanos) (uint64, error) {
	o, ok := s.orders[orderId]
	if !ok {
		return 0, ErrOrderNotFound
	}
	if !s.cancelLimiter.TryAcquire(now) {
		s.Stats.RateLimitedCancels++
		return 0, ErrRateLimited
	}
	s.nextCancelId++
	reqId := s.nextCancelId
	if !o.requestCancel(reqId, now) {
		return 0, ErrCannotCancel
	}
	return reqId, nil
}

func (s *OrderManagementSystem) OnCancelAck(orderId coretypes.OrderId, now coretypes.Nanos) bool {
	o, ok := s.orders[orderId]
	if !ok || o.State == StatePendingAck {
		s.pendingByOrder[orderId] = append(s.pendingByOrder[orderId], pendingMessage{kind: pendingCancelAck, at: now})
		s.Stats.OutOfOrderMessages++
		return ok
	}
	if !o.cancelAck(now) {
		return false
	}
	s.Stats.OrdersCancelled++
	s.removeFromOpen(o)
	return true
}

func (s *OrderManagementSystem) OnCancelReject(orderId coretypes.OrderId, now coretypes.Nanos) bool {
	o, ok := s.orders[orderId]
	if !ok || !o.cancelReject(now) {
		return false
	}
	s.Stats.CancelsRejected++
	return true
}

func (s *OrderManagementSystem) drainPending(orderId coretypes.OrderId, now coretypes.Nanos) {
	msgs := s.pendingByOrder[orderId]
	if len(msgs) == 0 {
		return
	}
	delete(s.pendingByOrder, orderId)
	o := s.orders[orderId]
	for _, msg := range msgs {
		switch msg.kind {
		case pendingFill:
			s.applyFillNow(o, msg.fillQty, msg.fillPrice, msg.fee, msg.at)
		case pendingCancelAck:
			if o.cancelAck(msg.at) {
				s.Stats.OrdersCancelled++
				s.removeFromOpen(o)
			}
		}
	}
}

func (s *OrderManagementSystem) removeFromOpen(o *Order) {
	if set, ok := s.openByToken[o.TokenId]; ok {
		delete(set, o.OrderId)
	}
}

// SetMarketStatus transitions a market's status, force-terminating any
// active orders on the affected token with the matching terminal reason.
func (s *OrderManagementSystem) SetMarketStatus(tokenId coretypes.TokenId, status MarketStatus, now coretypes.Nanos) {
	s.marketStatus[tokenId] = status
	if status == MarketOpen {
		return
	}
	var reason TerminalReason
	switch status {
	case MarketHalted:
		reason = ReasonMarketHalted
	case MarketResolving, MarketClosed:
		reason = ReasonMarketResolved
	}
	for orderId := range s.openByToken[tokenId] {
		o := s.orders[orderId]
		if o.State.IsActive() || o.State == StateNew || o.State == StatePendingAck {
			o.forceTerminal(reason, now)
			log.Warn().Uint64("order_id", uint64(orderId)).Str("token", tokenId.String()).Msg("order force-terminated on market status change")
		}
	}
	delete(s.openByToken, tokenId)
}

func (s *OrderManagementSystem) GetMarketStatus(tokenId coretypes.TokenId) MarketStatus {
	return s.marketStatus[tokenId]
}

func (s *OrderManagementSystem) GetOrder(orderId coretypes.OrderId) (*Order, bool) {
	o, ok := s.orders[orderId]
	return o, ok
}

func (s *OrderManagementSystem) GetOrderByClientId(clientId coretypes.ClientOrderId) (*Order, bool) {
	id, ok := s.clientToOrder[clientId]
	if !ok {
		return nil, false
	}
	return s.GetOrder(id)
}

func (s *OrderManagementSystem) OpenOrderCount() int {
	n := 0
	for _, set := range s.openByToken {
		n += len(set)
	}
	return n
}

func (s *OrderManagementSystem) OpenOrderCountForToken(tokenId coretypes.TokenId) int {
	return len(s.openByToken[tokenId])
}

// CancelAll requests cancellation of every open order on a token, returning
// the ids that were accepted for cancellation.
func (s *OrderManagementSystem) CancelAll(tokenId coretypes.TokenId, now coretypes.Nanos) []coretypes.OrderId {
	var cancelled []coretypes.OrderId
	for orderId := range s.openByToken[tokenId] {
		if _, err := s.RequestCancel(orderId, now); err == nil {
			cancelled = append(cancelled, orderId)
		}
	}
	return cancelled
}
