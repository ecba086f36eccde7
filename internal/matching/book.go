package matching

import (
	"sort"

	"github.com/hourline/backtestcore/internal/coretypes"
)

// bookLevel is a FIFO queue of resting orders at one price, with a cached
// total so depth queries don't need to walk the queue.
type bookLevel struct {
	price     coretypes.PriceTicks
	orders    []*Order
	totalSize int64
}

func newBookLevel(price coretypes.PriceTicks) *bookLevel {
	return &bookLevel{price: price}
}

func (l *bookLevel) push(o *Order) {
	l.orders = append(l.orders, o)
	l.totalSize += o.RemainingSize
}

// removeAt removes the order at index i, preserving FIFO order of the rest.
func (l *bookLevel) removeAt(i int) {
	l.totalSize -= l.orders[i].RemainingSize
	l.orders = append(l.orders[:i], l.orders[i+1:]...)
}

func (l *bookLevel) empty() bool { return len(l.orders) == 0 }

// Book holds the two-sided resting order state for a single token. Bids and
// asks are kept as maps keyed by price, with no separate sorted index:
// BestBid and BestAsk sort the active price levels on every call, so they
// cost O(n log n) in the number of levels rather than O(1).
type Book struct {
	TokenId   coretypes.TokenId
	bids      map[coretypes.PriceTicks]*bookLevel
	asks      map[coretypes.PriceTicks]*bookLevel
	orderSide map[coretypes.OrderId]locator
}

type locator struct {
	side  coretypes.Side
	price coretypes.PriceTicks
}

func NewBook(tokenId coretypes.TokenId) *Book {
	return &Book{
		TokenId:   tokenId,
		bids:      make(map[coretypes.PriceTicks]*bookLevel),
		asks:      make(map[coretypes.PriceTicks]*bookLevel),
		orderSide: make(map[coretypes.OrderId]locator),
	}
}

func (b *Book) sideMap(side coretypes.Side) map[coretypes.PriceTicks]*bookLevel {
	if side == coretypes.Buy {
		return b.bids
	}
	return b.asks
}

// BestBid/BestAsk return the top of book and whether that side is non-empty.
func (b *Book) BestBid() (coretypes.PriceTicks, bool) {
	return b.bestOf(b.bids, true)
}

func (b *Book) BestAsk() (coretypes.PriceTicks, bool) {
	return b.bestOf(b.asks, false)
}

func (b *Book) bestOf(levels map[coretypes.PriceTicks]*bookLevel, highest bool) (coretypes.PriceTicks, bool) {
	if len(levels) == 0 {
		return 0, false
	}
	prices := make([]coretypes.PriceTicks, 0, len(levels))
	for p := range levels {
		prices = append(prices, p)
	}
	sort.Slice(prices, func(i, j int) bool {
		if highest {
			return prices[i] > prices[j]
		}
		return prices[i] < prices[j]
	})
	return prices[0], true
}

// Crossed reports whether the book violates I3 (best bid must be strictly
// below best ask whenever both sides are non-empty).
func (b *Book) Crossed() bool {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return false
	}
	return bid >= ask
}

func (b *Book) insert(o *Order) {
	levels := b.sideMap(o.Side)
	lvl, ok := levels[o.PriceTicks]
	if !ok {
		lvl = newBookLevel(o.PriceTicks)
		levels[o.PriceTicks] = lvl
	}
	lvl.push(o)
	b.orderSide[o.OrderId] = locator{side: o.Side, price: o.PriceTicks}
}

// removeEmptyLevel enforces I2: a level with no remaining orders is dropped
// eagerly rather than left behind as a zero-size husk.
func (b *Book) removeEmptyLevel(side coretypes.Side, price coretypes.PriceTicks) {
	levels := b.sideMap(side)
	if lvl, ok := levels[price]; ok && lvl.empty() {
		delete(levels, price)
	}
}

// Cancel removes a resting order by id, returning false if it isn't found
// (already filled, already cancelled, or never existed).
func (b *Book) Cancel(orderId coretypes.OrderId) bool {
	loc, ok := b.orderSide[orderId]
	if !ok {
		return false
	}
	levels := b.sideMap(loc.side)
	lvl := levels[loc.price]
	for i, o := range lvl.orders {
		if o.OrderId == orderId {
			lvl.removeAt(i)
			break
		}
	}
	delete(b.orderSide, orderId)
	b.removeEmptyLevel(loc.side, loc.price)
	return true
}

// Get returns the resting order for an id, if it's still on the book (I1).
func (b *Book) Get(orderId coretypes.OrderId) (*Order, bool) {
	loc, ok := b.orderSide[orderId]
	if !ok {
		return nil, false
	}
	levels := b.sideMap(loc.side)
	for _, o := range levels[loc.price].orders {
		if o.OrderId == orderId {
			return o, true
		}
	}
	return nil, false
}

func (b *Book) DepthAt(side coretypes.Side, price coretypes.PriceTicks) int64 {
	lvl, ok := b.sideMap(side)[price]
	if !ok {
		return 0
	}
	return lvl.totalSize
}
