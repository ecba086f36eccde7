package matching

import (
	"sort"

	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
	"github.com/rs/zerolog/log"
)

// FeeSchedule gives the maker/taker fee rates applied to matched notional.
type FeeSchedule struct {
	MakerRate fixedpoint.Amount // e.g. 0 for no maker fee
	TakerRate fixedpoint.Amount // e.g. 0.02 = 2%
}

// MatchResult is the outcome of submitting an order: any fills produced,
// the order's final resting/rejected state, and any orders cancelled as a
// side effect of self-trade prevention.
type MatchResult struct {
	Fills          []Fill
	Rested         bool
	RemainingSize  int64
	Reject         RejectReason
	CancelledOrder []coretypes.OrderId
}

// matchStep is one planned match against a single resting order, computed
// during the pure "plan" phase before anything on the book is mutated.
type matchStep struct {
	maker    *Order
	price    coretypes.PriceTicks
	size     int64
	stpEvent bool // true if this step is a self-trade-prevention cancel, not a fill
}

// MatchingEngine owns one Book per token and applies the plan/apply
// protocol for every incoming order.
type MatchingEngine struct {
	books map[coretypes.TokenId]*Book
	fees  FeeSchedule
	stp   SelfTradePrevention
}

func NewMatchingEngine(fees FeeSchedule, stp SelfTradePrevention) *MatchingEngine {
	return &MatchingEngine{
		books: make(map[coretypes.TokenId]*Book),
		fees:  fees,
		stp:   stp,
	}
}

func (m *MatchingEngine) TakerFeeRate() fixedpoint.Amount { return m.fees.TakerRate }
func (m *MatchingEngine) MakerFeeRate() fixedpoint.Amount { return m.fees.MakerRate }

func (m *MatchingEngine) BookFor(tokenId coretypes.TokenId) *Book {
	b, ok := m.books[tokenId]
	if !ok {
		b = NewBook(tokenId)
		m.books[tokenId] = b
	}
	return b
}

// Submit runs the full plan-then-apply cycle for an incoming order.
func (m *MatchingEngine) Submit(o *Order, now coretypes.Nanos) MatchResult {
	book := m.BookFor(o.TokenId)

	steps, reject := m.plan(book, o, now)
	if reject != RejectNone {
		return MatchResult{Reject: reject}
	}

	return m.apply(book, o, steps, now)
}

// plan computes, without mutating the book, the sequence of matches an
// incoming order would produce against the opposite side, honoring price
// priority then FIFO time priority within a level, and applying self-trade
// prevention and post-only/FOK admission rules. It never writes to book.
func (m *MatchingEngine) plan(book *Book, o *Order, now coretypes.Nanos) ([]matchStep, RejectReason) {
	opposite := o.Side.Opposite()
	var steps []matchStep
	remaining := o.RemainingSize

	priceIsMatch := func(restingPrice coretypes.PriceTicks) bool {
		if o.Side == coretypes.Buy {
			return o.PriceTicks >= restingPrice
		}
		return o.PriceTicks <= restingPrice
	}

	// Collect every matchable contra-side level up front, in improving
	// order (ascending asks for a buy, descending bids for a sell). The
	// book itself is never mutated during planning, so this snapshot stays
	// valid for the whole pass and lets the walk cross multiple levels.
	levels := book.sideMap(opposite)
	prices := make([]coretypes.PriceTicks, 0, len(levels))
	for p := range levels {
		if priceIsMatch(p) {
			prices = append(prices, p)
		}
	}
	sort.Slice(prices, func(i, j int) bool {
		if opposite == coretypes.Buy {
			return prices[i] > prices[j]
		}
		return prices[i] < prices[j]
	})

	if o.PostOnly {
		if len(prices) > 0 {
			return nil, RejectPostOnlyWouldCross
		}
		return nil, RejectNone
	}

	for _, price := range prices {
		if remaining == 0 {
			break
		}
		lvl := levels[price]
		for _, maker := range lvl.orders {
			if remaining == 0 {
				break
			}
			if maker.isExpired(now) {
				continue
			}
			if maker.TraderId == o.TraderId {
				steps = append(steps, matchStep{maker: maker, stpEvent: true})
				continue
			}
			size := min64(remaining, maker.RemainingSize)
			steps = append(steps, matchStep{maker: maker, price: price, size: size})
			remaining -= size
		}
	}

	filled := o.RemainingSize - remaining
	if o.TimeInForce == coretypes.Fok && filled < o.RemainingSize {
		return nil, RejectFokNotFullyFillable
	}
	return steps, RejectNone
}

// apply mutates the book and ledger-adjacent order state according to a
// previously computed plan. This is the only phase allowed to write.
func (m *MatchingEngine) apply(book *Book, o *Order, steps []matchStep, now coretypes.Nanos) MatchResult {
	result := MatchResult{}
	remaining := o.RemainingSize

	for _, step := range steps {
		if step.stpEvent {
			// resolveSelfTrade reads and may mutate o.RemainingSize
			// directly (cancel or decrement), so it is first brought up to
			// date with the fills applied so far, and remaining then picks
			// up its result before the assignment below.
			o.RemainingSize = remaining
			m.resolveSelfTrade(book, o, step.maker, &result)
			remaining = o.RemainingSize
			continue
		}
		if remaining == 0 {
			continue
		}
		size := min64(remaining, step.maker.RemainingSize)
		if size <= 0 {
			continue
		}
		step.maker.RemainingSize -= size
		remaining -= size

		result.Fills = append(result.Fills, Fill{
			TakerOrderId:  o.OrderId,
			MakerOrderId:  step.maker.OrderId,
			TokenId:       o.TokenId,
			PriceTicks:    step.price,
			Size:          size,
			TakerTraderId: o.TraderId,
			MakerTraderId: step.maker.TraderId,
		})

		if step.maker.RemainingSize == 0 {
			book.Cancel(step.maker.OrderId)
		} else {
			// level's cached total must track the reduction even though
			// the order stays resting.
			loc := book.orderSide[step.maker.OrderId]
			book.sideMap(loc.side)[loc.price].totalSize -= size
		}
	}

	o.RemainingSize = remaining
	result.RemainingSize = remaining

	restable := remaining > 0 && o.TimeInForce != coretypes.Ioc && o.TimeInForce != coretypes.Fok
	if restable {
		book.insert(o)
		result.Rested = true
	}

	if book.Crossed() {
		log.Error().Str("token", o.TokenId.String()).Msg("book crossed after apply, invariant violated")
	}

	return result
}

// resolveSelfTrade applies the configured STP mode when an incoming order
// would otherwise match against a resting order from the same trader.
func (m *MatchingEngine) resolveSelfTrade(book *Book, taker *Order, maker *Order, result *MatchResult) {
	switch m.stp {
	case STPCancelNewest:
		if taker.CreatedAt >= maker.CreatedAt {
			taker.RemainingSize = 0
			result.CancelledOrder = append(result.CancelledOrder, taker.OrderId)
		} else {
			book.Cancel(maker.OrderId)
			result.CancelledOrder = append(result.CancelledOrder, maker.OrderId)
		}
	case STPCancelOldest:
		if taker.CreatedAt <= maker.CreatedAt {
			taker.RemainingSize = 0
			result.CancelledOrder = append(result.CancelledOrder, taker.OrderId)
		} else {
			book.Cancel(maker.OrderId)
			result.CancelledOrder = append(result.CancelledOrder, maker.OrderId)
		}
	case STPCancelBoth:
		book.Cancel(maker.OrderId)
		result.CancelledOrder = append(result.CancelledOrder, maker.OrderId, taker.OrderId)
		taker.RemainingSize = 0
	case STPDecrementAndCancel:
		dec := min64(taker.RemainingSize, maker.RemainingSize)
		taker.RemainingSize -= dec
		maker.RemainingSize -= dec
		if maker.RemainingSize == 0 {
			book.Cancel(maker.OrderId)
			result.CancelledOrder = append(result.CancelledOrder, maker.OrderId)
		}
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
