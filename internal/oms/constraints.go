package oms

import "github.com/hourline/backtestcore/internal/coretypes"

// VenueConstraints describes the order-flow limits a venue enforces.
type VenueConstraints struct {
	MinOrderSize            int64
	MaxOrderSize            int64
	TickSize                float64
	MinPrice                coretypes.PriceTicks
	MaxPrice                coretypes.PriceTicks
	MaxOpenOrdersPerToken   int
	MaxTotalOpenOrders      int
	MaxOrdersPerSecond      int
	MaxCancelsPerSecond     int
	PostOnlyAllowed         bool
	ReduceOnlyAllowed       bool
	AllowedOrderTypes       map[OrderType]bool
	AllowedTimeInForce      map[coretypes.TimeInForce]bool
}

// DefaultConstraints is a permissive generic venue profile.
func DefaultConstraints() VenueConstraints {
	return VenueConstraints{
		MinOrderSize:          1,
		MaxOrderSize:          1_000_000,
		TickSize:              coretypes.TickSize,
		MinPrice:              coretypes.MinPriceTicks,
		MaxPrice:              coretypes.MaxPriceTicks,
		MaxOpenOrdersPerToken: 100,
		MaxTotalOpenOrders:    500,
		MaxOrdersPerSecond:    50,
		MaxCancelsPerSecond:   50,
		PostOnlyAllowed:       true,
		ReduceOnlyAllowed:     true,
		AllowedOrderTypes:     map[OrderType]bool{OrderTypeLimit: true, OrderTypeMarket: true},
		AllowedTimeInForce: map[coretypes.TimeInForce]bool{
			coretypes.Gtc: true, coretypes.Gtt: true, coretypes.Ioc: true, coretypes.Fok: true,
		},
	}
}

// PolymarketConstraints is the real venue's narrower order-type surface:
// limit orders only, no reduce-only, tighter rate limits.
func PolymarketConstraints() VenueConstraints {
	c := DefaultConstraints()
	c.MaxOpenOrdersPerToken = 20
	c.MaxTotalOpenOrders = 100
	c.MaxOrdersPerSecond = 5
	c.MaxCancelsPerSecond = 10
	c.ReduceOnlyAllowed = false
	c.AllowedOrderTypes = map[OrderType]bool{OrderTypeLimit: true}
	return c
}

type MarketStatus int8

const (
	MarketOpen MarketStatus = iota
	MarketHalted
	MarketResolving
	MarketClosed
)
