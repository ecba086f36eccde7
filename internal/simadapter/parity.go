// Package simadapter drives the matching engine and OMS together as a
// single simulated venue connection: it owns the clock, the book, OMS
// order flow, and a timer wheel for scheduled callbacks (settlement,
// periodic re-quoting). Ported from the backtest core reference
// implementation's sim_adapter module.
package simadapter

import (
	"github.com/hourline/backtestcore/internal/oms"
)

// ParityMode controls how closely the simulated venue connection enforces
// real OMS constraints. Only Full is valid for a published run.
type ParityMode int8

const (
	ParityFull ParityMode = iota
	ParityRelaxed
	ParityBypass
)

func (p ParityMode) IsValidForProduction() bool { return p == ParityFull }

func (p ParityMode) Description() string {
	switch p {
	case ParityFull:
		return "full OMS validation and rate limiting, as a real venue would apply"
	case ParityRelaxed:
		return "OMS validation and rate limiting as in full mode, but not valid for production"
	case ParityBypass:
		return "no OMS validation; orders are accepted unconditionally"
	default:
		return "unknown"
	}
}

// ParityStats counts the orders the OMS rejected, by reason. Full and
// Relaxed both enforce those rejections (the order is not sent); Bypass
// sends nothing through the OMS and so records no rejections.
type ParityStats struct {
	Mode                ParityMode
	ValidForProduction  bool
	WouldRejectCount    int64
	RateLimitedOrders   int64
	RateLimitedCancels  int64
	ValidationFailures  int64
	DuplicateClientIds  int64
	MarketStatusRejects int64
	OmsStats            *oms.Stats
}
