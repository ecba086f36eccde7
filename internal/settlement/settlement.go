// Package settlement computes 15-minute Up/Down window boundaries and
// resolves a window's winning outcome against a start/end price pair.
// Ported from the free functions in the backtest core reference
// implementation's window_pnl module.
package settlement

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hourline/backtestcore/internal/coretypes"
)

// AlignToWindowStart floors a timestamp to its enclosing 15-minute window.
func AlignToWindowStart(ts coretypes.Nanos) coretypes.Nanos {
	return coretypes.WindowStart(ts)
}

// MarketSlug builds the canonical "<asset>-updown-15m-<unix_seconds>" slug
// for a window.
func MarketSlug(asset string, windowStartNs coretypes.Nanos) string {
	secs := int64(windowStartNs / coretypes.NanosPerSecond)
	return fmt.Sprintf("%s-updown-15m-%d", strings.ToLower(asset), secs)
}

// ParseWindowStartFromSlug extracts the window start (in nanoseconds) from
// a market slug, returning ok=false if the slug doesn't match the
// "<asset>-updown-15m-<secs>[-...]" shape.
func ParseWindowStartFromSlug(slug string) (coretypes.Nanos, bool) {
	parts := strings.Split(slug, "-")
	if len(parts) < 4 {
		return 0, false
	}
	if parts[1] != "updown" || parts[2] != "15m" {
		return 0, false
	}
	secsPart := strings.SplitN(parts[3], "-", 2)[0]
	secs, err := strconv.ParseInt(secsPart, 10, 64)
	if err != nil {
		return 0, false
	}
	return coretypes.Nanos(secs) * coretypes.NanosPerSecond, true
}

// ResolutionKind is the three-way outcome a settlement Event can carry, per
// spec §3's SettlementEvent.outcome: a window either resolved against a
// winner, is still waiting on the oracle, or was voided outright (the
// oracle never produced a usable boundary price). The zero value is
// Unresolved, which is also the correct state for an Event that hasn't
// been decided yet.
type ResolutionKind int8

const (
	ResolutionUnresolved ResolutionKind = iota
	ResolutionResolved
	ResolutionVoid
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolutionResolved:
		return "Resolved"
	case ResolutionVoid:
		return "Void"
	default:
		return "Unresolved"
	}
}

// Event is the canonical outcome decision for one window. Outcome and
// IsTie are only meaningful when Resolution == ResolutionResolved; an
// Unresolved or Void event carries Reason instead.
type Event struct {
	MarketId      string
	WindowStartNs coretypes.Nanos
	WindowEndNs   coretypes.Nanos
	StartPrice    float64
	EndPrice      float64
	Resolution    ResolutionKind
	Outcome       coretypes.Outcome
	IsTie         bool
	Reason        string
	DecisionAtNs  coretypes.Nanos
}

// Resolve decides Up/Down for a window given its boundary oracle prices.
// A tie (end == start) resolves Up by default, matching the reference
// implementation's ">=" comparison; set tieGoesToDown to flip that for
// callers that want the opposite convention.
func Resolve(marketId string, windowStartNs, windowEndNs coretypes.Nanos, startPrice, endPrice float64, tieGoesToDown bool, decisionAt coretypes.Nanos) Event {
	isTie := endPrice == startPrice
	outcome := coretypes.No
	if endPrice >= startPrice {
		outcome = coretypes.Yes
	}
	if isTie && tieGoesToDown {
		outcome = coretypes.No
	}
	return Event{
		MarketId:      marketId,
		WindowStartNs: windowStartNs,
		WindowEndNs:   windowEndNs,
		StartPrice:    startPrice,
		EndPrice:      endPrice,
		Resolution:    ResolutionResolved,
		Outcome:       outcome,
		IsTie:         isTie,
		DecisionAtNs:  decisionAt,
	}
}

// Unresolve produces an Unresolved Event for a window whose oracle boundary
// price is not yet available (stale or not arrived). The driver is
// expected to retry settlement for this window rather than treat it as
// terminal — see §7's external-collaborator-error handling.
func Unresolve(marketId string, windowStartNs, windowEndNs coretypes.Nanos, reason string, decisionAt coretypes.Nanos) Event {
	return Event{
		MarketId:      marketId,
		WindowStartNs: windowStartNs,
		WindowEndNs:   windowEndNs,
		Resolution:    ResolutionUnresolved,
		Reason:        reason,
		DecisionAtNs:  decisionAt,
	}
}

// Void produces a Void Event for a window the host has decided can never
// be resolved (e.g. the market was cancelled upstream). Unlike Unresolve,
// this is terminal: the window finalizes with no winner and no settlement
// transfer.
func Void(marketId string, windowStartNs, windowEndNs coretypes.Nanos, reason string, decisionAt coretypes.Nanos) Event {
	return Event{
		MarketId:      marketId,
		WindowStartNs: windowStartNs,
		WindowEndNs:   windowEndNs,
		Resolution:    ResolutionVoid,
		Reason:        reason,
		DecisionAtNs:  decisionAt,
	}
}
