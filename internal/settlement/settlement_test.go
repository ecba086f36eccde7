package settlement

import (
	"testing"

	"github.com/hourline/backtestcore/internal/coretypes"
)

func TestAlignToWindowStart(t *testing.T) {
	t.Parallel()

	ts := coretypes.Nanos(901) * coretypes.NanosPerSecond // 15:01 into the window
	got := AlignToWindowStart(ts)
	want := coretypes.Nanos(900) * coretypes.NanosPerSecond
	if got != want {
		t.Errorf("AlignToWindowStart(%d) = %d, want %d", ts, got, want)
	}
}

func TestMarketSlugRoundTrip(t *testing.T) {
	t.Parallel()

	windowStart := coretypes.Nanos(1_700_000_700) * coretypes.NanosPerSecond
	slug := MarketSlug("BTC", windowStart)
	if want := "btc-updown-15m-1700000700"; slug != want {
		t.Fatalf("MarketSlug = %q, want %q", slug, want)
	}

	got, ok := ParseWindowStartFromSlug(slug)
	if !ok {
		t.Fatal("ParseWindowStartFromSlug returned ok=false for a well-formed slug")
	}
	if got != windowStart {
		t.Errorf("ParseWindowStartFromSlug = %d, want %d", got, windowStart)
	}
}

func TestParseWindowStartFromSlugRejectsMalformed(t *testing.T) {
	t.Parallel()

	cases := []string{
		"garbage",
		"btc-updown",
		"btc-weekly-15m-123",
		"btc-updown-1h-123",
	}
	for _, slug := range cases {
		if _, ok := ParseWindowStartFromSlug(slug); ok {
			t.Errorf("ParseWindowStartFromSlug(%q) = ok, want ok=false", slug)
		}
	}
}

func TestResolveUpWhenEndAboveStart(t *testing.T) {
	t.Parallel()

	evt := Resolve("btc-updown-15m-0", 0, coretypes.Nanos(900)*coretypes.NanosPerSecond, 100.0, 101.0, false, coretypes.Nanos(900)*coretypes.NanosPerSecond)
	if evt.Outcome != coretypes.Yes {
		t.Errorf("Outcome = %v, want Yes", evt.Outcome)
	}
	if evt.IsTie {
		t.Error("IsTie should be false when end != start")
	}
}

func TestResolveDownWhenEndBelowStart(t *testing.T) {
	t.Parallel()

	evt := Resolve("btc-updown-15m-0", 0, 0, 100.0, 99.0, false, 0)
	if evt.Outcome != coretypes.No {
		t.Errorf("Outcome = %v, want No", evt.Outcome)
	}
}

func TestResolveTieDefaultsToUp(t *testing.T) {
	t.Parallel()

	evt := Resolve("btc-updown-15m-0", 0, 0, 100.0, 100.0, false, 0)
	if !evt.IsTie {
		t.Fatal("IsTie should be true when end == start")
	}
	if evt.Outcome != coretypes.Yes {
		t.Errorf("Outcome on tie with tieGoesToDown=false = %v, want Yes", evt.Outcome)
	}
}

func TestResolveTieGoesToDownWhenConfigured(t *testing.T) {
	t.Parallel()

	evt := Resolve("btc-updown-15m-0", 0, 0, 100.0, 100.0, true, 0)
	if evt.Outcome != coretypes.No {
		t.Errorf("Outcome on tie with tieGoesToDown=true = %v, want No", evt.Outcome)
	}
}

func TestResolveProducesResolvedResolution(t *testing.T) {
	t.Parallel()

	evt := Resolve("btc-updown-15m-0", 0, 0, 100.0, 101.0, false, 0)
	if evt.Resolution != ResolutionResolved {
		t.Errorf("Resolution = %v, want ResolutionResolved", evt.Resolution)
	}
}

func TestUnresolveCarriesReasonAndNoWinner(t *testing.T) {
	t.Parallel()

	evt := Unresolve("btc-updown-15m-0", 0, coretypes.Window15m, "oracle price stale", coretypes.Window15m)
	if evt.Resolution != ResolutionUnresolved {
		t.Errorf("Resolution = %v, want ResolutionUnresolved", evt.Resolution)
	}
	if evt.Reason != "oracle price stale" {
		t.Errorf("Reason = %q, want %q", evt.Reason, "oracle price stale")
	}
}

func TestVoidCarriesReasonAndNoWinner(t *testing.T) {
	t.Parallel()

	evt := Void("btc-updown-15m-0", 0, coretypes.Window15m, "market cancelled upstream", coretypes.Window15m)
	if evt.Resolution != ResolutionVoid {
		t.Errorf("Resolution = %v, want ResolutionVoid", evt.Resolution)
	}
	if evt.Reason != "market cancelled upstream" {
		t.Errorf("Reason = %q, want %q", evt.Reason, "market cancelled upstream")
	}
}
