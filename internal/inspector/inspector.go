// Package inspector is the read-only companion to the artifact store. It
// never mutates a run; it decodes what the run already persisted and
// reports on its shape, grounded on the reference implementation's
// dataset-inspection CLI — adapted from raw market-data stream auditing
// (snapshots/deltas/trade prints, arrival timestamps, local sequence
// numbers) to this core's unit of persisted data: a run's finalized
// window-PnL series.
package inspector

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hourline/backtestcore/internal/artifactstore"
)

// WindowSummary is the slice of a finalized window a run artifact carries
// in its Payload, just enough to drive coverage and gap checks without
// round-tripping the full fixed-point accounting types through JSON.
type WindowSummary struct {
	MarketId      string  `json:"market_id"`
	WindowStartNs int64   `json:"window_start_ns"`
	WindowEndNs   int64   `json:"window_end_ns"`
	NetPnl        float64 `json:"net_pnl"`
	GrossPnl      float64 `json:"gross_pnl"`
	Fees          float64 `json:"fees"`
	TradesCount   uint64  `json:"trades_count"`
	IsFinalized   bool    `json:"is_finalized"`
}

// RunPayload is the shape cmdRun persists into RunArtifact.Payload.
type RunPayload struct {
	Windows []WindowSummary `json:"windows"`
}

// StreamSummary is the per-market ("token") coverage report across every
// persisted run: first/last window seen, how many windows, and whether the
// observed window_start_ns sequence is contiguous and duplicate-free.
type StreamSummary struct {
	MarketId           string `json:"market_id"`
	WindowCount        int    `json:"window_count"`
	FirstWindowStartNs int64  `json:"first_window_start_ns"`
	LastWindowStartNs  int64  `json:"last_window_start_ns"`
	DuplicateWindows   int    `json:"duplicate_windows"`
	GapCount           int    `json:"gap_count"`
}

// Proof is the JSON artifact the inspect subcommand emits: everything it
// found, suitable for archiving alongside the database it was run against.
type Proof struct {
	RunCount    int             `json:"run_count"`
	Tokens      []string        `json:"tokens"`
	Streams     []StreamSummary `json:"streams"`
	IntegrityOk bool            `json:"integrity_ok"`
}

// Inspect reads every persisted run out of store, decodes its window
// payload, and builds the per-token coverage report and JSON proof. It
// never errors on an individual run lacking a payload — older or
// non-publishable runs may have persisted none — but a run whose payload
// cannot be decoded makes Inspect stop and return an error.
func Inspect(store *artifactstore.Store) (*Proof, error) {
	runs, err := store.List(artifactstore.ListFilter{}, artifactstore.SortByPersistedAt, 0)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	byMarket := make(map[string][]WindowSummary)
	for _, r := range runs {
		if len(r.Payload) == 0 {
			continue
		}
		var payload RunPayload
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return nil, fmt.Errorf("run %s: decode payload: %w", r.RunId, err)
		}
		for _, w := range payload.Windows {
			byMarket[w.MarketId] = append(byMarket[w.MarketId], w)
		}
	}

	tokens := make([]string, 0, len(byMarket))
	for m := range byMarket {
		tokens = append(tokens, m)
	}
	sort.Strings(tokens)

	integrityOk := true
	streams := make([]StreamSummary, 0, len(tokens))
	for _, m := range tokens {
		windows := byMarket[m]
		sort.Slice(windows, func(i, j int) bool { return windows[i].WindowStartNs < windows[j].WindowStartNs })

		seen := make(map[int64]int)
		gaps := 0
		for i, w := range windows {
			seen[w.WindowStartNs]++
			if i > 0 && w.WindowStartNs > windows[i-1].WindowEndNs {
				gaps++
			}
		}
		dup := 0
		for _, count := range seen {
			if count > 1 {
				dup += count - 1
			}
		}
		if gaps > 0 || dup > 0 {
			integrityOk = false
		}

		var first, last int64
		if len(windows) > 0 {
			first = windows[0].WindowStartNs
			last = windows[len(windows)-1].WindowStartNs
		}
		streams = append(streams, StreamSummary{
			MarketId:           m,
			WindowCount:        len(windows),
			FirstWindowStartNs: first,
			LastWindowStartNs:  last,
			DuplicateWindows:   dup,
			GapCount:           gaps,
		})
	}

	return &Proof{
		RunCount:    len(runs),
		Tokens:      tokens,
		Streams:     streams,
		IntegrityOk: integrityOk,
	}, nil
}
