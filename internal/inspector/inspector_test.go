package inspector

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hourline/backtestcore/internal/artifactstore"
)

func persistRun(t *testing.T, store *artifactstore.Store, runId string, windows []WindowSummary) {
	t.Helper()
	payload, err := json.Marshal(RunPayload{Windows: windows})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	err = store.Persist(artifactstore.RunArtifact{
		RunId:        runId,
		StrategyName: "test-strategy",
		PersistedAt:  time.Unix(1_700_000_000, 0),
		Payload:      payload,
	})
	if err != nil {
		t.Fatalf("persist run %s: %v", runId, err)
	}
}

func openStore(t *testing.T) *artifactstore.Store {
	t.Helper()
	s, err := artifactstore.InMemory()
	if err != nil {
		t.Fatalf("InMemory: %v", err)
	}
	return s
}

func TestInspectReportsContiguousWindowsAsClean(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	persistRun(t, store, "run-1", []WindowSummary{
		{MarketId: "btc-updown-15m-0", WindowStartNs: 0, WindowEndNs: 900_000_000_000, IsFinalized: true},
		{MarketId: "btc-updown-15m-0", WindowStartNs: 900_000_000_000, WindowEndNs: 1_800_000_000_000, IsFinalized: true},
	})

	proof, err := Inspect(store)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if proof.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1", proof.RunCount)
	}
	if len(proof.Streams) != 1 || proof.Streams[0].GapCount != 0 || proof.Streams[0].DuplicateWindows != 0 {
		t.Fatalf("Streams = %+v, want one clean stream", proof.Streams)
	}
	if !proof.IntegrityOk {
		t.Error("IntegrityOk should be true with no gaps or duplicates")
	}
}

func TestInspectDetectsGapBetweenWindows(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	persistRun(t, store, "run-1", []WindowSummary{
		{MarketId: "btc-updown-15m-0", WindowStartNs: 0, WindowEndNs: 900_000_000_000},
		// Skips straight to the third window; the second never arrived.
		{MarketId: "btc-updown-15m-0", WindowStartNs: 1_800_000_000_000, WindowEndNs: 2_700_000_000_000},
	})

	proof, err := Inspect(store)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if proof.Streams[0].GapCount != 1 {
		t.Errorf("GapCount = %d, want 1", proof.Streams[0].GapCount)
	}
	if proof.IntegrityOk {
		t.Error("IntegrityOk should be false when a gap is present")
	}
}

func TestInspectDetectsDuplicateWindowAcrossRuns(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	window := WindowSummary{MarketId: "btc-updown-15m-0", WindowStartNs: 0, WindowEndNs: 900_000_000_000}
	persistRun(t, store, "run-1", []WindowSummary{window})
	persistRun(t, store, "run-2", []WindowSummary{window})

	proof, err := Inspect(store)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if proof.Streams[0].DuplicateWindows != 1 {
		t.Errorf("DuplicateWindows = %d, want 1", proof.Streams[0].DuplicateWindows)
	}
	if proof.IntegrityOk {
		t.Error("IntegrityOk should be false when a duplicate window is present")
	}
}

func TestInspectListsDistinctTokensSorted(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	persistRun(t, store, "run-1", []WindowSummary{
		{MarketId: "eth-updown-15m-0", WindowStartNs: 0, WindowEndNs: 900_000_000_000},
		{MarketId: "btc-updown-15m-0", WindowStartNs: 0, WindowEndNs: 900_000_000_000},
	})

	proof, err := Inspect(store)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(proof.Tokens) != 2 || proof.Tokens[0] != "btc-updown-15m-0" || proof.Tokens[1] != "eth-updown-15m-0" {
		t.Errorf("Tokens = %v, want sorted [btc-updown-15m-0 eth-updown-15m-0]", proof.Tokens)
	}
}

func TestInspectSkipsRunsWithNoPayload(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	if err := store.Persist(artifactstore.RunArtifact{RunId: "run-no-payload", PersistedAt: time.Unix(1_700_000_000, 0)}); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	proof, err := Inspect(store)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if proof.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1", proof.RunCount)
	}
	if len(proof.Tokens) != 0 {
		t.Errorf("Tokens = %v, want empty when no run has a payload", proof.Tokens)
	}
}
