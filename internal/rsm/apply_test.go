package rsm

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// TestApplyBatch_AdoptsNewHistoryAndFlushesStaleSyncRequests exercises
// spec.md §4.5's per-entry Config history-adoption step directly against
// applyBatch, white-box, since triggering it end to end requires a full
// branch-resolution scenario. A Config entry whose historyId differs from
// appliedHistoryID must be adopted without invoking the mod, and every
// syncRevisionRequest queued under the old history must be flushed with
// ErrHistoryMismatch before any remaining request is resolved by seqno.
func TestApplyBatch_AdoptsNewHistoryAndFlushesStaleSyncRequests(t *testing.T) {
	r := &Runtime{
		name:             "kv",
		appliedHistoryID: "h1",
		appliedSeqno:     3,
		metrics:          noopMetrics{},
		tracer:           noop.NewTracerProvider().Tracer("rsm_test"),
	}

	staleEarly := make(chan error, 1)
	staleLate := make(chan error, 1)
	r.syncRequests = []*syncRevisionRequest{
		{seqno: 2, historyID: "h1", replyCh: staleEarly},
		{seqno: 10, historyID: "h1", replyCh: staleLate},
	}

	config := rsmlog.LogEntry{HistoryID: "h2", Seqno: 4, Kind: rsmlog.EntryConfig}
	r.applyBatch(context.Background(), 4, []rsmlog.LogEntry{config})

	if r.appliedHistoryID != "h2" {
		t.Fatalf("appliedHistoryID = %q, want h2", r.appliedHistoryID)
	}
	if r.appliedSeqno != 4 {
		t.Fatalf("appliedSeqno = %d, want 4", r.appliedSeqno)
	}
	if len(r.syncRequests) != 0 {
		t.Fatalf("expected all stale requests flushed, got %d left", len(r.syncRequests))
	}

	select {
	case err := <-staleEarly:
		if err != ErrHistoryMismatch {
			t.Fatalf("staleEarly got %v, want ErrHistoryMismatch", err)
		}
	default:
		t.Fatal("staleEarly was never replied to")
	}
	select {
	case err := <-staleLate:
		if err != ErrHistoryMismatch {
			t.Fatalf("staleLate got %v, want ErrHistoryMismatch", err)
		}
	default:
		t.Fatal("staleLate was never replied to")
	}

	// A request enqueued under the now-current history resolves normally on
	// a later batch that doesn't change history again.
	fresh := make(chan error, 1)
	r.syncRequests = []*syncRevisionRequest{{seqno: 5, historyID: "h2", replyCh: fresh}}
	cmd := rsmlog.LogEntry{HistoryID: "h2", Seqno: 5, Kind: rsmlog.EntryRsmCommand, Command: rsmlog.RsmCommand{RsmName: "other"}}
	r.applyBatch(context.Background(), 5, []rsmlog.LogEntry{cmd})

	if r.appliedHistoryID != "h2" {
		t.Fatalf("appliedHistoryID changed unexpectedly to %q", r.appliedHistoryID)
	}
	select {
	case err := <-fresh:
		if err != nil {
			t.Fatalf("fresh got %v, want nil", err)
		}
	default:
		t.Fatal("fresh was never replied to")
	}
}
