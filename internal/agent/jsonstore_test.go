package agent_test

import (
	"context"
	"testing"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

func TestJSONStoreRestoresStateAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	historyID := rsmlog.HistoryID("h1")
	initial := rsmlog.Config{Voters: []string{"n1", "n2", "n3"}}

	store, err := agent.NewJSONStore(dir, "n1", historyID, initial)
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}

	term := rsmlog.Term{Number: 1, LeaderID: "n1"}
	if _, err := store.EstablishLocalTerm(ctx, historyID, term); err != nil {
		t.Fatalf("EstablishLocalTerm: %v", err)
	}
	entries := []rsmlog.LogEntry{{HistoryID: historyID, Term: term, Seqno: 1, Kind: rsmlog.EntryRsmCommand, Command: rsmlog.RsmCommand{ID: 1, RsmName: "kv", Payload: []byte("x")}}}
	if _, _, err := store.Append(ctx, historyID, term, 1, entries); err != nil {
		t.Fatalf("Append: %v", err)
	}

	restored, err := agent.NewJSONStore(dir, "n1", historyID, initial)
	if err != nil {
		t.Fatalf("re-open NewJSONStore: %v", err)
	}
	meta, err := restored.GetMetadata(ctx)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.HighSeqno != 1 || meta.CommittedSeqno != 1 {
		t.Fatalf("got %+v, want highSeqno=1 committedSeqno=1", meta)
	}
	if meta.TermVoted.Number != 1 {
		t.Fatalf("got termVoted %+v, want number 1", meta.TermVoted)
	}
}
