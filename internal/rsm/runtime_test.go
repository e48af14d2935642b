package rsm_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/kvmachine"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsm"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// fakeServer is a hand-rolled rsm.Server recording what a runtime asks of
// its Server façade, mirroring the teacher's own fake collaborators rather
// than a generated mock (SPEC_FULL.md §A.4's texture for this layer).
type fakeServer struct {
	announced int
}

func (f *fakeServer) RsmCommand(rsmlog.HistoryID, rsmlog.Term, string, uint64, []byte) {}
func (f *fakeServer) SyncQuorum(uint64, rsmlog.HistoryID, rsmlog.Term)                 {}
func (f *fakeServer) AnnounceTerm()                                                   { f.announced++ }

func cfgWithKV() rsmlog.Config {
	return rsmlog.Config{Voters: []string{"n1"}, StateMachines: map[string]rsmlog.RsmConfig{"kv": {Name: "kv"}}}
}

func TestRuntime_AppliesAlreadyCommittedEntriesInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := agent.NewMemoryAgent("n1", "h1", cfgWithKV())

	put := func(key, value string) []byte {
		b, _ := json.Marshal(kvmachine.Command{Type: kvmachine.PutCmd, Key: key, Value: value})
		return b
	}
	entries := []rsmlog.LogEntry{
		{HistoryID: "h1", Term: rsmlog.Term{Number: 1, LeaderID: "n1"}, Seqno: 1, Kind: rsmlog.EntryRsmCommand, Command: rsmlog.RsmCommand{ID: 1, RsmName: "kv", Payload: put("x", "1")}},
		{HistoryID: "h1", Term: rsmlog.Term{Number: 1, LeaderID: "n1"}, Seqno: 2, Kind: rsmlog.EntryRsmCommand, Command: rsmlog.RsmCommand{ID: 2, RsmName: "kv", Payload: put("x", "2")}},
	}
	if _, _, err := local.Append(ctx, "h1", rsmlog.Term{Number: 1, LeaderID: "n1"}, 2, entries); err != nil {
		t.Fatalf("seed append: %v", err)
	}

	server := &fakeServer{}
	rt := rsm.New("kv", "n1", local, server, kvmachine.New(nil), nil, nil, nil, rsm.DefaultOptions())
	go rt.Run(ctx)
	defer rt.Stop()

	q, _ := json.Marshal(kvmachine.Query{Key: "x"})
	deadline := time.After(2 * time.Second)
	for {
		reply := <-rt.Query(q)
		if reply.Err != nil {
			t.Fatalf("query: %v", reply.Err)
		}
		var out kvmachine.QueryReply
		if err := json.Unmarshal(reply.Reply, &out); err != nil {
			t.Fatalf("decode query reply: %v", err)
		}
		if out.Found && out.Value == "2" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for entries to apply, last reply=%+v", out)
		case <-time.After(20 * time.Millisecond):
		}
	}

	if server.announced != 1 {
		t.Fatalf("expected AnnounceTerm called once at startup, got %d", server.announced)
	}

	status := <-rt.Status()
	if status.AppliedSeqno != 2 {
		t.Fatalf("got AppliedSeqno=%d, want 2", status.AppliedSeqno)
	}
	if status.CapturedAt == nil {
		t.Fatal("expected Status.CapturedAt to be set")
	}
}

func TestRuntime_SyncRevisionTimesOutWithoutCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := agent.NewMemoryAgent("n1", "h1", cfgWithKV())
	server := &fakeServer{}
	rt := rsm.New("kv", "n1", local, server, kvmachine.New(nil), nil, nil, nil, rsm.DefaultOptions())
	go rt.Run(ctx)
	defer rt.Stop()

	err := <-rt.SyncRevision("h1", 5, 50*time.Millisecond)
	if err != rsm.ErrTimeout {
		t.Fatalf("got %v, want rsm.ErrTimeout", err)
	}
}
