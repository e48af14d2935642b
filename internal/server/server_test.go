package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
	"github.com/adilzhan-satpaeva/rsm-core/internal/server"
)

// fakeRuntime satisfies server's unexported runtime interface structurally,
// recording every call the Central switchboard makes to a registered RSM,
// grounded on the teacher's own hand-rolled fakes for internal/service.KV's
// collaborators rather than a generated mock (SPEC_FULL.md §A.4's texture
// note for everything below the gRPC transport boundary).
type fakeRuntime struct {
	started  chan startedCall
	finished chan struct{}
	synced   chan syncedCall
}

type startedCall struct {
	historyID rsmlog.HistoryID
	term      rsmlog.Term
	highSeqno int64
}

type syncedCall struct {
	ref uint64
	ok  bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		started:  make(chan startedCall, 8),
		finished: make(chan struct{}, 8),
		synced:   make(chan syncedCall, 8),
	}
}

func (r *fakeRuntime) TermStarted(historyID rsmlog.HistoryID, term rsmlog.Term, highSeqno int64) {
	r.started <- startedCall{historyID, term, highSeqno}
}
func (r *fakeRuntime) TermFinished(rsmlog.HistoryID, rsmlog.Term) { r.finished <- struct{}{} }
func (r *fakeRuntime) SyncQuorumResult(ref uint64, ok bool)       { r.synced <- syncedCall{ref, ok} }

type noPeers struct{}

func (noPeers) Peer(string) (agent.PeerAgent, bool) { return nil, false }
func (noPeers) LivePeers() []string                 { return nil }

type selfOnlyLiveness struct{ self string }

func (l selfOnlyLiveness) LivePeers() []string                  { return []string{l.self} }
func (l selfOnlyLiveness) Events() <-chan proposer.LivenessEvent { return make(chan proposer.LivenessEvent) }

func singleVoterConfig() rsmlog.Config {
	return rsmlog.Config{Voters: []string{"n1"}, StateMachines: map[string]rsmlog.RsmConfig{"kv": {Name: "kv"}}}
}

func TestCentral_AnnouncesTermToRegisteredRuntimeAndReplaysOnLateRegister(t *testing.T) {
	central := server.New(nil)
	early := newFakeRuntime()
	central.Register("kv", early)

	local := agent.NewMemoryAgent("n1", "h1", singleVoterConfig())
	term := rsmlog.Term{Number: 1, LeaderID: "n1"}
	p := proposer.New("n1", "h1", term, local, noPeers{}, selfOnlyLiveness{self: "n1"}, central, nil, nil, nil, proposer.DefaultOptions())
	central.SetProposer(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	defer p.Stop()

	select {
	case call := <-early.started:
		if call.historyID != "h1" || call.term.Number != 1 {
			t.Fatalf("got %+v, want historyID=h1 term=1", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for TermStarted on the already-registered runtime")
	}

	// A runtime registered after the term is already won must be caught up
	// immediately, per Central.Register's doc comment.
	late := newFakeRuntime()
	central.Register("kv2", late)
	select {
	case call := <-late.started:
		if call.historyID != "h1" || call.term.Number != 1 {
			t.Fatalf("got %+v, want historyID=h1 term=1", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for replayed TermStarted on the late-registered runtime")
	}
}

func TestCentral_SubmitCasConfigRoutesSuccessAndFailureReplies(t *testing.T) {
	central := server.New(nil)
	local := agent.NewMemoryAgent("n1", "h1", singleVoterConfig())
	term := rsmlog.Term{Number: 1, LeaderID: "n1"}
	p := proposer.New("n1", "h1", term, local, noPeers{}, selfOnlyLiveness{self: "n1"}, central, nil, nil, nil, proposer.DefaultOptions())
	central.SetProposer(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	defer p.Stop()

	var current rsmlog.Revision
	deadline := time.After(2 * time.Second)
	for {
		status := <-p.Status()
		if status.IsLeader {
			current = status.ConfigRevision
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting to become leader")
		case <-time.After(10 * time.Millisecond):
		}
	}

	stale := rsmlog.Revision{HistoryID: "h1", Term: rsmlog.Term{Number: 0}, Seqno: 999}
	badCh := central.SubmitCasConfig(stale, rsmlog.Config{Voters: []string{"n1", "n2"}})
	select {
	case reply := <-badCh:
		if _, ok := reply.Value.(proposer.CasFailed); !ok {
			t.Fatalf("got %#v, want CasFailed", reply.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stale-revision reply")
	}

	goodCh := central.SubmitCasConfig(current, rsmlog.Config{Voters: []string{"n1"}, StateMachines: map[string]rsmlog.RsmConfig{"kv": {Name: "kv"}}})
	select {
	case reply := <-goodCh:
		if _, ok := reply.Value.(proposer.Ok); !ok {
			t.Fatalf("got %#v, want Ok", reply.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted CAS reply")
	}
}

func TestCentral_SubmitCasConfigWithoutProposerReturnsNoQuorum(t *testing.T) {
	central := server.New(nil)
	ch := central.SubmitCasConfig(rsmlog.Revision{}, rsmlog.Config{})
	select {
	case reply := <-ch:
		if _, ok := reply.Value.(proposer.NoQuorum); !ok {
			t.Fatalf("got %#v, want NoQuorum", reply.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for immediate NoQuorum reply")
	}
}

func TestCentral_FacadeSyncQuorumReportsSuccess(t *testing.T) {
	central := server.New(nil)
	rt := newFakeRuntime()
	central.Register("kv", rt)

	local := agent.NewMemoryAgent("n1", "h1", singleVoterConfig())
	term := rsmlog.Term{Number: 1, LeaderID: "n1"}
	p := proposer.New("n1", "h1", term, local, noPeers{}, selfOnlyLiveness{self: "n1"}, central, nil, nil, nil, proposer.DefaultOptions())
	central.SetProposer(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	defer p.Stop()

	select {
	case <-rt.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for TermStarted")
	}

	central.Facade("kv").SyncQuorum(42, "h1", term)

	select {
	case call := <-rt.synced:
		if call.ref != 42 || !call.ok {
			t.Fatalf("got %+v, want ref=42 ok=true", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SyncQuorumResult")
	}
}

func TestCentral_TermLostClearsCurrentTermAndNotifiesRuntimes(t *testing.T) {
	central := server.New(nil)
	rt := newFakeRuntime()
	central.Register("kv", rt)

	local := agent.NewMemoryAgent("n1", "h1", singleVoterConfig())
	term := rsmlog.Term{Number: 1, LeaderID: "n1"}
	p := proposer.New("n1", "h1", term, local, noPeers{}, selfOnlyLiveness{self: "n1"}, central, nil, nil, nil, proposer.DefaultOptions())
	central.SetProposer(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case <-rt.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for TermStarted")
	}

	p.Stop()
	<-p.Done()
	central.TermLost("h1", term)

	select {
	case <-rt.finished:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for TermFinished")
	}
}
