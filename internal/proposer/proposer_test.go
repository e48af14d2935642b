package proposer_test

import (
	"context"
	"testing"
	"time"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// directPeer adapts an in-process *agent.MemoryAgent to agent.PeerAgent,
// standing in for a real gRPC hop the way the teacher's tests wire two
// raft.Node instances directly together without a network in between.
type directPeer struct {
	*agent.MemoryAgent
}

func (directPeer) Close() error { return nil }

// fakeServer records every ProposerReady/ReplyRequests call, grounded on the
// teacher's own hand-rolled fake collaborators (e.g. newTestNode's stub
// applyCh) rather than a generated mock.
type fakeServer struct {
	ready   []readyCall
	replies []proposer.Reply
	readyCh chan struct{}
	replyCh chan struct{}
}

type readyCall struct {
	historyID rsmlog.HistoryID
	term      rsmlog.Term
	highSeqno int64
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		readyCh: make(chan struct{}, 8),
		replyCh: make(chan struct{}, 8),
	}
}

func (f *fakeServer) ProposerReady(historyID rsmlog.HistoryID, term rsmlog.Term, highSeqno int64) {
	f.ready = append(f.ready, readyCall{historyID, term, highSeqno})
	f.readyCh <- struct{}{}
}

func (f *fakeServer) ReplyRequests(historyID rsmlog.HistoryID, replies []proposer.Reply) {
	f.replies = append(f.replies, replies...)
	f.replyCh <- struct{}{}
}

// fakeLiveness reports a fixed live-peer set and never emits an event unless
// told to, mirroring the teacher's fake tick/timer sources.
type fakeLiveness struct {
	live   []string
	events chan proposer.LivenessEvent
}

func newFakeLiveness(live ...string) *fakeLiveness {
	return &fakeLiveness{live: live, events: make(chan proposer.LivenessEvent, 8)}
}

func (f *fakeLiveness) LivePeers() []string                  { return f.live }
func (f *fakeLiveness) Events() <-chan proposer.LivenessEvent { return f.events }

// fakeDispatcher resolves peer ids to directPeer wrappers over in-memory
// agents, with no network or transport of any kind.
type fakeDispatcher struct {
	peers map[string]agent.PeerAgent
}

func (d *fakeDispatcher) Peer(id string) (agent.PeerAgent, bool) {
	p, ok := d.peers[id]
	return p, ok
}

func (d *fakeDispatcher) LivePeers() []string {
	out := make([]string, 0, len(d.peers))
	for id := range d.peers {
		out = append(out, id)
	}
	return out
}

func threeVoterConfig() rsmlog.Config {
	return rsmlog.Config{
		Voters:        []string{"n1", "n2", "n3"},
		StateMachines: map[string]rsmlog.RsmConfig{"kv": {Name: "kv"}},
	}
}

func newThreeNodeCluster(t *testing.T) (local *agent.MemoryAgent, dispatcher *fakeDispatcher, liveness *fakeLiveness) {
	t.Helper()
	cfg := threeVoterConfig()
	local = agent.NewMemoryAgent("n1", "h1", cfg)
	peer2 := agent.NewMemoryAgent("n2", "h1", cfg)
	peer3 := agent.NewMemoryAgent("n3", "h1", cfg)
	dispatcher = &fakeDispatcher{peers: map[string]agent.PeerAgent{
		"n2": directPeer{peer2},
		"n3": directPeer{peer3},
	}}
	liveness = newFakeLiveness("n1", "n2", "n3")
	return local, dispatcher, liveness
}

func TestProposer_EstablishesTermAndBecomesLeader(t *testing.T) {
	local, dispatcher, liveness := newThreeNodeCluster(t)
	server := newFakeServer()

	term := rsmlog.Term{Number: 1, LeaderID: "n1"}
	p := proposer.New("n1", "h1", term, local, dispatcher, liveness, server, nil, nil, nil, proposer.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	defer p.Stop()

	select {
	case <-server.readyCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ProposerReady")
	}

	status := <-p.Status()
	if !status.IsLeader {
		t.Fatalf("expected IsLeader=true after establishing term, got %+v", status)
	}
	if status.CapturedAt == nil {
		t.Fatal("expected Status.CapturedAt to be set")
	}
}

func TestProposer_CommandsCommitAcrossQuorum(t *testing.T) {
	local, dispatcher, liveness := newThreeNodeCluster(t)
	server := newFakeServer()

	term := rsmlog.Term{Number: 1, LeaderID: "n1"}
	p := proposer.New("n1", "h1", term, local, dispatcher, liveness, server, nil, nil, nil, proposer.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	defer p.Stop()

	select {
	case <-server.readyCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ProposerReady")
	}

	p.SubmitCommands([]rsmlog.RsmCommand{{ID: 1, RsmName: "kv", Payload: []byte("put x=1")}})

	deadline := time.After(2 * time.Second)
	for {
		status := <-p.Status()
		if status.CommittedSeqno >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for commit, last status=%+v", status)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestProposer_CasConfigRejectsStaleRevision(t *testing.T) {
	local, dispatcher, liveness := newThreeNodeCluster(t)
	server := newFakeServer()

	term := rsmlog.Term{Number: 1, LeaderID: "n1"}
	p := proposer.New("n1", "h1", term, local, dispatcher, liveness, server, nil, nil, nil, proposer.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	defer p.Stop()

	select {
	case <-server.readyCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ProposerReady")
	}

	stale := rsmlog.Revision{HistoryID: "h1", Term: rsmlog.Term{Number: 0}, Seqno: 999}
	p.CasConfig("ref1", stale, rsmlog.Config{Voters: []string{"n1", "n2"}})

	select {
	case <-server.replyCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for CasConfig reply")
	}

	if len(server.replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(server.replies))
	}
	if _, ok := server.replies[0].Value.(proposer.CasFailed); !ok {
		t.Fatalf("got reply value %#v, want CasFailed", server.replies[0].Value)
	}
}
