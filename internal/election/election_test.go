package election_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/election"
	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// fakeSink records every TermLost call, standing in for *server.Central.
type fakeSink struct {
	mu   sync.Mutex
	lost []rsmlog.Term
	ch   chan struct{}
}

func newFakeSink() *fakeSink { return &fakeSink{ch: make(chan struct{}, 32)} }

func (s *fakeSink) TermLost(_ rsmlog.HistoryID, term rsmlog.Term) {
	s.mu.Lock()
	s.lost = append(s.lost, term)
	s.mu.Unlock()
	s.ch <- struct{}{}
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lost)
}

type noPeers struct{}

func (noPeers) Peer(string) (agent.PeerAgent, bool) { return nil, false }
func (noPeers) LivePeers() []string                 { return nil }

type oneLivePeer struct{ self string }

func (l oneLivePeer) LivePeers() []string                      { return []string{l.self} }
func (l oneLivePeer) Events() <-chan proposer.LivenessEvent { return make(chan proposer.LivenessEvent) }

// noopServer never actually gets called: the two-voter/one-live-peer setup
// fails the quorum-feasibility check in Proposer.Run before ProposerReady
// could ever fire.
type noopServer struct{}

func (noopServer) ProposerReady(rsmlog.HistoryID, rsmlog.Term, int64)  {}
func (noopServer) ReplyRequests(rsmlog.HistoryID, []proposer.Reply) {}

// TestElector_BumpsTermOnEachUnwinnableAttempt drives the Elector against a
// two-voter config where the peer never answers liveness, so every attempt's
// quorum feasibility check fails immediately in Proposer.Run (spec.md §4.4's
// ReasonNoQuorum short-circuit) with no network involved. It is grounded on
// the teacher's election_test.go pattern of asserting the candidate re-arms
// with a strictly increasing term after each lost race.
func TestElector_BumpsTermOnEachUnwinnableAttempt(t *testing.T) {
	twoVoters := rsmlog.Config{Voters: []string{"n1", "n2"}, StateMachines: map[string]rsmlog.RsmConfig{}}
	sink := newFakeSink()

	var mu sync.Mutex
	var built []rsmlog.Term

	factory := func(historyID rsmlog.HistoryID, term rsmlog.Term) *proposer.Proposer {
		mu.Lock()
		built = append(built, term)
		mu.Unlock()
		local := agent.NewMemoryAgent("n1", historyID, twoVoters)
		return proposer.New("n1", historyID, term, local, noPeers{}, oneLivePeer{self: "n1"}, noopServer{}, nil, nil, nil, proposer.DefaultOptions())
	}

	opts := election.Options{MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	e := election.New("h1", "n1", rsmlog.Term{Number: 0}, sink, factory, opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	for sink.count() < 3 {
		select {
		case <-sink.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for term losses, got %d so far", sink.count())
		}
	}
	e.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(built) < 3 {
		t.Fatalf("expected at least 3 term attempts, got %d", len(built))
	}
	for i := 1; i < len(built); i++ {
		if built[i].Number <= built[i-1].Number {
			t.Fatalf("expected strictly increasing term numbers, got %v then %v", built[i-1], built[i])
		}
		if built[i].LeaderID != "n1" {
			t.Fatalf("expected self as leader id, got %q", built[i].LeaderID)
		}
	}
}
