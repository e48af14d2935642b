package proposer

import "github.com/adilzhan-satpaeva/rsm-core/internal/quorum"

// syncState is one outstanding sync-quorum request (spec.md §4.4.6 / C5).
type syncState struct {
	votes       map[string]struct{}
	failedVotes map[string]struct{}
}

// syncTracker collects per-peer acknowledgements for read-linearization
// requests in flight on the leader.
type syncTracker struct {
	requests map[Ref]*syncState
}

func newSyncTracker() *syncTracker {
	return &syncTracker{requests: make(map[Ref]*syncState)}
}

// Start begins tracking ref, pre-seeding deadPeers as failed votes exactly as
// establishTerm does.
func (t *syncTracker) Start(ref Ref, deadPeers []string) {
	failed := make(map[string]struct{}, len(deadPeers))
	for _, p := range deadPeers {
		failed[p] = struct{}{}
	}
	t.requests[ref] = &syncState{votes: map[string]struct{}{}, failedVotes: failed}
}

// Vote records a successful ensureTerm reply from peer for every outstanding
// request that hasn't already resolved that peer.
func (t *syncTracker) Vote(peer string) {
	for _, s := range t.requests {
		if _, done := s.failedVotes[peer]; done {
			continue
		}
		s.votes[peer] = struct{}{}
	}
}

// Fail records a failed ensureTerm reply, or a peer-down, for peer across
// every outstanding request.
func (t *syncTracker) Fail(peer string) {
	for _, s := range t.requests {
		if _, done := s.votes[peer]; done {
			continue
		}
		s.failedVotes[peer] = struct{}{}
	}
}

// outcome is the resolution state of a single request.
type outcome int

const (
	outcomePending outcome = iota
	outcomeOk
	outcomeNoQuorum
)

// Evaluate reports the resolution of ref against q, given the full live+dead
// peer universe allPeers.
func (t *syncTracker) Evaluate(ref Ref, allPeers []string, q *quorum.Quorum) outcome {
	s, ok := t.requests[ref]
	if !ok {
		return outcomePending
	}
	if quorum.HaveQuorum(s.votes, q) {
		return outcomeOk
	}
	if !quorum.Feasible(allPeers, s.failedVotes, q) {
		return outcomeNoQuorum
	}
	return outcomePending
}

// Remove stops tracking ref, called once it has been resolved.
func (t *syncTracker) Remove(ref Ref) {
	delete(t.requests, ref)
}

// Refs returns every currently outstanding ref, for re-evaluation sweeps.
func (t *syncTracker) Refs() []Ref {
	out := make([]Ref, 0, len(t.requests))
	for ref := range t.requests {
		out = append(out, ref)
	}
	return out
}
