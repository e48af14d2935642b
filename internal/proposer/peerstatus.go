package proposer

import "github.com/adilzhan-satpaeva/rsm-core/internal/quorum"

// PeerStatus is the proposer's bookkeeping for one peer's replication
// progress (spec.md §4.2 / C2). It mirrors the teacher's nextIndex/matchIndex
// pair but adds the needsSync flag the spec requires for a peer whose log
// diverged far enough that direct pending-queue replay can no longer catch
// it up.
type PeerStatus struct {
	Sent        int64 // highest seqno sent to the peer, acked or not
	SentCommit  int64 // committedSeqno value sent with the last append
	Acked       int64 // highest seqno the peer has durably appended
	AckedCommit int64 // highest commit seqno the peer has acknowledged
	NeedsSync   bool  // peer must be caught up via GetLog rather than replay
	InFlight    bool  // an append/establish RPC is outstanding
}

// PeerTable tracks PeerStatus per peer id.
type PeerTable struct {
	peers map[string]*PeerStatus
}

// NewPeerTable builds an empty table.
func NewPeerTable() *PeerTable {
	return &PeerTable{peers: make(map[string]*PeerStatus)}
}

// Reset replaces the table's membership, initializing every named peer to a
// conservative starting status: sent/acked/ackedCommit all zero and
// needsSync true, since until a peer answers establishTerm the proposer has
// no idea how far behind it is.
func (t *PeerTable) Reset(peers []string) {
	t.peers = make(map[string]*PeerStatus, len(peers))
	for _, p := range peers {
		t.peers[p] = &PeerStatus{NeedsSync: true}
	}
}

// Ensure returns the status for peer, creating a conservative entry if the
// peer is not yet tracked (a peer added mid-term by a config transition).
func (t *PeerTable) Ensure(peer string) *PeerStatus {
	s, ok := t.peers[peer]
	if !ok {
		s = &PeerStatus{NeedsSync: true}
		t.peers[peer] = s
	}
	return s
}

// Get returns the status for peer, or nil if untracked.
func (t *PeerTable) Get(peer string) *PeerStatus {
	return t.peers[peer]
}

// Remove drops a peer no longer present in any live configuration.
func (t *PeerTable) Remove(peer string) {
	delete(t.peers, peer)
}

// Peers returns the tracked peer ids.
func (t *PeerTable) Peers() []string {
	out := make([]string, 0, len(t.peers))
	for p := range t.peers {
		out = append(out, p)
	}
	return out
}

// DeduceCommit computes the highest seqno acknowledged by a set of peers
// satisfying q (self is expected to already have a row in the table, since
// PeerStatus is tracked "per follower including self"). It walks candidate
// seqnos from the highest known Acked value down to floor, stopping at the
// first one a quorum acks — the same linear-scan shape as the teacher's
// advanceCommitIndexLocked, generalized to an arbitrary quorum tree instead
// of a fixed majority. Returns floor if no seqno above it satisfies q.
func (t *PeerTable) DeduceCommit(floor int64, q *quorum.Quorum) int64 {
	top := floor
	for _, status := range t.peers {
		if status.Acked > top {
			top = status.Acked
		}
	}
	for seqno := top; seqno > floor; seqno-- {
		votes := make(map[string]struct{}, len(t.peers))
		for peer, status := range t.peers {
			if status.Acked >= seqno {
				votes[peer] = struct{}{}
			}
		}
		if quorum.HaveQuorum(votes, q) {
			return seqno
		}
	}
	return floor
}
