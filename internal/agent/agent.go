// Package agent defines the interfaces the proposer and RSM runtime use to
// reach the per-node persistent log + metadata store (spec.md §6). The Agent
// itself — durability, on-disk format, the NIF layer — is out of scope; this
// package only carries the contract plus reference implementations used by
// tests and the demo binaries.
package agent

import (
	"context"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// Local is the subset of Agent operations a component performs against its
// own node's store.
type Local interface {
	// EstablishLocalTerm durably records (historyID, term) as the term this
	// node is now proposing under, returning the resulting metadata.
	EstablishLocalTerm(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term) (rsmlog.Metadata, error)

	// GetLog returns entries with fromSeqno < seqno <= toSeqno, used for
	// synchronous backfill of peers lagging behind the in-memory pending
	// queue, and durably persists nothing.
	GetLog(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, fromSeqno, toSeqno int64) ([]rsmlog.LogEntry, error)

	// GetFullLog returns every entry currently known to the local agent, in
	// seqno order, for the RSM reader subprocess. Like GetLog, it reports a
	// HistoryMismatchError if historyID no longer names the agent's current
	// history, so a reader that has been away can tell it needs to reset.
	GetFullLog(ctx context.Context, historyID rsmlog.HistoryID) ([]rsmlog.LogEntry, error)

	// GetMetadata returns the current local metadata, used at RSM startup.
	GetMetadata(ctx context.Context) (rsmlog.Metadata, error)

	// Append durably appends entries at the local node (used when this node
	// is itself a replication target, i.e. always for the leader's own vote).
	Append(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, committedSeqno int64, entries []rsmlog.LogEntry) (highSeqno, ackedCommitSeqno int64, err error)

	// Done is closed when the local agent process dies. A dead local agent
	// is fatal to any proposer/RSM depending on it.
	Done() <-chan struct{}
}

// PeerAgent is the transport-independent handle a proposer holds for one
// remote peer's agent. It plays the role of the teacher's raft.PeerClient.
type PeerAgent interface {
	EstablishTerm(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, logPosition int64) (rsmlog.Metadata, error)
	Append(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, committedSeqno int64, entries []rsmlog.LogEntry) (highSeqno, ackedCommitSeqno int64, err error)
	EnsureTerm(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term) (highSeqno, ackedCommitSeqno int64, err error)

	// Done is closed exactly once, when the transport to this peer is
	// considered dead (equivalent to an Erlang monitor DOWN). Any response
	// received after Done fires must be treated as stale by the caller.
	Done() <-chan struct{}

	Close() error
}

// Dispatcher resolves peer ids to live PeerAgent handles, standing in for
// however the Agent + transport layer names and reaches remote nodes.
type Dispatcher interface {
	// Peer returns the current handle for id, or ok=false if the peer is
	// not currently reachable (equivalent to it being absent from
	// get_live_peers).
	Peer(id string) (PeerAgent, bool)

	// LivePeers returns the ids the dispatcher currently considers reachable.
	LivePeers() []string
}
