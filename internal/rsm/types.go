package rsm

import (
	"errors"
	"time"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// Client-visible errors from the RSM runtime (spec.md §7).
var (
	ErrNotLeader       = errors.New("rsm: not leader")
	ErrHistoryMismatch = errors.New("rsm: history mismatch")
	ErrTimeout         = errors.New("rsm: sync revision timed out")
	ErrLeaderGone      = errors.New("rsm: leader gone")
)

// RevisionKind selects the flavor of GetAppliedRevision.
type RevisionKind int

// Supported GetAppliedRevision flavors.
const (
	RevisionLeader RevisionKind = iota
	RevisionQuorum
)

// role tags whether this runtime currently believes it is driving the log
// (Leader) or merely following it (Follower).
type roleKind int

const (
	roleFollower roleKind = iota
	roleLeader
)

type role struct {
	kind      roleKind
	historyID rsmlog.HistoryID
	term      rsmlog.Term
	termSeqno int64 // proposer's highSeqno when this term started, catchup floor
}

// pendingClient is a client awaiting the reply for a command it submitted
// (spec.md §4.5's pendingClients map).
type pendingClient struct {
	ref     uint64
	replyCh chan<- CommandReply
	term    rsmlog.Term // must match the leader's current term at apply time
}

// CommandReply is delivered to a Command caller.
type CommandReply struct {
	Reply []byte
	Err   error
}

// syncRevisionRequest is one entry of the ordered wait-queue (spec.md §4.5 /
// C7), kept sorted by Seqno so the apply loop can prefix-scan it.
type syncRevisionRequest struct {
	seqno     int64
	historyID rsmlog.HistoryID
	replyCh   chan<- error
	timer     timer
}

// QueryFunc-style helpers aren't needed; queries flow straight through Mod.

// Options carries tunables.
type Options struct {
	ReaderBatchTimeout time.Duration
}

// DefaultOptions returns sane defaults.
func DefaultOptions() Options {
	return Options{ReaderBatchTimeout: 2 * time.Second}
}
