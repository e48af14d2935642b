package proposer

import (
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// Server is the façade external collaborator (spec.md §6): the Proposer only
// ever calls outward on it, mirroring "the Proposer holds only a handle to
// its parent, never the reverse" (§9).
type Server interface {
	// ProposerReady announces the proposer has reached the Proposing state.
	ProposerReady(historyID rsmlog.HistoryID, term rsmlog.Term, highSeqno int64)

	// ReplyRequests forwards a batch of client-visible replies.
	ReplyRequests(historyID rsmlog.HistoryID, replies []Reply)
}

// Liveness is the Peer Liveness external collaborator (spec.md §6): answers
// get_live_peers and emits nodeup/nodedown events.
type Liveness interface {
	LivePeers() []string
	Events() <-chan LivenessEvent
}

// LivenessEvent is one nodeup/nodedown notification.
type LivenessEvent struct {
	Kind LivenessKind
	Peer string
}
