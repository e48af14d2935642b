package rsm

import "github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"

// Server is the façade external collaborator as seen from an RSM runtime
// (spec.md §6).
type Server interface {
	// RsmCommand forwards a command to the Proposer for logging.
	RsmCommand(historyID rsmlog.HistoryID, term rsmlog.Term, rsmName string, ref uint64, command []byte)

	// SyncQuorum requests read-linearization on behalf of ref.
	SyncQuorum(ref uint64, historyID rsmlog.HistoryID, term rsmlog.Term)

	// AnnounceTerm asks the Server to (re-)deliver a termStarted event if
	// one is currently active, used at RSM startup so a runtime that
	// starts after leadership was already acquired still learns about it.
	AnnounceTerm()
}

// TermEvent is a termStarted/termFinished notification from the Leader
// Election external collaborator (spec.md §6's events bus).
type TermEvent struct {
	Started   bool
	HistoryID rsmlog.HistoryID
	Term      rsmlog.Term
	HighSeqno int64 // meaningful only when Started
}
