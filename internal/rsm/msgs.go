package rsm

import (
	"time"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// rmsg is the sealed mailbox message type for Runtime, mirroring the
// proposer package's msg pattern.
type rmsg interface{ isRmsg() }

type rmsgStop struct{}

type rmsgCommand struct {
	cmd     []byte
	replyCh chan<- CommandReply
}

type rmsgQuery struct {
	query   []byte
	replyCh chan<- CommandReply
}

type rmsgSyncRevision struct {
	historyID rsmlog.HistoryID
	seqno     int64
	timeout   time.Duration
	replyCh   chan<- error
}

type rmsgSyncRevisionTimeout struct {
	req *syncRevisionRequest
}

type rmsgGetAppliedRevision struct {
	kind    RevisionKind
	replyCh chan<- revisionResult
}

type rmsgTerm struct {
	event TermEvent
}

type rmsgMetadata struct {
	meta rsmlog.Metadata
}

// rmsgEntries is posted by the reader subprocess with the next contiguous
// batch of committed entries, or a fatal err if the read itself failed.
type rmsgEntries struct {
	entries   []rsmlog.LogEntry
	highSeqno int64
	err       error
}

type rmsgSyncQuorumResult struct {
	ref uint64
	ok  bool
}

type rmsgStatus struct{ replyCh chan<- Status }

// rmsgHistoryChanged is posted by the reader when the local agent's history
// no longer matches the one this runtime last applied against (a branch or
// a term-establish reset happened underneath it).
type rmsgHistoryChanged struct {
	historyID rsmlog.HistoryID
}

func (rmsgStop) isRmsg()                 {}
func (rmsgCommand) isRmsg()              {}
func (rmsgQuery) isRmsg()                {}
func (rmsgSyncRevision) isRmsg()         {}
func (rmsgSyncRevisionTimeout) isRmsg()  {}
func (rmsgGetAppliedRevision) isRmsg()   {}
func (rmsgTerm) isRmsg()                 {}
func (rmsgMetadata) isRmsg()             {}
func (rmsgEntries) isRmsg()              {}
func (rmsgSyncQuorumResult) isRmsg()     {}
func (rmsgHistoryChanged) isRmsg()       {}
func (rmsgStatus) isRmsg()               {}
