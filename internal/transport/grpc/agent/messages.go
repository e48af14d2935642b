package agentgrpc

import "github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"

// EstablishTermRequest/Response wire the Agent's establishTerm RPC
// (spec.md §6).
type EstablishTermRequest struct {
	HistoryID   rsmlog.HistoryID
	Term        rsmlog.Term
	LogPosition int64
}

type EstablishTermResponse struct {
	Metadata rsmlog.Metadata
	Error    *ErrorEnvelope `json:",omitempty"`
}

// AppendRequest/Response wire the Agent's append RPC.
type AppendRequest struct {
	HistoryID      rsmlog.HistoryID
	Term           rsmlog.Term
	CommittedSeqno int64
	Entries        []rsmlog.LogEntry
}

type AppendResponse struct {
	HighSeqno         int64
	AckedCommitSeqno  int64
	Error             *ErrorEnvelope `json:",omitempty"`
}

// EnsureTermRequest/Response wire the Agent's ensureTerm RPC.
type EnsureTermRequest struct {
	HistoryID rsmlog.HistoryID
	Term      rsmlog.Term
}

type EnsureTermResponse struct {
	HighSeqno        int64
	AckedCommitSeqno int64
	Error            *ErrorEnvelope `json:",omitempty"`
}
