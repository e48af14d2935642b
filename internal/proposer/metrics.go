package proposer

import "time"

// Metrics captures proposer-layer metric sinks, adapted from the teacher's
// raft.Metrics for the establish/replicate/commit/branch vocabulary of
// spec.md §4.
type Metrics interface {
	IncTermEstablishStarted(historyID, self string)
	IncTermEstablishWon(historyID, self string)
	IncTermEstablishLost(historyID, self, reason string)
	ObserveAppendRPCDuration(historyID, self, peer string, d time.Duration)
	IncAppendRPCError(historyID, self, peer, kind string)
	SetCommittedSeqno(historyID, self string, seqno int64)
	SetAppendedSeqno(historyID, self string, seqno int64)
	IncBranchResolutionStarted(historyID, self string)
	IncBranchResolutionCompleted(historyID, self string)
	IncConfigChangeRejected(historyID, self, reason string)
	SetIsLeader(historyID, self string, leader bool)
}

type noopMetrics struct{}

func (noopMetrics) IncTermEstablishStarted(string, string)                 {}
func (noopMetrics) IncTermEstablishWon(string, string)                     {}
func (noopMetrics) IncTermEstablishLost(string, string, string)            {}
func (noopMetrics) ObserveAppendRPCDuration(string, string, string, time.Duration) {}
func (noopMetrics) IncAppendRPCError(string, string, string, string)       {}
func (noopMetrics) SetCommittedSeqno(string, string, int64)                {}
func (noopMetrics) SetAppendedSeqno(string, string, int64)                 {}
func (noopMetrics) IncBranchResolutionStarted(string, string)              {}
func (noopMetrics) IncBranchResolutionCompleted(string, string)            {}
func (noopMetrics) IncConfigChangeRejected(string, string, string)         {}
func (noopMetrics) SetIsLeader(string, string, bool)                       {}
