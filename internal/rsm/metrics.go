package rsm

// Metrics is the observability seam for a Runtime, mirroring the proposer
// package's Metrics interface so both can be backed by the same Prometheus
// registry.
type Metrics interface {
	SetIsLeader(name string, isLeader bool)
	ObserveApplyBatch(name string, entries int)
	SetAppliedSeqno(name string, seqno int64)
	IncSyncRevisionTimeout(name string)
}

type noopMetrics struct{}

func (noopMetrics) SetIsLeader(string, bool)          {}
func (noopMetrics) ObserveApplyBatch(string, int)     {}
func (noopMetrics) SetAppliedSeqno(string, int64)     {}
func (noopMetrics) IncSyncRevisionTimeout(string)     {}
