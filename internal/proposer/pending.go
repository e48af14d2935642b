package proposer

import "github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"

// PendingQueue is the leader's in-memory FIFO of recently-generated entries
// (spec.md §4.3 / C3), letting the proposer hand a lagging-but-not-too-far
// peer its backlog directly instead of round-tripping through the local
// Agent's GetLog on every heartbeat. It holds a contiguous seqno range
// (base, base+len]; anything older has been dropped and must be fetched via
// GetLog, which is exactly when a peer's needsSync flag is set.
type PendingQueue struct {
	base    int64 // seqno immediately before the first queued entry
	entries []rsmlog.LogEntry
}

// NewPendingQueue starts an empty queue positioned at base.
func NewPendingQueue(base int64) *PendingQueue {
	return &PendingQueue{base: base}
}

// Push appends e, which must carry seqno == q.base+len(q.entries)+1.
func (q *PendingQueue) Push(e rsmlog.LogEntry) {
	q.entries = append(q.entries, e.Clone())
}

// HighSeqno returns the seqno of the last queued entry, or base if empty.
func (q *PendingQueue) HighSeqno() int64 {
	return q.base + int64(len(q.entries))
}

// Base returns the seqno before the oldest queued entry.
func (q *PendingQueue) Base() int64 { return q.base }

// TakeFold returns up to maxBatch entries with seqno in (fromSeqno, ...],
// folded into a fresh slice safe for the caller to mutate. ok is false when
// fromSeqno predates the queue's base, meaning the caller must instead
// backfill via the local Agent's GetLog.
func (q *PendingQueue) TakeFold(fromSeqno int64, maxBatch int) (out []rsmlog.LogEntry, ok bool) {
	if fromSeqno < q.base {
		return nil, false
	}
	start := int(fromSeqno - q.base)
	if start >= len(q.entries) {
		return nil, true
	}
	end := len(q.entries)
	if maxBatch > 0 && start+maxBatch < end {
		end = start + maxBatch
	}
	out = make([]rsmlog.LogEntry, 0, end-start)
	for _, e := range q.entries[start:end] {
		out = append(out, e.Clone())
	}
	return out, true
}

// DropWhile advances the queue's base up to seqno, discarding entries every
// live peer (and the local agent) is already known to hold durably. It is a
// no-op if seqno <= q.base.
func (q *PendingQueue) DropWhile(seqno int64) {
	if seqno <= q.base {
		return
	}
	if seqno > q.HighSeqno() {
		seqno = q.HighSeqno()
	}
	drop := int(seqno - q.base)
	q.entries = q.entries[drop:]
	q.base = seqno
}

// Reset clears the queue and repositions its base, used when a new term
// begins.
func (q *PendingQueue) Reset(base int64) {
	q.base = base
	q.entries = nil
}
