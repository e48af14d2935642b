package proposer

import (
	"context"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// historyAdopter is implemented by Local agents that can be switched onto a
// new history (e.g. *agent.MemoryAgent's AdoptHistory), used by resolveBranch
// to adopt a branch's history before force-proposing under it. Not every
// conceivable Local implementation needs to support this, so it is probed
// with a type assertion rather than added to agent.Local.
type historyAdopter interface {
	AdoptHistory(rsmlog.HistoryID)
}

// resolveBranch implements quorum-failover resolution (spec.md §4.4.4). It
// runs once, on entering Proposing, when the local metadata carried a
// pendingBranch. Correctness rests on the external invariant that branch
// creation itself required unanimous agreement among the survivors named in
// branch.Peers, so nothing truncated here could have been committed.
//
// A branch names the history the survivors are failing over to
// (branch.HistoryID); by convention only a Config entry may start a new
// history, so the forced Config entry proposed here is stamped with it. The
// local agent must adopt that history before the entry can be appended
// locally, mirroring the same external convention SetPendingBranch already
// relies on.
func (p *Proposer) resolveBranch(ctx context.Context) {
	p.metrics.IncBranchResolutionStarted(string(p.historyID), p.self)

	p.highSeqno = p.committedSeqno
	p.pendingHighSeqno = p.committedSeqno
	p.pending.Reset(p.committedSeqno)
	p.transition = nil

	if p.pendingBranch.HistoryID != "" && p.pendingBranch.HistoryID != p.historyID {
		if adopter, ok := p.local.(historyAdopter); ok {
			adopter.AdoptHistory(p.pendingBranch.HistoryID)
		}
		p.historyID = p.pendingBranch.HistoryID
	}

	newConfig := p.config.Clone()
	newConfig.Voters = append([]string(nil), p.pendingBranch.Peers...)

	p.proposeEntry(ctx, rsmlog.EntryConfig, newConfig, rsmlog.Transition{})
}

// maybeClearBranch drops pendingBranch once its forced config entry has
// committed, restoring normal CAS-config-driven quorum evaluation.
func (p *Proposer) maybeClearBranch() {
	if p.pendingBranch == nil || p.transition != nil || !p.configCommitted() {
		return
	}
	p.pendingBranch = nil
	p.metrics.IncBranchResolutionCompleted(string(p.historyID), p.self)
}
