package proposer

import (
	"context"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// configCommitted reports whether the currently active config/transition
// entry has itself been committed.
func (p *Proposer) configCommitted() bool {
	return p.configRevision.Seqno <= p.committedSeqno
}

// handleCasConfig implements CAS-config (spec.md §4.4.3).
func (p *Proposer) handleCasConfig(ctx context.Context, req casRequest) {
	if p.transition != nil || !p.configCommitted() {
		p.postponed = append(p.postponed, req)
		return
	}
	if req.expectedRevision != p.configRevision {
		p.metrics.IncConfigChangeRejected(string(p.historyID), p.self, "revision_mismatch")
		p.server.ReplyRequests(p.historyID, []Reply{{Ref: req.ref, Value: CasFailed{Current: p.configRevision}}})
		return
	}
	p.configChangeFrom = req.ref
	p.proposeEntry(ctx, rsmlog.EntryTransition, rsmlog.Config{}, rsmlog.Transition{Current: p.config, Future: req.newConfig})
}

// maybeCompleteTransition implements post-commit housekeeping (a): once a
// Transition entry commits, propose its future Config (spec.md §4.4.5).
func (p *Proposer) maybeCompleteTransition(ctx context.Context) {
	if p.transition == nil || !p.configCommitted() {
		return
	}
	future := p.transition.Future
	p.proposeEntry(ctx, rsmlog.EntryConfig, future, rsmlog.Transition{})
}

// postCommitHousekeeping runs the full spec.md §4.4.5 sequence after every
// commit advance.
func (p *Proposer) postCommitHousekeeping(ctx context.Context) {
	p.maybeClearBranch()
	p.maybeCompleteTransition(ctx)

	if p.transition == nil && p.configChangeFrom != "" && p.configCommitted() {
		p.server.ReplyRequests(p.historyID, []Reply{{Ref: p.configChangeFrom, Value: Ok{Revision: p.configRevision}}})
		p.configChangeFrom = ""
	}

	p.replayPostponed(ctx)
}

func (p *Proposer) replayPostponed(ctx context.Context) {
	if len(p.postponed) == 0 || p.transition != nil || !p.configCommitted() {
		return
	}
	pending := p.postponed
	p.postponed = nil
	for _, req := range pending {
		p.handleCasConfig(ctx, req)
	}
}
