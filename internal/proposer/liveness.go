package proposer

import "context"

// handleLiveness implements the Proposing half of spec.md §4.4.7.
func (p *Proposer) handleLiveness(ctx context.Context, event LivenessEvent) {
	switch event.Kind {
	case NodeUp:
		if _, tracked := setOf(p.effectivePeersLocked())[event.Peer]; tracked {
			p.probe(ctx, event.Peer, "")
		}
	case NodeDown:
		// No direct action; the agent-monitor DOWN (msgPeerDown) follows.
	}
}

// handlePeerDown implements the agent-DOWN half of spec.md §4.4.7.
func (p *Proposer) handlePeerDown(peer string, gen uint64) *StopError {
	if gen != p.currentGen(peer) {
		return nil
	}
	if peer == p.self {
		return stop(ReasonAgentTerminated)
	}
	p.peerTable.Remove(peer)
	p.dropPeerHandle(peer)
	p.sync.Fail(peer)
	return nil
}

// checkPeers issues an ensureTerm position probe to any tracked, currently
// unmonitored live peer (spec.md §4.4 "Proposing — entry").
func (p *Proposer) checkPeers(ctx context.Context) {
	for _, peer := range p.peerTable.Peers() {
		if peer == p.self {
			continue
		}
		status := p.peerTable.Get(peer)
		if status == nil || status.InFlight {
			continue
		}
		p.probe(ctx, peer, "")
	}
}

// probe issues a single ensureTerm RPC, optionally tagged as a syncQuorum
// vote request.
func (p *Proposer) probe(ctx context.Context, peer string, syncRef Ref) {
	h, ok := p.peerAgent(peer)
	if !ok {
		p.send(msgPeerDown{peer: peer, gen: p.currentGen(peer)})
		return
	}
	gen := p.currentGen(peer)
	historyID, term := p.historyID, p.term
	go func() {
		highSeqno, ackedCommit, err := h.EnsureTerm(ctx, historyID, term)
		p.send(msgEnsureTermResp{peer: peer, gen: gen, highSeqno: highSeqno, ackedCommit: ackedCommit, err: err, syncRef: syncRef, isProbe: syncRef == ""})
	}()
}

func (p *Proposer) handleEnsureTermResp(e msgEnsureTermResp) {
	status := p.peerTable.Get(e.peer)
	if e.err == nil {
		if status != nil {
			if e.highSeqno > status.Acked {
				status.Acked = e.highSeqno
			}
			if e.ackedCommit > status.AckedCommit {
				status.AckedCommit = e.ackedCommit
			}
		}
		if e.syncRef != "" {
			p.sync.Vote(e.peer)
			p.resolveSyncRef(e.syncRef)
		}
		return
	}
	if e.syncRef != "" {
		p.sync.Fail(e.peer)
		p.resolveSyncRef(e.syncRef)
	}
}

// handleSyncQuorumStart implements spec.md §4.4.6.
func (p *Proposer) handleSyncQuorumStart(ctx context.Context, ref Ref) {
	peers := p.effectivePeersLocked()
	live := setOf(p.liveness.LivePeers())
	var deadPeers []string
	for _, peer := range peers {
		if peer == p.self {
			continue
		}
		if _, ok := live[peer]; !ok {
			deadPeers = append(deadPeers, peer)
		}
	}
	p.sync.Start(ref, deadPeers)
	p.sync.Vote(p.self)

	for _, peer := range peers {
		if peer == p.self {
			continue
		}
		if _, dead := setOf(deadPeers)[peer]; dead {
			continue
		}
		p.probe(ctx, peer, ref)
	}
	p.resolveSyncRef(ref)
}

func (p *Proposer) resolveSyncRef(ref Ref) {
	peers := p.effectivePeersLocked()
	q := p.effectiveQuorumLocked()
	switch p.sync.Evaluate(ref, peers, q) {
	case outcomeOk:
		p.server.ReplyRequests(p.historyID, []Reply{{Ref: ref, Value: nil}})
		p.sync.Remove(ref)
	case outcomeNoQuorum:
		p.server.ReplyRequests(p.historyID, []Reply{{Ref: ref, Value: NoQuorum{}}})
		p.sync.Remove(ref)
	case outcomePending:
	}
}

// reevaluateSyncQuorums re-checks every outstanding sync-quorum request,
// used after config changes and commit advances that may have shifted the
// effective quorum.
func (p *Proposer) reevaluateSyncQuorums(ctx context.Context) {
	for _, ref := range p.sync.Refs() {
		p.resolveSyncRef(ref)
	}
}
