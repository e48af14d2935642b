package proposer

import "context"

// runProposing implements the Proposing state (spec.md §4.4) until the
// Proposer terminates.
func (p *Proposer) runProposing(ctx context.Context) {
	p.server.ProposerReady(p.historyID, p.term, p.highSeqno)

	if p.pendingBranch != nil {
		p.resolveBranch(ctx)
	}
	p.maybeCompleteTransition(ctx)
	p.replicateAll(ctx)

	tick := p.newTicker(p.opts.CheckPeersInterval)
	defer tick.Stop()
	go func() {
		for {
			select {
			case _, ok := <-tick.C():
				if !ok {
					return
				}
				p.send(msgCheckPeers{})
			case <-p.done:
				return
			}
		}
	}()

	for {
		m := <-p.msgs
		switch e := m.(type) {
		case msgStop:
			p.err = stop(ReasonStopped)
			return

		case msgLocalAgentDown:
			p.err = stop(ReasonAgentTerminated)
			return

		case msgCmds:
			p.handleCommands(ctx, e.cmds)

		case msgCasConfig:
			p.handleCasConfig(ctx, e.req)

		case msgSyncQuorum:
			p.handleSyncQuorumStart(ctx, e.ref)

		case msgLiveness:
			p.handleLiveness(ctx, e.event)

		case msgPeerDown:
			if err := p.handlePeerDown(e.peer, e.gen); err != nil {
				p.err = err
				return
			}

		case msgAppendResp:
			if e.gen != p.currentGen(e.peer) {
				continue
			}
			if err := p.handleAppendResp(ctx, e.peer, e.highSeqno, e.ackedCommit, e.err); err != nil {
				p.err = err
				return
			}

		case msgEnsureTermResp:
			if e.gen != p.currentGen(e.peer) {
				continue
			}
			p.handleEnsureTermResp(e)

		case msgCheckPeers:
			p.checkPeers(ctx)

		case msgStatus:
			e.replyCh <- p.statusLocked(true)
			close(e.replyCh)

		case msgEstablishResp, msgEstablishTimeout:
			// Stale artifact of a prior EstablishingTerm attempt; ignore.
		}
	}
}
