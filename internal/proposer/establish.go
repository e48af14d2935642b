package proposer

import (
	"context"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/quorum"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// runEstablishing implements the EstablishingTerm state (spec.md §4.4). It
// returns nil once a quorum of promises has been collected, or a *StopError
// once the attempt can no longer succeed.
func (p *Proposer) runEstablishing(ctx context.Context, peers, deadPeers []string, q *quorum.Quorum) *StopError {
	votes := map[string]struct{}{p.self: {}}
	failed := setOf(deadPeers)

	// Self-vote: our own local metadata already reflects termVoted == our
	// term, so the peer-status initialization rule's first branch applies.
	p.peerTable.Reset(remoteOf(peers, p.self))
	self := p.peerTable.Ensure(p.self)
	*self = PeerStatus{Sent: p.highSeqno, SentCommit: p.committedSeqno, Acked: p.highSeqno, AckedCommit: p.committedSeqno, NeedsSync: false}

	live := make(map[string]struct{}, len(peers))
	for _, peer := range peers {
		if peer == p.self {
			continue
		}
		if _, dead := failed[peer]; dead {
			continue
		}
		live[peer] = struct{}{}
	}
	for peer := range live {
		p.broadcastEstablish(ctx, peer)
	}

	// The self-vote alone may already satisfy q (a single-voter config), in
	// which case no peer reply will ever arrive to trigger the check below.
	if quorum.HaveQuorum(votes, q) {
		return nil
	}

	timeout := p.newTimer(p.opts.EstablishTermTimeout)
	defer timeout.Stop()
	go func() {
		select {
		case <-timeout.C():
			p.send(msgEstablishTimeout{})
		case <-p.done:
		}
	}()

	var queuedCmds [][]rsmlog.RsmCommand
	var queuedCas []casRequest
	var queuedSync []Ref

	defer func() {
		for _, cmds := range queuedCmds {
			p.SubmitCommands(cmds)
		}
		for _, r := range queuedCas {
			p.CasConfig(r.ref, r.expectedRevision, r.newConfig)
		}
		for _, ref := range queuedSync {
			p.SyncQuorum(ref)
		}
	}()

	for {
		m := <-p.msgs
		switch e := m.(type) {
		case msgStop:
			return stop(ReasonStopped)

		case msgLocalAgentDown:
			return stop(ReasonAgentTerminated)

		case msgEstablishTimeout:
			return stop(ReasonEstablishTermTimeout)

		case msgLiveness:
			// Ignored while establishing: the initial peer set is fixed.

		case msgStatus:
			e.replyCh <- p.statusLocked(false)
			close(e.replyCh)

		case msgCmds:
			queuedCmds = append(queuedCmds, e.cmds)
		case msgCasConfig:
			queuedCas = append(queuedCas, e.req)
		case msgSyncQuorum:
			queuedSync = append(queuedSync, e.ref)

		case msgPeerDown:
			if e.gen != p.currentGen(e.peer) {
				continue
			}
			p.peerTable.Remove(e.peer)
			if e.peer == p.self {
				return stop(ReasonAgentTerminated)
			}
			failed[e.peer] = struct{}{}
			if !quorum.Feasible(peers, failed, q) {
				return stop(ReasonNoQuorum)
			}

		case msgEstablishResp:
			if e.gen != p.currentGen(e.peer) {
				continue
			}
			if e.err == nil {
				p.initPeerStatusFromPromise(e.peer, e.meta)
				votes[e.peer] = struct{}{}
				if e.meta.CommittedSeqno > p.committedSeqno {
					p.committedSeqno = e.meta.CommittedSeqno
				}
			} else if behind, ok := agent.AsBehind(e.err); ok {
				_ = behind
				failed[e.peer] = struct{}{}
			} else if ct, ok := agent.AsConflictingTerm(e.err); ok {
				return stopPeer(ReasonConflictingTerm, e.peer, ct)
			} else if hm, ok := agent.AsHistoryMismatch(e.err); ok {
				return stopPeer(ReasonHistoryMismatch, e.peer, hm)
			} else {
				return stopPeer(ReasonUnexpectedError, e.peer, e.err)
			}

			if quorum.HaveQuorum(votes, q) {
				return nil
			}
			if !quorum.Feasible(peers, failed, q) {
				return stop(ReasonNoQuorum)
			}

		default:
			// Append/ensureTerm responses can't arrive before Proposing.
		}
	}
}

// initPeerStatusFromPromise applies spec.md §4.4's peer-status
// initialization rule.
func (p *Proposer) initPeerStatusFromPromise(peer string, meta rsmlog.Metadata) {
	status := p.peerTable.Ensure(peer)
	if meta.TermVoted.Equal(p.term) {
		*status = PeerStatus{
			Sent:        meta.HighSeqno,
			SentCommit:  meta.CommittedSeqno,
			Acked:       meta.HighSeqno,
			AckedCommit: meta.CommittedSeqno,
			NeedsSync:   false,
		}
		return
	}
	*status = PeerStatus{
		Sent:        meta.CommittedSeqno,
		SentCommit:  meta.CommittedSeqno,
		Acked:       meta.CommittedSeqno,
		AckedCommit: meta.CommittedSeqno,
		NeedsSync:   meta.HighSeqno > meta.CommittedSeqno,
	}
}

func (p *Proposer) broadcastEstablish(ctx context.Context, peer string) {
	h, ok := p.peerAgent(peer)
	if !ok {
		p.send(msgPeerDown{peer: peer, gen: p.currentGen(peer)})
		return
	}
	gen := p.currentGen(peer)
	historyID, term, logPosition := p.historyID, p.term, p.highSeqno
	go func() {
		meta, err := h.EstablishTerm(ctx, historyID, term, logPosition)
		p.send(msgEstablishResp{peer: peer, gen: gen, meta: meta, err: err})
	}()
}

func remoteOf(peers []string, self string) []string {
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		if p != self {
			out = append(out, p)
		}
	}
	return out
}
