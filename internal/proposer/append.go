package proposer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// handleCommands implements the append path (spec.md §4.4.1).
func (p *Proposer) handleCommands(ctx context.Context, cmds []rsmlog.RsmCommand) {
	for _, cmd := range cmds {
		if _, ok := p.config.StateMachines[cmd.RsmName]; !ok {
			p.logger.Warn("dropping command for unknown state machine", "rsm", cmd.RsmName)
			continue
		}
		p.pendingHighSeqno++
		p.pending.Push(rsmlog.LogEntry{
			HistoryID: p.historyID,
			Term:      p.term,
			Seqno:     p.pendingHighSeqno,
			Kind:      rsmlog.EntryRsmCommand,
			Command:   cmd,
		})
	}
	p.replicateAll(ctx)
}

// proposeEntry appends a single Config/Transition entry at the next seqno
// and replicates it, used by CAS-config, transition completion, and branch
// resolution.
func (p *Proposer) proposeEntry(ctx context.Context, kind rsmlog.EntryKind, cfg rsmlog.Config, tr rsmlog.Transition) rsmlog.LogEntry {
	p.pendingHighSeqno++
	entry := rsmlog.LogEntry{
		HistoryID:  p.historyID,
		Term:       p.term,
		Seqno:      p.pendingHighSeqno,
		Kind:       kind,
		Config:     cfg,
		Transition: tr,
	}
	p.pending.Push(entry)
	p.configRevision = entry.Revision()
	if kind == rsmlog.EntryTransition {
		t := tr
		p.transition = &t
	} else {
		p.config = cfg
		p.transition = nil
	}
	p.reconcilePeerTable()
	p.replicateAll(ctx)
	return entry
}

// reconcilePeerTable adds a conservative row for any newly-required peer and
// drops rows for peers no longer in the effective configuration.
func (p *Proposer) reconcilePeerTable() {
	want := setOf(p.effectivePeersLocked())
	for peer := range want {
		if peer == p.self {
			continue
		}
		p.peerTable.Ensure(peer)
	}
	for _, peer := range p.peerTable.Peers() {
		if peer == p.self {
			continue
		}
		if _, ok := want[peer]; !ok {
			p.peerTable.Remove(peer)
			p.dropPeerHandle(peer)
		}
	}
}

// replicateAll replicates to every peer tracked in the peer table (spec.md
// §4.4.1). Peers no longer part of the effective configuration are still
// replicated to until membership is fully adopted; joining/removed peers are
// reconciled by the effective-quorum recomputation on each config change.
func (p *Proposer) replicateAll(ctx context.Context) {
	for _, peer := range p.peerTable.Peers() {
		p.replicateOne(ctx, peer)
	}
}

func (p *Proposer) replicateOne(ctx context.Context, peer string) {
	status := p.peerTable.Get(peer)
	if status == nil || status.InFlight {
		return
	}
	if !(status.NeedsSync || p.pendingHighSeqno > status.Sent || p.committedSeqno > status.SentCommit) {
		return
	}

	fromSeqno := status.Sent
	toSeqno := p.pendingHighSeqno
	entries, ok := p.pending.TakeFold(fromSeqno, p.opts.MaxAppendBatch)
	if !ok {
		fetched, err := p.local.GetLog(ctx, p.historyID, p.term, fromSeqno, toSeqno)
		if err != nil {
			p.logger.Error("backfill getLog failed", "peer", peer, "error", err)
			return
		}
		entries = fetched
	}

	newSent := status.Sent
	if len(entries) > 0 {
		newSent = entries[len(entries)-1].Seqno
	}
	committedSeqno := p.committedSeqno
	status.InFlight = true
	status.Sent = newSent
	status.SentCommit = committedSeqno
	status.NeedsSync = false

	if peer == p.self {
		p.deliverLocalAppend(ctx, historyIDTermOf(p), committedSeqno, entries)
		return
	}
	h, ok := p.peerAgent(peer)
	if !ok {
		p.send(msgPeerDown{peer: peer, gen: p.currentGen(peer)})
		return
	}
	gen := p.currentGen(peer)
	historyID, term := p.historyID, p.term
	self, metrics := p.self, p.metrics
	spanCtx, span := p.tracer.Start(ctx, "proposer.replicateOne",
		oteltrace.WithAttributes(
			attribute.String("proposer.history_id", string(historyID)),
			attribute.String("proposer.peer", peer),
			attribute.Int64("proposer.term", term.Number),
			attribute.Int("proposer.entries_count", len(entries)),
			attribute.Int64("proposer.committed_seqno", committedSeqno),
		),
	)
	go func() {
		defer span.End()
		rpcStart := time.Now()
		highSeqno, ackedCommit, err := h.Append(spanCtx, historyID, term, committedSeqno, entries)
		metrics.ObserveAppendRPCDuration(string(historyID), self, peer, time.Since(rpcStart))
		if err != nil {
			metrics.IncAppendRPCError(string(historyID), self, peer, appendRPCErrorKind(err))
			recordSpanError(span, err)
		} else {
			span.SetAttributes(
				attribute.Int64("proposer.high_seqno", highSeqno),
				attribute.Int64("proposer.acked_commit_seqno", ackedCommit),
			)
		}
		p.send(msgAppendResp{peer: peer, gen: gen, highSeqno: highSeqno, ackedCommit: ackedCommit, err: err})
	}()
}

// appendRPCErrorKind classifies an outbound append RPC failure for the
// append_rpc_error_total series, mirroring the teacher's
// appendEntriesRPCErrorKind.
func appendRPCErrorKind(err error) string {
	if err == nil {
		return "unknown"
	}
	if _, ok := agent.AsConflictingTerm(err); ok {
		return "conflicting_term"
	}
	if _, ok := agent.AsHistoryMismatch(err); ok {
		return "history_mismatch"
	}
	if _, ok := agent.AsMissingEntries(err); ok {
		return "missing_entries"
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.DeadlineExceeded:
			return "deadline_exceeded"
		case codes.Unavailable:
			return "unavailable"
		default:
			return s.Code().String()
		}
	}
	return "transport"
}

type historyTerm struct {
	historyID rsmlog.HistoryID
	term      rsmlog.Term
}

func historyIDTermOf(p *Proposer) historyTerm {
	return historyTerm{historyID: p.historyID, term: p.term}
}

// deliverLocalAppend performs the leader's own vote as a direct (synchronous
// enough) call to the local agent, still posted back through the mailbox so
// commit advancement only ever runs on the run loop.
func (p *Proposer) deliverLocalAppend(ctx context.Context, ht historyTerm, committedSeqno int64, entries []rsmlog.LogEntry) {
	go func() {
		highSeqno, ackedCommit, err := p.local.Append(ctx, ht.historyID, ht.term, committedSeqno, entries)
		p.send(msgAppendResp{peer: p.self, gen: p.currentGen(p.self), highSeqno: highSeqno, ackedCommit: ackedCommit, err: err})
	}()
}

// handleAppendResp implements commit advancement (spec.md §4.4.2).
func (p *Proposer) handleAppendResp(ctx context.Context, peer string, highSeqno, ackedCommit int64, err error) *StopError {
	_, span := p.tracer.Start(ctx, "proposer.handleAppendResp",
		oteltrace.WithAttributes(
			attribute.String("proposer.history_id", string(p.historyID)),
			attribute.String("proposer.peer", peer),
			attribute.Int64("proposer.high_seqno", highSeqno),
			attribute.Int64("proposer.acked_commit_seqno", ackedCommit),
		),
	)
	defer span.End()
	recordSpanError(span, err)

	status := p.peerTable.Get(peer)
	if status == nil {
		return nil
	}
	status.InFlight = false

	if err != nil {
		if _, ok := agent.AsConflictingTerm(err); ok {
			return stopPeer(ReasonConflictingTerm, peer, err)
		}
		if _, ok := agent.AsHistoryMismatch(err); ok {
			return stopPeer(ReasonHistoryMismatch, peer, err)
		}
		if me, ok := agent.AsMissingEntries(err); ok {
			p.initPeerStatusFromPromise(peer, me.Metadata)
			p.replicateOne(ctx, peer)
			return nil
		}
		return stopPeer(ReasonUnexpectedError, peer, err)
	}

	if highSeqno > status.Acked {
		status.Acked = highSeqno
	}
	if ackedCommit > status.AckedCommit {
		status.AckedCommit = ackedCommit
	}
	if peer == p.self && status.Acked > p.highSeqno {
		p.highSeqno = status.Acked
	}

	q := p.effectiveQuorumLocked()
	deduced := p.peerTable.DeduceCommit(p.committedSeqno, q)
	if deduced > p.committedSeqno {
		p.committedSeqno = deduced
		if p.committedSeqno > p.highSeqno {
			p.highSeqno = p.committedSeqno
		}
		p.pending.DropWhile(p.committedSeqno)
		p.metrics.SetCommittedSeqno(string(p.historyID), p.self, p.committedSeqno)
		span.SetAttributes(attribute.Int64("proposer.committed_seqno", p.committedSeqno))
		p.postCommitHousekeeping(ctx)
	}
	p.metrics.SetAppendedSeqno(string(p.historyID), p.self, status.Acked)

	p.replicateOne(ctx, peer)
	p.reevaluateSyncQuorums(ctx)
	return nil
}
