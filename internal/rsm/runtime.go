package rsm

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// Runtime is one state machine's driver (spec.md §4.5 / C6). Like Proposer,
// it is a single-threaded actor: every field below is touched only from the
// goroutine running Run.
type Runtime struct {
	name string
	self string

	local  agent.Local
	server Server
	mod    Mod
	logger *slog.Logger
	metrics Metrics
	tracer oteltrace.Tracer
	opts   Options

	newTimer timerFactory

	msgs chan rmsg
	done chan struct{}
	err  error

	role role

	appliedHistoryID rsmlog.HistoryID
	appliedSeqno     int64
	availableSeqno   int64

	state any

	nextRef       uint64
	pendingClients map[uint64]pendingClient

	syncRequests []*syncRevisionRequest // kept sorted by seqno

	readerBusy bool
}

// New builds a Runtime for the named state machine. tracer may be nil, in
// which case apply spans are no-ops (the same nil-tracer-safe pattern
// internal/kvmachine.New uses).
func New(name, self string, local agent.Local, server Server, mod Mod, logger *slog.Logger, metrics Metrics, tracer oteltrace.Tracer, opts Options) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("rsm")
	}
	return &Runtime{
		name:           name,
		self:           self,
		local:          local,
		server:         server,
		mod:            mod,
		logger:         logger.With("component", "rsm", "name", name),
		metrics:        metrics,
		tracer:         tracer,
		opts:           opts,
		newTimer:       defaultTimerFactory,
		msgs:           make(chan rmsg, 256),
		done:           make(chan struct{}),
		pendingClients: make(map[uint64]pendingClient),
	}
}

// Done is closed when Run returns; Err reports why (nil for a clean Stop).
func (r *Runtime) Done() <-chan struct{} { return r.done }
func (r *Runtime) Err() error            { return r.err }

func (r *Runtime) send(m rmsg) {
	select {
	case r.msgs <- m:
	case <-r.done:
	}
}

// Stop requests a clean shutdown.
func (r *Runtime) Stop() { r.send(rmsgStop{}) }

// Command submits a client command (spec.md §4.5's Command protocol). The
// reply arrives on the returned channel exactly once.
func (r *Runtime) Command(cmd []byte) <-chan CommandReply {
	ch := make(chan CommandReply, 1)
	r.send(rmsgCommand{cmd: cmd, replyCh: ch})
	return ch
}

// Query dispatches a read-only query to the mod on any role.
func (r *Runtime) Query(query []byte) <-chan CommandReply {
	ch := make(chan CommandReply, 1)
	r.send(rmsgQuery{query: query, replyCh: ch})
	return ch
}

// SyncRevision blocks (via the returned channel) until seqno within
// historyID has been applied, or the timeout/history-mismatch fires. A zero
// timeout waits forever.
func (r *Runtime) SyncRevision(historyID rsmlog.HistoryID, seqno int64, timeout time.Duration) <-chan error {
	ch := make(chan error, 1)
	r.send(rmsgSyncRevision{historyID: historyID, seqno: seqno, timeout: timeout, replyCh: ch})
	return ch
}

// GetAppliedRevision implements spec.md §4.5's leader-only revision query.
func (r *Runtime) GetAppliedRevision(kind RevisionKind) <-chan revisionResult {
	ch := make(chan revisionResult, 1)
	r.send(rmsgGetAppliedRevision{kind: kind, replyCh: ch})
	return ch
}

// TermStarted/TermFinished deliver Leader Election events (spec.md §4.5).
func (r *Runtime) TermStarted(historyID rsmlog.HistoryID, term rsmlog.Term, highSeqno int64) {
	r.send(rmsgTerm{event: TermEvent{Started: true, HistoryID: historyID, Term: term, HighSeqno: highSeqno}})
}
func (r *Runtime) TermFinished(historyID rsmlog.HistoryID, term rsmlog.Term) {
	r.send(rmsgTerm{event: TermEvent{Started: false, HistoryID: historyID, Term: term}})
}

// NotifyMetadata delivers a fresh Agent metadata snapshot, advancing
// availableSeqno (spec.md §4.5 "From Agent: metadata(meta) when commit
// advances").
func (r *Runtime) NotifyMetadata(meta rsmlog.Metadata) {
	r.send(rmsgMetadata{meta: meta})
}

// SyncQuorumResult delivers the eventual outcome of a SyncQuorum call this
// runtime made through Server, keyed by the ref Server was given.
func (r *Runtime) SyncQuorumResult(ref uint64, ok bool) {
	r.send(rmsgSyncQuorumResult{ref: ref, ok: ok})
}

type revisionResult struct {
	Revision rsmlog.External
	Err      error
}

// Run drives the Runtime until Stop is called or a fatal error occurs.
func (r *Runtime) Run(ctx context.Context) {
	defer close(r.done)

	state, err := r.mod.Init()
	if err != nil {
		r.err = err
		return
	}
	r.state = state

	meta, err := r.local.GetMetadata(ctx)
	if err == nil {
		r.appliedHistoryID = meta.HistoryID
		r.availableSeqno = meta.CommittedSeqno
	}
	r.server.AnnounceTerm()
	r.maybeStartReader(ctx)

	for {
		select {
		case <-ctx.Done():
			r.err = ctx.Err()
			return
		case m := <-r.msgs:
			if stop := r.dispatch(ctx, m); stop {
				return
			}
		}
	}
}

func (r *Runtime) dispatch(ctx context.Context, m rmsg) (stop bool) {
	switch e := m.(type) {
	case rmsgStop:
		r.mod.Terminate(r.state)
		return true

	case rmsgCommand:
		r.handleCommand(e)

	case rmsgQuery:
		reply, err := r.mod.HandleQuery(r.state, e.query)
		e.replyCh <- CommandReply{Reply: reply, Err: err}

	case rmsgSyncRevision:
		r.handleSyncRevision(e)

	case rmsgSyncRevisionTimeout:
		r.handleSyncRevisionTimeout(e.req)

	case rmsgGetAppliedRevision:
		r.handleGetAppliedRevision(e)

	case rmsgTerm:
		r.handleTerm(e.event)

	case rmsgMetadata:
		if e.meta.CommittedSeqno > r.availableSeqno {
			r.availableSeqno = e.meta.CommittedSeqno
		}
		r.maybeStartReader(ctx)

	case rmsgEntries:
		r.readerBusy = false
		if e.err != nil {
			r.logger.Error("reader subprocess died", "error", e.err)
			r.err = e.err
			r.mod.Terminate(r.state)
			return true
		}
		r.applyBatch(ctx, e.highSeqno, e.entries)
		r.maybeStartReader(ctx)

	case rmsgSyncQuorumResult:
		if pc, ok := r.pendingClients[e.ref]; ok {
			delete(r.pendingClients, e.ref)
			if e.ok {
				pc.replyCh <- CommandReply{}
			} else {
				pc.replyCh <- CommandReply{Err: ErrNotLeader}
			}
		}

	case rmsgHistoryChanged:
		r.readerBusy = false
		r.handleHistoryChanged(ctx, e.historyID)

	case rmsgStatus:
		e.replyCh <- r.statusLocked()
		close(e.replyCh)
	}
	return false
}

// handleHistoryChanged resets applied/available bookkeeping around a branch
// switch or a fresh EstablishLocalTerm, flushing every outstanding
// syncRevisionRequest with ErrHistoryMismatch (spec.md §4.5) since none of
// them can be satisfied by the old history anymore.
func (r *Runtime) handleHistoryChanged(ctx context.Context, historyID rsmlog.HistoryID) {
	for _, req := range r.syncRequests {
		if req.timer != nil {
			req.timer.Stop()
		}
		req.replyCh <- ErrHistoryMismatch
	}
	r.syncRequests = nil

	meta, err := r.local.GetMetadata(ctx)
	if err != nil {
		r.logger.Error("failed to refresh metadata after history change", "error", err)
		return
	}
	r.mod.Terminate(r.state)
	state, err := r.mod.Init()
	if err != nil {
		r.err = err
		return
	}
	r.state = state
	r.appliedHistoryID = meta.HistoryID
	r.appliedSeqno = 0
	r.availableSeqno = meta.CommittedSeqno
	_ = historyID
	r.maybeStartReader(ctx)
}

// applyBatch feeds a contiguous run of newly-available entries through the
// mod in order, advancing appliedSeqno one entry at a time so that a
// mid-batch failure still leaves appliedSeqno at the last entry actually
// applied. Transition entries carry no payload for this state machine;
// RsmCommand entries addressed to a different named state machine are
// skipped (spec.md §4.5's "per-entry application filtering"). A Config
// entry whose historyId differs from currentAppliedHistoryId starts a new
// history by convention and is never itself invoked on the mod.
func (r *Runtime) applyBatch(ctx context.Context, highSeqno int64, entries []rsmlog.LogEntry) {
	_, span := r.tracer.Start(ctx, "rsm.applyBatch",
		oteltrace.WithAttributes(
			attribute.String("rsm.name", r.name),
			attribute.Int64("rsm.high_seqno", highSeqno),
			attribute.Int("rsm.entries_count", len(entries)),
		),
	)
	defer span.End()

	historyChanged := false
	for _, e := range entries {
		switch e.Kind {
		case rsmlog.EntryRsmCommand:
			if e.Command.RsmName == r.name {
				r.applyOne(e)
			}
		case rsmlog.EntryConfig:
			if e.HistoryID != r.appliedHistoryID {
				r.appliedHistoryID = e.HistoryID
				historyChanged = true
			}
		case rsmlog.EntryTransition:
			// no state-machine-visible payload
		}
		r.appliedSeqno = e.Seqno
	}
	if highSeqno > r.appliedSeqno {
		r.appliedSeqno = highSeqno
	}
	// spec.md §4.5: after the batch, drop every syncRevisionRequest whose
	// stored historyId no longer matches before resolving the rest by seqno.
	if historyChanged {
		r.flushMismatchedSyncRequests()
	}
	r.resolveSyncRequests(r.appliedSeqno)
	r.metrics.ObserveApplyBatch(r.name, len(entries))
	r.metrics.SetAppliedSeqno(r.name, r.appliedSeqno)
	span.SetAttributes(attribute.Int64("rsm.applied_seqno", r.appliedSeqno))
}

// flushMismatchedSyncRequests replies ErrHistoryMismatch to every queued
// syncRevisionRequest whose historyID no longer names appliedHistoryID.
func (r *Runtime) flushMismatchedSyncRequests() {
	kept := r.syncRequests[:0]
	for _, req := range r.syncRequests {
		if req.historyID != r.appliedHistoryID {
			if req.timer != nil {
				req.timer.Stop()
			}
			req.replyCh <- ErrHistoryMismatch
			continue
		}
		kept = append(kept, req)
	}
	r.syncRequests = kept
}

func (r *Runtime) applyOne(e rsmlog.LogEntry) {
	reply, newState, err := r.mod.ApplyCommand(r.state, e.Command.Payload, rsmlog.External{HistoryID: e.HistoryID, Seqno: e.Seqno})
	r.state = newState
	pc, ok := r.pendingClients[e.Command.ID]
	if !ok {
		return
	}
	delete(r.pendingClients, e.Command.ID)
	if !pc.term.Equal(r.role.term) || r.role.kind != roleLeader {
		// Leadership moved on since submission; termFinished already flushed
		// this client with ErrLeaderGone in the common case, but a term can
		// also be re-won before the flush races here, so double-check.
		pc.replyCh <- CommandReply{Err: ErrLeaderGone}
		return
	}
	pc.replyCh <- CommandReply{Reply: reply, Err: err}
}

// resolveSyncRequests answers every queued SyncRevision whose target seqno
// has now been reached, exploiting the ordering the queue is kept in.
func (r *Runtime) resolveSyncRequests(seqno int64) {
	i := 0
	for ; i < len(r.syncRequests); i++ {
		req := r.syncRequests[i]
		if req.seqno > seqno {
			break
		}
		if req.timer != nil {
			req.timer.Stop()
		}
		req.replyCh <- nil
	}
	r.syncRequests = r.syncRequests[i:]
}

func (r *Runtime) handleCommand(e rmsgCommand) {
	if r.role.kind != roleLeader {
		e.replyCh <- CommandReply{Err: ErrNotLeader}
		return
	}
	decision, err := r.mod.HandleCommand(r.state, e.cmd)
	if err != nil {
		e.replyCh <- CommandReply{Err: err}
		return
	}
	if !decision.Apply {
		e.replyCh <- CommandReply{Reply: decision.Reply}
		return
	}
	r.nextRef++
	ref := r.nextRef
	r.pendingClients[ref] = pendingClient{ref: ref, replyCh: e.replyCh, term: r.role.term}
	r.server.RsmCommand(r.role.historyID, r.role.term, r.name, ref, decision.Payload)
}

func (r *Runtime) handleSyncRevision(e rmsgSyncRevision) {
	if e.historyID != r.appliedHistoryID {
		e.replyCh <- ErrHistoryMismatch
		return
	}
	if e.seqno <= r.appliedSeqno {
		e.replyCh <- nil
		return
	}
	req := &syncRevisionRequest{seqno: e.seqno, historyID: e.historyID, replyCh: e.replyCh}
	if e.timeout > 0 {
		t := r.newTimer(e.timeout)
		req.timer = t
		go func() {
			select {
			case <-t.C():
				r.send(rmsgSyncRevisionTimeout{req: req})
			case <-r.done:
			}
		}()
	}
	r.syncRequests = append(r.syncRequests, req)
	sort.Slice(r.syncRequests, func(i, j int) bool { return r.syncRequests[i].seqno < r.syncRequests[j].seqno })
}

func (r *Runtime) handleSyncRevisionTimeout(req *syncRevisionRequest) {
	for i, s := range r.syncRequests {
		if s == req {
			r.syncRequests = append(r.syncRequests[:i], r.syncRequests[i+1:]...)
			r.metrics.IncSyncRevisionTimeout(r.name)
			req.replyCh <- ErrTimeout
			return
		}
	}
	// Already resolved by an apply; timeout delivery is idempotent no-op.
}

func (r *Runtime) handleGetAppliedRevision(e rmsgGetAppliedRevision) {
	if r.role.kind != roleLeader {
		e.replyCh <- revisionResult{Err: ErrNotLeader}
		return
	}
	seqno := r.appliedSeqno
	if r.role.termSeqno > seqno {
		seqno = r.role.termSeqno
	}
	rev := rsmlog.External{HistoryID: r.role.historyID, Seqno: seqno}
	if e.kind == RevisionLeader {
		e.replyCh <- revisionResult{Revision: rev}
		return
	}

	r.nextRef++
	ref := r.nextRef
	forward := make(chan CommandReply, 1)
	r.pendingClients[ref] = pendingClient{ref: ref, replyCh: forward, term: r.role.term}
	r.server.SyncQuorum(ref, r.role.historyID, r.role.term)
	go func() {
		res := <-forward
		if res.Err != nil {
			e.replyCh <- revisionResult{Err: res.Err}
			return
		}
		e.replyCh <- revisionResult{Revision: rev}
	}()
}

func (r *Runtime) handleTerm(event TermEvent) {
	if event.Started {
		if r.role.kind == roleLeader {
			r.logger.Warn("termStarted while already leader; ignoring protocol violation")
			return
		}
		r.role = role{kind: roleLeader, historyID: event.HistoryID, term: event.Term, termSeqno: event.HighSeqno}
		r.metrics.SetIsLeader(r.name, true)
		return
	}
	if r.role.kind != roleLeader || r.role.historyID != event.HistoryID || !r.role.term.Equal(event.Term) {
		return
	}
	r.role = role{kind: roleFollower}
	r.metrics.SetIsLeader(r.name, false)
	for ref, pc := range r.pendingClients {
		pc.replyCh <- CommandReply{Err: ErrLeaderGone}
		delete(r.pendingClients, ref)
	}
}
