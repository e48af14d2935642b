// Package proposer implements the leader-side log-replication state machine
// (spec.md §4.4 / C4): term establishment, replication, commit advancement,
// configuration transitions, and branch (quorum-failover) resolution.
//
// It is grounded on the teacher's raft.Node — a single-threaded actor driven
// by a run loop that dispatches to per-state handlers — generalized from a
// fixed-majority quorum to the joint-quorum algebra of internal/quorum, and
// from a single log to the (historyId, term, seqno) revision model of
// internal/rsmlog.
package proposer

import (
	"context"
	"log/slog"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/quorum"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// Proposer is a single leader incarnation for (historyID, term). It runs
// entirely on the goroutine that calls Run; every other method only enqueues
// a message onto its mailbox.
type Proposer struct {
	self      string
	historyID rsmlog.HistoryID
	term      rsmlog.Term

	local      agent.Local
	dispatcher agent.Dispatcher
	liveness   Liveness
	server     Server
	logger     *slog.Logger
	metrics    Metrics
	tracer     oteltrace.Tracer
	opts       Options

	newTimer  timerFactory
	newTicker tickerFactory

	msgs chan msg
	done chan struct{}
	err  *StopError

	config         rsmlog.Config
	configRevision rsmlog.Revision
	transition     *rsmlog.Transition
	pendingBranch  *rsmlog.Branch

	peerTable   *PeerTable
	pending     *PendingQueue
	gen         map[string]uint64
	peerHandles map[string]agent.PeerAgent

	committedSeqno   int64
	highSeqno        int64
	pendingHighSeqno int64

	configChangeFrom Ref
	postponed        []casRequest

	sync *syncTracker
}

// New builds a Proposer for (historyID, term); call Run to start it. tracer
// may be nil, in which case replication spans are no-ops (the same
// nil-tracer-safe pattern internal/kvmachine.New uses).
func New(self string, historyID rsmlog.HistoryID, term rsmlog.Term, local agent.Local, dispatcher agent.Dispatcher, liveness Liveness, server Server, logger *slog.Logger, metrics Metrics, tracer oteltrace.Tracer, opts Options) *Proposer {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("proposer")
	}
	return &Proposer{
		self:        self,
		historyID:   historyID,
		term:        term,
		local:       local,
		dispatcher:  dispatcher,
		liveness:    liveness,
		server:      server,
		logger:      logger.With("component", "proposer", "history", string(historyID), "term", term.String()),
		metrics:     metrics,
		tracer:      tracer,
		opts:        opts,
		newTimer:    defaultTimerFactory,
		newTicker:   defaultTickerFactory,
		msgs:        make(chan msg, 256),
		done:        make(chan struct{}),
		peerTable:   NewPeerTable(),
		gen:         make(map[string]uint64),
		peerHandles: make(map[string]agent.PeerAgent),
		sync:        newSyncTracker(),
	}
}

// Done is closed once the Proposer has terminated; Err reports why.
func (p *Proposer) Done() <-chan struct{} { return p.done }

// Err reports the termination reason after Done has fired; nil before that.
func (p *Proposer) Err() *StopError { return p.err }

// Stop requests a clean shutdown, delivered as ReasonStopped.
func (p *Proposer) Stop() { p.send(msgStop{}) }

// SubmitCommands enqueues a client command batch (spec.md §4.4.1). Commands
// targeting an unknown RSM are dropped silently by the append path.
func (p *Proposer) SubmitCommands(cmds []rsmlog.RsmCommand) { p.send(msgCmds{cmds: cmds}) }

// CasConfig requests a configuration change (spec.md §4.4.3); the outcome is
// delivered via Server.ReplyRequests keyed by ref.
func (p *Proposer) CasConfig(ref Ref, expectedRevision rsmlog.Revision, newConfig rsmlog.Config) {
	p.send(msgCasConfig{casRequest{ref: ref, expectedRevision: expectedRevision, newConfig: newConfig}})
}

// SyncQuorum requests read-linearization (spec.md §4.4.6).
func (p *Proposer) SyncQuorum(ref Ref) { p.send(msgSyncQuorum{ref: ref}) }

// NodeUp/NodeDown deliver Peer Liveness events (spec.md §4.4.7).
func (p *Proposer) NodeUp(peer string)   { p.send(msgLiveness{LivenessEvent{Kind: NodeUp, Peer: peer}}) }
func (p *Proposer) NodeDown(peer string) { p.send(msgLiveness{LivenessEvent{Kind: NodeDown, Peer: peer}}) }

func (p *Proposer) send(m msg) {
	select {
	case p.msgs <- m:
	case <-p.done:
	}
}

// Run drives the Proposer to completion; it returns once Done fires.
func (p *Proposer) Run(ctx context.Context) {
	defer close(p.done)

	go func() {
		select {
		case <-p.local.Done():
			p.send(msgLocalAgentDown{})
		case <-p.done:
		}
	}()

	go func() {
		for {
			select {
			case ev, ok := <-p.liveness.Events():
				if !ok {
					return
				}
				p.send(msgLiveness{ev})
			case <-p.done:
				return
			}
		}
	}()

	meta, err := p.local.EstablishLocalTerm(ctx, p.historyID, p.term)
	if err != nil {
		p.err = stopCause(ReasonLocalEstablishTermFailed, err)
		return
	}

	p.config = meta.Config
	p.configRevision = meta.ConfigRevision
	p.transition = meta.PendingTransition
	p.pendingBranch = meta.PendingBranch
	p.committedSeqno = meta.CommittedSeqno
	p.highSeqno = meta.HighSeqno
	p.pendingHighSeqno = meta.HighSeqno
	p.pending = NewPendingQueue(meta.HighSeqno)

	q := p.effectiveQuorumLocked()
	peers := quorum.Peers(q)
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
	if !quorum.Feasible(peers, setOf(deadPeers), q) {
		p.err = stop(ReasonNoQuorum)
		return
	}

	p.metrics.IncTermEstablishStarted(string(p.historyID), p.self)
	if reason := p.runEstablishing(ctx, peers, deadPeers, q); reason != nil {
		p.metrics.IncTermEstablishLost(string(p.historyID), p.self, string(reason.Reason))
		p.err = reason
		return
	}
	p.metrics.IncTermEstablishWon(string(p.historyID), p.self)
	p.metrics.SetIsLeader(string(p.historyID), p.self, true)
	defer p.metrics.SetIsLeader(string(p.historyID), p.self, false)

	p.runProposing(ctx)
}

func (p *Proposer) effectiveQuorumLocked() *quorum.Quorum {
	switch {
	case p.pendingBranch != nil:
		return rsmlog.EffectiveQuorumBranch(*p.pendingBranch)
	case p.transition != nil:
		return rsmlog.EffectiveQuorumTransition(p.self, *p.transition)
	default:
		return rsmlog.EffectiveQuorum(p.self, p.config)
	}
}

func (p *Proposer) effectivePeersLocked() []string {
	return quorum.Peers(p.effectiveQuorumLocked())
}

func setOf(members []string) map[string]struct{} {
	return quorum.SetOf(members...)
}

// bumpGen invalidates any in-flight response for peer, implementing the
// stale-response defense of spec.md §5/§7.
func (p *Proposer) bumpGen(peer string) uint64 {
	p.gen[peer]++
	return p.gen[peer]
}

func (p *Proposer) currentGen(peer string) uint64 { return p.gen[peer] }

func (p *Proposer) peerAgent(peer string) (agent.PeerAgent, bool) {
	if h, ok := p.peerHandles[peer]; ok {
		return h, true
	}
	h, ok := p.dispatcher.Peer(peer)
	if !ok {
		return nil, false
	}
	p.peerHandles[peer] = h
	gen := p.bumpGen(peer)
	go p.watchPeerDone(peer, gen, h)
	return h, true
}

func (p *Proposer) watchPeerDone(peer string, gen uint64, h agent.PeerAgent) {
	select {
	case <-h.Done():
		p.send(msgPeerDown{peer: peer, gen: gen})
	case <-p.done:
	}
}

func (p *Proposer) dropPeerHandle(peer string) {
	if h, ok := p.peerHandles[peer]; ok {
		h.Close()
		delete(p.peerHandles, peer)
	}
	p.bumpGen(peer)
}
