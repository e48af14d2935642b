// Package election implements the Leader Election external collaborator
// (spec.md §1/§6): it decides when this node should attempt to become the
// term-holder for a history, constructs and runs a proposer.Proposer for
// that attempt, and announces the resulting term start/finish through the
// server.Central switchboard so registered RSM runtimes learn about it.
//
// It is grounded on the teacher's raft.Node candidate/follower state
// machine (internal/consensus/raft/election.go): a randomized election
// timeout races to bump the term and self-nominate, backing off on
// contention. Here "winning" means Proposer.Run reaches the Proposing
// state; the term is never voted on directly, EstablishingTerm already does
// that work inside the Proposer.
package election

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// TermSink is notified when a term attempt this Elector drove has ended.
// Term wins are announced directly by the Proposer through its own
// server.Server (ProposerReady); TermSink only needs the loss half, since
// the Elector is what knows an attempt is over and a new one is starting.
// Satisfied by *server.Central.
type TermSink interface {
	TermLost(historyID rsmlog.HistoryID, term rsmlog.Term)
}

// ProposerFactory builds a fresh Proposer for one term attempt. term.Number
// is chosen by the Elector; the factory wires up self/peers/agent/liveness
// as the caller's node configuration dictates.
type ProposerFactory func(historyID rsmlog.HistoryID, term rsmlog.Term) *proposer.Proposer

// Elector drives repeated term-establishment attempts against historyID,
// backing off with jitter between losses so contending nodes don't
// livelock.
type Elector struct {
	historyID rsmlog.HistoryID
	self      string
	sink      TermSink
	newProposer ProposerFactory
	logger    *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	mu           sync.Mutex
	lastTerm     rsmlog.Term
	current      *proposer.Proposer
	currentTerm  rsmlog.Term
	stopped      bool
}

// Options configures the backoff window between term attempts.
type Options struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// DefaultOptions returns a 150-300ms randomized backoff, matching the
// teacher's randomElectionTimeout window.
func DefaultOptions() Options {
	return Options{MinBackoff: 150 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}
}

// New builds an Elector. startTerm is the last known term; the first attempt
// uses term number startTerm.Number+1. On loss
// the Elector bumps to the highest of (its own next term, any conflicting
// term learned from the failed attempt).
func New(historyID rsmlog.HistoryID, self string, startTerm rsmlog.Term, sink TermSink, newProposer ProposerFactory, opts Options, logger *slog.Logger) *Elector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 150 * time.Millisecond
	}
	if opts.MaxBackoff <= opts.MinBackoff {
		opts.MaxBackoff = opts.MinBackoff + 150*time.Millisecond
	}
	return &Elector{
		historyID:   historyID,
		self:        self,
		sink:        sink,
		newProposer: newProposer,
		logger:      logger.With("component", "election", "history_id", string(historyID)),
		minBackoff:  opts.MinBackoff,
		maxBackoff:  opts.MaxBackoff,
		lastTerm:    startTerm,
	}
}

// Run attempts terms in sequence until ctx is cancelled or Stop is called.
func (e *Elector) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		e.mu.Lock()
		if e.stopped {
			e.mu.Unlock()
			return
		}
		term := rsmlog.Term{Number: e.lastTerm.Number + 1, LeaderID: e.self}
		e.mu.Unlock()

		e.logger.Info("attempting term", "term", term.Number, "leader_id", term.LeaderID)
		p := e.newProposer(e.historyID, term)

		e.mu.Lock()
		e.current = p
		e.currentTerm = term
		e.mu.Unlock()

		p.Run(ctx)

		e.mu.Lock()
		e.current = nil
		e.lastTerm = term
		e.mu.Unlock()

		if err := p.Err(); err != nil {
			e.logger.Info("term attempt ended", "term", term.Number, "reason", err.Reason)
			if err.Reason == proposer.ReasonConflictingTerm {
				if ct, ok := agent.AsConflictingTerm(err.Cause); ok && e.lastTerm.Less(ct.Term) {
					e.mu.Lock()
					e.lastTerm = ct.Term
					e.mu.Unlock()
				}
			}
		}
		e.sink.TermLost(e.historyID, term)

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.jitteredBackoff()):
		}
	}
}

func (e *Elector) jitteredBackoff() time.Duration {
	span := e.maxBackoff - e.minBackoff
	if span <= 0 {
		return e.minBackoff
	}
	//nolint:gosec // jitter, not security-sensitive
	return e.minBackoff + time.Duration(rand.Int63n(int64(span)))
}

// Stop asks Run to exit after the current attempt ends; it does not
// interrupt an in-flight Proposer (cancel ctx for that).
func (e *Elector) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
}

// Current returns the in-flight Proposer, if any, for admin inspection.
func (e *Elector) Current() (*proposer.Proposer, rsmlog.Term, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, e.currentTerm, e.current != nil
}
