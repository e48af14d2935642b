// Package liveness implements the Peer Liveness external collaborator
// (spec.md §1/§6): it emits nodeup/nodedown events and answers
// get_live_peers, satisfying proposer.Liveness.
//
// It is grounded on the teacher's raft election timer/ticker abstraction
// (internal/consensus/raft/timers.go) — here a plain time.Ticker driving a
// fixed-interval loop — generalized from "am I still leader" to "which
// peers can I currently reach", probed concurrently the way the teacher
// fans out RequestVote to every peer in internal/consensus/raft/election.go.
package liveness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
)

// Prober checks whether peer is currently reachable. Implementations are
// expected to be cheap (a ping RPC, not a full health check) and to respect
// ctx's deadline.
type Prober func(ctx context.Context, peer string) error

// Tracker probes a fixed peer set on an interval and reports up/down
// transitions after a threshold of consecutive results, to avoid flapping
// on a single dropped probe.
type Tracker struct {
	self              string
	peers             []string
	prober            Prober
	interval          time.Duration
	threshold         int
	recoveryThreshold int
	logger            *slog.Logger

	mu    sync.Mutex
	alive map[string]bool
	miss  map[string]int
	hit   map[string]int

	events chan proposer.LivenessEvent
	done   chan struct{}
}

// Options configures a Tracker.
type Options struct {
	Interval          time.Duration
	FailureThreshold  int // consecutive failed probes before declaring nodedown
	RecoveryThreshold int // consecutive successful probes before declaring nodeup
}

// DefaultOptions returns sane defaults: a 1s probe interval, 3 consecutive
// misses to go down, 2 consecutive hits to come back up (biased toward
// declaring dead fast and recovering a little more cautiously).
func DefaultOptions() Options {
	return Options{Interval: time.Second, FailureThreshold: 3, RecoveryThreshold: 2}
}

// New builds a Tracker that starts every peer as alive; probing will correct
// that within a few intervals if it's wrong.
func New(self string, peers []string, prober Prober, opts Options, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.RecoveryThreshold <= 0 {
		opts.RecoveryThreshold = 2
	}
	alive := make(map[string]bool, len(peers))
	for _, p := range peers {
		alive[p] = true
	}
	return &Tracker{
		self:              self,
		peers:             peers,
		prober:            prober,
		interval:          opts.Interval,
		threshold:         opts.FailureThreshold,
		recoveryThreshold: opts.RecoveryThreshold,
		logger:            logger.With("component", "liveness"),
		alive:             alive,
		miss:              make(map[string]int),
		hit:               make(map[string]int),
		events:            make(chan proposer.LivenessEvent, 64),
		done:              make(chan struct{}),
	}
}

// LivePeers implements proposer.Liveness.
func (t *Tracker) LivePeers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.alive)+1)
	out = append(out, t.self)
	for p, up := range t.alive {
		if up {
			out = append(out, p)
		}
	}
	return out
}

// Events implements proposer.Liveness.
func (t *Tracker) Events() <-chan proposer.LivenessEvent { return t.events }

// Run drives the probe loop until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.probeAll(ctx)
		}
	}
}

// Done is closed once Run returns.
func (t *Tracker) Done() <-chan struct{} { return t.done }

func (t *Tracker) probeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, peer := range t.peers {
		wg.Add(1)
		go func(peer string) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, t.interval)
			defer cancel()
			err := t.prober(pctx, peer)
			t.record(peer, err == nil)
		}(peer)
	}
	wg.Wait()
}

func (t *Tracker) record(peer string, ok bool) {
	t.mu.Lock()
	var ev *proposer.LivenessEvent
	if ok {
		t.miss[peer] = 0
		t.hit[peer]++
		if !t.alive[peer] && t.hit[peer] >= t.recoveryThreshold {
			t.alive[peer] = true
			ev = &proposer.LivenessEvent{Kind: proposer.NodeUp, Peer: peer}
		}
	} else {
		t.hit[peer] = 0
		t.miss[peer]++
		if t.alive[peer] && t.miss[peer] >= t.threshold {
			t.alive[peer] = false
			ev = &proposer.LivenessEvent{Kind: proposer.NodeDown, Peer: peer}
		}
	}
	t.mu.Unlock()

	if ev != nil {
		t.logger.Info("peer liveness transition", "peer", peer, "up", ok)
		select {
		case t.events <- *ev:
		default:
			t.logger.Warn("liveness event dropped, channel full", "peer", peer)
		}
	}
}
