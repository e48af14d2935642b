// Package server wires a single Proposer to the named RSM runtimes it drives
// (spec.md §6): it is the "Server" external collaborator both other packages
// only ever see through an interface. proposer.Proposer calls ProposerReady
// and ReplyRequests on it; each rsm.Runtime calls RsmCommand, SyncQuorum and
// AnnounceTerm on a small per-name facade it hands out.
//
// It is grounded on the teacher's internal/app wiring, which owned the
// concrete raft.Node and handed narrower interfaces to internal/service.KV;
// here the roles are split the other way (Proposer and Runtime are peers,
// Central is the switchboard between them) because a term now drives many
// named state machines instead of one.
package server

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsm"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// runtime is the subset of *rsm.Runtime that Central needs, kept narrow so
// tests can register fakes.
type runtime interface {
	TermStarted(historyID rsmlog.HistoryID, term rsmlog.Term, highSeqno int64)
	TermFinished(historyID rsmlog.HistoryID, term rsmlog.Term)
	SyncQuorumResult(ref uint64, ok bool)
}

type activeTerm struct {
	historyID rsmlog.HistoryID
	term      rsmlog.Term
	highSeqno int64
}

type syncTarget struct {
	rsmName string
	ref     uint64
}

// Central implements proposer.Server and hands out per-RSM rsm.Server
// facades. Unlike Proposer and Runtime it is not an actor: it is called
// concurrently from the Proposer's mailbox goroutine and from every
// registered Runtime's mailbox goroutine, so its state is mutex-protected.
type Central struct {
	proposer *proposer.Proposer
	logger   *slog.Logger

	mu          sync.Mutex
	rsms        map[string]runtime
	current     *activeTerm
	casClients  map[proposer.Ref]chan<- proposer.Reply
	syncClients map[proposer.Ref]syncTarget
	nextSyncID  uint64
}

// New builds a Central with no active Proposer; SetProposer must be called
// once the Elector constructs the first term attempt, and again on every
// subsequent attempt, since a term attempt is a fresh *proposer.Proposer
// (spec.md §4.4's EstablishingTerm/Proposing lifecycle, one Proposer per
// term rather than the teacher's single long-lived raft.Node).
func New(logger *slog.Logger) *Central {
	if logger == nil {
		logger = slog.Default()
	}
	return &Central{
		logger:      logger.With("component", "server"),
		rsms:        make(map[string]runtime),
		casClients:  make(map[proposer.Ref]chan<- proposer.Reply),
		syncClients: make(map[proposer.Ref]syncTarget),
	}
}

// SetProposer installs the Proposer that SubmitCasConfig/RsmCommand/
// SyncQuorum forward to. Called by the election.ProposerFactory right after
// constructing each term attempt's Proposer.
func (c *Central) SetProposer(p *proposer.Proposer) {
	c.mu.Lock()
	c.proposer = p
	c.mu.Unlock()
}

func (c *Central) currentProposer() *proposer.Proposer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proposer
}

// Register attaches a named RSM runtime, delivering an immediate
// TermStarted if a term is already active (spec.md §4.5's AnnounceTerm
// rationale: a runtime that starts after the term was won must not miss
// it).
func (c *Central) Register(name string, rt runtime) {
	c.mu.Lock()
	c.rsms[name] = rt
	cur := c.current
	c.mu.Unlock()
	if cur != nil {
		rt.TermStarted(cur.historyID, cur.term, cur.highSeqno)
	}
}

// Facade returns the rsm.Server view of Central for the named RSM.
func (c *Central) Facade(name string) rsm.Server {
	return &rsmFacade{name: name, central: c}
}

// SubmitCasConfig proposes a configuration change on behalf of an external
// admin client, delivering the eventual Reply on the returned channel.
func (c *Central) SubmitCasConfig(expectedRevision rsmlog.Revision, newConfig rsmlog.Config) <-chan proposer.Reply {
	ch := make(chan proposer.Reply, 1)
	c.mu.Lock()
	c.nextSyncID++
	ref := proposer.Ref(fmt.Sprintf("cas:%d", c.nextSyncID))
	c.casClients[ref] = ch
	c.mu.Unlock()
	if p := c.currentProposer(); p != nil {
		p.CasConfig(ref, expectedRevision, newConfig)
	} else {
		c.mu.Lock()
		delete(c.casClients, ref)
		c.mu.Unlock()
		ch <- proposer.Reply{Ref: ref, Value: proposer.NoQuorum{}}
	}
	return ch
}

// ProposerReady implements proposer.Server.
func (c *Central) ProposerReady(historyID rsmlog.HistoryID, term rsmlog.Term, highSeqno int64) {
	c.mu.Lock()
	c.current = &activeTerm{historyID: historyID, term: term, highSeqno: highSeqno}
	rts := make([]runtime, 0, len(c.rsms))
	for _, rt := range c.rsms {
		rts = append(rts, rt)
	}
	c.mu.Unlock()
	for _, rt := range rts {
		rt.TermStarted(historyID, term, highSeqno)
	}
}

// TermLost tells every registered RSM its leadership ended, used by the
// process that owns the Proposer's lifecycle once Proposer.Run returns with
// a lost-term reason (spec.md §4.4's EstablishingTerm/Proposing exit).
func (c *Central) TermLost(historyID rsmlog.HistoryID, term rsmlog.Term) {
	c.mu.Lock()
	if c.current != nil && c.current.historyID == historyID && c.current.term.Equal(term) {
		c.current = nil
	}
	rts := make([]runtime, 0, len(c.rsms))
	for _, rt := range c.rsms {
		rts = append(rts, rt)
	}
	c.mu.Unlock()
	for _, rt := range rts {
		rt.TermFinished(historyID, term)
	}
}

// ReplyRequests implements proposer.Server, routing each reply back to
// whichever client registered its Ref: an admin CasConfig call or a
// Runtime's SyncQuorum probe.
func (c *Central) ReplyRequests(historyID rsmlog.HistoryID, replies []proposer.Reply) {
	for _, reply := range replies {
		c.mu.Lock()
		if ch, ok := c.casClients[reply.Ref]; ok {
			delete(c.casClients, reply.Ref)
			c.mu.Unlock()
			ch <- reply
			continue
		}
		if target, ok := c.syncClients[reply.Ref]; ok {
			delete(c.syncClients, reply.Ref)
			rt := c.rsms[target.rsmName]
			c.mu.Unlock()
			if rt == nil {
				continue
			}
			// A sync-quorum success carries a nil Value (proposer.Ok only
			// ever tags a CAS-config reply); failure tags NoQuorum.
			_, failed := reply.Value.(proposer.NoQuorum)
			rt.SyncQuorumResult(target.ref, reply.Err == nil && !failed)
			continue
		}
		c.mu.Unlock()
		c.logger.Warn("reply for unknown ref", "ref", string(reply.Ref), "history_id", string(historyID))
	}
}

// rsmFacade is the rsm.Server a single named Runtime is handed; it closes
// over the Runtime's name so Central's shared methods can address it.
type rsmFacade struct {
	name    string
	central *Central
}

func (f *rsmFacade) RsmCommand(historyID rsmlog.HistoryID, term rsmlog.Term, rsmName string, ref uint64, command []byte) {
	if p := f.central.currentProposer(); p != nil {
		p.SubmitCommands([]rsmlog.RsmCommand{{ID: ref, RsmName: rsmName, Payload: command}})
	}
}

func (f *rsmFacade) SyncQuorum(ref uint64, historyID rsmlog.HistoryID, term rsmlog.Term) {
	c := f.central
	p := c.currentProposer()
	if p == nil {
		return
	}
	c.mu.Lock()
	c.nextSyncID++
	key := proposer.Ref(fmt.Sprintf("sync:%s:%d", f.name, c.nextSyncID))
	c.syncClients[key] = syncTarget{rsmName: f.name, ref: ref}
	c.mu.Unlock()
	p.SyncQuorum(key)
}

func (f *rsmFacade) AnnounceTerm() {
	c := f.central
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return
	}
	c.mu.Lock()
	rt := c.rsms[f.name]
	c.mu.Unlock()
	if rt != nil {
		rt.TermStarted(cur.historyID, cur.term, cur.highSeqno)
	}
}
