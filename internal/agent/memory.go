package agent

import (
	"context"
	"sync"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// MemoryAgent is an in-memory reference implementation of Local, grounded on
// the teacher's InMemoryStorage. It is used directly by tests and by the
// single-process demo cluster; a durable implementation is out of scope of
// this spec (the "durability NIF").
type MemoryAgent struct {
	mu sync.Mutex

	id        string
	historyID rsmlog.HistoryID
	term      rsmlog.Term
	termVoted rsmlog.Term

	log            []rsmlog.LogEntry // log[i] has seqno i+1
	committedSeqno int64

	config            rsmlog.Config
	configRevision    rsmlog.Revision
	pendingTransition *rsmlog.Transition
	pendingBranch     *rsmlog.Branch

	doneCh chan struct{}
	dead   bool
}

// NewMemoryAgent creates a fresh in-memory agent bootstrapped with the given
// history and initial (already-committed) configuration.
func NewMemoryAgent(id string, historyID rsmlog.HistoryID, initial rsmlog.Config) *MemoryAgent {
	return &MemoryAgent{
		id:        id,
		historyID: historyID,
		config:    initial.Clone(),
		doneCh:    make(chan struct{}),
	}
}

// Kill marks the agent dead and closes its Done channel, simulating the
// local agent process dying.
func (a *MemoryAgent) Kill() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.dead {
		a.dead = true
		close(a.doneCh)
	}
}

// Done implements Local.
func (a *MemoryAgent) Done() <-chan struct{} { return a.doneCh }

// PersistedState is the on-disk representation of a MemoryAgent's durable
// state, used by JSONStore to survive process restarts.
type PersistedState struct {
	ID                string
	HistoryID         rsmlog.HistoryID
	Term              rsmlog.Term
	TermVoted         rsmlog.Term
	Log               []rsmlog.LogEntry
	CommittedSeqno    int64
	Config            rsmlog.Config
	ConfigRevision    rsmlog.Revision
	PendingTransition *rsmlog.Transition
	PendingBranch     *rsmlog.Branch
}

// ExportState returns a snapshot of the agent's durable fields, suitable for
// JSON persistence by JSONStore.
func (a *MemoryAgent) ExportState() PersistedState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return PersistedState{
		ID:                a.id,
		HistoryID:         a.historyID,
		Term:              a.term,
		TermVoted:         a.termVoted,
		Log:               cloneLogEntries(a.log),
		CommittedSeqno:    a.committedSeqno,
		Config:            a.config.Clone(),
		ConfigRevision:    a.configRevision,
		PendingTransition: a.pendingTransition,
		PendingBranch:     a.pendingBranch,
	}
}

// RestoreMemoryAgent rebuilds a MemoryAgent from a previously exported
// PersistedState.
func RestoreMemoryAgent(state PersistedState) *MemoryAgent {
	return &MemoryAgent{
		id:                state.ID,
		historyID:         state.HistoryID,
		term:              state.Term,
		termVoted:         state.TermVoted,
		log:               cloneLogEntries(state.Log),
		committedSeqno:    state.CommittedSeqno,
		config:            state.Config.Clone(),
		configRevision:    state.ConfigRevision,
		pendingTransition: state.PendingTransition,
		pendingBranch:     state.PendingBranch,
		doneCh:            make(chan struct{}),
	}
}

func cloneLogEntries(entries []rsmlog.LogEntry) []rsmlog.LogEntry {
	if entries == nil {
		return nil
	}
	out := make([]rsmlog.LogEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// SetPendingBranch installs an externally-supplied branch, as the Agent's
// pending_branch field would be set by an out-of-band recovery tool.
func (a *MemoryAgent) SetPendingBranch(b *rsmlog.Branch) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingBranch = b
}

func (a *MemoryAgent) highSeqnoLocked() int64 {
	return int64(len(a.log))
}

func (a *MemoryAgent) metadataLocked() rsmlog.Metadata {
	var branch *rsmlog.Branch
	if a.pendingBranch != nil {
		b := *a.pendingBranch
		branch = &b
	}
	var transition *rsmlog.Transition
	if a.pendingTransition != nil {
		t := *a.pendingTransition
		transition = &t
	}
	return rsmlog.Metadata{
		HistoryID:         a.historyID,
		Term:              a.term,
		TermVoted:         a.termVoted,
		HighSeqno:         a.highSeqnoLocked(),
		CommittedSeqno:    a.committedSeqno,
		Config:            a.config.Clone(),
		ConfigRevision:    a.configRevision,
		PendingTransition: transition,
		PendingBranch:     branch,
	}
}

// EstablishLocalTerm implements Local.
func (a *MemoryAgent) EstablishLocalTerm(_ context.Context, historyID rsmlog.HistoryID, term rsmlog.Term) (rsmlog.Metadata, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dead {
		return rsmlog.Metadata{}, ErrLocalAgentDown
	}
	if historyID != a.historyID {
		return rsmlog.Metadata{}, &HistoryMismatchError{HistoryID: a.historyID}
	}
	if a.termVoted.Number > term.Number || (a.termVoted.Number == term.Number && a.termVoted.LeaderID != term.LeaderID) {
		return rsmlog.Metadata{}, &ConflictingTermError{Term: a.termVoted}
	}
	a.termVoted = term
	return a.metadataLocked(), nil
}

// EstablishTerm answers a remote candidate's promise request, playing the
// role a peer's local agent plays when asked by a would-be leader.
func (a *MemoryAgent) EstablishTerm(_ context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, _ int64) (rsmlog.Metadata, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dead {
		return rsmlog.Metadata{}, ErrLocalAgentDown
	}
	if historyID != a.historyID {
		return rsmlog.Metadata{}, &HistoryMismatchError{HistoryID: a.historyID}
	}
	if a.termVoted.Number > term.Number || (a.termVoted.Number == term.Number && a.termVoted.LeaderID != term.LeaderID) {
		return rsmlog.Metadata{}, &ConflictingTermError{Term: a.termVoted}
	}
	a.termVoted = term
	return a.metadataLocked(), nil
}

// Append implements both Local.Append (leader's own vote) and the append
// half of PeerAgent for a directly-wired in-memory peer.
func (a *MemoryAgent) Append(_ context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, committedSeqno int64, entries []rsmlog.LogEntry) (int64, int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dead {
		return 0, 0, ErrLocalAgentDown
	}
	if historyID != a.historyID {
		return 0, 0, &HistoryMismatchError{HistoryID: a.historyID}
	}
	if term.Number < a.termVoted.Number {
		return 0, 0, &ConflictingTermError{Term: a.termVoted}
	}
	a.term = term
	a.termVoted = term

	if len(entries) > 0 {
		if firstIdx := int(entries[0].Seqno) - 1; firstIdx >= 0 && firstIdx < len(a.log) {
			a.log = a.log[:firstIdx]
			a.rescanConfigLocked()
		}
	}

	for _, e := range entries {
		idx := int(e.Seqno) - 1
		switch {
		case idx < 0:
			continue
		case idx < len(a.log):
			a.log[idx] = e.Clone()
		case idx == len(a.log):
			a.log = append(a.log, e.Clone())
		default:
			return 0, 0, &MissingEntriesError{Metadata: a.metadataLocked()}
		}
		switch e.Kind {
		case rsmlog.EntryConfig:
			a.config = e.Config.Clone()
			a.configRevision = e.Revision()
			a.pendingTransition = nil
		case rsmlog.EntryTransition:
			t := rsmlog.Transition{Current: e.Transition.Current.Clone(), Future: e.Transition.Future.Clone()}
			a.pendingTransition = &t
			a.configRevision = e.Revision()
		}
	}

	if committedSeqno > a.committedSeqno {
		if committedSeqno > a.highSeqnoLocked() {
			committedSeqno = a.highSeqnoLocked()
		}
		a.committedSeqno = committedSeqno
	}

	return a.highSeqnoLocked(), a.committedSeqno, nil
}

// EnsureTerm answers a position probe, refreshing the caller's view of this
// agent's progress without appending anything.
func (a *MemoryAgent) EnsureTerm(_ context.Context, historyID rsmlog.HistoryID, term rsmlog.Term) (int64, int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dead {
		return 0, 0, ErrLocalAgentDown
	}
	if historyID != a.historyID {
		return 0, 0, &HistoryMismatchError{HistoryID: a.historyID}
	}
	if term.Number < a.termVoted.Number {
		return 0, 0, &ConflictingTermError{Term: a.termVoted}
	}
	return a.highSeqnoLocked(), a.committedSeqno, nil
}

// GetLog implements Local.
func (a *MemoryAgent) GetLog(_ context.Context, historyID rsmlog.HistoryID, _ rsmlog.Term, fromSeqno, toSeqno int64) ([]rsmlog.LogEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if historyID != a.historyID {
		return nil, &HistoryMismatchError{HistoryID: a.historyID}
	}
	if fromSeqno < 0 {
		fromSeqno = 0
	}
	if toSeqno > a.highSeqnoLocked() {
		toSeqno = a.highSeqnoLocked()
	}
	out := make([]rsmlog.LogEntry, 0, toSeqno-fromSeqno)
	for seqno := fromSeqno + 1; seqno <= toSeqno; seqno++ {
		out = append(out, a.log[seqno-1].Clone())
	}
	return out, nil
}

// GetFullLog implements Local.
func (a *MemoryAgent) GetFullLog(ctx context.Context, historyID rsmlog.HistoryID) ([]rsmlog.LogEntry, error) {
	a.mu.Lock()
	current := a.historyID
	high := a.highSeqnoLocked()
	a.mu.Unlock()
	if historyID != current {
		return nil, &HistoryMismatchError{HistoryID: current}
	}
	return a.GetLog(ctx, current, rsmlog.Term{}, 0, high)
}

// AdoptHistory switches the agent onto a new history, as an out-of-band
// recovery tool would when resolving a quorum failover (spec.md §4.4.4):
// branch creation requires the survivors named in branch.Peers to already
// agree externally, so by the time the new leader force-proposes a Config
// entry under branch.HistoryID, every survivor's local agent has already
// adopted it here. The log itself is left alone — the forced Config entry
// continues the existing seqno numbering, truncating anything past
// committedSeqno the same way any other Append does — only the historyID
// tag that EstablishTerm/Append/GetLog compare against changes.
func (a *MemoryAgent) AdoptHistory(historyID rsmlog.HistoryID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.historyID = historyID
}

// GetMetadata implements Local.
func (a *MemoryAgent) GetMetadata(_ context.Context) (rsmlog.Metadata, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dead {
		return rsmlog.Metadata{}, ErrLocalAgentDown
	}
	return a.metadataLocked(), nil
}

// TruncateAbove drops every entry with seqno > seqno, used by branch
// resolution's external precondition (survivors truncate to their unanimous
// committed seqno before the new leader proposes the failover config). It is
// exposed so test/demo harnesses can model that external step.
func (a *MemoryAgent) TruncateAbove(seqno int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if seqno < 0 {
		seqno = 0
	}
	if seqno < int64(len(a.log)) {
		a.log = a.log[:seqno]
	}
	if a.committedSeqno > seqno {
		a.committedSeqno = seqno
	}
	a.rescanConfigLocked()
}

// rescanConfigLocked recomputes config/pendingTransition/configRevision from
// the current log tail, used after any truncation.
func (a *MemoryAgent) rescanConfigLocked() {
	a.pendingTransition = nil
	for i := len(a.log) - 1; i >= 0; i-- {
		e := a.log[i]
		switch e.Kind {
		case rsmlog.EntryConfig:
			a.config = e.Config.Clone()
			a.configRevision = e.Revision()
			return
		case rsmlog.EntryTransition:
			if a.pendingTransition == nil {
				t := rsmlog.Transition{Current: e.Transition.Current.Clone(), Future: e.Transition.Future.Clone()}
				a.pendingTransition = &t
				a.configRevision = e.Revision()
			}
		}
	}
}
