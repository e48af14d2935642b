// Package rsmlog defines the wire/data model shared by the proposer and the
// RSM runtime: histories, terms, revisions, log entries, metadata, branches,
// and the effective-quorum derivation for a configuration.
//
// It is grounded on the teacher's raft.LogEntry / raft.ClusterConfig /
// raft.HardState, generalized to carry history ids, joint configurations,
// and branch/failover metadata as spec.md §3 requires.
package rsmlog

import (
	"fmt"

	"github.com/adilzhan-satpaeva/rsm-core/internal/quorum"
)

// HistoryID names an epoch of log continuity. Two logs with equal HistoryID
// are prefix-compatible; different ids indicate a branch.
type HistoryID string

// Term is a strictly monotone leadership epoch.
type Term struct {
	Number   int64
	LeaderID string
}

// Less reports whether t sorts strictly before other.
func (t Term) Less(other Term) bool {
	if t.Number != other.Number {
		return t.Number < other.Number
	}
	return t.LeaderID < other.LeaderID
}

// Equal reports term equality.
func (t Term) Equal(other Term) bool {
	return t.Number == other.Number && t.LeaderID == other.LeaderID
}

func (t Term) String() string {
	return fmt.Sprintf("(%d,%s)", t.Number, t.LeaderID)
}

// Revision is the externally visible version of a log entry.
type Revision struct {
	HistoryID HistoryID
	Term      Term
	Seqno     int64
}

// External is the (historyId, seqno) projection of a Revision, the form
// clients observe.
type External struct {
	HistoryID HistoryID
	Seqno     int64
}

// ToExternal drops the term component.
func (r Revision) ToExternal() External {
	return External{HistoryID: r.HistoryID, Seqno: r.Seqno}
}

// EntryKind discriminates a LogEntry's payload.
type EntryKind int

// Supported log entry payload kinds.
const (
	EntryRsmCommand EntryKind = iota
	EntryConfig
	EntryTransition
)

// RsmCommand is a state-machine mutation addressed to a named RSM.
type RsmCommand struct {
	ID      uint64
	RsmName string
	Payload []byte
}

// RsmConfig is the per-state-machine slice of a Config entry.
type RsmConfig struct {
	Name string
}

// Config is a stable cluster/state-machine configuration.
type Config struct {
	Voters        []string
	StateMachines map[string]RsmConfig
}

// Clone returns a deep copy of cfg.
func (c Config) Clone() Config {
	voters := append([]string(nil), c.Voters...)
	sms := make(map[string]RsmConfig, len(c.StateMachines))
	for k, v := range c.StateMachines {
		sms[k] = v
	}
	return Config{Voters: voters, StateMachines: sms}
}

// Transition is a joint (in-progress) configuration change.
type Transition struct {
	Current Config
	Future  Config
}

// LogEntry is a single entry in the replicated log.
type LogEntry struct {
	HistoryID HistoryID
	Term      Term
	Seqno     int64
	Kind      EntryKind

	Command    RsmCommand
	Config     Config
	Transition Transition
}

// Revision returns the entry's full revision.
func (e LogEntry) Revision() Revision {
	return Revision{HistoryID: e.HistoryID, Term: e.Term, Seqno: e.Seqno}
}

// Clone deep-copies e, including its byte payload.
func (e LogEntry) Clone() LogEntry {
	out := e
	out.Command.Payload = append([]byte(nil), e.Command.Payload...)
	out.Config = e.Config.Clone()
	out.Transition = Transition{Current: e.Transition.Current.Clone(), Future: e.Transition.Future.Clone()}
	return out
}

// Branch is a recovery artifact indicating a forced quorum-failover to the
// given peer set. It is externally supplied via the Agent's pending_branch;
// the core only ever reads it.
type Branch struct {
	HistoryID   HistoryID
	Coordinator string
	Peers       []string
	Status      string
	Opaque      []byte
}

// Metadata is the per-node state read from and maintained by the Agent.
//
// Config always holds the last stable configuration; PendingTransition is
// non-nil exactly when the most recently logged config-kind entry is an
// uncommitted Transition (invariant I3) — it is cleared the moment the
// matching future Config entry is durably appended.
type Metadata struct {
	HistoryID         HistoryID
	Term              Term
	TermVoted         Term
	HighSeqno         int64
	CommittedSeqno    int64
	Config            Config
	ConfigRevision    Revision
	PendingTransition *Transition
	PendingBranch     *Branch
}

// EffectiveQuorum derives the quorum a config (or transition, or branch
// resolution) must satisfy, per spec.md §4.1.
//
//   - Config{voters=V}: Joint(All({self}), Majority(V))
//   - Transition{current, future}: Joint(All({self}), Joint(Majority(Vc), Majority(Vf)))
//   - Branch resolution in progress: All(branch.Peers) — unanimity of survivors.
func EffectiveQuorum(self string, cfg Config) *quorum.Quorum {
	return quorum.Joint(quorum.All(self), quorum.Majority(cfg.Voters...))
}

// EffectiveQuorumTransition derives the joint quorum for an in-flight config
// transition.
func EffectiveQuorumTransition(self string, tr Transition) *quorum.Quorum {
	return quorum.Joint(
		quorum.All(self),
		quorum.Joint(quorum.Majority(tr.Current.Voters...), quorum.Majority(tr.Future.Voters...)),
	)
}

// EffectiveQuorumBranch derives the unanimity quorum required while resolving
// a forced quorum-failover.
func EffectiveQuorumBranch(branch Branch) *quorum.Quorum {
	return quorum.All(branch.Peers...)
}
