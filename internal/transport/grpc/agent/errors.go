package agentgrpc

import (
	"errors"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// ErrorKind discriminates the structured Agent errors spec.md §6/§7 requires
// the Proposer to distinguish (conflictingTerm, historyMismatch, behind,
// missingEntries) from an opaque transport/unexpected failure.
type ErrorKind string

// Wire error kinds, mirroring internal/agent's typed errors.
const (
	KindConflictingTerm ErrorKind = "conflictingTerm"
	KindHistoryMismatch ErrorKind = "historyMismatch"
	KindBehind          ErrorKind = "behind"
	KindMissingEntries  ErrorKind = "missingEntries"
	KindAgentDown       ErrorKind = "agentDown"
	KindUnexpected      ErrorKind = "unexpected"
)

// ErrorEnvelope carries a typed Agent error across the wire so the caller's
// agent.AsConflictingTerm/AsHistoryMismatch/... helpers keep working
// transparently over gRPC.
type ErrorEnvelope struct {
	Kind      ErrorKind
	Message   string
	Term      rsmlog.Term      `json:",omitempty"`
	HistoryID rsmlog.HistoryID `json:",omitempty"`
	Position  int64            `json:",omitempty"`
	Metadata  rsmlog.Metadata  `json:",omitempty"`
}

// toEnvelope classifies err into a wire-transmissible ErrorEnvelope.
func toEnvelope(err error) *ErrorEnvelope {
	if err == nil {
		return nil
	}
	if ct, ok := agent.AsConflictingTerm(err); ok {
		return &ErrorEnvelope{Kind: KindConflictingTerm, Message: err.Error(), Term: ct.Term}
	}
	if hm, ok := agent.AsHistoryMismatch(err); ok {
		return &ErrorEnvelope{Kind: KindHistoryMismatch, Message: err.Error(), HistoryID: hm.HistoryID}
	}
	if b, ok := agent.AsBehind(err); ok {
		return &ErrorEnvelope{Kind: KindBehind, Message: err.Error(), Position: b.Position}
	}
	if me, ok := agent.AsMissingEntries(err); ok {
		return &ErrorEnvelope{Kind: KindMissingEntries, Message: err.Error(), Metadata: me.Metadata}
	}
	if errors.Is(err, agent.ErrLocalAgentDown) {
		return &ErrorEnvelope{Kind: KindAgentDown, Message: err.Error()}
	}
	return &ErrorEnvelope{Kind: KindUnexpected, Message: err.Error()}
}

// fromEnvelope reconstructs a typed error the caller's agent.AsX helpers
// recognize, or a plain error for KindUnexpected.
func fromEnvelope(e *ErrorEnvelope) error {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindConflictingTerm:
		return &agent.ConflictingTermError{Term: e.Term}
	case KindHistoryMismatch:
		return &agent.HistoryMismatchError{HistoryID: e.HistoryID}
	case KindBehind:
		return &agent.BehindError{Position: e.Position}
	case KindMissingEntries:
		return &agent.MissingEntriesError{Metadata: e.Metadata}
	case KindAgentDown:
		return agent.ErrLocalAgentDown
	default:
		return errors.New(e.Message)
	}
}
