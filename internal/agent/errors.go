package agent

import (
	"errors"
	"fmt"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// ErrLocalAgentDown is delivered to a proposer/RSM when its own local agent
// has died; recovery is out of scope, the owner must stop.
var ErrLocalAgentDown = errors.New("agent: local agent is down")

// ConflictingTermError indicates a higher term is already established
// elsewhere; the caller must stop, another leader exists.
type ConflictingTermError struct {
	Term rsmlog.Term
}

func (e *ConflictingTermError) Error() string {
	return fmt.Sprintf("agent: conflicting term %s", e.Term)
}

// HistoryMismatchError indicates the peer belongs to a different, divergent
// history (a branch or a partition).
type HistoryMismatchError struct {
	HistoryID rsmlog.HistoryID
}

func (e *HistoryMismatchError) Error() string {
	return fmt.Sprintf("agent: history mismatch %s", e.HistoryID)
}

// BehindError indicates the responding peer's log position is behind the
// leader's expectation; the vote is failed but establishment may still
// succeed with other peers.
type BehindError struct {
	Position int64
}

func (e *BehindError) Error() string {
	return fmt.Sprintf("agent: peer behind at position %d", e.Position)
}

// MissingEntriesError indicates an append targeted a range the peer cannot
// satisfy from its current log tail; the caller should reset peer status
// from the embedded metadata and re-replicate.
type MissingEntriesError struct {
	Metadata rsmlog.Metadata
}

func (e *MissingEntriesError) Error() string {
	return "agent: missing entries, reset from metadata"
}

// AsConflictingTerm reports whether err (or a wrapped cause) is a
// ConflictingTermError.
func AsConflictingTerm(err error) (*ConflictingTermError, bool) {
	var e *ConflictingTermError
	return e, errors.As(err, &e)
}

// AsHistoryMismatch reports whether err is a HistoryMismatchError.
func AsHistoryMismatch(err error) (*HistoryMismatchError, bool) {
	var e *HistoryMismatchError
	return e, errors.As(err, &e)
}

// AsBehind reports whether err is a BehindError.
func AsBehind(err error) (*BehindError, bool) {
	var e *BehindError
	return e, errors.As(err, &e)
}

// AsMissingEntries reports whether err is a MissingEntriesError.
func AsMissingEntries(err error) (*MissingEntriesError, bool) {
	var e *MissingEntriesError
	return e, errors.As(err, &e)
}
