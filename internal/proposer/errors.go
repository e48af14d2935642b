package proposer

import "fmt"

// Reason names why the proposer terminated (spec.md §4.4.8 / §7).
type Reason string

// Termination reasons. All of these are fatal to the current leadership;
// there is no in-place recovery, a new Proposer must be spawned by election.
const (
	ReasonLocalEstablishTermFailed Reason = "localEstablishTermFailed"
	ReasonConflictingTerm          Reason = "conflictingTerm"
	ReasonHistoryMismatch          Reason = "historyMismatch"
	ReasonEstablishTermTimeout     Reason = "establishTermTimeout"
	ReasonNoQuorum                 Reason = "noQuorum"
	ReasonAgentTerminated          Reason = "agentTerminated"
	ReasonUnexpectedError          Reason = "unexpectedError"
	ReasonStopped                  Reason = "stopped"
)

// StopError is the terminal outcome delivered on Proposer.Done firing.
type StopError struct {
	Reason Reason
	Peer   string
	Cause  error
}

func (e *StopError) Error() string {
	switch {
	case e.Peer != "" && e.Cause != nil:
		return fmt.Sprintf("proposer stopped (%s, peer=%s): %v", e.Reason, e.Peer, e.Cause)
	case e.Peer != "":
		return fmt.Sprintf("proposer stopped (%s, peer=%s)", e.Reason, e.Peer)
	case e.Cause != nil:
		return fmt.Sprintf("proposer stopped (%s): %v", e.Reason, e.Cause)
	default:
		return fmt.Sprintf("proposer stopped (%s)", e.Reason)
	}
}

func (e *StopError) Unwrap() error { return e.Cause }

func stop(reason Reason) *StopError                      { return &StopError{Reason: reason} }
func stopCause(reason Reason, cause error) *StopError     { return &StopError{Reason: reason, Cause: cause} }
func stopPeer(reason Reason, peer string, cause error) *StopError {
	return &StopError{Reason: reason, Peer: peer, Cause: cause}
}
