package nodegrpc

import (
	"errors"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsm"
)

// ErrorKind discriminates the client-visible errors a command/query against
// a named RSM can fail with.
type ErrorKind string

// Wire error kinds, mirroring internal/rsm's typed sentinel errors.
const (
	KindNotLeader       ErrorKind = "notLeader"
	KindHistoryMismatch ErrorKind = "historyMismatch"
	KindTimeout         ErrorKind = "timeout"
	KindLeaderGone      ErrorKind = "leaderGone"
	KindUnknownRsm      ErrorKind = "unknownRsm"
	KindUnexpected      ErrorKind = "unexpected"
)

// ErrorEnvelope carries a client-visible error across the wire.
type ErrorEnvelope struct {
	Kind    ErrorKind
	Message string
}

func toEnvelope(err error) *ErrorEnvelope {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, rsm.ErrNotLeader):
		return &ErrorEnvelope{Kind: KindNotLeader, Message: err.Error()}
	case errors.Is(err, rsm.ErrHistoryMismatch):
		return &ErrorEnvelope{Kind: KindHistoryMismatch, Message: err.Error()}
	case errors.Is(err, rsm.ErrTimeout):
		return &ErrorEnvelope{Kind: KindTimeout, Message: err.Error()}
	case errors.Is(err, rsm.ErrLeaderGone):
		return &ErrorEnvelope{Kind: KindLeaderGone, Message: err.Error()}
	case errors.Is(err, ErrUnknownRsm):
		return &ErrorEnvelope{Kind: KindUnknownRsm, Message: err.Error()}
	default:
		return &ErrorEnvelope{Kind: KindUnexpected, Message: err.Error()}
	}
}

func fromEnvelope(e *ErrorEnvelope) error {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindNotLeader:
		return rsm.ErrNotLeader
	case KindHistoryMismatch:
		return rsm.ErrHistoryMismatch
	case KindTimeout:
		return rsm.ErrTimeout
	case KindLeaderGone:
		return rsm.ErrLeaderGone
	case KindUnknownRsm:
		return ErrUnknownRsm
	default:
		return errors.New(e.Message)
	}
}

// ErrUnknownRsm is returned by Handler.Command/Query for a name no Runtime
// was registered under.
var ErrUnknownRsm = errors.New("nodegrpc: unknown rsm name")
