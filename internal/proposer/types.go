package proposer

import (
	"time"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// Ref is a client-supplied correlation token for a request the Proposer must
// eventually answer through the Server (spec.md §6's replyRequests).
type Ref string

// Reply is one entry of a Server.ReplyRequests batch.
type Reply struct {
	Ref   Ref
	Value interface{}
	Err   error
}

// CasFailed is the reply value when a casConfig's expectedRevision is stale.
type CasFailed struct{ Current rsmlog.Revision }

// Ok is the reply value for a successful config change.
type Ok struct{ Revision rsmlog.Revision }

// NoQuorum is the reply value for a syncQuorum that became infeasible.
type NoQuorum struct{}

// casRequest is a postponable client request to change the active config.
type casRequest struct {
	ref              Ref
	expectedRevision rsmlog.Revision
	newConfig        rsmlog.Config
}

// LivenessKind discriminates a liveness event.
type LivenessKind int

// Liveness event kinds, mirroring the Peer Liveness service's nodeup/nodedown.
const (
	NodeUp LivenessKind = iota
	NodeDown
)

// Options carries the tunables spec.md names with defaults (§4.4).
type Options struct {
	EstablishTermTimeout time.Duration
	CheckPeersInterval   time.Duration
	MaxAppendBatch       int
}

// DefaultOptions returns spec.md's stated defaults.
func DefaultOptions() Options {
	return Options{
		EstablishTermTimeout: 10 * time.Second,
		CheckPeersInterval:   5 * time.Second,
		MaxAppendBatch:       256,
	}
}
