package nodegrpc

import (
	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsm"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// CommandRequest/Response wire Runtime.Command for a named RSM.
type CommandRequest struct {
	RsmName string
	Payload []byte
}

type CommandResponse struct {
	Reply []byte
	Error *ErrorEnvelope `json:",omitempty"`
}

// QueryRequest/Response wire Runtime.Query for a named RSM.
type QueryRequest struct {
	RsmName string
	Payload []byte
}

type QueryResponse struct {
	Reply []byte
	Error *ErrorEnvelope `json:",omitempty"`
}

// CasConfigRequest/Response wire Central.SubmitCasConfig.
type CasConfigRequest struct {
	ExpectedRevision rsmlog.Revision
	NewConfig        rsmlog.Config
}

type CasConfigResponse struct {
	Applied         bool
	Revision        rsmlog.Revision `json:",omitempty"`
	CurrentRevision rsmlog.Revision `json:",omitempty"`
	NoQuorum        bool
	Error           *ErrorEnvelope `json:",omitempty"`
}

// StatusRequest/Response wire an aggregated Proposer + Runtime snapshot for
// admin/diagnostic use (spec.md §9 supplemented Admin introspection).
type StatusRequest struct{}

type StatusResponse struct {
	Proposer proposer.Status
	Rsms     map[string]rsm.Status
	Error    *ErrorEnvelope `json:",omitempty"`
}
