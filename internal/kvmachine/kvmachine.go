// Package kvmachine is an example pluggable state machine (spec.md §9's
// "mod" capability set) for the RSM runtime: an in-memory key-value store
// with put/delete/get/cas commands.
//
// It is grounded on the teacher's internal/kv.Store, generalized from a
// consumer of a single hard-coded Raft log into an rsm.Mod: command
// encode/decode stays JSON like the teacher's, and Get remains a direct
// map read since queries never touch the log.
package kvmachine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsm"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// CommandType identifies a KV operation encoded in the replicated log.
type CommandType string

// Supported KV commands.
const (
	PutCmd    CommandType = "put"
	DeleteCmd CommandType = "delete"
	CasCmd    CommandType = "cas"
)

// Command is the serialized operation applied via the replicated log.
type Command struct {
	Type     CommandType `json:"type"`
	Key      string      `json:"key"`
	Value    string      `json:"value,omitempty"`
	Expected string      `json:"expected,omitempty"`
	HasExpected bool     `json:"has_expected,omitempty"`
}

// Query is a read-only request answered without consuming a log slot.
type Query struct {
	Key string `json:"key"`
}

// QueryReply answers a Query.
type QueryReply struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// CommandReply answers a Command once applied.
type CommandReply struct {
	OK       bool   `json:"ok"`
	Value    string `json:"value,omitempty"`
	Found    bool   `json:"found,omitempty"`
	CasMatch bool   `json:"cas_match,omitempty"`
}

// ErrDecode is returned when a command or query fails to unmarshal.
var ErrDecode = errors.New("kvmachine: malformed payload")

// state is the mod's state value threaded through Init/HandleCommand/
// HandleQuery/ApplyCommand as the opaque `any`.
type state struct {
	mu   sync.RWMutex
	data map[string]string
}

// Mod implements rsm.Mod over an in-memory map.
type Mod struct {
	tracer oteltrace.Tracer
}

// New builds a Mod. tracer may be nil, in which case spans are no-ops.
func New(tracer oteltrace.Tracer) *Mod {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("kvmachine")
	}
	return &Mod{tracer: tracer}
}

var _ rsm.Mod = (*Mod)(nil)

// Init implements rsm.Mod.
func (m *Mod) Init() (any, error) {
	return &state{data: make(map[string]string)}, nil
}

// HandleCommand implements rsm.Mod: every well-formed command is applied;
// only a decode failure is rejected without consuming a log slot.
func (m *Mod) HandleCommand(_ any, cmd []byte) (rsm.CommandDecision, error) {
	var c Command
	if err := json.Unmarshal(cmd, &c); err != nil {
		return rsm.CommandDecision{}, ErrDecode
	}
	switch c.Type {
	case PutCmd, DeleteCmd, CasCmd:
	default:
		return rsm.CommandDecision{}, ErrDecode
	}
	return rsm.CommandDecision{Apply: true, Payload: cmd}, nil
}

// HandleQuery implements rsm.Mod.
func (m *Mod) HandleQuery(st any, query []byte) ([]byte, error) {
	s := st.(*state)
	var q Query
	if err := json.Unmarshal(query, &q); err != nil {
		return nil, ErrDecode
	}
	s.mu.RLock()
	val, found := s.data[q.Key]
	s.mu.RUnlock()
	return json.Marshal(QueryReply{Value: val, Found: found})
}

// ApplyCommand implements rsm.Mod.
func (m *Mod) ApplyCommand(st any, cmd []byte, revision rsmlog.External) ([]byte, any, error) {
	_, span := m.tracer.Start(context.Background(), "kvmachine.ApplyCommand", oteltrace.WithAttributes(
		attribute.Int64("kv.revision.seqno", revision.Seqno),
	))
	defer span.End()

	s := st.(*state)
	var c Command
	if err := json.Unmarshal(cmd, &c); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, s, err
	}
	span.SetAttributes(attribute.String("kv.command.type", string(c.Type)), attribute.String("kv.key", c.Key))

	s.mu.Lock()
	defer s.mu.Unlock()

	switch c.Type {
	case PutCmd:
		s.data[c.Key] = c.Value
		reply, err := json.Marshal(CommandReply{OK: true})
		return reply, s, err
	case DeleteCmd:
		_, found := s.data[c.Key]
		delete(s.data, c.Key)
		reply, err := json.Marshal(CommandReply{OK: true, Found: found})
		return reply, s, err
	case CasCmd:
		current, found := s.data[c.Key]
		match := (c.HasExpected && found && current == c.Expected) || (c.HasExpected && !found && c.Expected == "")
		if match {
			s.data[c.Key] = c.Value
		}
		reply, err := json.Marshal(CommandReply{OK: match, CasMatch: match, Value: current, Found: found})
		return reply, s, err
	default:
		return nil, s, ErrDecode
	}
}

// Terminate implements rsm.Mod.
func (m *Mod) Terminate(any) {}
