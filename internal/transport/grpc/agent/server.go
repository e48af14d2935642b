package agentgrpc

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// Handler is the subset of agent behaviour this transport exposes to remote
// peers: exactly the async establishTerm/append/ensureTerm triad spec.md §6
// lists, answered synchronously at the transport layer (the Proposer's own
// mailbox already provides the "async, reply tagged with a generation
// counter" behaviour on top of this).
type Handler interface {
	EstablishTerm(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, logPosition int64) (rsmlog.Metadata, error)
	Append(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, committedSeqno int64, entries []rsmlog.LogEntry) (highSeqno, ackedCommitSeqno int64, err error)
	EnsureTerm(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term) (highSeqno, ackedCommitSeqno int64, err error)
}

// Server adapts a Handler (typically a *agent.MemoryAgent, or any backing
// store implementing the same durability contract) to the hand-written
// AgentService gRPC service below.
type Server struct {
	handler Handler
	tracer  oteltrace.Tracer
}

// NewServer builds a Server. tracer may be nil, in which case spans are
// no-ops (the same nil-tracer-safe pattern internal/kvmachine.New uses).
func NewServer(handler Handler, tracer oteltrace.Tracer) *Server {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("agentgrpc")
	}
	return &Server{handler: handler, tracer: tracer}
}

func (s *Server) span(ctx context.Context, name string) (context.Context, oteltrace.Span) {
	return s.tracer.Start(ctx, name)
}

func (s *Server) EstablishTerm(ctx context.Context, req *EstablishTermRequest) (*EstablishTermResponse, error) {
	ctx, span := s.span(ctx, "agentgrpc.server.EstablishTerm")
	span.SetAttributes(establishTermAttrs(req)...)
	defer span.End()
	meta, err := s.handler.EstablishTerm(ctx, req.HistoryID, req.Term, req.LogPosition)
	recordSpanError(span, err)
	return &EstablishTermResponse{Metadata: meta, Error: toEnvelope(err)}, nil
}

func (s *Server) Append(ctx context.Context, req *AppendRequest) (*AppendResponse, error) {
	ctx, span := s.span(ctx, "agentgrpc.server.Append")
	span.SetAttributes(appendAttrs(req)...)
	defer span.End()
	high, ackedCommit, err := s.handler.Append(ctx, req.HistoryID, req.Term, req.CommittedSeqno, req.Entries)
	recordSpanError(span, err)
	span.SetAttributes(
		attribute.Int64("agent.high_seqno", high),
		attribute.Int64("agent.acked_commit_seqno", ackedCommit),
	)
	return &AppendResponse{HighSeqno: high, AckedCommitSeqno: ackedCommit, Error: toEnvelope(err)}, nil
}

func (s *Server) EnsureTerm(ctx context.Context, req *EnsureTermRequest) (*EnsureTermResponse, error) {
	ctx, span := s.span(ctx, "agentgrpc.server.EnsureTerm")
	span.SetAttributes(ensureTermAttrs(req)...)
	defer span.End()
	high, ackedCommit, err := s.handler.EnsureTerm(ctx, req.HistoryID, req.Term)
	recordSpanError(span, err)
	span.SetAttributes(
		attribute.Int64("agent.high_seqno", high),
		attribute.Int64("agent.acked_commit_seqno", ackedCommit),
	)
	return &EnsureTermResponse{HighSeqno: high, AckedCommitSeqno: ackedCommit, Error: toEnvelope(err)}, nil
}

// serverIface is the interface RegisterAgentServer expects; *Server
// satisfies it.
type serverIface interface {
	EstablishTerm(context.Context, *EstablishTermRequest) (*EstablishTermResponse, error)
	Append(context.Context, *AppendRequest) (*AppendResponse, error)
	EnsureTerm(context.Context, *EnsureTermRequest) (*EnsureTermResponse, error)
}

// ServiceName is the gRPC-level name for this hand-written service, in place
// of a .proto-derived one (no protoc toolchain is available in this
// workspace, see package doc).
const ServiceName = "agentgrpc.Agent"

func establishTermHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(EstablishTermRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(serverIface).EstablishTerm(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/EstablishTerm"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(serverIface).EstablishTerm(ctx, req.(*EstablishTermRequest))
	})
}

func appendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AppendRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(serverIface).Append(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Append"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(serverIface).Append(ctx, req.(*AppendRequest))
	})
}

func ensureTermHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(EnsureTermRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(serverIface).EnsureTerm(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/EnsureTerm"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(serverIface).EnsureTerm(ctx, req.(*EnsureTermRequest))
	})
}

// serviceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit from an agent.proto, registered against the JSON codec instead
// of protobuf wire encoding.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*serverIface)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "EstablishTerm", Handler: establishTermHandler},
		{MethodName: "Append", Handler: appendHandler},
		{MethodName: "EnsureTerm", Handler: ensureTermHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/transport/grpc/agent/agent.proto",
}

// Register attaches Server to gs. gs must have been constructed with
// Codec() so the hand-written handlers above decode JSON instead of
// protobuf.
func Register(gs *grpc.Server, srv *Server) {
	gs.RegisterService(&serviceDesc, srv)
}
