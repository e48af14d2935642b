// Package nodegrpc is the client-facing gRPC transport this node exposes for
// command/query submission, configuration changes, and admin introspection
// (the "outer surface" complementing internal/transport/grpc/agent's
// peer-to-peer Agent RPCs). It shares the JSON codec of
// internal/transport/grpc/wireformat and the hand-written ServiceDesc
// approach for the same reason: no protoc toolchain to regenerate
// pkg/proto/adminv1 and pkg/proto/kvv1.
package nodegrpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsm"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
	"github.com/adilzhan-satpaeva/rsm-core/internal/transport/grpc/wireformat"
)

// Handler is what a running node exposes to its own clients: command/query
// submission against a named RSM, CAS configuration changes, and a status
// snapshot. internal/app.Node implements this over a Proposer, a
// server.Central, and the set of registered rsm.Runtimes.
type Handler interface {
	Command(ctx context.Context, rsmName string, payload []byte) ([]byte, error)
	Query(ctx context.Context, rsmName string, payload []byte) ([]byte, error)
	CasConfig(ctx context.Context, expectedRevision rsmlog.Revision, newConfig rsmlog.Config) (proposer.Reply, error)
	Status(ctx context.Context) (proposer.Status, map[string]rsm.Status, error)
}

// Server adapts a Handler to the hand-written NodeService gRPC service.
type Server struct {
	handler Handler
}

// NewServer builds a Server.
func NewServer(handler Handler) *Server { return &Server{handler: handler} }

func (s *Server) Command(ctx context.Context, req *CommandRequest) (*CommandResponse, error) {
	reply, err := s.handler.Command(ctx, req.RsmName, req.Payload)
	return &CommandResponse{Reply: reply, Error: toEnvelope(err)}, nil
}

func (s *Server) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	reply, err := s.handler.Query(ctx, req.RsmName, req.Payload)
	return &QueryResponse{Reply: reply, Error: toEnvelope(err)}, nil
}

func (s *Server) CasConfig(ctx context.Context, req *CasConfigRequest) (*CasConfigResponse, error) {
	reply, err := s.handler.CasConfig(ctx, req.ExpectedRevision, req.NewConfig)
	if err != nil {
		return &CasConfigResponse{Error: toEnvelope(err)}, nil
	}
	resp := &CasConfigResponse{Error: toEnvelope(reply.Err)}
	switch v := reply.Value.(type) {
	case proposer.Ok:
		resp.Applied = true
		resp.Revision = v.Revision
	case proposer.CasFailed:
		resp.CurrentRevision = v.Current
	case proposer.NoQuorum:
		resp.NoQuorum = true
	}
	return resp, nil
}

func (s *Server) Status(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	pstat, rstat, err := s.handler.Status(ctx)
	if err != nil {
		return &StatusResponse{Error: toEnvelope(err)}, nil
	}
	return &StatusResponse{Proposer: pstat, Rsms: rstat}, nil
}

// serverIface is the interface RegisterService expects; *Server satisfies
// it.
type serverIface interface {
	Command(context.Context, *CommandRequest) (*CommandResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	CasConfig(context.Context, *CasConfigRequest) (*CasConfigResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
}

// ServiceName is the gRPC-level name for this hand-written service.
const ServiceName = "nodegrpc.Node"

func commandHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CommandRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(serverIface).Command(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Command"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(serverIface).Command(ctx, req.(*CommandRequest))
	})
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(serverIface).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Query"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(serverIface).Query(ctx, req.(*QueryRequest))
	})
}

func casConfigHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CasConfigRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(serverIface).CasConfig(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CasConfig"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(serverIface).CasConfig(ctx, req.(*CasConfigRequest))
	})
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(serverIface).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Status"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(serverIface).Status(ctx, req.(*StatusRequest))
	})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*serverIface)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Command", Handler: commandHandler},
		{MethodName: "Query", Handler: queryHandler},
		{MethodName: "CasConfig", Handler: casConfigHandler},
		{MethodName: "Status", Handler: statusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/transport/grpc/node/node.proto",
}

// Register attaches Server to gs. gs must have been constructed with
// Codec() so the hand-written handlers above decode JSON instead of
// protobuf.
func Register(gs *grpc.Server, srv *Server) {
	gs.RegisterService(&serviceDesc, srv)
}

// Codec exposes the shared JSON codec for callers constructing the
// grpc.Server themselves.
func Codec() grpc.ServerOption { return grpc.ForceServerCodec(wireformat.JSONCodec{}) }
