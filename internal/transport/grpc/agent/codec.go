// Package agentgrpc is the gRPC transport adapter for internal/agent's
// PeerAgent (spec.md §6's Agent RPCs: establishTerm, append, ensureTerm).
//
// It is grounded on the teacher's internal/transport/grpc/raft package —
// same Dial/Server/Handler shape — but this workspace has no protoc
// toolchain to regenerate the teacher's pkg/proto/raftv1 stubs for the new
// message set, so instead of hand-writing .pb.go files it registers a
// google.golang.org/grpc/encoding.Codec (internal/transport/grpc/wireformat)
// that marshals plain Go structs as JSON and forces it on both ends with
// grpc.ForceCodec / grpc.ForceServerCodec, bypassing protobuf entirely while
// keeping the same gRPC service/method/streaming machinery the teacher
// relies on.
package agentgrpc

import (
	"google.golang.org/grpc"

	"github.com/adilzhan-satpaeva/rsm-core/internal/transport/grpc/wireformat"
)

type jsonCodec = wireformat.JSONCodec

// Codec exposes the registered JSON codec for callers constructing the
// grpc.Server/grpc.ClientConn themselves.
func Codec() grpc.ServerOption { return grpc.ForceServerCodec(jsonCodec{}) }
