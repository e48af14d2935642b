// Package wireformat is the shared JSON encoding.Codec every hand-written
// gRPC service in this module registers against, in place of the
// protoc-generated codec the teacher's pkg/proto stubs use (see
// internal/transport/grpc/agent's package doc for why: no protoc toolchain
// is available in this workspace to regenerate a message set this large).
package wireformat

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype negotiated for every service in this
// module ("json" instead of protobuf's implicit "proto").
const CodecName = "json"

// JSONCodec implements encoding.Codec by delegating to encoding/json. Unlike
// the protobuf codec it places no constraint on v being a proto.Message.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(JSONCodec{})
}
