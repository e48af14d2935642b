package nodegrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsm"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
	"github.com/adilzhan-satpaeva/rsm-core/internal/transport/grpc/wireformat"
)

// Client is a thin gRPC client for a node's client-facing NodeService,
// used by cmd/adminctl.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a node's client-facing transport.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp, grpc.ForceCodec(wireformat.JSONCodec{}))
}

// Command submits a command to the named RSM and returns its reply.
func (c *Client) Command(ctx context.Context, rsmName string, payload []byte) ([]byte, error) {
	resp := new(CommandResponse)
	if err := c.call(ctx, "Command", &CommandRequest{RsmName: rsmName, Payload: payload}, resp); err != nil {
		return nil, fmt.Errorf("nodegrpc: command rpc: %w", err)
	}
	if resp.Error != nil {
		return nil, fromEnvelope(resp.Error)
	}
	return resp.Reply, nil
}

// Query submits a read-only query to the named RSM and returns its reply.
func (c *Client) Query(ctx context.Context, rsmName string, payload []byte) ([]byte, error) {
	resp := new(QueryResponse)
	if err := c.call(ctx, "Query", &QueryRequest{RsmName: rsmName, Payload: payload}, resp); err != nil {
		return nil, fmt.Errorf("nodegrpc: query rpc: %w", err)
	}
	if resp.Error != nil {
		return nil, fromEnvelope(resp.Error)
	}
	return resp.Reply, nil
}

// CasConfig requests a CAS configuration change.
func (c *Client) CasConfig(ctx context.Context, expectedRevision rsmlog.Revision, newConfig rsmlog.Config) (*CasConfigResponse, error) {
	resp := new(CasConfigResponse)
	if err := c.call(ctx, "CasConfig", &CasConfigRequest{ExpectedRevision: expectedRevision, NewConfig: newConfig}, resp); err != nil {
		return nil, fmt.Errorf("nodegrpc: casConfig rpc: %w", err)
	}
	if resp.Error != nil {
		return nil, fromEnvelope(resp.Error)
	}
	return resp, nil
}

// Status fetches the node's aggregated Proposer/Runtime status snapshot.
func (c *Client) Status(ctx context.Context) (proposer.Status, map[string]rsm.Status, error) {
	resp := new(StatusResponse)
	if err := c.call(ctx, "Status", &StatusRequest{}, resp); err != nil {
		return proposer.Status{}, nil, fmt.Errorf("nodegrpc: status rpc: %w", err)
	}
	if resp.Error != nil {
		return proposer.Status{}, nil, fromEnvelope(resp.Error)
	}
	return resp.Proposer, resp.Rsms, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }
