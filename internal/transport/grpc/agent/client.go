package agentgrpc

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// Client implements agent.PeerAgent over a gRPC connection to a remote
// node's Agent, using the hand-written JSON-coded AgentService (see
// codec.go / server.go doc comments for why there is no generated stub).
type Client struct {
	conn *grpc.ClientConn

	closeOnce sync.Once
	done      chan struct{}
}

var _ agent.PeerAgent = (*Client)(nil)

// Dial connects to a remote peer's Agent transport. The connection is
// established lazily on the first RPC, matching the teacher's raftgrpc.Dial.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn, done: make(chan struct{})}
	go c.watchState()
	return c, nil
}

func (c *Client) watchState() {
	ctx := context.Background()
	for {
		state := c.conn.GetState()
		if state == connectivity.Shutdown {
			c.closeOnce.Do(func() { close(c.done) })
			return
		}
		if !c.conn.WaitForStateChange(ctx, state) {
			return
		}
	}
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	return c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp, grpc.ForceCodec(jsonCodec{}))
}

// EstablishTerm implements agent.PeerAgent.
func (c *Client) EstablishTerm(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, logPosition int64) (rsmlog.Metadata, error) {
	req := &EstablishTermRequest{HistoryID: historyID, Term: term, LogPosition: logPosition}
	resp := new(EstablishTermResponse)
	if err := c.call(ctx, "EstablishTerm", req, resp); err != nil {
		return rsmlog.Metadata{}, fmt.Errorf("agentgrpc: establishTerm rpc: %w", err)
	}
	if resp.Error != nil {
		return rsmlog.Metadata{}, fromEnvelope(resp.Error)
	}
	return resp.Metadata, nil
}

// Append implements agent.PeerAgent.
func (c *Client) Append(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, committedSeqno int64, entries []rsmlog.LogEntry) (int64, int64, error) {
	req := &AppendRequest{HistoryID: historyID, Term: term, CommittedSeqno: committedSeqno, Entries: entries}
	resp := new(AppendResponse)
	if err := c.call(ctx, "Append", req, resp); err != nil {
		return 0, 0, fmt.Errorf("agentgrpc: append rpc: %w", err)
	}
	if resp.Error != nil {
		return 0, 0, fromEnvelope(resp.Error)
	}
	return resp.HighSeqno, resp.AckedCommitSeqno, nil
}

// EnsureTerm implements agent.PeerAgent.
func (c *Client) EnsureTerm(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term) (int64, int64, error) {
	req := &EnsureTermRequest{HistoryID: historyID, Term: term}
	resp := new(EnsureTermResponse)
	if err := c.call(ctx, "EnsureTerm", req, resp); err != nil {
		return 0, 0, fmt.Errorf("agentgrpc: ensureTerm rpc: %w", err)
	}
	if resp.Error != nil {
		return 0, 0, fromEnvelope(resp.Error)
	}
	return resp.HighSeqno, resp.AckedCommitSeqno, nil
}

// Done implements agent.PeerAgent.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close implements agent.PeerAgent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.conn.Close()
}

// DialPeers dials every peer address and returns a map keyed by peer id,
// closing any already-opened connections if a later dial fails.
func DialPeers(addresses map[string]string, opts ...grpc.DialOption) (map[string]*Client, error) {
	peers := make(map[string]*Client, len(addresses))
	for id, addr := range addresses {
		c, err := Dial(addr, opts...)
		if err != nil {
			for _, p := range peers {
				_ = p.Close()
			}
			return nil, fmt.Errorf("dial peer %s at %s: %w", id, addr, err)
		}
		peers[id] = c
	}
	return peers, nil
}
