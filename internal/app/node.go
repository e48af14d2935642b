package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/adilzhan-satpaeva/rsm-core/internal/election"
	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsm"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
	nodegrpc "github.com/adilzhan-satpaeva/rsm-core/internal/transport/grpc/node"
	"github.com/adilzhan-satpaeva/rsm-core/internal/server"
)

// Node adapts the running Central switchboard, the set of registered RSM
// runtimes, and the Elector to nodegrpc.Handler, the surface cmd/adminctl
// talks to. It is intentionally separate from server.Central's own narrow
// runtime interface: a client-facing handler needs Command/Query/Status,
// which Central deliberately does not expose to keep the Proposer/Runtime
// wiring itself minimal.
type Node struct {
	central *server.Central
	elector *election.Elector

	mu   sync.RWMutex
	rsms map[string]*rsm.Runtime
}

// NewNode builds a Node with no RSMs registered; call Register for each one
// the process runs.
func NewNode(central *server.Central, elector *election.Elector) *Node {
	return &Node{central: central, elector: elector, rsms: make(map[string]*rsm.Runtime)}
}

// Register makes rt reachable by name through Command/Query/Status.
func (n *Node) Register(name string, rt *rsm.Runtime) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rsms[name] = rt
}

func (n *Node) runtime(name string) (*rsm.Runtime, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	rt, ok := n.rsms[name]
	return rt, ok
}

// Command implements nodegrpc.Handler.
func (n *Node) Command(ctx context.Context, rsmName string, payload []byte) ([]byte, error) {
	rt, ok := n.runtime(rsmName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", nodegrpc.ErrUnknownRsm, rsmName)
	}
	select {
	case reply := <-rt.Command(payload):
		return reply.Reply, reply.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Query implements nodegrpc.Handler.
func (n *Node) Query(ctx context.Context, rsmName string, payload []byte) ([]byte, error) {
	rt, ok := n.runtime(rsmName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", nodegrpc.ErrUnknownRsm, rsmName)
	}
	select {
	case reply := <-rt.Query(payload):
		return reply.Reply, reply.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CasConfig implements nodegrpc.Handler.
func (n *Node) CasConfig(ctx context.Context, expectedRevision rsmlog.Revision, newConfig rsmlog.Config) (proposer.Reply, error) {
	select {
	case reply := <-n.central.SubmitCasConfig(expectedRevision, newConfig):
		return reply, nil
	case <-ctx.Done():
		return proposer.Reply{}, ctx.Err()
	}
}

// Status implements nodegrpc.Handler, aggregating the current term
// attempt's Proposer.Status alongside every registered Runtime's Status.
func (n *Node) Status(ctx context.Context) (proposer.Status, map[string]rsm.Status, error) {
	var pstat proposer.Status
	if p, _, ok := n.elector.Current(); ok {
		select {
		case s, ok := <-p.Status():
			if ok {
				pstat = s
			}
		case <-ctx.Done():
			return proposer.Status{}, nil, ctx.Err()
		}
	}

	n.mu.RLock()
	names := make([]string, 0, len(n.rsms))
	rts := make([]*rsm.Runtime, 0, len(n.rsms))
	for name, rt := range n.rsms {
		names = append(names, name)
		rts = append(rts, rt)
	}
	n.mu.RUnlock()

	rstats := make(map[string]rsm.Status, len(names))
	for i, name := range names {
		select {
		case s, ok := <-rts[i].Status():
			if ok {
				rstats[name] = s
			}
		case <-ctx.Done():
			return proposer.Status{}, nil, ctx.Err()
		}
	}
	return pstat, rstats, nil
}
