package app

import (
	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	agentgrpc "github.com/adilzhan-satpaeva/rsm-core/internal/transport/grpc/agent"
)

// peerDispatcher adapts a statically-dialed set of agentgrpc.Client
// connections to agent.Dispatcher. Reachability is Peer Liveness's concern,
// not the dispatcher's: every peer this node was configured with gets a
// handle, whether or not it currently answers.
type peerDispatcher struct {
	clients map[string]*agentgrpc.Client
	ids     []string
}

func newPeerDispatcher(clients map[string]*agentgrpc.Client) *peerDispatcher {
	ids := make([]string, 0, len(clients))
	for id := range clients {
		ids = append(ids, id)
	}
	return &peerDispatcher{clients: clients, ids: ids}
}

// Peer implements agent.Dispatcher.
func (d *peerDispatcher) Peer(id string) (agent.PeerAgent, bool) {
	c, ok := d.clients[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// LivePeers implements agent.Dispatcher, returning every peer this node was
// configured to reach.
func (d *peerDispatcher) LivePeers() []string { return d.ids }

func (d *peerDispatcher) Close() {
	for _, c := range d.clients {
		_ = c.Close()
	}
}
