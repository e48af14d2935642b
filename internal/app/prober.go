package app

import (
	"context"
	"errors"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
	agentgrpc "github.com/adilzhan-satpaeva/rsm-core/internal/transport/grpc/agent"
)

// newProber builds a liveness.Prober out of the same peer clients the
// Dispatcher uses, probing with EnsureTerm at term zero: any typed agent
// error (conflicting term, history mismatch, behind) still proves the peer
// process is up and answering RPCs, so only a transport-level failure counts
// as down.
func newProber(historyID rsmlog.HistoryID, clients map[string]*agentgrpc.Client) func(ctx context.Context, peer string) error {
	return func(ctx context.Context, peer string) error {
		c, ok := clients[peer]
		if !ok {
			return errors.New("app: no client for peer " + peer)
		}
		_, _, err := c.EnsureTerm(ctx, historyID, rsmlog.Term{})
		if err == nil {
			return nil
		}
		if _, ok := agent.AsConflictingTerm(err); ok {
			return nil
		}
		if _, ok := agent.AsHistoryMismatch(err); ok {
			return nil
		}
		if _, ok := agent.AsBehind(err); ok {
			return nil
		}
		return err
	}
}
