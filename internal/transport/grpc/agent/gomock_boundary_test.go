package agentgrpc_test

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// These tests exercise the wire boundary in isolation from any real Agent
// implementation: the mock Handler stands in for whatever durable store sits
// behind agentgrpc.Server, the way the teacher's MockPeerClient stands in
// for a live raft.PeerClient in replication_test.go.

func TestServer_EstablishTerm_ForwardsArgsAndResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewMockHandler(ctrl)
	term := rsmlog.Term{Number: 4, LeaderID: "n2"}
	wantMeta := rsmlog.Metadata{HistoryID: "h1", Term: term}

	handler.EXPECT().
		EstablishTerm(gomock.Any(), rsmlog.HistoryID("h1"), term, int64(7)).
		Return(wantMeta, nil).
		Times(1)

	client, cleanup := startServer(t, handler)
	defer cleanup()

	got, err := client.EstablishTerm(context.Background(), rsmlog.HistoryID("h1"), term, 7)
	if err != nil {
		t.Fatalf("EstablishTerm: %v", err)
	}
	if got.HistoryID != wantMeta.HistoryID || got.Term != wantMeta.Term {
		t.Fatalf("got %+v, want %+v", got, wantMeta)
	}
}

func TestServer_Append_TranslatesConflictingTermError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewMockHandler(ctrl)
	term := rsmlog.Term{Number: 4, LeaderID: "n2"}
	loserTerm := rsmlog.Term{Number: 5, LeaderID: "n3"}

	handler.EXPECT().
		Append(gomock.Any(), rsmlog.HistoryID("h1"), term, int64(0), gomock.Any()).
		Return(int64(0), int64(0), &agent.ConflictingTermError{Term: loserTerm}).
		Times(1)

	client, cleanup := startServer(t, handler)
	defer cleanup()

	_, _, err := client.Append(context.Background(), rsmlog.HistoryID("h1"), term, 0, nil)
	ct, ok := agent.AsConflictingTerm(err)
	if !ok {
		t.Fatalf("got %v, want a ConflictingTermError", err)
	}
	if ct.Term != loserTerm {
		t.Fatalf("got winning term %+v, want %+v", ct.Term, loserTerm)
	}
}

func TestServer_EnsureTerm_ForwardsPositions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewMockHandler(ctrl)
	term := rsmlog.Term{Number: 2, LeaderID: "n1"}

	handler.EXPECT().
		EnsureTerm(gomock.Any(), rsmlog.HistoryID("h1"), term).
		Return(int64(42), int64(40), nil).
		Times(1)

	client, cleanup := startServer(t, handler)
	defer cleanup()

	high, ackedCommit, err := client.EnsureTerm(context.Background(), rsmlog.HistoryID("h1"), term)
	if err != nil {
		t.Fatalf("EnsureTerm: %v", err)
	}
	if high != 42 || ackedCommit != 40 {
		t.Fatalf("got high=%d ackedCommit=%d, want 42/40", high, ackedCommit)
	}
}
