package agentgrpc_test

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/adilzhan-satpaeva/rsm-core/internal/agent"
	agentgrpc "github.com/adilzhan-satpaeva/rsm-core/internal/transport/grpc/agent"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

const bufSize = 1 << 20

func startServer(t *testing.T, handler agentgrpc.Handler) (*agentgrpc.Client, func()) {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer(agentgrpc.Codec())
	agentgrpc.Register(srv, agentgrpc.NewServer(handler, nil))
	go func() { _ = srv.Serve(lis) }()

	dialOpts := []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	c, err := agentgrpc.Dial("passthrough:///bufconn", dialOpts...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	cleanup := func() {
		_ = c.Close()
		srv.GracefulStop()
	}
	return c, cleanup
}

func TestEstablishTermRoundTrip(t *testing.T) {
	local := agent.NewMemoryAgent("n1", rsmlog.HistoryID("h1"), rsmlog.Config{Voters: []string{"n1", "n2", "n3"}})
	client, cleanup := startServer(t, local)
	defer cleanup()

	meta, err := client.EstablishTerm(context.Background(), rsmlog.HistoryID("h1"), rsmlog.Term{Number: 1, LeaderID: "n2"}, 0)
	if err != nil {
		t.Fatalf("EstablishTerm: %v", err)
	}
	if meta.HistoryID != rsmlog.HistoryID("h1") {
		t.Fatalf("got history id %q, want h1", meta.HistoryID)
	}
}

func TestAppendRoundTripAndErrorEnvelope(t *testing.T) {
	local := agent.NewMemoryAgent("n1", rsmlog.HistoryID("h1"), rsmlog.Config{Voters: []string{"n1", "n2", "n3"}})
	client, cleanup := startServer(t, local)
	defer cleanup()

	ctx := context.Background()
	term := rsmlog.Term{Number: 1, LeaderID: "n2"}
	if _, err := client.EstablishTerm(ctx, rsmlog.HistoryID("h1"), term, 0); err != nil {
		t.Fatalf("EstablishTerm: %v", err)
	}

	entries := []rsmlog.LogEntry{{HistoryID: rsmlog.HistoryID("h1"), Term: term, Seqno: 1, Kind: rsmlog.EntryRsmCommand, Command: rsmlog.RsmCommand{ID: 1, RsmName: "kv", Payload: []byte("x")}}}
	high, ackedCommit, err := client.Append(ctx, rsmlog.HistoryID("h1"), term, 0, entries)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if high != 1 || ackedCommit != 0 {
		t.Fatalf("got high=%d ackedCommit=%d, want high=1 ackedCommit=0", high, ackedCommit)
	}

	// Wrong history id round-trips as a typed historyMismatch error.
	_, _, err = client.Append(ctx, rsmlog.HistoryID("other"), term, 0, nil)
	if _, ok := agent.AsHistoryMismatch(err); !ok {
		t.Fatalf("got %v, want a HistoryMismatchError", err)
	}
}

func TestEnsureTermRoundTrip(t *testing.T) {
	local := agent.NewMemoryAgent("n1", rsmlog.HistoryID("h1"), rsmlog.Config{Voters: []string{"n1", "n2", "n3"}})
	client, cleanup := startServer(t, local)
	defer cleanup()

	ctx := context.Background()
	term := rsmlog.Term{Number: 1, LeaderID: "n2"}
	if _, err := client.EstablishTerm(ctx, rsmlog.HistoryID("h1"), term, 0); err != nil {
		t.Fatalf("EstablishTerm: %v", err)
	}
	high, _, err := client.EnsureTerm(ctx, rsmlog.HistoryID("h1"), term)
	if err != nil {
		t.Fatalf("EnsureTerm: %v", err)
	}
	if high != 0 {
		t.Fatalf("got high=%d, want 0", high)
	}
}
