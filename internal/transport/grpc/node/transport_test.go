package nodegrpc_test

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/adilzhan-satpaeva/rsm-core/internal/proposer"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsm"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
	nodegrpc "github.com/adilzhan-satpaeva/rsm-core/internal/transport/grpc/node"
)

const bufSize = 1 << 20

type fakeHandler struct {
	commandReply []byte
	commandErr   error
	casReply     proposer.Reply
	casErr       error
}

func (f *fakeHandler) Command(ctx context.Context, rsmName string, payload []byte) ([]byte, error) {
	return f.commandReply, f.commandErr
}

func (f *fakeHandler) Query(ctx context.Context, rsmName string, payload []byte) ([]byte, error) {
	return f.commandReply, f.commandErr
}

func (f *fakeHandler) CasConfig(ctx context.Context, expectedRevision rsmlog.Revision, newConfig rsmlog.Config) (proposer.Reply, error) {
	return f.casReply, f.casErr
}

func (f *fakeHandler) Status(ctx context.Context) (proposer.Status, map[string]rsm.Status, error) {
	return proposer.Status{Self: "n1", IsLeader: true}, map[string]rsm.Status{"kv": {Name: "kv", IsLeader: true}}, nil
}

func startServer(t *testing.T, h nodegrpc.Handler) (*nodegrpc.Client, func()) {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	srv := grpc.NewServer(nodegrpc.Codec())
	nodegrpc.Register(srv, nodegrpc.NewServer(h))
	go func() { _ = srv.Serve(lis) }()

	dialOpts := []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	c, err := nodegrpc.Dial("passthrough:///bufconn", dialOpts...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return c, func() { _ = c.Close(); srv.GracefulStop() }
}

func TestCommandRoundTrip(t *testing.T) {
	h := &fakeHandler{commandReply: []byte("ok")}
	client, cleanup := startServer(t, h)
	defer cleanup()

	reply, err := client.Command(context.Background(), "kv", []byte("put x y"))
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if string(reply) != "ok" {
		t.Fatalf("got %q, want ok", reply)
	}
}

func TestCommandErrorRoundTrip(t *testing.T) {
	h := &fakeHandler{commandErr: rsm.ErrNotLeader}
	client, cleanup := startServer(t, h)
	defer cleanup()

	_, err := client.Command(context.Background(), "kv", nil)
	if err == nil || err.Error() != rsm.ErrNotLeader.Error() {
		t.Fatalf("got %v, want rsm.ErrNotLeader", err)
	}
}

func TestCasConfigRoundTrip(t *testing.T) {
	h := &fakeHandler{casReply: proposer.Reply{Value: proposer.Ok{Revision: rsmlog.Revision{Seqno: 3}}}}
	client, cleanup := startServer(t, h)
	defer cleanup()

	resp, err := client.CasConfig(context.Background(), rsmlog.Revision{Seqno: 2}, rsmlog.Config{Voters: []string{"n1", "n2", "n3"}})
	if err != nil {
		t.Fatalf("CasConfig: %v", err)
	}
	if !resp.Applied || resp.Revision.Seqno != 3 {
		t.Fatalf("got %+v, want applied at seqno 3", resp)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	h := &fakeHandler{}
	client, cleanup := startServer(t, h)
	defer cleanup()

	pstat, rstat, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !pstat.IsLeader || pstat.Self != "n1" {
		t.Fatalf("got proposer status %+v", pstat)
	}
	if !rstat["kv"].IsLeader {
		t.Fatalf("got rsm status %+v", rstat)
	}
}
