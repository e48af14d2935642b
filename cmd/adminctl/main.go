// Package main implements adminctl, a plain flag-driven CLI against a
// node's client-facing NodeService: it submits commands/queries to a named
// RSM, requests configuration changes, and prints status snapshots. It
// replaces the teacher's bubbletea/lipgloss admin TUI (cmd/client/admin.go)
// with something scriptable, since spec.md's admin surface is a diagnostic
// tool, not an interactive dashboard.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/adilzhan-satpaeva/rsm-core/internal/kvmachine"
	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
	nodegrpc "github.com/adilzhan-satpaeva/rsm-core/internal/transport/grpc/node"
)

const usage = `Usage:
  adminctl [--addr host:port] [--timeout dur] status
  adminctl [--addr host:port] [--timeout dur] --rsm name get <key>
  adminctl [--addr host:port] [--timeout dur] --rsm name put <key> <value>
  adminctl [--addr host:port] [--timeout dur] --rsm name delete <key>
  adminctl [--addr host:port] [--timeout dur] --rsm name cas <key> <expected> <value>
  adminctl [--addr host:port] [--timeout dur] cas-config <expected-seqno> <voter>[,<voter>...]

Flags:
  --addr     Node client gRPC address (default localhost:8080)
  --rsm      Target RSM name for get/put/delete/cas (default kv)
  --timeout  Request timeout (default 5s)
`

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "adminctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:8080", "node client gRPC address")
	rsmName := flag.String("rsm", "kv", "target rsm name")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Usage = func() { _, _ = fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("no command given")
	}

	client, err := nodegrpc.Dial(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", *addr, err)
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch args[0] {
	case "status":
		return runStatus(ctx, client)
	case "get":
		return runGet(ctx, client, *rsmName, args[1:])
	case "put":
		return runPut(ctx, client, *rsmName, args[1:])
	case "delete":
		return runDelete(ctx, client, *rsmName, args[1:])
	case "cas":
		return runCas(ctx, client, *rsmName, args[1:])
	case "cas-config":
		return runCasConfig(ctx, client, args[1:])
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runStatus(ctx context.Context, client *nodegrpc.Client) error {
	pstat, rstats, err := client.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("proposer: self=%s history=%s term=%s leader=%v committed=%d high=%d config_rev=%+v\n",
		pstat.Self, pstat.HistoryID, pstat.Term, pstat.IsLeader, pstat.CommittedSeqno, pstat.HighSeqno, pstat.ConfigRevision)
	for _, peer := range pstat.Peers {
		fmt.Printf("  peer %-16s sent=%-6d acked=%-6d acked_commit=%-6d needs_sync=%v in_flight=%v\n",
			peer.Peer, peer.Sent, peer.Acked, peer.AckedCommit, peer.NeedsSync, peer.InFlight)
	}
	for name, s := range rstats {
		fmt.Printf("rsm %-8s leader=%v applied_seqno=%d available_seqno=%d pending_clients=%d pending_sync=%d\n",
			name, s.IsLeader, s.AppliedSeqno, s.AvailableSeqno, s.PendingClients, s.PendingSync)
	}
	return nil
}

func runGet(ctx context.Context, client *nodegrpc.Client, rsmName string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("get requires <key>")
	}
	payload, err := json.Marshal(kvmachine.Query{Key: args[0]})
	if err != nil {
		return err
	}
	reply, err := client.Query(ctx, rsmName, payload)
	if err != nil {
		return err
	}
	var out kvmachine.QueryReply
	if err := json.Unmarshal(reply, &out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if !out.Found {
		fmt.Println("(not found)")
		return nil
	}
	fmt.Println(out.Value)
	return nil
}

func runPut(ctx context.Context, client *nodegrpc.Client, rsmName string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("put requires <key> <value>")
	}
	return submitCommand(ctx, client, rsmName, kvmachine.Command{Type: kvmachine.PutCmd, Key: args[0], Value: args[1]})
}

func runDelete(ctx context.Context, client *nodegrpc.Client, rsmName string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("delete requires <key>")
	}
	return submitCommand(ctx, client, rsmName, kvmachine.Command{Type: kvmachine.DeleteCmd, Key: args[0]})
}

func runCas(ctx context.Context, client *nodegrpc.Client, rsmName string, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("cas requires <key> <expected> <value>")
	}
	return submitCommand(ctx, client, rsmName, kvmachine.Command{
		Type: kvmachine.CasCmd, Key: args[0], Expected: args[1], HasExpected: true, Value: args[2],
	})
}

func submitCommand(ctx context.Context, client *nodegrpc.Client, rsmName string, cmd kvmachine.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	reply, err := client.Command(ctx, rsmName, payload)
	if err != nil {
		return err
	}
	var out kvmachine.CommandReply
	if err := json.Unmarshal(reply, &out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	fmt.Printf("ok=%v found=%v cas_match=%v value=%q\n", out.OK, out.Found, out.CasMatch, out.Value)
	return nil
}

func runCasConfig(ctx context.Context, client *nodegrpc.Client, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("cas-config requires <expected-seqno> <voters>")
	}
	seqno, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expected seqno %q: %w", args[0], err)
	}
	voters := strings.Split(args[1], ",")

	resp, err := client.CasConfig(ctx, rsmlog.Revision{Seqno: seqno}, rsmlog.Config{Voters: voters})
	if err != nil {
		return err
	}
	switch {
	case resp.Applied:
		fmt.Printf("applied at revision %+v\n", resp.Revision)
	case resp.NoQuorum:
		fmt.Println("rejected: no quorum")
	default:
		fmt.Printf("rejected: current revision is %+v\n", resp.CurrentRevision)
	}
	return nil
}
