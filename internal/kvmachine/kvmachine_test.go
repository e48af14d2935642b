package kvmachine

import (
	"encoding/json"
	"testing"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

func mustApply(t *testing.T, m *Mod, st any, c Command) (CommandReply, any) {
	t.Helper()
	payload, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	decision, err := m.HandleCommand(st, payload)
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if !decision.Apply {
		t.Fatalf("expected command to be applied, got reply %q", decision.Reply)
	}
	raw, newState, err := m.ApplyCommand(st, decision.Payload, rsmlog.External{Seqno: 1})
	if err != nil {
		t.Fatalf("ApplyCommand: %v", err)
	}
	var reply CommandReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	return reply, newState
}

func TestPutThenGet(t *testing.T) {
	m := New(nil)
	st, err := m.Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	reply, st := mustApply(t, m, st, Command{Type: PutCmd, Key: "a", Value: "1"})
	if !reply.OK {
		t.Fatalf("put failed")
	}

	q, err := json.Marshal(Query{Key: "a"})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := m.HandleQuery(st, q)
	if err != nil {
		t.Fatalf("HandleQuery: %v", err)
	}
	var qr QueryReply
	if err := json.Unmarshal(raw, &qr); err != nil {
		t.Fatal(err)
	}
	if !qr.Found || qr.Value != "1" {
		t.Fatalf("got %+v, want found=true value=1", qr)
	}
}

func TestDeleteReportsFound(t *testing.T) {
	m := New(nil)
	st, _ := m.Init()
	_, st = mustApply(t, m, st, Command{Type: PutCmd, Key: "a", Value: "1"})
	reply, _ := mustApply(t, m, st, Command{Type: DeleteCmd, Key: "a"})
	if !reply.OK || !reply.Found {
		t.Fatalf("got %+v, want ok=true found=true", reply)
	}
	reply, _ = mustApply(t, m, st, Command{Type: DeleteCmd, Key: "a"})
	if !reply.OK || reply.Found {
		t.Fatalf("got %+v, want ok=true found=false on repeat delete", reply)
	}
}

func TestCasOnlySucceedsWhenExpectedMatches(t *testing.T) {
	m := New(nil)
	st, _ := m.Init()
	_, st = mustApply(t, m, st, Command{Type: PutCmd, Key: "a", Value: "1"})

	reply, st := mustApply(t, m, st, Command{Type: CasCmd, Key: "a", Value: "2", Expected: "wrong", HasExpected: true})
	if reply.OK {
		t.Fatalf("cas should have failed on mismatched expected value")
	}

	reply, st = mustApply(t, m, st, Command{Type: CasCmd, Key: "a", Value: "2", Expected: "1", HasExpected: true})
	if !reply.OK || !reply.CasMatch {
		t.Fatalf("cas should have succeeded, got %+v", reply)
	}

	q, _ := json.Marshal(Query{Key: "a"})
	raw, err := m.HandleQuery(st, q)
	if err != nil {
		t.Fatal(err)
	}
	var qr QueryReply
	if err := json.Unmarshal(raw, &qr); err != nil {
		t.Fatal(err)
	}
	if qr.Value != "2" {
		t.Fatalf("got value %q, want 2", qr.Value)
	}
}

func TestHandleCommandRejectsMalformedPayload(t *testing.T) {
	m := New(nil)
	st, _ := m.Init()
	_, err := m.HandleCommand(st, []byte("not json"))
	if err == nil {
		t.Fatalf("expected decode error")
	}
}
