package app_test

import (
	"testing"

	"github.com/adilzhan-satpaeva/rsm-core/internal/app"
)

func TestConfig_ValidateRejectsMissingRequiredFields(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *app.Config)
		wantErr bool
	}{
		{"valid default", func(c *app.Config) {}, false},
		{"missing node id", func(c *app.Config) { c.NodeID = "" }, true},
		{"missing history id", func(c *app.Config) { c.HistoryID = "" }, true},
		{"bad log level", func(c *app.Config) { c.LogLevel = "verbose" }, true},
		{"missing client addr", func(c *app.Config) { c.ClientGRPCAddr = "" }, true},
		{"missing peer addr", func(c *app.Config) { c.PeerGRPCAddr = "" }, true},
		{"missing data dir", func(c *app.Config) { c.DataDir = "" }, true},
		{"no rsm names", func(c *app.Config) { c.RSMNames = nil }, true},
		{"no initial voters", func(c *app.Config) { c.InitialVoters = nil }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := app.DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected an error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestConfig_PeerAddrMapParsesAndRejectsMalformedEntries(t *testing.T) {
	cfg := app.DefaultConfig()
	cfg.PeerAddrs = []string{"n2=localhost:9091", "n3=localhost:9092", "  n4=localhost:9093  "}
	m, err := cfg.PeerAddrMap()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"n2": "localhost:9091", "n3": "localhost:9092", "n4": "localhost:9093"}
	if len(m) != len(want) {
		t.Fatalf("got %v, want %v", m, want)
	}
	for id, addr := range want {
		if m[id] != addr {
			t.Fatalf("got %s=%q, want %q", id, m[id], addr)
		}
	}

	cfg.PeerAddrs = []string{"missing-equals"}
	if _, err := cfg.PeerAddrMap(); err == nil {
		t.Fatal("expected an error for a malformed peer entry")
	}

	cfg.PeerAddrs = []string{"n2=localhost:9091", "n2=localhost:9099"}
	if _, err := cfg.PeerAddrMap(); err == nil {
		t.Fatal("expected an error for a duplicate peer id")
	}
}

func TestLoadConfigFromEnv_OverridesDefaultsAndValidates(t *testing.T) {
	t.Setenv("APP_NODE_ID", "node-7")
	t.Setenv("APP_HISTORY_ID", "h7")
	t.Setenv("APP_LOG_LEVEL", "DEBUG")
	t.Setenv("APP_PEERS", "n1=host1:1, n2=host2:2")
	t.Setenv("APP_INITIAL_VOTERS", "node-7,n1,n2")
	t.Setenv("APP_RSM_NAMES", "kv,ledger")
	t.Setenv("APP_TRACING_ENABLED", "true")

	cfg, err := app.LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.NodeID != "node-7" || cfg.HistoryID != "h7" || cfg.LogLevel != "debug" {
		t.Fatalf("got %+v", cfg)
	}
	if len(cfg.PeerAddrs) != 2 || len(cfg.InitialVoters) != 3 || len(cfg.RSMNames) != 2 {
		t.Fatalf("got %+v", cfg)
	}
	if !cfg.TracingEnabled {
		t.Fatal("expected TracingEnabled=true")
	}
}

func TestLoadConfigFromEnv_RejectsUnparseableTracingFlag(t *testing.T) {
	t.Setenv("APP_TRACING_ENABLED", "not-a-bool")
	if _, err := app.LoadConfigFromEnv(); err == nil {
		t.Fatal("expected an error for an unparseable APP_TRACING_ENABLED")
	}
}
