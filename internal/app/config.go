package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime settings for a node process.
type Config struct {
	NodeID    string
	HistoryID string
	LogLevel  string

	// ClientGRPCAddr serves nodegrpc.Node, the surface cmd/adminctl talks to.
	ClientGRPCAddr string
	// PeerGRPCAddr serves agentgrpc.AgentService, the surface other nodes'
	// Proposers talk to when this node is a replication target.
	PeerGRPCAddr string
	DataDir      string

	// PeerAddrs entries are "peer-id=host:port"; the local NodeID must not
	// appear here.
	PeerAddrs []string
	// InitialVoters bootstraps the Config a fresh (never-before-run) node
	// starts its history with; ignored once a durable snapshot exists.
	InitialVoters []string
	// RSMNames lists which named state machines this process runs. Only
	// "kv" is wired to a Mod today.
	RSMNames []string

	PprofAddr   string
	MetricsAddr string

	TracingEnabled     bool
	TracingEndpoint    string
	TracingServiceName string

	ElectionMinBackoff time.Duration
	ElectionMaxBackoff time.Duration

	LivenessInterval          time.Duration
	LivenessFailureThreshold  int
	LivenessRecoveryThreshold int
}

// DefaultConfig returns a local-development configuration for a single node
// named "node-1" with no peers.
func DefaultConfig() Config {
	return Config{
		NodeID:             "node-1",
		HistoryID:          "default",
		LogLevel:           "info",
		ClientGRPCAddr:     ":8080",
		PeerGRPCAddr:       ":9090",
		DataDir:            "./var/node-1",
		InitialVoters:      []string{"node-1"},
		RSMNames:           []string{"kv"},
		TracingServiceName: "rsm-node",
	}
}

// LoadConfigFromEnv loads config from environment variables.
//
// Supported vars:
// - APP_NODE_ID, APP_HISTORY_ID, APP_LOG_LEVEL
// - APP_CLIENT_GRPC_ADDR, APP_PEER_GRPC_ADDR, APP_DATA_DIR
// - APP_PEERS (comma-separated "id=host:port")
// - APP_INITIAL_VOTERS, APP_RSM_NAMES (comma-separated)
// - APP_PPROF_ADDR, APP_METRICS_ADDR
// - APP_TRACING_ENABLED, APP_TRACING_ENDPOINT, APP_TRACING_SERVICE_NAME
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("APP_NODE_ID")); v != "" {
		cfg.NodeID = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_HISTORY_ID")); v != "" {
		cfg.HistoryID = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("APP_CLIENT_GRPC_ADDR")); v != "" {
		cfg.ClientGRPCAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_PEER_GRPC_ADDR")); v != "" {
		cfg.PeerGRPCAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_PEERS")); v != "" {
		cfg.PeerAddrs = splitCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv("APP_INITIAL_VOTERS")); v != "" {
		cfg.InitialVoters = splitCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv("APP_RSM_NAMES")); v != "" {
		cfg.RSMNames = splitCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv("APP_PPROF_ADDR")); v != "" {
		cfg.PprofAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_TRACING_ENABLED")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_TRACING_ENABLED %q: %w", v, err)
		}
		cfg.TracingEnabled = b
	}
	if v := strings.TrimSpace(os.Getenv("APP_TRACING_ENDPOINT")); v != "" {
		cfg.TracingEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_TRACING_SERVICE_NAME")); v != "" {
		cfg.TracingServiceName = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and supported.
func (c Config) Validate() error {
	if strings.TrimSpace(c.NodeID) == "" {
		return fmt.Errorf("app: node id is required")
	}
	if strings.TrimSpace(c.HistoryID) == "" {
		return fmt.Errorf("app: history id is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app: unsupported log level %q", c.LogLevel)
	}
	if strings.TrimSpace(c.ClientGRPCAddr) == "" {
		return fmt.Errorf("app: client grpc addr is required")
	}
	if strings.TrimSpace(c.PeerGRPCAddr) == "" {
		return fmt.Errorf("app: peer grpc addr is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("app: data dir is required")
	}
	if len(c.RSMNames) == 0 {
		return fmt.Errorf("app: at least one rsm name is required")
	}
	if len(c.InitialVoters) == 0 {
		return fmt.Errorf("app: at least one initial voter is required")
	}
	return nil
}

// PeerAddrMap parses PeerAddrs into a map of peer-id -> address.
func (c Config) PeerAddrMap() (map[string]string, error) {
	out := make(map[string]string, len(c.PeerAddrs))
	for _, raw := range c.PeerAddrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		left, right, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("app: invalid peer entry %q, want id=host:port", raw)
		}
		id := strings.TrimSpace(left)
		addr := strings.TrimSpace(right)
		if id == "" || addr == "" {
			return nil, fmt.Errorf("app: invalid peer entry %q", raw)
		}
		if _, exists := out[id]; exists {
			return nil, fmt.Errorf("app: duplicate peer id %q", id)
		}
		out[id] = addr
	}
	return out, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
