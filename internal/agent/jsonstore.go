package agent

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/adilzhan-satpaeva/rsm-core/internal/rsmlog"
)

// JSONStore is a durable Local implementation that wraps a MemoryAgent and
// persists its state as a single JSON file after every EstablishLocalTerm,
// EstablishTerm, Append and AdoptHistory call (SetPendingBranch and
// TruncateAbove are the embedded MemoryAgent's and do not persist),
// grounded on the teacher's JSONStorage (writeJSONAtomically + a
// create-temp-then-rename swap, so a crash mid-write never corrupts the
// previous snapshot).
type JSONStore struct {
	*MemoryAgent

	path string
	mu   sync.Mutex
}

// NewJSONStore opens or creates a durable agent rooted at dir. If a prior
// snapshot exists it is restored; otherwise a fresh agent is bootstrapped
// with historyID and initial.
func NewJSONStore(dir, id string, historyID rsmlog.HistoryID, initial rsmlog.Config) (*JSONStore, error) {
	path := filepath.Join(dir, "agent_state.json")
	s := &JSONStore{path: path}

	state, err := loadState(path)
	if err != nil {
		return nil, err
	}
	if state != nil {
		s.MemoryAgent = RestoreMemoryAgent(*state)
		return s, nil
	}

	s.MemoryAgent = NewMemoryAgent(id, historyID, initial)
	if err := s.persist(); err != nil {
		return nil, err
	}
	return s, nil
}

func loadState(path string) (*PersistedState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var state PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *JSONStore) persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomically(s.path, s.MemoryAgent.ExportState())
}

// EstablishLocalTerm implements Local, persisting after the vote succeeds.
func (s *JSONStore) EstablishLocalTerm(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term) (rsmlog.Metadata, error) {
	meta, err := s.MemoryAgent.EstablishLocalTerm(ctx, historyID, term)
	if err != nil {
		return meta, err
	}
	return meta, s.persist()
}

// EstablishTerm implements PeerAgent-shaped access to a local JSONStore,
// persisting after the vote succeeds.
func (s *JSONStore) EstablishTerm(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, logPosition int64) (rsmlog.Metadata, error) {
	meta, err := s.MemoryAgent.EstablishTerm(ctx, historyID, term, logPosition)
	if err != nil {
		return meta, err
	}
	return meta, s.persist()
}

// Append implements Local, persisting after entries land.
func (s *JSONStore) Append(ctx context.Context, historyID rsmlog.HistoryID, term rsmlog.Term, committedSeqno int64, entries []rsmlog.LogEntry) (int64, int64, error) {
	high, ackedCommit, err := s.MemoryAgent.Append(ctx, historyID, term, committedSeqno, entries)
	if err != nil {
		return high, ackedCommit, err
	}
	return high, ackedCommit, s.persist()
}

// AdoptHistory switches the durable agent onto a new history, persisting the
// change immediately so a crash right after a branch's forced config commits
// doesn't leave the on-disk historyID stale.
func (s *JSONStore) AdoptHistory(historyID rsmlog.HistoryID) {
	s.MemoryAgent.AdoptHistory(historyID)
	_ = s.persist()
}

func writeJSONAtomically(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
