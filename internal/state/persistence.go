package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quantara/ensemble-trader/internal/ensemble"
	"github.com/quantara/ensemble-trader/internal/orchestrator"
	"github.com/quantara/ensemble-trader/internal/risk"
)

const (
	stateVersion = "1"
	stateFile    = "engine_state.json"
)

// EngineState bundles every piece of learned or adaptive state that must
// survive a restart: ensemble windows and weights, the risk profile with
// its equity tracking, the adjuster audit trail and the orchestrator's
// positions and feedback pairs. Caches and metrics are rebuilt, not saved.
type EngineState struct {
	Version      string             `json:"version"`
	SavedAt      time.Time          `json:"saved_at"`
	Ensemble     ensemble.State     `json:"ensemble"`
	Risk         risk.ManagerState  `json:"risk"`
	Adjuster     risk.AdjusterState `json:"adjuster"`
	Orchestrator orchestrator.State `json:"orchestrator"`
}

// Store persists EngineState as JSON under a state directory. Writes go
// through a temp file and rename so a crash mid-save never corrupts the
// previous good state.
type Store struct {
	mu  sync.Mutex
	dir string
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("state: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Path() string { return filepath.Join(s.dir, stateFile) }

func (s *Store) Save(st *EngineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.Version = stateVersion
	st.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal: %w", err)
	}

	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("state: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("state: replace state file: %w", err)
	}
	return nil
}

// Load reads the persisted state. A missing file is not an error; it
// returns (nil, nil) so a first run starts clean.
func (s *Store) Load() (*EngineState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read: %w", err)
	}

	var st EngineState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("state: unmarshal: %w", err)
	}
	if st.Version != stateVersion {
		return nil, fmt.Errorf("state: unsupported version %q", st.Version)
	}
	return &st, nil
}
