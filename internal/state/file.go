package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"evalgo.org/foundry/models"
)

// FileRepository is the default repository: one JSON document per server id
// under a base directory. Store writes to a temp file in the same directory
// and renames it over the target, so a concurrent Load sees either the old
// or the new complete document.
type FileRepository struct {
	dir string
	mu  sync.Mutex
}

// NewFileRepository creates the base directory if needed.
func NewFileRepository(dir string) (*FileRepository, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) path(serverID string) string {
	return filepath.Join(r.dir, serverID+".json")
}

// Load reads the state document for the server id. An unknown id yields a
// freshly initialized empty state.
func (r *FileRepository) Load(serverID string) (*models.ServerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path(serverID))
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewServerState(serverID), nil
		}
		return nil, fmt.Errorf("failed to read server state: %w", err)
	}

	state := models.NewServerState(serverID)
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to decode server state: %w", err)
	}
	if state.Configuration == nil {
		state.Configuration = map[string]string{}
	}
	return state, nil
}

// Store atomically replaces the state document for the server id.
func (r *FileRepository) Store(serverID string, state *models.ServerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(forStorage(state), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode server state: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, serverID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write server state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path(serverID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace server state: %w", err)
	}
	return nil
}
