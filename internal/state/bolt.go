package state

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"evalgo.org/foundry/models"
)

var stateBucket = []byte("server_state")

// BoltRepository backs the state store onto a bbolt database. Each server id
// maps to one JSON document; bbolt transactions give whole-document
// atomicity.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository opens (or creates) the database file and ensures the
// state bucket exists.
func NewBoltRepository(path string) (*BoltRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("state database path is required")
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create state bucket: %w", err)
	}
	return &BoltRepository{db: db}, nil
}

// Close releases the underlying database.
func (r *BoltRepository) Close() error {
	return r.db.Close()
}

// Load reads the state document for the server id. An unknown id yields a
// freshly initialized empty state.
func (r *BoltRepository) Load(serverID string) (*models.ServerState, error) {
	state := models.NewServerState(serverID)
	err := r.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(stateBucket).Get([]byte(serverID))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, state); err != nil {
			return fmt.Errorf("failed to decode server state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if state.Configuration == nil {
		state.Configuration = map[string]string{}
	}
	return state, nil
}

// Store replaces the state document for the server id in one transaction.
func (r *BoltRepository) Store(serverID string, state *models.ServerState) error {
	data, err := json.Marshal(forStorage(state))
	if err != nil {
		return fmt.Errorf("failed to encode server state: %w", err)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put([]byte(serverID), data)
	})
}
