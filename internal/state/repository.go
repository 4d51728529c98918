// Package state provides the durable server-state layer for Foundry.
// A repository persists one whole ServerState document per server id;
// writes are atomic with respect to concurrent loads, so a load observes
// either the prior complete document or the new one.
package state

import "evalgo.org/foundry/models"

// Repository persists and loads the authoritative server state.
// Load of an unknown server id yields a freshly initialized empty state.
type Repository interface {
	Load(serverID string) (*models.ServerState, error)
	Store(serverID string, state *models.ServerState) error
}

// forStorage returns a copy of state with volatile fields stripped.
// Per-container messages are attached on read by the engine and never
// persisted.
func forStorage(state *models.ServerState) *models.ServerState {
	copied := *state
	copied.Containers = make([]models.ContainerResource, len(state.Containers))
	for i, c := range state.Containers {
		c.Messages = nil
		copied.Containers[i] = c
	}
	return &copied
}
