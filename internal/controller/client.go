// Package controller implements the handshake with the remote control plane
// that may dictate which containers this host runs.
package controller

import "evalgo.org/foundry/models"

// ConnectKind is the three-way outcome of a handshake attempt.
type ConnectKind int

const (
	// Ready means a controller answered with a setup.
	Ready ConnectKind = iota
	// NotDefined means no controllers are configured; the host falls back
	// to its locally persisted containers.
	NotDefined
	// NotConnected means controllers are configured but none could be
	// reached.
	NotConnected
)

// ConnectResult carries the handshake outcome. Setup is non-nil only for
// Ready.
type ConnectResult struct {
	Kind  ConnectKind
	Setup *models.ServerSetup
}

// Client is the controller wire contract the engine consumes.
type Client interface {
	Connect(info models.ServerInfo) ConnectResult
	Disconnect(info models.ServerInfo)
}
