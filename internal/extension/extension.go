// Package extension defines the pluggable capability extensions a Foundry
// host fans container lifecycle events out to, and the registry that
// discovers and orders them.
package extension

import (
	"evalgo.org/foundry/internal/container"
	"evalgo.org/foundry/models"
)

// Shared keys on the params map passed through lifecycle callbacks.
const (
	// ParamModuleMetadata carries the module metadata built for the
	// release id a create or update operates on.
	ParamModuleMetadata = "moduleMetadata"

	// ParamFailureReason is populated by IsUpdateContainerAllowed when an
	// extension refuses an upgrade.
	ParamFailureReason = "failureReason"
)

// Engine is the narrow view of the host an extension gets during Init and
// Destroy. Extensions must not cache container instances beyond a callback.
type Engine interface {
	ServerID() string
	AddServerMessage(msg models.Message)
}

// Extension is a capability module invoked during container lifecycle.
type Extension interface {
	Name() string
	IsActive() bool
	StartOrder() int
	ImplementedCapability() string

	Init(engine Engine) error
	Destroy(engine Engine) error

	CreateContainer(id string, instance *container.Instance, params map[string]any) error
	DisposeContainer(id string, instance *container.Instance, params map[string]any) error
	UpdateContainer(id string, instance *container.Instance, params map[string]any) error

	// IsUpdateContainerAllowed reports whether the extension permits an
	// upgrade; on refusal it sets params[ParamFailureReason].
	IsUpdateContainerAllowed(id string, instance *container.Instance, params map[string]any) bool
}
