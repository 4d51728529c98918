// Package container holds the in-memory registry of hosted containers and
// the per-container instance state.
package container

import (
	"sync"

	"evalgo.org/foundry/internal/artifact"
	"evalgo.org/foundry/models"
)

// Instance is the live, in-memory side of one hosted container. It
// exclusively owns the materialized bundle handle and the scanner slot.
// The create body, dispose body and scanner transitions run under the
// instance mutex; the release-id update path does not take it (see the
// engine).
type Instance struct {
	mu sync.Mutex

	containerID string
	handle      artifact.Handle
	scanner     artifact.Scanner
	resource    *models.ContainerResource

	// marshaller lookups keyed by format, guarded separately so
	// extensions can populate them from inside a lifecycle callback that
	// already holds the instance mutex.
	cacheMu     sync.Mutex
	marshallers map[string]any
}

// NewInstance builds an instance in the given initial status.
func NewInstance(containerID string, status models.ContainerStatus) *Instance {
	return &Instance{
		containerID: containerID,
		resource: &models.ContainerResource{
			ContainerID: containerID,
			Status:      status,
		},
		marshallers: map[string]any{},
	}
}

// Lock acquires the instance mutex for a lifecycle transition.
func (i *Instance) Lock() { i.mu.Lock() }

// Unlock releases the instance mutex.
func (i *Instance) Unlock() { i.mu.Unlock() }

// ContainerID returns the registry key of this instance.
func (i *Instance) ContainerID() string { return i.containerID }

// Status returns the current lifecycle status.
func (i *Instance) Status() models.ContainerStatus {
	return i.resource.Status
}

// SetStatus moves the instance to status, mirrored into the resource.
func (i *Instance) SetStatus(status models.ContainerStatus) {
	i.resource.Status = status
}

// Handle returns the materialized bundle handle, nil once disposed.
func (i *Instance) Handle() artifact.Handle { return i.handle }

// SetHandle installs or clears the bundle handle.
func (i *Instance) SetHandle(handle artifact.Handle) {
	i.handle = handle
	if handle != nil {
		i.resource.ReleaseID = handle.ReleaseID()
		i.resource.ResolvedReleaseID = handle.ResolvedReleaseID()
	}
}

// Scanner returns the scanner bound to this container, or nil.
func (i *Instance) Scanner() artifact.Scanner { return i.scanner }

// SetScanner installs or clears the scanner slot.
func (i *Instance) SetScanner(scanner artifact.Scanner) { i.scanner = scanner }

// Resource returns the public projection of this instance. The status field
// mirrors the instance status at all times.
func (i *Instance) Resource() *models.ContainerResource { return i.resource }

// CacheMarshaller memoizes a marshaller for a wire format.
func (i *Instance) CacheMarshaller(format string, marshaller any) {
	i.cacheMu.Lock()
	defer i.cacheMu.Unlock()
	i.marshallers[format] = marshaller
}

// Marshaller returns the memoized marshaller for a wire format, or nil.
func (i *Instance) Marshaller(format string) any {
	i.cacheMu.Lock()
	defer i.cacheMu.Unlock()
	return i.marshallers[format]
}

// InvalidateCaches drops all memoized marshallers. Called before an in-place
// upgrade so nothing generated from the old version survives it.
func (i *Instance) InvalidateCaches() {
	i.cacheMu.Lock()
	defer i.cacheMu.Unlock()
	i.marshallers = map[string]any{}
}
