package container

import "sync"

// Registry is the process-wide mapping of container id to instance. The
// internal lock is never held across blocking calls; lifecycle bodies run
// under the instance mutex instead.
type Registry struct {
	mu         sync.Mutex
	containers map[string]*Instance
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{containers: map[string]*Instance{}}
}

// Register is a compare-and-set: when a mapping already exists it returns
// the existing instance without overwriting; otherwise it stores instance
// and returns nil.
func (r *Registry) Register(id string, instance *Instance) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	if previous, ok := r.containers[id]; ok {
		return previous
	}
	r.containers[id] = instance
	return nil
}

// Unregister atomically removes and returns the instance for id, or nil.
func (r *Registry) Unregister(id string) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance := r.containers[id]
	delete(r.containers, id)
	return instance
}

// Get returns the instance for id, or nil.
func (r *Registry) Get(id string) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.containers[id]
}

// List returns a snapshot safe to traverse while others mutate the registry.
func (r *Registry) List() []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Instance, 0, len(r.containers))
	for _, instance := range r.containers {
		out = append(out, instance)
	}
	return out
}
