package extension

import (
	"sort"
	"sync"
)

var (
	discoveryMu sync.Mutex
	discovered  []func() Extension
)

// Register adds an extension constructor to the discovery table. It is meant
// to be called from an extension package's init function; a static
// registration from the host wiring works the same way.
func Register(constructor func() Extension) {
	discoveryMu.Lock()
	defer discoveryMu.Unlock()
	discovered = append(discovered, constructor)
}

// Discover instantiates every registered extension in registration order.
func Discover() []Extension {
	discoveryMu.Lock()
	defer discoveryMu.Unlock()
	extensions := make([]Extension, 0, len(discovered))
	for _, constructor := range discovered {
		extensions = append(extensions, constructor())
	}
	return extensions
}

// Registry holds the active extensions sorted by ascending start order, ties
// broken by discovery order. The same order drives init, create, update and
// dispose fan-outs. The engine's dispose rollback re-creates the completed
// prefix in this same order.
type Registry struct {
	extensions []Extension
}

// NewRegistry filters inactive extensions and fixes the fan-out order.
func NewRegistry(extensions []Extension) *Registry {
	active := make([]Extension, 0, len(extensions))
	for _, ext := range extensions {
		if ext.IsActive() {
			active = append(active, ext)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].StartOrder() < active[j].StartOrder()
	})
	return &Registry{extensions: active}
}

// Extensions returns a snapshot of the ordered active extensions.
func (r *Registry) Extensions() []Extension {
	out := make([]Extension, len(r.extensions))
	copy(out, r.extensions)
	return out
}

// Capabilities collects each extension's implemented capability in start
// order.
func (r *Registry) Capabilities() []string {
	capabilities := make([]string, 0, len(r.extensions))
	for _, ext := range r.extensions {
		capabilities = append(capabilities, ext.ImplementedCapability())
	}
	return capabilities
}
