package models

// Configuration item keys recognized in the persisted server state.
const (
	ConfigSyncDeployment = "sync-deployment"
	ConfigServerLocation = "server-location"
	ConfigServerID       = "server-id"
	ConfigServerName     = "server-name"
)

// ServerInfo identifies this host to callers and to the controller.
type ServerInfo struct {
	ServerID     string    `json:"server_id"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Capabilities []string  `json:"capabilities"`
	Location     string    `json:"location"`
	Messages     []Message `json:"messages,omitempty"`
}

// ServerState is the durable document the host persists per server id.
// Containers form a set uniquely keyed by ContainerID.
type ServerState struct {
	ServerID      string              `json:"server_id"`
	Controllers   []string            `json:"controllers"`
	Configuration map[string]string   `json:"configuration"`
	Containers    []ContainerResource `json:"containers"`
}

// NewServerState returns a freshly initialized empty state for a server id.
func NewServerState(serverID string) *ServerState {
	return &ServerState{
		ServerID:      serverID,
		Configuration: map[string]string{},
		Containers:    []ContainerResource{},
	}
}

// GetContainer returns the stored resource for the id, or nil.
func (s *ServerState) GetContainer(containerID string) *ContainerResource {
	for i := range s.Containers {
		if s.Containers[i].ContainerID == containerID {
			return &s.Containers[i]
		}
	}
	return nil
}

// SetContainer adds or replaces the resource keyed by its ContainerID.
func (s *ServerState) SetContainer(resource ContainerResource) {
	for i := range s.Containers {
		if s.Containers[i].ContainerID == resource.ContainerID {
			s.Containers[i] = resource
			return
		}
	}
	s.Containers = append(s.Containers, resource)
}

// RemoveContainer drops the resource keyed by the id, if present.
func (s *ServerState) RemoveContainer(containerID string) {
	kept := s.Containers[:0]
	for _, c := range s.Containers {
		if c.ContainerID != containerID {
			kept = append(kept, c)
		}
	}
	s.Containers = kept
}

// ConfigValue returns the configuration item for key, or def when unset.
func (s *ServerState) ConfigValue(key, def string) string {
	if s.Configuration == nil {
		return def
	}
	if v, ok := s.Configuration[key]; ok && v != "" {
		return v
	}
	return def
}

// ServerSetup is the payload a controller hands back on a successful
// handshake: the container set this host should be running.
type ServerSetup struct {
	Containers []ContainerResource `json:"containers"`
}
