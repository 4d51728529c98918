package engine

import (
	"sync"

	"evalgo.org/foundry/models"
)

// containerLog is the per-container message log: a concurrent map from
// container id to an append-only list with copy-on-write semantics, so
// callers may read a snapshot while operations append.
type containerLog struct {
	mu          sync.Mutex
	byContainer map[string][]models.Message
}

func newContainerLog() *containerLog {
	return &containerLog{byContainer: map[string][]models.Message{}}
}

// Reset clears the log for a container; the start of any scanner or
// release-update operation does this.
func (l *containerLog) Reset(containerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byContainer[containerID] = nil
}

// Append adds one message to a container's log. The stored slice is never
// mutated in place, so snapshots handed out earlier stay valid.
func (l *containerLog) Append(containerID string, msg models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.byContainer[containerID]
	next := make([]models.Message, len(current), len(current)+1)
	copy(next, current)
	l.byContainer[containerID] = append(next, msg)
}

// Replace swaps a container's log wholesale; create and dispose collect
// their messages locally and install them on the way out.
func (l *containerLog) Replace(containerID string, msgs []models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byContainer[containerID] = msgs
}

// For returns the current snapshot of a container's log.
func (l *containerLog) For(containerID string) []models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byContainer[containerID]
}
