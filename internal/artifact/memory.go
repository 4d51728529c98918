package artifact

import (
	"fmt"
	"sync"
	"time"

	"evalgo.org/foundry/models"
)

// MemoryRuntime is an in-process artifact runtime. It backs local runs and
// tests: bundles are plain entries keyed by coordinates, and scanners poll
// with a ticker instead of hitting a remote repository.
type MemoryRuntime struct {
	mu      sync.Mutex
	bundles map[string]models.ReleaseID // requested -> resolved
	broken  map[string][]string         // requested -> update error texts
}

// NewMemoryRuntime starts with an empty bundle table.
func NewMemoryRuntime() *MemoryRuntime {
	return &MemoryRuntime{
		bundles: map[string]models.ReleaseID{},
		broken:  map[string][]string{},
	}
}

// AddBundle makes coordinates resolvable. Snapshot versions resolve to a
// timestamped concrete version the way a repository would.
func (rt *MemoryRuntime) AddBundle(releaseID models.ReleaseID) {
	resolved := releaseID
	if releaseID.IsSnapshot() {
		resolved.Version = releaseID.Version + "-" + time.Now().UTC().Format("20060102.150405")
	}
	rt.mu.Lock()
	rt.bundles[releaseID.String()] = resolved
	rt.mu.Unlock()
}

// BreakBundle makes future updates to coordinates fail with the given
// error texts.
func (rt *MemoryRuntime) BreakBundle(releaseID models.ReleaseID, errors ...string) {
	rt.mu.Lock()
	rt.broken[releaseID.String()] = errors
	rt.mu.Unlock()
}

// NewHandle resolves coordinates against the bundle table.
func (rt *MemoryRuntime) NewHandle(releaseID models.ReleaseID) (Handle, error) {
	rt.mu.Lock()
	resolved, ok := rt.bundles[releaseID.String()]
	rt.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return &memoryHandle{runtime: rt, releaseID: releaseID, resolved: resolved}, nil
}

// NewScanner binds a ticker-driven scanner to the bundle.
func (rt *MemoryRuntime) NewScanner(handle Handle) Scanner {
	return &memoryScanner{handle: handle, state: ScannerStopped}
}

type memoryHandle struct {
	runtime   *MemoryRuntime
	mu        sync.Mutex
	releaseID models.ReleaseID
	resolved  models.ReleaseID
	disposed  bool
}

func (h *memoryHandle) ReleaseID() models.ReleaseID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.releaseID
}

func (h *memoryHandle) ResolvedReleaseID() models.ReleaseID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resolved
}

func (h *memoryHandle) UpdateToVersion(releaseID models.ReleaseID) UpdateResults {
	h.runtime.mu.Lock()
	errorTexts, isBroken := h.runtime.broken[releaseID.String()]
	resolved, known := h.runtime.bundles[releaseID.String()]
	h.runtime.mu.Unlock()

	if isBroken {
		results := UpdateResults{}
		for _, text := range errorTexts {
			results.Messages = append(results.Messages, UpdateMessage{Level: UpdateLevelError, Text: text})
		}
		return results
	}
	if !known {
		return UpdateResults{Messages: []UpdateMessage{{
			Level: UpdateLevelError,
			Text:  fmt.Sprintf("bundle %s could not be resolved", releaseID),
		}}}
	}

	h.mu.Lock()
	h.releaseID = releaseID
	h.resolved = resolved
	h.mu.Unlock()
	return UpdateResults{Messages: []UpdateMessage{{
		Level: UpdateLevelInfo,
		Text:  fmt.Sprintf("bundle updated to %s", resolved),
	}}}
}

func (h *memoryHandle) Dispose() {
	h.mu.Lock()
	h.disposed = true
	h.mu.Unlock()
}

type memoryScanner struct {
	handle   Handle
	mu       sync.Mutex
	state    ScannerState
	interval time.Duration
	ticker   *time.Ticker
	stop     chan struct{}
}

func (s *memoryScanner) Status() ScannerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *memoryScanner) PollInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *memoryScanner) Start(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == ScannerRunning || s.state == ScannerScanning {
		return fmt.Errorf("scanner already running")
	}
	s.interval = interval
	s.state = ScannerRunning
	s.ticker = time.NewTicker(interval)
	s.stop = make(chan struct{})
	go s.loop(s.ticker, s.stop)
	return nil
}

func (s *memoryScanner) loop(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			ticker.Stop()
			return
		case <-ticker.C:
			s.scan()
		}
	}
}

func (s *memoryScanner) scan() {
	s.mu.Lock()
	if s.state == ScannerShutdown {
		s.mu.Unlock()
		return
	}
	previous := s.state
	s.state = ScannerScanning
	handle := s.handle
	s.mu.Unlock()

	// A snapshot re-resolution would happen here against a real
	// repository; for the in-memory runtime a rescan of the same
	// coordinates is enough to exercise the state machine.
	handle.UpdateToVersion(handle.ReleaseID())

	s.mu.Lock()
	if s.state == ScannerScanning {
		s.state = previous
	}
	s.mu.Unlock()
}

func (s *memoryScanner) ScanNow() error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == ScannerShutdown {
		return fmt.Errorf("scanner is shut down")
	}
	s.scan()
	return nil
}

func (s *memoryScanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
		s.ticker = nil
	}
	if s.state == ScannerShutdown {
		return fmt.Errorf("scanner is shut down")
	}
	s.state = ScannerStopped
	return nil
}

func (s *memoryScanner) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
		s.ticker = nil
	}
	s.state = ScannerShutdown
	return nil
}
