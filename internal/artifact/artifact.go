// Package artifact abstracts the runtime that materializes versioned bundles
// from release coordinates. The resolver itself lives outside the host; the
// engine only consumes these interfaces.
package artifact

import (
	"time"

	"evalgo.org/foundry/models"
)

// Factory materializes a handle for a release id. A nil handle with a nil
// error means the bundle could not be found.
type Factory interface {
	NewHandle(releaseID models.ReleaseID) (Handle, error)
}

// Handle is an opaque reference to a materialized bundle. The owning
// container instance holds the only strong reference.
type Handle interface {
	ReleaseID() models.ReleaseID
	// ResolvedReleaseID is the concrete coordinates after resolution; it
	// differs from ReleaseID when the version is a moving identifier.
	ResolvedReleaseID() models.ReleaseID
	// UpdateToVersion swaps the bundle in place. The handle stays usable
	// whether or not the results carry errors.
	UpdateToVersion(releaseID models.ReleaseID) UpdateResults
	Dispose()
}

// UpdateLevel classifies a single update result message.
type UpdateLevel string

const (
	UpdateLevelInfo    UpdateLevel = "INFO"
	UpdateLevelWarning UpdateLevel = "WARNING"
	UpdateLevelError   UpdateLevel = "ERROR"
)

// UpdateMessage is one diagnostic from an in-place bundle update.
type UpdateMessage struct {
	Level UpdateLevel
	Text  string
}

// UpdateResults collects the diagnostics of an in-place bundle update.
type UpdateResults struct {
	Messages []UpdateMessage
}

// HasErrors reports whether any message is ERROR level.
func (r UpdateResults) HasErrors() bool {
	for _, m := range r.Messages {
		if m.Level == UpdateLevelError {
			return true
		}
	}
	return false
}

// ErrorTexts returns the texts of the ERROR-level messages.
func (r UpdateResults) ErrorTexts() []string {
	var texts []string
	for _, m := range r.Messages {
		if m.Level == UpdateLevelError {
			texts = append(texts, m.Text)
		}
	}
	return texts
}

// ScannerState is the runtime-internal scanner status; the host maps it to
// the exposed models.ScannerStatus.
type ScannerState string

const (
	ScannerStarting ScannerState = "STARTING"
	ScannerRunning  ScannerState = "RUNNING"
	ScannerScanning ScannerState = "SCANNING"
	ScannerUpdating ScannerState = "UPDATING"
	ScannerStopped  ScannerState = "STOPPED"
	ScannerShutdown ScannerState = "SHUTDOWN"
)

// Scanner is the external poller object bound to one container's bundle.
type Scanner interface {
	Status() ScannerState
	Start(interval time.Duration) error
	Stop() error
	ScanNow() error
	Shutdown() error
	PollInterval() time.Duration
}

// ScannerFactory creates a scanner bound to a materialized bundle.
type ScannerFactory interface {
	NewScanner(handle Handle) Scanner
}
