// Package scanner drives the per-container scanner substate machine. The
// scanner object itself comes from the artifact runtime; this package maps
// its internal states to the exposed statuses and enforces the allowed
// transitions.
package scanner

import (
	"fmt"
	"log"
	"time"

	"evalgo.org/foundry/internal/artifact"
	"evalgo.org/foundry/internal/container"
	"evalgo.org/foundry/models"
)

// MapStatus converts a runtime scanner state to the exposed status.
func MapStatus(state artifact.ScannerState) models.ScannerStatus {
	switch state {
	case artifact.ScannerStarting:
		return models.ScannerCreated
	case artifact.ScannerRunning:
		return models.ScannerStarted
	case artifact.ScannerScanning, artifact.ScannerUpdating:
		return models.ScannerScanning
	case artifact.ScannerStopped:
		return models.ScannerStopped
	case artifact.ScannerShutdown:
		return models.ScannerDisposed
	default:
		return models.ScannerUnknown
	}
}

// MessageLog is the engine's per-container message log. Every scanner
// transition resets the container's log and appends a single line with the
// outcome.
type MessageLog interface {
	Reset(containerID string)
	Append(containerID string, msg models.Message)
}

// Controller applies scanner transitions for container instances. Transitions
// on a single container are serialized by the instance mutex.
type Controller struct {
	factory  artifact.ScannerFactory
	messages MessageLog
}

// NewController binds the runtime's scanner factory and the message log.
func NewController(factory artifact.ScannerFactory, messages MessageLog) *Controller {
	return &Controller{factory: factory, messages: messages}
}

// View projects the instance's scanner slot into a resource. An empty slot
// reads as DISPOSED.
func (c *Controller) View(instance *container.Instance) models.ScannerResource {
	scanner := instance.Scanner()
	if scanner == nil {
		return models.ScannerResource{Status: models.ScannerDisposed}
	}
	return models.ScannerResource{
		Status:       MapStatus(scanner.Status()),
		PollInterval: models.PollIntervalMillis(scanner.PollInterval().Milliseconds()),
	}
}

// Update applies the requested transition to the container's scanner. The
// target's status selects the transition; STARTED additionally requires a
// positive poll interval.
func (c *Controller) Update(instance *container.Instance, target models.ScannerResource) models.ScannerResponse {
	instance.Lock()
	defer instance.Unlock()

	id := instance.ContainerID()
	switch target.Status {
	case models.ScannerCreated:
		return c.create(id, instance)
	case models.ScannerStarted:
		return c.start(id, instance, target)
	case models.ScannerStopped:
		return c.stopScanner(id, instance)
	case models.ScannerScanning:
		return c.scanNow(id, instance)
	case models.ScannerDisposed:
		return c.dispose(id, instance)
	default:
		return c.failure(instance, fmt.Sprintf("Unknown status '%s' for scanner on container %s.", target.Status, id))
	}
}

func (c *Controller) success(instance *container.Instance, msg string) models.ScannerResponse {
	view := c.View(instance)
	return models.ScannerResponse{Response: models.Success(msg), Scanner: &view}
}

func (c *Controller) failure(instance *container.Instance, msg string) models.ScannerResponse {
	view := c.View(instance)
	return models.ScannerResponse{Response: models.Failure(msg), Scanner: &view}
}

func (c *Controller) create(id string, instance *container.Instance) models.ScannerResponse {
	c.messages.Reset(id)
	if instance.Scanner() != nil {
		msg := fmt.Sprintf("Error creating the scanner for container %s. Scanner already exists.", id)
		c.messages.Append(id, models.NewMessage(models.SeverityWarn, msg))
		return models.ScannerResponse{Response: models.Failure(msg)}
	}
	instance.SetScanner(c.factory.NewScanner(instance.Handle()))
	c.messages.Append(id, models.NewMessage(models.SeverityInfo, "Scanner successfully created."))
	return c.success(instance, "Scanner successfully created.")
}

func (c *Controller) start(id string, instance *container.Instance, target models.ScannerResource) models.ScannerResponse {
	c.messages.Reset(id)
	if instance.Scanner() == nil {
		instance.SetScanner(c.factory.NewScanner(instance.Handle()))
	}
	scanner := instance.Scanner()
	status := MapStatus(scanner.Status())

	switch {
	case status == models.ScannerStopped && target.PollInterval != nil && *target.PollInterval > 0:
		interval := time.Duration(*target.PollInterval) * time.Millisecond
		if err := scanner.Start(interval); err != nil {
			c.messages.Append(id, models.NewMessage(models.SeverityWarn, "Error starting scanner: "+err.Error()))
			return c.failure(instance, fmt.Sprintf("Error starting scanner for container %s: %s", id, err))
		}
		c.messages.Append(id, models.NewMessage(models.SeverityInfo,
			fmt.Sprintf("Scanner successfully started with interval %d ms", *target.PollInterval)))
		return c.success(instance, "Scanner successfully started.")
	case status != models.ScannerStopped:
		c.messages.Append(id, models.NewMessage(models.SeverityWarn, fmt.Sprintf("Invalid scanner status: %s", status)))
		return c.failure(instance, fmt.Sprintf("Invalid scanner status: %s", status))
	default:
		c.messages.Append(id, models.NewMessage(models.SeverityWarn, "Invalid polling interval"))
		return c.failure(instance, "Invalid polling interval")
	}
}

func (c *Controller) stopScanner(id string, instance *container.Instance) models.ScannerResponse {
	c.messages.Reset(id)
	scanner := instance.Scanner()
	if scanner == nil {
		c.messages.Append(id, models.NewMessage(models.SeverityWarn, "Invalid call. Scanner is not instantiated."))
		return c.failure(instance, "Invalid call. Scanner is not instantiated.")
	}
	status := MapStatus(scanner.Status())
	if status != models.ScannerStarted && status != models.ScannerScanning {
		c.messages.Append(id, models.NewMessage(models.SeverityWarn, fmt.Sprintf("Invalid scanner status: %s", status)))
		return c.failure(instance, fmt.Sprintf("Invalid scanner status: %s", status))
	}
	if err := scanner.Stop(); err != nil {
		c.messages.Append(id, models.NewMessage(models.SeverityWarn, "Error stopping scanner: "+err.Error()))
		return c.failure(instance, fmt.Sprintf("Error stopping scanner for container %s: %s", id, err))
	}
	c.messages.Append(id, models.NewMessage(models.SeverityInfo, "Scanner successfully stopped."))
	return c.success(instance, "Scanner successfully stopped.")
}

func (c *Controller) scanNow(id string, instance *container.Instance) models.ScannerResponse {
	c.messages.Reset(id)
	if instance.Scanner() == nil {
		instance.SetScanner(c.factory.NewScanner(instance.Handle()))
	}
	scanner := instance.Scanner()
	status := MapStatus(scanner.Status())
	switch status {
	case models.ScannerStopped, models.ScannerCreated, models.ScannerStarted:
		if err := scanner.ScanNow(); err != nil {
			c.messages.Append(id, models.NewMessage(models.SeverityWarn, "Error invoking scanner: "+err.Error()))
			return c.failure(instance, fmt.Sprintf("Error invoking scanner for container %s: %s", id, err))
		}
		c.messages.Append(id, models.NewMessage(models.SeverityInfo, "Scanner successfully invoked."))
		return c.success(instance, "Scan successfully executed.")
	default:
		c.messages.Append(id, models.NewMessage(models.SeverityWarn, fmt.Sprintf("Invalid scanner status: %s", status)))
		return c.failure(instance, fmt.Sprintf("Invalid scanner status: %s", status))
	}
}

func (c *Controller) dispose(id string, instance *container.Instance) models.ScannerResponse {
	c.messages.Reset(id)
	scanner := instance.Scanner()
	if scanner == nil {
		c.messages.Append(id, models.NewMessage(models.SeverityInfo, "Invalid call. Scanner already disposed."))
		return c.success(instance, "Invalid call. Scanner already disposed.")
	}
	status := MapStatus(scanner.Status())
	if status == models.ScannerStarted || status == models.ScannerScanning {
		if err := scanner.Stop(); err != nil {
			c.messages.Append(id, models.NewMessage(models.SeverityWarn, "Error stopping scanner: "+err.Error()))
			return c.failure(instance, fmt.Sprintf("Error stopping scanner for container %s: %s", id, err))
		}
	}
	if err := scanner.Shutdown(); err != nil {
		log.Printf("Error shutting down scanner for container %s: %v", id, err)
	}
	instance.SetScanner(nil)
	c.messages.Append(id, models.NewMessage(models.SeverityInfo, "Scanner successfully shut down."))
	return c.success(instance, "Scanner successfully shut down.")
}
