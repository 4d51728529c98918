package engine

import (
	"fmt"
	"log"

	"evalgo.org/foundry/internal/container"
	"evalgo.org/foundry/internal/extension"
	"evalgo.org/foundry/models"
)

// CreateContainer materializes the requested bundle, fans the creation out
// to the extensions in start order, and persists the new container. There is
// no rollback of previously-succeeded extension creations on this path: a
// mid-iteration failure leaves the container registered in FAILED state and
// the caller is expected to dispose it.
func (e *Engine) CreateContainer(id string, req models.ContainerResource) models.ContainerResponse {
	if result := e.validator.ValidateReleaseID(req.ReleaseID); !result.Valid {
		log.Printf("Error creating container %s. Release id is incomplete: %v", id, result.Errors)
		return models.ContainerResponse{Response: models.Failure(
			fmt.Sprintf("Failed to create container %s. Release id is required.", id))}
	}
	req.ContainerID = id
	releaseID := req.ReleaseID

	var messages []models.Message
	defer func() { e.containerMessages.Replace(id, messages) }()

	ci := container.NewInstance(id, models.ContainerCreating)
	// Lifecycle body runs under the instance mutex so a concurrent dispose
	// cannot interleave with a half-created container.
	ci.Lock()
	defer ci.Unlock()

	previous := e.registry.Register(id, ci)
	if previous != nil {
		messages = append(messages, models.NewMessage(models.SeverityError,
			fmt.Sprintf("Container %s already exists.", id)))
		return models.ContainerResponse{
			Response:  models.Failure(fmt.Sprintf("Container %s already exists.", id)),
			Container: previous.Resource(),
		}
	}

	handle, err := e.artifacts.NewHandle(releaseID)
	if err != nil || handle == nil {
		reason := "bundle could not be resolved"
		if err != nil {
			reason = err.Error()
		}
		messages = append(messages, models.NewMessage(models.SeverityError,
			fmt.Sprintf("Bundle could not be found for release id %s: %s", releaseID, reason)))
		ci.SetStatus(models.ContainerFailed)
		ci.Resource().ReleaseID = releaseID
		log.Printf("Error creating container %s for release id %s: %s", id, releaseID, reason)
		return models.ContainerResponse{Response: models.Failure(
			fmt.Sprintf("Failed to create container %s with release id %s.", id, releaseID))}
	}
	ci.SetHandle(handle)

	params := map[string]any{extension.ParamModuleMetadata: handle.ResolvedReleaseID()}
	for _, ext := range e.extensions.Extensions() {
		ext := ext
		if err := safeCall(func() error { return ext.CreateContainer(id, ci, params) }); err != nil {
			messages = append(messages, models.NewMessage(models.SeverityError,
				fmt.Sprintf("Error creating container '%s' for release id '%s' due to %s", id, releaseID, err)))
			log.Printf("Error creating container '%s' for release id '%s' on %s: %v", id, releaseID, ext.Name(), err)
			ci.SetStatus(models.ContainerFailed)
			return models.ContainerResponse{Response: models.Failure(
				fmt.Sprintf("Failed to create container %s with release id %s: %s", id, releaseID, err))}
		}
	}

	ci.SetStatus(models.ContainerStarted)
	log.Printf("Container %s (for release id %s) successfully started", id, releaseID)

	currentState, err := e.repository.Load(e.serverID)
	if err != nil {
		messages = append(messages, models.NewMessage(models.SeverityError,
			fmt.Sprintf("Error persisting container '%s' due to %s", id, err)))
		return models.ContainerResponse{Response: models.Failure(
			fmt.Sprintf("Error creating container %s with release id %s: %s", id, releaseID, err))}
	}
	stored := *ci.Resource()
	stored.Messages = nil
	currentState.SetContainer(stored)
	if err := e.repository.Store(e.serverID, currentState); err != nil {
		messages = append(messages, models.NewMessage(models.SeverityError,
			fmt.Sprintf("Error persisting container '%s' due to %s", id, err)))
		return models.ContainerResponse{Response: models.Failure(
			fmt.Sprintf("Error creating container %s with release id %s: %s", id, releaseID, err))}
	}

	messages = append(messages, models.NewMessage(models.SeverityInfo,
		fmt.Sprintf("Container %s successfully created with release id %s.", id, releaseID)))
	return models.ContainerResponse{
		Response:  models.Success(fmt.Sprintf("Container %s successfully deployed with release id %s.", id, releaseID)),
		Container: ci.Resource(),
	}
}

// DisposeContainer removes the container, fanning the disposal out to the
// extensions in start order. When an extension fails mid-iteration, the
// already-disposed prefix is re-created, the container is re-registered and
// put back to STARTED; state persistence is not touched on that path.
// Disposing an unknown container succeeds, for idempotence.
func (e *Engine) DisposeContainer(id string) models.ContainerResponse {
	var messages []models.Message
	defer func() { e.containerMessages.Replace(id, messages) }()

	kci := e.registry.Unregister(id)
	if kci == nil {
		messages = append(messages, models.NewMessage(models.SeverityInfo,
			fmt.Sprintf("Container %s was not instantiated.", id)))
		return models.ContainerResponse{Response: models.Success(
			fmt.Sprintf("Container %s was not instantiated.", id))}
	}

	kci.Lock()
	defer kci.Unlock()
	kci.SetStatus(models.ContainerDisposing) // just in case
	if kci.Handle() == nil {
		messages = append(messages, models.NewMessage(models.SeverityInfo,
			fmt.Sprintf("Container %s was not instantiated.", id)))
		return models.ContainerResponse{Response: models.Success(
			fmt.Sprintf("Container %s was not instantiated.", id))}
	}

	var disposed []extension.Extension
	params := map[string]any{}
	for _, ext := range e.extensions.Extensions() {
		ext := ext
		if err := safeCall(func() error { return ext.DisposeContainer(id, kci, params) }); err != nil {
			log.Printf("Dispose of container %s failed, putting it back to started state by recreating on already disposed extensions", id)
			for _, restored := range disposed {
				restored := restored
				if rerr := safeCall(func() error { return restored.CreateContainer(id, kci, map[string]any{}) }); rerr != nil {
					log.Printf("Error restoring container %s on %s: %v", id, restored.Name(), rerr)
				}
			}
			kci.SetStatus(models.ContainerStarted)
			e.registry.Register(id, kci)
			log.Printf("Container %s STARTED after failed dispose", id)

			messages = append(messages, models.NewMessage(models.SeverityWarn,
				fmt.Sprintf("Error disposing container '%s' due to %s, container is running", id, err)))
			return models.ContainerResponse{Response: models.Failure(
				fmt.Sprintf("Container %s failed to dispose: %s", id, err))}
		}
		disposed = append(disposed, ext)
	}

	handle := kci.Handle()
	kci.SetHandle(nil) // helps reduce concurrent access issues
	// this may fail, but the container is already gone from the registry
	handle.Dispose()
	log.Printf("Container %s (for release id %s) successfully stopped", id, kci.Resource().ReleaseID)

	currentState, err := e.repository.Load(e.serverID)
	if err != nil {
		messages = append(messages, models.NewMessage(models.SeverityError,
			fmt.Sprintf("Error persisting disposal of container '%s' due to %s", id, err)))
		return models.ContainerResponse{Response: models.Failure(
			fmt.Sprintf("Error disposing container %s: %s", id, err))}
	}
	currentState.RemoveContainer(id)
	if err := e.repository.Store(e.serverID, currentState); err != nil {
		messages = append(messages, models.NewMessage(models.SeverityError,
			fmt.Sprintf("Error persisting disposal of container '%s' due to %s", id, err)))
		return models.ContainerResponse{Response: models.Failure(
			fmt.Sprintf("Error disposing container %s: %s", id, err))}
	}

	messages = append(messages, models.NewMessage(models.SeverityInfo,
		fmt.Sprintf("Container %s successfully stopped.", id)))
	return models.ContainerResponse{Response: models.Success(
		fmt.Sprintf("Container %s successfully disposed.", id))}
}

// UpdateContainerReleaseID upgrades the container's bundle in place. The body
// deliberately does not hold the instance mutex: a concurrent dispose makes
// the update fail late, which is cheaper than synchronizing every upgrade.
func (e *Engine) UpdateContainerReleaseID(id string, releaseID models.ReleaseID) models.ReleaseIDResponse {
	if result := e.validator.ValidateReleaseID(releaseID); !result.Valid {
		log.Printf("Error updating release id for container '%s'. Release id is incomplete: %v", id, result.Errors)
		return models.ReleaseIDResponse{Response: models.Failure(
			fmt.Sprintf("Error updating release id for container %s. Release id is required.", id))}
	}

	e.containerMessages.Reset(id)

	kci := e.registry.Get(id)
	if kci == nil || kci.Handle() == nil {
		// No live container: fall through to a plain create.
		resp := e.CreateContainer(id, models.ContainerResource{
			ContainerID: id,
			ReleaseID:   releaseID,
			Status:      models.ContainerStarted,
		})
		if !resp.OK() {
			return models.ReleaseIDResponse{Response: models.Failure(
				fmt.Sprintf("Container %s is not instantiated.", id))}
		}
		updated := resp.Container.ReleaseID
		return models.ReleaseIDResponse{Response: models.Success("Release id successfully updated."), ReleaseID: &updated}
	}

	params := map[string]any{extension.ParamModuleMetadata: releaseID}
	for _, ext := range e.extensions.Extensions() {
		ext := ext
		allowed := true
		err := safeCall(func() error {
			allowed = ext.IsUpdateContainerAllowed(id, kci, params)
			return nil
		})
		if err != nil {
			e.containerMessages.Append(id, models.NewMessage(models.SeverityWarn,
				fmt.Sprintf("Error updating release id for container '%s' due to %s", id, err)))
			return models.ReleaseIDResponse{Response: models.Failure(
				fmt.Sprintf("Error updating release id for container %s: %s", id, err))}
		}
		if !allowed {
			reason, _ := params[extension.ParamFailureReason].(string)
			log.Printf("Container %s (for release id %s) on %s cannot be updated due to %s", id, releaseID, ext.Name(), reason)
			e.containerMessages.Append(id, models.NewMessage(models.SeverityWarn, reason))
			return models.ReleaseIDResponse{Response: models.Failure(reason)}
		}
	}

	kci.InvalidateCaches()
	results := kci.Handle().UpdateToVersion(releaseID)
	if results.HasErrors() {
		warn := models.NewMessage(models.SeverityWarn,
			fmt.Sprintf("Error updating release id for container %s to version %s", id, releaseID))
		warn.Details = results.ErrorTexts()
		e.containerMessages.Append(id, warn)
		log.Printf("Error updating release id for container %s to version %s: %v", id, releaseID, results.ErrorTexts())
		// Expose the pre-update view; whether the handle moved is not
		// observable here.
		previous := kci.Resource().ResolvedReleaseID
		return models.ReleaseIDResponse{
			Response:  models.Failure(fmt.Sprintf("Error updating release id on container %s to %s", id, releaseID)),
			ReleaseID: &previous,
		}
	}

	for _, ext := range e.extensions.Extensions() {
		ext := ext
		if err := safeCall(func() error { return ext.UpdateContainer(id, kci, params) }); err != nil {
			e.containerMessages.Append(id, models.NewMessage(models.SeverityWarn,
				fmt.Sprintf("Error updating release id for container '%s' due to %s", id, err)))
			return models.ReleaseIDResponse{Response: models.Failure(
				fmt.Sprintf("Error updating release id for container %s: %s", id, err))}
		}
	}

	kci.Resource().ReleaseID = releaseID
	kci.Resource().ResolvedReleaseID = kci.Handle().ResolvedReleaseID()

	currentState, err := e.repository.Load(e.serverID)
	if err == nil {
		if stored := currentState.GetContainer(id); stored != nil {
			stored.ReleaseID = releaseID
			stored.ResolvedReleaseID = kci.Handle().ResolvedReleaseID()
		}
		err = e.repository.Store(e.serverID, currentState)
	}
	if err != nil {
		e.containerMessages.Append(id, models.NewMessage(models.SeverityWarn,
			fmt.Sprintf("Error persisting release id update for container '%s' due to %s", id, err)))
		return models.ReleaseIDResponse{Response: models.Failure(
			fmt.Sprintf("Error updating release id for container %s: %s", id, err))}
	}

	log.Printf("Container %s successfully updated to release id %s", id, releaseID)
	e.containerMessages.Append(id, models.NewMessage(models.SeverityInfo,
		fmt.Sprintf("Release id successfully updated for container %s", id)))
	updated := kci.Resource().ReleaseID
	return models.ReleaseIDResponse{Response: models.Success("Release id successfully updated."), ReleaseID: &updated}
}

// ListContainers returns the created containers with their message logs
// attached.
func (e *Engine) ListContainers() models.ContainerListResponse {
	instances := e.registry.List()
	containers := make([]models.ContainerResource, 0, len(instances))
	for _, instance := range instances {
		resource := *instance.Resource()
		resource.Messages = e.containerMessages.For(instance.ContainerID())
		containers = append(containers, resource)
	}
	return models.ContainerListResponse{
		Response:   models.Success("List of created containers"),
		Containers: containers,
	}
}

// GetContainerInfo returns one container with its scanner view and message
// log attached.
func (e *Engine) GetContainerInfo(id string) models.ContainerResponse {
	ci := e.registry.Get(id)
	if ci == nil {
		return models.ContainerResponse{Response: models.Failure(
			fmt.Sprintf("Container %s is not instantiated.", id))}
	}
	resource := *ci.Resource()
	if resource.Scanner == nil {
		view := e.scanners.View(ci)
		resource.Scanner = &view
	}
	resource.Messages = e.containerMessages.For(id)
	return models.ContainerResponse{
		Response:  models.Success("Info for container " + id),
		Container: &resource,
	}
}

// GetContainerReleaseID returns the container's current release id.
func (e *Engine) GetContainerReleaseID(id string) models.ReleaseIDResponse {
	ci := e.registry.Get(id)
	if ci == nil {
		return models.ReleaseIDResponse{Response: models.Failure(
			fmt.Sprintf("Container %s is not instantiated.", id))}
	}
	releaseID := ci.Resource().ReleaseID
	return models.ReleaseIDResponse{Response: models.Success("Release id for container " + id), ReleaseID: &releaseID}
}

// GetScannerInfo returns the container's scanner view.
func (e *Engine) GetScannerInfo(id string) models.ScannerResponse {
	kci := e.registry.Get(id)
	if kci == nil || kci.Handle() == nil {
		return models.ScannerResponse{Response: models.Failure(
			fmt.Sprintf("Unknown container %s.", id))}
	}
	view := e.scanners.View(kci)
	kci.Resource().Scanner = &view
	return models.ScannerResponse{Response: models.Success("Scanner info successfully retrieved"), Scanner: &view}
}

// UpdateScanner applies a scanner transition on the container.
func (e *Engine) UpdateScanner(id string, target models.ScannerResource) models.ScannerResponse {
	if target.Status == "" {
		log.Printf("Error updating scanner for container %s. Status is empty", id)
		return models.ScannerResponse{Response: models.Failure(
			fmt.Sprintf("Error updating scanner for container %s. Status is required.", id))}
	}
	kci := e.registry.Get(id)
	if kci == nil || kci.Handle() == nil {
		return models.ScannerResponse{Response: models.Failure(
			fmt.Sprintf("Unknown container %s.", id))}
	}
	result := e.scanners.Update(kci, target)
	kci.Resource().Scanner = result.Scanner // might be nil, but that is ok
	return result
}
