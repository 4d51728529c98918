// Package engine implements the Foundry host engine: it owns the container
// registry and state store reference, orchestrates capability extensions,
// drives the controller handshake, and mediates the scanner state machine.
package engine

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"evalgo.org/foundry/internal/artifact"
	"evalgo.org/foundry/internal/config"
	"evalgo.org/foundry/internal/container"
	"evalgo.org/foundry/internal/controller"
	"evalgo.org/foundry/internal/extension"
	"evalgo.org/foundry/internal/scanner"
	"evalgo.org/foundry/internal/state"
	"evalgo.org/foundry/internal/validation"
	"evalgo.org/foundry/internal/version"
	"evalgo.org/foundry/models"
)

// Options wires the engine's collaborators. Extensions are discovered by the
// caller (extension.Discover or a static list).
type Options struct {
	ServerID   string
	ServerName string
	Location   string

	// SyncDeployment blocks Start until the controller handshake
	// completes when controllers are configured but initially
	// unreachable. The persisted sync-deployment configuration item
	// overrides it when set.
	SyncDeployment  bool
	ConnectInterval time.Duration

	Repository state.Repository
	Artifacts  artifact.Factory
	Scanners   artifact.ScannerFactory
	Controller controller.Client
	Extensions []extension.Extension
}

// Engine is the host engine. It is a single process-wide object with
// explicit Start and Destroy; background tasks observe the active flag.
type Engine struct {
	serverID   string
	serverName string
	location   string

	syncDeployment  bool
	connectInterval time.Duration

	repository state.Repository
	registry   *container.Registry
	artifacts  artifact.Factory
	client     controller.Client
	scanners   *scanner.Controller

	extensions *extension.Registry
	discovered []extension.Extension

	active atomic.Bool
	ready  atomic.Bool

	serverMu       sync.Mutex
	serverMessages []models.Message

	containerMessages *containerLog
	validator         *validation.Validator

	reconnect *controller.Reconnect
}

// New wires an engine; Start runs the bootstrap sequence.
func New(opts Options) (*Engine, error) {
	if opts.ServerID == "" {
		return nil, fmt.Errorf("server id is required")
	}
	if opts.Repository == nil {
		return nil, fmt.Errorf("state repository is required")
	}
	if opts.Artifacts == nil {
		return nil, fmt.Errorf("artifact factory is required")
	}
	if opts.Controller == nil {
		return nil, fmt.Errorf("controller client is required")
	}
	name := opts.ServerName
	if name == "" {
		name = opts.ServerID
	}

	e := &Engine{
		serverID:          opts.ServerID,
		serverName:        name,
		location:          opts.Location,
		syncDeployment:    opts.SyncDeployment,
		connectInterval:   opts.ConnectInterval,
		repository:        opts.Repository,
		registry:          container.NewRegistry(),
		artifacts:         opts.Artifacts,
		client:            opts.Controller,
		discovered:        opts.Extensions,
		extensions:        extension.NewRegistry(nil),
		containerMessages: newContainerLog(),
		validator:         validation.New(),
	}
	e.scanners = scanner.NewController(opts.Scanners, e.containerMessages)
	return e, nil
}

// FromConfig builds the engine collaborators the default way: state
// repository per the configured driver and the REST controller client.
func FromConfig(cfg *config.Config, artifacts artifact.Factory, scanners artifact.ScannerFactory, extensions []extension.Extension) (*Engine, error) {
	var repository state.Repository
	var err error
	switch cfg.State.Driver {
	case "bolt":
		repository, err = state.NewBoltRepository(cfg.State.Path)
	default:
		repository, err = state.NewFileRepository(cfg.State.Path)
	}
	if err != nil {
		return nil, err
	}

	client, err := controller.NewRESTClient(cfg.Controller, cfg.Server.ID)
	if err != nil {
		return nil, err
	}

	return New(Options{
		ServerID:        cfg.Server.ID,
		ServerName:      cfg.Server.Name,
		Location:        cfg.Server.Location,
		SyncDeployment:  cfg.Server.SyncDeployment,
		ConnectInterval: cfg.Controller.ConnectInterval,
		Repository:      repository,
		Artifacts:       artifacts,
		Scanners:        scanners,
		Controller:      client,
		Extensions:      extensions,
	})
}

// ServerID implements extension.Engine.
func (e *Engine) ServerID() string { return e.serverID }

// Ready reports whether the bootstrap resolved a container set; it flips
// asynchronously when the handshake completes in the background.
func (e *Engine) Ready() bool { return e.ready.Load() }

// Active reports whether Start has run and Destroy has not.
func (e *Engine) Active() bool { return e.active.Load() }

// Start runs the bootstrap sequence: load state, initialize extensions,
// hand-shake with the controller, and install the resolved container set.
// With sync-deployment truthy and the controller unreachable it blocks until
// the background reconnect completes.
func (e *Engine) Start() error {
	currentState, err := e.repository.Load(e.serverID)
	if err != nil {
		return fmt.Errorf("failed to load server state: %w", err)
	}

	e.initExtensions()
	e.active.Store(true)

	info := e.infoInternal()
	syncDeployment := e.syncDeployment
	if v := currentState.ConfigValue(models.ConfigSyncDeployment, ""); v != "" {
		syncDeployment, _ = strconv.ParseBool(v)
	}

	// Mirror the host identity into the persisted configuration items so a
	// state document is self-describing.
	currentState.Configuration[models.ConfigServerID] = e.serverID
	currentState.Configuration[models.ConfigServerName] = e.serverName
	currentState.Configuration[models.ConfigServerLocation] = e.location
	if err := e.repository.Store(e.serverID, currentState); err != nil {
		return fmt.Errorf("failed to store server state: %w", err)
	}

	result := e.client.Connect(info)
	switch result.Kind {
	case controller.Ready:
		e.addServerStatusMessage()
		e.installContainers(result.Setup.Containers)
		e.ready.Store(true)

	case controller.NotDefined:
		// No controllers configured: the locally persisted containers
		// are authoritative.
		e.addServerStatusMessage()
		e.installContainers(currentState.Containers)
		e.ready.Store(true)

	case controller.NotConnected:
		log.Printf("Unable to connect to any controllers, delaying container installation until connection can be established")
		e.reconnect = controller.NewReconnect(e.client, info, &e.active, e.connectInterval, func(setup *models.ServerSetup) {
			e.addServerStatusMessage()
			e.installContainers(setup.Containers)
			e.ready.Store(true)
		})
		e.reconnect.Start()
		if syncDeployment {
			log.Printf("Containers were requested to be deployed synchronously, holding startup...")
			<-e.reconnect.Done()
		}
	}

	return nil
}

// initExtensions sorts the discovered extensions, initializes each active
// one, and keeps only those whose Init succeeded. A failed Init is reported
// on the server log but does not abort startup.
func (e *Engine) initExtensions() {
	ordered := extension.NewRegistry(e.discovered).Extensions()
	initialized := make([]extension.Extension, 0, len(ordered))
	for _, ext := range ordered {
		if err := safeCall(func() error { return ext.Init(e) }); err != nil {
			e.AddServerMessage(models.NewMessage(models.SeverityError,
				fmt.Sprintf("Error when initializing server extension %s due to %s", ext.Name(), err)))
			log.Printf("Error when initializing server extension %s: %v", ext.Name(), err)
			continue
		}
		initialized = append(initialized, ext)
		log.Printf("%s has been successfully registered as server extension", ext.Name())
	}
	e.extensions = extension.NewRegistry(initialized)
}

// installContainers brings up the resolved container set; individual
// failures are logged and installation continues.
func (e *Engine) installContainers(containers []models.ContainerResource) {
	for _, resource := range containers {
		resp := e.CreateContainer(resource.ContainerID, resource)
		if !resp.OK() {
			log.Printf("Failed to install container %s: %s", resource.ContainerID, resp.Msg)
		}
	}
}

// Destroy flips the active flag, disconnects from the controller, and tears
// down extensions in start order. Extension failures are logged and the
// iteration continues.
func (e *Engine) Destroy() {
	e.active.Store(false)
	e.client.Disconnect(e.infoInternal())

	for _, ext := range e.extensions.Extensions() {
		if err := safeCall(func() error { return ext.Destroy(e) }); err != nil {
			log.Printf("Error when destroying server extension %s: %v", ext.Name(), err)
			continue
		}
		log.Printf("%s has been successfully unregistered as server extension", ext.Name())
	}
}

func (e *Engine) infoInternal() models.ServerInfo {
	return models.ServerInfo{
		ServerID:     e.serverID,
		Name:         e.serverName,
		Version:      version.Get().Version,
		Capabilities: e.extensions.Capabilities(),
		Location:     e.location,
	}
}

// GetInfo returns the host identity with the server-wide message log
// attached.
func (e *Engine) GetInfo() models.ServerInfoResponse {
	info := e.infoInternal()
	info.Messages = e.serverMessagesSnapshot()
	return models.ServerInfoResponse{Response: models.Success("Server info"), Info: &info}
}

// GetServerState loads and returns the persisted server state.
func (e *Engine) GetServerState() models.ServerStateResponse {
	currentState, err := e.repository.Load(e.serverID)
	if err != nil {
		log.Printf("Error when loading server state: %v", err)
		return models.ServerStateResponse{Response: models.Failure("Error when loading server state due to " + err.Error())}
	}
	return models.ServerStateResponse{
		Response: models.Success("Successfully loaded server state for server id " + e.serverID),
		State:    currentState,
	}
}

// AddServerMessage appends to the server-wide message log. Only the engine
// appends; readers get snapshots.
func (e *Engine) AddServerMessage(msg models.Message) {
	e.serverMu.Lock()
	defer e.serverMu.Unlock()
	e.serverMessages = append(e.serverMessages, msg)
}

func (e *Engine) serverMessagesSnapshot() []models.Message {
	e.serverMu.Lock()
	defer e.serverMu.Unlock()
	out := make([]models.Message, len(e.serverMessages))
	copy(out, e.serverMessages)
	return out
}

func (e *Engine) addServerStatusMessage() {
	e.AddServerMessage(models.NewMessage(models.SeverityInfo,
		fmt.Sprintf("Server %s started successfully at %s", e.identity(), time.Now().Format(time.RFC3339))))
}

func (e *Engine) identity() string {
	return fmt.Sprintf("{id='%s' name='%s' version='%s' location='%s'}",
		e.serverID, e.serverName, version.Get().Version, e.location)
}

// safeCall runs third-party extension code and converts a panic into an
// error so one misbehaving extension cannot take the host down.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
