// Package core provides the server registry, shared errors and event handling.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/peternagy/mongoexplorer/internal/types"
)

// DefaultQueryTimeout is the default timeout for database operations.
const DefaultQueryTimeout = 30 * time.Second

// DefaultConnectTimeout is the default timeout for connection attempts.
const DefaultConnectTimeout = 10 * time.Second

// ServerStatusEvent is the payload of EventServerStatus.
type ServerStatusEvent struct {
	ServerID string             `json:"serverId"`
	Status   types.ServerStatus `json:"status"`
	Error    string             `json:"error,omitempty"`
}

// Workspace is the per-session catalog of configured servers. The host owns
// one instance per project and passes it to the services that need it.
type Workspace struct {
	servers       []*types.MongoServer
	mu            sync.RWMutex
	ConfigDir     string          // Config directory path
	Ctx           context.Context // Host context
	DisableEvents bool            // Disable event emission (for tests)
	Emitter       EventEmitter    // Event emitter for UI notifications
}

// NewWorkspace creates an empty Workspace.
func NewWorkspace() *Workspace {
	return &Workspace{
		servers: []*types.MongoServer{},
	}
}

// RegisterServer adds a server to the catalog and returns it.
func (w *Workspace) RegisterServer(cfg types.ServerConfiguration) *types.MongoServer {
	server := &types.MongoServer{Configuration: cfg}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.servers = append(w.servers, server)
	return server
}

// UpsertServer replaces the configuration of the server with the same ID,
// or registers a new server when there is none.
func (w *Workspace) UpsertServer(cfg types.ServerConfiguration) *types.MongoServer {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.servers {
		if cfg.ID != "" && s.ID() == cfg.ID {
			s.Configuration = cfg
			return s
		}
	}
	server := &types.MongoServer{Configuration: cfg}
	w.servers = append(w.servers, server)
	return server
}

// Servers returns a snapshot of the registered servers in registration order.
func (w *Workspace) Servers() []*types.MongoServer {
	w.mu.RLock()
	defer w.mu.RUnlock()
	result := make([]*types.MongoServer, len(w.servers))
	copy(result, w.servers)
	return result
}

// Configurations returns the configurations of the registered servers in registration order.
func (w *Workspace) Configurations() []types.ServerConfiguration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	result := make([]types.ServerConfiguration, 0, len(w.servers))
	for _, s := range w.servers {
		result = append(result, s.Configuration)
	}
	return result
}

// Server returns the registered server with the given ID.
func (w *Workspace) Server(serverID string) (*types.MongoServer, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, s := range w.servers {
		if s.ID() == serverID {
			return s, nil
		}
	}
	return nil, &ServerNotFoundError{ServerID: serverID}
}

// RemoveServer drops a server from the catalog.
func (w *Workspace) RemoveServer(serverID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, s := range w.servers {
		if s.ID() == serverID {
			w.servers = append(w.servers[:i], w.servers[i+1:]...)
			return nil
		}
	}
	return &ServerNotFoundError{ServerID: serverID}
}

// CleanUpServers empties the catalog.
func (w *Workspace) CleanUpServers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.servers = []*types.MongoServer{}
}

// MarkLoading flags a server as being loaded.
func (w *Workspace) MarkLoading(server *types.MongoServer) {
	w.mu.Lock()
	server.Status = types.StatusLoading
	server.LastError = ""
	w.mu.Unlock()

	w.EmitEvent(EventServerStatus, ServerStatusEvent{ServerID: server.ID(), Status: types.StatusLoading})
}

// MarkLoaded replaces the database list of a server and flags it OK.
func (w *Workspace) MarkLoaded(server *types.MongoServer, databases []types.MongoDatabase) {
	w.mu.Lock()
	server.Databases = databases
	server.Status = types.StatusOK
	w.mu.Unlock()

	w.EmitEvent(EventServerStatus, ServerStatusEvent{ServerID: server.ID(), Status: types.StatusOK})
}

// MarkFailed flags a server whose load failed. The previous database list is kept.
func (w *Workspace) MarkFailed(server *types.MongoServer, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	w.mu.Lock()
	server.Status = types.StatusFailed
	server.LastError = msg
	w.mu.Unlock()

	w.EmitEvent(EventServerStatus, ServerStatusEvent{ServerID: server.ID(), Status: types.StatusFailed, Error: msg})
}

// EmitEvent safely emits an event through the emitter.
func (w *Workspace) EmitEvent(eventName string, data interface{}) {
	if w.DisableEvents || w.Emitter == nil {
		return
	}
	w.Emitter.Emit(eventName, data)
}

// ContextWithTimeout creates a context with the default query timeout.
func ContextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultQueryTimeout)
}

// ContextWithConnectTimeout creates a context with the default connect timeout.
func ContextWithConnectTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultConnectTimeout)
}
