package storage

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/peternagy/mongoexplorer/internal/core"
	"github.com/peternagy/mongoexplorer/internal/debug"
	"github.com/peternagy/mongoexplorer/internal/types"
)

// SecretStore keeps the secrets of server configurations out of the config file.
type SecretStore interface {
	SaveSecrets(cfg types.ServerConfiguration) error
	LoadSecrets(cfg *types.ServerConfiguration) error
	DeleteSecrets(serverID string) error
}

// ServerService registers servers in the workspace, persists their
// configurations and stores their secrets.
type ServerService struct {
	workspace *core.Workspace
	storage   *Service
	secrets   SecretStore
}

// NewServerService creates a new server service.
func NewServerService(workspace *core.Workspace, storage *Service, secrets SecretStore) *ServerService {
	return &ServerService{
		workspace: workspace,
		storage:   storage,
		secrets:   secrets,
	}
}

// SaveServer registers cfg, or updates the server with the same ID, and
// persists the catalog. A configuration without an ID gets a new one.
func (s *ServerService) SaveServer(cfg types.ServerConfiguration) (*types.MongoServer, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	if err := s.secrets.SaveSecrets(cfg); err != nil {
		return nil, fmt.Errorf("failed to store server secrets: %w", err)
	}

	server := s.workspace.UpsertServer(cfg)
	if err := s.persist(); err != nil {
		return nil, err
	}
	return server, nil
}

// DeleteServer removes a server, its persisted configuration and its secrets.
func (s *ServerService) DeleteServer(serverID string) error {
	if err := s.workspace.RemoveServer(serverID); err != nil {
		return err
	}
	if err := s.secrets.DeleteSecrets(serverID); err != nil {
		debug.LogConnection("Failed to delete server secrets", map[string]interface{}{
			"server": serverID,
			"error":  err.Error(),
		})
	}
	return s.persist()
}

// CleanUpServers drops every server from the workspace. Saved
// configurations are kept and come back with LoadSavedServers.
func (s *ServerService) CleanUpServers() {
	s.workspace.CleanUpServers()
}

// LoadSavedServers registers every persisted server with its secrets.
// A server whose secrets cannot be read is registered without them.
func (s *ServerService) LoadSavedServers() error {
	configs, err := s.storage.LoadServers()
	if err != nil {
		return fmt.Errorf("failed to load servers: %w", err)
	}

	for _, cfg := range configs {
		if err := s.secrets.LoadSecrets(&cfg); err != nil {
			debug.Warn(debug.CategoryConnection, "Failed to load server secrets", map[string]interface{}{
				"server": cfg.ID,
				"error":  err.Error(),
			})
		}
		s.workspace.UpsertServer(cfg)
	}
	return nil
}

func (s *ServerService) persist() error {
	if err := s.storage.PersistServers(s.workspace.Configurations()); err != nil {
		return fmt.Errorf("failed to persist servers: %w", err)
	}
	return nil
}
