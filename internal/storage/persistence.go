// Package storage persists server configurations and keeps the registry,
// the configuration file and the keyring in step.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/peternagy/mongoexplorer/internal/types"
)

const serversFileName = "servers.json"

// Service handles configuration file persistence.
type Service struct {
	configDir string
}

// NewService creates a new storage service.
func NewService(configDir string) *Service {
	return &Service{configDir: configDir}
}

// InitConfigDir creates the per-user config directory and returns its path.
func InitConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.Getenv("HOME")
	}
	if base == "" {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	dir := filepath.Join(base, "mongoexplorer")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// ServersFile returns the path to the server configurations file.
func (s *Service) ServersFile() string {
	return filepath.Join(s.configDir, serversFileName)
}

// LoadServers reads the saved server configurations. A missing file is an empty list.
func (s *Service) LoadServers() ([]types.ServerConfiguration, error) {
	data, err := os.ReadFile(s.ServersFile())
	if err != nil {
		if os.IsNotExist(err) {
			return []types.ServerConfiguration{}, nil
		}
		return nil, err
	}

	var servers []types.ServerConfiguration
	if err := json.Unmarshal(data, &servers); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", serversFileName, err)
	}
	if servers == nil {
		servers = []types.ServerConfiguration{}
	}
	return servers, nil
}

// PersistServers writes the server configurations. Secrets are excluded by
// their JSON tags. The file is replaced atomically.
func (s *Service) PersistServers(servers []types.ServerConfiguration) error {
	data, err := json.MarshalIndent(servers, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.configDir, serversFileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.ServersFile())
}
