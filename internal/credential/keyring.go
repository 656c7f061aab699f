// Package credential keeps server secrets in the OS keyring and converts
// connection strings into server configurations.
package credential

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/peternagy/mongoexplorer/internal/types"
)

const keyringService = "mongoexplorer"

type secretKind string

const (
	secretPassword      secretKind = "password"
	secretSSHPassword   secretKind = "ssh-password"
	secretSSHPassphrase secretKind = "ssh-passphrase"
)

var allSecretKinds = []secretKind{secretPassword, secretSSHPassword, secretSSHPassphrase}

// Service stores the secrets of server configurations in the OS keyring.
// Configurations are persisted without them.
type Service struct{}

// NewService creates a new credential service.
func NewService() *Service {
	return &Service{}
}

func secretKey(serverID string, kind secretKind) string {
	return serverID + "/" + string(kind)
}

// SaveSecrets stores the database password and SSH secrets of cfg.
// Empty secrets remove any previously stored value.
func (s *Service) SaveSecrets(cfg types.ServerConfiguration) error {
	if cfg.ID == "" {
		return errors.New("server configuration has no ID")
	}

	values := map[secretKind]string{
		secretPassword:      cfg.Password,
		secretSSHPassword:   cfg.SSHTunneling.ProxyPassword,
		secretSSHPassphrase: cfg.SSHTunneling.PrivateKeyPassphrase,
	}
	for _, kind := range allSecretKinds {
		if err := s.set(secretKey(cfg.ID, kind), values[kind]); err != nil {
			return fmt.Errorf("failed to store %s: %w", kind, err)
		}
	}
	return nil
}

// LoadSecrets fills the secrets of cfg from the keyring. Missing entries leave fields empty.
func (s *Service) LoadSecrets(cfg *types.ServerConfiguration) error {
	if cfg.ID == "" {
		return errors.New("server configuration has no ID")
	}

	targets := map[secretKind]*string{
		secretPassword:      &cfg.Password,
		secretSSHPassword:   &cfg.SSHTunneling.ProxyPassword,
		secretSSHPassphrase: &cfg.SSHTunneling.PrivateKeyPassphrase,
	}
	for _, kind := range allSecretKinds {
		value, err := s.get(secretKey(cfg.ID, kind))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", kind, err)
		}
		*targets[kind] = value
	}
	return nil
}

// DeleteSecrets removes every secret stored for a server.
func (s *Service) DeleteSecrets(serverID string) error {
	var errs []error
	for _, kind := range allSecretKinds {
		if err := s.delete(secretKey(serverID, kind)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) set(key, value string) error {
	if value == "" {
		return s.delete(key)
	}
	return keyring.Set(keyringService, key, value)
}

func (s *Service) get(key string) (string, error) {
	value, err := keyring.Get(keyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return value, err
}

func (s *Service) delete(key string) error {
	err := keyring.Delete(keyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
