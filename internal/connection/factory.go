// Package connection builds MongoDB clients from server configurations and
// runs tasks against them.
package connection

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/peternagy/mongoexplorer/internal/core"
	"github.com/peternagy/mongoexplorer/internal/tunnel"
	"github.com/peternagy/mongoexplorer/internal/types"
)

// AppName is reported to the server in the connection handshake.
const AppName = "mongoexplorer"

// DefaultAuthenticationDatabase is used when the configuration names none.
const DefaultAuthenticationDatabase = "admin"

// ValidateEndpoints checks that cfg names at least one server and that every
// server URL is a host or host:port. Failures are configuration errors.
func ValidateEndpoints(cfg types.ServerConfiguration) error {
	if len(cfg.ServerURLs) == 0 {
		return core.NewConfigurationError("server host is not set")
	}
	for _, serverURL := range cfg.ServerURLs {
		if _, err := types.ExtractHostAndPort(serverURL); err != nil {
			return core.NewConfigurationError("invalid server url: %v", err)
		}
	}
	return nil
}

// CreateClientOptions builds driver options for cfg without touching the network.
func CreateClientOptions(cfg types.ServerConfiguration) (*options.ClientOptions, error) {
	if err := ValidateEndpoints(cfg); err != nil {
		return nil, err
	}

	hosts, err := ServerAddresses(cfg)
	if err != nil {
		return nil, err
	}

	clientOpts := options.Client().
		SetHosts(hosts).
		SetAppName(AppName).
		SetConnectTimeout(core.DefaultConnectTimeout).
		SetServerSelectionTimeout(core.DefaultConnectTimeout)

	// The tunnel exposes a single member; discovering the others would bypass it
	if !cfg.SSHTunneling.IsEmpty() {
		clientOpts.SetDirect(true)
	}

	if cfg.SSLConnection {
		clientOpts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	rp, err := ReadPreference(cfg.ReadPreference)
	if err != nil {
		return nil, err
	}
	clientOpts.SetReadPreference(rp)

	if strings.TrimSpace(cfg.Username) == "" {
		return clientOpts, nil
	}

	cred, err := Credential(cfg)
	if err != nil {
		return nil, err
	}
	clientOpts.SetAuth(cred)

	return clientOpts, nil
}

// ServerAddresses returns the addresses the client dials: one per configured
// server URL, or the tunnel's local end when tunneling is configured.
func ServerAddresses(cfg types.ServerConfiguration) ([]string, error) {
	if !cfg.SSHTunneling.IsEmpty() {
		return []string{net.JoinHostPort(tunnel.DefaultLocalHost, strconv.Itoa(tunnel.DefaultLocalPort))}, nil
	}

	addresses := make([]string, 0, len(cfg.ServerURLs))
	for _, serverURL := range cfg.ServerURLs {
		hp, err := types.ExtractHostAndPort(serverURL)
		if err != nil {
			return nil, core.NewConfigurationError("invalid server url: %v", err)
		}
		addresses = append(addresses, hp.String())
	}
	return addresses, nil
}

// Credential derives the driver credential from the configuration.
// Unsupported mechanisms fail with core.ErrInvalidArgument.
func Credential(cfg types.ServerConfiguration) (options.Credential, error) {
	cred := options.Credential{
		Username:    cfg.Username,
		Password:    cfg.Password,
		PasswordSet: cfg.Password != "",
		AuthSource:  AuthenticationDatabase(cfg),
	}

	switch cfg.AuthenticationMechanism {
	case types.AuthMechanismDefault:
		// Left empty so the driver negotiates SCRAM with the server
	case types.AuthMechanismMongoDBCR, types.AuthMechanismScramSHA1, types.AuthMechanismScramSHA256:
		cred.AuthMechanism = string(cfg.AuthenticationMechanism)
	default:
		return options.Credential{}, fmt.Errorf("%w: unsupported authentication mechanism: %q",
			core.ErrInvalidArgument, cfg.AuthenticationMechanism)
	}

	return cred, nil
}

// AuthenticationDatabase returns the configured authentication database or "admin".
func AuthenticationDatabase(cfg types.ServerConfiguration) string {
	if db := strings.TrimSpace(cfg.AuthenticationDatabase); db != "" {
		return db
	}
	return DefaultAuthenticationDatabase
}

// ReadPreference converts a mode name into a driver read preference.
func ReadPreference(pref types.ReadPreference) (*readpref.ReadPref, error) {
	if strings.TrimSpace(string(pref)) == "" {
		return readpref.Primary(), nil
	}

	mode, err := readpref.ModeFromString(string(pref))
	if err != nil {
		return nil, core.NewConfigurationError("invalid read preference %q", pref)
	}
	rp, err := readpref.New(mode)
	if err != nil {
		return nil, &core.ConfigurationError{Message: "invalid read preference", Err: err}
	}
	return rp, nil
}
