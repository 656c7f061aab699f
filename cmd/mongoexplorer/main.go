// Command mongoexplorer browses and edits a MongoDB server from the terminal.
//
// The server is described by MONGOEXPLORER_* environment variables, read
// after an optional .env file, and can be overridden with global flags:
//
//	mongoexplorer [--uri URI] [--db NAME] [--debug] <command> [flags] [args]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/juju/gnuflag"
	"go.uber.org/zap"

	"github.com/peternagy/mongoexplorer"
	"github.com/peternagy/mongoexplorer/internal/core"
	"github.com/peternagy/mongoexplorer/internal/credential"
	"github.com/peternagy/mongoexplorer/internal/types"
)

const envPrefix = "MONGOEXPLORER_"

// config is the environment configuration of the command.
type config struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE"`
	Limit    int64  `env:"LIMIT" envDefault:"300"`
	Debug    bool   `env:"DEBUG"`

	SSHProxy         string `env:"SSH_PROXY"`
	SSHUser          string `env:"SSH_USER"`
	SSHPassword      string `env:"SSH_PASSWORD"`
	SSHKey           string `env:"SSH_KEY"`
	SSHKeyPassphrase string `env:"SSH_KEY_PASSPHRASE"`
	SSHKnownHosts    string `env:"SSH_KNOWN_HOSTS"`
}

func loadConfig() (config, error) {
	// The .env file is optional
	_ = godotenv.Load()

	var cfg config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return config{}, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

// serverConfiguration builds the server to talk to from the connection
// string and the SSH settings.
func (c config) serverConfiguration() (types.ServerConfiguration, error) {
	server, err := credential.ConfigurationFromURI(c.URI)
	if err != nil {
		return types.ServerConfiguration{}, err
	}
	server.Label = "cli"
	if c.Database != "" {
		server.UserDatabase = c.Database
	}

	if strings.TrimSpace(c.SSHProxy) != "" {
		tunneling := types.SSHTunnelingConfiguration{
			ProxyURL:       c.SSHProxy,
			ProxyUser:      c.SSHUser,
			AuthMethod:     types.SSHAuthPassword,
			ProxyPassword:  c.SSHPassword,
			KnownHostsFile: c.SSHKnownHosts,
		}
		if c.SSHKey != "" {
			tunneling.AuthMethod = types.SSHAuthPrivateKey
			tunneling.PrivateKeyPath = c.SSHKey
			tunneling.PrivateKeyPassphrase = c.SSHKeyPassphrase
		}
		server.SSHTunneling = tunneling
	}
	return server, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if !debug {
		return zap.NewNop(), nil
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	global := gnuflag.NewFlagSet("mongoexplorer", gnuflag.ContinueOnError)
	global.SetOutput(stderr)
	global.StringVar(&cfg.URI, "uri", cfg.URI, "mongodb:// connection string")
	global.StringVar(&cfg.Database, "db", cfg.Database, "restrict listing to this database")
	global.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log driver and tunnel activity to stderr")
	global.Usage = func() { usage(stderr, global) }
	if err := global.Parse(false, args); err != nil {
		return 2
	}

	rest := global.Args()
	if len(rest) == 0 {
		usage(stderr, global)
		return 2
	}
	cmd, ok := lookupCommand(rest[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		usage(stderr, global)
		return 2
	}

	server, err := cfg.serverConfiguration()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	s := &session{
		app:    mongoexplorer.NewAppWithOptions(mongoexplorer.Options{Logger: logger, Emitter: &core.NoopEventEmitter{}}),
		server: server,
		limit:  cfg.Limit,
		out:    stdout,
	}
	defer s.app.Shutdown(context.Background())

	if err := cmd.execute(s, rest[1:], stderr); err != nil {
		if errors.Is(err, gnuflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "%s: %v\n", cmd.name, err)
		if errors.Is(err, errUsage) || errors.Is(err, core.ErrInvalidArgument) {
			return 2
		}
		return 1
	}
	return 0
}

func usage(w io.Writer, global *gnuflag.FlagSet) {
	fmt.Fprintln(w, "usage: mongoexplorer [global flags] <command> [flags] [args]")
	fmt.Fprintln(w, "\nglobal flags:")
	global.SetOutput(w)
	global.PrintDefaults()
	fmt.Fprintln(w, "\ncommands:")
	for _, c := range commandList() {
		fmt.Fprintf(w, "  %-16s %s\n", c.name, c.purpose)
	}
	fmt.Fprintf(w, "\nenvironment: %sURI, %sDATABASE, %sLIMIT, %sDEBUG, %sSSH_*\n",
		envPrefix, envPrefix, envPrefix, envPrefix, envPrefix)
}
