package connection

import (
	"context"
	"io"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/peternagy/mongoexplorer/internal/core"
	"github.com/peternagy/mongoexplorer/internal/debug"
	"github.com/peternagy/mongoexplorer/internal/tunnel"
	"github.com/peternagy/mongoexplorer/internal/types"
)

// Task is a unit of work run against an open client.
type Task func(ctx context.Context, client *mongo.Client) error

// TunnelOpener opens the SSH tunnel described by a configuration.
type TunnelOpener func(cfg types.ServerConfiguration) (io.Closer, error)

// Option customizes executor dependencies (primarily for tests).
type Option func(*executorDeps)

type executorDeps struct {
	connect    func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error)
	openTunnel TunnelOpener
}

func defaultDeps() executorDeps {
	return executorDeps{
		connect: func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
			return mongo.Connect(ctx, opts)
		},
		openTunnel: func(cfg types.ServerConfiguration) (io.Closer, error) {
			t, err := tunnel.Open(cfg)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	}
}

// WithConnector replaces the function used to create driver clients.
func WithConnector(connect func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error)) Option {
	return func(d *executorDeps) {
		if connect != nil {
			d.connect = connect
		}
	}
}

// WithTunnelOpener replaces the function used to open SSH tunnels.
func WithTunnelOpener(open TunnelOpener) Option {
	return func(d *executorDeps) {
		if open != nil {
			d.openTunnel = open
		}
	}
}

// Executor opens a client per call, runs a task on it and always closes it.
// Nothing is kept between calls.
type Executor struct {
	deps executorDeps
}

// NewExecutor creates an executor using the real driver and tunnel.
func NewExecutor(opts ...Option) *Executor {
	deps := defaultDeps()
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}
	return &Executor{deps: deps}
}

// Execute runs a task whose only outcome is success or failure.
func (e *Executor) Execute(cfg types.ServerConfiguration, task Task) error {
	_, err := Query(e, cfg, func(ctx context.Context, client *mongo.Client) (struct{}, error) {
		return struct{}{}, task(ctx, client)
	})
	return err
}

// Query runs a task that produces a value. Driver failures come back as
// *core.ConfigurationError; tunnel failures are returned as the tunnel reports them.
func Query[T any](e *Executor, cfg types.ServerConfiguration, task func(ctx context.Context, client *mongo.Client) (T, error)) (T, error) {
	var zero T

	// Validate before any network activity, tunnel included
	clientOpts, err := CreateClientOptions(cfg)
	if err != nil {
		return zero, err
	}

	if !cfg.SSHTunneling.IsEmpty() {
		t, err := e.deps.openTunnel(cfg)
		if err != nil {
			return zero, err
		}
		defer func() {
			if cerr := t.Close(); cerr != nil {
				debug.LogTunnel("Failed to close tunnel", map[string]interface{}{"error": cerr.Error()})
			}
		}()
	}

	return run(e, clientOpts, task)
}

func run[T any](e *Executor, clientOpts *options.ClientOptions, task func(ctx context.Context, client *mongo.Client) (T, error)) (T, error) {
	var zero T

	ctx, cancel := core.ContextWithTimeout()
	defer cancel()

	debug.LogConnection("Opening client", map[string]interface{}{"hosts": clientOpts.Hosts})

	client, err := e.deps.connect(ctx, clientOpts)
	if err != nil {
		return zero, core.WrapConfigurationError(err)
	}
	defer func() {
		// The task deadline may already have expired
		dctx, dcancel := core.ContextWithConnectTimeout()
		defer dcancel()
		if derr := client.Disconnect(dctx); derr != nil {
			debug.LogConnection("Failed to disconnect client", map[string]interface{}{"error": derr.Error()})
		}
	}()

	result, err := task(ctx, client)
	if err != nil {
		return zero, core.WrapConfigurationError(err)
	}
	return result, nil
}
