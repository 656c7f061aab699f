package mongoexplorer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/peternagy/mongoexplorer/internal/auth"
	"github.com/peternagy/mongoexplorer/internal/connection"
	"github.com/peternagy/mongoexplorer/internal/core"
	"github.com/peternagy/mongoexplorer/internal/credential"
	"github.com/peternagy/mongoexplorer/internal/database"
	"github.com/peternagy/mongoexplorer/internal/debug"
	"github.com/peternagy/mongoexplorer/internal/document"
	"github.com/peternagy/mongoexplorer/internal/storage"
	"github.com/peternagy/mongoexplorer/internal/types"
)

// =============================================================================
// Type Re-exports for Wails Binding Generation
// =============================================================================

type ServerConfiguration = types.ServerConfiguration
type SSHTunnelingConfiguration = types.SSHTunnelingConfiguration
type AuthenticationMechanism = types.AuthenticationMechanism
type ReadPreference = types.ReadPreference
type SSHAuthMethod = types.SSHAuthMethod
type MongoServer = types.MongoServer
type ServerStatus = types.ServerStatus
type MongoDatabase = types.MongoDatabase
type MongoCollection = types.MongoCollection
type MongoQueryOptions = types.MongoQueryOptions
type MongoCollectionResult = types.MongoCollectionResult
type ConfigurationError = core.ConfigurationError

// ErrNotStarted is returned by registry methods called before Startup.
var ErrNotStarted = errors.New("app is not started")

// Options configures an App. The zero value gives the desktop defaults.
type Options struct {
	ConfigDir string              // Defaults to the user config dir
	Logger    *zap.Logger         // Defaults to a no-op logger
	Emitter   core.EventEmitter   // Defaults to the Wails emitter bound to the startup context
	Executor  []connection.Option // Overrides for the task executor (tests)

	// Authenticator gates revealing saved passwords. Defaults to the OS prompt.
	Authenticator auth.Authenticator
}

// =============================================================================
// App - Thin Facade for Wails Bindings
// =============================================================================

// App struct holds the workspace and services
type App struct {
	opts       Options
	workspace  *core.Workspace
	storage    *storage.Service
	credential *credential.Service
	guard      *auth.Guard
	servers    *storage.ServerService
	executor   *connection.Executor
	database   *database.Service
	document   *document.Service
}

// NewApp creates a new App instance with the desktop defaults
func NewApp() *App {
	return NewAppWithOptions(Options{})
}

// NewAppWithOptions creates a new App instance
func NewAppWithOptions(opts Options) *App {
	workspace := core.NewWorkspace()
	executor := connection.NewExecutor(opts.Executor...)
	debug.SetLogger(opts.Logger)

	guard := auth.NewPlatformGuard()
	if opts.Authenticator != nil {
		guard = auth.NewGuard(opts.Authenticator, auth.DefaultGracePeriod)
	}

	return &App{
		opts:       opts,
		workspace:  workspace,
		credential: credential.NewService(),
		guard:      guard,
		executor:   executor,
		database:   database.NewService(executor, workspace),
		document:   document.NewService(executor),
	}
}

// Startup is called when the host starts. It prepares the config directory,
// the logger and the event emitter, then registers the saved servers.
func (a *App) Startup(ctx context.Context) error {
	configDir := a.opts.ConfigDir
	if configDir == "" {
		dir, err := storage.InitConfigDir()
		if err != nil {
			return err
		}
		configDir = dir
	}

	a.workspace.Ctx = ctx
	a.workspace.ConfigDir = configDir
	a.workspace.Emitter = a.opts.Emitter
	if a.workspace.Emitter == nil {
		a.workspace.Emitter = &core.WailsEventEmitter{Ctx: ctx}
	}
	debug.Init(ctx, a.opts.Logger)

	a.storage = storage.NewService(configDir)
	a.servers = storage.NewServerService(a.workspace, a.storage, a.credential)
	return a.servers.LoadSavedServers()
}

// Shutdown is called when the host is closing
func (a *App) Shutdown(ctx context.Context) {
	_ = debug.Sync()
}

// SetDebugEnabled toggles forwarding of debug entries to the frontend
func (a *App) SetDebugEnabled(enabled bool) {
	debug.SetEnabled(enabled)
}

// =============================================================================
// Server Registry Methods
// =============================================================================

// RegisterServer saves a server configuration. A configuration without an
// ID is registered as a new server.
func (a *App) RegisterServer(cfg ServerConfiguration) (*MongoServer, error) {
	if a.servers == nil {
		return nil, ErrNotStarted
	}
	return a.servers.SaveServer(cfg)
}

// ImportServerFromURI registers a server described by a mongodb:// connection string.
func (a *App) ImportServerFromURI(label, uri string) (*MongoServer, error) {
	cfg, err := credential.ConfigurationFromURI(uri)
	if err != nil {
		return nil, err
	}
	cfg.Label = label
	return a.RegisterServer(cfg)
}

// GetConnectionURI returns the connection string of a registered server, without its password.
func (a *App) GetConnectionURI(serverID string) (string, error) {
	server, err := a.workspace.Server(serverID)
	if err != nil {
		return "", err
	}
	return credential.ConnectionURI(server.Configuration, false), nil
}

// RevealConnectionURI returns the connection string of a registered server
// with its password, once the OS user has authenticated.
func (a *App) RevealConnectionURI(serverID string) (string, error) {
	server, err := a.workspace.Server(serverID)
	if err != nil {
		return "", err
	}
	if err := a.guard.Require("reveal the password of " + server.Configuration.Label); err != nil {
		return "", err
	}
	return credential.ConnectionURI(server.Configuration, true), nil
}

// LockSecrets requires authentication again before the next reveal.
func (a *App) LockSecrets() {
	a.guard.Lock()
}

func (a *App) GetServers() []*MongoServer {
	return a.workspace.Servers()
}

func (a *App) GetServer(serverID string) (*MongoServer, error) {
	return a.workspace.Server(serverID)
}

func (a *App) RemoveServer(serverID string) error {
	if a.servers == nil {
		return ErrNotStarted
	}
	return a.servers.DeleteServer(serverID)
}

// CleanUpServers empties the session's server list. Saved servers come back on the next Startup.
func (a *App) CleanUpServers() {
	if a.servers == nil {
		a.workspace.CleanUpServers()
		return
	}
	a.servers.CleanUpServers()
}

// =============================================================================
// Connection Methods
// =============================================================================

// Connect checks that cfg reaches a server.
func (a *App) Connect(cfg ServerConfiguration) error {
	return a.database.Connect(cfg)
}

// LoadServer reloads the databases of a registered server and returns it.
// A failed load leaves the server FAILED with its previous databases.
func (a *App) LoadServer(serverID string) (*MongoServer, error) {
	server, err := a.workspace.Server(serverID)
	if err != nil {
		return nil, err
	}
	if err := a.database.LoadServer(server); err != nil {
		return server, err
	}
	return server, nil
}

// OpenServer adds cfg to the session without saving it and loads its databases.
func (a *App) OpenServer(cfg ServerConfiguration) (*MongoServer, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	server := a.workspace.UpsertServer(cfg)
	if err := a.database.LoadServer(server); err != nil {
		return server, err
	}
	return server, nil
}

// =============================================================================
// Database Methods
// =============================================================================

func (a *App) DropDatabase(cfg ServerConfiguration, dbName string) error {
	return a.database.DropDatabase(cfg, dbName)
}

func (a *App) DropCollection(cfg ServerConfiguration, coll MongoCollection) error {
	return a.database.DropCollection(cfg, coll)
}

// =============================================================================
// Document Methods
// =============================================================================

func (a *App) LoadCollectionValues(cfg ServerConfiguration, coll MongoCollection, opts MongoQueryOptions) (*MongoCollectionResult, error) {
	return a.document.LoadCollectionValues(cfg, coll, opts)
}

// FindMongoDocument returns the document with the given _id, or nil when there is none.
func (a *App) FindMongoDocument(cfg ServerConfiguration, coll MongoCollection, id interface{}) (bson.D, error) {
	return a.document.FindMongoDocument(cfg, coll, id)
}

func (a *App) Update(cfg ServerConfiguration, coll MongoCollection, doc bson.D) error {
	return a.document.Update(cfg, coll, doc)
}

func (a *App) Delete(cfg ServerConfiguration, coll MongoCollection, id interface{}) error {
	return a.document.Delete(cfg, coll, id)
}
