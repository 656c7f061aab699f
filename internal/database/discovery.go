// Package database discovers the databases and collections of a server and
// performs structural drops.
package database

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/peternagy/mongoexplorer/internal/connection"
	"github.com/peternagy/mongoexplorer/internal/core"
	"github.com/peternagy/mongoexplorer/internal/debug"
	"github.com/peternagy/mongoexplorer/internal/types"
)

// ConnectProbeDatabase is listed by Connect when no user database is configured.
const ConnectProbeDatabase = "test"

// Service handles discovery and drops.
type Service struct {
	executor  *connection.Executor
	workspace *core.Workspace
}

// NewService creates a new database service.
func NewService(executor *connection.Executor, workspace *core.Workspace) *Service {
	return &Service{executor: executor, workspace: workspace}
}

// Connect checks that the server described by cfg is reachable with its
// credentials. The listing it performs is discarded.
func (s *Service) Connect(cfg types.ServerConfiguration) error {
	dbName := cfg.UserDatabase
	if dbName == "" {
		dbName = ConnectProbeDatabase
	}

	err := s.executor.Execute(cfg, func(ctx context.Context, client *mongo.Client) error {
		names, err := client.Database(dbName).ListCollectionNames(ctx, bson.D{})
		if err != nil {
			return err
		}
		if len(names) > 0 {
			debug.LogConnection("Connection verified", map[string]interface{}{
				"database":        dbName,
				"firstCollection": names[0],
			})
		}
		return nil
	})
	if err != nil {
		debug.LogConnection("Connection check failed", map[string]interface{}{"error": err.Error()})
	}
	return err
}

// LoadServer rebuilds the database tree of server. The server is LOADING
// while this runs and ends up OK with the new tree, or FAILED with the
// previous tree and the error recorded.
func (s *Service) LoadServer(server *types.MongoServer) error {
	s.workspace.MarkLoading(server)

	cfg := server.Configuration
	databases, err := connection.Query(s.executor, cfg, func(ctx context.Context, client *mongo.Client) ([]types.MongoDatabase, error) {
		return loadDatabases(ctx, client, cfg.UserDatabase)
	})
	if err != nil {
		s.workspace.MarkFailed(server, err)
		debug.LogConnection("Server load failed", map[string]interface{}{
			"server": server.ID(),
			"error":  err.Error(),
		})
		return err
	}

	s.workspace.MarkLoaded(server, databases)
	debug.LogConnection("Server loaded", map[string]interface{}{
		"server":    server.ID(),
		"databases": len(databases),
	})
	return nil
}

func loadDatabases(ctx context.Context, client *mongo.Client, userDatabase string) ([]types.MongoDatabase, error) {
	var names []string
	if userDatabase != "" {
		names = []string{userDatabase}
	} else {
		var err error
		names, err = client.ListDatabaseNames(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("failed to list databases: %w", err)
		}
		sort.Strings(names)
	}

	databases := make([]types.MongoDatabase, 0, len(names))
	for _, name := range names {
		db, err := loadDatabase(ctx, client, name)
		if err != nil {
			return nil, err
		}
		databases = append(databases, db)
	}
	return databases, nil
}

func loadDatabase(ctx context.Context, client *mongo.Client, name string) (types.MongoDatabase, error) {
	collections, err := client.Database(name).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return types.MongoDatabase{}, fmt.Errorf("failed to list collections of %s: %w", name, err)
	}
	sort.Strings(collections)

	db := types.MongoDatabase{Name: name, Collections: make([]types.MongoCollection, 0, len(collections))}
	for _, c := range collections {
		db.AddCollection(c)
	}
	return db, nil
}
