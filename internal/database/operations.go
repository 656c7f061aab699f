package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/peternagy/mongoexplorer/internal/connection"
	"github.com/peternagy/mongoexplorer/internal/debug"
	"github.com/peternagy/mongoexplorer/internal/types"
)

// DropDatabase drops an entire database.
func (s *Service) DropDatabase(cfg types.ServerConfiguration, dbName string) error {
	if err := connection.ValidateEndpoints(cfg); err != nil {
		return err
	}
	if err := ValidateDatabaseName(dbName); err != nil {
		return err
	}

	err := s.executor.Execute(cfg, func(ctx context.Context, client *mongo.Client) error {
		if err := client.Database(dbName).Drop(ctx); err != nil {
			return fmt.Errorf("failed to drop database: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	debug.LogConnection("Database dropped", map[string]interface{}{"database": dbName})
	return nil
}

// DropCollection drops a collection from its database.
func (s *Service) DropCollection(cfg types.ServerConfiguration, coll types.MongoCollection) error {
	if err := connection.ValidateEndpoints(cfg); err != nil {
		return err
	}
	if err := ValidateDatabaseAndCollection(coll.DatabaseName, coll.Name); err != nil {
		return err
	}

	err := s.executor.Execute(cfg, func(ctx context.Context, client *mongo.Client) error {
		if err := client.Database(coll.DatabaseName).Collection(coll.Name).Drop(ctx); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	debug.LogConnection("Collection dropped", map[string]interface{}{
		"database":   coll.DatabaseName,
		"collection": coll.Name,
	})
	return nil
}
