package document

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/peternagy/mongoexplorer/internal/connection"
	"github.com/peternagy/mongoexplorer/internal/core"
	"github.com/peternagy/mongoexplorer/internal/database"
	"github.com/peternagy/mongoexplorer/internal/debug"
	"github.com/peternagy/mongoexplorer/internal/types"
)

// Update stores doc in coll. A document without _id is inserted; otherwise
// the document with that _id is replaced, or inserted when absent.
func (s *Service) Update(cfg types.ServerConfiguration, coll types.MongoCollection, doc bson.D) error {
	if err := connection.ValidateEndpoints(cfg); err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: document is nil", core.ErrInvalidArgument)
	}
	if err := database.ValidateDatabaseAndCollection(coll.DatabaseName, coll.Name); err != nil {
		return err
	}

	id, hasID := DocumentID(doc)

	return s.executor.Execute(cfg, func(ctx context.Context, client *mongo.Client) error {
		collection := client.Database(coll.DatabaseName).Collection(coll.Name)

		if !hasID {
			res, err := collection.InsertOne(ctx, doc)
			if err != nil {
				return fmt.Errorf("failed to insert document: %w", err)
			}
			debug.LogDocument("Document inserted", map[string]interface{}{
				"collection": coll.Name,
				"id":         fmt.Sprint(res.InsertedID),
			})
			return nil
		}

		res, err := collection.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to replace document: %w", err)
		}
		debug.LogDocument("Document replaced", map[string]interface{}{
			"collection": coll.Name,
			"matched":    res.MatchedCount,
			"upserted":   res.UpsertedCount,
		})
		return nil
	})
}

// Delete removes at most one document whose _id equals id.
func (s *Service) Delete(cfg types.ServerConfiguration, coll types.MongoCollection, id interface{}) error {
	if err := connection.ValidateEndpoints(cfg); err != nil {
		return err
	}
	if err := database.ValidateDatabaseAndCollection(coll.DatabaseName, coll.Name); err != nil {
		return err
	}

	return s.executor.Execute(cfg, func(ctx context.Context, client *mongo.Client) error {
		res, err := client.Database(coll.DatabaseName).Collection(coll.Name).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
		if err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		debug.LogDocument("Document deleted", map[string]interface{}{
			"collection": coll.Name,
			"deleted":    res.DeletedCount,
		})
		return nil
	})
}

// DocumentID returns the _id of doc and whether it has one.
func DocumentID(doc bson.D) (interface{}, bool) {
	for _, e := range doc {
		if e.Key == "_id" {
			return e.Value, true
		}
	}
	return nil, false
}
