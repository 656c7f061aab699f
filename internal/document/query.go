// Package document queries collections and mutates their documents.
package document

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/peternagy/mongoexplorer/internal/connection"
	"github.com/peternagy/mongoexplorer/internal/database"
	"github.com/peternagy/mongoexplorer/internal/debug"
	"github.com/peternagy/mongoexplorer/internal/types"
)

// Service runs queries and document mutations through an executor.
type Service struct {
	executor *connection.Executor
}

// NewService creates a new document service.
func NewService(executor *connection.Executor) *Service {
	return &Service{executor: executor}
}

// LoadCollectionValues reads at most opts.ResultLimit documents from coll,
// either by running the aggregation pipeline or by a find with the
// filter, projection and sort of opts. An empty result is not an error.
func (s *Service) LoadCollectionValues(cfg types.ServerConfiguration, coll types.MongoCollection, opts types.MongoQueryOptions) (*types.MongoCollectionResult, error) {
	if err := connection.ValidateEndpoints(cfg); err != nil {
		return nil, err
	}
	if err := database.ValidateDatabaseAndCollection(coll.DatabaseName, coll.Name); err != nil {
		return nil, err
	}

	return connection.Query(s.executor, cfg, func(ctx context.Context, client *mongo.Client) (*types.MongoCollectionResult, error) {
		collection := client.Database(coll.DatabaseName).Collection(coll.Name)

		var (
			result *types.MongoCollectionResult
			err    error
		)
		if opts.Aggregate {
			result, err = aggregate(ctx, collection, opts)
		} else {
			result, err = find(ctx, collection, opts)
		}
		if err != nil {
			return nil, err
		}

		debug.LogQuery("Collection values loaded", map[string]interface{}{
			"database":   coll.DatabaseName,
			"collection": coll.Name,
			"aggregate":  opts.Aggregate,
			"count":      result.Len(),
		})
		return result, nil
	})
}

// FindMongoDocument returns the document whose _id equals id, or nil if there is none.
func (s *Service) FindMongoDocument(cfg types.ServerConfiguration, coll types.MongoCollection, id interface{}) (bson.D, error) {
	if err := connection.ValidateEndpoints(cfg); err != nil {
		return nil, err
	}
	if err := database.ValidateDatabaseAndCollection(coll.DatabaseName, coll.Name); err != nil {
		return nil, err
	}

	return connection.Query(s.executor, cfg, func(ctx context.Context, client *mongo.Client) (bson.D, error) {
		collection := client.Database(coll.DatabaseName).Collection(coll.Name)

		var doc bson.D
		err := collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find document: %w", err)
		}
		return doc, nil
	})
}

func aggregate(ctx context.Context, collection *mongo.Collection, opts types.MongoQueryOptions) (*types.MongoCollectionResult, error) {
	cursor, err := collection.Aggregate(ctx, LimitedPipeline(opts.Operations, opts.ResultLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to run aggregation: %w", err)
	}
	defer cursor.Close(ctx)

	return drain(ctx, cursor, collection.Name(), opts.ResultLimit)
}

func find(ctx context.Context, collection *mongo.Collection, opts types.MongoQueryOptions) (*types.MongoCollectionResult, error) {
	filter := opts.Filter
	if filter == nil {
		filter = bson.D{}
	}

	cursor, err := collection.Find(ctx, filter, FindOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	defer cursor.Close(ctx)

	return drain(ctx, cursor, collection.Name(), opts.ResultLimit)
}

// LimitedPipeline appends a $limit stage so the server stops producing
// documents at limit. Pipelines ending in $out or $merge are left as is
// since those stages must come last.
func LimitedPipeline(operations []bson.D, limit int64) mongo.Pipeline {
	pipeline := make(mongo.Pipeline, 0, len(operations)+1)
	pipeline = append(pipeline, operations...)
	if limit <= 0 || endsWithOutputStage(operations) {
		return pipeline
	}
	return append(pipeline, bson.D{{Key: "$limit", Value: limit}})
}

func endsWithOutputStage(operations []bson.D) bool {
	if len(operations) == 0 {
		return false
	}
	last := operations[len(operations)-1]
	if len(last) == 0 {
		return false
	}
	return last[0].Key == "$out" || last[0].Key == "$merge"
}

// FindOptions maps query options onto driver find options. Projection and
// sort are only set when given; the limit only when positive.
func FindOptions(opts types.MongoQueryOptions) *options.FindOptions {
	findOpts := options.Find()
	if len(opts.Projection) > 0 {
		findOpts.SetProjection(opts.Projection)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.ResultLimit > 0 {
		findOpts.SetLimit(opts.ResultLimit)
	}
	return findOpts
}

// drain collects documents in cursor order, stopping at limit when it is positive.
func drain(ctx context.Context, cursor *mongo.Cursor, collectionName string, limit int64) (*types.MongoCollectionResult, error) {
	result := types.NewMongoCollectionResult(collectionName)
	for (limit <= 0 || int64(result.Len()) < limit) && cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		result.Add(doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return result, nil
}
