package document

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/peternagy/mongoexplorer/internal/core"
)

// ParseDocument parses an Extended JSON object in canonical or relaxed form.
// Blank input is an empty document. Malformed input wraps core.ErrInvalidArgument.
func ParseDocument(text string) (bson.D, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return bson.D{}, nil
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(text), false, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid document: %v", core.ErrInvalidArgument, err)
	}
	if doc == nil {
		doc = bson.D{}
	}
	return doc, nil
}

// ParsePipeline parses an Extended JSON array of aggregation stages.
func ParsePipeline(text string) ([]bson.D, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []bson.D{}, nil
	}

	// Top-level arrays are read through a wrapping document
	var wrapper struct {
		Stages []bson.D `bson:"stages"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"stages": `+text+`}`), false, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: invalid pipeline: %v", core.ErrInvalidArgument, err)
	}
	if wrapper.Stages == nil {
		return []bson.D{}, nil
	}
	return wrapper.Stages, nil
}

// ParseDocumentID converts user input to an _id value. A 24 character hex
// string is an ObjectID; Extended JSON values such as {"$oid": ...}, numbers
// or quoted strings are decoded; anything else is taken as a plain string.
func ParseDocumentID(text string) interface{} {
	text = strings.TrimSpace(text)

	if oid, err := primitive.ObjectIDFromHex(text); err == nil {
		return oid
	}

	if text != "" {
		var doc bson.M
		if err := bson.UnmarshalExtJSON([]byte(`{"_id": `+text+`}`), false, &doc); err == nil {
			return doc["_id"]
		}
	}

	return text
}

// MarshalDocument renders a document as canonical Extended JSON, which
// ParseDocument reads back with every BSON type intact.
func MarshalDocument(doc bson.D) (string, error) {
	if doc == nil {
		return "null", nil
	}
	out, err := bson.MarshalExtJSON(doc, true, false)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}
	return string(out), nil
}
