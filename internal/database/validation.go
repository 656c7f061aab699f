package database

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/peternagy/mongoexplorer/internal/core"
)

// Server-side naming limits.
const (
	maxDatabaseNameBytes   = 64
	maxCollectionNameBytes = 120

	invalidDatabaseChars = `/\. "$*<>:|?`
)

// InvalidNameError rejects a database or collection name before it reaches the server.
type InvalidNameError struct {
	Kind   string // "database" or "collection"
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid %s name %q: %s", e.Kind, e.Name, e.Reason)
}

// Unwrap lets callers match core.ErrInvalidArgument.
func (e *InvalidNameError) Unwrap() error {
	return core.ErrInvalidArgument
}

// ValidateDatabaseName checks a database name against the server's naming rules.
func ValidateDatabaseName(name string) error {
	reject := func(reason string) error {
		return &InvalidNameError{Kind: "database", Name: name, Reason: reason}
	}

	switch {
	case name == "":
		return reject("name cannot be empty")
	case len(name) > maxDatabaseNameBytes:
		return reject(fmt.Sprintf("name exceeds %d bytes", maxDatabaseNameBytes))
	case strings.ContainsRune(name, 0):
		return reject("name contains null character")
	}
	if i := strings.IndexAny(name, invalidDatabaseChars); i >= 0 {
		r, _ := utf8.DecodeRuneInString(name[i:])
		return reject(fmt.Sprintf("name contains invalid character %q", r))
	}
	return nil
}

// ValidateCollectionName checks a collection name against the server's naming rules.
func ValidateCollectionName(name string) error {
	reject := func(reason string) error {
		return &InvalidNameError{Kind: "collection", Name: name, Reason: reason}
	}

	switch {
	case name == "":
		return reject("name cannot be empty")
	case len(name) > maxCollectionNameBytes:
		return reject(fmt.Sprintf("name exceeds %d bytes", maxCollectionNameBytes))
	case strings.ContainsRune(name, 0):
		return reject("name contains null character")
	case strings.HasPrefix(name, "$"):
		return reject("name cannot start with $")
	case !utf8.ValidString(name):
		return reject("name is not valid UTF-8")
	}
	return nil
}

// ValidateDatabaseAndCollection validates both names of a collection reference.
func ValidateDatabaseAndCollection(dbName, collName string) error {
	if err := ValidateDatabaseName(dbName); err != nil {
		return err
	}
	return ValidateCollectionName(collName)
}
