package database

import (
	"errors"
	"strings"
	"testing"

	"github.com/peternagy/mongoexplorer/internal/core"
)

func TestValidateDatabaseName(t *testing.T) {
	tests := []struct {
		input  string
		errMsg string // empty means valid
	}{
		{"inventory", ""},
		{"inventory_2024", ""},
		{"my-db", ""},
		{strings.Repeat("a", 64), ""},
		{"", "cannot be empty"},
		{strings.Repeat("a", 65), "exceeds 64 bytes"},
		{"my/db", "invalid character '/'"},
		{`my\db`, "invalid character"},
		{"my.db", "invalid character '.'"},
		{"my db", "invalid character"},
		{`my"db`, "invalid character"},
		{"my$db", "invalid character '$'"},
		{"my*db", "invalid character"},
		{"a<b>c", "invalid character '<'"},
		{"my:db", "invalid character"},
		{"my|db", "invalid character"},
		{"my?db", "invalid character"},
		{"my\x00db", "null character"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateDatabaseName(tt.input)
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("ValidateDatabaseName(%q) unexpected error: %v", tt.input, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateDatabaseName(%q) error = %v, want to contain %q", tt.input, err, tt.errMsg)
			}
		})
	}
}

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		input  string
		errMsg string
	}{
		{"orders", ""},
		{"orders.archived", ""},
		{"system.users", ""},
		{strings.Repeat("c", 120), ""},
		{"", "cannot be empty"},
		{strings.Repeat("c", 121), "exceeds 120 bytes"},
		{"$cmd", "cannot start with $"},
		{"bad\x00name", "null character"},
		{"bad\xffname", "not valid UTF-8"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("ValidateCollectionName(%q) unexpected error: %v", tt.input, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateCollectionName(%q) error = %v, want to contain %q", tt.input, err, tt.errMsg)
			}
		})
	}
}

func TestValidateDatabaseAndCollection(t *testing.T) {
	if err := ValidateDatabaseAndCollection("shop", "orders"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ValidateDatabaseAndCollection("shop", "$orders")
	var nameErr *InvalidNameError
	if !errors.As(err, &nameErr) || nameErr.Kind != "collection" {
		t.Errorf("expected collection name error, got %v", err)
	}

	err = ValidateDatabaseAndCollection("sh/op", "$orders")
	if !errors.As(err, &nameErr) || nameErr.Kind != "database" {
		t.Errorf("database name should be checked first, got %v", err)
	}
}

func TestInvalidNameErrorIsInvalidArgument(t *testing.T) {
	err := ValidateDatabaseName("my/db")
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if core.IsConfigurationError(err) {
		t.Error("name errors are not configuration errors")
	}
	want := `invalid database name "my/db": name contains invalid character '/'`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
