package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// EventServerStatus is emitted whenever a registered server changes status.
const EventServerStatus = "server:status"

// EventEmitter defines the interface for emitting events to the UI.
type EventEmitter interface {
	Emit(eventName string, data interface{})
}

// WailsEventEmitter emits events using the Wails runtime.
type WailsEventEmitter struct {
	Ctx context.Context
}

// Emit sends an event to the frontend via Wails runtime.
func (e *WailsEventEmitter) Emit(eventName string, data interface{}) {
	if e.Ctx != nil {
		runtime.EventsEmit(e.Ctx, eventName, data)
	}
}

// NoopEventEmitter is a no-op event emitter for testing.
type NoopEventEmitter struct{}

// Emit does nothing (used for tests).
func (e *NoopEventEmitter) Emit(eventName string, data interface{}) {}

// =============================================================================
// Custom Error Types
// =============================================================================

// ErrInvalidArgument marks caller mistakes detected before any I/O,
// such as an unsupported authentication mechanism.
var ErrInvalidArgument = errors.New("invalid argument")

// ConfigurationError is the single error kind surfaced to callers for
// connection and driver failures. It carries either a message or a cause.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Message
	}
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError with a message only.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// WrapConfigurationError normalizes err into a ConfigurationError.
// Nil stays nil; errors that already are configuration or argument
// errors are returned unchanged.
func WrapConfigurationError(err error) error {
	if err == nil {
		return nil
	}
	if IsConfigurationError(err) || errors.Is(err, ErrInvalidArgument) {
		return err
	}
	return &ConfigurationError{Err: err}
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ServerNotFoundError indicates a registered server was not found.
type ServerNotFoundError struct {
	ServerID string
}

func (e *ServerNotFoundError) Error() string {
	return fmt.Sprintf("server not found: %s", e.ServerID)
}
