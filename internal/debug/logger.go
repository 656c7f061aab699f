package debug

import (
	"context"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Categories for debug logging (must match frontend DEBUG_CATEGORIES)
const (
	CategoryConnection = "connection"
	CategoryQuery      = "query"
	CategoryDocument   = "document"
	CategoryTunnel     = "tunnel"
)

// Logger writes debug entries to zap and, when enabled, emits them to the frontend
type Logger struct {
	ctx     context.Context
	zap     *zap.Logger
	enabled bool
	mu      sync.RWMutex
}

// Global logger instance
var globalLogger = &Logger{zap: zap.NewNop()}

// Init sets the host context and the zap logger entries are written to.
// A nil logger keeps the current one.
func Init(ctx context.Context, logger *zap.Logger) {
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.ctx = ctx
	if logger != nil {
		globalLogger.zap = logger
	}
}

// SetLogger replaces the zap logger entries are written to, keeping the host context.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		return
	}
	globalLogger.mu.Lock()
	globalLogger.zap = logger
	globalLogger.mu.Unlock()
}

// SetEnabled enables or disables forwarding to the frontend
func SetEnabled(enabled bool) {
	globalLogger.mu.Lock()
	globalLogger.enabled = enabled
	globalLogger.mu.Unlock()
}

// IsEnabled returns whether frontend forwarding is enabled
func IsEnabled() bool {
	globalLogger.mu.RLock()
	defer globalLogger.mu.RUnlock()
	return globalLogger.enabled
}

// Sync flushes the zap logger
func Sync() error {
	globalLogger.mu.RLock()
	z := globalLogger.zap
	globalLogger.mu.RUnlock()
	return z.Sync()
}

// Log records a debug entry
// category: one of the Category* constants
// message: short one-liner summary
// details: optional map with additional context (can be nil)
func Log(category, message string, details map[string]interface{}) {
	write(zap.DebugLevel, category, message, details)
}

// Warn records an entry at warning level, e.g. insecure tunnel settings
func Warn(category, message string, details map[string]interface{}) {
	write(zap.WarnLevel, category, message, details)
}

func write(level zapcore.Level, category, message string, details map[string]interface{}) {
	globalLogger.mu.RLock()
	enabled := globalLogger.enabled
	ctx := globalLogger.ctx
	z := globalLogger.zap
	globalLogger.mu.RUnlock()

	fields := make([]zap.Field, 0, len(details)+1)
	fields = append(fields, zap.String("category", category))
	for k, v := range details {
		fields = append(fields, zap.Any(k, v))
	}
	if ce := z.Check(level, message); ce != nil {
		ce.Write(fields...)
	}

	if !enabled || ctx == nil {
		return
	}

	// Emit event to frontend
	runtime.EventsEmit(ctx, "debug:log", category, message, details)
}

// Convenience functions for each category

// LogConnection logs a connection-related debug message
func LogConnection(message string, details map[string]interface{}) {
	Log(CategoryConnection, message, details)
}

// LogQuery logs a query-related debug message
func LogQuery(message string, details map[string]interface{}) {
	Log(CategoryQuery, message, details)
}

// LogDocument logs a document-related debug message
func LogDocument(message string, details map[string]interface{}) {
	Log(CategoryDocument, message, details)
}

// LogTunnel logs an SSH tunnel debug message
func LogTunnel(message string, details map[string]interface{}) {
	Log(CategoryTunnel, message, details)
}
