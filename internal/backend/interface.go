package backend

import (
	"context"

	"fintrack/internal/amqp"
	"fintrack/internal/records"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the record store, the optional alert client and
// a cleanup function releasing both.
type BackendResult struct {
	Store records.Store
	// Alerts is nil when no broker is configured or reachable.
	Alerts  *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Broker; an empty URL disables alerts
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// RequireAMQP turns a failed broker connection into an error
	RequireAMQP bool
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
