package storage

import (
	"context"
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

// SchemaVersion версия формата записей, которую понимает эта сборка.
// Хранилище с большей версией на диске отказывается инициализироваться.
const SchemaVersion = 1

// OperationStore defines the persistent contract for pending operations
type OperationStore interface {
	// Init prepares the schema. Must be called once before any other method.
	// Returns ErrSchemaVersion if the stored schema is newer than SchemaVersion.
	Init(ctx context.Context) error

	// Put stores or replaces an operation by ID
	Put(ctx context.Context, op *models.Operation) error

	// Delete removes an operation by ID
	// Returns ErrOperationNotFound if operation doesn't exist
	Delete(ctx context.Context, id string) error

	// GetAll returns all decodable operations.
	// Records that fail to decode are skipped, logged and left in place.
	GetAll(ctx context.Context) ([]*models.Operation, error)

	// Close releases underlying resources
	Close() error
}

// DeadLetterStore keeps operations that were permanently removed from dispatch
type DeadLetterStore interface {
	PutDead(ctx context.Context, dl *models.DeadLetter) error
	GetDead(ctx context.Context) ([]*models.DeadLetter, error)
	// DeleteDead returns ErrOperationNotFound if no dead letter has this ID
	DeleteDead(ctx context.Context, id string) error
}

// WatermarkStore persists per-entity delta-sync watermarks across restarts
type WatermarkStore interface {
	SaveWatermark(ctx context.Context, entity string, ts time.Time) error
	// GetWatermark returns zero time if no watermark was saved yet
	GetWatermark(ctx context.Context, entity string) (time.Time, error)
}

// Store is the full client store used by the sync engine
type Store interface {
	OperationStore
	DeadLetterStore
	WatermarkStore
}

// CorruptCounter is implemented by stores that track undecodable records
type CorruptCounter interface {
	Corrupt() int
}
