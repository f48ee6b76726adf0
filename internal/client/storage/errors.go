package storage

import "errors"

// Common client storage errors
var (
	// ErrOperationNotFound indicates that operation does not exist in the store
	ErrOperationNotFound = errors.New("operation not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrNotInitialized indicates that Init was not called before use
	ErrNotInitialized = errors.New("storage is not initialized")

	// ErrSchemaVersion indicates that on-disk schema is newer than this build understands
	ErrSchemaVersion = errors.New("unsupported storage schema version")

	// ErrUnknownScheme indicates that DSN scheme is not supported
	ErrUnknownScheme = errors.New("unknown storage scheme")
)
