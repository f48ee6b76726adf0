package storage

import "errors"

// Common storage errors
var (
	// ErrRecordExists INSERT for a record id that is already present
	ErrRecordExists = errors.New("record already exists")

	// ErrMissingRecordID payload carries no usable "id" field
	ErrMissingRecordID = errors.New("payload has no record id")

	// ErrInvalidAction unknown mutation action
	ErrInvalidAction = errors.New("invalid action")
)
