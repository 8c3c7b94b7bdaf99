package store

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates an encode or decode failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrInvalidCollection indicates a collection name that cannot be
	// used as a key segment.
	ErrInvalidCollection = errors.New("invalid collection name")
)
