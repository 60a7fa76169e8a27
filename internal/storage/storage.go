// Package storage abstracts where uploaded document content lives. The core
// only sees opaque content locations; whether they resolve to local disk or
// an object store is a deployment concern.
package storage

import "errors"

var (
	// ErrNotFound means no content exists at the given location. The
	// integrity checker records this as FILE_MISSING, never as a crash.
	ErrNotFound = errors.New("storage: content not found")
)

// Backend is the collaborator contract for document content.
type Backend interface {
	// Read returns the raw bytes stored at location, or ErrNotFound.
	Read(location string) ([]byte, error)
	// Write stores data at location, creating parent directories as needed.
	Write(location string, data []byte) error
}
