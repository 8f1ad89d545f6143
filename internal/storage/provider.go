// Package storage defines the workspace file-system abstraction. Each entity
// is one JSON document at <root>/<collection>/<id>.json.
package storage

import "time"

// EntityMetadata is a lightweight representation returned by list operations.
type EntityMetadata struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Checksum   string    `json:"checksum"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Provider is the interface for workspace file operations.
type Provider interface {
	// List returns metadata for every entity document in a collection.
	List(collection string) ([]EntityMetadata, error)
	// Read returns the raw bytes of one entity document.
	Read(collection, id string) ([]byte, error)
	// Write atomically writes an entity document.
	Write(collection, id string, content []byte) error
	// Delete removes an entity document.
	Delete(collection, id string) error
}
