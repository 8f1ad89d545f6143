package relation

import "context"

// Mutator is the storage-facing capability the runner executes plans against.
// Every method must be idempotent: adding an id already present, or removing
// an id already absent, is a no-op success. Implementations may silently
// ignore a missing target entity; the reverse-link write is best-effort.
type Mutator interface {
	// AddReverseLink inserts sourceID into the TargetField list of the entity
	// relatedID in TargetCollection.
	AddReverseLink(ctx context.Context, ref FieldRef, relatedID, sourceID string) error

	// RemoveReverseLink removes sourceID from the TargetField list of the
	// entity relatedID in TargetCollection.
	RemoveReverseLink(ctx context.Context, ref FieldRef, relatedID, sourceID string) error

	// CleanupInboundReference strips deletedID out of spec.SourceField on
	// every entity of spec.SourceCollection that still holds it.
	CleanupInboundReference(ctx context.Context, spec CleanupSpec, deletedID string) error
}
