// Package workspace coordinates entity storage, indexing, and relation
// synchronization. It is the write path of the application: every entity
// mutation flows through Service so reverse links and the search index stay
// consistent with what is on disk.
package workspace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/vheim/othala/internal/apperr"
	"github.com/vheim/othala/internal/checksum"
	"github.com/vheim/othala/internal/index"
	"github.com/vheim/othala/internal/models"
	"github.com/vheim/othala/internal/rag"
	"github.com/vheim/othala/internal/relation"
	"github.com/vheim/othala/internal/storage"
)

// Service coordinates storage, index, and relation operations.
type Service struct {
	store  storage.Provider
	db     *index.DB
	logger *slog.Logger

	// mu serializes reverse-link read-modify-write cycles so concurrent
	// relation mutations cannot drop each other's updates.
	mu sync.Mutex
}

// NewService creates a new workspace service.
func NewService(store storage.Provider, db *index.DB, logger *slog.Logger) *Service {
	return &Service{store: store, db: db, logger: logger}
}

// Get reads one entity and returns it together with its document checksum.
func (s *Service) Get(_ context.Context, collection, id string) (models.Entity, string, error) {
	if !models.ValidCollection(collection) {
		return nil, "", apperr.ErrNotFound
	}
	data, err := s.store.Read(collection, id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", apperr.ErrNotFound
		}
		return nil, "", err
	}
	entity, err := decodeEntity(data)
	if err != nil {
		return nil, "", err
	}
	return entity, checksum.Sum(data), nil
}

// List returns paginated index rows for one collection, newest first.
func (s *Service) List(_ context.Context, collection string, limit, offset int) ([]index.EntityRow, int, error) {
	if !models.ValidCollection(collection) {
		return nil, 0, apperr.ErrNotFound
	}
	return s.db.ListEntities(collection, limit, offset)
}

// Create writes a new entity, indexes it, and mirrors its relation fields
// onto the referenced entities. A missing id is generated. Relation sync
// failures are logged but do not fail the create.
func (s *Service) Create(ctx context.Context, collection string, entity models.Entity) (models.Entity, string, error) {
	if !models.ValidCollection(collection) {
		return nil, "", apperr.ErrNotFound
	}
	if entity == nil {
		entity = models.Entity{}
	}
	id := entity.ID()
	if id == "" {
		id = NewID()
		entity["id"] = id
	}
	if _, err := s.store.Read(collection, id); err == nil {
		return nil, "", apperr.ErrAlreadyExists
	}
	entity.Touch(time.Now())

	data, err := s.writeEntity(collection, id, entity)
	if err != nil {
		return nil, "", err
	}

	if err := relation.ApplyBidirectionalRelationMutations(ctx, collection, entity, nil, s); err != nil {
		s.logger.Warn("relation sync failed on create",
			slog.String("entity", collection+"/"+id),
			slog.String("error", err.Error()))
	}
	return entity, checksum.Sum(data), nil
}

// Update overwrites an entity with optimistic concurrency. When ifMatch is
// non-empty it must equal the stored document's checksum. Relation fields are
// diffed against the previous version and reverse links adjusted.
func (s *Service) Update(ctx context.Context, collection, id string, entity models.Entity, ifMatch string) (models.Entity, string, error) {
	if !models.ValidCollection(collection) {
		return nil, "", apperr.ErrNotFound
	}
	existing, err := s.store.Read(collection, id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", apperr.ErrNotFound
		}
		return nil, "", err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, "", apperr.ErrConflict
	}
	previous, err := decodeEntity(existing)
	if err != nil {
		return nil, "", err
	}

	if entity == nil {
		entity = models.Entity{}
	}
	entity["id"] = id
	if entity.String("createdAt") == "" {
		entity["createdAt"] = previous.String("createdAt")
	}
	entity.Touch(time.Now())

	data, err := s.writeEntity(collection, id, entity)
	if err != nil {
		return nil, "", err
	}

	if err := relation.ApplyBidirectionalRelationMutations(ctx, collection, entity, previous, s); err != nil {
		s.logger.Warn("relation sync failed on update",
			slog.String("entity", collection+"/"+id),
			slog.String("error", err.Error()))
	}
	return entity, checksum.Sum(data), nil
}

// Delete removes an entity, strips its reverse links off the entities it
// referenced, and scrubs dangling references to it from every tracked
// relation field pointing at its collection.
func (s *Service) Delete(ctx context.Context, collection, id string) error {
	if !models.ValidCollection(collection) {
		return apperr.ErrNotFound
	}
	existing, err := s.store.Read(collection, id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	deleted, err := decodeEntity(existing)
	if err != nil {
		return err
	}

	if err := s.store.Delete(collection, id); err != nil {
		return err
	}
	if err := s.db.DeleteEntity(collection, id); err != nil {
		s.logger.Warn("index delete failed",
			slog.String("entity", collection+"/"+id),
			slog.String("error", err.Error()))
	}

	if err := relation.ApplyDetachRelationMutations(ctx, collection, deleted, s); err != nil {
		s.logger.Warn("relation detach failed on delete",
			slog.String("entity", collection+"/"+id),
			slog.String("error", err.Error()))
	}
	if err := relation.ApplyInboundCleanupSpecs(ctx, collection, id, s); err != nil {
		s.logger.Warn("inbound cleanup failed on delete",
			slog.String("entity", collection+"/"+id),
			slog.String("error", err.Error()))
	}
	return nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns all entities and relation edges for graph visualization.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.Edge, error) {
	return s.db.Graph()
}

// Inbound returns every relation edge pointing at the given entity.
func (s *Service) Inbound(_ context.Context, collection, id string) ([]index.Edge, error) {
	return s.db.Inbound(collection, id)
}

// Pool loads a snapshot of every collection for assistant retrieval.
// Conversations are owned by the assistant layer and attached by the caller.
func (s *Service) Pool(_ context.Context) (rag.Pool, error) {
	var pool rag.Pool
	for _, collection := range models.Collections {
		entities, err := s.loadCollection(collection)
		if err != nil {
			return rag.Pool{}, err
		}
		switch collection {
		case models.CollectionProjects:
			pool.Projects = entities
		case models.CollectionTasks:
			pool.Tasks = entities
		case models.CollectionNotes:
			pool.Notes = entities
		case models.CollectionMeetings:
			pool.Meetings = entities
		case models.CollectionCompanies:
			pool.Companies = entities
		case models.CollectionPeople:
			pool.People = entities
		}
	}
	return pool, nil
}

// AddReverseLink inserts sourceID into the reverse relation field of the
// entity relatedID. A missing target entity or an already-present id is a
// no-op.
func (s *Service) AddReverseLink(_ context.Context, ref relation.FieldRef, relatedID, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateRelationField(ref.TargetCollection, relatedID, ref.TargetField, func(ids []string) ([]string, bool) {
		for _, existing := range ids {
			if existing == sourceID {
				return ids, false
			}
		}
		return append(ids, sourceID), true
	})
}

// RemoveReverseLink removes sourceID from the reverse relation field of the
// entity relatedID. A missing target entity or an already-absent id is a
// no-op.
func (s *Service) RemoveReverseLink(_ context.Context, ref relation.FieldRef, relatedID, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateRelationField(ref.TargetCollection, relatedID, ref.TargetField, removeID(sourceID))
}

// CleanupInboundReference strips deletedID out of spec.SourceField on every
// entity of spec.SourceCollection that still holds it.
func (s *Service) CleanupInboundReference(_ context.Context, spec relation.CleanupSpec, deletedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metas, err := s.store.List(spec.SourceCollection)
	if err != nil {
		return err
	}
	for _, m := range metas {
		if err := s.mutateRelationField(spec.SourceCollection, m.ID, spec.SourceField, removeID(deletedID)); err != nil {
			return err
		}
	}
	return nil
}

// mutateRelationField applies fn to one relation field of one entity and
// persists the result when fn reports a change. Callers hold s.mu.
func (s *Service) mutateRelationField(collection, id, field string, fn func([]string) ([]string, bool)) error {
	data, err := s.store.Read(collection, id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	entity, err := decodeEntity(data)
	if err != nil {
		return err
	}

	updated, changed := fn(entity.StringList(field))
	if !changed {
		return nil
	}
	entity[field] = updated
	entity.Touch(time.Now())

	_, err = s.writeEntity(collection, id, entity)
	return err
}

func removeID(target string) func([]string) ([]string, bool) {
	return func(ids []string) ([]string, bool) {
		out := ids[:0:0]
		for _, existing := range ids {
			if existing != target {
				out = append(out, existing)
			}
		}
		return out, len(out) != len(ids)
	}
}

// writeEntity marshals, persists, and re-indexes one entity.
func (s *Service) writeEntity(collection, id string, entity models.Entity) ([]byte, error) {
	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("workspace: marshal entity: %w", err)
	}
	if err := s.store.Write(collection, id, data); err != nil {
		return nil, err
	}
	if err := index.IndexEntity(s.db, collection, id, data); err != nil {
		s.logger.Warn("index update failed",
			slog.String("entity", collection+"/"+id),
			slog.String("error", err.Error()))
	}
	return data, nil
}

func (s *Service) loadCollection(collection string) ([]models.Entity, error) {
	metas, err := s.store.List(collection)
	if err != nil {
		return nil, err
	}
	var out []models.Entity
	for _, m := range metas {
		data, err := s.store.Read(m.Collection, m.ID)
		if err != nil {
			continue
		}
		entity, err := decodeEntity(data)
		if err != nil {
			continue
		}
		out = append(out, entity)
	}
	return out, nil
}

func decodeEntity(data []byte) (models.Entity, error) {
	var entity models.Entity
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("workspace: decode entity: %w", err)
	}
	return entity, nil
}

// NewID returns a random 16-hex-char entity identifier.
func NewID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
