package index

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vheim/othala/internal/checksum"
	"github.com/vheim/othala/internal/models"
	"github.com/vheim/othala/internal/rag"
	"github.com/vheim/othala/internal/relation"
	"github.com/vheim/othala/internal/storage"
)

// Sync walks the workspace and brings the index up to date:
//   - new/changed entity documents are decoded and upserted
//   - documents removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{})
	for _, collection := range models.Collections {
		metas, err := store.List(collection)
		if err != nil {
			return err
		}
		for _, m := range metas {
			key := m.Collection + "/" + m.ID
			disk[key] = struct{}{}

			if checksums[key] == m.Checksum {
				continue
			}

			data, err := store.Read(m.Collection, m.ID)
			if err != nil {
				logger.Warn("sync: read failed", slog.String("entity", key), slog.String("error", err.Error()))
				continue
			}
			if err := IndexEntity(db, m.Collection, m.ID, data); err != nil {
				logger.Warn("sync: index failed", slog.String("entity", key), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: indexed", slog.String("entity", key))
			}
		}
	}

	// Remove stale entries.
	for key := range checksums {
		if _, ok := disk[key]; !ok {
			collection, id := splitKey(key)
			if err := db.DeleteEntity(collection, id); err != nil {
				logger.Warn("sync: delete failed", slog.String("entity", key), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("entity", key))
			}
		}
	}

	return nil
}

// IndexEntity decodes an entity document and upserts its searchable
// projection plus outgoing relation edges. Malformed JSON indexes as an
// empty entity rather than failing the pass.
func IndexEntity(db *DB, collection, id string, data []byte) error {
	var entity models.Entity
	if err := json.Unmarshal(data, &entity); err != nil {
		entity = models.Entity{"id": id}
	}

	title, content := rag.FlattenEntity(collection, entity)

	updatedAt := entity.Time("updatedAt")
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	row := EntityRow{
		Collection: collection,
		ID:         id,
		Title:      title,
		Checksum:   checksum.Sum(data),
		UpdatedAt:  updatedAt,
	}
	return db.UpsertEntity(row, content, EntityEdges(collection, id, entity))
}

// EntityEdges derives the outgoing relation edges of an entity from its
// tracked relation fields.
func EntityEdges(collection, id string, entity models.Entity) []Edge {
	var out []Edge
	for _, field := range relation.Fields(collection) {
		ref, ok := relation.Reverse(collection, field)
		if !ok {
			continue
		}
		for _, target := range relation.UniqueEntityIDs(relation.ReadRelationIDs(entity, field)) {
			out = append(out, Edge{
				SourceCollection: collection,
				SourceID:         id,
				Field:            field,
				TargetCollection: ref.TargetCollection,
				TargetID:         target,
			})
		}
	}
	return out
}

func splitKey(key string) (collection, id string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
