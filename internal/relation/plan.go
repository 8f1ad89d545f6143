package relation

import "github.com/vheim/othala/internal/models"

// Mutation is a single directive to add or remove SourceID inside the reverse
// relation field of the entity RelatedID.
type Mutation struct {
	Ref       FieldRef
	RelatedID string
	SourceID  string
}

// Plan is the full set of reverse-link mutations implied by one entity change.
type Plan struct {
	Additions []Mutation
	Removals  []Mutation
}

// UniqueEntityIDs drops empty values and duplicates from a list of entity
// identifiers, keeping the first occurrence of each.
func UniqueEntityIDs(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ReadRelationIDs extracts a list of identifiers from an untyped record.
// Entities come from external storage, so any shape mismatch (nil entity,
// non-object value, field missing or not an array) yields an empty list
// rather than an error.
func ReadRelationIDs(entity any, field string) []string {
	rec, ok := asRecord(entity)
	if !ok {
		return nil
	}
	switch raw := rec[field].(type) {
	case []string:
		return raw
	case []any:
		var out []string
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// PlanBidirectionalRelationMutations diffs the relation fields of nextEntity
// against previousEntity and returns the implied reverse-link additions and
// removals. previousEntity may be nil (creation): every id in nextEntity is
// then an addition. Swapping next and previous swaps additions and removals.
func PlanBidirectionalRelationMutations(collection string, nextEntity, previousEntity any) Plan {
	var plan Plan
	sourceID := entityID(nextEntity)
	if sourceID == "" {
		return plan
	}

	for _, field := range Fields(collection) {
		ref, ok := Reverse(collection, field)
		if !ok {
			continue
		}

		nextIDs := UniqueEntityIDs(ReadRelationIDs(nextEntity, field))
		prevIDs := UniqueEntityIDs(ReadRelationIDs(previousEntity, field))

		prevSet := make(map[string]struct{}, len(prevIDs))
		for _, id := range prevIDs {
			prevSet[id] = struct{}{}
		}
		nextSet := make(map[string]struct{}, len(nextIDs))
		for _, id := range nextIDs {
			nextSet[id] = struct{}{}
		}

		for _, id := range nextIDs {
			if _, existed := prevSet[id]; !existed {
				plan.Additions = append(plan.Additions, Mutation{Ref: ref, RelatedID: id, SourceID: sourceID})
			}
		}
		for _, id := range prevIDs {
			if _, kept := nextSet[id]; !kept {
				plan.Removals = append(plan.Removals, Mutation{Ref: ref, RelatedID: id, SourceID: sourceID})
			}
		}
	}
	return plan
}

// PlanDetachRelationMutations emits a removal for every reverse link the
// entity being deleted still points at, severing its outbound links before
// the entity itself disappears.
func PlanDetachRelationMutations(collection string, deletedEntity any) []Mutation {
	sourceID := entityID(deletedEntity)
	if sourceID == "" {
		return nil
	}

	var out []Mutation
	for _, field := range Fields(collection) {
		ref, ok := Reverse(collection, field)
		if !ok {
			continue
		}
		for _, id := range UniqueEntityIDs(ReadRelationIDs(deletedEntity, field)) {
			out = append(out, Mutation{Ref: ref, RelatedID: id, SourceID: sourceID})
		}
	}
	return out
}

// PlanInboundCleanupSpecs scans the relation config for every (collection,
// field) pair that targets targetCollection. After deleting an entity of that
// collection, stripping its id from each listed pair guarantees no dangling
// inbound reference survives, even when the deleted entity's own relation
// fields were stale.
func PlanInboundCleanupSpecs(targetCollection string) []CleanupSpec {
	var out []CleanupSpec
	for _, collection := range models.Collections {
		for _, field := range Fields(collection) {
			ref, ok := Reverse(collection, field)
			if !ok {
				continue
			}
			if ref.TargetCollection == targetCollection {
				out = append(out, CleanupSpec{SourceCollection: collection, SourceField: field})
			}
		}
	}
	return out
}

func asRecord(entity any) (map[string]any, bool) {
	switch rec := entity.(type) {
	case map[string]any:
		return rec, rec != nil
	case models.Entity:
		return rec, rec != nil
	default:
		return nil, false
	}
}

func entityID(entity any) string {
	rec, ok := asRecord(entity)
	if !ok {
		return ""
	}
	id, _ := rec["id"].(string)
	return id
}
