package relation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vheim/othala/internal/models"
)

// memMutator applies mutations to an in-memory reverse-link store with
// idempotent set semantics, mirroring the contract real backends must honor.
type memMutator struct {
	mu      sync.Mutex
	links   map[string]map[string]struct{} // "collection/field/relatedID" -> set of source ids
	adds    int
	removes int
	failOn  string // related id whose mutation fails
}

func newMemMutator() *memMutator {
	return &memMutator{links: make(map[string]map[string]struct{})}
}

func (m *memMutator) key(ref FieldRef, relatedID string) string {
	return ref.TargetCollection + "/" + ref.TargetField + "/" + relatedID
}

func (m *memMutator) AddReverseLink(_ context.Context, ref FieldRef, relatedID, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if relatedID == m.failOn {
		return errors.New("write failed")
	}
	m.adds++
	k := m.key(ref, relatedID)
	if m.links[k] == nil {
		m.links[k] = make(map[string]struct{})
	}
	m.links[k][sourceID] = struct{}{}
	return nil
}

func (m *memMutator) RemoveReverseLink(_ context.Context, ref FieldRef, relatedID, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if relatedID == m.failOn {
		return errors.New("write failed")
	}
	m.removes++
	delete(m.links[m.key(ref, relatedID)], sourceID)
	return nil
}

func (m *memMutator) CleanupInboundReference(_ context.Context, _ CleanupSpec, deletedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removes++
	for _, set := range m.links {
		delete(set, deletedID)
	}
	return nil
}

func (m *memMutator) has(ref FieldRef, relatedID, sourceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.links[m.key(ref, relatedID)][sourceID]
	return ok
}

func TestApplyBidirectional(t *testing.T) {
	m := newMemMutator()
	prev := map[string]any{"id": "t1", "projectIds": []any{"p1"}}
	next := map[string]any{"id": "t1", "projectIds": []any{"p2"}}

	if err := ApplyBidirectionalRelationMutations(context.Background(), models.CollectionTasks, next, prev, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ref, _ := Reverse(models.CollectionTasks, "projectIds")
	if !m.has(ref, "p2", "t1") {
		t.Error("expected reverse link p2 -> t1")
	}
	if m.has(ref, "p1", "t1") {
		t.Error("expected reverse link p1 -> t1 removed")
	}
}

func TestApplyBidirectional_Idempotent(t *testing.T) {
	m := newMemMutator()
	next := map[string]any{"id": "t1", "projectIds": []any{"p1", "p2"}}

	for range 2 {
		if err := ApplyBidirectionalRelationMutations(context.Background(), models.CollectionTasks, next, nil, m); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ref, _ := Reverse(models.CollectionTasks, "projectIds")
	for _, p := range []string{"p1", "p2"} {
		if !m.has(ref, p, "t1") {
			t.Errorf("expected reverse link %s -> t1", p)
		}
	}
	// Second application re-applied the same additions without changing state.
	if m.adds != 4 {
		t.Errorf("adds = %d, want 4", m.adds)
	}
}

func TestApplyBidirectional_Fails(t *testing.T) {
	m := newMemMutator()
	m.failOn = "p2"
	next := map[string]any{"id": "t1", "projectIds": []any{"p1", "p2"}}

	err := ApplyBidirectionalRelationMutations(context.Background(), models.CollectionTasks, next, nil, m)
	if err == nil {
		t.Fatal("expected aggregate error when one mutation fails")
	}
}

// seqMutator verifies the additions group settles before removals start.
type seqMutator struct {
	mu           sync.Mutex
	addsDone     int
	removeBefore bool
	totalAdds    int
}

func (s *seqMutator) AddReverseLink(context.Context, FieldRef, string, string) error {
	s.mu.Lock()
	s.addsDone++
	s.mu.Unlock()
	return nil
}

func (s *seqMutator) RemoveReverseLink(context.Context, FieldRef, string, string) error {
	s.mu.Lock()
	if s.addsDone != s.totalAdds {
		s.removeBefore = true
	}
	s.mu.Unlock()
	return nil
}

func (s *seqMutator) CleanupInboundReference(context.Context, CleanupSpec, string) error {
	return nil
}

func TestApplyBidirectional_AdditionsBeforeRemovals(t *testing.T) {
	s := &seqMutator{totalAdds: 3}
	prev := map[string]any{"id": "t1", "projectIds": []any{"p1", "p2"}}
	next := map[string]any{"id": "t1", "projectIds": []any{"p3", "p4", "p5"}}

	if err := ApplyBidirectionalRelationMutations(context.Background(), models.CollectionTasks, next, prev, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.removeBefore {
		t.Error("a removal ran before all additions settled")
	}
}

func TestApplyDetach(t *testing.T) {
	m := newMemMutator()
	ref, _ := Reverse(models.CollectionNotes, "projectIds")
	// Seed an existing reverse link.
	if err := m.AddReverseLink(context.Background(), ref, "p1", "n1"); err != nil {
		t.Fatal(err)
	}

	deleted := map[string]any{"id": "n1", "projectIds": []any{"p1"}}
	if err := ApplyDetachRelationMutations(context.Background(), models.CollectionNotes, deleted, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.has(ref, "p1", "n1") {
		t.Error("expected reverse link severed on detach")
	}
}

func TestApplyInboundCleanupSpecs(t *testing.T) {
	m := newMemMutator()
	if err := ApplyInboundCleanupSpecs(context.Background(), models.CollectionCompanies, "c1", m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := len(PlanInboundCleanupSpecs(models.CollectionCompanies))
	if m.removes != want {
		t.Errorf("cleanup calls = %d, want %d", m.removes, want)
	}
}
