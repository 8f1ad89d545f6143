package relation

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ApplyBidirectionalRelationMutations computes the plan for an entity change
// and executes it through the mutator. All additions run concurrently and are
// awaited together; removals start only after every addition has settled. If
// any call fails the aggregate fails, and mutations already applied by
// sibling calls are not rolled back; the sync is at-least-once, relying on
// mutator idempotence to make retries safe.
func ApplyBidirectionalRelationMutations(ctx context.Context, collection string, nextEntity, previousEntity any, m Mutator) error {
	plan := PlanBidirectionalRelationMutations(collection, nextEntity, previousEntity)

	if err := runGroup(ctx, plan.Additions, m.AddReverseLink); err != nil {
		return err
	}
	return runGroup(ctx, plan.Removals, m.RemoveReverseLink)
}

// ApplyDetachRelationMutations severs every outbound reverse link of an
// entity being deleted, all removals running concurrently.
func ApplyDetachRelationMutations(ctx context.Context, collection string, deletedEntity any, m Mutator) error {
	return runGroup(ctx, PlanDetachRelationMutations(collection, deletedEntity), m.RemoveReverseLink)
}

// ApplyInboundCleanupSpecs purges a deleted entity's id from every
// (collection, field) pair that can reference targetCollection, all specs
// running concurrently.
func ApplyInboundCleanupSpecs(ctx context.Context, targetCollection, deletedID string, m Mutator) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, spec := range PlanInboundCleanupSpecs(targetCollection) {
		g.Go(func() error {
			return m.CleanupInboundReference(gCtx, spec, deletedID)
		})
	}
	return g.Wait()
}

func runGroup(ctx context.Context, muts []Mutation, op func(context.Context, FieldRef, string, string) error) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, mut := range muts {
		g.Go(func() error {
			return op(gCtx, mut.Ref, mut.RelatedID, mut.SourceID)
		})
	}
	return g.Wait()
}
