package application

import (
	"context"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

// SubscriptionRegistry tracks who watches a problem. Watch and Unwatch are
// idempotent.
type SubscriptionRegistry struct {
	store  ProblemStorePort
	logger LoggerPort
}

// NewSubscriptionRegistry creates a new SubscriptionRegistry.
func NewSubscriptionRegistry(store ProblemStorePort, logger LoggerPort) *SubscriptionRegistry {
	return &SubscriptionRegistry{store: store, logger: logger}
}

// Watch adds actor to the subscribers.
func (r *SubscriptionRegistry) Watch(ctx context.Context, actor domain.ActorId, req MembershipRequest) error {
	if err := validate(actor, req); err != nil {
		return err
	}
	id := domain.ProblemId(req.ID)

	added, err := r.store.AddMember(ctx, id, domain.MemberSetSubscribers, actor)
	if err != nil {
		return err
	}

	r.logger.Debug("problem_watched", map[string]interface{}{
		"actor":      actor.String(),
		"problem_id": id.String(),
		"changed":    added,
	})
	return nil
}

// Unwatch removes actor from the subscribers.
func (r *SubscriptionRegistry) Unwatch(ctx context.Context, actor domain.ActorId, req MembershipRequest) error {
	if err := validate(actor, req); err != nil {
		return err
	}
	id := domain.ProblemId(req.ID)

	removed, err := r.store.RemoveMember(ctx, id, domain.MemberSetSubscribers, actor)
	if err != nil {
		return err
	}

	r.logger.Debug("problem_unwatched", map[string]interface{}{
		"actor":      actor.String(),
		"problem_id": id.String(),
		"changed":    removed,
	})
	return nil
}
