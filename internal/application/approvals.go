package application

import (
	"context"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

// ApprovalLedger records which actors approve a problem.
type ApprovalLedger struct {
	store  ProblemStorePort
	logger LoggerPort
}

// NewApprovalLedger creates a new ApprovalLedger.
func NewApprovalLedger(store ProblemStorePort, logger LoggerPort) *ApprovalLedger {
	return &ApprovalLedger{store: store, logger: logger}
}

// Toggle flips actor's approval and reports whether actor approves afterwards.
// Two concurrent toggles by the same actor cancel out.
func (l *ApprovalLedger) Toggle(ctx context.Context, actor domain.ActorId, req MembershipRequest) (bool, error) {
	if err := validate(actor, req); err != nil {
		return false, err
	}
	id := domain.ProblemId(req.ID)

	approved, err := l.store.ToggleMember(ctx, id, domain.MemberSetApprovals, actor)
	if err != nil {
		return false, err
	}

	l.logger.Info("approval_toggled", map[string]interface{}{
		"actor":      actor.String(),
		"problem_id": id.String(),
		"approved":   approved,
	})
	return approved, nil
}
