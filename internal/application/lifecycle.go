package application

import (
	"context"
	"errors"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

// LifecycleEngine runs the named problem transitions. Each transition reads
// the record, evaluates its guard, and submits one conditional update pinned
// to the fields the guard looked at. A lost race reports the guard's denial.
type LifecycleEngine struct {
	store       ProblemStorePort
	users       UserDirectoryPort
	broadcaster *Broadcaster
	ids         IdGeneratorPort
	clock       ClockPort
	logger      LoggerPort
}

// NewLifecycleEngine creates a new LifecycleEngine.
func NewLifecycleEngine(
	store ProblemStorePort,
	users UserDirectoryPort,
	broadcaster *Broadcaster,
	ids IdGeneratorPort,
	clock ClockPort,
	logger LoggerPort,
) *LifecycleEngine {
	return &LifecycleEngine{
		store:       store,
		users:       users,
		broadcaster: broadcaster,
		ids:         ids,
		clock:       clock,
		logger:      logger,
	}
}

type transition struct {
	name   string
	denial domain.ErrorCode
	guard  func(p *domain.Problem) error
	pre   domain.Precondition
	delta func(p *domain.Problem) domain.Delta
}

func (e *LifecycleEngine) apply(
	ctx context.Context,
	actor domain.ActorId,
	id domain.ProblemId,
	t transition,
) (*domain.Problem, error) {
	current, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := t.guard(current); err != nil {
		e.denied(t.name, actor, id, err, "guard")
		return nil, err
	}

	updated, applied, err := e.store.ConditionalUpdate(ctx, id, t.pre, t.delta(current))
	if err != nil {
		e.logger.Error("transition_failed", map[string]interface{}{
			"transition": t.name,
			"actor":      actor.String(),
			"problem_id": id.String(),
			"error":      err.Error(),
		})
		return nil, err
	}

	if !applied {
		// Lost race: same denial as the guard.
		denial := domain.NewDenial(t.denial, id)
		e.denied(t.name, actor, id, denial, "precondition")
		return nil, denial
	}

	e.logger.Info("transition_applied", map[string]interface{}{
		"transition": t.name,
		"actor":      actor.String(),
		"problem_id": id.String(),
		"status":     string(updated.Status),
	})
	return updated, nil
}

func (e *LifecycleEngine) denied(name string, actor domain.ActorId, id domain.ProblemId, err error, stage string) {
	e.logger.Warn("transition_denied", map[string]interface{}{
		"transition": name,
		"actor":      actor.String(),
		"problem_id": id.String(),
		"stage":      stage,
		"error":      err.Error(),
	})
}

// ClaimProblem reserves an unclaimed problem for actor.
func (e *LifecycleEngine) ClaimProblem(ctx context.Context, actor domain.ActorId, req ClaimProblemRequest) (domain.ProblemId, error) {
	if err := validate(actor, req); err != nil {
		return "", err
	}
	id := domain.ProblemId(req.ID)
	fullname := e.fullName(ctx, actor)
	now := e.clock.Now()

	_, err := e.apply(ctx, actor, id, transition{
		name:   "claimProblem",
		denial: domain.ErrCodeAlreadyClaimed,
		guard:  domain.CanClaim,
		pre:    domain.WhenUnclaimed(),
		delta: func(*domain.Problem) domain.Delta {
			return domain.Delta{
				ClaimedBy:       domain.Ptr(actor),
				ClaimedFullname: domain.Ptr(fullname),
				ClaimedDateTime: domain.Ptr(now.Time()),
				Estimate:        domain.Ptr(req.Estimate),
			}
		},
	})
	if err != nil {
		return "", err
	}

	event := domain.ProblemClaimed{ProblemID: id, Claimer: actor, Estimate: req.Estimate, ClaimedAt: now}
	e.logger.Debug("problem_claimed", map[string]interface{}{
		"problem_id": event.ProblemID.String(),
		"claimer":    event.Claimer.String(),
		"estimate":   event.Estimate,
		"claimed_at": event.ClaimedAt.String(),
	})
	return id, nil
}

// UnclaimProblem releases actor's own claim.
func (e *LifecycleEngine) UnclaimProblem(ctx context.Context, actor domain.ActorId, req UnclaimProblemRequest) (domain.ProblemId, error) {
	if err := validate(actor, req); err != nil {
		return "", err
	}
	id := domain.ProblemId(req.ID)

	_, err := e.apply(ctx, actor, id, transition{
		name:   "unclaimProblem",
		denial: domain.ErrCodeNotClaimedByYou,
		guard:  func(p *domain.Problem) error { return domain.CanUnclaim(p, actor) },
		pre:    domain.WhenClaimedBy(actor),
		delta:  func(*domain.Problem) domain.Delta { return domain.ReleaseClaim() },
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// MarkAsResolved moves the claimer's problem to review with a resolution.
func (e *LifecycleEngine) MarkAsResolved(ctx context.Context, actor domain.ActorId, req MarkAsResolvedRequest) (domain.ProblemId, error) {
	if err := validate(actor, req); err != nil {
		return "", err
	}
	id := domain.ProblemId(req.ProblemID)
	claimer := domain.ActorId(req.ClaimerID)

	_, err := e.apply(ctx, actor, id, transition{
		name:   "markAsResolved",
		denial: domain.ErrCodeNotAllowedToResolve,
		guard: func(p *domain.Problem) error {
			if claimer != actor {
				return domain.NewDenial(domain.ErrCodeNotAllowedToResolve, p.ID)
			}
			return domain.CanResolve(p, actor)
		},
		pre:    domain.WhenClaimedBy(actor),
		delta: func(*domain.Problem) domain.Delta {
			return domain.Delta{
				Status:       domain.Ptr(domain.StatusReadyForReview),
				ResolveSteps: domain.Ptr(req.ResolutionSummary),
			}
		},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// MarkAsUnSolved moves the claimer's problem back to in-progress.
func (e *LifecycleEngine) MarkAsUnSolved(ctx context.Context, actor domain.ActorId, req MarkAsUnSolvedRequest) (domain.ProblemId, error) {
	if err := validate(actor, req); err != nil {
		return "", err
	}
	id := domain.ProblemId(req.ProblemID)
	claimer := domain.ActorId(req.ClaimerID)

	_, err := e.apply(ctx, actor, id, transition{
		name:   "markAsUnSolved",
		denial: domain.ErrCodeNotAllowedToUnsolve,
		guard: func(p *domain.Problem) error {
			if claimer != actor {
				return domain.NewDenial(domain.ErrCodeNotAllowedToUnsolve, p.ID)
			}
			return domain.CanUnresolve(p, actor)
		},
		pre:    domain.WhenClaimedBy(actor),
		delta: func(*domain.Problem) domain.Delta {
			return domain.Delta{Status: domain.Ptr(domain.StatusInProgress)}
		},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// RemoveClaimer lets the creator strip whoever holds the claim.
func (e *LifecycleEngine) RemoveClaimer(ctx context.Context, actor domain.ActorId, req RemoveClaimerRequest) (domain.ProblemId, error) {
	if err := validate(actor, req); err != nil {
		return "", err
	}
	id := domain.ProblemId(req.ProblemID)

	_, err := e.apply(ctx, actor, id, transition{
		name:   "removeClaimer",
		denial: domain.ErrCodeNotAllowedToRemoveClaimer,
		guard:  func(p *domain.Problem) error { return domain.CanRemoveClaimer(p, actor) },
		pre:    domain.WhenCreatedBy(actor),
		delta:  func(*domain.Problem) domain.Delta { return domain.ReleaseClaim() },
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateStatus lets the creator set the status.
func (e *LifecycleEngine) UpdateStatus(ctx context.Context, actor domain.ActorId, req UpdateStatusRequest) (domain.ProblemId, error) {
	if err := validate(actor, req); err != nil {
		return "", err
	}
	id := domain.ProblemId(req.ProblemID)
	status, _ := domain.ParseProblemStatus(req.Status)

	_, err := e.apply(ctx, actor, id, transition{
		name:   "updateStatus",
		denial: domain.ErrCodeNotAllowedToOpenOrClose,
		guard:  func(p *domain.Problem) error { return domain.CanOpenClose(p, actor) },
		pre:    domain.WhenCreatedBy(actor),
		delta:  func(*domain.Problem) domain.Delta { return domain.Delta{Status: domain.Ptr(status)} },
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ReopenProblem reopens a closed problem, archiving its resolution and
// handing ownership to actor.
func (e *LifecycleEngine) ReopenProblem(ctx context.Context, actor domain.ActorId, req ReopenProblemRequest) (domain.ProblemId, error) {
	if err := validate(actor, req); err != nil {
		return "", err
	}
	id := domain.ProblemId(req.ProblemID)
	now := e.clock.Now()

	updated, err := e.apply(ctx, actor, id, transition{
		name:   "reopenProblem",
		denial: domain.ErrCodeNotAllowedToReopen,
		guard:  domain.CanReopen,
		pre:    domain.WhenStatus(domain.StatusClosed),
		delta: func(*domain.Problem) domain.Delta {
			d := domain.ReleaseClaim()
			d.Archive = &domain.ArchiveRequest{ReopenedBy: actor, Reason: req.Reason, At: now.Time()}
			d.Resolved = domain.Ptr(false)
			d.HasAcceptedSolution = domain.Ptr(false)
			d.ResolvedBy = domain.Ptr(domain.ActorId(""))
			d.ResolveSteps = domain.Ptr("")
			d.CreatedBy = domain.Ptr(actor)
			d.Status = domain.Ptr(domain.StatusOpen)
			return d
		},
	})
	if err != nil {
		return "", err
	}

	event := domain.ProblemReopened{
		ProblemID:  id,
		ReopenedBy: actor,
		Archived:   len(updated.PreviousSolutions) > 0,
		ReopenedAt: now,
	}
	e.logger.Debug("problem_reopened", map[string]interface{}{
		"problem_id":  event.ProblemID.String(),
		"reopened_by": event.ReopenedBy.String(),
		"archived":    event.Archived,
	})
	return id, nil
}

// EditProblem lets the creator overwrite summary, description and solution.
func (e *LifecycleEngine) EditProblem(ctx context.Context, actor domain.ActorId, req EditProblemRequest) (domain.ProblemId, error) {
	if err := validate(actor, req); err != nil {
		return "", err
	}
	id := domain.ProblemId(req.ID)

	_, err := e.apply(ctx, actor, id, transition{
		name:   "editProblem",
		denial: domain.ErrCodeNotAllowedToEdit,
		guard:  func(p *domain.Problem) error { return domain.CanEdit(p, actor) },
		pre:    domain.WhenCreatedBy(actor),
		delta: func(*domain.Problem) domain.Delta {
			return domain.Delta{
				Summary:     domain.Ptr(req.Summary),
				Description: domain.Ptr(req.Description),
				Solution:    domain.Ptr(req.Solution),
			}
		},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// AcceptSolution lets the creator accept the claimer's resolution and close.
func (e *LifecycleEngine) AcceptSolution(ctx context.Context, actor domain.ActorId, req AcceptSolutionRequest) (domain.ProblemId, error) {
	if err := validate(actor, req); err != nil {
		return "", err
	}
	id := domain.ProblemId(req.ProblemID)

	current, err := e.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	claimer := current.ClaimedBy

	_, err = e.apply(ctx, actor, id, transition{
		name:   "acceptSolution",
		denial: domain.ErrCodeNotAllowedToAcceptSolution,
		guard:  func(p *domain.Problem) error { return domain.CanAcceptSolution(p, actor) },
		pre:    domain.WhenCreatedBy(actor).
			And(domain.WhenStatus(domain.StatusReadyForReview)).
			And(domain.WhenClaimedBy(claimer)),
		delta: func(*domain.Problem) domain.Delta {
			return domain.Delta{
				Resolved:            domain.Ptr(true),
				ResolvedBy:          domain.Ptr(claimer),
				HasAcceptedSolution: domain.Ptr(true),
				Status:              domain.Ptr(domain.StatusClosed),
			}
		},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteProblem lets the creator remove a problem entirely.
func (e *LifecycleEngine) DeleteProblem(ctx context.Context, actor domain.ActorId, req DeleteProblemRequest) (domain.ProblemId, error) {
	if err := validate(actor, req); err != nil {
		return "", err
	}
	id := domain.ProblemId(req.ID)

	current, err := e.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if err := domain.CanDelete(current, actor); err != nil {
		e.denied("deleteProblem", actor, id, err, "guard")
		return "", err
	}

	deleted, err := e.store.ConditionalDelete(ctx, id, domain.WhenCreatedBy(actor))
	if err != nil {
		return "", err
	}
	if !deleted {
		denial := domain.NewDenial(domain.ErrCodeNotAllowedToDelete, id)
		e.denied("deleteProblem", actor, id, denial, "precondition")
		return "", denial
	}

	e.logger.Info("transition_applied", map[string]interface{}{
		"transition": "deleteProblem",
		"actor":      actor.String(),
		"problem_id": id.String(),
	})
	return id, nil
}

// AddProblem inserts a new open problem owned by actor. Broadcast problems
// are fanned out to every user after the insert; that never affects the result.
func (e *LifecycleEngine) AddProblem(ctx context.Context, actor domain.ActorId, req AddProblemRequest) (domain.ProblemId, error) {
	if err := validate(actor, req); err != nil {
		return "", err
	}

	now := e.clock.Now()
	p := domain.NewProblem(e.ids.NewProblemId(), actor, req.Summary, now.Time())
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Solution != nil {
		p.Solution = *req.Solution
	}
	p.FYIProblem = req.FYIProblem
	p.Dependencies = domain.NewProblemIdSet(req.Dependencies...)
	p.InvDependencies = domain.NewProblemIdSet(req.InvDependencies...)

	if err := e.store.Insert(ctx, p); err != nil {
		e.logger.Error("problem_insert_failed", map[string]interface{}{
			"actor": actor.String(),
			"error": err.Error(),
		})
		return "", err
	}

	event := domain.ProblemCreated{ProblemID: p.ID, CreatedBy: actor, FYI: p.FYIProblem, CreatedAt: now}
	e.logger.Info("problem_created", map[string]interface{}{
		"actor":      actor.String(),
		"problem_id": p.ID.String(),
		"fyi":        event.FYI,
	})

	if event.FYI && e.broadcaster != nil {
		e.broadcaster.Submit(event)
	}
	return p.ID, nil
}

// GetProblem returns the current record.
func (e *LifecycleEngine) GetProblem(ctx context.Context, req GetProblemRequest) (*domain.Problem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return e.store.Get(ctx, domain.ProblemId(req.ID))
}

func (e *LifecycleEngine) fullName(ctx context.Context, actor domain.ActorId) string {
	if e.users == nil {
		return actor.String()
	}
	name, err := e.users.FullName(ctx, actor)
	if err != nil || name == "" {
		fields := map[string]interface{}{"actor": actor.String()}
		if err != nil {
			fields["error"] = err.Error()
		}
		e.logger.Warn("fullname_lookup_failed", fields)
		return actor.String()
	}
	return name
}

type validator interface {
	Validate() error
}

// validate rejects malformed input before any guard runs.
func validate(actor domain.ActorId, req validator) error {
	if _, err := domain.NewActorId(actor.String()); err != nil {
		return domain.NewInvalidArgument(err.Error())
	}
	if err := req.Validate(); err != nil {
		var problemErr *domain.ProblemError
		if errors.As(err, &problemErr) {
			return problemErr
		}
		return domain.NewInvalidArgument(err.Error())
	}
	return nil
}
