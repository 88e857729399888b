package domain

// Guards decide whether a transition is permitted against the current record.
// They return nil to allow, or the denial for that transition.

// CanClaim allows claiming an unclaimed problem.
func CanClaim(p *Problem) error {
	if p.Claimed {
		return NewDenial(ErrCodeAlreadyClaimed, p.ID)
	}
	return nil
}

// CanUnclaim allows the current claimer to release the claim.
func CanUnclaim(p *Problem, actor ActorId) error {
	if !isClaimer(p, actor) {
		return NewDenial(ErrCodeNotClaimedByYou, p.ID)
	}
	return nil
}

// CanResolve allows the current claimer to submit a resolution.
func CanResolve(p *Problem, actor ActorId) error {
	if !isClaimer(p, actor) {
		return NewDenial(ErrCodeNotAllowedToResolve, p.ID)
	}
	return nil
}

// CanUnresolve allows the current claimer to withdraw a resolution.
func CanUnresolve(p *Problem, actor ActorId) error {
	if !isClaimer(p, actor) {
		return NewDenial(ErrCodeNotAllowedToUnsolve, p.ID)
	}
	return nil
}

// CanRemoveClaimer allows the creator to strip the claimer.
func CanRemoveClaimer(p *Problem, actor ActorId) error {
	if p.CreatedBy != actor {
		return NewDenial(ErrCodeNotAllowedToRemoveClaimer, p.ID)
	}
	return nil
}

// CanOpenClose allows the creator to change status.
func CanOpenClose(p *Problem, actor ActorId) error {
	if p.CreatedBy != actor {
		return NewDenial(ErrCodeNotAllowedToOpenOrClose, p.ID)
	}
	return nil
}

// CanEdit allows the creator to overwrite the text fields.
func CanEdit(p *Problem, actor ActorId) error {
	if !isCreator(p, actor) {
		return NewDenial(ErrCodeNotAllowedToEdit, p.ID)
	}
	return nil
}

// CanDelete allows the creator to remove the problem.
func CanDelete(p *Problem, actor ActorId) error {
	if !isCreator(p, actor) {
		return NewDenial(ErrCodeNotAllowedToDelete, p.ID)
	}
	return nil
}

// CanReopen allows anyone to reopen a closed problem.
func CanReopen(p *Problem) error {
	if p.Status != StatusClosed {
		return NewDenial(ErrCodeNotAllowedToReopen, p.ID)
	}
	return nil
}

// CanAcceptSolution allows the creator to accept a resolution under review.
func CanAcceptSolution(p *Problem, actor ActorId) error {
	if !isCreator(p, actor) || p.Status != StatusReadyForReview || !p.IsClaimed() {
		return NewDenial(ErrCodeNotAllowedToAcceptSolution, p.ID)
	}
	return nil
}

// isClaimer never matches an empty actor against an empty claimedBy.
func isClaimer(p *Problem, actor ActorId) bool {
	return !actor.IsEmpty() && p.ClaimedBy == actor
}

func isCreator(p *Problem, actor ActorId) bool {
	return !p.CreatedBy.IsEmpty() && p.CreatedBy == actor
}
