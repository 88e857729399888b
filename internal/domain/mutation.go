package domain

import "time"

// Precondition pins the fields a guard depended on. Nil fields are
// unconstrained; all set fields must hold for a conditional update to apply.
type Precondition struct {
	Claimed   *bool
	ClaimedBy *ActorId
	CreatedBy *ActorId
	Status    *ProblemStatus
}

// WhenUnclaimed holds while nobody holds the claim.
func WhenUnclaimed() Precondition {
	return Precondition{Claimed: Ptr(false)}
}

// WhenClaimedBy holds while actor holds the claim.
func WhenClaimedBy(actor ActorId) Precondition {
	return Precondition{ClaimedBy: Ptr(actor)}
}

// WhenCreatedBy holds while actor owns the problem.
func WhenCreatedBy(actor ActorId) Precondition {
	return Precondition{CreatedBy: Ptr(actor)}
}

// WhenStatus holds while the problem is in status.
func WhenStatus(status ProblemStatus) Precondition {
	return Precondition{Status: Ptr(status)}
}

// And merges two preconditions; fields set in other win.
func (c Precondition) And(other Precondition) Precondition {
	if other.Claimed != nil {
		c.Claimed = other.Claimed
	}
	if other.ClaimedBy != nil {
		c.ClaimedBy = other.ClaimedBy
	}
	if other.CreatedBy != nil {
		c.CreatedBy = other.CreatedBy
	}
	if other.Status != nil {
		c.Status = other.Status
	}
	return c
}

// Holds evaluates the precondition against a record.
func (c Precondition) Holds(p *Problem) bool {
	if c.Claimed != nil && p.Claimed != *c.Claimed {
		return false
	}
	if c.ClaimedBy != nil && p.ClaimedBy != *c.ClaimedBy {
		return false
	}
	if c.CreatedBy != nil && p.CreatedBy != *c.CreatedBy {
		return false
	}
	if c.Status != nil && p.Status != *c.Status {
		return false
	}
	return true
}

// ArchiveRequest asks the store to append the stored resolution to
// previousSolutions before the rest of the delta is applied.
type ArchiveRequest struct {
	ReopenedBy ActorId
	Reason     string
	At         time.Time
}

// Delta is the set of field writes of one transition. There is no Claimed
// field: stores derive it from ClaimedBy.
type Delta struct {
	Summary             *string
	Description         *string
	Solution            *string
	Status              *ProblemStatus
	CreatedBy           *ActorId
	ClaimedBy           *ActorId
	ClaimedFullname     *string
	ClaimedDateTime     *time.Time
	Estimate            *int
	Resolved            *bool
	ResolvedBy          *ActorId
	ResolveSteps        *string
	HasAcceptedSolution *bool
	Archive             *ArchiveRequest
}

// ApplyTo mutates p in place. UpdatedAt is set to now.
func (d Delta) ApplyTo(p *Problem, now time.Time) {
	if d.Archive != nil && p.HasResolution() {
		p.PreviousSolutions = append(p.PreviousSolutions, p.ArchiveResolution(*d.Archive))
	}
	if d.Summary != nil {
		p.Summary = *d.Summary
	}
	if d.Description != nil {
		p.Description = *d.Description
	}
	if d.Solution != nil {
		p.Solution = *d.Solution
	}
	if d.Status != nil {
		p.Status = *d.Status
	}
	if d.CreatedBy != nil {
		p.CreatedBy = *d.CreatedBy
	}
	if d.ClaimedBy != nil {
		p.ClaimedBy = *d.ClaimedBy
		p.Claimed = !d.ClaimedBy.IsEmpty()
	}
	if d.ClaimedFullname != nil {
		p.ClaimedFullname = *d.ClaimedFullname
	}
	if d.ClaimedDateTime != nil {
		p.ClaimedDateTime = *d.ClaimedDateTime
	}
	if d.Estimate != nil {
		p.Estimate = *d.Estimate
	}
	if d.Resolved != nil {
		p.Resolved = *d.Resolved
	}
	if d.ResolvedBy != nil {
		p.ResolvedBy = *d.ResolvedBy
	}
	if d.ResolveSteps != nil {
		p.ResolveSteps = *d.ResolveSteps
	}
	if d.HasAcceptedSolution != nil {
		p.HasAcceptedSolution = *d.HasAcceptedSolution
	}
	p.UpdatedAt = now
}

// ReleaseClaim clears every claim field.
func ReleaseClaim() Delta {
	return Delta{
		ClaimedBy:       Ptr(ActorId("")),
		ClaimedFullname: Ptr(""),
		ClaimedDateTime: Ptr(time.Time{}),
	}
}

// MemberSet names one of the per-problem membership sets.
type MemberSet string

const (
	MemberSetApprovals   MemberSet = "approvals"
	MemberSetSubscribers MemberSet = "subscribers"
)

// IsValid returns true for known membership sets.
func (m MemberSet) IsValid() bool {
	return m == MemberSetApprovals || m == MemberSetSubscribers
}

// Members returns the named set of p.
func (p *Problem) Members(set MemberSet) ActorSet {
	if set == MemberSetSubscribers {
		return p.Subscribers
	}
	return p.Approvals
}

// SetMembers replaces the named set of p.
func (p *Problem) SetMembers(set MemberSet, members ActorSet) {
	if set == MemberSetSubscribers {
		p.Subscribers = members
		return
	}
	p.Approvals = members
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
