package domain

import (
	"errors"
	"time"
)

// Problem represents the problem aggregate.
type Problem struct {
	ID          ProblemId
	Summary     string
	Description string
	Solution    string
	Status      ProblemStatus
	CreatedBy   ActorId
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Claimed mirrors ClaimedBy != "" and is only ever derived from it.
	ClaimedBy       ActorId
	Claimed         bool
	ClaimedFullname string
	ClaimedDateTime time.Time
	Estimate        int // minutes

	Resolved            bool
	ResolvedBy          ActorId
	ResolveSteps        string
	HasAcceptedSolution bool
	PreviousSolutions   []ResolutionSnapshot

	Approvals       ActorSet
	Subscribers     ActorSet
	FYIProblem      bool
	Dependencies    ProblemIdSet
	InvDependencies ProblemIdSet
}

// ResolutionSnapshot is an archived resolution, appended on reopen.
type ResolutionSnapshot struct {
	ResolveSteps        string    `json:"resolve_steps"`
	ResolvedBy          ActorId   `json:"resolved_by"`
	Resolved            bool      `json:"resolved"`
	HasAcceptedSolution bool      `json:"has_accepted_solution"`
	ClaimedBy           ActorId   `json:"claimed_by"`
	ClaimedFullname     string    `json:"claimed_fullname"`
	ReopenedBy          ActorId   `json:"reopened_by"`
	Reason              string    `json:"reason"`
	ArchivedAt          time.Time `json:"archived_at"`
}

// NewProblem creates an open, unclaimed problem owned by creator.
func NewProblem(id ProblemId, creator ActorId, summary string, now time.Time) *Problem {
	return &Problem{
		ID:        id,
		Summary:   summary,
		Status:    StatusOpen,
		CreatedBy: creator,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsClaimed returns true if an actor currently holds the claim.
func (p *Problem) IsClaimed() bool {
	return !p.ClaimedBy.IsEmpty()
}

// HasResolution returns true if there is resolution data worth archiving.
func (p *Problem) HasResolution() bool {
	return p.ResolveSteps != "" || !p.ResolvedBy.IsEmpty() || p.Resolved
}

// ArchiveResolution snapshots the current resolution for previousSolutions.
func (p *Problem) ArchiveResolution(req ArchiveRequest) ResolutionSnapshot {
	return ResolutionSnapshot{
		ResolveSteps:        p.ResolveSteps,
		ResolvedBy:          p.ResolvedBy,
		Resolved:            p.Resolved,
		HasAcceptedSolution: p.HasAcceptedSolution,
		ClaimedBy:           p.ClaimedBy,
		ClaimedFullname:     p.ClaimedFullname,
		ReopenedBy:          req.ReopenedBy,
		Reason:              req.Reason,
		ArchivedAt:          req.At,
	}
}

// CheckInvariants validates the record-level invariants.
func (p *Problem) CheckInvariants() error {
	if p.Claimed != p.IsClaimed() {
		return errors.New("claimed flag does not match claimedBy")
	}
	if !p.Status.IsValid() {
		return errors.New("invalid status " + string(p.Status))
	}
	seen := make(map[ActorId]struct{}, len(p.Approvals))
	for _, a := range p.Approvals {
		if _, dup := seen[a]; dup {
			return errors.New("duplicate approval by " + a.String())
		}
		seen[a] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy of the problem.
func (p *Problem) Clone() *Problem {
	c := *p
	c.PreviousSolutions = append([]ResolutionSnapshot(nil), p.PreviousSolutions...)
	c.Approvals = append(ActorSet(nil), p.Approvals...)
	c.Subscribers = append(ActorSet(nil), p.Subscribers...)
	c.Dependencies = append(ProblemIdSet(nil), p.Dependencies...)
	c.InvDependencies = append(ProblemIdSet(nil), p.InvDependencies...)
	return &c
}
