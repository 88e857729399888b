package application

import (
	"strings"
	"time"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05.999999-07:00"

// ClaimProblemRequest represents a request to claim a problem.
type ClaimProblemRequest struct {
	ID       string `json:"id"`
	Estimate int    `json:"estimate"`
}

// Validate checks the request shape.
func (r ClaimProblemRequest) Validate() error {
	if err := requireField("id", r.ID); err != nil {
		return err
	}
	if r.Estimate < 0 {
		return domain.NewInvalidArgument("estimate cannot be negative")
	}
	return nil
}

// UnclaimProblemRequest represents a request to release a claim.
type UnclaimProblemRequest struct {
	ID string `json:"id"`
}

// Validate checks the request shape.
func (r UnclaimProblemRequest) Validate() error {
	return requireField("id", r.ID)
}

// MarkAsResolvedRequest represents a claimer submitting a resolution.
type MarkAsResolvedRequest struct {
	ProblemID         string `json:"problemId"`
	ClaimerID         string `json:"claimerId"`
	ResolutionSummary string `json:"resolutionSummary"`
}

// Validate checks the request shape.
func (r MarkAsResolvedRequest) Validate() error {
	if err := requireField("problemId", r.ProblemID); err != nil {
		return err
	}
	if err := requireField("claimerId", r.ClaimerID); err != nil {
		return err
	}
	return requireField("resolutionSummary", r.ResolutionSummary)
}

// MarkAsUnSolvedRequest represents a claimer withdrawing a resolution.
type MarkAsUnSolvedRequest struct {
	ProblemID string `json:"problemId"`
	ClaimerID string `json:"claimerId"`
}

// Validate checks the request shape.
func (r MarkAsUnSolvedRequest) Validate() error {
	if err := requireField("problemId", r.ProblemID); err != nil {
		return err
	}
	return requireField("claimerId", r.ClaimerID)
}

// RemoveClaimerRequest represents the creator stripping the claimer.
type RemoveClaimerRequest struct {
	ProblemID string `json:"problemId"`
}

// Validate checks the request shape.
func (r RemoveClaimerRequest) Validate() error {
	return requireField("problemId", r.ProblemID)
}

// UpdateStatusRequest represents the creator changing status.
type UpdateStatusRequest struct {
	ProblemID string `json:"problemId"`
	Status    string `json:"status"`
}

// Validate checks the request shape.
func (r UpdateStatusRequest) Validate() error {
	if err := requireField("problemId", r.ProblemID); err != nil {
		return err
	}
	if _, err := domain.ParseProblemStatus(r.Status); err != nil {
		return domain.NewInvalidArgument(err.Error())
	}
	return nil
}

// ReopenProblemRequest represents reopening a closed problem.
type ReopenProblemRequest struct {
	ProblemID string `json:"problemId"`
	Reason    string `json:"reason"`
}

// Validate checks the request shape.
func (r ReopenProblemRequest) Validate() error {
	return requireField("problemId", r.ProblemID)
}

// EditProblemRequest represents the creator overwriting the text fields.
type EditProblemRequest struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Solution    string `json:"solution"`
}

// Validate checks the request shape.
func (r EditProblemRequest) Validate() error {
	if err := requireField("id", r.ID); err != nil {
		return err
	}
	return requireField("summary", r.Summary)
}

// DeleteProblemRequest represents the creator removing a problem.
type DeleteProblemRequest struct {
	ID string `json:"id"`
}

// Validate checks the request shape.
func (r DeleteProblemRequest) Validate() error {
	return requireField("id", r.ID)
}

// MembershipRequest is shared by watch, unwatch and approval.
type MembershipRequest struct {
	ID string `json:"_id"`
}

// Validate checks the request shape.
func (r MembershipRequest) Validate() error {
	return requireField("_id", r.ID)
}

// AddProblemRequest represents the creation of a problem.
type AddProblemRequest struct {
	Summary         string   `json:"summary"`
	Description     *string  `json:"description,omitempty"`
	Solution        *string  `json:"solution,omitempty"`
	FYIProblem      bool     `json:"fyiProblem"`
	Dependencies    []string `json:"dependencies"`
	InvDependencies []string `json:"invDependencies"`
}

// Validate checks the request shape.
func (r AddProblemRequest) Validate() error {
	return requireField("summary", r.Summary)
}

// AcceptSolutionRequest represents the creator accepting a resolution.
type AcceptSolutionRequest struct {
	ProblemID string `json:"problemId"`
}

// Validate checks the request shape.
func (r AcceptSolutionRequest) Validate() error {
	return requireField("problemId", r.ProblemID)
}

// GetProblemRequest represents a point lookup.
type GetProblemRequest struct {
	ID string `json:"id"`
}

// Validate checks the request shape.
func (r GetProblemRequest) Validate() error {
	return requireField("id", r.ID)
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.NewInvalidArgument(name + " is required")
	}
	return nil
}

// ProblemDTO is a data transfer object for problem data.
type ProblemDTO struct {
	ID                  string          `json:"id" yaml:"id"`
	Summary             string          `json:"summary" yaml:"summary"`
	Description         string          `json:"description" yaml:"description"`
	Solution            string          `json:"solution" yaml:"solution"`
	Status              string          `json:"status" yaml:"status"`
	CreatedBy           string          `json:"created_by" yaml:"created_by"`
	CreatedAt           string          `json:"created_at" yaml:"created_at"`
	UpdatedAt           string          `json:"updated_at" yaml:"updated_at"`
	ClaimedBy           string          `json:"claimed_by" yaml:"claimed_by"`
	Claimed             bool            `json:"claimed" yaml:"claimed"`
	ClaimedFullname     string          `json:"claimed_fullname" yaml:"claimed_fullname"`
	ClaimedDateTime     string          `json:"claimed_date_time" yaml:"claimed_date_time"`
	Estimate            int             `json:"estimate" yaml:"estimate"`
	Resolved            bool            `json:"resolved" yaml:"resolved"`
	ResolvedBy          string          `json:"resolved_by" yaml:"resolved_by"`
	ResolveSteps        string          `json:"resolve_steps" yaml:"resolve_steps"`
	HasAcceptedSolution bool            `json:"has_accepted_solution" yaml:"has_accepted_solution"`
	PreviousSolutions   []ResolutionDTO `json:"previous_solutions" yaml:"previous_solutions"`
	Approvals           []string        `json:"approvals" yaml:"approvals"`
	Subscribers         []string        `json:"subscribers" yaml:"subscribers"`
	FYIProblem          bool            `json:"fyi_problem" yaml:"fyi_problem"`
	Dependencies        []string        `json:"dependencies" yaml:"dependencies"`
	InvDependencies     []string        `json:"inv_dependencies" yaml:"inv_dependencies"`
}

// ResolutionDTO is an archived resolution.
type ResolutionDTO struct {
	ResolveSteps        string `json:"resolve_steps" yaml:"resolve_steps"`
	ResolvedBy          string `json:"resolved_by" yaml:"resolved_by"`
	Resolved            bool   `json:"resolved" yaml:"resolved"`
	HasAcceptedSolution bool   `json:"has_accepted_solution" yaml:"has_accepted_solution"`
	ClaimedBy           string `json:"claimed_by" yaml:"claimed_by"`
	ClaimedFullname     string `json:"claimed_fullname" yaml:"claimed_fullname"`
	ReopenedBy          string `json:"reopened_by" yaml:"reopened_by"`
	Reason              string `json:"reason" yaml:"reason"`
	ArchivedAt          string `json:"archived_at" yaml:"archived_at"`
}

// ErrorDTO is a data transfer object for errors.
type ErrorDTO struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// RPCResult represents the outcome of one logical RPC call.
type RPCResult struct {
	Status    string      `json:"status" yaml:"status"`
	Method    string      `json:"method" yaml:"method"`
	Actor     string      `json:"actor" yaml:"actor"`
	ProblemID string      `json:"problem_id,omitempty" yaml:"problem_id,omitempty"`
	Member    *bool       `json:"member,omitempty" yaml:"member,omitempty"`
	Problem   *ProblemDTO `json:"problem,omitempty" yaml:"problem,omitempty"`
	Error     *ErrorDTO   `json:"error,omitempty" yaml:"error,omitempty"`
}

// ProblemToDTO converts a domain Problem to a ProblemDTO.
func ProblemToDTO(p *domain.Problem) *ProblemDTO {
	if p == nil {
		return nil
	}

	previous := make([]ResolutionDTO, len(p.PreviousSolutions))
	for i, s := range p.PreviousSolutions {
		previous[i] = ResolutionDTO{
			ResolveSteps:        s.ResolveSteps,
			ResolvedBy:          s.ResolvedBy.String(),
			Resolved:            s.Resolved,
			HasAcceptedSolution: s.HasAcceptedSolution,
			ClaimedBy:           s.ClaimedBy.String(),
			ClaimedFullname:     s.ClaimedFullname,
			ReopenedBy:          s.ReopenedBy.String(),
			Reason:              s.Reason,
			ArchivedAt:          formatTime(s.ArchivedAt),
		}
	}

	return &ProblemDTO{
		ID:                  p.ID.String(),
		Summary:             p.Summary,
		Description:         p.Description,
		Solution:            p.Solution,
		Status:              string(p.Status),
		CreatedBy:           p.CreatedBy.String(),
		CreatedAt:           formatTime(p.CreatedAt),
		UpdatedAt:           formatTime(p.UpdatedAt),
		ClaimedBy:           p.ClaimedBy.String(),
		Claimed:             p.Claimed,
		ClaimedFullname:     p.ClaimedFullname,
		ClaimedDateTime:     formatTime(p.ClaimedDateTime),
		Estimate:            p.Estimate,
		Resolved:            p.Resolved,
		ResolvedBy:          p.ResolvedBy.String(),
		ResolveSteps:        p.ResolveSteps,
		HasAcceptedSolution: p.HasAcceptedSolution,
		PreviousSolutions:   previous,
		Approvals:           nonNil(p.Approvals.Strings()),
		Subscribers:         nonNil(p.Subscribers.Strings()),
		FYIProblem:          p.FYIProblem,
		Dependencies:        nonNil(p.Dependencies.Strings()),
		InvDependencies:     nonNil(p.InvDependencies.Strings()),
	}
}

// formatTime renders the zero time as an empty string.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
