package application

import (
	"testing"
	"time"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

func TestProblemToDTO_Nil(t *testing.T) {
	dto := ProblemToDTO(nil)
	if dto != nil {
		t.Error("expected nil for nil problem")
	}
}

func TestProblemToDTO(t *testing.T) {
	now := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	p := domain.NewProblem("p1", "alice", "Disk full", now)
	p.ClaimedBy = "bob"
	p.Claimed = true
	p.Approvals = domain.NewActorSet("carol")
	p.PreviousSolutions = []domain.ResolutionSnapshot{
		{ResolveSteps: "rm -rf /tmp", ResolvedBy: "bob", Resolved: true, ReopenedBy: "dave", ArchivedAt: now},
	}

	dto := ProblemToDTO(p)

	if dto.ID != "p1" {
		t.Errorf("expected ID 'p1', got '%s'", dto.ID)
	}
	if dto.Status != "open" {
		t.Errorf("expected Status 'open', got '%s'", dto.Status)
	}
	if !dto.Claimed || dto.ClaimedBy != "bob" {
		t.Error("expected claim by 'bob'")
	}
	if dto.CreatedAt != "2026-05-06T07:08:09+00:00" {
		t.Errorf("unexpected CreatedAt '%s'", dto.CreatedAt)
	}
	if dto.ClaimedDateTime != "" {
		t.Errorf("expected empty ClaimedDateTime, got '%s'", dto.ClaimedDateTime)
	}
	if len(dto.Approvals) != 1 || dto.Approvals[0] != "carol" {
		t.Errorf("unexpected approvals %v", dto.Approvals)
	}
	if dto.Subscribers == nil {
		t.Error("expected non-nil subscribers")
	}
	if len(dto.PreviousSolutions) != 1 || dto.PreviousSolutions[0].ReopenedBy != "dave" {
		t.Errorf("unexpected previous solutions %v", dto.PreviousSolutions)
	}
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     validator
		wantErr bool
	}{
		{"claim ok", ClaimProblemRequest{ID: "p1"}, false},
		{"claim negative estimate", ClaimProblemRequest{ID: "p1", Estimate: -5}, true},
		{"resolve missing summary", MarkAsResolvedRequest{ProblemID: "p1", ClaimerID: "bob"}, true},
		{"resolve ok", MarkAsResolvedRequest{ProblemID: "p1", ClaimerID: "bob", ResolutionSummary: "x"}, false},
		{"unsolve missing claimer", MarkAsUnSolvedRequest{ProblemID: "p1"}, true},
		{"status in-progress", UpdateStatusRequest{ProblemID: "p1", Status: "in-progress"}, false},
		{"status with space", UpdateStatusRequest{ProblemID: "p1", Status: "in progress"}, true},
		{"reopen without reason", ReopenProblemRequest{ProblemID: "p1"}, false},
		{"edit blank summary", EditProblemRequest{ID: "p1", Summary: " "}, true},
		{"membership missing id", MembershipRequest{}, true},
		{"add ok", AddProblemRequest{Summary: "s"}, false},
		{"accept missing id", AcceptSolutionRequest{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
