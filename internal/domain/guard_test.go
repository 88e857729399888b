package domain

import (
	"errors"
	"testing"
)

func TestGuards(t *testing.T) {
	creator := ActorId("creator")
	claimer := ActorId("claimer")
	other := ActorId("other")

	claimed := &Problem{ID: "p1", Status: StatusInProgress, CreatedBy: creator, ClaimedBy: claimer, Claimed: true}
	unclaimed := &Problem{ID: "p2", Status: StatusOpen, CreatedBy: creator}
	orphan := &Problem{ID: "p3", Status: StatusOpen}
	closed := &Problem{ID: "p4", Status: StatusClosed, CreatedBy: creator}
	review := &Problem{ID: "p5", Status: StatusReadyForReview, CreatedBy: creator, ClaimedBy: claimer, Claimed: true}

	tests := []struct {
		name    string
		check   func() error
		wantErr error
	}{
		{"claim unclaimed", func() error { return CanClaim(unclaimed) }, nil},
		{"claim claimed", func() error { return CanClaim(claimed) }, ErrAlreadyClaimed},
		{"unclaim by claimer", func() error { return CanUnclaim(claimed, claimer) }, nil},
		{"unclaim by other", func() error { return CanUnclaim(claimed, other) }, ErrNotClaimedByYou},
		{"unclaim empty actor on unclaimed", func() error { return CanUnclaim(unclaimed, "") }, ErrNotClaimedByYou},
		{"resolve by claimer", func() error { return CanResolve(claimed, claimer) }, nil},
		{"resolve by other", func() error { return CanResolve(claimed, other) }, ErrNotAllowedToResolve},
		{"unresolve by claimer", func() error { return CanUnresolve(claimed, claimer) }, nil},
		{"unresolve by other", func() error { return CanUnresolve(claimed, other) }, ErrNotAllowedToUnsolve},
		{"remove claimer by creator", func() error { return CanRemoveClaimer(claimed, creator) }, nil},
		{"remove claimer by claimer", func() error { return CanRemoveClaimer(claimed, claimer) }, ErrNotAllowedToRemoveClaimer},
		{"open close by creator", func() error { return CanOpenClose(unclaimed, creator) }, nil},
		{"open close by other", func() error { return CanOpenClose(unclaimed, other) }, ErrNotAllowedToOpenOrClose},
		{"edit by creator", func() error { return CanEdit(unclaimed, creator) }, nil},
		{"edit by other", func() error { return CanEdit(unclaimed, other) }, ErrNotAllowedToEdit},
		{"edit without creator", func() error { return CanEdit(orphan, "") }, ErrNotAllowedToEdit},
		{"delete by creator", func() error { return CanDelete(unclaimed, creator) }, nil},
		{"delete by other", func() error { return CanDelete(unclaimed, other) }, ErrNotAllowedToDelete},
		{"delete without creator", func() error { return CanDelete(orphan, "") }, ErrNotAllowedToDelete},
		{"reopen closed", func() error { return CanReopen(closed) }, nil},
		{"reopen open", func() error { return CanReopen(unclaimed) }, ErrNotAllowedToReopen},
		{"accept under review", func() error { return CanAcceptSolution(review, creator) }, nil},
		{"accept by other", func() error { return CanAcceptSolution(review, other) }, ErrNotAllowedToAcceptSolution},
		{"accept not under review", func() error { return CanAcceptSolution(claimed, creator) }, ErrNotAllowedToAcceptSolution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected allow, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGuardDenialCarriesProblemID(t *testing.T) {
	err := CanReopen(&Problem{ID: "p9", Status: StatusOpen})

	var problemErr *ProblemError
	if !errors.As(err, &problemErr) {
		t.Fatalf("expected *ProblemError, got %T", err)
	}
	if problemErr.ProblemID != "p9" {
		t.Errorf("expected problem id 'p9', got '%s'", problemErr.ProblemID)
	}
	if problemErr.Message == "" {
		t.Error("expected a message")
	}
}
