//go:build e2e

package e2e

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestClaimRace_Stress - 20 actors, 10 problems, 5 attempts each.
func TestClaimRace_Stress(t *testing.T) {
	bin := getProblemctlBinary(t)
	workDir := setupWorkspace(t, bin)

	const numProblems = 10
	problemIDs := make([]string, numProblems)
	for i := range problemIDs {
		problemIDs[i] = createProblem(t, bin, workDir, "owner", fmt.Sprintf("Stress %d", i+1))
	}

	const numActors, attempts = 20, 5
	var totalClaims atomic.Int32
	claimed := make(map[string]string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 1; i <= numActors; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			actor := fmt.Sprintf("stress-%02d", n)
			for a := 0; a < attempts; a++ {
				id := problemIDs[(n*attempts+a)%numProblems]
				if won, _ := claim(bin, workDir, actor, id); won {
					totalClaims.Add(1)
					mu.Lock()
					if _, exists := claimed[id]; exists {
						t.Errorf("DOUBLE CLAIM: %s", id)
					}
					claimed[id] = actor
					mu.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()

	t.Logf("=== STRESS TEST: %d actors x %d attempts ===", numActors, attempts)
	t.Logf("Total claims: %d | Unique: %d | Problems: %d", totalClaims.Load(), len(claimed), numProblems)

	if totalClaims.Load() > int32(numProblems) {
		t.Errorf("Double claiming: %d claims for %d problems", totalClaims.Load(), numProblems)
	}
}

// TestApprovalRace_Burst - 25 actors toggle their approval twice, released
// via barrier. Every toggle must apply, leaving no approvals behind.
func TestApprovalRace_Burst(t *testing.T) {
	bin := getProblemctlBinary(t)
	workDir := setupWorkspace(t, bin)

	problemID := createProblem(t, bin, workDir, "owner", "Burst target")
	payload := `{"_id":"` + problemID + `"}`

	const numActors = 25
	var wg sync.WaitGroup
	var failures atomic.Int32
	barrier := make(chan struct{})

	for i := 1; i <= numActors; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-barrier
			actor := fmt.Sprintf("burst-%02d", n)
			for toggle := 0; toggle < 2; toggle++ {
				if call(bin, workDir, actor, "problemApproval", payload).Status != "success" {
					failures.Add(1)
				}
			}
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(barrier)
	wg.Wait()

	stored := show(t, bin, workDir, problemID).Problem
	t.Logf("=== BURST APPROVALS: %d actors | Failures: %d | Remaining: %d ===", numActors, failures.Load(), len(stored.Approvals))

	if failures.Load() != 0 {
		t.Errorf("Expected every toggle to apply, %d failed", failures.Load())
	}
	if len(stored.Approvals) != 0 {
		t.Errorf("Expected no approvals after double toggles, got %v", stored.Approvals)
	}
}

// TestAcceptReopenRace_Burst - the creator accepts while another actor tries
// to reopen. Reopen only applies once the problem is closed, so the stored
// record must match one of the two serial orders.
func TestAcceptReopenRace_Burst(t *testing.T) {
	bin := getProblemctlBinary(t)
	workDir := setupWorkspace(t, bin)

	problemID := createProblem(t, bin, workDir, "owner", "Accept or reopen")
	if won, code := claim(bin, workDir, "worker", problemID); !won {
		t.Fatalf("Setup claim failed: %s", code)
	}
	resolve := `{"problemId":"` + problemID + `","claimerId":"worker","resolutionSummary":"patched"}`
	if result := call(bin, workDir, "worker", "markAsResolved", resolve); result.Status != "success" {
		t.Fatalf("Setup resolve failed: %+v", result)
	}

	barrier := make(chan struct{})
	var wg sync.WaitGroup
	var accepted, reopened atomic.Bool
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-barrier
		accepted.Store(call(bin, workDir, "owner", "acceptSolution", `{"problemId":"`+problemID+`"}`).Status == "success")
	}()
	go func() {
		defer wg.Done()
		<-barrier
		reopened.Store(call(bin, workDir, "reviewer", "reopenProblem", `{"problemId":"`+problemID+`","reason":"regressed"}`).Status == "success")
	}()
	close(barrier)
	wg.Wait()

	stored := show(t, bin, workDir, problemID).Problem
	t.Logf("=== ACCEPT/REOPEN: accepted=%t reopened=%t status=%s ===", accepted.Load(), reopened.Load(), stored.Status)

	switch {
	case accepted.Load() && !reopened.Load():
		if stored.Status != "closed" || stored.ResolvedBy != "worker" {
			t.Errorf("Expected closed and resolved by worker, got %s/%q", stored.Status, stored.ResolvedBy)
		}
	case reopened.Load():
		if stored.Status != "open" || stored.Claimed || stored.CreatedBy != "reviewer" {
			t.Errorf("Expected reopened by reviewer, got %s claimed=%t creator=%q", stored.Status, stored.Claimed, stored.CreatedBy)
		}
		if len(stored.PreviousSolutions) != 1 {
			t.Errorf("Expected one archived resolution, got %d", len(stored.PreviousSolutions))
		}
	default:
		t.Error("Expected accept to apply")
	}
}
