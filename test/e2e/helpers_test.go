//go:build e2e

package e2e

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// callResult mirrors the JSON envelope problemctl prints for every call.
type callResult struct {
	Status    string `json:"status"`
	ProblemID string `json:"problem_id"`
	Member    *bool  `json:"member"`
	Problem   *struct {
		Status            string            `json:"status"`
		Claimed           bool              `json:"claimed"`
		ClaimedBy         string            `json:"claimed_by"`
		Resolved          bool              `json:"resolved"`
		ResolvedBy        string            `json:"resolved_by"`
		CreatedBy         string            `json:"created_by"`
		Approvals         []string          `json:"approvals"`
		PreviousSolutions []json.RawMessage `json:"previous_solutions"`
	} `json:"problem"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// setupWorkspace creates a temporary problems workspace for testing.
func setupWorkspace(t *testing.T, bin string) string {
	t.Helper()

	dir := t.TempDir()
	cmd := exec.Command(bin, "init")
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to init workspace: %v (%s)", err, out)
	}
	return dir
}

// getProblemctlBinary finds or builds the problemctl binary.
func getProblemctlBinary(t *testing.T) string {
	t.Helper()

	// Find project root by looking for go.mod
	wd, _ := os.Getwd()
	projectRoot := wd
	for {
		if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(projectRoot)
		if parent == projectRoot {
			t.Fatal("Could not find project root (go.mod)")
		}
		projectRoot = parent
	}

	binaryPath := filepath.Join(projectRoot, "problemctl")

	if _, err := os.Stat(binaryPath); err == nil {
		return binaryPath
	}

	cmd := exec.Command("go", "build", "-mod=mod", "-o", binaryPath, "./cmd")
	cmd.Dir = projectRoot
	if err := cmd.Run(); err != nil {
		t.Fatalf("Could not build problemctl binary: %v", err)
	}

	return binaryPath
}

// run invokes problemctl as actor and decodes its JSON result. A non-zero
// exit still yields the error envelope.
func run(bin, workDir, actor string, args ...string) callResult {
	cmd := exec.Command(bin, append(args, "--actor", actor, "--output", "json")...)
	cmd.Dir = workDir
	output, _ := cmd.Output()

	var result callResult
	if err := json.Unmarshal(output, &result); err != nil {
		return callResult{Status: "unparsed"}
	}
	return result
}

// createProblem adds a problem as creator and returns its id.
func createProblem(t *testing.T, bin, workDir, creator, summary string) string {
	t.Helper()

	result := run(bin, workDir, creator, "add", "--summary", summary)
	if result.Status != "success" || result.ProblemID == "" {
		t.Fatalf("Failed to create problem: %+v", result)
	}
	return result.ProblemID
}

// claim attempts to claim a problem and reports whether this actor won.
func claim(bin, workDir, actor, problemID string) (won bool, code string) {
	result := run(bin, workDir, actor, "claim", problemID)
	if result.Status == "success" {
		return true, ""
	}
	if result.Error != nil {
		return false, result.Error.Code
	}
	return false, result.Status
}

// call invokes an RPC method with a JSON payload.
func call(bin, workDir, actor, method, payload string) callResult {
	return run(bin, workDir, actor, "call", method, payload)
}

// show reads a problem back.
func show(t *testing.T, bin, workDir, problemID string) callResult {
	t.Helper()

	result := run(bin, workDir, "observer", "show", problemID)
	if result.Problem == nil {
		t.Fatalf("Failed to read problem %s: %+v", problemID, result)
	}
	return result
}
