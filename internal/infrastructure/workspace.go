// Package infrastructure contains adapters for external dependencies.
package infrastructure

import (
	"os"
	"path/filepath"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

const (
	problemsDir    = ".problems"
	problemsDbFile = "problems.db"
	configFile     = "config.yaml"
)

// WorkspaceDiscoveryAdapter implements workspace discovery.
type WorkspaceDiscoveryAdapter struct{}

// NewWorkspaceDiscoveryAdapter creates a new WorkspaceDiscoveryAdapter.
func NewWorkspaceDiscoveryAdapter() *WorkspaceDiscoveryAdapter {
	return &WorkspaceDiscoveryAdapter{}
}

// FindWorkspaceRoot walks up from cwd to the first directory holding .problems.
func (w *WorkspaceDiscoveryAdapter) FindWorkspaceRoot(cwd string) (string, error) {
	dir := cwd
	for {
		if info, err := os.Stat(filepath.Join(dir, problemsDir)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", domain.NewStorageError(domain.ErrCodeWorkspaceNotFound,
				"no "+problemsDir+" directory found in any parent directory")
		}
		dir = parent
	}
}

// FindDbPath locates problems.db within the workspace.
func (w *WorkspaceDiscoveryAdapter) FindDbPath(workspaceRoot string) (string, error) {
	dbPath := w.DbPath(workspaceRoot)
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return "", domain.NewStorageError(domain.ErrCodeDBNotFound, problemsDbFile+" not found at "+dbPath)
		}
		return "", domain.NewStorageError(domain.ErrCodeUnexpected, "error accessing "+problemsDbFile+": "+err.Error())
	}
	return dbPath, nil
}

// DbPath returns where problems.db lives for a workspace, existing or not.
func (w *WorkspaceDiscoveryAdapter) DbPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, problemsDir, problemsDbFile)
}

// ConfigPath returns the workspace config file path.
func (w *WorkspaceDiscoveryAdapter) ConfigPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, problemsDir, configFile)
}

// InitWorkspace creates the .problems directory under root and returns the
// database path inside it.
func (w *WorkspaceDiscoveryAdapter) InitWorkspace(root string) (string, error) {
	if err := os.MkdirAll(filepath.Join(root, problemsDir), 0o755); err != nil {
		return "", domain.NewStorageError(domain.ErrCodeUnexpected, "failed to create workspace: "+err.Error())
	}
	return w.DbPath(root), nil
}
