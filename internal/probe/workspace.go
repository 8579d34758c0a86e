package probe

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/anstrom/tellix/internal/errors"
)

const (
	workspacePrefix = "probe-"
	targetsFileName = "targets.txt"
	resultsFileName = "results.jsonl"

	scratchDirPerm = 0750
	workspacePerm  = 0700
	targetsPerm    = 0600
)

// removeAll is replaced in tests to simulate cleanup failures.
var removeAll = os.RemoveAll

// Workspace is the private directory of one invocation.
type Workspace struct {
	ID  string
	Dir string
}

// NewWorkspace creates <scratchDir>/probe-<id>, creating scratchDir if absent.
// The workspace directory itself is created exclusively, so an existing
// directory with the same name is an error rather than shared.
func NewWorkspace(scratchDir, id string) (*Workspace, error) {
	if err := os.MkdirAll(scratchDir, scratchDirPerm); err != nil {
		return nil, errors.WrapProbeError(errors.CodeDirectoryCreate, "failed to create scratch directory", err).
			WithContext("dir", scratchDir)
	}

	dir := filepath.Join(scratchDir, workspacePrefix+id)
	if err := os.Mkdir(dir, workspacePerm); err != nil {
		return nil, errors.WrapProbeError(errors.CodeDirectoryCreate, "failed to create workspace", err).
			WithContext("dir", dir)
	}

	return &Workspace{ID: id, Dir: dir}, nil
}

// TargetsPath is the file handed to the binary with -l.
func (w *Workspace) TargetsPath() string {
	return filepath.Join(w.Dir, targetsFileName)
}

// ResultsPath is the file handed to the binary with -o.
func (w *Workspace) ResultsPath() string {
	return filepath.Join(w.Dir, resultsFileName)
}

// WriteTargets writes one target per line.
func (w *Workspace) WriteTargets(targets []string) error {
	data := strings.Join(targets, "\n") + "\n"
	if err := os.WriteFile(w.TargetsPath(), []byte(data), targetsPerm); err != nil {
		return errors.WrapProbeError(errors.CodeFileSystem, "failed to write targets file", err)
	}
	return nil
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	return removeAll(w.Dir)
}

// isWorkspaceName reports whether a scratch directory entry looks like a workspace.
func isWorkspaceName(name string) bool {
	return strings.HasPrefix(name, workspacePrefix) && len(name) > len(workspacePrefix)
}
