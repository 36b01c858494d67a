// Package workspace lays out per-run scratch directories so concurrent
// submissions never share artifact, diagnostics or output paths.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	artifactName    = "program"
	diagnosticsName = "compile.log"
)

type Manager struct {
	Root string
}

func NewManager(root string) *Manager {
	if root == "" {
		root = os.TempDir()
	}
	return &Manager{Root: root}
}

type Workspace struct {
	dir string
}

// Create makes <root>/<submission>-<uuid>. The directory is traversable by
// other users so a judged program running under a dropped uid can exec the
// artifact, but not listable.
func (m *Manager) Create(submissionId string) (*Workspace, error) {
	if err := os.MkdirAll(m.Root, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create workspace root")
	}
	dir := filepath.Join(m.Root, fmt.Sprintf("%s-%s", sanitize(submissionId), uuid.NewString()))
	if err := os.Mkdir(dir, 0711); err != nil {
		return nil, errors.Wrap(err, "failed to create workspace")
	}
	// umask may have stripped the execute bits
	if err := os.Chmod(dir, 0711); err != nil {
		return nil, errors.Wrap(err, "failed to chmod workspace")
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}

func (w *Workspace) ArtifactPath() string {
	return filepath.Join(w.dir, artifactName)
}

func (w *Workspace) DiagnosticsPath() string {
	return filepath.Join(w.dir, diagnosticsName)
}

func (w *Workspace) CaseOutputPath(caseNum int) string {
	return filepath.Join(w.dir, fmt.Sprintf("case-%d.out", caseNum))
}

func (w *Workspace) CaseErrorPath(caseNum int) string {
	return filepath.Join(w.dir, fmt.Sprintf("case-%d.err", caseNum))
}

func (w *Workspace) Remove() error {
	return os.RemoveAll(w.dir)
}

func sanitize(id string) string {
	id = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
	if len(id) > 64 {
		id = id[:64]
	}
	if id == "" {
		id = "submission"
	}
	return id
}
