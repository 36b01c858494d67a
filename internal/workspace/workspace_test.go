package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_CreateIsUniquePerRun(t *testing.T) {
	m := NewManager(t.TempDir())
	a, err := m.Create("sub-1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Create("sub-1")
	if err != nil {
		t.Fatal(err)
	}
	if a.Dir() == b.Dir() {
		t.Fatalf("two runs of the same submission share %s", a.Dir())
	}
	if a.ArtifactPath() == b.ArtifactPath() || a.CaseOutputPath(1) == b.CaseOutputPath(1) {
		t.Fatal("scratch paths are shared between runs")
	}
	if !strings.HasPrefix(filepath.Base(a.Dir()), "sub-1-") {
		t.Fatalf("workspace is not namespaced by submission: %s", a.Dir())
	}
}

func TestWorkspace_Paths(t *testing.T) {
	m := NewManager(t.TempDir())
	w, err := m.Create("../../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(w.Dir()) != m.Root {
		t.Fatalf("workspace escaped root: %s", w.Dir())
	}
	paths := []string{w.ArtifactPath(), w.DiagnosticsPath(), w.CaseOutputPath(1), w.CaseOutputPath(2), w.CaseErrorPath(1)}
	seen := map[string]bool{}
	for _, p := range paths {
		if filepath.Dir(p) != w.Dir() {
			t.Fatalf("%s is outside of the workspace", p)
		}
		if seen[p] {
			t.Fatalf("duplicate path %s", p)
		}
		seen[p] = true
	}
}

func TestWorkspace_Remove(t *testing.T) {
	m := NewManager(t.TempDir())
	w, err := m.Create("sub")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(w.CaseOutputPath(1), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := w.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(w.Dir()); !os.IsNotExist(err) {
		t.Fatalf("workspace still exists: %v", err)
	}
}
