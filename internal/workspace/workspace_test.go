package workspace_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/workspace"
)

// fixtureContent is the payload written into fixture files.
const fixtureContent = "fixture"

// buildRoot creates the given layout under a fresh temporary directory. Keys
// ending in "/" become directories; other keys become files.
func buildRoot(t *testing.T, layout map[string]string) string {
	t.Helper()
	rootPath := t.TempDir()
	for relativePath, content := range layout {
		fullPath := filepath.Join(rootPath, filepath.FromSlash(relativePath))
		if strings.HasSuffix(relativePath, "/") {
			if mkdirError := os.MkdirAll(fullPath, 0o755); mkdirError != nil {
				t.Fatalf("creating directory %s: %v", relativePath, mkdirError)
			}
			continue
		}
		if mkdirError := os.MkdirAll(filepath.Dir(fullPath), 0o755); mkdirError != nil {
			t.Fatalf("creating parent of %s: %v", relativePath, mkdirError)
		}
		if writeError := os.WriteFile(fullPath, []byte(content), 0o600); writeError != nil {
			t.Fatalf("writing %s: %v", relativePath, writeError)
		}
	}
	return rootPath
}

func openWorkspace(t *testing.T, rootPath string) *workspace.Workspace {
	t.Helper()
	opened, failures, openError := workspace.Open(rootPath, workspace.Options{UseRuleFiles: true})
	if openError != nil {
		t.Fatalf("opening workspace: %v", openError)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected open failures: %v", failures)
	}
	t.Cleanup(func() {
		_ = opened.Close()
	})
	return opened
}

func TestOpenRejectsFileRoots(t *testing.T) {
	rootPath := buildRoot(t, map[string]string{"a.txt": fixtureContent})
	_, _, openError := workspace.Open(filepath.Join(rootPath, "a.txt"), workspace.Options{})
	if openError == nil {
		t.Fatal("expected opening a file to fail")
	}
}

func TestWorkspaceSelectionRoundTrip(t *testing.T) {
	rootPath := buildRoot(t, map[string]string{
		"src/a.txt": fixtureContent,
		"src/b.txt": fixtureContent,
	})
	opened := openWorkspace(t, rootPath)
	if failures := opened.LoadAll(); len(failures) != 0 {
		t.Fatalf("unexpected load failures: %v", failures)
	}

	if toggleError := opened.ToggleSelection("src", types.SelectionSelected); toggleError != nil {
		t.Fatalf("selecting src: %v", toggleError)
	}
	selectedPaths := opened.SelectedPaths()
	if len(selectedPaths) != 3 {
		t.Fatalf("expected src and both children to be marked, got %v", selectedPaths)
	}

	opened.SetSelectionFromPaths([]string{"src/a.txt"})
	snapshot := opened.Snapshot()
	if snapshot.SelectionStateOf("src/a.txt") != types.SelectionSelected {
		t.Fatal("expected a.txt to be selected after the replace")
	}
	if snapshot.SelectionStateOf("src") != types.SelectionPartial {
		t.Fatal("expected src to recompute to partial")
	}
}

func TestLoadAllSkipsIgnoredDirectories(t *testing.T) {
	rootPath := buildRoot(t, map[string]string{
		".gitignore":    "build/\n",
		"build/out.txt": fixtureContent,
		"src/a.txt":     fixtureContent,
	})
	opened := openWorkspace(t, rootPath)
	if failures := opened.LoadAll(); len(failures) != 0 {
		t.Fatalf("unexpected load failures: %v", failures)
	}

	snapshot := opened.Snapshot()
	buildView := snapshot.EntryAt("build")
	if buildView == nil {
		t.Fatal("expected the ignored directory to stay visible as an entry")
	}
	if !buildView.Ignored || buildView.Loaded {
		t.Fatalf("expected build to be ignored and collapsed, got ignored=%v loaded=%v", buildView.Ignored, buildView.Loaded)
	}
	if snapshot.EntryAt("src/a.txt") == nil {
		t.Fatal("expected the full expansion to reach src/a.txt")
	}
}

func TestBuildSnapshotMaterializesSelection(t *testing.T) {
	rootPath := buildRoot(t, map[string]string{
		"src/sub/deep.txt": fixtureContent,
	})
	opened := openWorkspace(t, rootPath)
	if _, loadError := opened.LoadChildren(rootPath); loadError != nil {
		t.Fatalf("loading root: %v", loadError)
	}
	if toggleError := opened.ToggleSelection("src", types.SelectionSelected); toggleError != nil {
		t.Fatalf("selecting src: %v", toggleError)
	}

	snapshot, failures := opened.BuildSnapshot()
	if len(failures) != 0 {
		t.Fatalf("unexpected materialization failures: %v", failures)
	}
	deepView := snapshot.EntryAt("src/sub/deep.txt")
	if deepView == nil {
		t.Fatal("expected the build snapshot to contain deep.txt")
	}
	if deepView.Selection != types.SelectionSelected {
		t.Fatalf("expected deep.txt to be selected, got %s", deepView.Selection)
	}
}
