package tree_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/NikolayBobovnikov/context-manager/internal/types"
)

func TestRemovedThenRecreatedKeepsSelection(t *testing.T) {
	rootPath := buildWorkspace(t, map[string]string{
		"src/a.txt": sampleContent,
		"src/b.txt": sampleContent,
	})
	model, _ := newWorkspaceModel(t, rootPath)
	mustLoad(t, model, rootPath)
	mustLoad(t, model, "src")
	if toggleError := model.ToggleSelection("src/b.txt", types.SelectionSelected); toggleError != nil {
		t.Fatalf("selecting b.txt: %v", toggleError)
	}

	removedPath := filepath.Join(rootPath, "src", "b.txt")
	if removeError := os.Remove(removedPath); removeError != nil {
		t.Fatalf("removing b.txt: %v", removeError)
	}
	if failures := model.ApplyRemoved("src/b.txt"); len(failures) != 0 {
		t.Fatalf("unexpected removal failures: %v", failures)
	}
	if model.Snapshot().EntryAt("src/b.txt") != nil {
		t.Fatal("expected the removed entry to leave the tree")
	}
	if state := selectionOf(t, model, "src"); state != types.SelectionUnselected {
		t.Fatalf("expected src to drop to unselected after the removal, got %s", state)
	}

	if writeError := os.WriteFile(removedPath, []byte(sampleContent), 0o600); writeError != nil {
		t.Fatalf("recreating b.txt: %v", writeError)
	}
	if failures := model.ApplyCreated("src/b.txt"); len(failures) != 0 {
		t.Fatalf("unexpected creation failures: %v", failures)
	}
	if state := selectionOf(t, model, "src/b.txt"); state != types.SelectionSelected {
		t.Fatalf("expected the recreated entry to restore its selection, got %s", state)
	}
	if state := selectionOf(t, model, "src"); state != types.SelectionPartial {
		t.Fatalf("expected src to return to partial, got %s", state)
	}
}

func TestApplyCreatedUnderUnloadedParentIsDropped(t *testing.T) {
	rootPath := buildWorkspace(t, map[string]string{"src/": ""})
	model, _ := newWorkspaceModel(t, rootPath)
	mustLoad(t, model, rootPath)

	newPath := filepath.Join(rootPath, "src", "new.txt")
	if writeError := os.WriteFile(newPath, []byte(sampleContent), 0o600); writeError != nil {
		t.Fatalf("writing new.txt: %v", writeError)
	}
	if failures := model.ApplyCreated("src/new.txt"); len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if model.Snapshot().EntryAt("src/new.txt") != nil {
		t.Fatal("expected the event under an unenumerated parent to be dropped")
	}

	mustLoad(t, model, "src")
	if model.Snapshot().EntryAt("src/new.txt") == nil {
		t.Fatal("expected the later enumeration to discover the file")
	}
}

func TestApplyCreatedInheritsDirectoryMark(t *testing.T) {
	rootPath := buildWorkspace(t, map[string]string{"src/a.txt": sampleContent})
	model, _ := newWorkspaceModel(t, rootPath)
	mustLoad(t, model, rootPath)
	mustLoad(t, model, "src")
	if toggleError := model.ToggleSelection("src", types.SelectionSelected); toggleError != nil {
		t.Fatalf("selecting src: %v", toggleError)
	}

	newPath := filepath.Join(rootPath, "src", "b.txt")
	if writeError := os.WriteFile(newPath, []byte(sampleContent), 0o600); writeError != nil {
		t.Fatalf("writing b.txt: %v", writeError)
	}
	if failures := model.ApplyCreated("src/b.txt"); len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if state := selectionOf(t, model, "src/b.txt"); state != types.SelectionSelected {
		t.Fatalf("expected the new child to inherit the directory mark, got %s", state)
	}
	if state := selectionOf(t, model, "src"); state != types.SelectionSelected {
		t.Fatalf("expected src to stay selected, got %s", state)
	}
}

func TestApplyCreatedRespectsIgnoreRules(t *testing.T) {
	rootPath := buildWorkspace(t, map[string]string{
		".gitignore": "*.log\n",
		"src/a.txt":  sampleContent,
	})
	model, _ := newWorkspaceModel(t, rootPath)
	mustLoad(t, model, rootPath)
	mustLoad(t, model, "src")
	if toggleError := model.ToggleSelection("src", types.SelectionSelected); toggleError != nil {
		t.Fatalf("selecting src: %v", toggleError)
	}

	logPath := filepath.Join(rootPath, "src", "app.log")
	if writeError := os.WriteFile(logPath, []byte(sampleContent), 0o600); writeError != nil {
		t.Fatalf("writing app.log: %v", writeError)
	}
	if failures := model.ApplyCreated("src/app.log"); len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	logView := model.Snapshot().EntryAt("src/app.log")
	if logView == nil {
		t.Fatal("expected the ignored file to appear in the tree")
	}
	if !logView.Ignored {
		t.Fatal("expected app.log to be flagged ignored")
	}
	if logView.Selection != types.SelectionUnselected {
		t.Fatalf("expected the ignored file to stay outside the inherited mark, got %s", logView.Selection)
	}
	if state := selectionOf(t, model, "src"); state != types.SelectionSelected {
		t.Fatalf("expected src to ignore the new entry in its aggregate, got %s", state)
	}
}

func TestApplyModifiedRefreshesMetadata(t *testing.T) {
	rootPath := buildWorkspace(t, map[string]string{"a.txt": sampleContent})
	model, _ := newWorkspaceModel(t, rootPath)
	mustLoad(t, model, rootPath)

	grownContent := sampleContent + sampleContent + sampleContent
	if writeError := os.WriteFile(filepath.Join(rootPath, "a.txt"), []byte(grownContent), 0o600); writeError != nil {
		t.Fatalf("rewriting a.txt: %v", writeError)
	}
	if failures := model.ApplyModified("a.txt"); len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	entryView := model.Snapshot().EntryAt("a.txt")
	if entryView == nil {
		t.Fatal("expected a.txt to stay in the tree")
	}
	if entryView.SizeBytes != int64(len(grownContent)) {
		t.Fatalf("expected size %d, got %d", len(grownContent), entryView.SizeBytes)
	}
}

func TestApplyModifiedReplacesOnKindChange(t *testing.T) {
	rootPath := buildWorkspace(t, map[string]string{"thing": sampleContent})
	model, _ := newWorkspaceModel(t, rootPath)
	mustLoad(t, model, rootPath)
	if toggleError := model.ToggleSelection("thing", types.SelectionSelected); toggleError != nil {
		t.Fatalf("selecting thing: %v", toggleError)
	}

	thingPath := filepath.Join(rootPath, "thing")
	if removeError := os.Remove(thingPath); removeError != nil {
		t.Fatalf("removing thing: %v", removeError)
	}
	if mkdirError := os.Mkdir(thingPath, 0o755); mkdirError != nil {
		t.Fatalf("replacing thing with a directory: %v", mkdirError)
	}
	if failures := model.ApplyModified("thing"); len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	entryView := model.Snapshot().EntryAt("thing")
	if entryView == nil {
		t.Fatal("expected the path to stay in the tree")
	}
	if entryView.Kind != types.EntryKindDirectory {
		t.Fatalf("expected the entry to become a directory, got %s", entryView.Kind)
	}
	// The mark belongs to the path, so the replacement object keeps it.
	if entryView.Selection != types.SelectionSelected {
		t.Fatalf("expected the path mark to survive the kind change, got %s", entryView.Selection)
	}
}

func TestApplyModifiedOnVanishedPathRemovesEntry(t *testing.T) {
	rootPath := buildWorkspace(t, map[string]string{"a.txt": sampleContent})
	model, _ := newWorkspaceModel(t, rootPath)
	mustLoad(t, model, rootPath)

	if removeError := os.Remove(filepath.Join(rootPath, "a.txt")); removeError != nil {
		t.Fatalf("removing a.txt: %v", removeError)
	}
	if failures := model.ApplyModified("a.txt"); len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if model.Snapshot().EntryAt("a.txt") != nil {
		t.Fatal("expected the vanished entry to leave the tree")
	}
}

func TestApplyRemovedUnknownPathIsIgnored(t *testing.T) {
	rootPath := buildWorkspace(t, map[string]string{"a.txt": sampleContent})
	model, _ := newWorkspaceModel(t, rootPath)
	mustLoad(t, model, rootPath)

	if failures := model.ApplyRemoved("never/known.txt"); len(failures) != 0 {
		t.Fatalf("expected the unknown removal to be a no-op, got %v", failures)
	}
}

func TestApplyRemovedRootKeepsEmptiedRootVisible(t *testing.T) {
	rootPath := buildWorkspace(t, map[string]string{"a.txt": sampleContent})
	model, _ := newWorkspaceModel(t, rootPath)
	mustLoad(t, model, rootPath)

	failures := model.ApplyRemoved(rootPath)
	if len(failures) != 1 || failures[0].Kind != types.FailurePathVanished {
		t.Fatalf("expected a single PathVanished failure, got %v", failures)
	}
	rootView := model.Snapshot().Root()
	if rootView == nil {
		t.Fatal("expected the root entry to stay visible")
	}
	if rootView.Failure == nil || rootView.Failure.Kind != types.FailurePathVanished {
		t.Fatalf("expected the root to carry the vanished failure, got %+v", rootView.Failure)
	}
	if len(rootView.Children) != 0 {
		t.Fatalf("expected the root to be emptied, got %d children", len(rootView.Children))
	}
}

func TestRefreshIgnoredUnderAppliesRuleChanges(t *testing.T) {
	rootPath := buildWorkspace(t, map[string]string{
		"src/a.txt": sampleContent,
		"src/b.log": sampleContent,
	})
	model, matcher := newWorkspaceModel(t, rootPath)
	mustLoad(t, model, rootPath)
	mustLoad(t, model, "src")
	if view := model.Snapshot().EntryAt("src/b.log"); view == nil || view.Ignored {
		t.Fatal("expected b.log to start out unignored")
	}
	if toggleError := model.ToggleSelection("src", types.SelectionSelected); toggleError != nil {
		t.Fatalf("selecting src: %v", toggleError)
	}

	rulePath := filepath.Join(rootPath, "src", ".gitignore")
	if writeError := os.WriteFile(rulePath, []byte("*.log\n"), 0o600); writeError != nil {
		t.Fatalf("writing rule file: %v", writeError)
	}
	if failures := matcher.ReloadDirectory(filepath.Join(rootPath, "src")); len(failures) != 0 {
		t.Fatalf("unexpected reload failures: %v", failures)
	}
	model.RefreshIgnoredUnder("src")

	logView := model.Snapshot().EntryAt("src/b.log")
	if logView == nil || !logView.Ignored {
		t.Fatal("expected b.log to become ignored after the rule change")
	}
	// Its explicit mark persists, but the parent aggregate no longer counts it.
	if logView.Selection != types.SelectionSelected {
		t.Fatalf("expected the existing mark to persist, got %s", logView.Selection)
	}
	if state := selectionOf(t, model, "src"); state != types.SelectionSelected {
		t.Fatalf("expected src to aggregate over a.txt alone, got %s", state)
	}
}

func TestResyncLoadedReconcilesBehindTheBackChanges(t *testing.T) {
	rootPath := buildWorkspace(t, map[string]string{
		"src/a.txt":        sampleContent,
		"src/old.txt":      sampleContent,
		"src/sub/deep.txt": sampleContent,
	})
	model, _ := newWorkspaceModel(t, rootPath)
	mustLoad(t, model, rootPath)
	mustLoad(t, model, "src")
	if toggleError := model.ToggleSelection("src/a.txt", types.SelectionSelected); toggleError != nil {
		t.Fatalf("selecting a.txt: %v", toggleError)
	}

	if writeError := os.WriteFile(filepath.Join(rootPath, "src", "new.txt"), []byte(sampleContent), 0o600); writeError != nil {
		t.Fatalf("writing new.txt: %v", writeError)
	}
	if removeError := os.Remove(filepath.Join(rootPath, "src", "old.txt")); removeError != nil {
		t.Fatalf("removing old.txt: %v", removeError)
	}
	if failures := model.ResyncLoaded(rootPath); len(failures) != 0 {
		t.Fatalf("unexpected resync failures: %v", failures)
	}

	snapshot := model.Snapshot()
	if snapshot.EntryAt("src/new.txt") == nil {
		t.Fatal("expected the resync to discover new.txt")
	}
	if snapshot.EntryAt("src/old.txt") != nil {
		t.Fatal("expected the resync to drop old.txt")
	}
	if snapshot.SelectionStateOf("src/a.txt") != types.SelectionSelected {
		t.Fatal("expected the selection to survive the resync")
	}
	subView := snapshot.EntryAt("src/sub")
	if subView == nil || subView.Loaded {
		t.Fatal("expected the never-expanded directory to stay unexpanded")
	}
}
