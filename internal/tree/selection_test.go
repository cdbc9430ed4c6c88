package tree_test

import (
	"reflect"
	"testing"

	"github.com/NikolayBobovnikov/context-manager/internal/tree"
)

func TestSelectionSetMembership(t *testing.T) {
	selectionSet := tree.NewSelectionSet()
	selectionSet.Add("/workspace/b.txt")
	selectionSet.Add("/workspace/a.txt")
	selectionSet.Add("/workspace/b.txt")

	if selectionSet.Size() != 2 {
		t.Fatalf("expected 2 members after a duplicate add, got %d", selectionSet.Size())
	}
	if !selectionSet.Contains("/workspace/a.txt") {
		t.Fatal("expected a.txt to be a member")
	}
	selectionSet.Remove("/workspace/a.txt")
	if selectionSet.Contains("/workspace/a.txt") {
		t.Fatal("expected a.txt to be gone after removal")
	}
	selectionSet.Remove("/workspace/never-added.txt")
	if selectionSet.Size() != 1 {
		t.Fatalf("expected removing a non-member to change nothing, got %d members", selectionSet.Size())
	}
}

func TestSelectionSetSortedPathsIsDeterministic(t *testing.T) {
	selectionSet := tree.NewSelectionSet()
	selectionSet.Add("/workspace/c.txt")
	selectionSet.Add("/workspace/a.txt")
	selectionSet.Add("/workspace/b.txt")

	expectedOrder := []string{"/workspace/a.txt", "/workspace/b.txt", "/workspace/c.txt"}
	for attempt := 0; attempt < 3; attempt++ {
		if !reflect.DeepEqual(selectionSet.SortedPaths(), expectedOrder) {
			t.Fatalf("attempt %d: expected %v, got %v", attempt, expectedOrder, selectionSet.SortedPaths())
		}
	}
}

func TestSelectionSetReplace(t *testing.T) {
	selectionSet := tree.NewSelectionSet()
	selectionSet.Add("/workspace/old.txt")
	selectionSet.Replace([]string{"/workspace/new.txt"})

	if selectionSet.Contains("/workspace/old.txt") {
		t.Fatal("expected the replaced member to be gone")
	}
	if !selectionSet.Contains("/workspace/new.txt") {
		t.Fatal("expected the replacement member to be present")
	}
}
