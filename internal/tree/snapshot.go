package tree

import (
	"path/filepath"

	"github.com/NikolayBobovnikov/context-manager/internal/types"
)

// Snapshot is an immutable copy of the tree taken at one instant. Renderers
// and bundle walks read snapshots concurrently with live mutation; a snapshot
// never changes after Snapshot() returns.
type Snapshot struct {
	rootPath string
	root     *types.EntryView
	index    map[string]*types.EntryView
}

// Snapshot returns a deep copy of the current tree plus an index for path
// lookups. The copy shares no state with the live model.
func (model *Model) Snapshot() *Snapshot {
	rootView := model.root.view()
	index := make(map[string]*types.EntryView, len(model.entries))
	indexViews(rootView, index)
	return &Snapshot{rootPath: model.rootPath, root: rootView, index: index}
}

func indexViews(entryView *types.EntryView, index map[string]*types.EntryView) {
	index[entryView.Path] = entryView
	for _, child := range entryView.Children {
		indexViews(child, index)
	}
}

// RootPath returns the workspace root the snapshot was taken from.
func (snapshot *Snapshot) RootPath() string {
	return snapshot.rootPath
}

// Root returns the snapshot's root view.
func (snapshot *Snapshot) Root() *types.EntryView {
	return snapshot.root
}

// EntryAt returns the view for the given path, or nil when the path was not
// part of the tree at snapshot time. Relative paths resolve against the root.
func (snapshot *Snapshot) EntryAt(path string) *types.EntryView {
	return snapshot.index[snapshot.resolve(path)]
}

// ChildrenOf returns the child views of the entry at path, or nil.
func (snapshot *Snapshot) ChildrenOf(path string) []*types.EntryView {
	entryView := snapshot.EntryAt(path)
	if entryView == nil {
		return nil
	}
	return entryView.Children
}

// SelectionStateOf returns the selection state of the entry at path;
// unknown paths report Unselected.
func (snapshot *Snapshot) SelectionStateOf(path string) types.SelectionState {
	entryView := snapshot.EntryAt(path)
	if entryView == nil {
		return types.SelectionUnselected
	}
	return entryView.Selection
}

func (snapshot *Snapshot) resolve(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(snapshot.rootPath, path)
	}
	return filepath.ToSlash(filepath.Clean(path))
}
