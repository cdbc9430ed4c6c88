package tree

import (
	"os"
	"sort"
	"time"

	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/utils"
)

// Entry is one live node of the tree model. Entries are identified by their
// normalized absolute path and are only ever touched under the model owner's
// serialization; renderers receive copies via Snapshot instead.
type Entry struct {
	path      string
	name      string
	kind      types.EntryKind
	parent    *Entry
	children  []*Entry
	selection types.SelectionState
	ignored   bool
	loaded    bool
	failure   *types.PathFailure
	sizeBytes int64
	modTime   time.Time
}

// provisional reports whether the entry's selection value may still change
// once its children are enumerated.
func (entry *Entry) provisional() bool {
	return entry.kind == types.EntryKindDirectory && !entry.loaded
}

// childByName returns the child with the given name, or nil.
func (entry *Entry) childByName(name string) *Entry {
	for _, child := range entry.children {
		if child.name == name {
			return child
		}
	}
	return nil
}

// detachChild removes child from the entry's child list, preserving order.
func (entry *Entry) detachChild(child *Entry) {
	for position, candidate := range entry.children {
		if candidate == child {
			entry.children = append(entry.children[:position], entry.children[position+1:]...)
			return
		}
	}
}

// sortChildren restores the lexicographic-by-name order every consumer
// depends on for deterministic walks.
func (entry *Entry) sortChildren() {
	sort.Slice(entry.children, func(left, right int) bool {
		return entry.children[left].name < entry.children[right].name
	})
}

// view converts the entry and its loaded subtree into an immutable snapshot node.
func (entry *Entry) view() *types.EntryView {
	entryView := &types.EntryView{
		Path:        entry.path,
		Name:        entry.name,
		Kind:        entry.kind,
		Selection:   entry.selection,
		Ignored:     entry.ignored,
		Loaded:      entry.loaded,
		Provisional: entry.provisional(),
		SizeBytes:   entry.sizeBytes,
	}
	if entry.kind == types.EntryKindFile || entry.kind == types.EntryKindSymlinkFile {
		entryView.Size = utils.FormatFileSize(entry.sizeBytes)
	}
	if !entry.modTime.IsZero() {
		entryView.LastModified = utils.FormatTimestamp(entry.modTime)
	}
	if entry.failure != nil {
		failureCopy := *entry.failure
		entryView.Failure = &failureCopy
	}
	if len(entry.children) > 0 {
		entryView.Children = make([]*types.EntryView, 0, len(entry.children))
		for _, child := range entry.children {
			entryView.Children = append(entryView.Children, child.view())
		}
	}
	return entryView
}

// classifyPath determines the entry kind for the object at absolutePath using
// lstat semantics; symlinks are resolved one step to tell file targets from
// directory targets but are never followed further.
func classifyPath(absolutePath string) (types.EntryKind, os.FileInfo, error) {
	info, lstatError := os.Lstat(absolutePath)
	if lstatError != nil {
		return types.EntryKindMissing, nil, lstatError
	}
	return classifyFileInfo(absolutePath, info), info, nil
}

func classifyFileInfo(absolutePath string, info os.FileInfo) types.EntryKind {
	if info.Mode()&os.ModeSymlink != 0 {
		targetInfo, statError := os.Stat(absolutePath)
		if statError == nil && targetInfo.IsDir() {
			return types.EntryKindSymlinkDirectory
		}
		return types.EntryKindSymlinkFile
	}
	if info.IsDir() {
		return types.EntryKindDirectory
	}
	return types.EntryKindFile
}

// newChildEntry builds an entry for one enumerated directory child.
func newChildEntry(parent *Entry, name string, kind types.EntryKind, info os.FileInfo) *Entry {
	child := &Entry{
		path:      parent.path + "/" + name,
		name:      name,
		kind:      kind,
		parent:    parent,
		selection: types.SelectionUnselected,
	}
	if info != nil {
		child.sizeBytes = info.Size()
		child.modTime = info.ModTime()
	}
	return child
}
