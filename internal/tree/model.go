// Package tree implements the live workspace tree: lazily enumerated entries,
// tri-state selection derived from an explicit selection set, and immutable
// snapshots for renderers. The model performs no locking of its own; the
// workspace serializes every call against it.
package tree

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/NikolayBobovnikov/context-manager/internal/ignore"
	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/utils"
)

// Model owns the entry tree rooted at one workspace directory.
type Model struct {
	rootPath  string
	root      *Entry
	entries   map[string]*Entry
	selection *SelectionSet
	matcher   *ignore.Matcher
	logger    *zap.Logger
}

// NewModel builds a model rooted at rootPath. The root must exist and be a
// directory; its children stay unenumerated until the first LoadChildren.
func NewModel(rootPath string, matcher *ignore.Matcher, logger *zap.Logger) (*Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalizedRoot, normalizeError := utils.NormalizeAbsolutePath(rootPath)
	if normalizeError != nil {
		return nil, fmt.Errorf("resolving workspace root %s: %w", rootPath, normalizeError)
	}
	rootInfo, statError := os.Stat(normalizedRoot)
	if statError != nil {
		return nil, fmt.Errorf("inspecting workspace root %s: %w", normalizedRoot, statError)
	}
	if !rootInfo.IsDir() {
		return nil, types.PathFailure{Path: normalizedRoot, Kind: types.FailureNotADirectory, Detail: "workspace root must be a directory"}
	}
	rootEntry := &Entry{
		path:      normalizedRoot,
		name:      filepath.Base(normalizedRoot),
		kind:      types.EntryKindDirectory,
		selection: types.SelectionUnselected,
		modTime:   rootInfo.ModTime(),
	}
	return &Model{
		rootPath:  normalizedRoot,
		root:      rootEntry,
		entries:   map[string]*Entry{normalizedRoot: rootEntry},
		selection: NewSelectionSet(),
		matcher:   matcher,
		logger:    logger,
	}, nil
}

// RootPath returns the normalized workspace root.
func (model *Model) RootPath() string {
	return model.rootPath
}

// SelectedPaths returns the explicit selection marks in lexicographic order,
// suitable for persistence and for replay through SetSelectionFromPaths.
func (model *Model) SelectedPaths() []string {
	return model.selection.SortedPaths()
}

// resolvePath normalizes caller-provided paths; relative paths resolve
// against the workspace root.
func (model *Model) resolvePath(inputPath string) string {
	if !filepath.IsAbs(inputPath) {
		inputPath = filepath.Join(model.rootPath, inputPath)
	}
	return filepath.ToSlash(filepath.Clean(inputPath))
}

// LoadChildren enumerates the immediate children of directoryPath and
// reconciles them with the previously known set so entry identity and
// selection survive. Calling it twice without an intervening filesystem
// change yields the same children. Newly discovered, non-ignored children of
// an explicitly selected directory inherit its mark. Per-path failures are
// recorded on the affected entries and returned; only a misuse (unknown path,
// non-directory) yields an error.
func (model *Model) LoadChildren(directoryPath string) ([]types.PathFailure, error) {
	entryPath := model.resolvePath(directoryPath)
	entry, exists := model.entries[entryPath]
	if !exists {
		return nil, fmt.Errorf("unknown entry %s", entryPath)
	}
	if entry.kind != types.EntryKindDirectory {
		return nil, types.PathFailure{Path: entryPath, Kind: types.FailureNotADirectory, Detail: fmt.Sprintf("cannot enumerate %s entry", entry.kind)}
	}

	failures := model.matcher.RegisterDirectory(entryPath)
	directoryEntries, readError := os.ReadDir(entryPath)
	if readError != nil {
		return append(failures, model.recordEnumerationFailure(entry, readError)), nil
	}
	entry.failure = nil

	inheritSelection := model.selection.Contains(entry.path)
	seenNames := make(map[string]struct{}, len(directoryEntries))
	for _, directoryEntry := range directoryEntries {
		childName := directoryEntry.Name()
		childPath := entry.path + "/" + childName

		info, infoError := directoryEntry.Info()
		if infoError != nil {
			if os.IsNotExist(infoError) {
				if existing := entry.childByName(childName); existing != nil {
					model.removeEntry(existing)
				}
				failures = append(failures, types.PathFailure{Path: childPath, Kind: types.FailurePathVanished, Detail: infoError.Error()})
				continue
			}
			failures = append(failures, types.PathFailure{Path: childPath, Kind: types.FailureReadError, Detail: infoError.Error()})
			info = nil
		}
		seenNames[childName] = struct{}{}

		childKind := types.EntryKindFile
		if info != nil {
			childKind = classifyFileInfo(childPath, info)
		} else if directoryEntry.IsDir() {
			childKind = types.EntryKindDirectory
		}

		child := entry.childByName(childName)
		if child != nil && child.kind != childKind {
			// a different filesystem object owns the path now
			model.removeEntry(child)
			child = nil
		}
		if child == nil {
			child = newChildEntry(entry, childName, childKind, info)
			entry.children = append(entry.children, child)
			model.entries[child.path] = child
			child.ignored = model.matcher.IsExcluded(child.path, childKind.IsDirectory())
			if inheritSelection && !child.ignored {
				model.selection.Add(child.path)
			}
			continue
		}
		if info != nil {
			child.sizeBytes = info.Size()
			child.modTime = info.ModTime()
		}
		child.ignored = model.matcher.IsExcluded(child.path, childKind.IsDirectory())
	}

	for _, child := range append([]*Entry(nil), entry.children...) {
		if _, stillPresent := seenNames[child.name]; !stillPresent {
			model.removeEntry(child)
		}
	}
	entry.sortChildren()
	entry.loaded = true

	for _, child := range entry.children {
		child.selection = model.computeEntryState(child)
	}
	entry.selection = model.computeEntryState(entry)
	model.recomputeAncestors(entry.parent)
	return failures, nil
}

// recordEnumerationFailure classifies a ReadDir error. A vanished directory
// leaves the tree; a denied or otherwise unreadable one stays visible with
// the failure attached.
func (model *Model) recordEnumerationFailure(entry *Entry, readError error) types.PathFailure {
	if os.IsNotExist(readError) {
		failure := types.PathFailure{Path: entry.path, Kind: types.FailurePathVanished, Detail: readError.Error()}
		parent := entry.parent
		model.removeEntry(entry)
		model.recomputeAncestors(parent)
		return failure
	}
	failureKind := types.FailureReadError
	if os.IsPermission(readError) {
		failureKind = types.FailureAccessDenied
	}
	failure := types.PathFailure{Path: entry.path, Kind: failureKind, Detail: readError.Error()}
	entry.failure = &failure
	model.logger.Warn("cannot enumerate directory", zap.String("path", entry.path), zap.Error(readError))
	return failure
}

// ToggleSelection sets the desired state for the entry at entryPath. Files
// flip their explicit mark; directories sweep the state across themselves and
// every currently loaded descendant. Sweeps never touch ignored entries;
// selecting one requires toggling it directly, which also works as the
// explicit override for bundling. Aggregates are recomputed bottom-up and
// along the ancestor chain only.
func (model *Model) ToggleSelection(entryPath string, desired types.SelectionState) error {
	if desired != types.SelectionSelected && desired != types.SelectionUnselected {
		return fmt.Errorf("desired selection must be %s or %s, got %s", types.SelectionSelected, types.SelectionUnselected, desired)
	}
	resolved := model.resolvePath(entryPath)
	entry, exists := model.entries[resolved]
	if !exists {
		return fmt.Errorf("unknown entry %s", resolved)
	}
	model.applySelectionSweep(entry, desired, true)
	model.refreshSubtreeStates(entry)
	model.recomputeAncestors(entry.parent)
	return nil
}

func (model *Model) applySelectionSweep(entry *Entry, desired types.SelectionState, explicitTarget bool) {
	if entry.ignored && !explicitTarget {
		return
	}
	if desired == types.SelectionSelected {
		model.selection.Add(entry.path)
	} else {
		model.selection.Remove(entry.path)
	}
	for _, child := range entry.children {
		model.applySelectionSweep(child, desired, false)
	}
}

// SetSelectionFromPaths bulk-replaces the selection set, for example when an
// external layer restores a persisted selection, then recomputes every
// derived state.
func (model *Model) SetSelectionFromPaths(paths []string) {
	normalizedPaths := make([]string, 0, len(paths))
	for _, path := range paths {
		normalizedPaths = append(normalizedPaths, model.resolvePath(path))
	}
	model.selection.Replace(normalizedPaths)
	model.refreshSubtreeStates(model.root)
}

// MaterializeSelected loads every directory the current selection refers to:
// the ancestor chain of every marked path and the full subtree beneath every
// marked directory. Bundle builds call this before taking their snapshot.
func (model *Model) MaterializeSelected() []types.PathFailure {
	var failures []types.PathFailure
	for _, selectedPath := range model.selection.SortedPaths() {
		if !utils.IsPathWithin(model.rootPath, selectedPath) {
			continue
		}
		failures = append(failures, model.loadAncestorChain(selectedPath)...)
		entry, exists := model.entries[selectedPath]
		if exists && entry.kind == types.EntryKindDirectory {
			failures = append(failures, model.loadSubtree(entry)...)
		}
	}
	return failures
}

func (model *Model) loadAncestorChain(targetPath string) []types.PathFailure {
	relativePath := utils.RelativePathOrSelf(targetPath, model.rootPath)
	if relativePath == "." {
		return nil
	}
	segments := utils.SplitPathSegments(relativePath)
	chain := make([]string, 0, len(segments))
	currentPath := model.rootPath
	chain = append(chain, currentPath)
	for _, segment := range segments[:len(segments)-1] {
		currentPath = currentPath + "/" + segment
		chain = append(chain, currentPath)
	}

	var failures []types.PathFailure
	for _, directoryPath := range chain {
		entry, exists := model.entries[directoryPath]
		if !exists || entry.kind != types.EntryKindDirectory {
			break
		}
		if entry.loaded {
			continue
		}
		loadFailures, loadError := model.LoadChildren(directoryPath)
		failures = append(failures, loadFailures...)
		if loadError != nil {
			break
		}
	}
	return failures
}

// LoadAllUnder enumerates directoryPath and every non-ignored directory
// beneath it. Ignored directories stay collapsed, so a full expansion shows
// exactly what the filter admits.
func (model *Model) LoadAllUnder(directoryPath string) []types.PathFailure {
	entryPath := model.resolvePath(directoryPath)
	entry, exists := model.entries[entryPath]
	if !exists || entry.kind != types.EntryKindDirectory {
		return nil
	}
	return model.loadRecursively(entry)
}

func (model *Model) loadRecursively(entry *Entry) []types.PathFailure {
	failures, loadError := model.LoadChildren(entry.path)
	if loadError != nil {
		return failures
	}
	for _, child := range append([]*Entry(nil), entry.children...) {
		if child.kind != types.EntryKindDirectory || child.ignored {
			continue
		}
		if _, stillKnown := model.entries[child.path]; !stillKnown {
			continue
		}
		failures = append(failures, model.loadRecursively(child)...)
	}
	return failures
}

func (model *Model) loadSubtree(entry *Entry) []types.PathFailure {
	var failures []types.PathFailure
	if !entry.loaded {
		loadFailures, loadError := model.LoadChildren(entry.path)
		failures = append(failures, loadFailures...)
		if loadError != nil {
			return failures
		}
	}
	for _, child := range append([]*Entry(nil), entry.children...) {
		if child.kind != types.EntryKindDirectory {
			continue
		}
		if _, stillKnown := model.entries[child.path]; !stillKnown {
			continue
		}
		if child.ignored && !model.selection.Contains(child.path) {
			continue
		}
		failures = append(failures, model.loadSubtree(child)...)
	}
	return failures
}

// computeEntryState derives the tri-state value of one entry. Files follow
// their explicit mark. Loaded directories follow the aggregate law: Selected
// iff at least one loaded non-ignored child exists and all such children are
// Selected; Unselected iff none of them is Selected or Partial; otherwise
// Partial. Unloaded directories fall back to their own explicit mark until
// enumeration settles them.
func (model *Model) computeEntryState(entry *Entry) types.SelectionState {
	if entry.kind != types.EntryKindDirectory || !entry.loaded {
		if model.selection.Contains(entry.path) {
			return types.SelectionSelected
		}
		return types.SelectionUnselected
	}
	consideredChildren := 0
	selectedChildren := 0
	anySelectedOrPartial := false
	for _, child := range entry.children {
		if child.ignored {
			continue
		}
		consideredChildren++
		switch child.selection {
		case types.SelectionSelected:
			selectedChildren++
			anySelectedOrPartial = true
		case types.SelectionPartial:
			anySelectedOrPartial = true
		}
	}
	if consideredChildren > 0 && selectedChildren == consideredChildren {
		return types.SelectionSelected
	}
	if !anySelectedOrPartial {
		return types.SelectionUnselected
	}
	return types.SelectionPartial
}

// refreshSubtreeStates recomputes derived states bottom-up across a subtree
// that was just mutated.
func (model *Model) refreshSubtreeStates(entry *Entry) {
	for _, child := range entry.children {
		model.refreshSubtreeStates(child)
	}
	entry.selection = model.computeEntryState(entry)
}

// recomputeAncestors walks the parent chain recomputing aggregates, stopping
// early once a recomputation leaves a state unchanged.
func (model *Model) recomputeAncestors(entry *Entry) {
	for current := entry; current != nil; current = current.parent {
		previousState := current.selection
		current.selection = model.computeEntryState(current)
		if current.selection == previousState {
			return
		}
	}
}

// removeEntry detaches an entry and purges its subtree from the index and the
// ignore matcher. The selection set is deliberately left untouched so a
// restored path keeps its mark. The root entry is never detached; it is
// emptied and flagged instead so the failure stays visible.
func (model *Model) removeEntry(entry *Entry) {
	if entry == model.root {
		for _, child := range entry.children {
			model.purgeFromIndex(child)
		}
		entry.children = nil
		entry.loaded = false
		failure := types.PathFailure{Path: entry.path, Kind: types.FailurePathVanished}
		entry.failure = &failure
		entry.selection = model.computeEntryState(entry)
		return
	}
	entry.parent.detachChild(entry)
	model.purgeFromIndex(entry)
	if entry.kind == types.EntryKindDirectory {
		model.matcher.ForgetSubtree(entry.path)
	}
}

func (model *Model) purgeFromIndex(entry *Entry) {
	delete(model.entries, entry.path)
	for _, child := range entry.children {
		model.purgeFromIndex(child)
	}
}
