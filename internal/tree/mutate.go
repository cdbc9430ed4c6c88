package tree

import (
	"os"
	"strings"

	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/utils"
)

// The Apply* operations are the change-application half of the model, driven
// by the workspace when watch batches arrive. They mutate topology while
// leaving the selection set untouched, which is what lets a removed-then-
// recreated path come back with its prior selection.

// ApplyCreated inserts an entry for a newly observed path when its parent is
// known and enumerated. Events under unloaded parents are dropped: the path
// will be discovered when the parent loads. An already known path is treated
// as modified.
func (model *Model) ApplyCreated(createdPath string) []types.PathFailure {
	resolved := model.resolvePath(createdPath)
	if resolved == model.rootPath || !utils.IsPathWithin(model.rootPath, resolved) {
		return nil
	}
	if _, alreadyKnown := model.entries[resolved]; alreadyKnown {
		return model.ApplyModified(resolved)
	}
	parent, parentKnown := model.entries[parentPathOf(resolved)]
	if !parentKnown || !parent.loaded || parent.kind != types.EntryKindDirectory {
		return nil
	}

	kind, info, classifyError := classifyPath(resolved)
	if classifyError != nil {
		if os.IsNotExist(classifyError) {
			return nil
		}
		return []types.PathFailure{{Path: resolved, Kind: types.FailureReadError, Detail: classifyError.Error()}}
	}

	child := newChildEntry(parent, baseNameOf(resolved), kind, info)
	parent.children = append(parent.children, child)
	parent.sortChildren()
	model.entries[resolved] = child
	child.ignored = model.matcher.IsExcluded(resolved, kind.IsDirectory())
	if model.selection.Contains(parent.path) && !child.ignored {
		model.selection.Add(child.path)
	}
	child.selection = model.computeEntryState(child)
	model.recomputeAncestors(parent)
	return nil
}

// ApplyModified refreshes the metadata of a known entry. When the kind
// changed a different filesystem object owns the path now, so the entry is
// replaced wholesale; when the path is gone the event degrades to a removal.
func (model *Model) ApplyModified(modifiedPath string) []types.PathFailure {
	resolved := model.resolvePath(modifiedPath)
	entry, known := model.entries[resolved]
	if !known {
		return model.ApplyCreated(resolved)
	}
	if entry == model.root {
		return nil
	}

	kind, info, classifyError := classifyPath(resolved)
	if classifyError != nil {
		if os.IsNotExist(classifyError) {
			return model.ApplyRemoved(resolved)
		}
		failure := types.PathFailure{Path: resolved, Kind: types.FailureReadError, Detail: classifyError.Error()}
		entry.failure = &failure
		return []types.PathFailure{failure}
	}
	if kind != entry.kind {
		parent := entry.parent
		model.removeEntry(entry)
		model.recomputeAncestors(parent)
		return model.ApplyCreated(resolved)
	}
	entry.sizeBytes = info.Size()
	entry.modTime = info.ModTime()
	entry.failure = nil
	return nil
}

// ApplyRemoved deletes the entry at removedPath. Its selection mark survives
// in the selection set, so recreating the path restores the prior selection.
func (model *Model) ApplyRemoved(removedPath string) []types.PathFailure {
	resolved := model.resolvePath(removedPath)
	entry, known := model.entries[resolved]
	if !known {
		return nil
	}
	parent := entry.parent
	model.removeEntry(entry)
	if entry == model.root {
		return []types.PathFailure{{Path: resolved, Kind: types.FailurePathVanished, Detail: "workspace root removed"}}
	}
	model.recomputeAncestors(parent)
	return nil
}

// RefreshIgnoredUnder re-evaluates the ignored flag of every loaded entry
// beneath directoryPath after its rule set changed, then recomputes the
// affected aggregates. Entries that lose their ignored flag do not inherit
// any ancestor's selection retroactively; only enumeration-time discovery
// inherits.
func (model *Model) RefreshIgnoredUnder(directoryPath string) {
	resolved := model.resolvePath(directoryPath)
	entry, known := model.entries[resolved]
	if !known || entry.kind != types.EntryKindDirectory {
		return
	}
	model.refreshIgnoredFlags(entry)
	model.refreshSubtreeStates(entry)
	model.recomputeAncestors(entry.parent)
}

func (model *Model) refreshIgnoredFlags(entry *Entry) {
	for _, child := range entry.children {
		child.ignored = model.matcher.IsExcluded(child.path, child.kind.IsDirectory())
		model.refreshIgnoredFlags(child)
	}
}

// ResyncLoaded re-enumerates every already loaded directory at or beneath
// resyncPath, diffing against existing entries so identity and selection
// survive. The lazy frontier is preserved: directories never expanded stay
// unexpanded. Used when watch overflow makes incremental events
// untrustworthy.
func (model *Model) ResyncLoaded(resyncPath string) []types.PathFailure {
	resolved := model.resolvePath(resyncPath)
	entry, known := model.entries[resolved]
	if !known || entry.kind != types.EntryKindDirectory {
		return nil
	}
	var loadedDirectories []string
	collectLoadedDirectories(entry, &loadedDirectories)

	var failures []types.PathFailure
	for _, directoryPath := range loadedDirectories {
		if _, stillKnown := model.entries[directoryPath]; !stillKnown {
			continue
		}
		loadFailures, loadError := model.LoadChildren(directoryPath)
		failures = append(failures, loadFailures...)
		if loadError != nil {
			failures = append(failures, types.PathFailure{Path: directoryPath, Kind: types.FailureReadError, Detail: loadError.Error()})
		}
	}
	return failures
}

func collectLoadedDirectories(entry *Entry, accumulator *[]string) {
	if entry.kind != types.EntryKindDirectory || !entry.loaded {
		return
	}
	*accumulator = append(*accumulator, entry.path)
	for _, child := range entry.children {
		collectLoadedDirectories(child, accumulator)
	}
}

func parentPathOf(path string) string {
	separatorIndex := strings.LastIndex(path, "/")
	if separatorIndex <= 0 {
		return "/"
	}
	return path[:separatorIndex]
}

func baseNameOf(path string) string {
	separatorIndex := strings.LastIndex(path, "/")
	return path[separatorIndex+1:]
}
