// Package workspace ties the ignore matcher, the tree model and the
// filesystem watcher together behind one serialized facade. The model is not
// concurrency-safe, so every operation below takes the workspace mutex; the
// watch loop applies its batches through the same lock.
package workspace

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/NikolayBobovnikov/context-manager/internal/ignore"
	"github.com/NikolayBobovnikov/context-manager/internal/tree"
	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/watch"
)

// Options configures a workspace.
type Options struct {
	// UseRuleFiles enables per-directory .gitignore loading.
	UseRuleFiles bool
	// ExtraPatterns are configured ignore lines applied after every rule file.
	ExtraPatterns []string
	// Debounce is the watch batching window; zero means watch.DefaultDebounce.
	Debounce time.Duration
	Logger   *zap.Logger
}

// Workspace owns the live tree of one root directory.
type Workspace struct {
	mutex    sync.Mutex
	rootPath string
	matcher  *ignore.Matcher
	model    *tree.Model
	watcher  *watch.Watcher
	logger   *zap.Logger
	debounce time.Duration

	notifications chan types.ChangeNotification
}

// Open builds the matcher and model for rootPath. Pattern failures from the
// root rule file are reported but never abort the open.
func Open(rootPath string, options Options) (*Workspace, []types.PathFailure, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	matcher, failures := ignore.NewMatcher(rootPath, ignore.Options{
		UseRuleFiles:  options.UseRuleFiles,
		ExtraPatterns: options.ExtraPatterns,
		Logger:        logger,
	})
	model, modelError := tree.NewModel(matcher.RootPath(), matcher, logger)
	if modelError != nil {
		return nil, failures, modelError
	}
	workspace := &Workspace{
		rootPath:      model.RootPath(),
		matcher:       matcher,
		model:         model,
		logger:        logger,
		debounce:      options.Debounce,
		notifications: make(chan types.ChangeNotification, 1),
	}
	return workspace, failures, nil
}

// RootPath returns the normalized workspace root.
func (workspace *Workspace) RootPath() string {
	return workspace.rootPath
}

// Snapshot returns an immutable copy of the current tree.
func (workspace *Workspace) Snapshot() *tree.Snapshot {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	return workspace.model.Snapshot()
}

// LoadChildren enumerates one directory and, when a watcher is running, arms
// it so changes inside are observed.
func (workspace *Workspace) LoadChildren(directoryPath string) ([]types.PathFailure, error) {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	failures, loadError := workspace.model.LoadChildren(directoryPath)
	if loadError == nil {
		workspace.armLoadedDirsLocked()
	}
	return failures, loadError
}

// LoadAll expands the whole non-ignored tree, as the tree rendering needs.
func (workspace *Workspace) LoadAll() []types.PathFailure {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	failures := workspace.model.LoadAllUnder(workspace.rootPath)
	workspace.armLoadedDirsLocked()
	return failures
}

// ToggleSelection applies the desired state to one entry.
func (workspace *Workspace) ToggleSelection(entryPath string, desired types.SelectionState) error {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	return workspace.model.ToggleSelection(entryPath, desired)
}

// SetSelectionFromPaths bulk-replaces the explicit selection marks.
func (workspace *Workspace) SetSelectionFromPaths(paths []string) {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	workspace.model.SetSelectionFromPaths(paths)
}

// SelectedPaths returns the explicit marks in lexicographic order.
func (workspace *Workspace) SelectedPaths() []string {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	return workspace.model.SelectedPaths()
}

// BuildSnapshot materializes every selected subtree and returns the snapshot
// a bundle build reads from, together with the failures the materialization
// surfaced. File contents are read outside the lock.
func (workspace *Workspace) BuildSnapshot() (*tree.Snapshot, []types.PathFailure) {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	failures := workspace.model.MaterializeSelected()
	workspace.armLoadedDirsLocked()
	return workspace.model.Snapshot(), failures
}

// Close stops the watcher if one is running.
func (workspace *Workspace) Close() error {
	workspace.mutex.Lock()
	watcher := workspace.watcher
	workspace.mutex.Unlock()
	if watcher == nil {
		return nil
	}
	return watcher.Close()
}

// armLoadedDirsLocked points the watcher at every loaded directory. Arming is
// idempotent, so walking the whole tree after a load or resync is safe.
func (workspace *Workspace) armLoadedDirsLocked() {
	if workspace.watcher == nil {
		return
	}
	workspace.armSubtree(workspace.model.Snapshot().Root())
}

func (workspace *Workspace) armSubtree(view *types.EntryView) {
	if view == nil || view.Kind != types.EntryKindDirectory || !view.Loaded {
		return
	}
	if armError := workspace.watcher.Arm(view.Path); armError != nil {
		workspace.logger.Warn("cannot watch directory", zap.String("path", view.Path), zap.Error(armError))
	}
	for _, child := range view.Children {
		workspace.armSubtree(child)
	}
}
