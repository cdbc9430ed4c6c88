package workspace

import (
	"context"
	"errors"
	"path"
	"sort"

	"go.uber.org/zap"

	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/utils"
	"github.com/NikolayBobovnikov/context-manager/internal/watch"
)

// StartWatching arms a filesystem watcher over the workspace root and every
// already loaded directory. Call Run afterwards to consume its batches.
func (workspace *Workspace) StartWatching() error {
	workspace.mutex.Lock()
	defer workspace.mutex.Unlock()
	if workspace.watcher != nil {
		return nil
	}
	watcher, watchError := watch.NewWatcher(workspace.rootPath, watch.Options{
		Debounce: workspace.debounce,
		Logger:   workspace.logger,
	})
	if watchError != nil {
		return watchError
	}
	workspace.watcher = watcher
	workspace.armLoadedDirsLocked()
	return nil
}

// Notifications reports, once per applied batch, the roots whose subtrees
// changed. Delivery never blocks batch application; when a notification is
// already pending the new one is folded into it by being dropped.
func (workspace *Workspace) Notifications() <-chan types.ChangeNotification {
	return workspace.notifications
}

// Run consumes watch batches until the context is canceled or the watcher
// stops. StartWatching must have been called first. Per-path failures from
// applied batches are logged; they never stop the loop.
func (workspace *Workspace) Run(ctx context.Context) error {
	workspace.mutex.Lock()
	watcher := workspace.watcher
	workspace.mutex.Unlock()
	if watcher == nil {
		return errors.New("watcher not started")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, open := <-watcher.Batches():
			if !open {
				return nil
			}
			for _, failure := range workspace.ApplyBatch(batch) {
				workspace.logger.Warn("change not fully applied",
					zap.String("path", failure.Path),
					zap.String("kind", string(failure.Kind)),
					zap.String("detail", failure.Detail))
			}
		}
	}
}

// ApplyBatch applies one coalesced change batch to the model and returns the
// per-path failures it surfaced. A change to a rule file reloads the owning
// directory's rules and re-evaluates the flags beneath it before the entry
// level change lands, so the rule file's own tree entry stays accurate too.
func (workspace *Workspace) ApplyBatch(batch watch.Batch) []types.PathFailure {
	workspace.mutex.Lock()
	var failures []types.PathFailure
	changedRoots := make(map[string]struct{})

	for _, event := range batch.Events {
		if event.Kind == watch.EventResync {
			failures = append(failures, types.PathFailure{
				Path:   event.Path,
				Kind:   types.FailureWatchOverflow,
				Detail: "notifications lost; subtree re-enumerated",
			})
			failures = append(failures, workspace.model.ResyncLoaded(event.Path)...)
			workspace.armLoadedDirsLocked()
			changedRoots[event.Path] = struct{}{}
			continue
		}
		if path.Base(event.Path) == utils.GitIgnoreFileName {
			ruleDirectory := path.Dir(event.Path)
			failures = append(failures, workspace.matcher.ReloadDirectory(ruleDirectory)...)
			workspace.model.RefreshIgnoredUnder(ruleDirectory)
			changedRoots[ruleDirectory] = struct{}{}
		}
		switch event.Kind {
		case watch.EventCreated:
			failures = append(failures, workspace.model.ApplyCreated(event.Path)...)
		case watch.EventModified:
			failures = append(failures, workspace.model.ApplyModified(event.Path)...)
		case watch.EventRemoved:
			if workspace.watcher != nil {
				workspace.watcher.Disarm(event.Path)
			}
			failures = append(failures, workspace.model.ApplyRemoved(event.Path)...)
		}
		changedRoots[path.Dir(event.Path)] = struct{}{}
	}
	workspace.mutex.Unlock()

	if len(changedRoots) > 0 {
		roots := make([]string, 0, len(changedRoots))
		for root := range changedRoots {
			roots = append(roots, root)
		}
		sort.Strings(roots)
		select {
		case workspace.notifications <- types.ChangeNotification{Roots: roots}:
		default:
		}
	}
	return failures
}
