package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NikolayBobovnikov/context-manager/internal/bundle"
	"github.com/NikolayBobovnikov/context-manager/internal/ignore"
	"github.com/NikolayBobovnikov/context-manager/internal/output"
	"github.com/NikolayBobovnikov/context-manager/internal/services/clipboard"
	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/utils"
	"github.com/NikolayBobovnikov/context-manager/internal/workspace"
)

const (
	selectPatternOrigin      = "--" + selectFlagName
	noSelectionMatchMessage  = "selection matched no files"
	clipboardCopyErrorFormat = "clipboard copy failed: %w"
	bundleWrittenFormat      = "wrote %s (%s)\n"
	copiedToClipboardMessage = "copied to clipboard\n"
	pathFailureLogMessage    = "path skipped"
	bundleWrittenLogMessage  = "bundle written"
	bundleCleanLogMessage    = "bundle unchanged"
	watchingLogMessage       = "watching workspace"
	rebuildFailedLogMessage  = "bundle rebuild failed"
)

func openWorkspace(settings *runSettings) (*workspace.Workspace, error) {
	opened, failures, openError := workspace.Open(settings.rootPath, workspace.Options{
		UseRuleFiles:  settings.useRuleFiles,
		ExtraPatterns: settings.extraPatterns,
		Debounce:      settings.debounce,
		Logger:        settings.logger,
	})
	if openError != nil {
		return nil, openError
	}
	logPathFailures(settings.logger, failures)
	return opened, nil
}

func logPathFailures(logger *zap.Logger, failures []types.PathFailure) {
	for _, failure := range failures {
		logger.Warn(pathFailureLogMessage,
			zap.String("path", failure.Path),
			zap.String("kind", string(failure.Kind)),
			zap.String("detail", failure.Detail),
		)
	}
}

// applySelection loads the whole visible tree and replaces the explicit
// selection with every file the patterns match; selectAll marks every
// visible file. The bundle output file itself is never selected, so a watch
// rebuild cannot fold the previous bundle into the next one.
func applySelection(opened *workspace.Workspace, settings *runSettings) error {
	logPathFailures(settings.logger, opened.LoadAll())
	var matcher gitignore.Matcher
	if !settings.selectAll {
		patterns, patternFailures := ignore.ParsePatternLines(settings.selectPatterns, nil, selectPatternOrigin)
		if len(patternFailures) > 0 {
			return patternFailures[0]
		}
		matcher = gitignore.NewMatcher(patterns)
	}
	snapshot := opened.Snapshot()
	selected := collectSelectablePaths(snapshot.Root(), settings.rootPath, matcher, settings.outputPath, nil)
	opened.SetSelectionFromPaths(selected)
	return nil
}

// collectSelectablePaths walks the view and returns every plain file the
// matcher accepts. Ignored subtrees never contribute; a nil matcher accepts
// everything; excludedPath names the output file to leave unselected.
func collectSelectablePaths(view *types.EntryView, rootPath string, matcher gitignore.Matcher, excludedPath string, collected []string) []string {
	if view == nil || view.Ignored {
		return collected
	}
	if view.Kind == types.EntryKindFile {
		if view.Path == excludedPath {
			return collected
		}
		if matcher == nil || matcher.Match(relativeSegments(rootPath, view.Path), false) {
			collected = append(collected, view.Path)
		}
		return collected
	}
	for _, child := range view.Children {
		collected = collectSelectablePaths(child, rootPath, matcher, excludedPath, collected)
	}
	return collected
}

func relativeSegments(rootPath, fullPath string) []string {
	return utils.SplitPathSegments(utils.RelativePathOrSelf(fullPath, rootPath))
}

func buildAndRender(ctx context.Context, opened *workspace.Workspace, settings *runSettings) (*types.Bundle, string, error) {
	snapshot, failures := opened.BuildSnapshot()
	logPathFailures(settings.logger, failures)
	assembled, buildError := bundle.Build(ctx, snapshot, bundle.Options{
		SizeCeiling: settings.maxFileSize,
		ReadTimeout: settings.readTimeout,
		SniffLength: settings.sniffLength,
		Counter:     settings.counter,
		Logger:      settings.logger,
	})
	if buildError != nil {
		return nil, "", buildError
	}
	rendered, renderError := bundle.Render(assembled, settings.format)
	if renderError != nil {
		return nil, "", renderError
	}
	return assembled, rendered, nil
}

func formatBundleSummary(assembled *types.Bundle) string {
	if assembled == nil || assembled.Summary == nil {
		return ""
	}
	summary := assembled.Summary
	description := fmt.Sprintf("%d file(s), %s", summary.TotalFiles, summary.TotalSize)
	if summary.Model != "" {
		description = fmt.Sprintf("%s, %d %s tokens", description, summary.TotalTokens, summary.Model)
	}
	return description
}

func runBundle(ctx context.Context, settings *runSettings, copier clipboard.Copier) error {
	opened, openError := openWorkspace(settings)
	if openError != nil {
		return openError
	}
	defer func() { _ = opened.Close() }()
	if selectionError := applySelection(opened, settings); selectionError != nil {
		return selectionError
	}
	if len(opened.SelectedPaths()) == 0 {
		return errors.New(noSelectionMatchMessage)
	}
	assembled, rendered, buildError := buildAndRender(ctx, opened, settings)
	if buildError != nil {
		return buildError
	}
	if writeError := bundle.WriteAtomic(settings.outputPath, rendered); writeError != nil {
		return writeError
	}
	fmt.Printf(bundleWrittenFormat, settings.outputPath, formatBundleSummary(assembled))
	if settings.copyToClipboard {
		if copyError := copier.Copy(rendered); copyError != nil {
			return fmt.Errorf(clipboardCopyErrorFormat, copyError)
		}
		fmt.Print(copiedToClipboardMessage)
	}
	return nil
}

func runTree(settings *runSettings, outputFormat string) error {
	if formatError := validateTreeFormat(outputFormat); formatError != nil {
		return formatError
	}
	opened, openError := openWorkspace(settings)
	if openError != nil {
		return openError
	}
	defer func() { _ = opened.Close() }()
	if settings.selectAll || len(settings.selectPatterns) > 0 {
		if selectionError := applySelection(opened, settings); selectionError != nil {
			return selectionError
		}
	} else {
		logPathFailures(settings.logger, opened.LoadAll())
	}
	snapshot := opened.Snapshot()
	switch outputFormat {
	case types.FormatJSON:
		renderedJSON, renderError := output.RenderTreeJSON(snapshot.Root())
		if renderError != nil {
			return renderError
		}
		fmt.Println(renderedJSON)
	default:
		fmt.Print(output.RenderTreeText(snapshot.Root()))
	}
	return nil
}

// runWatch builds the bundle once, then rebuilds after every settled change
// batch until the context is canceled or an interrupt arrives. Selection is
// re-applied before each rebuild so files created after startup are matched,
// and an unchanged rendering skips the write to keep the event loop quiet.
func runWatch(ctx context.Context, settings *runSettings) error {
	signalContext, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	opened, openError := openWorkspace(settings)
	if openError != nil {
		return openError
	}
	defer func() { _ = opened.Close() }()

	lastRendered := ""
	rebuild := func(rebuildContext context.Context) error {
		if selectionError := applySelection(opened, settings); selectionError != nil {
			return selectionError
		}
		assembled, rendered, buildError := buildAndRender(rebuildContext, opened, settings)
		if buildError != nil {
			return buildError
		}
		if rendered == lastRendered {
			settings.logger.Debug(bundleCleanLogMessage, zap.String("output", settings.outputPath))
			return nil
		}
		if writeError := bundle.WriteAtomic(settings.outputPath, rendered); writeError != nil {
			return writeError
		}
		lastRendered = rendered
		settings.logger.Info(bundleWrittenLogMessage,
			zap.String("output", settings.outputPath),
			zap.String("summary", formatBundleSummary(assembled)),
		)
		return nil
	}
	if initialError := rebuild(signalContext); initialError != nil {
		return initialError
	}
	if watchError := opened.StartWatching(); watchError != nil {
		return watchError
	}
	settings.logger.Info(watchingLogMessage,
		zap.String("root", settings.rootPath),
		zap.String("output", settings.outputPath),
	)

	group, groupContext := errgroup.WithContext(signalContext)
	group.Go(func() error {
		return opened.Run(groupContext)
	})
	group.Go(func() error {
		for {
			select {
			case <-groupContext.Done():
				return groupContext.Err()
			case <-opened.Notifications():
				if rebuildError := rebuild(groupContext); rebuildError != nil {
					if errors.Is(rebuildError, context.Canceled) {
						return rebuildError
					}
					settings.logger.Error(rebuildFailedLogMessage, zap.Error(rebuildError))
				}
			}
		}
	})
	waitError := group.Wait()
	if waitError != nil && !errors.Is(waitError, context.Canceled) {
		return waitError
	}
	return nil
}
