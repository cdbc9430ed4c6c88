// Package bundle assembles deterministic context bundles from tree snapshots.
//
// A bundle captures every selected file of a snapshot in depth-first
// pre-order, reads each one within configurable limits, and renders the
// result to one of the supported output formats. Identical snapshots and
// options yield byte-identical bundle text.
package bundle

import (
	"context"
	"errors"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/NikolayBobovnikov/context-manager/internal/tokenizer"
	"github.com/NikolayBobovnikov/context-manager/internal/tree"
	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/utils"
)

const (
	// DefaultSizeCeiling bounds how many bytes of one file a bundle carries.
	DefaultSizeCeiling int64 = 1 << 20
	// DefaultReadTimeout bounds how long one file read may take, so FIFOs and
	// stalled network mounts cannot hang a build.
	DefaultReadTimeout = 5 * time.Second
)

// Options tunes a build pass. Zero values fall back to the package defaults.
type Options struct {
	// SizeCeiling withholds files larger than this many bytes.
	SizeCeiling int64
	// ReadTimeout bounds each file read.
	ReadTimeout time.Duration
	// SniffLength is the number of leading bytes inspected for binary content.
	SniffLength int
	// Counter, when set, adds token counts to records and the summary.
	Counter tokenizer.Counter
	// Logger reports per-file problems. Defaults to a no-op logger.
	Logger *zap.Logger
}

func (options Options) withDefaults() Options {
	if options.SizeCeiling <= 0 {
		options.SizeCeiling = DefaultSizeCeiling
	}
	if options.ReadTimeout <= 0 {
		options.ReadTimeout = DefaultReadTimeout
	}
	if options.SniffLength <= 0 {
		options.SniffLength = utils.DefaultBinarySniffLength
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return options
}

// Build assembles a bundle from the snapshot. Records appear in depth-first
// pre-order over the already-sorted snapshot, so repeated builds over the
// same snapshot and options produce identical bundles. Per-file problems
// become placeholder records and failures; they never abort the build.
func Build(ctx context.Context, snapshot *tree.Snapshot, options Options) (*types.Bundle, error) {
	if snapshot == nil {
		return nil, errors.New("building bundle: nil snapshot")
	}
	options = options.withDefaults()
	rootView := snapshot.Root()
	fileViews := selectedFiles(rootView, nil)

	assembled := &types.Bundle{
		Root:    snapshot.RootPath(),
		Records: make([]*types.BundleRecord, 0, len(fileViews)),
	}
	includedPaths := map[string]struct{}{rootView.Path: {}}
	var totalBytes int64
	totalTokens := 0
	for _, fileView := range fileViews {
		if contextError := ctx.Err(); contextError != nil {
			return nil, contextError
		}
		record, failure := options.buildRecord(ctx, snapshot.RootPath(), fileView)
		assembled.Records = append(assembled.Records, record)
		if failure != nil {
			assembled.Failures = append(assembled.Failures, *failure)
		}
		markIncluded(includedPaths, snapshot.RootPath(), fileView.Path)
		totalBytes += record.SizeBytes
		totalTokens += record.Tokens
	}
	assembled.Tree = pruneToIncluded(rootView, includedPaths)
	summary := &types.BundleSummary{
		TotalFiles: len(assembled.Records),
		TotalSize:  utils.FormatFileSize(totalBytes),
	}
	if options.Counter != nil {
		summary.TotalTokens = totalTokens
		summary.Model = options.Counter.Name()
	}
	assembled.Summary = summary
	return assembled, nil
}

// selectedFiles collects file views with a selected state in depth-first
// pre-order. Ignored files only appear here when an explicit override marked
// them, because derived selection already excludes the rest. Symlinks are
// never followed, so symlinked files stay out of bundles.
func selectedFiles(node *types.EntryView, collected []*types.EntryView) []*types.EntryView {
	if node.Kind == types.EntryKindFile && node.Selection == types.SelectionSelected {
		collected = append(collected, node)
	}
	for _, child := range node.Children {
		collected = selectedFiles(child, collected)
	}
	return collected
}

// markIncluded records filePath and every ancestor up to the workspace root
// in the included set.
func markIncluded(included map[string]struct{}, rootPath string, filePath string) {
	for current := filePath; ; current = path.Dir(current) {
		if _, alreadyIncluded := included[current]; alreadyIncluded {
			return
		}
		included[current] = struct{}{}
		if current == rootPath || current == path.Dir(current) {
			return
		}
	}
}

// pruneToIncluded copies the subtree spanned by the included paths. The root
// always survives, so an empty bundle still renders a structure tree.
func pruneToIncluded(view *types.EntryView, included map[string]struct{}) *types.EntryView {
	pruned := *view
	pruned.Children = nil
	for _, child := range view.Children {
		if _, keep := included[child.Path]; !keep {
			continue
		}
		pruned.Children = append(pruned.Children, pruneToIncluded(child, included))
	}
	return &pruned
}
