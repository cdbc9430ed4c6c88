// Package output renders tree snapshots for command line consumption.
package output

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/NikolayBobovnikov/context-manager/internal/types"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "

	selectedMarker   = "[x]"
	partialMarker    = "[~]"
	unselectedMarker = "[ ]"

	directorySuffix   = "/"
	symlinkSuffix     = "@"
	ignoredAnnotation = "ignored"

	markerSeparator     = " "
	detailSeparator     = "  "
	annotationOpen      = "("
	annotationClose     = ")"
	annotationSeparator = ", "
	lineBreak           = "\n"
)

// RenderTreeText renders the tree as ASCII art with a tri-state selection
// marker per row. Files carry their size and modification time; ignored
// entries and enumeration failures are annotated instead of hidden.
func RenderTreeText(root *types.EntryView) string {
	var buffer bytes.Buffer
	writeTreeNode(&buffer, root, indentPrefix, true, true)
	return buffer.String()
}

// RenderTreeJSON marshals the tree with every snapshot field intact.
func RenderTreeJSON(root *types.EntryView) (string, error) {
	encoded, jsonEncodeError := json.MarshalIndent(root, indentPrefix, indentSpacer)
	if jsonEncodeError != nil {
		return "", jsonEncodeError
	}
	return string(encoded), nil
}

func writeTreeNode(buffer *bytes.Buffer, view *types.EntryView, prefix string, isRoot bool, isLast bool) {
	linePrefix, childPrefix := treeNodeLinePrefix(prefix, isRoot, isLast)
	buffer.WriteString(linePrefix)
	buffer.WriteString(selectionMarker(view.Selection))
	buffer.WriteString(markerSeparator)
	buffer.WriteString(entryLabel(view))
	buffer.WriteString(lineBreak)
	for childIndex, child := range view.Children {
		writeTreeNode(buffer, child, childPrefix, false, childIndex == len(view.Children)-1)
	}
}

// treeNodeLinePrefix derives the prefix of the node's own line and the prefix
// its children build on.
func treeNodeLinePrefix(prefix string, isRoot bool, isLast bool) (string, string) {
	if isRoot {
		return prefix, prefix
	}
	if isLast {
		return prefix + treeLastConnector, prefix + treeLastPadding
	}
	return prefix + treeBranchConnector, prefix + treeBranchPadding
}

func selectionMarker(state types.SelectionState) string {
	switch state {
	case types.SelectionSelected:
		return selectedMarker
	case types.SelectionPartial:
		return partialMarker
	default:
		return unselectedMarker
	}
}

// entryLabel builds the display name of one row: the entry name with a kind
// suffix, followed by file details and annotations in one bracket group.
func entryLabel(view *types.EntryView) string {
	label := view.Name
	switch view.Kind {
	case types.EntryKindDirectory:
		label += directorySuffix
	case types.EntryKindSymlinkFile, types.EntryKindSymlinkDirectory:
		label += symlinkSuffix
	}
	details := make([]string, 0, 4)
	if view.Size != "" {
		details = append(details, view.Size)
	}
	if view.LastModified != "" {
		details = append(details, view.LastModified)
	}
	if view.Ignored {
		details = append(details, ignoredAnnotation)
	}
	if view.Failure != nil {
		details = append(details, string(view.Failure.Kind))
	}
	if len(details) == 0 {
		return label
	}
	return label + detailSeparator + annotationOpen + strings.Join(details, annotationSeparator) + annotationClose
}
