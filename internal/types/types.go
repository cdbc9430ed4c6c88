// Package types defines every cross-package data structure used by the context engine.
package types

// EntryKind classifies a filesystem entry held by the tree model.
type EntryKind string

const (
	EntryKindFile             EntryKind = "file"
	EntryKindDirectory        EntryKind = "directory"
	EntryKindSymlinkFile      EntryKind = "symlink-file"
	EntryKindSymlinkDirectory EntryKind = "symlink-directory"
	EntryKindMissing          EntryKind = "missing"
)

// IsDirectory reports whether the kind names a directory entry. Symlinked
// directories count as directories for display but are never descended into.
func (kind EntryKind) IsDirectory() bool {
	return kind == EntryKindDirectory || kind == EntryKindSymlinkDirectory
}

// SelectionState is the tri-state selection value of a tree entry.
type SelectionState string

const (
	SelectionUnselected SelectionState = "unselected"
	SelectionSelected   SelectionState = "selected"
	SelectionPartial    SelectionState = "partial"
)

const (
	CommandBundle = "bundle"
	CommandTree   = "tree"
	CommandWatch  = "watch"

	FormatMarkdown = "markdown"
	FormatAsciiDoc = "adoc"
	FormatJSON     = "json"
	FormatTxtar    = "txtar"
)

// Placeholder strings recorded instead of content for files withheld from a bundle.
const (
	PlaceholderTooLarge  = "omitted: too large"
	PlaceholderBinary    = "omitted: binary"
	PlaceholderReadError = "omitted: read error"
)

// FailureKind classifies a per-path failure surfaced by the engine.
type FailureKind string

const (
	FailureAccessDenied           FailureKind = "access-denied"
	FailureNotADirectory          FailureKind = "not-a-directory"
	FailurePathVanished           FailureKind = "path-vanished"
	FailureMalformedIgnorePattern FailureKind = "malformed-ignore-pattern"
	FailureReadTooLarge           FailureKind = "read-too-large"
	FailureReadBinary             FailureKind = "read-binary"
	FailureReadError              FailureKind = "read-error"
	FailureWatchOverflow          FailureKind = "watch-overflow"
)

// PathFailure records a failure scoped to a single path. Failures never abort
// a broader operation; they are attached to entries, load reports and bundle
// records instead.
type PathFailure struct {
	Path   string      `json:"path"`
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
}

// Error renders the failure as "kind: path: detail".
func (failure PathFailure) Error() string {
	if failure.Detail == "" {
		return string(failure.Kind) + ": " + failure.Path
	}
	return string(failure.Kind) + ": " + failure.Path + ": " + failure.Detail
}

// EntryView is an immutable snapshot of one tree entry. Children are sorted
// lexicographically by name and views share no state with the live model.
type EntryView struct {
	Path         string         `json:"path"`
	Name         string         `json:"name"`
	Kind         EntryKind      `json:"kind"`
	Selection    SelectionState `json:"selection"`
	Ignored      bool           `json:"ignored,omitempty"`
	Loaded       bool           `json:"loaded,omitempty"`
	Provisional  bool           `json:"provisional,omitempty"`
	Size         string         `json:"size,omitempty"`
	SizeBytes    int64          `json:"-"`
	LastModified string         `json:"lastModified,omitempty"`
	Failure      *PathFailure   `json:"failure,omitempty"`
	Children     []*EntryView   `json:"children,omitempty"`
}

// BundleRecord is one file captured in a context bundle. Exactly one of
// Content and Placeholder is meaningful: withheld files carry a placeholder
// and empty content. Files withheld as binary also record their detected
// MIME type.
type BundleRecord struct {
	RelativePath string `json:"path"`
	Content      string `json:"content,omitempty"`
	Placeholder  string `json:"placeholder,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
	SizeBytes    int64  `json:"sizeBytes"`
	Tokens       int    `json:"tokens,omitempty"`
	LossyUTF8    bool   `json:"lossyUTF8,omitempty"`
}

// BundleSummary captures aggregate information about the records of a bundle.
type BundleSummary struct {
	TotalFiles  int    `json:"totalFiles"`
	TotalSize   string `json:"totalSize"`
	TotalTokens int    `json:"totalTokens,omitempty"`
	Model       string `json:"model,omitempty"`
}

// Bundle is the deterministic product of a build pass: records in depth-first
// pre-order plus the selected portion of the tree snapshot they came from.
// Identical snapshots and options yield byte-identical rendered bundles.
type Bundle struct {
	Root     string          `json:"root"`
	Tree     *EntryView      `json:"tree,omitempty"`
	Records  []*BundleRecord `json:"files"`
	Failures []PathFailure   `json:"failures,omitempty"`
	Summary  *BundleSummary  `json:"summary,omitempty"`
}

// ChangeNotification reports the roots affected by one applied change batch.
type ChangeNotification struct {
	Roots []string `json:"roots"`
}
