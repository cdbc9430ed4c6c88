// Package ignore implements hierarchical gitignore-style filtering for the
// workspace tree. One rule set exists per known directory; decisions compose
// the rule sets from the workspace root down to the target's parent, so
// deeper rule files and later lines take precedence and negation re-includes.
// Decisions are cached per path and revalidated against the identity and
// version of every rule set that contributed to them.
package ignore

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"go.uber.org/zap"

	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/utils"
)

// configuredPatternOrigin labels failures from patterns supplied through
// configuration or flags rather than a rule file on disk.
const configuredPatternOrigin = "extra-patterns"

// Options configures a Matcher.
type Options struct {
	// UseRuleFiles enables reading the per-directory rule files. When false
	// only ExtraPatterns apply.
	UseRuleFiles bool
	// ExtraPatterns apply everywhere and are composed after every rule file,
	// giving them precedence over all of them.
	ExtraPatterns []string
	Logger        *zap.Logger
}

type ruleSet struct {
	identity  int64
	version   int64
	directory string
	domain    []string
	patterns  []gitignore.Pattern
}

type ruleStamp struct {
	directory string
	identity  int64
	version   int64
}

type decisionKey struct {
	relativePath string
	isDirectory  bool
}

type cachedDecision struct {
	excluded bool
	stamps   []ruleStamp
}

// Matcher decides which workspace paths are excluded. It is not safe for
// concurrent use; the workspace serializes every call.
type Matcher struct {
	rootPath      string
	useRuleFiles  bool
	extraPatterns []gitignore.Pattern
	ruleSets      map[string]*ruleSet
	decisions     map[decisionKey]cachedDecision
	nextIdentity  int64
	logger        *zap.Logger
}

// NewMatcher builds a Matcher rooted at rootPath and loads the root rule set.
// Malformed extra patterns and root rule lines are reported as failures and
// skipped.
func NewMatcher(rootPath string, options Options) (*Matcher, []types.PathFailure) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	extraPatterns, failures := ParsePatternLines(options.ExtraPatterns, nil, configuredPatternOrigin)
	matcher := &Matcher{
		rootPath:      normalizePath(rootPath),
		useRuleFiles:  options.UseRuleFiles,
		extraPatterns: extraPatterns,
		ruleSets:      make(map[string]*ruleSet),
		decisions:     make(map[decisionKey]cachedDecision),
		logger:        logger,
	}
	failures = append(failures, matcher.RegisterDirectory(matcher.rootPath)...)
	return matcher, failures
}

// RootPath returns the normalized workspace root the matcher is bound to.
func (matcher *Matcher) RootPath() string {
	return matcher.rootPath
}

// RegisterDirectory makes directoryPath a known rule source and loads its
// rule file. Registering an already known directory is a no-op.
func (matcher *Matcher) RegisterDirectory(directoryPath string) []types.PathFailure {
	normalized := normalizePath(directoryPath)
	if _, exists := matcher.ruleSets[normalized]; exists {
		return nil
	}
	_, failures := matcher.ensureRuleSet(normalized)
	return failures
}

// ReloadDirectory re-reads the rule file of directoryPath and bumps the rule
// set version so cached decisions depending on it are recomputed.
func (matcher *Matcher) ReloadDirectory(directoryPath string) []types.PathFailure {
	normalized := normalizePath(directoryPath)
	set, exists := matcher.ruleSets[normalized]
	if !exists {
		return matcher.RegisterDirectory(normalized)
	}
	return matcher.reload(set)
}

// ForgetSubtree drops the rule sets of directoryPath and everything beneath
// it, along with the cached decisions for those paths. Used when a directory
// leaves the tree.
func (matcher *Matcher) ForgetSubtree(directoryPath string) {
	normalized := normalizePath(directoryPath)
	if normalized == matcher.rootPath {
		return
	}
	for directory := range matcher.ruleSets {
		if utils.IsPathWithin(normalized, directory) {
			delete(matcher.ruleSets, directory)
		}
	}
	relativeRoot := utils.RelativePathOrSelf(normalized, matcher.rootPath)
	for key := range matcher.decisions {
		if key.relativePath == relativeRoot || strings.HasPrefix(key.relativePath, relativeRoot+"/") {
			delete(matcher.decisions, key)
		}
	}
}

// IsExcluded reports whether the entry at absolutePath is filtered out. The
// workspace root itself is never excluded.
func (matcher *Matcher) IsExcluded(absolutePath string, isDirectory bool) bool {
	normalized := normalizePath(absolutePath)
	relativePath := utils.RelativePathOrSelf(normalized, matcher.rootPath)
	if relativePath == "." {
		return false
	}
	key := decisionKey{relativePath: relativePath, isDirectory: isDirectory}
	if cached, exists := matcher.decisions[key]; exists && matcher.stampsCurrent(cached.stamps) {
		return cached.excluded
	}
	segments := utils.SplitPathSegments(relativePath)
	patterns, stamps := matcher.composePatterns(segments)
	excluded := gitignore.NewMatcher(patterns).Match(segments, isDirectory)
	matcher.decisions[key] = cachedDecision{excluded: excluded, stamps: stamps}
	return excluded
}

// composePatterns concatenates the rule sets of every directory from the root
// to the target's parent, root first, then the configured extra patterns.
// Directories not seen before are registered on the spot so the returned
// stamps cover every contributor.
func (matcher *Matcher) composePatterns(segments []string) ([]gitignore.Pattern, []ruleStamp) {
	directories := make([]string, 0, len(segments))
	directories = append(directories, matcher.rootPath)
	currentDirectory := matcher.rootPath
	for _, segment := range segments[:len(segments)-1] {
		currentDirectory = currentDirectory + "/" + segment
		directories = append(directories, currentDirectory)
	}

	var patterns []gitignore.Pattern
	stamps := make([]ruleStamp, 0, len(directories))
	for _, directory := range directories {
		set, failures := matcher.ensureRuleSet(directory)
		for _, failure := range failures {
			matcher.logger.Warn("skipping ignore rule", zap.String("path", failure.Path), zap.String("detail", failure.Detail))
		}
		patterns = append(patterns, set.patterns...)
		stamps = append(stamps, ruleStamp{directory: set.directory, identity: set.identity, version: set.version})
	}
	patterns = append(patterns, matcher.extraPatterns...)
	return patterns, stamps
}

func (matcher *Matcher) ensureRuleSet(directoryPath string) (*ruleSet, []types.PathFailure) {
	if set, exists := matcher.ruleSets[directoryPath]; exists {
		return set, nil
	}
	matcher.nextIdentity++
	set := &ruleSet{
		identity:  matcher.nextIdentity,
		directory: directoryPath,
		domain:    utils.SplitPathSegments(utils.RelativePathOrSelf(directoryPath, matcher.rootPath)),
	}
	matcher.ruleSets[directoryPath] = set
	return set, matcher.reload(set)
}

func (matcher *Matcher) reload(set *ruleSet) []types.PathFailure {
	set.version++
	set.patterns = nil
	if !matcher.useRuleFiles {
		return nil
	}
	patterns, failures := LoadRuleFile(set.directory, set.domain)
	set.patterns = patterns
	return failures
}

func (matcher *Matcher) stampsCurrent(stamps []ruleStamp) bool {
	for _, stamp := range stamps {
		set, exists := matcher.ruleSets[stamp.directory]
		if !exists || set.identity != stamp.identity || set.version != stamp.version {
			return false
		}
	}
	return true
}

func normalizePath(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
