// Package utils contains general helper functions used across the context engine.
package utils

import (
	"path/filepath"
	"strings"
)

// Well-known filesystem names consulted by the engine.
const (
	// GitIgnoreFileName is the per-directory ignore rule file.
	GitIgnoreFileName = ".gitignore"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
	// ConfigFileName is the workspace-local configuration file.
	ConfigFileName = ".contextman.yaml"
	// GlobalConfigDirectoryName is the per-user configuration directory under
	// the home directory.
	GlobalConfigDirectoryName = ".contextman"
	// GlobalConfigFileName is the configuration file inside the global
	// configuration directory.
	GlobalConfigFileName = "config.yaml"
)

const pathSegmentSeparator = "/"

// DeduplicatePatterns removes duplicate patterns from a slice while preserving order.
// The first occurrence of each unique pattern is kept.
func DeduplicatePatterns(patterns []string) []string {
	encounteredPatterns := make(map[string]struct{})
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, exists := encounteredPatterns[pattern]; !exists {
			encounteredPatterns[pattern] = struct{}{}
			result = append(result, pattern)
		}
	}
	return result
}

// NormalizeAbsolutePath resolves the provided path to a cleaned absolute path
// in forward-slash form. Entry identity throughout the engine is keyed on the
// value returned here.
func NormalizeAbsolutePath(inputPath string) (string, error) {
	absolutePath, absoluteError := filepath.Abs(inputPath)
	if absoluteError != nil {
		return "", absoluteError
	}
	return filepath.ToSlash(filepath.Clean(absolutePath)), nil
}

// RelativePathOrSelf calculates the relative path from root to fullPath.
// Returns the cleaned fullPath if relative calculation fails.
// Returns "." if fullPath and root resolve to the same directory.
func RelativePathOrSelf(fullPath, root string) string {
	cleanPath := filepath.Clean(fullPath)
	absoluteRoot, err := filepath.Abs(root)
	if err != nil {
		return cleanPath
	}
	cleanAbsoluteRoot := filepath.Clean(absoluteRoot)

	if cleanPath == cleanAbsoluteRoot {
		return "."
	}

	relativePath, relErr := filepath.Rel(cleanAbsoluteRoot, cleanPath)
	if relErr != nil {
		return cleanPath
	}
	return filepath.ToSlash(relativePath)
}

// SplitPathSegments splits a relative path into its non-empty segments after
// normalizing separators. "." segments are dropped so the workspace root
// yields an empty slice.
func SplitPathSegments(relativePath string) []string {
	normalizedPath := strings.ReplaceAll(relativePath, "\\", pathSegmentSeparator)
	rawSegments := strings.Split(normalizedPath, pathSegmentSeparator)
	segments := make([]string, 0, len(rawSegments))
	for _, segment := range rawSegments {
		if segment == "" || segment == "." {
			continue
		}
		segments = append(segments, segment)
	}
	return segments
}

// IsPathWithin reports whether candidate equals root or lies beneath it.
// Both paths must already be normalized via NormalizeAbsolutePath.
func IsPathWithin(root, candidate string) bool {
	if candidate == root {
		return true
	}
	return strings.HasPrefix(candidate, root+pathSegmentSeparator)
}
