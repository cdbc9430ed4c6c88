package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/utils"
)

const (
	commentPrefix     = "#"
	negationPrefix    = "!"
	anchorPrefix      = "/"
	directorySuffix   = "/"
	doubleStarSegment = "**"
)

// ParsePatternLines converts raw rule lines into gitignore patterns bound to
// the provided domain. Blank and comment lines are skipped silently; malformed
// lines are skipped and reported as failures against originPath so the
// remaining lines still apply.
func ParsePatternLines(lines []string, domain []string, originPath string) ([]gitignore.Pattern, []types.PathFailure) {
	patterns := make([]gitignore.Pattern, 0, len(lines))
	var failures []types.PathFailure
	for lineIndex, rawLine := range lines {
		trimmedLine := strings.TrimSpace(strings.TrimRight(rawLine, "\r"))
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
			continue
		}
		if validationError := validatePatternLine(trimmedLine); validationError != nil {
			failures = append(failures, types.PathFailure{
				Path:   originPath,
				Kind:   types.FailureMalformedIgnorePattern,
				Detail: fmt.Sprintf("line %d %q: %v", lineIndex+1, trimmedLine, validationError),
			})
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(trimmedLine, domain))
	}
	return patterns, failures
}

// validatePatternLine rejects lines the matcher could never apply: lines that
// are empty once negation, anchoring and directory markers are stripped, and
// glob segments with broken syntax such as an unclosed character class.
func validatePatternLine(line string) error {
	core := strings.TrimPrefix(line, negationPrefix)
	core = strings.TrimPrefix(core, anchorPrefix)
	core = strings.TrimSuffix(core, directorySuffix)
	if core == "" {
		return fmt.Errorf("pattern has no content")
	}
	for _, segment := range strings.Split(core, "/") {
		if segment == doubleStarSegment {
			continue
		}
		if _, matchError := filepath.Match(segment, ""); matchError != nil {
			return fmt.Errorf("invalid glob segment %q: %w", segment, matchError)
		}
	}
	return nil
}

// LoadRuleFile reads the rule file of directoryPath and parses its lines with
// the provided domain. A missing rule file yields an empty pattern set; an
// unreadable one yields an empty set plus a read failure.
func LoadRuleFile(directoryPath string, domain []string) ([]gitignore.Pattern, []types.PathFailure) {
	rulePath := filepath.Join(directoryPath, utils.GitIgnoreFileName)
	content, readError := os.ReadFile(rulePath)
	if readError != nil {
		if os.IsNotExist(readError) {
			return nil, nil
		}
		return nil, []types.PathFailure{{
			Path:   filepath.ToSlash(rulePath),
			Kind:   types.FailureReadError,
			Detail: readError.Error(),
		}}
	}
	lines := strings.Split(string(content), "\n")
	return ParsePatternLines(lines, domain, filepath.ToSlash(rulePath))
}
