package config

import "github.com/NikolayBobovnikov/context-manager/internal/utils"

// DefaultIgnorePatterns are the extra exclusions applied on top of rule
// files: VCS metadata, dependency and build trees, caches, binaries, media,
// archives. Setting ignore.extra in a configuration file replaces this list.
var DefaultIgnorePatterns = []string{
	// VCS metadata
	utils.GitDirectoryName + "/", ".hg/", ".svn/",
	// Dependency and build trees
	"target/", "build/", "dist/", "pkg/", "node_modules/",
	"__pycache__/", "*.pyc", "*.pyo", "*.pyd",
	".env", ".venv", "venv/", "env/",
	"package-lock.json", "yarn.lock",
	// OS litter
	".DS_Store", "Thumbs.db",
	// Logs and scratch files
	"*.log", "*.tmp", "*.swp", "*.swo",
	// Compiled objects and binaries
	"*.o", "*.so", "*.a", "*.dylib",
	"*.exe", "*.dll", "*.lib", "*.exp", "*.obj", "*.def",
	// Archives
	"*.zip", "*.tar", "*.gz", "*.rar",
	// Media
	"*.ico", "*.png", "*.jpg", "*.jpeg", "*.gif", "*.bmp", "*.tiff", "*.svg",
	"*.mp3", "*.mp4", "*.avi",
	// Databases
	"*.db", "*.sqlite", "*.sqlite3",
	// IDE state
	".idea/", ".vscode/", "*.sublime-project", "*.sublime-workspace",
}

// DefaultConfiguration returns the configuration used before any file is
// read. Engine-level defaults (debounce, size ceiling, read timeout, sniff
// length) stay with their packages; only genuine application defaults live
// here.
func DefaultConfiguration() ApplicationConfiguration {
	return ApplicationConfiguration{
		Ignore: IgnoreConfiguration{
			Extra: append([]string{}, DefaultIgnorePatterns...),
		},
	}
}

// EffectiveIgnorePatterns returns the extra ignore patterns, dropping the VCS
// directory pattern when include_git asks to keep it visible.
func (config ApplicationConfiguration) EffectiveIgnorePatterns() []string {
	patterns := utils.DeduplicatePatterns(config.Ignore.Extra)
	if config.Ignore.IncludeGit == nil || !*config.Ignore.IncludeGit {
		return patterns
	}
	filtered := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if pattern == utils.GitDirectoryName+"/" {
			continue
		}
		filtered = append(filtered, pattern)
	}
	return filtered
}
