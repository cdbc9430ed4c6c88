package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/NikolayBobovnikov/context-manager/internal/types"
)

// shapedCommand mirrors the bundle command wiring so settings resolution can
// be exercised without running the command.
type shapedCommand struct {
	command   *cobra.Command
	paths     *pathOptions
	selection *selectionOptions
	shape     *bundleShapeOptions
	copyFlag  *bool
	debounce  *time.Duration
}

func newShapedCommand() shapedCommand {
	command := &cobra.Command{Use: types.CommandBundle}
	paths := &pathOptions{}
	selection := &selectionOptions{}
	shape := &bundleShapeOptions{}
	copyTarget := false
	debounceTarget := time.Duration(0)
	addPathFlags(command, paths)
	addSelectionFlags(command, selection)
	addBundleShapeFlags(command, shape)
	registerCopyFlag(command.Flags(), &copyTarget)
	command.Flags().DurationVar(&debounceTarget, debounceFlagName, 0, debounceFlagDescription)
	return shapedCommand{
		command:   command,
		paths:     paths,
		selection: selection,
		shape:     shape,
		copyFlag:  &copyTarget,
		debounce:  &debounceTarget,
	}
}

func resolveWithArguments(t *testing.T, shaped shapedCommand, flagArguments []string, positional []string) (*runSettings, error) {
	t.Helper()
	if parseError := shaped.command.ParseFlags(flagArguments); parseError != nil {
		t.Fatalf("parsing flags %v: %v", flagArguments, parseError)
	}
	return resolveRunSettings(shaped.command, positional, &rootOptions{}, shaped.paths, shaped.selection, shaped.shape)
}

func TestResolveRunSettingsDefaults(t *testing.T) {
	isolateHome(t)
	rootPath := t.TempDir()
	settings, resolveError := resolveWithArguments(t, newShapedCommand(), nil, []string{rootPath})
	if resolveError != nil {
		t.Fatalf("resolve error: %v", resolveError)
	}
	if settings.rootPath != filepath.Clean(rootPath) {
		t.Fatalf("expected root %q, got %q", filepath.Clean(rootPath), settings.rootPath)
	}
	if settings.format != types.FormatMarkdown {
		t.Fatalf("expected the markdown default, got %q", settings.format)
	}
	expectedOutput := filepath.Join(filepath.Clean(rootPath), "project_structure.md")
	if settings.outputPath != expectedOutput {
		t.Fatalf("expected output %q, got %q", expectedOutput, settings.outputPath)
	}
	if !settings.useRuleFiles {
		t.Fatal("expected rule files to stay enabled by default")
	}
	if settings.counter != nil {
		t.Fatal("expected token counting to stay disabled by default")
	}
	if !containsPattern(settings.extraPatterns, ".git/") {
		t.Fatalf("expected the default VCS pattern, got %v", settings.extraPatterns)
	}
}

func TestResolveRunSettingsFormatFollowsFlag(t *testing.T) {
	isolateHome(t)
	rootPath := t.TempDir()
	settings, resolveError := resolveWithArguments(t, newShapedCommand(), []string{"--format", types.FormatTxtar}, []string{rootPath})
	if resolveError != nil {
		t.Fatalf("resolve error: %v", resolveError)
	}
	if settings.format != types.FormatTxtar {
		t.Fatalf("expected txtar, got %q", settings.format)
	}
	if !strings.HasSuffix(settings.outputPath, "project_structure.txtar") {
		t.Fatalf("expected the txtar extension, got %q", settings.outputPath)
	}
}

func TestResolveRunSettingsRejectsUnknownFormat(t *testing.T) {
	isolateHome(t)
	rootPath := t.TempDir()
	_, resolveError := resolveWithArguments(t, newShapedCommand(), []string{"--format", "yaml"}, []string{rootPath})
	if resolveError == nil {
		t.Fatal("expected an error for an unknown format")
	}
	if !strings.Contains(resolveError.Error(), "unsupported bundle format") {
		t.Fatalf("unexpected error: %v", resolveError)
	}
}

func TestResolveRunSettingsSelectionConflict(t *testing.T) {
	isolateHome(t)
	rootPath := t.TempDir()
	_, resolveError := resolveWithArguments(t, newShapedCommand(), []string{"--all", "--select", "*.go"}, []string{rootPath})
	if resolveError == nil {
		t.Fatal("expected a selection conflict error")
	}
	if !strings.Contains(resolveError.Error(), selectionConflictMessage) {
		t.Fatalf("unexpected error: %v", resolveError)
	}
}

func TestResolveRunSettingsReadsLocalConfiguration(t *testing.T) {
	isolateHome(t)
	rootPath := t.TempDir()
	configContent := strings.Join([]string{
		"bundle:",
		"  format: adoc",
		"  output_base: ctxbundle",
		"  clipboard: true",
		"ignore:",
		"  extra:",
		"    - '*.log'",
		"watch:",
		"  debounce: 250ms",
	}, "\n") + "\n"
	if writeError := os.WriteFile(filepath.Join(rootPath, ".contextman.yaml"), []byte(configContent), 0o600); writeError != nil {
		t.Fatalf("writing configuration: %v", writeError)
	}

	shaped := newShapedCommand()
	settings, resolveError := resolveWithArguments(t, shaped, nil, []string{rootPath})
	if resolveError != nil {
		t.Fatalf("resolve error: %v", resolveError)
	}
	if settings.format != types.FormatAsciiDoc {
		t.Fatalf("expected the configured adoc format, got %q", settings.format)
	}
	if !strings.HasSuffix(settings.outputPath, "ctxbundle.adoc") {
		t.Fatalf("expected the configured output base, got %q", settings.outputPath)
	}
	if !containsPattern(settings.extraPatterns, "*.log") {
		t.Fatalf("expected the configured extra pattern, got %v", settings.extraPatterns)
	}
	if !resolveCopyToClipboard(shaped.command, settings.configuration, *shaped.copyFlag) {
		t.Fatal("expected the configured clipboard default to apply")
	}
	if resolved := resolveDebounce(shaped.command, settings.configuration, *shaped.debounce); resolved != 250*time.Millisecond {
		t.Fatalf("expected the configured debounce, got %v", resolved)
	}
}

func TestResolveRunSettingsFlagsOverrideConfiguration(t *testing.T) {
	isolateHome(t)
	rootPath := t.TempDir()
	configContent := "bundle:\n  format: adoc\n  clipboard: true\n"
	if writeError := os.WriteFile(filepath.Join(rootPath, ".contextman.yaml"), []byte(configContent), 0o600); writeError != nil {
		t.Fatalf("writing configuration: %v", writeError)
	}

	shaped := newShapedCommand()
	settings, resolveError := resolveWithArguments(t, shaped, []string{"--format", types.FormatJSON, "--copy=false", "--debounce", "50ms"}, []string{rootPath})
	if resolveError != nil {
		t.Fatalf("resolve error: %v", resolveError)
	}
	if settings.format != types.FormatJSON {
		t.Fatalf("expected the flag format to win, got %q", settings.format)
	}
	if resolveCopyToClipboard(shaped.command, settings.configuration, *shaped.copyFlag) {
		t.Fatal("expected the explicit --copy=false to win over the configuration")
	}
	if resolved := resolveDebounce(shaped.command, settings.configuration, *shaped.debounce); resolved != 50*time.Millisecond {
		t.Fatalf("expected the flag debounce to win, got %v", resolved)
	}
}

func TestResolveRunSettingsNoGitignoreFlag(t *testing.T) {
	isolateHome(t)
	rootPath := t.TempDir()
	settings, resolveError := resolveWithArguments(t, newShapedCommand(), []string{"--no-gitignore"}, []string{rootPath})
	if resolveError != nil {
		t.Fatalf("resolve error: %v", resolveError)
	}
	if settings.useRuleFiles {
		t.Fatal("expected rule files to be disabled")
	}
}

func TestResolveRunSettingsIncludeGitDropsPattern(t *testing.T) {
	isolateHome(t)
	rootPath := t.TempDir()
	settings, resolveError := resolveWithArguments(t, newShapedCommand(), []string{"--git"}, []string{rootPath})
	if resolveError != nil {
		t.Fatalf("resolve error: %v", resolveError)
	}
	if containsPattern(settings.extraPatterns, ".git/") {
		t.Fatalf("expected the VCS pattern to be dropped, got %v", settings.extraPatterns)
	}
}

func TestResolveRunSettingsMergesExclusionFlags(t *testing.T) {
	isolateHome(t)
	rootPath := t.TempDir()
	settings, resolveError := resolveWithArguments(t, newShapedCommand(), []string{"-e", "vendor/", "-e", "vendor/"}, []string{rootPath})
	if resolveError != nil {
		t.Fatalf("resolve error: %v", resolveError)
	}
	occurrences := 0
	for _, pattern := range settings.extraPatterns {
		if pattern == "vendor/" {
			occurrences++
		}
	}
	if occurrences != 1 {
		t.Fatalf("expected the exclusion pattern once, got %v", settings.extraPatterns)
	}
}

func TestResolveRunSettingsRejectsNonPositiveMaxFileSize(t *testing.T) {
	isolateHome(t)
	rootPath := t.TempDir()
	_, resolveError := resolveWithArguments(t, newShapedCommand(), []string{"--max-file-size", "0"}, []string{rootPath})
	if resolveError == nil {
		t.Fatal("expected an error for a non-positive size ceiling")
	}
	if !strings.Contains(resolveError.Error(), "must be positive") {
		t.Fatalf("unexpected error: %v", resolveError)
	}
}

func TestResolveRunSettingsAppliesMaxFileSize(t *testing.T) {
	isolateHome(t)
	rootPath := t.TempDir()
	settings, resolveError := resolveWithArguments(t, newShapedCommand(), []string{"--max-file-size", "2048"}, []string{rootPath})
	if resolveError != nil {
		t.Fatalf("resolve error: %v", resolveError)
	}
	if settings.maxFileSize != 2048 {
		t.Fatalf("expected 2048, got %d", settings.maxFileSize)
	}
}

func TestResolveWorkspaceRootValidation(t *testing.T) {
	missingPath := filepath.Join(t.TempDir(), "absent")
	if _, resolveError := resolveWorkspaceRoot([]string{missingPath}); resolveError == nil {
		t.Fatal("expected an error for a missing path")
	}

	filePath := filepath.Join(t.TempDir(), "plain.txt")
	if writeError := os.WriteFile(filePath, []byte("content"), 0o600); writeError != nil {
		t.Fatalf("writing file: %v", writeError)
	}
	_, resolveError := resolveWorkspaceRoot([]string{filePath})
	if resolveError == nil {
		t.Fatal("expected an error for a non-directory path")
	}
	if !strings.Contains(resolveError.Error(), "not a directory") {
		t.Fatalf("unexpected error: %v", resolveError)
	}
}

func containsPattern(patterns []string, wanted string) bool {
	for _, pattern := range patterns {
		if pattern == wanted {
			return true
		}
	}
	return false
}
