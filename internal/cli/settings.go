package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NikolayBobovnikov/context-manager/internal/bundle"
	"github.com/NikolayBobovnikov/context-manager/internal/config"
	"github.com/NikolayBobovnikov/context-manager/internal/tokenizer"
	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/utils"
)

const (
	errorAbsolutePathFormat  = "abs failed for '%s': %w"
	errorPathMissingFormat   = "path '%s' does not exist"
	errorStatFormat          = "stat failed for '%s': %w"
	errorNotDirectoryFormat  = "path '%s' is not a directory"
	invalidFormatFormat      = "unsupported bundle format '%s' (accepted: %s)"
	invalidTreeFormatFormat  = "unsupported tree format '%s' (accepted: %s)"
	treeFormatsListing       = treeFormatText + " or " + types.FormatJSON
	invalidMaxFileSizeFormat = "invalid --%s value %d: must be positive"
)

// runSettings carries everything a command run needs after flags and
// configuration files have been reconciled.
type runSettings struct {
	rootPath        string
	configuration   config.ApplicationConfiguration
	logger          *zap.Logger
	selectPatterns  []string
	selectAll       bool
	extraPatterns   []string
	useRuleFiles    bool
	outputPath      string
	format          string
	copyToClipboard bool
	counter         tokenizer.Counter
	maxFileSize     int64
	readTimeout     time.Duration
	sniffLength     int
	debounce        time.Duration
}

// resolveRunSettings merges configuration files and command flags into one
// settings value. Flags win over configuration only when they were actually
// set on the command line. A nil shape skips the bundle-output fields for
// commands that never write a bundle.
func resolveRunSettings(command *cobra.Command, arguments []string, root *rootOptions, paths *pathOptions, selection *selectionOptions, shape *bundleShapeOptions) (*runSettings, error) {
	rootPath, rootError := resolveWorkspaceRoot(arguments)
	if rootError != nil {
		return nil, rootError
	}
	configuration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: rootPath,
		ExplicitFilePath: root.configFilePath,
	})
	if configurationError != nil {
		return nil, configurationError
	}
	if command.Flags().Changed(includeGitFlagName) {
		includeGit := paths.includeGit
		configuration.Ignore.IncludeGit = &includeGit
	}
	if selection.selectAll && len(selection.selectPatterns) > 0 {
		return nil, errors.New(selectionConflictMessage)
	}
	settings := &runSettings{
		rootPath:       rootPath,
		configuration:  configuration,
		logger:         root.logger,
		selectPatterns: selection.selectPatterns,
		selectAll:      selection.selectAll,
		extraPatterns:  utils.DeduplicatePatterns(append(configuration.EffectiveIgnorePatterns(), paths.exclusionPatterns...)),
		useRuleFiles:   resolveUseRuleFiles(command, configuration, paths.disableRuleFiles),
	}
	if settings.logger == nil {
		settings.logger = zap.NewNop()
	}
	if shape != nil {
		if shapeError := applyBundleShape(command, settings, shape); shapeError != nil {
			return nil, shapeError
		}
	}
	return settings, nil
}

// resolveWorkspaceRoot validates the optional positional path and returns it
// as a cleaned absolute directory path. No argument means the current
// directory.
func resolveWorkspaceRoot(arguments []string) (string, error) {
	requested := "."
	if len(arguments) > 0 {
		requested = arguments[0]
	}
	absolutePath, absoluteError := filepath.Abs(requested)
	if absoluteError != nil {
		return "", fmt.Errorf(errorAbsolutePathFormat, requested, absoluteError)
	}
	pathInfo, statError := os.Stat(absolutePath)
	if statError != nil {
		if os.IsNotExist(statError) {
			return "", fmt.Errorf(errorPathMissingFormat, requested)
		}
		return "", fmt.Errorf(errorStatFormat, requested, statError)
	}
	if !pathInfo.IsDir() {
		return "", fmt.Errorf(errorNotDirectoryFormat, requested)
	}
	return filepath.Clean(absolutePath), nil
}

func resolveUseRuleFiles(command *cobra.Command, configuration config.ApplicationConfiguration, disableRuleFiles bool) bool {
	if command.Flags().Changed(noGitignoreFlagName) {
		return !disableRuleFiles
	}
	if configuration.Ignore.UseGitignore != nil {
		return *configuration.Ignore.UseGitignore
	}
	return true
}

// applyBundleShape fills the output-related settings: format, output path,
// size ceiling, read tuning and the optional token counter.
func applyBundleShape(command *cobra.Command, settings *runSettings, shape *bundleShapeOptions) error {
	format := settings.configuration.Bundle.Format
	if command.Flags().Changed(formatFlagName) {
		format = shape.format
	}
	if format == "" {
		format = types.FormatMarkdown
	}
	if formatError := validateBundleFormat(format); formatError != nil {
		return formatError
	}
	settings.format = format

	outputPath := shape.outputPath
	if outputPath == "" {
		outputPath = filepath.Join(settings.rootPath, bundle.FileName(settings.configuration.Bundle.OutputBase, format))
	}
	absoluteOutputPath, outputError := filepath.Abs(outputPath)
	if outputError != nil {
		return fmt.Errorf(errorAbsolutePathFormat, outputPath, outputError)
	}
	settings.outputPath = filepath.Clean(absoluteOutputPath)

	maxFileSize := int64(0)
	if settings.configuration.Bundle.MaxFileSize != nil {
		maxFileSize = *settings.configuration.Bundle.MaxFileSize
	}
	if command.Flags().Changed(maxFileSizeFlagName) {
		maxFileSize = shape.maxFileSize
		if maxFileSize <= 0 {
			return fmt.Errorf(invalidMaxFileSizeFormat, maxFileSizeFlagName, maxFileSize)
		}
	}
	if maxFileSize < 0 {
		maxFileSize = 0
	}
	settings.maxFileSize = maxFileSize

	if settings.configuration.Bundle.ReadTimeout != nil {
		settings.readTimeout = *settings.configuration.Bundle.ReadTimeout
	}
	if settings.configuration.Bundle.SniffLength != nil {
		settings.sniffLength = *settings.configuration.Bundle.SniffLength
	}

	countTokens := false
	if settings.configuration.Bundle.Tokens.Enabled != nil {
		countTokens = *settings.configuration.Bundle.Tokens.Enabled
	}
	if command.Flags().Changed(tokensFlagName) {
		countTokens = shape.countTokens
	}
	if countTokens {
		model := settings.configuration.Bundle.Tokens.Model
		if command.Flags().Changed(modelFlagName) {
			model = shape.counterModel
		}
		counter, _, counterError := tokenizer.NewCounter(tokenizer.Config{Model: model})
		if counterError != nil {
			return counterError
		}
		settings.counter = counter
	}
	return nil
}

func validateBundleFormat(format string) error {
	switch format {
	case types.FormatMarkdown, types.FormatAsciiDoc, types.FormatJSON, types.FormatTxtar:
		return nil
	default:
		return fmt.Errorf(invalidFormatFormat, format, bundleFormatsListing)
	}
}

func validateTreeFormat(format string) error {
	switch format {
	case treeFormatText, types.FormatJSON:
		return nil
	default:
		return fmt.Errorf(invalidTreeFormatFormat, format, treeFormatsListing)
	}
}

func resolveCopyToClipboard(command *cobra.Command, configuration config.ApplicationConfiguration, requested bool) bool {
	if command.Flags().Changed(copyFlagName) {
		return requested
	}
	if configuration.Bundle.Clipboard != nil {
		return *configuration.Bundle.Clipboard
	}
	return false
}

func resolveDebounce(command *cobra.Command, configuration config.ApplicationConfiguration, requested time.Duration) time.Duration {
	if command.Flags().Changed(debounceFlagName) {
		return requested
	}
	if configuration.Watch.Debounce != nil {
		return *configuration.Watch.Debounce
	}
	return 0
}
