// Package cli builds the contextman command tree and runs the selected tool.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NikolayBobovnikov/context-manager/internal/config"
	"github.com/NikolayBobovnikov/context-manager/internal/services/clipboard"
	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/utils"
)

const (
	selectFlagName             = "select"
	selectFlagShorthand        = "s"
	selectFlagDescription      = "gitignore-style pattern naming files to include (repeatable)"
	allFlagName                = "all"
	allFlagDescription         = "include every visible file under the workspace root"
	outputFlagName             = "output"
	outputFlagShorthand        = "o"
	outputFlagDescription      = "bundle output path (defaults to <root>/" + defaultOutputHint + ")"
	formatFlagName             = "format"
	formatFlagDescription      = "bundle format: " + bundleFormatsListing
	copyFlagName               = "copy"
	copyFlagDescription        = "copy the rendered bundle to the system clipboard"
	tokensFlagName             = "tokens"
	tokensFlagDescription      = "count bundle tokens and report them in the summary"
	modelFlagName              = "model"
	modelFlagDescription       = "tokenizer model used for token counts"
	exclusionFlagName          = "e"
	exclusionFlagDescription   = "extra ignore pattern applied after rule files (repeatable)"
	noGitignoreFlagName        = "no-gitignore"
	noGitignoreFlagDescription = "skip per-directory .gitignore rule files"
	includeGitFlagName         = "git"
	includeGitFlagDescription  = "keep .git directories visible instead of pruning them"
	maxFileSizeFlagName        = "max-file-size"
	maxFileSizeFlagDescription = "inline file content up to this many bytes; larger files are summarized"
	debounceFlagName           = "debounce"
	debounceFlagDescription    = "quiet period between a filesystem event and the rebuild"
	configFlagName             = "config"
	configFlagDescription      = "explicit configuration file path"
	verboseFlagName            = "verbose"
	verboseFlagDescription     = "enable debug logging"
	versionFlagName            = "version"
	versionFlagDescription     = "print the application version and exit"
	globalFlagName             = "global"
	globalFlagDescription      = "write the configuration file under the user home directory"
	forceFlagName              = "force"
	forceFlagDescription       = "overwrite an existing configuration file"
)

const (
	rootUse              = "contextman"
	rootShortDescription = "bundle workspace files into a shareable context document"
	rootLongDescription  = `contextman walks a workspace the way git sees it, lets you pick files with
gitignore-style patterns and assembles the selection into one deterministic
bundle document suitable for sharing or prompting.`

	bundleAlias            = "b"
	bundleUse              = types.CommandBundle + " [path]"
	bundleShortDescription = "assemble a context bundle from the selected files (" + bundleAlias + ")"
	bundleLongDescription  = `Assemble the files matched by --select patterns, or every visible file with
--all, into a single bundle document. The bundle opens with a tree of the
selection and inlines each file in order; binary and oversized files are
summarized instead of inlined.`
	bundleExample = `  contextman bundle --all
  contextman bundle ./service --select '*.go' --select 'docs/'
  contextman b -s '*.md' --format txtar -o notes.txtar
  contextman bundle --all --copy --tokens`

	treeAlias            = "t"
	treeUse              = types.CommandTree + " [path]"
	treeShortDescription = "print the filtered workspace tree (" + treeAlias + ")"
	treeLongDescription  = `Print the workspace tree after ignore rules are applied. Every entry carries
a selection marker, directories a trailing slash, and ignored entries that
remain listable stay visible with an annotation.`
	treeExample = `  contextman tree
  contextman t ./service -e vendor/
  contextman tree --select '*.go' --format json`

	watchAlias            = "w"
	watchUse              = types.CommandWatch + " [path]"
	watchShortDescription = "rebuild the bundle whenever the workspace changes (" + watchAlias + ")"
	watchLongDescription  = `Build the bundle once, then keep watching the workspace and rebuild after
each settled batch of filesystem changes. Selection patterns are re-applied
before every rebuild so files created later are picked up. Stop with Ctrl-C.`
	watchExample = `  contextman watch --all
  contextman w ./service -s '*.go' --debounce 250ms`

	configUse              = "config"
	configShortDescription = "manage contextman configuration files"
	initUse                = "init"
	initShortDescription   = "write a starter configuration file"
	initExample            = `  contextman config init
  contextman config init --global --force`
)

const (
	versionTemplate            = "contextman version: %s\n"
	defaultOutputHint          = "project_structure.<ext>"
	bundleFormatsListing       = types.FormatMarkdown + ", " + types.FormatAsciiDoc + ", " + types.FormatJSON + " or " + types.FormatTxtar
	treeFormatText             = "text"
	treeFormatFlagDescription  = "tree output format: " + treeFormatText + " or " + types.FormatJSON
	selectionRequiredMessage   = "either --" + selectFlagName + " or --" + allFlagName + " is required"
	selectionConflictMessage   = "--" + selectFlagName + " and --" + allFlagName + " are mutually exclusive"
	configurationWrittenFormat = "wrote %s\n"
)

type rootOptions struct {
	showVersion    bool
	verboseLogging bool
	configFilePath string
	logger         *zap.Logger
}

type pathOptions struct {
	exclusionPatterns []string
	disableRuleFiles  bool
	includeGit        bool
}

type selectionOptions struct {
	selectPatterns []string
	selectAll      bool
}

type bundleShapeOptions struct {
	outputPath   string
	format       string
	maxFileSize  int64
	countTokens  bool
	counterModel string
}

// Execute builds the root command, normalizes the raw arguments and runs the
// selected subcommand.
func Execute() error {
	options := &rootOptions{}
	rootCommand := createRootCommand(options)
	rootCommand.SetArgs(normalizeArguments(rootCommand, os.Args[1:]))
	executionError := rootCommand.Execute()
	if options.logger != nil {
		_ = options.logger.Sync()
	}
	return executionError
}

func createRootCommand(options *rootOptions) *cobra.Command {
	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if options.showVersion {
				fmt.Printf(versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
			applicationLogger, loggerError := utils.NewApplicationLogger(options.verboseLogging)
			if loggerError != nil {
				return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerError)
			}
			options.logger = applicationLogger
			return nil
		},
	}
	persistentFlags := rootCommand.PersistentFlags()
	registerBooleanFlag(persistentFlags, &options.showVersion, versionFlagName, false, versionFlagDescription)
	registerBooleanFlag(persistentFlags, &options.verboseLogging, verboseFlagName, false, verboseFlagDescription)
	persistentFlags.StringVar(&options.configFilePath, configFlagName, "", configFlagDescription)

	rootCommand.AddCommand(createBundleCommand(options))
	rootCommand.AddCommand(createTreeCommand(options))
	rootCommand.AddCommand(createWatchCommand(options))
	rootCommand.AddCommand(createConfigCommand())
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

func createBundleCommand(root *rootOptions) *cobra.Command {
	paths := &pathOptions{}
	selection := &selectionOptions{}
	shape := &bundleShapeOptions{}
	copyToClipboard := false
	bundleCommand := &cobra.Command{
		Use:     bundleUse,
		Aliases: []string{bundleAlias},
		Short:   bundleShortDescription,
		Long:    bundleLongDescription,
		Example: bundleExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			settings, settingsError := resolveRunSettings(command, arguments, root, paths, selection, shape)
			if settingsError != nil {
				return settingsError
			}
			if !settings.selectAll && len(settings.selectPatterns) == 0 {
				return errors.New(selectionRequiredMessage)
			}
			settings.copyToClipboard = resolveCopyToClipboard(command, settings.configuration, copyToClipboard)
			return runBundle(command.Context(), settings, clipboard.NewService())
		},
	}
	addPathFlags(bundleCommand, paths)
	addSelectionFlags(bundleCommand, selection)
	addBundleShapeFlags(bundleCommand, shape)
	registerCopyFlag(bundleCommand.Flags(), &copyToClipboard)
	return bundleCommand
}

func createTreeCommand(root *rootOptions) *cobra.Command {
	paths := &pathOptions{}
	selection := &selectionOptions{}
	treeOutputFormat := treeFormatText
	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Example: treeExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			settings, settingsError := resolveRunSettings(command, arguments, root, paths, selection, nil)
			if settingsError != nil {
				return settingsError
			}
			return runTree(settings, treeOutputFormat)
		},
	}
	addPathFlags(treeCommand, paths)
	addSelectionFlags(treeCommand, selection)
	treeCommand.Flags().StringVar(&treeOutputFormat, formatFlagName, treeFormatText, treeFormatFlagDescription)
	return treeCommand
}

func createWatchCommand(root *rootOptions) *cobra.Command {
	paths := &pathOptions{}
	selection := &selectionOptions{}
	shape := &bundleShapeOptions{}
	debounce := time.Duration(0)
	watchCommand := &cobra.Command{
		Use:     watchUse,
		Aliases: []string{watchAlias},
		Short:   watchShortDescription,
		Long:    watchLongDescription,
		Example: watchExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			settings, settingsError := resolveRunSettings(command, arguments, root, paths, selection, shape)
			if settingsError != nil {
				return settingsError
			}
			if !settings.selectAll && len(settings.selectPatterns) == 0 {
				return errors.New(selectionRequiredMessage)
			}
			settings.debounce = resolveDebounce(command, settings.configuration, debounce)
			return runWatch(command.Context(), settings)
		},
	}
	addPathFlags(watchCommand, paths)
	addSelectionFlags(watchCommand, selection)
	addBundleShapeFlags(watchCommand, shape)
	watchCommand.Flags().DurationVar(&debounce, debounceFlagName, 0, debounceFlagDescription)
	return watchCommand
}

func createConfigCommand() *cobra.Command {
	configCommand := &cobra.Command{
		Use:   configUse,
		Short: configShortDescription,
	}
	configCommand.AddCommand(createConfigInitCommand())
	return configCommand
}

func createConfigInitCommand() *cobra.Command {
	writeGlobal := false
	forceOverwrite := false
	initCommand := &cobra.Command{
		Use:     initUse,
		Short:   initShortDescription,
		Example: initExample,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if writeGlobal {
				target = config.InitTargetGlobal
			}
			writtenPath, initializationError := config.InitializeConfiguration(config.InitOptions{
				Target: target,
				Force:  forceOverwrite,
			})
			if initializationError != nil {
				return initializationError
			}
			fmt.Fprintf(command.OutOrStdout(), configurationWrittenFormat, writtenPath)
			return nil
		},
	}
	registerBooleanFlag(initCommand.Flags(), &writeGlobal, globalFlagName, false, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &forceOverwrite, forceFlagName, false, forceFlagDescription)
	return initCommand
}

func addPathFlags(targetCommand *cobra.Command, options *pathOptions) {
	flagSet := targetCommand.Flags()
	flagSet.StringArrayVarP(&options.exclusionPatterns, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDescription)
	registerBooleanFlag(flagSet, &options.disableRuleFiles, noGitignoreFlagName, false, noGitignoreFlagDescription)
	registerBooleanFlag(flagSet, &options.includeGit, includeGitFlagName, false, includeGitFlagDescription)
}

func addSelectionFlags(targetCommand *cobra.Command, options *selectionOptions) {
	flagSet := targetCommand.Flags()
	flagSet.StringArrayVarP(&options.selectPatterns, selectFlagName, selectFlagShorthand, nil, selectFlagDescription)
	registerBooleanFlag(flagSet, &options.selectAll, allFlagName, false, allFlagDescription)
}

func addBundleShapeFlags(targetCommand *cobra.Command, options *bundleShapeOptions) {
	flagSet := targetCommand.Flags()
	flagSet.StringVarP(&options.outputPath, outputFlagName, outputFlagShorthand, "", outputFlagDescription)
	flagSet.StringVar(&options.format, formatFlagName, "", formatFlagDescription)
	flagSet.Int64Var(&options.maxFileSize, maxFileSizeFlagName, 0, maxFileSizeFlagDescription)
	registerBooleanFlag(flagSet, &options.countTokens, tokensFlagName, false, tokensFlagDescription)
	flagSet.StringVar(&options.counterModel, modelFlagName, "", modelFlagDescription)
}
