// Package config loads the application's merged configuration: defaults,
// overlaid by a global file in the user's home directory, overlaid by a
// workspace-local file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/NikolayBobovnikov/context-manager/internal/utils"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds defaults for the CLI commands. Pointer
// fields distinguish "unset" from an explicit false or zero, so a file only
// overrides what it mentions.
type ApplicationConfiguration struct {
	Bundle BundleConfiguration `mapstructure:"bundle"`
	Watch  WatchConfiguration  `mapstructure:"watch"`
	Ignore IgnoreConfiguration `mapstructure:"ignore"`
}

// BundleConfiguration carries defaults for bundle assembly and output.
type BundleConfiguration struct {
	Format      string             `mapstructure:"format"`
	OutputBase  string             `mapstructure:"output_base"`
	MaxFileSize *int64             `mapstructure:"max_file_size"`
	ReadTimeout *time.Duration     `mapstructure:"read_timeout"`
	SniffLength *int               `mapstructure:"sniff_length"`
	Clipboard   *bool              `mapstructure:"clipboard"`
	Tokens      TokenConfiguration `mapstructure:"tokens"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

// WatchConfiguration carries defaults for the watch command.
type WatchConfiguration struct {
	Debounce *time.Duration `mapstructure:"debounce"`
}

// IgnoreConfiguration controls filtering applied on top of rule files. Extra
// replaces the built-in pattern list when set.
type IgnoreConfiguration struct {
	Extra        []string `mapstructure:"extra"`
	UseGitignore *bool    `mapstructure:"use_gitignore"`
	IncludeGit   *bool    `mapstructure:"include_git"`
}

// LoadApplicationConfiguration loads configuration from the global and local
// files, overlaying them onto the built-in defaults. Missing files are not an
// error.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	merged := DefaultConfiguration()

	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName)
		globalConfig, loadError := loadConfigurationFromPath(globalPath)
		if loadError != nil {
			return ApplicationConfiguration{}, loadError
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveError := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveError != nil {
		return ApplicationConfiguration{}, resolveError
	}
	if localPath != "" {
		localConfig, loadError := loadConfigurationFromPath(localPath)
		if loadError != nil {
			return ApplicationConfiguration{}, loadError
		}
		merged = merged.Merge(localConfig)
	}

	merged.Ignore.Extra = utils.DeduplicatePatterns(merged.Ignore.Extra)

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, absoluteError := filepath.Abs(explicitPath)
			if absoluteError != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, absoluteError)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statError := os.Stat(path)
	if statError != nil {
		if os.IsNotExist(statError) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statError)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	if readError := reader.ReadInConfig(); readError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readError)
	}
	var config ApplicationConfiguration
	if decodeError := reader.Unmarshal(&config); decodeError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeError)
	}
	return config, nil
}

// Merge overlays override onto the receiver, returning the combined
// configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Bundle = result.Bundle.merge(override.Bundle)
	result.Watch = result.Watch.merge(override.Watch)
	result.Ignore = result.Ignore.merge(override.Ignore)
	return result
}

func (config BundleConfiguration) merge(override BundleConfiguration) BundleConfiguration {
	result := config
	if override.Format != "" {
		result.Format = override.Format
	}
	if override.OutputBase != "" {
		result.OutputBase = override.OutputBase
	}
	if override.MaxFileSize != nil {
		result.MaxFileSize = cloneInt64(override.MaxFileSize)
	}
	if override.ReadTimeout != nil {
		result.ReadTimeout = cloneDuration(override.ReadTimeout)
	}
	if override.SniffLength != nil {
		result.SniffLength = cloneInt(override.SniffLength)
	}
	if override.Clipboard != nil {
		result.Clipboard = cloneBool(override.Clipboard)
	}
	result.Tokens = result.Tokens.merge(override.Tokens)
	return result
}

func (config TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := config
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	return result
}

func (config WatchConfiguration) merge(override WatchConfiguration) WatchConfiguration {
	result := config
	if override.Debounce != nil {
		result.Debounce = cloneDuration(override.Debounce)
	}
	return result
}

func (config IgnoreConfiguration) merge(override IgnoreConfiguration) IgnoreConfiguration {
	result := config
	if len(override.Extra) > 0 {
		result.Extra = append([]string{}, utils.DeduplicatePatterns(override.Extra)...)
	}
	if override.UseGitignore != nil {
		result.UseGitignore = cloneBool(override.UseGitignore)
	}
	if override.IncludeGit != nil {
		result.IncludeGit = cloneBool(override.IncludeGit)
	}
	return result
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt64(value *int64) *int64 {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneDuration(value *time.Duration) *time.Duration {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
