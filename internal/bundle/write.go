package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/NikolayBobovnikov/context-manager/internal/types"
)

const (
	// DefaultFileBaseName is the output file name used when the caller does
	// not choose one; the format supplies the extension.
	DefaultFileBaseName = "project_structure"

	markdownExtension = ".md"
	asciiDocExtension = ".adoc"
	jsonExtension     = ".json"
	txtarExtension    = ".txtar"

	outputFileMode = 0o644
)

// FileName returns baseName with the extension of the given format. An empty
// baseName falls back to DefaultFileBaseName, an unknown format to markdown.
func FileName(baseName string, format string) string {
	if baseName == "" {
		baseName = DefaultFileBaseName
	}
	switch format {
	case types.FormatAsciiDoc:
		return baseName + asciiDocExtension
	case types.FormatJSON:
		return baseName + jsonExtension
	case types.FormatTxtar:
		return baseName + txtarExtension
	default:
		return baseName + markdownExtension
	}
}

// WriteAtomic writes content to outputPath through a temp file in the same
// directory followed by a rename, so readers never observe a half-written
// bundle.
func WriteAtomic(outputPath string, content string) error {
	outputDirectory := filepath.Dir(outputPath)
	tempFile, createError := os.CreateTemp(outputDirectory, "."+filepath.Base(outputPath)+".*")
	if createError != nil {
		return fmt.Errorf("creating temp file in %s: %w", outputDirectory, createError)
	}
	tempPath := tempFile.Name()
	_, writeError := tempFile.WriteString(content)
	closeError := tempFile.Close()
	if writeError != nil {
		os.Remove(tempPath)
		return fmt.Errorf("writing %s: %w", tempPath, writeError)
	}
	if closeError != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing %s: %w", tempPath, closeError)
	}
	if chmodError := os.Chmod(tempPath, outputFileMode); chmodError != nil {
		os.Remove(tempPath)
		return fmt.Errorf("setting mode on %s: %w", tempPath, chmodError)
	}
	if renameError := os.Rename(tempPath, outputPath); renameError != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replacing %s: %w", outputPath, renameError)
	}
	return nil
}
