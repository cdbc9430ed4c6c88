package bundle

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/NikolayBobovnikov/context-manager/internal/tokenizer"
	"github.com/NikolayBobovnikov/context-manager/internal/types"
	"github.com/NikolayBobovnikov/context-manager/internal/utils"
)

// buildRecord reads one selected file into a bundle record. Files that are
// too large, binary, or unreadable yield a placeholder record plus a failure
// instead of content. Content that passes the binary sniff but contains
// invalid UTF-8 is converted lossily and flagged.
func (options Options) buildRecord(ctx context.Context, rootPath string, fileView *types.EntryView) (*types.BundleRecord, *types.PathFailure) {
	record := &types.BundleRecord{RelativePath: utils.RelativePathOrSelf(fileView.Path, rootPath)}

	fileInfo, statError := os.Stat(fileView.Path)
	if statError != nil {
		record.Placeholder = types.PlaceholderReadError
		return record, &types.PathFailure{Path: fileView.Path, Kind: types.FailureReadError, Detail: statError.Error()}
	}
	record.SizeBytes = fileInfo.Size()
	if fileInfo.Size() > options.SizeCeiling {
		record.Placeholder = types.PlaceholderTooLarge
		return record, tooLargeFailure(fileView.Path, fileInfo.Size(), options.SizeCeiling)
	}

	content, readError := readFileWithin(ctx, fileView.Path, options.ReadTimeout)
	if readError != nil {
		record.Placeholder = types.PlaceholderReadError
		return record, &types.PathFailure{Path: fileView.Path, Kind: types.FailureReadError, Detail: readError.Error()}
	}
	record.SizeBytes = int64(len(content))
	if int64(len(content)) > options.SizeCeiling {
		record.Placeholder = types.PlaceholderTooLarge
		return record, tooLargeFailure(fileView.Path, int64(len(content)), options.SizeCeiling)
	}
	if utils.IsBinarySample(content, options.SniffLength) {
		record.Placeholder = types.PlaceholderBinary
		record.MimeType = utils.DetectMimeType(fileView.Path)
		return record, &types.PathFailure{Path: fileView.Path, Kind: types.FailureReadBinary}
	}

	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
		record.LossyUTF8 = true
	}
	record.Content = text

	if options.Counter != nil {
		countResult, countError := tokenizer.CountBytes(options.Counter, []byte(text))
		if countError != nil {
			options.Logger.Warn("token count failed", zap.String("path", fileView.Path), zap.Error(countError))
		} else if countResult.Counted {
			record.Tokens = countResult.Tokens
		}
	}
	return record, nil
}

func tooLargeFailure(filePath string, sizeBytes int64, ceiling int64) *types.PathFailure {
	return &types.PathFailure{
		Path:   filePath,
		Kind:   types.FailureReadTooLarge,
		Detail: fmt.Sprintf("%d bytes exceed the %d byte ceiling", sizeBytes, ceiling),
	}
}

// readResult carries the outcome of one background file read.
type readResult struct {
	content []byte
	err     error
}

// readFileWithin reads filePath, abandoning the attempt when the timeout or
// the surrounding context expires first. An abandoned read finishes on its
// own goroutine; the buffered channel keeps it from leaking.
func readFileWithin(ctx context.Context, filePath string, timeout time.Duration) ([]byte, error) {
	readContext, cancelRead := context.WithTimeout(ctx, timeout)
	defer cancelRead()
	results := make(chan readResult, 1)
	go func() {
		content, readError := os.ReadFile(filePath)
		results <- readResult{content: content, err: readError}
	}()
	select {
	case <-readContext.Done():
		return nil, readContext.Err()
	case result := <-results:
		return result.content, result.err
	}
}
