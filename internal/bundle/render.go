package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/tools/txtar"

	"github.com/NikolayBobovnikov/context-manager/internal/types"
)

const (
	markdownTitle            = "# Context"
	markdownStructureHeading = "## Project Structure"
	markdownFilesHeading     = "## Files"
	markdownRecordPrefix     = "### "

	asciiDocTitle            = "= Context"
	asciiDocStructureHeading = "== Project Structure"
	asciiDocFilesHeading     = "== Files"
	asciiDocRecordPrefix     = "=== "
	asciiDocListingDelimiter = "----"

	lossyContentNote = "invalid UTF-8 byte sequences were replaced"

	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "
	directorySuffix     = "/"

	indentPrefix = ""
	indentSpacer = "  "

	fenceCharacter     = '`'
	minimumFenceLength = 3
)

// Render produces the bundle text for the requested format. An empty format
// renders markdown.
func Render(assembled *types.Bundle, format string) (string, error) {
	switch format {
	case types.FormatMarkdown, "":
		return renderMarkdown(assembled), nil
	case types.FormatAsciiDoc:
		return renderAsciiDoc(assembled), nil
	case types.FormatJSON:
		return renderJSON(assembled)
	case types.FormatTxtar:
		return renderTxtar(assembled), nil
	default:
		return "", fmt.Errorf("unsupported bundle format %q", format)
	}
}

func renderMarkdown(assembled *types.Bundle) string {
	structureText := structureTreeText(assembled.Tree)
	structureFence := contentFence(structureText)

	var buffer bytes.Buffer
	buffer.WriteString(markdownTitle + "\n\n")
	buffer.WriteString(markdownStructureHeading + "\n\n")
	buffer.WriteString(structureFence + "\n")
	buffer.WriteString(structureText)
	buffer.WriteString(structureFence + "\n\n")
	buffer.WriteString(markdownFilesHeading + "\n")
	for _, record := range assembled.Records {
		buffer.WriteString("\n" + markdownRecordPrefix + record.RelativePath + "\n\n")
		if record.Placeholder != "" {
			buffer.WriteString("_" + placeholderText(record) + "_\n")
			continue
		}
		if record.LossyUTF8 {
			buffer.WriteString("> " + lossyContentNote + "\n\n")
		}
		fence := contentFence(record.Content)
		buffer.WriteString(fence + fenceLanguage(record.RelativePath) + "\n")
		writeBlockContent(&buffer, record.Content)
		buffer.WriteString(fence + "\n")
	}
	return buffer.String()
}

func renderAsciiDoc(assembled *types.Bundle) string {
	structureText := structureTreeText(assembled.Tree)
	structureDelimiter := listingDelimiter(structureText)

	var buffer bytes.Buffer
	buffer.WriteString(asciiDocTitle + "\n\n")
	buffer.WriteString(asciiDocStructureHeading + "\n\n")
	buffer.WriteString(structureDelimiter + "\n")
	buffer.WriteString(structureText)
	buffer.WriteString(structureDelimiter + "\n\n")
	buffer.WriteString(asciiDocFilesHeading + "\n")
	for _, record := range assembled.Records {
		buffer.WriteString("\n" + asciiDocRecordPrefix + record.RelativePath + "\n\n")
		if record.Placeholder != "" {
			buffer.WriteString("_" + placeholderText(record) + "_\n")
			continue
		}
		if record.LossyUTF8 {
			buffer.WriteString("NOTE: " + lossyContentNote + "\n\n")
		}
		language := fenceLanguage(record.RelativePath)
		if language == "" {
			buffer.WriteString("[source]\n")
		} else {
			buffer.WriteString("[source," + language + "]\n")
		}
		delimiter := listingDelimiter(record.Content)
		buffer.WriteString(delimiter + "\n")
		writeBlockContent(&buffer, record.Content)
		buffer.WriteString(delimiter + "\n")
	}
	return buffer.String()
}

func renderJSON(assembled *types.Bundle) (string, error) {
	encoded, jsonEncodeError := json.MarshalIndent(assembled, indentPrefix, indentSpacer)
	if jsonEncodeError != nil {
		return "", jsonEncodeError
	}
	return string(encoded) + "\n", nil
}

// renderTxtar emits the bundle as a txtar archive: the structure tree as the
// comment, one file section per record. Withheld files carry their
// placeholder as the section body.
func renderTxtar(assembled *types.Bundle) string {
	archive := &txtar.Archive{Comment: []byte(structureTreeText(assembled.Tree))}
	for _, record := range assembled.Records {
		data := record.Content
		if record.Placeholder != "" {
			data = placeholderText(record) + "\n"
		}
		archive.Files = append(archive.Files, txtar.File{Name: record.RelativePath, Data: []byte(data)})
	}
	return string(txtar.Format(archive))
}

// placeholderText appends the detected MIME type to a withholding note when
// one was recorded.
func placeholderText(record *types.BundleRecord) string {
	if record.MimeType == "" {
		return record.Placeholder
	}
	return record.Placeholder + " (" + record.MimeType + ")"
}

// writeBlockContent writes content into a delimited block, ensuring the
// closing delimiter starts on its own line.
func writeBlockContent(buffer *bytes.Buffer, content string) {
	buffer.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		buffer.WriteString("\n")
	}
}

// structureTreeText renders the selected portion of the tree, one
// connector-prefixed name per line. Directories carry a trailing slash.
func structureTreeText(root *types.EntryView) string {
	var buffer bytes.Buffer
	renderStructureNode(&buffer, root, "", true, true)
	return buffer.String()
}

func renderStructureNode(writer io.Writer, node *types.EntryView, prefix string, isRoot bool, isLast bool) {
	if node == nil {
		return
	}
	linePrefix, childPrefix := treeNodeLinePrefix(prefix, isRoot, isLast)
	displayName := node.Name
	if node.Kind.IsDirectory() {
		displayName += directorySuffix
	}
	fmt.Fprintf(writer, "%s%s\n", linePrefix, displayName)
	for index, child := range node.Children {
		renderStructureNode(writer, child, childPrefix, false, index == len(node.Children)-1)
	}
}

func treeNodeLinePrefix(prefix string, isRoot bool, isLast bool) (string, string) {
	if isRoot {
		return "", ""
	}
	connector := treeBranchConnector
	childPrefix := prefix + treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeLastPadding
	}
	return prefix + connector, childPrefix
}

// contentFence returns a backtick fence one longer than the longest backtick
// run inside content, never shorter than three.
func contentFence(content string) string {
	longestRun := 0
	currentRun := 0
	for _, character := range content {
		if character == fenceCharacter {
			currentRun++
			if currentRun > longestRun {
				longestRun = currentRun
			}
		} else {
			currentRun = 0
		}
	}
	fenceLength := longestRun + 1
	if fenceLength < minimumFenceLength {
		fenceLength = minimumFenceLength
	}
	return strings.Repeat(string(fenceCharacter), fenceLength)
}

// listingDelimiter returns a dash delimiter longer than any all-dash line
// inside content, never shorter than AsciiDoc's four-dash minimum.
func listingDelimiter(content string) string {
	longest := 0
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimRight(line, "\r")
		if len(trimmed) < len(asciiDocListingDelimiter) {
			continue
		}
		if strings.Count(trimmed, "-") != len(trimmed) {
			continue
		}
		if len(trimmed) > longest {
			longest = len(trimmed)
		}
	}
	if longest < len(asciiDocListingDelimiter) {
		return asciiDocListingDelimiter
	}
	return strings.Repeat("-", longest+1)
}

// fenceLanguage derives the code-block language tag from the record's extension.
func fenceLanguage(relativePath string) string {
	return strings.TrimPrefix(path.Ext(relativePath), ".")
}
