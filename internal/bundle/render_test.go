package bundle_test

import (
	"encoding/json"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/NikolayBobovnikov/context-manager/internal/bundle"
	"github.com/NikolayBobovnikov/context-manager/internal/types"
)

// singleFileBundle assembles a bundle with one record by hand, so renderer
// tests do not depend on the filesystem.
func singleFileBundle(relativePath string, record *types.BundleRecord) *types.Bundle {
	record.RelativePath = relativePath
	fileView := &types.EntryView{
		Path:      "/w/" + relativePath,
		Name:      relativePath,
		Kind:      types.EntryKindFile,
		Selection: types.SelectionSelected,
	}
	rootView := &types.EntryView{
		Path:      "/w",
		Name:      "w",
		Kind:      types.EntryKindDirectory,
		Selection: types.SelectionPartial,
		Children:  []*types.EntryView{fileView},
	}
	return &types.Bundle{
		Root:    "/w",
		Tree:    rootView,
		Records: []*types.BundleRecord{record},
		Summary: &types.BundleSummary{TotalFiles: 1, TotalSize: "1.0 KB"},
	}
}

func TestRenderMarkdownExtendsFencesAroundBackticks(t *testing.T) {
	assembled := singleFileBundle("main.go", &types.BundleRecord{Content: "let fence = ```go\n"})

	rendered, renderError := bundle.Render(assembled, types.FormatMarkdown)
	if renderError != nil {
		t.Fatalf("rendering markdown: %v", renderError)
	}

	expected := strings.Join([]string{
		"# Context",
		"",
		"## Project Structure",
		"",
		"```",
		"w/",
		"└── main.go",
		"```",
		"",
		"## Files",
		"",
		"### main.go",
		"",
		"````go",
		"let fence = ```go",
		"````",
	}, "\n") + "\n"
	if rendered != expected {
		t.Fatalf("unexpected markdown:\n--- got ---\n%s\n--- want ---\n%s", rendered, expected)
	}
}

func TestRenderMarkdownShowsPlaceholders(t *testing.T) {
	assembled := singleFileBundle("logo.png", &types.BundleRecord{
		Placeholder: types.PlaceholderBinary,
		MimeType:    "image/png",
	})

	rendered, renderError := bundle.Render(assembled, types.FormatMarkdown)
	if renderError != nil {
		t.Fatalf("rendering markdown: %v", renderError)
	}

	if !strings.Contains(rendered, "### logo.png\n\n_omitted: binary (image/png)_\n") {
		t.Fatalf("expected placeholder section, got:\n%s", rendered)
	}
	if strings.Contains(rendered, "```png") {
		t.Fatalf("expected no code fence for a placeholder record, got:\n%s", rendered)
	}
}

func TestRenderMarkdownNotesLossyContent(t *testing.T) {
	assembled := singleFileBundle("notes.txt", &types.BundleRecord{Content: "abcd�\n", LossyUTF8: true})

	rendered, renderError := bundle.Render(assembled, types.FormatMarkdown)
	if renderError != nil {
		t.Fatalf("rendering markdown: %v", renderError)
	}

	if !strings.Contains(rendered, "> invalid UTF-8 byte sequences were replaced\n\n```txt\n") {
		t.Fatalf("expected lossy note before the content block, got:\n%s", rendered)
	}
}

func TestRenderAsciiDocGrowsDashDelimiters(t *testing.T) {
	assembled := singleFileBundle("notes.txt", &types.BundleRecord{Content: "----\n-----\ntext\n"})

	rendered, renderError := bundle.Render(assembled, types.FormatAsciiDoc)
	if renderError != nil {
		t.Fatalf("rendering adoc: %v", renderError)
	}

	expected := strings.Join([]string{
		"= Context",
		"",
		"== Project Structure",
		"",
		"----",
		"w/",
		"└── notes.txt",
		"----",
		"",
		"== Files",
		"",
		"=== notes.txt",
		"",
		"[source,txt]",
		"------",
		"----",
		"-----",
		"text",
		"------",
	}, "\n") + "\n"
	if rendered != expected {
		t.Fatalf("unexpected adoc:\n--- got ---\n%s\n--- want ---\n%s", rendered, expected)
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	assembled := singleFileBundle("main.go", &types.BundleRecord{Content: "package main\n", SizeBytes: 13})

	rendered, renderError := bundle.Render(assembled, types.FormatJSON)
	if renderError != nil {
		t.Fatalf("rendering json: %v", renderError)
	}
	if !strings.HasSuffix(rendered, "\n") {
		t.Error("expected trailing newline on json output")
	}

	var decoded types.Bundle
	if unmarshalError := json.Unmarshal([]byte(rendered), &decoded); unmarshalError != nil {
		t.Fatalf("decoding rendered json: %v", unmarshalError)
	}
	if len(decoded.Records) != 1 || decoded.Records[0].RelativePath != "main.go" {
		t.Fatalf("expected the record to survive the round trip, got %+v", decoded.Records)
	}
	if decoded.Tree == nil || decoded.Tree.Name != "w" {
		t.Fatalf("expected the structure tree to survive the round trip, got %+v", decoded.Tree)
	}
}

func TestRenderTxtarArchivesRecords(t *testing.T) {
	assembled := singleFileBundle("main.go", &types.BundleRecord{Content: "hello\n"})
	assembled.Records = append(assembled.Records, &types.BundleRecord{
		RelativePath: "logo.png",
		Placeholder:  types.PlaceholderBinary,
	})

	rendered, renderError := bundle.Render(assembled, types.FormatTxtar)
	if renderError != nil {
		t.Fatalf("rendering txtar: %v", renderError)
	}

	archive := txtar.Parse([]byte(rendered))
	if !strings.Contains(string(archive.Comment), "w/") {
		t.Errorf("expected the structure tree in the archive comment, got %q", archive.Comment)
	}
	if len(archive.Files) != 2 {
		t.Fatalf("expected 2 archive files, got %d", len(archive.Files))
	}
	if archive.Files[0].Name != "main.go" || string(archive.Files[0].Data) != "hello\n" {
		t.Errorf("unexpected first archive file: %s %q", archive.Files[0].Name, archive.Files[0].Data)
	}
	if string(archive.Files[1].Data) != types.PlaceholderBinary+"\n" {
		t.Errorf("expected placeholder body, got %q", archive.Files[1].Data)
	}
}

func TestRenderDefaultsToMarkdown(t *testing.T) {
	assembled := singleFileBundle("main.go", &types.BundleRecord{Content: "hello\n"})

	rendered, renderError := bundle.Render(assembled, "")
	if renderError != nil {
		t.Fatalf("rendering default format: %v", renderError)
	}
	if !strings.HasPrefix(rendered, "# Context\n") {
		t.Fatalf("expected markdown output, got:\n%s", rendered)
	}
}

func TestRenderRejectsUnknownFormats(t *testing.T) {
	assembled := singleFileBundle("main.go", &types.BundleRecord{Content: "hello\n"})

	_, renderError := bundle.Render(assembled, "yaml")
	if renderError == nil {
		t.Fatal("expected an error for an unsupported format")
	}
}
