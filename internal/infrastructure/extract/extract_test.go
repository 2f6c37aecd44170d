package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"paperforge/internal/domain"
	"paperforge/internal/extract"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestHTMLExtractor(t *testing.T) {
	t.Parallel()

	page := `<html>
<head><title>Regression Study</title><style>p { color: red }</style></head>
<body>
<script>var tracking = true;</script>
<h1>Introduction</h1>
<p>We fit a linear model.</p>
<h2>Methods</h2>
<ul><li>ordinary least squares</li></ul>
</body>
</html>`
	path := writeTempFile(t, "paper.html", []byte(page))

	text, err := NewHTMLExtractor().Extract(context.Background(), extract.Source{Path: path, Kind: domain.SourceHTML})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	for _, want := range []string{"# Regression Study", "# Introduction", "## Methods", "We fit a linear model.", "ordinary least squares"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
	for _, reject := range []string{"tracking", "color: red"} {
		if strings.Contains(text, reject) {
			t.Errorf("script/style content leaked: %q", reject)
		}
	}
}

func TestHTMLExtractorTagFreeFragment(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "fragment.html", []byte("just some words"))

	text, err := NewHTMLExtractor().Extract(context.Background(), extract.Source{Path: path, Kind: domain.SourceHTML})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(text, "just some words") {
		t.Fatalf("fragment text lost: %q", text)
	}
}

func TestPlainTextExtractorKeepsCleanText(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "notes.txt", []byte("A readable paragraph.\nAnother line.\n"))

	text, err := NewPlainTextExtractor().Extract(context.Background(), extract.Source{Path: path, Kind: domain.SourceText})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "A readable paragraph.\nAnother line." {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestPlainTextExtractorSalvagesBinary(t *testing.T) {
	t.Parallel()

	data := append([]byte{0x00, 0x01, 0xff, 0xfe}, []byte("Salvageable sentence")...)
	data = append(data, 0x00, 0x02)
	data = append(data, []byte("ab")...) // below the run threshold
	data = append(data, 0x00)
	path := writeTempFile(t, "blob.pdf", data)

	text, err := NewPlainTextExtractor().Extract(context.Background(), extract.Source{Path: path, Kind: domain.SourcePDF})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(text, "Salvageable sentence") {
		t.Fatalf("salvaged text missing: %q", text)
	}
	if strings.Contains(text, "ab\n") || text == "ab" {
		t.Fatalf("short run should be dropped: %q", text)
	}
}

func TestPlainTextExtractorRejectsPureBinary(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "noise.bin", []byte{0x00, 0x01, 0x02, 0x03, 0xff})

	if _, err := NewPlainTextExtractor().Extract(context.Background(), extract.Source{Path: path, Kind: domain.SourcePDF}); err == nil {
		t.Fatal("expected error for pure binary input")
	}
}
