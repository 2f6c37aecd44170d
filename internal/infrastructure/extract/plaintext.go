package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"paperforge/internal/extract"
)

// minRunLength filters out the short printable fragments that binary
// formats produce between structural markers.
const minRunLength = 4

// PlainTextExtractor is the last-resort local strategy: it salvages
// printable character runs from an arbitrary (possibly binary) file.
type PlainTextExtractor struct{}

var _ extract.Extractor = (*PlainTextExtractor)(nil)

// NewPlainTextExtractor returns the salvage strategy.
func NewPlainTextExtractor() *PlainTextExtractor { return &PlainTextExtractor{} }

// Name identifies the strategy inside the chain.
func (p *PlainTextExtractor) Name() string { return "plaintext-salvage" }

// Extract reads the file and keeps contiguous printable runs.
func (p *PlainTextExtractor) Extract(ctx context.Context, src extract.Source) (string, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}

	if utf8.Valid(data) {
		text := strings.TrimSpace(string(data))
		if text != "" && printableRatio(text) > 0.8 {
			return text, nil
		}
	}

	var (
		b   strings.Builder
		run []rune
	)
	flush := func() {
		if len(run) >= minRunLength {
			b.WriteString(string(run))
			b.WriteByte('\n')
		}
		run = run[:0]
	}

	for _, r := range string(data) {
		if unicode.IsPrint(r) && r != utf8.RuneError {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()

	result := strings.TrimSpace(b.String())
	if result == "" {
		return "", fmt.Errorf("no printable text found")
	}
	return result, nil
}

func printableRatio(s string) float64 {
	if s == "" {
		return 0
	}
	printable := 0
	total := 0
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return float64(printable) / float64(total)
}
