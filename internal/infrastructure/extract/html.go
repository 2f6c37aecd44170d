package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"paperforge/internal/extract"
)

// HTMLExtractor pulls readable text out of an HTML source with goquery.
type HTMLExtractor struct{}

var _ extract.Extractor = (*HTMLExtractor)(nil)

// NewHTMLExtractor returns the goquery-backed strategy.
func NewHTMLExtractor() *HTMLExtractor { return &HTMLExtractor{} }

// Name identifies the strategy inside the chain.
func (h *HTMLExtractor) Name() string { return "html" }

// Extract parses the file and returns title plus body text, with script and
// style content dropped.
func (h *HTMLExtractor) Extract(ctx context.Context, src extract.Source) (string, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		b.WriteString("# " + title + "\n\n")
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	body.Find("h1, h2, h3, h4, p, li, td, th, pre").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h1":
			b.WriteString("# " + text + "\n\n")
		case "h2":
			b.WriteString("## " + text + "\n\n")
		case "h3", "h4":
			b.WriteString("### " + text + "\n\n")
		default:
			b.WriteString(text + "\n\n")
		}
	})

	result := strings.TrimSpace(b.String())
	if result == "" {
		// Tag-free fragments still deserve a chance downstream.
		result = strings.TrimSpace(doc.Text())
	}
	return result, nil
}
