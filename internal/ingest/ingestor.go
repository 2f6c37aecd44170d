package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"paperforge/internal/domain"
	"paperforge/internal/extract"
	"paperforge/internal/infrastructure/llm"
	"paperforge/internal/ports"
)

const structurerSystemPrompt = `You extract structured information from technical documents.
Identify the title, abstract, keywords, section summaries, tables, and references.
Answer with a single JSON object and nothing else.`

// Ingestor produces a NormalizedDocument from a raw source. Structured
// extraction may degrade; raw text never does.
type Ingestor struct {
	gen    ports.Generator
	chains map[domain.SourceKind]*extract.Chain
	budget int
	logger *slog.Logger
}

// New wires the structuring generator and per-kind extraction chains.
// budget caps how much raw text is sent to the structuring step.
func New(gen ports.Generator, chains map[domain.SourceKind]*extract.Chain, budget int, logger *slog.Logger) *Ingestor {
	if budget <= 0 {
		budget = 15000
	}
	return &Ingestor{gen: gen, chains: chains, budget: budget, logger: logger}
}

// DetectKind guesses the source kind from the file extension. Unknown
// extensions are treated as markdown, mirroring permissive intake.
func DetectKind(path string) domain.SourceKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return domain.SourcePDF
	case ".html", ".htm":
		return domain.SourceHTML
	case ".txt":
		return domain.SourceText
	default:
		return domain.SourceMarkdown
	}
}

// Ingest acquires raw text for the source and runs the structuring step.
// Total acquisition failure returns *domain.UnreadableSourceError; a
// structuring failure only degrades the result to raw text.
func (i *Ingestor) Ingest(ctx context.Context, path string, kind domain.SourceKind) (domain.NormalizedDocument, error) {
	raw, err := i.acquire(ctx, path, kind)
	if err != nil {
		return domain.NormalizedDocument{}, err
	}

	doc := i.structure(ctx, raw)
	doc.RawText = raw
	return doc, nil
}

func (i *Ingestor) acquire(ctx context.Context, path string, kind domain.SourceKind) (string, error) {
	switch kind {
	case domain.SourceMarkdown, domain.SourceText:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &domain.UnreadableSourceError{
				Source: path,
				Causes: []error{fmt.Errorf("read source: %w", err)},
			}
		}
		i.logger.Info("source read directly", "path", path, "chars", len(data))
		return string(data), nil
	default:
		chain, ok := i.chains[kind]
		if !ok {
			return "", &domain.UnreadableSourceError{
				Source: path,
				Causes: []error{fmt.Errorf("no extraction chain for kind %s", kind)},
			}
		}
		return chain.Extract(ctx, extract.Source{Path: path, Kind: kind})
	}
}

type wireSection struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

type wireTable struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DataHint    string `json:"data_hint"`
}

type wireDocument struct {
	Title      string        `json:"title"`
	Abstract   string        `json:"abstract"`
	Keywords   []string      `json:"keywords"`
	Sections   []wireSection `json:"sections"`
	Tables     []wireTable   `json:"tables"`
	References []string      `json:"references"`
}

// structure delegates structured extraction to the generation capability.
// Any failure yields an empty (degraded) document; the caller attaches the
// raw text either way.
func (i *Ingestor) structure(ctx context.Context, raw string) domain.NormalizedDocument {
	excerpt := raw
	if len(excerpt) > i.budget {
		excerpt = excerpt[:i.budget]
	}

	prompt := fmt.Sprintf(`Analyze the following document and extract its structure.

Document:
%s

Return a JSON object:
{
  "title": "...",
  "abstract": "...",
  "keywords": ["..."],
  "sections": [{"name": "...", "summary": "..."}],
  "tables": [{"name": "...", "description": "...", "data_hint": "..."}],
  "references": ["..."]
}`, excerpt)

	response, err := i.gen.Generate(ctx, ports.GenerateRequest{
		System:    structurerSystemPrompt,
		User:      prompt,
		ForceJSON: true,
	})
	if err != nil {
		i.logger.Warn("structuring failed, continuing with raw text", "error", err)
		return domain.NormalizedDocument{}
	}

	var wire wireDocument
	if err := llm.DecodeJSON(response, &wire); err != nil {
		i.logger.Warn("structuring response unusable, continuing with raw text", "error", err)
		return domain.NormalizedDocument{}
	}

	doc := domain.NormalizedDocument{
		Title:      wire.Title,
		Abstract:   wire.Abstract,
		Keywords:   wire.Keywords,
		References: wire.References,
	}
	for _, s := range wire.Sections {
		doc.Sections = append(doc.Sections, domain.Section{Name: s.Name, Text: s.Summary})
	}
	for _, t := range wire.Tables {
		doc.Tables = append(doc.Tables, domain.TableDescriptor{
			Name:        t.Name,
			Description: t.Description,
			DataHint:    t.DataHint,
		})
	}

	i.logger.Info("document structured", "title", doc.Title, "sections", len(doc.Sections), "tables", len(doc.Tables))
	return doc
}
