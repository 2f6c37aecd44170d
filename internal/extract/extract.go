package extract

import (
	"context"
	"fmt"
	"log/slog"

	"paperforge/internal/domain"
)

// Source identifies one raw document plus its declared encoding.
type Source struct {
	Path string
	Kind domain.SourceKind
}

// Extractor captures one text-extraction strategy (remote conversion,
// local HTML parsing, plain-text salvage, ...).
type Extractor interface {
	Name() string
	Extract(ctx context.Context, src Source) (string, error)
}

// Chain tries extractors in declared order and returns the first non-empty
// result. Adding further fallback providers means appending to the list.
type Chain struct {
	extractors []Extractor
	logger     *slog.Logger
}

// NewChain builds an ordered fallback chain.
func NewChain(logger *slog.Logger, extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors, logger: logger}
}

// Extract walks the chain. When every provider fails, the error is an
// *domain.UnreadableSourceError carrying all causes.
func (c *Chain) Extract(ctx context.Context, src Source) (string, error) {
	if len(c.extractors) == 0 {
		return "", &domain.UnreadableSourceError{
			Source: src.Path,
			Causes: []error{fmt.Errorf("no extractor registered for kind %s", src.Kind)},
		}
	}

	var causes []error
	for _, ex := range c.extractors {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := ex.Extract(ctx, src)
		if err != nil {
			c.logger.Warn("extractor failed, trying next", "extractor", ex.Name(), "error", err)
			causes = append(causes, fmt.Errorf("%s: %w", ex.Name(), err))
			continue
		}
		if text == "" {
			causes = append(causes, fmt.Errorf("%s: produced no text", ex.Name()))
			continue
		}

		c.logger.Info("text extracted", "extractor", ex.Name(), "chars", len(text))
		return text, nil
	}

	return "", &domain.UnreadableSourceError{Source: src.Path, Causes: causes}
}
