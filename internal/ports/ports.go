package ports

import (
	"context"

	"paperforge/internal/domain"
)

// GenerateRequest carries one complete, self-contained generation call.
// Calls are stateless: no conversation history survives between requests.
type GenerateRequest struct {
	System      string
	User        string
	ForceJSON   bool
	Temperature float32
	MaxTokens   int
}

// Generator invokes the external language-model service.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// DocumentConverter turns a binary/scanned source into text through a remote
// conversion service (async submit plus poll-until-terminal).
type DocumentConverter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// Decomposer turns a normalized document into an ordered set of independent
// code-generation tasks.
type Decomposer interface {
	Decompose(ctx context.Context, doc domain.NormalizedDocument, assets []domain.DataAsset) (domain.Decomposition, error)
}

// RunRepository persists run outcomes for audit and history.
type RunRepository interface {
	SaveRun(ctx context.Context, record domain.RunRecord) error
}
