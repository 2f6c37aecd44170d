package extract

import (
	"context"

	"paperforge/internal/extract"
	"paperforge/internal/ports"
)

// RemoteExtractor adapts the document-conversion capability into the
// extraction chain as its primary provider.
type RemoteExtractor struct {
	converter ports.DocumentConverter
}

var _ extract.Extractor = (*RemoteExtractor)(nil)

// NewRemoteExtractor wraps a converter client.
func NewRemoteExtractor(converter ports.DocumentConverter) *RemoteExtractor {
	return &RemoteExtractor{converter: converter}
}

// Name identifies the strategy inside the chain.
func (r *RemoteExtractor) Name() string { return "remote-converter" }

// Extract submits the source and waits for converted text.
func (r *RemoteExtractor) Extract(ctx context.Context, src extract.Source) (string, error) {
	return r.converter.Convert(ctx, src.Path)
}
