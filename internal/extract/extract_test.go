package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"paperforge/internal/domain"
)

type stubExtractor struct {
	name string
	text string
	err  error
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Extract(ctx context.Context, src Source) (string, error) {
	return s.text, s.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestChainReturnsFirstNonEmptyResult(t *testing.T) {
	t.Parallel()

	chain := NewChain(discard(),
		&stubExtractor{name: "remote", err: fmt.Errorf("service down")},
		&stubExtractor{name: "empty", text: ""},
		&stubExtractor{name: "salvage", text: "recovered text"},
	)

	text, err := chain.Extract(context.Background(), Source{Path: "doc.pdf", Kind: domain.SourcePDF})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "recovered text" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestChainSkipsLaterExtractorsOnSuccess(t *testing.T) {
	t.Parallel()

	chain := NewChain(discard(),
		&stubExtractor{name: "first", text: "primary"},
		&stubExtractor{name: "second", err: fmt.Errorf("must not be reached")},
	)

	text, err := chain.Extract(context.Background(), Source{Path: "doc.html", Kind: domain.SourceHTML})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "primary" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestChainCollectsAllCauses(t *testing.T) {
	t.Parallel()

	remoteErr := fmt.Errorf("service down")
	chain := NewChain(discard(),
		&stubExtractor{name: "remote", err: remoteErr},
		&stubExtractor{name: "salvage", text: ""},
	)

	_, err := chain.Extract(context.Background(), Source{Path: "doc.pdf", Kind: domain.SourcePDF})
	if err == nil {
		t.Fatal("expected unreadable source error")
	}

	var unreadable *domain.UnreadableSourceError
	if !errors.As(err, &unreadable) {
		t.Fatalf("expected UnreadableSourceError, got %T: %v", err, err)
	}
	if unreadable.Source != "doc.pdf" {
		t.Fatalf("unexpected source: %q", unreadable.Source)
	}
	if len(unreadable.Causes) != 2 {
		t.Fatalf("expected 2 causes, got %d", len(unreadable.Causes))
	}
	if !errors.Is(err, remoteErr) {
		t.Fatal("expected the remote cause to be wrapped")
	}
}

func TestChainWithoutExtractors(t *testing.T) {
	t.Parallel()

	chain := NewChain(discard())
	_, err := chain.Extract(context.Background(), Source{Path: "doc.pdf", Kind: domain.SourcePDF})

	var unreadable *domain.UnreadableSourceError
	if !errors.As(err, &unreadable) {
		t.Fatalf("expected UnreadableSourceError, got %T: %v", err, err)
	}
}

func TestChainHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := NewChain(discard(), &stubExtractor{name: "never", text: "x"})
	if _, err := chain.Extract(ctx, Source{Path: "doc.pdf", Kind: domain.SourcePDF}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
