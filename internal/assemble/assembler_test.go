package assemble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"paperforge/internal/domain"
	"paperforge/internal/ports"
)

type stubGenerator struct {
	response string
	err      error
}

func (s *stubGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	return s.response, s.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuildMergesArtifacts(t *testing.T) {
	t.Parallel()

	artifacts := []domain.Artifact{
		{TaskID: "task_1", FileName: "clean.py", Content: "print('clean')", Dependencies: []string{"pandas", "numpy"}},
		{TaskID: "task_2", FileName: "plot.py", Content: "print('plot')", Dependencies: []string{"matplotlib", "Pandas"}},
		{TaskID: "main", FileName: "main.py", Content: "print('main')"},
	}
	outcomes := []domain.ValidationOutcome{
		{TaskID: "task_1", Valid: true},
		{TaskID: "task_2", Valid: true},
		{TaskID: "main", Valid: true},
	}

	asm := New(&stubGenerator{response: "# Generated README"}, discard())
	deliverable, err := asm.Build(context.Background(), "demo", domain.NormalizedDocument{Title: "Study"}, artifacts, nil, outcomes)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(deliverable.Files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(deliverable.Files))
	}
	if deliverable.Files["clean.py"] != "print('clean')" {
		t.Fatalf("file content lost: %q", deliverable.Files["clean.py"])
	}
	if deliverable.Readme != "# Generated README" {
		t.Fatalf("generated readme not used: %q", deliverable.Readme)
	}
	if deliverable.RunInstructions == "" {
		t.Fatal("run instructions missing")
	}
	if deliverable.DocumentTitle != "Study" {
		t.Fatalf("unexpected title: %q", deliverable.DocumentTitle)
	}
}

func TestBuildRequirementsFirstSeenOrder(t *testing.T) {
	t.Parallel()

	artifacts := []domain.Artifact{
		{TaskID: "task_1", FileName: "a.py", Dependencies: []string{"pandas", "numpy"}},
		{TaskID: "task_2", FileName: "b.py", Dependencies: []string{"NumPy", "matplotlib", " "}},
		{TaskID: "task_3", FileName: "c.py", Dependencies: []string{"seaborn", "pandas"}},
	}

	asm := New(&stubGenerator{response: "readme"}, discard())
	deliverable, err := asm.Build(context.Background(), "demo", domain.NormalizedDocument{}, artifacts, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := []string{"pandas", "numpy", "matplotlib", "seaborn"}
	if len(deliverable.Requirements) != len(want) {
		t.Fatalf("unexpected requirements: %v", deliverable.Requirements)
	}
	for i := range want {
		if deliverable.Requirements[i] != want[i] {
			t.Fatalf("unexpected requirement order: got %v, want %v", deliverable.Requirements, want)
		}
	}
}

func TestBuildFileNameCollisionIsFatal(t *testing.T) {
	t.Parallel()

	artifacts := []domain.Artifact{
		{TaskID: "task_1", FileName: "analysis.py", Content: "a"},
		{TaskID: "task_2", FileName: "analysis.py", Content: "b"},
	}

	asm := New(&stubGenerator{response: "readme"}, discard())
	_, err := asm.Build(context.Background(), "demo", domain.NormalizedDocument{}, artifacts, nil, nil)

	var consistency *domain.AssemblyConsistencyError
	if !errors.As(err, &consistency) {
		t.Fatalf("expected AssemblyConsistencyError, got %T: %v", err, err)
	}
	if !strings.Contains(consistency.Reason, "analysis.py") {
		t.Fatalf("reason should name the colliding file: %q", consistency.Reason)
	}
}

func TestBuildReadmeGenerationFailsSoftly(t *testing.T) {
	t.Parallel()

	artifacts := []domain.Artifact{
		{TaskID: "task_1", FileName: "clean.py", Description: "cleans the data", Dependencies: []string{"pandas"}},
	}

	asm := New(&stubGenerator{err: fmt.Errorf("model unavailable")}, discard())
	deliverable, err := asm.Build(context.Background(), "demo", domain.NormalizedDocument{Title: "Study"}, artifacts, nil, nil)
	if err != nil {
		t.Fatalf("build must not fail on readme generation: %v", err)
	}

	for _, want := range []string{"# Study", "clean.py", "pip install -r requirements.txt", "python main.py", "pandas"} {
		if !strings.Contains(deliverable.Readme, want) {
			t.Errorf("templated readme missing %q:\n%s", want, deliverable.Readme)
		}
	}
}

func TestBuildBlankReadmeFallsBackToTemplate(t *testing.T) {
	t.Parallel()

	asm := New(&stubGenerator{response: "   \n"}, discard())
	deliverable, err := asm.Build(context.Background(), "demo", domain.NormalizedDocument{}, nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(deliverable.Readme, "# Generated project") {
		t.Fatalf("expected template fallback, got %q", deliverable.Readme)
	}
}

func TestBuildRunInstructionsSkipEntryPoint(t *testing.T) {
	t.Parallel()

	artifacts := []domain.Artifact{
		{TaskID: "task_1", FileName: "clean.py", Description: "cleans"},
		{TaskID: "main", FileName: "main.py", Description: "entry point"},
	}

	asm := New(&stubGenerator{response: "readme"}, discard())
	deliverable, err := asm.Build(context.Background(), "demo", domain.NormalizedDocument{}, artifacts, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(deliverable.RunInstructions, "python clean.py") {
		t.Fatalf("individual step missing:\n%s", deliverable.RunInstructions)
	}
	if strings.Contains(deliverable.RunInstructions, "`python main.py`: entry point") {
		t.Fatal("entry point must not appear as an individual step")
	}
}

func TestFailedTasks(t *testing.T) {
	t.Parallel()

	deliverable := domain.Deliverable{Outcomes: []domain.ValidationOutcome{
		{TaskID: "task_1", Valid: true},
		{TaskID: "task_2", Valid: false},
	}}
	failed := deliverable.FailedTasks()
	if len(failed) != 1 || failed[0] != "task_2" {
		t.Fatalf("unexpected failed tasks: %v", failed)
	}
}
