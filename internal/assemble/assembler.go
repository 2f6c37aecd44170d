package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"paperforge/internal/domain"
	"paperforge/internal/ports"
)

const writerSystemPrompt = `You write concise project documentation in Markdown.
Answer with plain Markdown, no surrounding commentary.`

// Assembler merges validated artifacts, data assets, and documentation into
// the final deliverable. Assembly is a pure merge except for the README
// generation call, which fails softly into a templated document.
type Assembler struct {
	gen    ports.Generator
	logger *slog.Logger
}

// New builds an assembler.
func New(gen ports.Generator, logger *slog.Logger) *Assembler {
	return &Assembler{gen: gen, logger: logger}
}

// Build produces the deliverable. A file-name collision means the
// synthesizer's naming discipline was violated and is fatal.
func (a *Assembler) Build(ctx context.Context, projectName string, doc domain.NormalizedDocument, artifacts []domain.Artifact, assets []domain.DataAsset, outcomes []domain.ValidationOutcome) (domain.Deliverable, error) {
	files := make(map[string]string, len(artifacts))
	for _, artifact := range artifacts {
		if _, exists := files[artifact.FileName]; exists {
			return domain.Deliverable{}, &domain.AssemblyConsistencyError{
				Reason: fmt.Sprintf("file name %q produced by more than one task", artifact.FileName),
			}
		}
		files[artifact.FileName] = artifact.Content
	}

	requirements := unionRequirements(artifacts)

	readme, instructions := a.document(ctx, doc, artifacts, requirements)

	deliverable := domain.Deliverable{
		ProjectName:     projectName,
		DocumentTitle:   doc.Title,
		Files:           files,
		Requirements:    requirements,
		Readme:          readme,
		RunInstructions: instructions,
		Assets:          assets,
		Outcomes:        outcomes,
	}

	a.logger.Info("deliverable assembled",
		"project", projectName, "files", len(files), "requirements", len(requirements),
		"failed_tasks", len(deliverable.FailedTasks()))
	return deliverable, nil
}

// unionRequirements de-duplicates declared dependency names across all
// artifacts, preserving first-seen order.
func unionRequirements(artifacts []domain.Artifact) []string {
	seen := make(map[string]struct{})
	var merged []string
	for _, artifact := range artifacts {
		for _, dep := range artifact.Dependencies {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				continue
			}
			key := strings.ToLower(dep)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, dep)
		}
	}
	return merged
}

// document asks the model for a README and run instructions; on any failure
// it falls back to the templated versions. It never aborts the deliverable.
func (a *Assembler) document(ctx context.Context, doc domain.NormalizedDocument, artifacts []domain.Artifact, requirements []string) (string, string) {
	fallbackReadme := templateReadme(doc, artifacts, requirements)
	fallbackRun := templateRunInstructions(artifacts)

	var files strings.Builder
	for _, artifact := range artifacts {
		fmt.Fprintf(&files, "- %s: %s\n", artifact.FileName, artifact.Description)
	}

	prompt := fmt.Sprintf(`Write a README.md for a generated Python project.

Document title: %s
Abstract: %s
Files:
%s
Dependencies: %s

Cover: what the project does, the file layout, installation
(pip install -r requirements.txt), and how to run it (python main.py).`,
		doc.Title, doc.Abstract, files.String(), strings.Join(requirements, ", "))

	readme, err := a.gen.Generate(ctx, ports.GenerateRequest{
		System: writerSystemPrompt,
		User:   prompt,
	})
	if err != nil || strings.TrimSpace(readme) == "" {
		a.logger.Warn("readme generation failed, using template", "error", err)
		return fallbackReadme, fallbackRun
	}

	return readme, fallbackRun
}

func templateReadme(doc domain.NormalizedDocument, artifacts []domain.Artifact, requirements []string) string {
	title := doc.Title
	if title == "" {
		title = "Generated project"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	b.WriteString("Code generated automatically from the source document.\n\n## Files\n\n")
	for _, artifact := range artifacts {
		fmt.Fprintf(&b, "- `%s`: %s\n", artifact.FileName, artifact.Description)
	}
	b.WriteString("\n## Installation\n\n```bash\npip install -r requirements.txt\n```\n")
	b.WriteString("\n## Usage\n\n```bash\npython main.py\n```\n")
	if len(requirements) > 0 {
		b.WriteString("\n## Dependencies\n\n")
		for _, dep := range requirements {
			fmt.Fprintf(&b, "- %s\n", dep)
		}
	}
	return b.String()
}

func templateRunInstructions(artifacts []domain.Artifact) string {
	var b strings.Builder
	b.WriteString("# Run instructions\n\n")
	b.WriteString("1. Use Python >= 3.8.\n")
	b.WriteString("2. Install dependencies: `pip install -r requirements.txt`.\n")
	b.WriteString("3. Run the full pipeline: `python main.py`.\n\n")
	b.WriteString("Individual steps:\n\n")
	for i, artifact := range artifacts {
		if artifact.FileName == "main.py" {
			continue
		}
		fmt.Fprintf(&b, "%d. `python %s`: %s\n", i+1, artifact.FileName, artifact.Description)
	}
	return b.String()
}
