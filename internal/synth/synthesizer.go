package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"paperforge/internal/domain"
	"paperforge/internal/infrastructure/llm"
	"paperforge/internal/ports"
)

const coderSystemPrompt = `You are an expert Python engineer generating complete, runnable code files.

Rules:
1. Code must be complete and runnable on its own.
2. Include every required import.
3. Include a main() function and an if __name__ == "__main__" guard.
4. Handle errors with try/except where failures are plausible.
5. Reference data files by relative path.
6. Prefer pandas for data handling, matplotlib/seaborn for plots, scikit-learn for models.

Answer with a single JSON object:
{"file_name": "...", "code": "...", "description": "...", "dependencies": ["..."]}`

// Synthesizer produces one artifact per task through stateless generation
// calls, plus one integrating entry-point artifact.
type Synthesizer struct {
	gen         ports.Generator
	concurrency int
	logger      *slog.Logger
}

// New builds a synthesizer; concurrency bounds the per-task fan-out.
func New(gen ports.Generator, concurrency int, logger *slog.Logger) *Synthesizer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Synthesizer{gen: gen, concurrency: concurrency, logger: logger}
}

// Run generates artifacts in ascending priority order (stable for ties).
// Generation calls are dispatched concurrently, but the returned slice is
// ordered by the task list, never by completion time. A single task's
// failure yields a flagged placeholder instead of aborting the run.
func (s *Synthesizer) Run(ctx context.Context, doc domain.NormalizedDocument, assets []domain.DataAsset, dec domain.Decomposition) ([]domain.Artifact, error) {
	tasks := make([]domain.CodeTask, len(dec.Tasks))
	copy(tasks, dec.Tasks)
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Priority < tasks[j].Priority })

	shared := buildContext(doc, assets, dec)

	artifacts := make([]domain.Artifact, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for idx, task := range tasks {
		idx, task := idx, task
		g.Go(func() error {
			s.logger.Info("generating task", "task", task.ID, "title", task.Title)
			artifact, err := s.generateTask(gctx, shared, task)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Error("task generation failed", "task", task.ID, "error", err)
				artifact = placeholder(task, err)
			}
			artifacts[idx] = artifact
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entry, err := s.generateEntryPoint(ctx, shared, artifacts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("entry-point generation failed", "error", err)
		entry = placeholder(domain.CodeTask{ID: "main", Title: "entry point", Category: domain.TaskUtility}, err)
		entry.FileName = "main.py"
	}
	artifacts = append(artifacts, entry)

	return artifacts, nil
}

// flexStrings tolerates models returning a JSON array or a stringified one.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(single), &list); err == nil {
		*f = list
		return nil
	}
	if single != "" {
		*f = []string{single}
	}
	return nil
}

type wireArtifact struct {
	FileName     string      `json:"file_name"`
	Code         string      `json:"code"`
	Description  string      `json:"description"`
	Dependencies flexStrings `json:"dependencies"`
}

func (s *Synthesizer) generateTask(ctx context.Context, shared string, task domain.CodeTask) (domain.Artifact, error) {
	prompt := fmt.Sprintf(`%s

## Current task
- id: %s
- title: %s
- category: %s
- description: %s
- requirements: %s
- depends on: %s
- input: %s
- expected output: %s

Generate the complete Python file for this task.`,
		shared, task.ID, task.Title, task.Category, task.Description,
		strings.Join(task.Requirements, "; "), strings.Join(task.DependsOn, ", "),
		task.InputDesc, task.OutputDesc)

	response, err := s.gen.Generate(ctx, ports.GenerateRequest{
		System:    coderSystemPrompt,
		User:      prompt,
		ForceJSON: true,
	})
	if err != nil {
		return domain.Artifact{}, err
	}

	return decodeArtifact(response, task)
}

func (s *Synthesizer) generateEntryPoint(ctx context.Context, shared string, artifacts []domain.Artifact) (domain.Artifact, error) {
	var files strings.Builder
	for _, a := range artifacts {
		if a.Failed {
			continue
		}
		fmt.Fprintf(&files, "- %s: %s\n", a.FileName, a.Description)
	}

	prompt := fmt.Sprintf(`%s

## Generated files
%s
Generate main.py: an entry point that imports and runs the modules above in a
sensible order, with optional command-line selection of individual steps and
friendly error reporting. Reference the files by module name only; never
inline their content.`, shared, files.String())

	response, err := s.gen.Generate(ctx, ports.GenerateRequest{
		System:    coderSystemPrompt,
		User:      prompt,
		ForceJSON: true,
	})
	if err != nil {
		return domain.Artifact{}, err
	}

	task := domain.CodeTask{ID: "main", Title: "entry point", Category: domain.TaskUtility}
	artifact, err := decodeArtifact(response, task)
	if err != nil {
		return domain.Artifact{}, err
	}
	artifact.FileName = "main.py"
	return artifact, nil
}

// decodeArtifact parses the structured response, falling back to a fenced
// python block when the model ignored the schema.
func decodeArtifact(response string, task domain.CodeTask) (domain.Artifact, error) {
	var wire wireArtifact
	if err := llm.DecodeJSON(response, &wire); err == nil && wire.Code != "" {
		name := strings.TrimSpace(wire.FileName)
		if name == "" {
			name = defaultFileName(task)
		}
		desc := wire.Description
		if desc == "" {
			desc = task.Description
		}
		return domain.Artifact{
			TaskID:       task.ID,
			FileName:     name,
			Content:      wire.Code,
			Description:  desc,
			Dependencies: wire.Dependencies,
		}, nil
	}

	if code, ok := llm.ExtractPythonBlock(response); ok {
		return domain.Artifact{
			TaskID:      task.ID,
			FileName:    defaultFileName(task),
			Content:     code,
			Description: task.Description,
		}, nil
	}

	return domain.Artifact{}, fmt.Errorf("task %s: response carries no usable code", task.ID)
}

// placeholder is a flagged artifact that the validate-repair loop treats as
// already invalid on first check.
func placeholder(task domain.CodeTask, cause error) domain.Artifact {
	return domain.Artifact{
		TaskID:      task.ID,
		FileName:    defaultFileName(task),
		Content:     fmt.Sprintf("# generation failed: %v\n", cause),
		Description: task.Description,
		Failed:      true,
	}
}

func defaultFileName(task domain.CodeTask) string {
	base := strings.ReplaceAll(strings.TrimSpace(task.ID), " ", "_")
	if base == "" {
		base = string(task.Category)
	}
	return base + ".py"
}

// buildContext assembles the shared prompt context supplied to every
// stateless call: document summary, asset summaries, and the task list.
func buildContext(doc domain.NormalizedDocument, assets []domain.DataAsset, dec domain.Decomposition) string {
	var b strings.Builder

	b.WriteString("## Project background\n")
	if doc.Title != "" {
		fmt.Fprintf(&b, "Document: %s\n", doc.Title)
	}
	if dec.Method != "" {
		fmt.Fprintf(&b, "Method: %s\n", dec.Method)
	}
	if len(dec.Libraries) > 0 {
		fmt.Fprintf(&b, "Libraries: %s\n", strings.Join(dec.Libraries, ", "))
	}
	if dec.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", dec.Summary)
	}

	b.WriteString("\n## Data\n")
	if len(assets) == 0 {
		b.WriteString("No data files are provided; simulate or generate example data as needed.\n")
	}
	for _, a := range assets {
		fmt.Fprintf(&b, "### %s\n- type: %s\n", a.FileName, a.FileType)
		if len(a.Columns) > 0 {
			fmt.Fprintf(&b, "- columns: %s\n", strings.Join(a.Columns, ", "))
		}
		if a.RowCount > 0 {
			fmt.Fprintf(&b, "- rows: %d\n", a.RowCount)
		}
		if len(a.Sample) > 0 {
			fmt.Fprintf(&b, "- sample: %v\n", a.Sample[0])
		}
	}

	b.WriteString("\n## Planned tasks\n")
	for _, t := range dec.Tasks {
		fmt.Fprintf(&b, "- [%s] %s (%s): %s\n", t.ID, t.Title, t.Category, t.Description)
	}

	return b.String()
}
