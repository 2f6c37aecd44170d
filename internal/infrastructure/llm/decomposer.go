package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"paperforge/internal/domain"
	"paperforge/internal/ports"
)

const decomposerSystemPrompt = `You analyze technical documents (theses, papers, reports) and plan the code implementation.
Break the document down into independent, concretely scoped Python code tasks.
Answer with a single JSON object and nothing else.`

// TaskDecomposer implements ports.Decomposer on top of the generation
// capability, asking for a structured task plan in one stateless call.
type TaskDecomposer struct {
	gen    ports.Generator
	budget int
	logger *slog.Logger
}

var _ ports.Decomposer = (*TaskDecomposer)(nil)

// NewTaskDecomposer wires the generator; budget caps how much raw document
// text is inlined into the request.
func NewTaskDecomposer(gen ports.Generator, budget int, logger *slog.Logger) *TaskDecomposer {
	if budget <= 0 {
		budget = 15000
	}
	return &TaskDecomposer{gen: gen, budget: budget, logger: logger}
}

type wireTask struct {
	ID           string   `json:"task_id"`
	Category     string   `json:"category"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
	DependsOn    []string `json:"depends_on"`
	InputDesc    string   `json:"input"`
	OutputDesc   string   `json:"expected_output"`
	Priority     int      `json:"priority"`
}

type wireDecomposition struct {
	Method    string     `json:"research_method"`
	Libraries []string   `json:"libraries"`
	Summary   string     `json:"summary"`
	Tasks     []wireTask `json:"code_tasks"`
}

// Decompose requests the task plan and maps it onto domain tasks. Dangling
// dependencies are not checked here; that contract belongs to the
// orchestrator boundary.
func (d *TaskDecomposer) Decompose(ctx context.Context, doc domain.NormalizedDocument, assets []domain.DataAsset) (domain.Decomposition, error) {
	response, err := d.gen.Generate(ctx, ports.GenerateRequest{
		System:    decomposerSystemPrompt,
		User:      d.buildPrompt(doc, assets),
		ForceJSON: true,
	})
	if err != nil {
		return domain.Decomposition{}, fmt.Errorf("decompose document: %w", err)
	}

	var wire wireDecomposition
	if err := DecodeJSON(response, &wire); err != nil {
		return domain.Decomposition{}, &domain.DecompositionError{Reason: err.Error()}
	}
	if len(wire.Tasks) == 0 {
		return domain.Decomposition{}, &domain.DecompositionError{Reason: "model returned no tasks"}
	}

	result := domain.Decomposition{
		Method:    wire.Method,
		Libraries: wire.Libraries,
		Summary:   wire.Summary,
		Tasks:     make([]domain.CodeTask, 0, len(wire.Tasks)),
	}

	for i, t := range wire.Tasks {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			id = fmt.Sprintf("task_%d", i+1)
		}
		result.Tasks = append(result.Tasks, domain.CodeTask{
			ID:           id,
			Category:     domain.NormalizeCategory(t.Category),
			Title:        t.Title,
			Description:  t.Description,
			Requirements: t.Requirements,
			DependsOn:    t.DependsOn,
			InputDesc:    t.InputDesc,
			OutputDesc:   t.OutputDesc,
			Priority:     t.Priority,
		})
	}

	d.logger.Info("document decomposed", "tasks", len(result.Tasks), "method", result.Method)
	return result, nil
}

func (d *TaskDecomposer) buildPrompt(doc domain.NormalizedDocument, assets []domain.DataAsset) string {
	var b strings.Builder

	b.WriteString("## Document\n")
	if doc.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", doc.Title)
	}
	if doc.Abstract != "" {
		fmt.Fprintf(&b, "Abstract: %s\n", doc.Abstract)
	}
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "### %s\n%s\n", s.Name, s.Text)
	}
	if doc.Degraded() {
		text := doc.RawText
		if len(text) > d.budget {
			text = text[:d.budget]
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	b.WriteString("\n## Data files\n")
	if len(assets) == 0 {
		b.WriteString("None. Generated code must simulate or synthesize example data.\n")
	}
	for _, a := range assets {
		fmt.Fprintf(&b, "- %s (%s): columns=%v rows=%d\n", a.FileName, a.FileType, a.Columns, a.RowCount)
	}

	b.WriteString(`
Return a JSON object with this shape:
{
  "research_method": "...",
  "libraries": ["pandas", "..."],
  "summary": "...",
  "code_tasks": [
    {
      "task_id": "task_1",
      "category": "data_preprocessing|data_analysis|model_training|visualization|algorithm_impl|statistical_test|simulation|utility",
      "title": "...",
      "description": "...",
      "requirements": ["..."],
      "depends_on": [],
      "input": "...",
      "expected_output": "...",
      "priority": 1
    }
  ]
}
Lower priority numbers run first. Preprocessing tasks must carry lower
priority values than analysis and visualization tasks. depends_on may only
reference task_ids present in code_tasks.`)

	return b.String()
}
