package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"paperforge/internal/domain"
	"paperforge/internal/infrastructure/llm"
	"paperforge/internal/ports"
)

const fixerSystemPrompt = `You are an expert Python code reviewer who repairs broken code.
Keep the original behavior, fix only what the errors require, keep existing
comments, and return the complete corrected file inside a single
` + "```python" + ` fenced block with no other text.`

// Loop drives each artifact through the validate-repair state machine:
// Unchecked -> Checking -> {Valid, Invalid} -> [Repairing -> Checking]* ->
// {Valid, Exhausted}. Repair attempts are bounded strictly by count, so the
// loop terminates in at most maxAttempts checking cycles per artifact.
type Loop struct {
	gen         ports.Generator
	checker     *Checker
	maxAttempts int
	concurrency int
	logger      *slog.Logger
}

// NewLoop builds the loop. maxAttempts is inclusive of the first generation:
// maxAttempts = 5 allows at most 4 repair calls.
func NewLoop(gen ports.Generator, checker *Checker, maxAttempts, concurrency int, logger *slog.Logger) *Loop {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Loop{
		gen:         gen,
		checker:     checker,
		maxAttempts: maxAttempts,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run validates (and repairs) every artifact. Output order matches input
// order regardless of completion time. Per-artifact exhaustion is recorded,
// never fatal; only cancellation aborts.
func (l *Loop) Run(ctx context.Context, artifacts []domain.Artifact, tasks []domain.CodeTask) ([]domain.Artifact, []domain.ValidationOutcome, error) {
	taskByID := make(map[string]domain.CodeTask, len(tasks))
	for _, t := range tasks {
		taskByID[t.ID] = t
	}

	siblings := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		siblings = append(siblings, a.FileName)
	}

	checked := make([]domain.Artifact, len(artifacts))
	outcomes := make([]domain.ValidationOutcome, len(artifacts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for idx, artifact := range artifacts {
		idx, artifact := idx, artifact
		g.Go(func() error {
			final, outcome, err := l.validateOne(gctx, artifact, taskByID[artifact.TaskID], siblings)
			if err != nil {
				return err
			}
			checked[idx] = final
			outcomes[idx] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return checked, outcomes, nil
}

// validateOne runs the state machine for a single artifact. The latest
// artifact version is always retained, even on exhaustion.
func (l *Loop) validateOne(ctx context.Context, artifact domain.Artifact, task domain.CodeTask, siblings []string) (domain.Artifact, domain.ValidationOutcome, error) {
	current := artifact
	attempts := 1 // the initial generation counts against the budget
	repairs := 0

	outcome := domain.ValidationOutcome{
		TaskID: artifact.TaskID,
		State:  domain.StateUnchecked,
	}

	for {
		if err := ctx.Err(); err != nil {
			return domain.Artifact{}, domain.ValidationOutcome{}, err
		}

		outcome.State = domain.StateChecking
		report, err := l.check(ctx, current, siblings)
		if err != nil {
			return domain.Artifact{}, domain.ValidationOutcome{}, err
		}

		outcome.SyntaxOK = report.SyntaxOK
		outcome.ImportsOK = report.ImportsOK
		outcome.Suggestions = mergeUnique(outcome.Suggestions, report.Suggestions)

		if report.SyntaxOK && report.ImportsOK {
			outcome.State = domain.StateValid
			outcome.Valid = true
			outcome.RepairRounds = repairs
			l.logger.Info("artifact valid", "task", current.TaskID, "repairs", repairs)
			return current, outcome, nil
		}

		outcome.State = domain.StateInvalid
		failures := report.Failures()
		outcome.ErrorMessages = mergeUnique(outcome.ErrorMessages, failures)

		if attempts >= l.maxAttempts {
			outcome.State = domain.StateExhausted
			outcome.Valid = false
			outcome.RepairRounds = repairs
			l.logger.Warn("artifact exhausted repair budget",
				"task", current.TaskID, "attempts", attempts, "errors", len(outcome.ErrorMessages))
			return current, outcome, nil
		}

		outcome.State = domain.StateRepairing
		l.logger.Info("repairing artifact", "task", current.TaskID, "attempt", attempts, "max", l.maxAttempts)

		fixed, err := l.repair(ctx, current, failures, task)
		attempts++
		repairs++
		if err != nil {
			if ctx.Err() != nil {
				return domain.Artifact{}, domain.ValidationOutcome{}, ctx.Err()
			}
			// The prior version stays in place; the next cycle re-checks it
			// and the attempt budget keeps the loop finite.
			l.logger.Warn("repair call failed", "task", current.TaskID, "error", err)
			continue
		}

		current = current.WithContent(fixed)
	}
}

// check applies the static checks; a placeholder from a failed generation is
// already invalid without parsing.
func (l *Loop) check(ctx context.Context, artifact domain.Artifact, siblings []string) (CheckReport, error) {
	if artifact.Failed {
		return CheckReport{
			SyntaxOK:     false,
			SyntaxErrors: []string{"generation failed upstream; no usable content"},
		}, nil
	}
	return l.checker.Check(ctx, artifact.Content, artifact.Dependencies, siblings)
}

// repair asks the generation capability for a corrected file, supplying the
// failing content, the exact error messages, and the original task context.
func (l *Loop) repair(ctx context.Context, artifact domain.Artifact, failures []string, task domain.CodeTask) (string, error) {
	var taskCtx strings.Builder
	if task.Title != "" {
		fmt.Fprintf(&taskCtx, "Task: %s (%s)\n", task.Title, task.Category)
	}
	if task.Description != "" {
		fmt.Fprintf(&taskCtx, "Purpose: %s\n", task.Description)
	}

	prompt := fmt.Sprintf(`Fix the following Python file.

%s
## Errors
%s

## Current content of %s
`+"```python\n%s\n```"+`

Return the complete corrected file.`,
		taskCtx.String(), strings.Join(failures, "\n"), artifact.FileName, artifact.Content)

	response, err := l.gen.Generate(ctx, ports.GenerateRequest{
		System: fixerSystemPrompt,
		User:   prompt,
	})
	if err != nil {
		return "", err
	}

	if code, ok := llm.ExtractPythonBlock(response); ok {
		return code, nil
	}
	if code := llm.StripCodeFences(response); code != "" {
		return code, nil
	}
	return "", fmt.Errorf("repair response carries no code")
}

func mergeUnique(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		seen[s] = struct{}{}
	}
	for _, s := range incoming {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		existing = append(existing, s)
	}
	return existing
}
