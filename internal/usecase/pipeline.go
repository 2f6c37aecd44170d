package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"paperforge/internal/domain"
	"paperforge/internal/ports"
)

// Stage interfaces keep the orchestrator testable; the app wires the
// concrete implementations.
type (
	// Ingestor produces the normalized document (phase 1).
	Ingestor interface {
		Ingest(ctx context.Context, path string, kind domain.SourceKind) (domain.NormalizedDocument, error)
	}

	// AssetScanner discovers tabular inputs (phase 2).
	AssetScanner interface {
		Scan(dir string) ([]domain.DataAsset, error)
	}

	// Synthesizer generates one artifact per task plus the entry point (phase 4).
	Synthesizer interface {
		Run(ctx context.Context, doc domain.NormalizedDocument, assets []domain.DataAsset, dec domain.Decomposition) ([]domain.Artifact, error)
	}

	// Validator drives the validate-repair loop (phase 5).
	Validator interface {
		Run(ctx context.Context, artifacts []domain.Artifact, tasks []domain.CodeTask) ([]domain.Artifact, []domain.ValidationOutcome, error)
	}

	// Assembler merges everything into the deliverable (phase 6).
	Assembler interface {
		Build(ctx context.Context, projectName string, doc domain.NormalizedDocument, artifacts []domain.Artifact, assets []domain.DataAsset, outcomes []domain.ValidationOutcome) (domain.Deliverable, error)
	}
)

// PipelineDeps wires all stages into the orchestrator.
type PipelineDeps struct {
	Ingestor   Ingestor
	Assets     AssetScanner
	Decomposer ports.Decomposer
	Synth      Synthesizer
	Validator  Validator
	Assembler  Assembler
	Repository ports.RunRepository
	OutputRoot string
	Logger     *slog.Logger
}

// Pipeline owns the end-to-end run: six strictly ordered phases, each gated
// on the previous phase's (possibly degraded) output, with cooperative
// cancellation at every phase boundary. An aborted run persists nothing.
type Pipeline struct {
	ingestor   Ingestor
	assets     AssetScanner
	decomposer ports.Decomposer
	synth      Synthesizer
	validator  Validator
	assembler  Assembler
	repository ports.RunRepository
	outputRoot string
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		ingestor:   deps.Ingestor,
		assets:     deps.Assets,
		decomposer: deps.Decomposer,
		synth:      deps.Synth,
		validator:  deps.Validator,
		assembler:  deps.Assembler,
		repository: deps.Repository,
		outputRoot: deps.OutputRoot,
		logger:     deps.Logger,
	}
}

// RunRequest identifies one source document plus an optional data directory.
type RunRequest struct {
	SourcePath string
	SourceKind domain.SourceKind
	DataDir    string
}

// Run executes the full pipeline and returns the persisted deliverable or a
// typed failure naming the phase and cause.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (domain.Deliverable, error) {
	runID := newRunID()
	logger := p.logger.With("run", runID)
	logger.Info("run started", "source", req.SourcePath, "kind", req.SourceKind)

	fail := func(phase domain.Phase, err error) (domain.Deliverable, error) {
		perr := &domain.PhaseError{Phase: phase, Err: err}
		logger.Error("run aborted", "phase", phase, "error", err)
		p.record(ctx, domain.RunRecord{
			ID:         runID,
			Status:     domain.RunFailed,
			FinishedAt: time.Now(),
		})
		return domain.Deliverable{}, perr
	}

	// Phase 1: Ingest.
	if err := ctx.Err(); err != nil {
		return fail(domain.PhaseIngest, err)
	}
	doc, err := p.ingestor.Ingest(ctx, req.SourcePath, req.SourceKind)
	if err != nil {
		return fail(domain.PhaseIngest, err)
	}
	if doc.Degraded() {
		logger.Warn("document structuring degraded to raw text")
	}

	// Phase 2: DataScan.
	if err := ctx.Err(); err != nil {
		return fail(domain.PhaseDataScan, err)
	}
	assets, err := p.assets.Scan(req.DataDir)
	if err != nil {
		return fail(domain.PhaseDataScan, err)
	}

	// Phase 3: Analyze.
	if err := ctx.Err(); err != nil {
		return fail(domain.PhaseAnalyze, err)
	}
	dec, err := p.decomposer.Decompose(ctx, doc, assets)
	if err != nil {
		return fail(domain.PhaseAnalyze, err)
	}
	if err := domain.ValidateTasks(dec.Tasks); err != nil {
		return fail(domain.PhaseAnalyze, err)
	}
	logger.Info("analysis complete", "tasks", len(dec.Tasks))

	// Phase 4: Synthesize.
	if err := ctx.Err(); err != nil {
		return fail(domain.PhaseSynthesize, err)
	}
	artifacts, err := p.synth.Run(ctx, doc, assets, dec)
	if err != nil {
		return fail(domain.PhaseSynthesize, err)
	}

	// Phase 5: ValidateRepair. Exhaustion is per-task and non-fatal.
	if err := ctx.Err(); err != nil {
		return fail(domain.PhaseValidateRepair, err)
	}
	artifacts, outcomes, err := p.validator.Run(ctx, artifacts, dec.Tasks)
	if err != nil {
		return fail(domain.PhaseValidateRepair, err)
	}

	// Phase 6: Assemble and persist.
	if err := ctx.Err(); err != nil {
		return fail(domain.PhaseAssemble, err)
	}
	deliverable, err := p.assembler.Build(ctx, runID, doc, artifacts, assets, outcomes)
	if err != nil {
		return fail(domain.PhaseAssemble, err)
	}
	outDir, err := p.persist(deliverable, doc, dec)
	if err != nil {
		return fail(domain.PhaseAssemble, err)
	}

	status := domain.RunCompleted
	if failed := deliverable.FailedTasks(); len(failed) > 0 {
		status = domain.RunDegraded
		logger.Warn("run finished with invalid artifacts", "tasks", failed)
	}
	p.record(ctx, domain.RunRecord{
		ID:            runID,
		DocumentTitle: doc.Title,
		Status:        status,
		TaskCount:     len(dec.Tasks),
		ValidCount:    validCount(outcomes),
		OutputPath:    outDir,
		FinishedAt:    time.Now(),
	})

	logger.Info("run finished", "status", status, "output", outDir)
	return deliverable, nil
}

// persist writes the deliverable into a run-unique directory: generated
// files, requirements, documentation, the decomposition snapshot, the
// extracted document text, and copies of the data assets.
func (p *Pipeline) persist(deliverable domain.Deliverable, doc domain.NormalizedDocument, dec domain.Decomposition) (string, error) {
	outDir := filepath.Join(p.outputRoot, deliverable.ProjectName)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	write := func(name, content string) error {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return nil
	}

	for name, content := range deliverable.Files {
		if err := write(name, content); err != nil {
			return "", err
		}
	}
	if err := write("requirements.txt", strings.Join(deliverable.Requirements, "\n")+"\n"); err != nil {
		return "", err
	}
	if err := write("README.md", deliverable.Readme); err != nil {
		return "", err
	}
	if err := write("RUN.md", deliverable.RunInstructions); err != nil {
		return "", err
	}
	if err := write("document.md", doc.RawText); err != nil {
		return "", err
	}

	snapshot, err := json.MarshalIndent(analysisSnapshot(dec, deliverable.Outcomes), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal analysis snapshot: %w", err)
	}
	if err := write("analysis.json", string(snapshot)); err != nil {
		return "", err
	}

	for _, asset := range deliverable.Assets {
		data, err := os.ReadFile(asset.Path)
		if err != nil {
			p.logger.Warn("asset copy skipped", "asset", asset.FileName, "error", err)
			continue
		}
		if err := os.WriteFile(filepath.Join(outDir, asset.FileName), data, 0o644); err != nil {
			return "", fmt.Errorf("copy asset %s: %w", asset.FileName, err)
		}
	}

	return outDir, nil
}

type snapshotTask struct {
	ID       string `json:"task_id"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Priority int    `json:"priority"`
	Valid    *bool  `json:"valid,omitempty"`
}

type snapshot struct {
	Method    string         `json:"research_method"`
	Libraries []string       `json:"libraries"`
	Summary   string         `json:"summary"`
	Tasks     []snapshotTask `json:"code_tasks"`
}

func analysisSnapshot(dec domain.Decomposition, outcomes []domain.ValidationOutcome) snapshot {
	validity := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		validity[o.TaskID] = o.Valid
	}

	s := snapshot{
		Method:    dec.Method,
		Libraries: dec.Libraries,
		Summary:   dec.Summary,
	}
	for _, t := range dec.Tasks {
		st := snapshotTask{ID: t.ID, Category: string(t.Category), Title: t.Title, Priority: t.Priority}
		if v, ok := validity[t.ID]; ok {
			st.Valid = &v
		}
		s.Tasks = append(s.Tasks, st)
	}
	return s
}

// record persists the run outcome when a repository is configured. Audit
// failures are logged, never fatal.
func (p *Pipeline) record(ctx context.Context, rec domain.RunRecord) {
	if p.repository == nil {
		return
	}
	if err := p.repository.SaveRun(ctx, rec); err != nil {
		p.logger.Warn("run record not saved", "run", rec.ID, "error", err)
	}
}

func validCount(outcomes []domain.ValidationOutcome) int {
	count := 0
	for _, o := range outcomes {
		if o.Valid {
			count++
		}
	}
	return count
}

// newRunID builds a collision-free run identifier: timestamp plus a short
// random suffix.
func newRunID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return time.Now().Format("20060102_150405") + "_" + suffix
}
