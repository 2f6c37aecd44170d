package app

import (
	"context"
	"log/slog"

	"paperforge/internal/assemble"
	"paperforge/internal/assets"
	"paperforge/internal/config"
	"paperforge/internal/domain"
	"paperforge/internal/extract"
	"paperforge/internal/infrastructure/converter"
	infraextract "paperforge/internal/infrastructure/extract"
	"paperforge/internal/infrastructure/llm"
	"paperforge/internal/infrastructure/storage"
	"paperforge/internal/ingest"
	"paperforge/internal/logging"
	"paperforge/internal/ports"
	"paperforge/internal/synth"
	"paperforge/internal/usecase"
	"paperforge/internal/validate"
)

// Application wires configuration into the pipeline and its adapters.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	logger   *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	generator := llm.NewOpenAIGenerator(cfg.Generation, baseLogger.With("component", "generator"))

	chains := buildChains(cfg, baseLogger)
	ingestor := ingest.New(generator, chains, cfg.Pipeline.StructureBudget,
		baseLogger.With("component", "ingestor"))

	decomposer := llm.NewTaskDecomposer(generator, cfg.Pipeline.StructureBudget,
		baseLogger.With("component", "decomposer"))

	synthesizer := synth.New(generator, cfg.Pipeline.Concurrency,
		baseLogger.With("component", "synthesizer"))

	loop := validate.NewLoop(generator, validate.NewChecker(),
		cfg.Pipeline.MaxRepairAttempts, cfg.Pipeline.Concurrency,
		baseLogger.With("component", "validator"))

	assembler := assemble.New(generator, baseLogger.With("component", "assembler"))

	var repository ports.RunRepository
	if cfg.Database.DSN != "" {
		repo, err := storage.Open(cfg.Database.DSN)
		if err != nil {
			baseLogger.Warn("run history disabled", "error", err)
		} else {
			repository = repo
		}
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Ingestor:   ingestor,
		Assets:     assets.NewScanner(baseLogger.With("component", "datascan")),
		Decomposer: decomposer,
		Synth:      synthesizer,
		Validator:  loop,
		Assembler:  assembler,
		Repository: repository,
		OutputRoot: cfg.Pipeline.OutputDir,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	return &Application{cfg: cfg, pipeline: pipeline, logger: baseLogger}
}

// buildChains assembles the per-kind extraction fallback chains: binary
// formats try the remote converter first and degrade to local salvage; HTML
// is handled locally.
func buildChains(cfg config.Config, logger *slog.Logger) map[domain.SourceKind]*extract.Chain {
	remote := infraextract.NewRemoteExtractor(
		converter.NewMineruClient(cfg.Converter, nil, logger.With("component", "converter")))

	return map[domain.SourceKind]*extract.Chain{
		domain.SourcePDF: extract.NewChain(logger.With("component", "extract.pdf"),
			remote, infraextract.NewPlainTextExtractor()),
		domain.SourceHTML: extract.NewChain(logger.With("component", "extract.html"),
			infraextract.NewHTMLExtractor(), infraextract.NewPlainTextExtractor()),
	}
}

// Run executes one full pipeline pass for the given source document.
func (a *Application) Run(ctx context.Context, sourcePath, dataDir string) (domain.Deliverable, error) {
	return a.pipeline.Run(ctx, usecase.RunRequest{
		SourcePath: sourcePath,
		SourceKind: ingest.DetectKind(sourcePath),
		DataDir:    dataDir,
	})
}
