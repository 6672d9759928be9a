package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/adapter"
	"github.com/meera-os/meera/pkg/repository"
	"github.com/meera-os/meera/pkg/usecase/pipeline"
	"github.com/meera-os/meera/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	// Repository
	project  string
	database string
	local    bool

	// Transcript storage
	bucket string

	// Adapters
	backend         string
	geminiProject   string
	geminiLocation  string
	geminiModel     string
	embeddingModel  string
	anthropicAPIKey string

	// Retrieval limits (0 means use config file / defaults)
	maxPersonalMemories int64
	maxSharedMemories   int64
	maxKnowledgeEntries int64

	// Tuning file and logging
	configPath string
	logLevel   string
	logFormat  string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.BoolFlag{
			Name:        "local",
			Usage:       "Use the in-process store instead of Firestore",
			Sources:     cli.EnvVars("MEERA_LOCAL"),
			Destination: &cfg.local,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for transcripts (optional)",
			Sources:     cli.EnvVars("MEERA_TRANSCRIPT_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML tuning file",
			Sources:     cli.EnvVars("MEERA_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("MEERA_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("MEERA_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "Generation backend (gemini, claude)",
			Value:       "gemini",
			Sources:     cli.EnvVars("MEERA_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini generative model",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini embedding model",
			Sources:     cli.EnvVars("EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key (required for the claude backend)",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
	}
}

// retrievalFlags returns flags for retrieval limits with destination config
func retrievalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "max-personal-memories",
			Usage:       "Maximum personal memories per turn",
			Sources:     cli.EnvVars("MAX_PERSONAL_MEMORIES"),
			Destination: &cfg.maxPersonalMemories,
		},
		&cli.IntFlag{
			Name:        "max-shared-memories",
			Usage:       "Maximum hive mind memories per turn",
			Sources:     cli.EnvVars("MAX_SHARED_MEMORIES"),
			Destination: &cfg.maxSharedMemories,
		},
		&cli.IntFlag{
			Name:        "max-knowledge-entries",
			Usage:       "Maximum knowledge entries per turn",
			Sources:     cli.EnvVars("MAX_KNOWLEDGE_ENTRIES"),
			Destination: &cfg.maxKnowledgeEntries,
		},
	}
}

// loggingContext attaches a logger built from the log flags to the context
func (cfg *config) loggingContext(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, cfg.logFormat, os.Stdout)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.local {
		return repository.NewLocal()
	}

	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.New(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newLLM creates the LLM capability from the configured backends
func (cfg *config) newLLM(ctx context.Context) (adapter.LLM, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var geminiOpts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		geminiOpts = append(geminiOpts, adapter.WithGenerativeModel(cfg.geminiModel))
	}
	if cfg.embeddingModel != "" {
		geminiOpts = append(geminiOpts, adapter.WithEmbeddingModel(cfg.embeddingModel))
	}

	gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, geminiOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini adapter")
	}

	switch cfg.backend {
	case "", "gemini":
		return adapter.NewLLM(gemini), nil

	case "claude":
		if cfg.anthropicAPIKey == "" {
			return nil, goerr.New("anthropic-api-key is required for the claude backend")
		}
		claude := adapter.NewClaude(cfg.anthropicAPIKey)
		return adapter.NewLLM(gemini, adapter.WithClaude(claude)), nil

	default:
		return nil, goerr.New("unknown backend", goerr.V("backend", cfg.backend))
	}
}

// newStorage creates the transcript storage, or nil when no bucket is
// configured
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, nil
	}

	storage, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// pipelineConfig builds the pipeline configuration: defaults, overlaid by
// the YAML tuning file, overridden by explicit flags
func (cfg *config) pipelineConfig() (*pipeline.Config, error) {
	pc := pipeline.DefaultConfig()

	if cfg.configPath != "" {
		data, err := os.ReadFile(cfg.configPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configPath))
		}
		if err := yaml.Unmarshal(data, &pc); err != nil {
			return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configPath))
		}
	}

	if cfg.maxPersonalMemories > 0 {
		pc.MaxPersonalMemories = int(cfg.maxPersonalMemories)
	}
	if cfg.maxSharedMemories > 0 {
		pc.MaxSharedMemories = int(cfg.maxSharedMemories)
	}
	if cfg.maxKnowledgeEntries > 0 {
		pc.MaxKnowledgeEntries = int(cfg.maxKnowledgeEntries)
	}

	return &pc, nil
}

// newPipeline wires the repository, LLM and storage into a pipeline
func (cfg *config) newPipeline(ctx context.Context) (*pipeline.Pipeline, repository.Repository, error) {
	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	llm, err := cfg.newLLM(ctx)
	if err != nil {
		return nil, nil, err
	}

	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	pc, err := cfg.pipelineConfig()
	if err != nil {
		return nil, nil, err
	}

	p := pipeline.New(pipeline.NewInput{
		Repo:    repo,
		LLM:     llm,
		Storage: storage,
		Config:  pc,
	})
	return p, repo, nil
}
