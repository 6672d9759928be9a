package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/adapter"
	"github.com/meera-os/meera/pkg/memory"
	"github.com/meera-os/meera/pkg/model"
	"github.com/meera-os/meera/pkg/prompt"
	"github.com/meera-os/meera/pkg/repository"
	"github.com/meera-os/meera/pkg/utils/logging"
)

// Config tunes retrieval limits and optional context steps
type Config struct {
	MaxPersonalMemories int  `yaml:"max_personal_memories"`
	MaxSharedMemories   int  `yaml:"max_shared_memories"`
	MaxKnowledgeEntries int  `yaml:"max_knowledge_entries"`
	IntentDetection     bool `yaml:"intent_detection"`
	IdentityUpdate      bool `yaml:"identity_update"`
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		MaxPersonalMemories: 3,
		MaxSharedMemories:   3,
		MaxKnowledgeEntries: 5,
		IntentDetection:     true,
		IdentityUpdate:      true,
	}
}

// Pipeline orchestrates one conversational turn: context building,
// generation and memory capture, in fixed order over a shared state.
type Pipeline struct {
	repo      repository.Repository
	llm       adapter.LLM
	storage   adapter.Storage
	retriever *memory.Retriever
	builder   *prompt.Builder
	cfg       Config
}

// NewInput contains dependencies for creating a pipeline
type NewInput struct {
	Repo repository.Repository
	LLM  adapter.LLM

	// Storage is optional; when set, transcripts of completed invocations
	// are persisted as blobs
	Storage adapter.Storage

	// Config is optional; DefaultConfig is used when nil
	Config *Config
}

// New creates a pipeline with its retriever and prompt builder
func New(input NewInput) *Pipeline {
	cfg := DefaultConfig()
	if input.Config != nil {
		cfg = *input.Config
	}

	return &Pipeline{
		repo:      input.Repo,
		llm:       input.LLM,
		storage:   input.Storage,
		retriever: memory.New(input.Repo, input.LLM),
		builder:   prompt.New(),
		cfg:       cfg,
	}
}

// Input is one user turn
type Input struct {
	UserID      string
	Message     string
	History     []model.Message
	HiveContext string
}

// Result is the outcome of a successful invocation
type Result struct {
	Response  string
	Intent    string
	MemoryIDs []model.MemoryID
	History   []model.Message
}

// Invoke runs the full pipeline for one turn. It fails only when identity
// resolution or generation fails; retrieval and capture degrade silently.
func (p *Pipeline) Invoke(ctx context.Context, input Input) (*Result, error) {
	if input.UserID == "" {
		return nil, goerr.New("user ID is required")
	}
	if input.Message == "" {
		return nil, goerr.New("message is required")
	}

	logger := logging.From(ctx)
	logger.Info("pipeline invoked",
		"user_id", input.UserID,
		"message_preview", preview(input.Message))

	state := newState(input)

	if err := p.buildContext(ctx, state); err != nil {
		return nil, state.fail(StageContext, err)
	}
	if err := state.advance(StatusContextBuilt); err != nil {
		return nil, err
	}

	if err := p.generate(ctx, state); err != nil {
		return nil, state.fail(StageGeneration, err)
	}
	if err := state.advance(StatusGenerated); err != nil {
		return nil, err
	}
	if state.Response == "" {
		logger.Warn("generation returned an empty response", "user_id", state.UserID)
	}

	p.capture(ctx, state)
	if err := state.advance(StatusCaptured); err != nil {
		return nil, err
	}

	p.saveInteraction(ctx, state)
	if err := state.advance(StatusDone); err != nil {
		return nil, err
	}

	logger.Info("pipeline completed",
		"user_id", state.UserID,
		"response_length", len(state.Response),
		"memories_created", len(state.MemoryIDs))

	return &Result{
		Response:  state.Response,
		Intent:    state.Intent,
		MemoryIDs: state.MemoryIDs,
		History:   state.History,
	}, nil
}

// saveInteraction persists the invocation outcome and its transcript.
// Best-effort: a completed turn is never invalidated by a bookkeeping
// failure.
func (p *Pipeline) saveInteraction(ctx context.Context, state *State) {
	logger := logging.From(ctx)

	interaction := &model.Interaction{
		ID:         model.NewInteractionID(),
		UserID:     state.UserID,
		Message:    state.UserMessage,
		Response:   state.Response,
		Intent:     state.Intent,
		MemoryIDs:  state.MemoryIDs,
		CreatedAt:  time.Now(),
		Transcript: state.History,
	}

	if err := p.repo.PutInteraction(ctx, interaction); err != nil {
		logger.Error("failed to save interaction", "error", err, "user_id", state.UserID)
		return
	}

	if p.storage == nil {
		return
	}

	writer, err := p.storage.Put(ctx, "transcripts/"+string(interaction.ID)+".json")
	if err != nil {
		logger.Error("failed to open transcript writer", "error", err, "interaction_id", interaction.ID)
		return
	}

	data, err := json.Marshal(state.History)
	if err != nil {
		logger.Error("failed to marshal transcript", "error", err, "interaction_id", interaction.ID)
		_ = writer.Close()
		return
	}

	if _, err := writer.Write(data); err != nil {
		logger.Error("failed to write transcript", "error", err, "interaction_id", interaction.ID)
		_ = writer.Close()
		return
	}

	if err := writer.Close(); err != nil {
		logger.Error("failed to close transcript writer", "error", err, "interaction_id", interaction.ID)
	}
}

func preview(s string) string {
	return truncate(s, 50)
}
