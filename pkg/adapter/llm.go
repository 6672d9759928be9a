package adapter

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/model"
	"google.golang.org/genai"
)

var (
	ErrEmbeddingUnavailable  = goerr.New("embedding capability unavailable")
	ErrGenerationUnavailable = goerr.New("generation capability unavailable")
)

// LLM is the model capability boundary consumed by the pipeline: embedding,
// reply generation and lightweight intent detection. Implementations wrap
// the raw API clients so that the pipeline never touches wire types.
type LLM interface {
	// Embed maps text to a fixed-dimension vector
	Embed(ctx context.Context, text string) ([]float32, error)

	// Generate produces a reply from a system prompt, the current message
	// and the prior role-tagged conversation history
	Generate(ctx context.Context, systemPrompt, message string, history []model.Message) (string, error)

	// DetectIntent classifies the primary intent of a message in one
	// short phrase
	DetectIntent(ctx context.Context, message string) (string, error)
}

const intentPrompt = `Analyze the following user message and identify the primary intent in one short phrase (e.g., "question about consciousness", "emotional support", "technical inquiry", "philosophical discussion").

User message: %MESSAGE%

Intent:`

// llmClient implements LLM. Gemini handles embedding and intent detection;
// generation goes to Claude when configured, otherwise to Gemini.
type llmClient struct {
	gemini Gemini
	claude Claude
}

type LLMOption func(*llmClient)

// WithClaude routes reply generation to Claude instead of Gemini
func WithClaude(claude Claude) LLMOption {
	return func(l *llmClient) {
		l.claude = claude
	}
}

// NewLLM creates the LLM capability from the underlying API clients
func NewLLM(gemini Gemini, opts ...LLMOption) LLM {
	l := &llmClient{gemini: gemini}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *llmClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := l.gemini.Embedding(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(ErrEmbeddingUnavailable, err.Error())
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, goerr.Wrap(ErrEmbeddingUnavailable, "empty embedding response")
	}

	return resp.Embeddings[0].Values, nil
}

func (l *llmClient) Generate(ctx context.Context, systemPrompt, message string, history []model.Message) (string, error) {
	if l.claude != nil {
		return l.generateClaude(ctx, systemPrompt, message, history)
	}
	return l.generateGemini(ctx, systemPrompt, message, history)
}

func (l *llmClient) generateGemini(ctx context.Context, systemPrompt, message string, history []model.Message) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		var role genai.Role = genai.RoleUser
		if msg.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
	}

	resp, err := l.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(ErrGenerationUnavailable, err.Error())
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.Wrap(ErrGenerationUnavailable, "invalid response structure from gemini")
	}

	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			parts = append(parts, part.Text)
		}
	}

	return strings.Join(parts, ""), nil
}

func (l *llmClient) generateClaude(ctx context.Context, systemPrompt, message string, history []model.Message) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, msg := range history {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == model.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))

	resp, err := l.claude.Chat(ctx, systemPrompt, messages)
	if err != nil {
		return "", goerr.Wrap(ErrGenerationUnavailable, err.Error())
	}
	if resp == nil {
		return "", goerr.Wrap(ErrGenerationUnavailable, "empty response from claude")
	}

	var parts []string
	for _, content := range resp.Content {
		if content.Type == "text" {
			text := content.AsText()
			parts = append(parts, text.Text)
		}
	}

	return strings.Join(parts, ""), nil
}

func (l *llmClient) DetectIntent(ctx context.Context, message string) (string, error) {
	prompt := strings.ReplaceAll(intentPrompt, "%MESSAGE%", message)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.3),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := l.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(ErrGenerationUnavailable, err.Error())
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.Wrap(ErrGenerationUnavailable, "invalid response structure from gemini")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			return strings.TrimSpace(part.Text), nil
		}
	}

	return "", nil
}
