package pipeline

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/model"
	"github.com/meera-os/meera/pkg/utils/logging"
)

// generate runs the generation stage. A capability failure here is fatal to
// the invocation: a partial or synthesized reply is worse than a surfaced
// failure. The conversation history gains the user and assistant turns only
// after a successful generation.
func (p *Pipeline) generate(ctx context.Context, state *State) error {
	logger := logging.From(ctx)
	logger.Info("generation stage started", "user_id", state.UserID)

	systemPrompt := state.SystemPrompt
	if state.HiveContext != "" {
		systemPrompt += "\n\n[Hive Mind DB context - prefer this if relevant or if it " +
			"conflicts with generic knowledge:]\n" + state.HiveContext
	}

	response, err := p.llm.Generate(ctx, systemPrompt, state.UserMessage, state.History)
	if err != nil {
		return goerr.Wrap(err, "failed to generate response", goerr.V("user_id", state.UserID))
	}

	state.Response = response
	state.Exchange = &model.Exchange{
		UserMessage: state.UserMessage,
		Response:    response,
		At:          time.Now(),
	}
	state.History = append(state.History,
		model.Message{Role: model.RoleUser, Content: state.UserMessage},
		model.Message{Role: model.RoleAssistant, Content: response},
	)

	logger.Info("generation stage completed",
		"user_id", state.UserID,
		"response_length", len(response))
	return nil
}
