package pipeline

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/model"
	"github.com/meera-os/meera/pkg/utils/logging"
)

// buildContext runs the context stage: intent detection, identity
// resolution, retrieval from all three sources and prompt assembly. Only an
// identity failure aborts the stage; everything else degrades.
func (p *Pipeline) buildContext(ctx context.Context, state *State) error {
	logger := logging.From(ctx)
	logger.Info("context stage started", "user_id", state.UserID)

	if p.cfg.IntentDetection {
		intent, err := p.llm.DetectIntent(ctx, state.UserMessage)
		if err != nil {
			logger.Warn("intent detection failed, continuing without intent", "error", err)
		} else {
			state.Intent = intent
		}
	}

	identity, err := p.resolveIdentity(ctx, state.UserID)
	if err != nil {
		return err
	}
	state.Identity = identity

	state.PersonalMemories = p.retriever.Retrieve(ctx,
		model.PartitionPersonal, state.UserID, state.UserMessage, p.cfg.MaxPersonalMemories)
	state.SharedMemories = p.retriever.Retrieve(ctx,
		model.PartitionShared, "", state.UserMessage, p.cfg.MaxSharedMemories)
	state.Knowledge = p.retriever.SearchKnowledge(ctx,
		state.UserID, state.UserMessage, p.cfg.MaxKnowledgeEntries)

	systemPrompt, err := p.builder.Build(identity,
		state.PersonalMemories, state.SharedMemories, state.Knowledge, state.UserMessage)
	if err != nil {
		return err
	}
	state.SystemPrompt = systemPrompt

	logger.Info("context stage completed",
		"user_id", state.UserID,
		"intent", state.Intent,
		"personal_memories", len(state.PersonalMemories),
		"shared_memories", len(state.SharedMemories),
		"knowledge_entries", len(state.Knowledge))
	return nil
}

// resolveIdentity gets or creates the user identity and refreshes its
// timestamp. Downstream stages depend on a resolved identity, so a store
// failure here is fatal to the invocation.
func (p *Pipeline) resolveIdentity(ctx context.Context, userID string) (*model.UserIdentity, error) {
	identity, err := p.repo.GetIdentity(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve user identity", goerr.V("user_id", userID))
	}

	if identity == nil {
		identity = model.NewUserIdentity(userID)
		logging.From(ctx).Info("new user identity created", "user_id", userID)
	}

	if p.cfg.IdentityUpdate {
		identity.Touch()
	}

	if err := p.repo.PutIdentity(ctx, identity); err != nil {
		return nil, goerr.Wrap(err, "failed to save user identity", goerr.V("user_id", userID))
	}

	return identity, nil
}
