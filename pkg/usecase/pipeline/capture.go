package pipeline

import (
	"context"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/firestore"
	"github.com/meera-os/meera/pkg/model"
	"github.com/meera-os/meera/pkg/utils/logging"
)

const maxMemoryResponseLen = 500

// memoryDraft is one memory entry derived from an exchange, before
// embedding
type memoryDraft struct {
	partition model.Partition
	userID    string
	text      string
}

// capture runs the capture stage: derive memory entries from the completed
// exchange, embed and upsert them, and write the reply back into the
// knowledge store. Never fatal; losing a memory write must not invalidate
// the already-generated response, so every error is logged and absorbed.
func (p *Pipeline) capture(ctx context.Context, state *State) {
	logger := logging.From(ctx)
	logger.Info("capture stage started", "user_id", state.UserID)

	if state.Exchange == nil {
		return
	}

	var memoryIDs []model.MemoryID
	for _, draft := range deriveMemories(state) {
		id, ok := p.storeMemory(ctx, draft)
		if ok {
			memoryIDs = append(memoryIDs, id)
		}
	}
	state.MemoryIDs = memoryIDs

	p.writeBackKnowledge(ctx, state)

	logger.Info("capture stage completed",
		"user_id", state.UserID,
		"memories_created", len(memoryIDs))
}

// deriveMemories turns the exchange into one personal and one shared
// memory entry
func deriveMemories(state *State) []memoryDraft {
	text := "User: " + state.Exchange.UserMessage +
		"\nMeera: " + truncate(state.Exchange.Response, maxMemoryResponseLen)

	return []memoryDraft{
		{partition: model.PartitionPersonal, userID: state.UserID, text: text},
		{partition: model.PartitionShared, text: text},
	}
}

func (p *Pipeline) storeMemory(ctx context.Context, draft memoryDraft) (model.MemoryID, bool) {
	logger := logging.From(ctx)

	embedding, err := p.llm.Embed(ctx, draft.text)
	if err != nil {
		logger.Error("failed to embed memory, skipping",
			"error", err, "partition", draft.partition)
		return "", false
	}

	entry := &model.Memory{
		ID:        model.NewMemoryID(),
		Partition: draft.partition,
		UserID:    draft.userID,
		Text:      draft.text,
		Embedding: firestore.Vector32(embedding),
		CreatedAt: time.Now(),
	}

	if err := p.repo.PutMemory(ctx, entry); err != nil {
		logger.Error("failed to save memory, skipping",
			"error", err, "partition", draft.partition)
		return "", false
	}

	return entry.ID, true
}

// writeBackKnowledge stores the generated reply as a future-searchable
// knowledge entry, independent of the memory upsert
func (p *Pipeline) writeBackKnowledge(ctx context.Context, state *State) {
	if state.Response == "" {
		return
	}

	title := state.Intent
	if title == "" {
		title = "Conversation"
	}

	entry := &model.Knowledge{
		ID:      model.NewKnowledgeID(),
		UserID:  state.UserID,
		Title:   title,
		Content: state.Response,
		Metadata: map[string]string{
			"source":       "capture",
			"user_message": preview(state.UserMessage),
		},
		CreatedAt: time.Now(),
	}

	if err := p.repo.PutKnowledge(ctx, entry); err != nil {
		logging.From(ctx).Error("failed to write reply back to knowledge store",
			"error", err, "user_id", state.UserID)
	}
}

// truncate trims s to at most max bytes without splitting a rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
