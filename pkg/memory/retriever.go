package memory

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/meera-os/meera/pkg/adapter"
	"github.com/meera-os/meera/pkg/model"
	"github.com/meera-os/meera/pkg/repository"
	"github.com/meera-os/meera/pkg/utils/logging"
)

// Retriever merges vector search with a recency fallback per partition and
// queries the knowledge store. Retrieval failure never propagates to the
// caller: a degraded context is preferable to a failed turn, so every error
// path here degrades to a smaller or empty result and logs the cause.
type Retriever struct {
	repo repository.Repository
	llm  adapter.LLM
}

// New creates a memory retriever
func New(repo repository.Repository, llm adapter.LLM) *Retriever {
	return &Retriever{
		repo: repo,
		llm:  llm,
	}
}

// Retrieve returns up to limit memories for a query: vector-search results
// in relevance order first, topped up with recent entries not already found.
// A blank query yields no results.
func (r *Retriever) Retrieve(ctx context.Context, partition model.Partition, userID, query string, limit int) []*model.Memory {
	logger := logging.From(ctx)

	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil
	}

	memories, err := r.searchSimilar(ctx, partition, userID, query, limit)
	if err != nil {
		logger.Error("memory search failed, falling back to recency",
			"error", err, "partition", partition, "user_id", userID)
		return r.recentOnly(ctx, partition, userID, limit)
	}

	if len(memories) < limit {
		// Similarity hits survive a failed top-up. A recency-only
		// retry would hit the same store and could only lose the
		// better results.
		recent, err := r.repo.ListRecentMemories(ctx, partition, userID, limit-len(memories))
		if err != nil {
			logger.Error("recency fallback failed",
				"error", err, "partition", partition, "user_id", userID)
		} else {
			memories = merge(memories, recent)
		}
	}

	if len(memories) > limit {
		memories = memories[:limit]
	}

	logger.Debug("memories retrieved",
		"partition", partition,
		"user_id", userID,
		"count", len(memories),
		"query_preview", preview(query))
	return memories
}

// searchSimilar embeds the query and runs vector search. An embedding
// failure is not an error: it degrades to an empty similarity set so that
// the recency fallback fills the whole limit.
func (r *Retriever) searchSimilar(ctx context.Context, partition model.Partition, userID, query string, limit int) ([]*model.Memory, error) {
	embedding, err := r.llm.Embed(ctx, query)
	if err != nil {
		logging.From(ctx).Warn("query embedding failed, skipping vector search",
			"error", err, "partition", partition)
		return nil, nil
	}

	return r.repo.SearchMemories(ctx, partition, userID, embedding, limit)
}

func (r *Retriever) recentOnly(ctx context.Context, partition model.Partition, userID string, limit int) []*model.Memory {
	recent, err := r.repo.ListRecentMemories(ctx, partition, userID, limit)
	if err != nil {
		logging.From(ctx).Error("recency-only retrieval failed",
			"error", err, "partition", partition, "user_id", userID)
		return nil
	}
	return recent
}

// merge appends recent entries to the similarity results, skipping any
// memory already present. Similarity order is preserved, then recency order.
func merge(similar, recent []*model.Memory) []*model.Memory {
	seen := make(map[model.MemoryID]bool, len(similar))
	for _, memory := range similar {
		seen[memory.ID] = true
	}

	merged := similar
	for _, memory := range recent {
		if seen[memory.ID] {
			continue
		}
		seen[memory.ID] = true
		merged = append(merged, memory)
	}
	return merged
}

// SearchKnowledge returns up to limit knowledge entries owned by the user
// or global, matching the query. Returns an empty slice on store failure.
func (r *Retriever) SearchKnowledge(ctx context.Context, userID, query string, limit int) []*model.Knowledge {
	logger := logging.From(ctx)

	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil
	}

	entries, err := r.repo.SearchKnowledge(ctx, userID, query, limit)
	if err != nil {
		logger.Error("knowledge search failed",
			"error", err, "user_id", userID, "query_preview", preview(query))
		return nil
	}

	logger.Debug("knowledge retrieved",
		"user_id", userID,
		"count", len(entries),
		"query_preview", preview(query))
	return entries
}

// preview trims s for logging without splitting a rune
func preview(s string) string {
	const max = 50
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
