package repository

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/model"
)

var ErrStoreUnavailable = goerr.New("store unavailable")

// Repository defines the interface for memory, knowledge and identity
// persistence. The personal partition is always scoped by user ID, the
// shared partition ignores it.
type Repository interface {
	// PutMemory saves a memory entry
	PutMemory(ctx context.Context, memory *model.Memory) error

	// SearchMemories performs vector search within a partition, ordered by
	// descending similarity
	SearchMemories(ctx context.Context, partition model.Partition, userID string, embedding []float32, limit int) ([]*model.Memory, error)

	// ListRecentMemories retrieves memories from a partition ordered by
	// descending creation time
	ListRecentMemories(ctx context.Context, partition model.Partition, userID string, limit int) ([]*model.Memory, error)

	// SearchKnowledge retrieves knowledge entries owned by the user or
	// global, matching the query text, ordered by descending relevance
	// then descending creation time
	SearchKnowledge(ctx context.Context, userID, query string, limit int) ([]*model.Knowledge, error)

	// PutKnowledge saves a knowledge entry
	PutKnowledge(ctx context.Context, knowledge *model.Knowledge) error

	// GetIdentity retrieves a user identity. Returns (nil, nil) when the
	// user has no record yet.
	GetIdentity(ctx context.Context, userID string) (*model.UserIdentity, error)

	// PutIdentity saves a user identity
	PutIdentity(ctx context.Context, identity *model.UserIdentity) error

	// PutInteraction saves the outcome of one pipeline invocation
	PutInteraction(ctx context.Context, interaction *model.Interaction) error

	// ListInteractions retrieves past interactions of a user ordered by
	// descending creation time
	ListInteractions(ctx context.Context, userID string, offset, limit int) ([]*model.Interaction, error)

	// Close releases underlying resources
	Close() error
}

// MatchScore computes case-insensitive substring relevance of query against
// content, in (0, 1]. Returns 0 when there is no match or the query is
// blank.
func MatchScore(content, query string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || content == "" {
		return 0
	}

	c := strings.ToLower(content)
	n := strings.Count(c, q)
	if n == 0 {
		return 0
	}

	score := float64(n*len(q)) / float64(len(c))
	if score > 1 {
		score = 1
	}
	return score
}
