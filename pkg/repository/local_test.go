package repository_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/gt"
	"github.com/meera-os/meera/pkg/model"
	"github.com/meera-os/meera/pkg/repository"
)

func setupLocal(t *testing.T) *repository.Local {
	repo, err := repository.NewLocal()
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func putMemory(t *testing.T, repo *repository.Local, partition model.Partition, userID, text string, embedding []float32, age time.Duration) *model.Memory {
	entry := &model.Memory{
		ID:        model.NewMemoryID(),
		Partition: partition,
		UserID:    userID,
		Text:      text,
		Embedding: firestore.Vector32(embedding),
		CreatedAt: time.Now().Add(-age),
	}
	gt.NoError(t, repo.PutMemory(context.Background(), entry))
	return entry
}

func TestLocalSearchMemoriesOrder(t *testing.T) {
	repo := setupLocal(t)
	ctx := context.Background()

	near := putMemory(t, repo, model.PartitionPersonal, "u1", "likes astronomy",
		[]float32{1, 0, 0}, time.Hour)
	mid := putMemory(t, repo, model.PartitionPersonal, "u1", "owns a telescope",
		[]float32{0.7, 0.7, 0}, 2*time.Hour)
	putMemory(t, repo, model.PartitionPersonal, "u1", "allergic to peanuts",
		[]float32{0, 0, 1}, 3*time.Hour)

	results, err := repo.SearchMemories(ctx, model.PartitionPersonal, "u1", []float32{1, 0, 0}, 2)
	gt.NoError(t, err)
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].ID, near.ID)
	gt.Equal(t, results[1].ID, mid.ID)
}

func TestLocalSearchMemoriesPartitionIsolation(t *testing.T) {
	repo := setupLocal(t)
	ctx := context.Background()

	putMemory(t, repo, model.PartitionPersonal, "u1", "u1 private note", []float32{1, 0, 0}, time.Hour)
	putMemory(t, repo, model.PartitionPersonal, "u2", "u2 private note", []float32{1, 0, 0}, time.Hour)
	shared := putMemory(t, repo, model.PartitionShared, "", "hive-wide note", []float32{1, 0, 0}, time.Hour)

	personal, err := repo.SearchMemories(ctx, model.PartitionPersonal, "u1", []float32{1, 0, 0}, 10)
	gt.NoError(t, err)
	gt.A(t, personal).Length(1)
	gt.Equal(t, personal[0].Text, "u1 private note")

	sharedResults, err := repo.SearchMemories(ctx, model.PartitionShared, "", []float32{1, 0, 0}, 10)
	gt.NoError(t, err)
	gt.A(t, sharedResults).Length(1)
	gt.Equal(t, sharedResults[0].ID, shared.ID)
}

func TestLocalSearchMemoriesEmptyCollection(t *testing.T) {
	repo := setupLocal(t)

	results, err := repo.SearchMemories(context.Background(), model.PartitionPersonal, "nobody", []float32{1, 0, 0}, 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(0)
}

func TestLocalSearchMemoriesLimitBeyondSize(t *testing.T) {
	repo := setupLocal(t)

	putMemory(t, repo, model.PartitionShared, "", "only entry", []float32{1, 0, 0}, time.Hour)

	results, err := repo.SearchMemories(context.Background(), model.PartitionShared, "", []float32{1, 0, 0}, 10)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
}

func TestLocalPutMemoryInvalidPartition(t *testing.T) {
	repo := setupLocal(t)

	err := repo.PutMemory(context.Background(), &model.Memory{
		ID:        model.NewMemoryID(),
		Partition: model.Partition("bogus"),
		Text:      "text",
	})
	gt.Error(t, err)
}

func TestLocalListRecentMemories(t *testing.T) {
	repo := setupLocal(t)
	ctx := context.Background()

	oldest := putMemory(t, repo, model.PartitionPersonal, "u1", "oldest", []float32{1, 0, 0}, 3*time.Hour)
	newest := putMemory(t, repo, model.PartitionPersonal, "u1", "newest", []float32{0, 1, 0}, time.Hour)
	middle := putMemory(t, repo, model.PartitionPersonal, "u1", "middle", []float32{0, 0, 1}, 2*time.Hour)

	results, err := repo.ListRecentMemories(ctx, model.PartitionPersonal, "u1", 10)
	gt.NoError(t, err)
	gt.A(t, results).Length(3)
	gt.Equal(t, results[0].ID, newest.ID)
	gt.Equal(t, results[1].ID, middle.ID)
	gt.Equal(t, results[2].ID, oldest.ID)

	limited, err := repo.ListRecentMemories(ctx, model.PartitionPersonal, "u1", 2)
	gt.NoError(t, err)
	gt.A(t, limited).Length(2)
	gt.Equal(t, limited[0].ID, newest.ID)
}

func putKnowledge(t *testing.T, repo *repository.Local, userID, title, content string) *model.Knowledge {
	entry := &model.Knowledge{
		ID:        model.NewKnowledgeID(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		CreatedAt: time.Now(),
	}
	gt.NoError(t, repo.PutKnowledge(context.Background(), entry))
	return entry
}

func TestLocalSearchKnowledgeScope(t *testing.T) {
	repo := setupLocal(t)
	ctx := context.Background()

	putKnowledge(t, repo, "", "Policy A", "refunds allowed within 30 days")
	putKnowledge(t, repo, "u1", "Note", "prefers concise replies")
	putKnowledge(t, repo, "u2", "Other", "refund escalation path for u2")

	// Only the global refund entry matches: the u1 note has no matching
	// content, the u2 entry is out of scope
	results, err := repo.SearchKnowledge(ctx, "u1", "refund", 10)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
	gt.Equal(t, results[0].Title, "Policy A")

	// The user's own entries match on their content
	owned, err := repo.SearchKnowledge(ctx, "u1", "concise", 10)
	gt.NoError(t, err)
	gt.A(t, owned).Length(1)
	gt.Equal(t, owned[0].UserID, "u1")

	// No user scope still matches global entries
	globalOnly, err := repo.SearchKnowledge(ctx, "", "refund", 10)
	gt.NoError(t, err)
	gt.A(t, globalOnly).Length(1)
	gt.Equal(t, globalOnly[0].Title, "Policy A")
}

func TestLocalSearchKnowledgeInflectedTerm(t *testing.T) {
	repo := setupLocal(t)

	putKnowledge(t, repo, "", "Refund policy", "refunds allowed within 30 days")

	// Singular query against a plural token in the content
	results, err := repo.SearchKnowledge(context.Background(), "u1", "refund", 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
	gt.Equal(t, results[0].Content, "refunds allowed within 30 days")
	gt.V(t, results[0].Score > 0).Equal(true)
}

func TestLocalSearchKnowledgeIndexHitsFirst(t *testing.T) {
	repo := setupLocal(t)

	// "fund" is an exact index token here, so it ranks as an index hit
	exact := putKnowledge(t, repo, "", "Transfers", "fund transfer rules require approval")
	// "refunds" is beyond the index's fuzziness for "fund"; only the
	// substring backfill finds it
	putKnowledge(t, repo, "", "Policy A", "refunds allowed within 30 days")

	results, err := repo.SearchKnowledge(context.Background(), "", "fund", 10)
	gt.NoError(t, err)
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].ID, exact.ID)
	gt.Equal(t, results[1].Title, "Policy A")
}

func TestLocalSearchKnowledgeNoMatch(t *testing.T) {
	repo := setupLocal(t)

	putKnowledge(t, repo, "", "Refund policy", "refunds allowed within 30 days")

	results, err := repo.SearchKnowledge(context.Background(), "u1", "zzzzzz", 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(0)
}

func TestLocalSearchKnowledgeBlankQuery(t *testing.T) {
	repo := setupLocal(t)

	putKnowledge(t, repo, "", "Refund policy", "refunds allowed within 30 days")

	results, err := repo.SearchKnowledge(context.Background(), "u1", "   ", 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(0)
}

func TestLocalSearchKnowledgeLimit(t *testing.T) {
	repo := setupLocal(t)

	putKnowledge(t, repo, "", "A", "shipping takes two days")
	putKnowledge(t, repo, "", "B", "shipping is free over fifty")
	putKnowledge(t, repo, "", "C", "shipping to remote areas costs extra")

	results, err := repo.SearchKnowledge(context.Background(), "", "shipping", 2)
	gt.NoError(t, err)
	gt.A(t, results).Length(2)
}

func TestLocalIdentityRoundTrip(t *testing.T) {
	repo := setupLocal(t)
	ctx := context.Background()

	// Absent identity is nil without error
	absent, err := repo.GetIdentity(ctx, "nobody")
	gt.NoError(t, err)
	gt.V(t, absent).Nil()

	identity := model.NewUserIdentity("u1")
	identity.DisplayName = "Asha"
	identity.Traits = map[string]string{"tone": "concise"}
	gt.NoError(t, repo.PutIdentity(ctx, identity))

	retrieved, err := repo.GetIdentity(ctx, "u1")
	gt.NoError(t, err)
	gt.V(t, retrieved).NotNil()
	gt.Equal(t, retrieved.DisplayName, "Asha")
	gt.Equal(t, retrieved.Traits["tone"], "concise")

	// Put overwrites
	identity.DisplayName = "Asha K"
	gt.NoError(t, repo.PutIdentity(ctx, identity))
	updated, err := repo.GetIdentity(ctx, "u1")
	gt.NoError(t, err)
	gt.Equal(t, updated.DisplayName, "Asha K")
}

func TestLocalInteractions(t *testing.T) {
	repo := setupLocal(t)
	ctx := context.Background()

	now := time.Now()
	for i, userID := range []string{"u1", "u2", "u1"} {
		gt.NoError(t, repo.PutInteraction(ctx, &model.Interaction{
			ID:        model.NewInteractionID(),
			UserID:    userID,
			Message:   "question",
			Response:  "answer",
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := repo.ListInteractions(ctx, "", 0, 10)
	gt.NoError(t, err)
	gt.A(t, all).Length(3)
	// Newest first
	gt.V(t, all[0].CreatedAt.After(all[1].CreatedAt)).Equal(true)

	u1Only, err := repo.ListInteractions(ctx, "u1", 0, 10)
	gt.NoError(t, err)
	gt.A(t, u1Only).Length(2)

	offset, err := repo.ListInteractions(ctx, "", 1, 10)
	gt.NoError(t, err)
	gt.A(t, offset).Length(2)

	past, err := repo.ListInteractions(ctx, "", 10, 10)
	gt.NoError(t, err)
	gt.A(t, past).Length(0)
}

func TestMatchScore(t *testing.T) {
	gt.V(t, repository.MatchScore("refunds allowed within 30 days", "refund") > 0).Equal(true)
	gt.V(t, repository.MatchScore("Refunds Allowed", "refund") > 0).Equal(true)
	gt.Equal(t, repository.MatchScore("shipping policy", "refund"), 0.0)
	gt.V(t, repository.MatchScore("refund", "refund") <= 1.0).Equal(true)
}
