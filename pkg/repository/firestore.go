package repository

import (
	"context"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionMemories     = "memories"
	collectionKnowledge    = "knowledge"
	collectionIdentities   = "identities"
	collectionInteractions = "interactions"

	// Firestore has no server-side fuzzy match, so knowledge relevance is
	// computed client-side over at most this many candidate documents.
	maxKnowledgeCandidates = 500
)

// Firestore implements Repository using Firestore with native vector search
type Firestore struct {
	client *firestore.Client
}

// New creates a new Firestore repository
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) PutMemory(ctx context.Context, memory *model.Memory) error {
	if err := memory.Partition.Validate(); err != nil {
		return err
	}

	if _, err := r.client.Collection(collectionMemories).Doc(string(memory.ID)).Set(ctx, memory); err != nil {
		return goerr.Wrap(ErrStoreUnavailable, err.Error(), goerr.V("memory_id", memory.ID))
	}
	return nil
}

func (r *Firestore) memoryQuery(partition model.Partition, userID string) firestore.Query {
	q := r.client.Collection(collectionMemories).Query.
		Where("Partition", "==", string(partition))
	if partition == model.PartitionPersonal {
		q = q.Where("UserID", "==", userID)
	}
	return q
}

func (r *Firestore) SearchMemories(ctx context.Context, partition model.Partition, userID string, embedding []float32, limit int) ([]*model.Memory, error) {
	if err := partition.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	vq := r.memoryQuery(partition, userID).FindNearest(
		"Embedding",
		firestore.Vector32(embedding),
		limit,
		firestore.DistanceMeasureCosine,
		nil,
	)

	return r.collectMemories(vq.Documents(ctx))
}

func (r *Firestore) ListRecentMemories(ctx context.Context, partition model.Partition, userID string, limit int) ([]*model.Memory, error) {
	if err := partition.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	q := r.memoryQuery(partition, userID).
		OrderBy("CreatedAt", firestore.Desc).
		Limit(limit)

	return r.collectMemories(q.Documents(ctx))
}

func (r *Firestore) collectMemories(iter *firestore.DocumentIterator) ([]*model.Memory, error) {
	defer iter.Stop()

	var memories []*model.Memory
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(ErrStoreUnavailable, err.Error())
		}

		var memory model.Memory
		if err := doc.DataTo(&memory); err != nil {
			return nil, goerr.Wrap(err, "failed to decode memory document", goerr.V("doc", doc.Ref.ID))
		}
		memories = append(memories, &memory)
	}

	return memories, nil
}

func (r *Firestore) SearchKnowledge(ctx context.Context, userID, query string, limit int) ([]*model.Knowledge, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}

	// Candidates: global entries plus the user's own entries
	scopes := []firestore.Query{
		r.client.Collection(collectionKnowledge).Query.Where("UserID", "==", "").Limit(maxKnowledgeCandidates),
	}
	if userID != "" {
		scopes = append(scopes,
			r.client.Collection(collectionKnowledge).Query.Where("UserID", "==", userID).Limit(maxKnowledgeCandidates))
	}

	var matched []*model.Knowledge
	for _, q := range scopes {
		iter := q.Documents(ctx)
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, goerr.Wrap(ErrStoreUnavailable, err.Error())
			}

			var entry model.Knowledge
			if err := doc.DataTo(&entry); err != nil {
				iter.Stop()
				return nil, goerr.Wrap(err, "failed to decode knowledge document", goerr.V("doc", doc.Ref.ID))
			}

			if score := MatchScore(entry.Content, query); score > 0 {
				entry.Score = score
				matched = append(matched, &entry)
			}
		}
		iter.Stop()
	}

	sortKnowledge(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// sortKnowledge orders entries by descending relevance, ties broken by
// descending creation time
func sortKnowledge(entries []*model.Knowledge) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

func (r *Firestore) PutKnowledge(ctx context.Context, knowledge *model.Knowledge) error {
	if _, err := r.client.Collection(collectionKnowledge).Doc(string(knowledge.ID)).Set(ctx, knowledge); err != nil {
		return goerr.Wrap(ErrStoreUnavailable, err.Error(), goerr.V("knowledge_id", knowledge.ID))
	}
	return nil
}

func (r *Firestore) GetIdentity(ctx context.Context, userID string) (*model.UserIdentity, error) {
	doc, err := r.client.Collection(collectionIdentities).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(ErrStoreUnavailable, err.Error(), goerr.V("user_id", userID))
	}

	var identity model.UserIdentity
	if err := doc.DataTo(&identity); err != nil {
		return nil, goerr.Wrap(err, "failed to decode identity document", goerr.V("user_id", userID))
	}
	return &identity, nil
}

func (r *Firestore) PutIdentity(ctx context.Context, identity *model.UserIdentity) error {
	if _, err := r.client.Collection(collectionIdentities).Doc(identity.UserID).Set(ctx, identity); err != nil {
		return goerr.Wrap(ErrStoreUnavailable, err.Error(), goerr.V("user_id", identity.UserID))
	}
	return nil
}

func (r *Firestore) PutInteraction(ctx context.Context, interaction *model.Interaction) error {
	if _, err := r.client.Collection(collectionInteractions).Doc(string(interaction.ID)).Set(ctx, interaction); err != nil {
		return goerr.Wrap(ErrStoreUnavailable, err.Error(), goerr.V("interaction_id", interaction.ID))
	}
	return nil
}

func (r *Firestore) ListInteractions(ctx context.Context, userID string, offset, limit int) ([]*model.Interaction, error) {
	if limit <= 0 {
		limit = 10
	}

	q := r.client.Collection(collectionInteractions).Query
	if userID != "" {
		q = q.Where("UserID", "==", userID)
	}
	q = q.OrderBy("CreatedAt", firestore.Desc).Offset(offset).Limit(limit)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var interactions []*model.Interaction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(ErrStoreUnavailable, err.Error())
		}

		var interaction model.Interaction
		if err := doc.DataTo(&interaction); err != nil {
			return nil, goerr.Wrap(err, "failed to decode interaction document", goerr.V("doc", doc.Ref.ID))
		}
		interactions = append(interactions, &interaction)
	}

	return interactions, nil
}
