package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/model"
	chromem "github.com/philippgille/chromem-go"
)

// Local implements Repository fully in-process: chromem-go collections for
// vector search, a bleve memory index for knowledge matching, and plain maps
// for identities and interactions. Used by tests and the --local CLI mode.
type Local struct {
	mu sync.RWMutex

	db          *chromem.DB
	collections map[string]*chromem.Collection

	memories    map[model.MemoryID]*model.Memory
	byPartition map[string][]model.MemoryID

	index     bleve.Index
	knowledge map[model.KnowledgeID]*model.Knowledge

	identities   map[string]*model.UserIdentity
	interactions []*model.Interaction
}

// NewLocal creates an empty local repository
func NewLocal() (*Local, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create bleve index")
	}

	return &Local{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		memories:    make(map[model.MemoryID]*model.Memory),
		byPartition: make(map[string][]model.MemoryID),
		index:       index,
		knowledge:   make(map[model.KnowledgeID]*model.Knowledge),
		identities:  make(map[string]*model.UserIdentity),
	}, nil
}

func (r *Local) Close() error {
	return r.index.Close()
}

// partitionKey names the chromem collection for a partition. The shared
// partition is one collection; personal memories get one per user.
func partitionKey(partition model.Partition, userID string) string {
	if partition == model.PartitionShared {
		return "shared"
	}
	return "personal_" + userID
}

func (r *Local) getOrCreateCollection(key string) (*chromem.Collection, error) {
	if col, ok := r.collections[key]; ok {
		return col, nil
	}

	col, err := r.db.CreateCollection(key, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chromem collection", goerr.V("collection", key))
	}
	r.collections[key] = col
	return col, nil
}

func (r *Local) PutMemory(ctx context.Context, memory *model.Memory) error {
	if err := memory.Partition.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := partitionKey(memory.Partition, memory.UserID)
	col, err := r.getOrCreateCollection(key)
	if err != nil {
		return err
	}

	if err := col.AddDocument(ctx, chromem.Document{
		ID:        string(memory.ID),
		Content:   memory.Text,
		Embedding: []float32(memory.Embedding),
	}); err != nil {
		return goerr.Wrap(ErrStoreUnavailable, err.Error(), goerr.V("memory_id", memory.ID))
	}

	stored := *memory
	r.memories[memory.ID] = &stored
	r.byPartition[key] = append(r.byPartition[key], memory.ID)
	return nil
}

func (r *Local) SearchMemories(ctx context.Context, partition model.Partition, userID string, embedding []float32, limit int) ([]*model.Memory, error) {
	if err := partition.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	col, ok := r.collections[partitionKey(partition, userID)]
	if !ok || col.Count() == 0 {
		return nil, nil
	}

	// chromem rejects nResults beyond the collection size
	n := limit
	if count := col.Count(); n > count {
		n = count
	}

	results, err := col.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(ErrStoreUnavailable, err.Error())
	}

	memories := make([]*model.Memory, 0, len(results))
	for _, result := range results {
		if memory, ok := r.memories[model.MemoryID(result.ID)]; ok {
			memories = append(memories, memory)
		}
	}
	return memories, nil
}

func (r *Local) ListRecentMemories(ctx context.Context, partition model.Partition, userID string, limit int) ([]*model.Memory, error) {
	if err := partition.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byPartition[partitionKey(partition, userID)]
	memories := make([]*model.Memory, 0, len(ids))
	for _, id := range ids {
		if memory, ok := r.memories[id]; ok {
			memories = append(memories, memory)
		}
	}

	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})

	if len(memories) > limit {
		memories = memories[:limit]
	}
	return memories, nil
}

func (r *Local) PutKnowledge(ctx context.Context, knowledge *model.Knowledge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.index.Index(string(knowledge.ID), map[string]any{
		"title":   knowledge.Title,
		"content": knowledge.Content,
	}); err != nil {
		return goerr.Wrap(ErrStoreUnavailable, err.Error(), goerr.V("knowledge_id", knowledge.ID))
	}

	stored := *knowledge
	r.knowledge[knowledge.ID] = &stored
	return nil
}

func (r *Local) SearchKnowledge(ctx context.Context, userID, query string, limit int) ([]*model.Knowledge, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	inScope := func(k *model.Knowledge) bool {
		return k.Global() || k.UserID == userID
	}

	seen := make(map[model.KnowledgeID]bool)
	var matched []*model.Knowledge

	// Fuzzy match on content through bleve, then backfill with plain
	// substring matches bleve's tokenizer may miss
	mq := bleve.NewMatchQuery(query)
	mq.SetField("content")
	mq.SetFuzziness(1)

	req := bleve.NewSearchRequestOptions(mq, limit*4, 0, false)
	res, err := r.index.Search(req)
	if err != nil {
		return nil, goerr.Wrap(ErrStoreUnavailable, err.Error())
	}

	for _, hit := range res.Hits {
		entry, ok := r.knowledge[model.KnowledgeID(hit.ID)]
		if !ok || !inScope(entry) {
			continue
		}
		found := *entry
		found.Score = hit.Score
		matched = append(matched, &found)
		seen[entry.ID] = true
	}

	var backfilled []*model.Knowledge
	for _, entry := range r.knowledge {
		if seen[entry.ID] || !inScope(entry) {
			continue
		}
		if score := MatchScore(entry.Content, query); score > 0 {
			found := *entry
			found.Score = score
			backfilled = append(backfilled, &found)
		}
	}

	// Index scores and substring ratios are not on the same scale, so the
	// groups are ordered independently, index hits ahead of the backfill
	sortKnowledge(matched)
	sortKnowledge(backfilled)
	matched = append(matched, backfilled...)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *Local) GetIdentity(ctx context.Context, userID string) (*model.UserIdentity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.identities[userID]
	if !ok {
		return nil, nil
	}
	found := *identity
	return &found, nil
}

func (r *Local) PutIdentity(ctx context.Context, identity *model.UserIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *identity
	r.identities[identity.UserID] = &stored
	return nil
}

func (r *Local) PutInteraction(ctx context.Context, interaction *model.Interaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *interaction
	r.interactions = append(r.interactions, &stored)
	return nil
}

func (r *Local) ListInteractions(ctx context.Context, userID string, offset, limit int) ([]*model.Interaction, error) {
	if limit <= 0 {
		limit = 10
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var interactions []*model.Interaction
	for _, interaction := range r.interactions {
		if userID == "" || interaction.UserID == userID {
			interactions = append(interactions, interaction)
		}
	}

	sort.SliceStable(interactions, func(i, j int) bool {
		return interactions[i].CreatedAt.After(interactions[j].CreatedAt)
	})

	if offset >= len(interactions) {
		return nil, nil
	}
	interactions = interactions[offset:]
	if len(interactions) > limit {
		interactions = interactions[:limit]
	}
	return interactions, nil
}

var (
	_ Repository = (*Local)(nil)
	_ Repository = (*Firestore)(nil)
)
