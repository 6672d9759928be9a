package model

import (
	"time"

	"github.com/google/uuid"
)

type KnowledgeID string

// NewKnowledgeID generates a new unique KnowledgeID
func NewKnowledgeID() KnowledgeID {
	return KnowledgeID(uuid.New().String())
}

// Knowledge is an entry in the hive knowledge store. Entries are created
// explicitly by an operator or written back after a generation, and are
// never mutated.
type Knowledge struct {
	ID        KnowledgeID
	UserID    string // empty means the entry is global
	Title     string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time

	// Score is the query-time match relevance. Not persisted.
	Score float64 `firestore:"-"`
}

// Global reports whether the entry is visible to all users
func (k *Knowledge) Global() bool {
	return k.UserID == ""
}
