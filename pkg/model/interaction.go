package model

import (
	"time"

	"github.com/google/uuid"
)

type InteractionID string

// NewInteractionID generates a new unique InteractionID
func NewInteractionID() InteractionID {
	return InteractionID(uuid.New().String())
}

// Interaction is the persisted outcome of one pipeline invocation
type Interaction struct {
	ID        InteractionID
	UserID    string
	Message   string
	Response  string
	Intent    string
	MemoryIDs []MemoryID
	CreatedAt time.Time

	// Do not save the raw transcript due to document size limits; it is
	// stored as a blob keyed by the interaction ID.
	Transcript []Message `firestore:"-"`
}
