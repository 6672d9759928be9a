package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidPartition = goerr.New("invalid partition")

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Partition is a logical subdivision of the memory store. Personal memories
// are scoped to a single user, shared memories belong to the hive mind and
// are visible to every user.
type Partition string

const (
	PartitionPersonal Partition = "personal"
	PartitionShared   Partition = "shared"
)

// Validate checks if the partition is valid
func (p Partition) Validate() error {
	switch p {
	case PartitionPersonal, PartitionShared:
		return nil
	default:
		return goerr.Wrap(ErrInvalidPartition, "unknown partition", goerr.V("partition", p))
	}
}

// Memory is a stored memory entry derived from a completed exchange.
// Immutable once written.
type Memory struct {
	ID        MemoryID
	Partition Partition
	UserID    string // empty for shared memories
	Text      string
	Embedding firestore.Vector32
	CreatedAt time.Time
}
