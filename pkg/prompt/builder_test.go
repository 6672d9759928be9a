package prompt_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/meera-os/meera/pkg/model"
	"github.com/meera-os/meera/pkg/prompt"
)

func testIdentity() *model.UserIdentity {
	return &model.UserIdentity{
		UserID:      "u1",
		DisplayName: "Asha",
		Traits:      map[string]string{"tone": "concise"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func TestBuildBasePrompt(t *testing.T) {
	builder := prompt.New()

	personal := []*model.Memory{
		{ID: model.NewMemoryID(), Partition: model.PartitionPersonal, UserID: "u1", Text: "likes astronomy"},
	}
	shared := []*model.Memory{
		{ID: model.NewMemoryID(), Partition: model.PartitionShared, Text: "the hive discussed telescopes"},
	}

	out, err := builder.Build(testIdentity(), personal, shared, nil, "what is a nebula?")
	gt.NoError(t, err)

	gt.S(t, out).Contains("u1")
	gt.S(t, out).Contains("Asha")
	gt.S(t, out).Contains("likes astronomy")
	gt.S(t, out).Contains("the hive discussed telescopes")
	gt.S(t, out).Contains("what is a nebula?")
	gt.S(t, out).NotContains("[Hive Knowledge]")
}

func TestBuildEmptySections(t *testing.T) {
	builder := prompt.New()

	out, err := builder.Build(testIdentity(), nil, nil, nil, "hello")
	gt.NoError(t, err)

	gt.S(t, out).Contains("(none)")
	gt.S(t, out).Contains("hello")
	gt.S(t, out).NotContains("[Hive Knowledge]")
}

func TestBuildKnowledgeBlockVerbatim(t *testing.T) {
	builder := prompt.New()

	knowledge := []*model.Knowledge{
		{ID: "1", Title: "Policy A", Content: "refunds allowed within 30 days"},
		{ID: "2", UserID: "u1", Title: "Note", Content: "prefers concise replies"},
		{ID: "3", Title: "Weird * chars {{}}", Content: "content with\nnewline"},
	}

	out, err := builder.Build(testIdentity(), nil, nil, knowledge, "refund")
	gt.NoError(t, err)

	gt.S(t, out).Contains("[Hive Knowledge]")
	for _, entry := range knowledge {
		gt.S(t, out).Contains(entry.Title)
		gt.S(t, out).Contains(entry.Content)
		gt.S(t, out).Contains("- " + entry.Title + ": " + entry.Content)
	}
}

func TestBuildKnowledgeSetsDoNotCollapse(t *testing.T) {
	builder := prompt.New()

	setA := []*model.Knowledge{
		{ID: "1", Title: "A", Content: "alpha"},
		{ID: "2", Title: "B", Content: "beta"},
	}
	setB := []*model.Knowledge{
		{ID: "1", Title: "A", Content: "alpha"},
	}

	outA, err := builder.Build(testIdentity(), nil, nil, setA, "q")
	gt.NoError(t, err)
	outB, err := builder.Build(testIdentity(), nil, nil, setB, "q")
	gt.NoError(t, err)

	gt.V(t, outA == outB).Equal(false)
	gt.S(t, outA).Contains("beta")
	gt.S(t, outB).NotContains("beta")
}

func TestBuildUntitledEntry(t *testing.T) {
	builder := prompt.New()

	knowledge := []*model.Knowledge{
		{ID: "1", Content: "untitled content"},
	}

	out, err := builder.Build(testIdentity(), nil, nil, knowledge, "q")
	gt.NoError(t, err)
	gt.S(t, out).Contains("- Entry: untitled content")
}
