package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMessages_RoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateMessage(ctx, domain.Message{
		ID: "m1", ConversationID: "c1", Role: domain.RoleUser, Content: "hello",
	}))
	require.NoError(t, db.CreateMessage(ctx, domain.Message{
		ID: "m2", ConversationID: "c1", Role: domain.RoleAssistant,
		Reasoning: "I should search",
		ToolCalls: []domain.ToolCall{{ID: "call1", Name: "search_documents", Arguments: `{"query":"x"}`}},
	}))
	require.NoError(t, db.CreateMessage(ctx, domain.Message{
		ID: "m3", ConversationID: "c1", Role: domain.RoleTool,
		ToolCallID: "call1", Content: `{"chunks":[]}`,
	}))
	require.NoError(t, db.CreateMessage(ctx, domain.Message{
		ID: "other", ConversationID: "c2", Role: domain.RoleUser, Content: "unrelated",
	}))

	msgs, err := db.GetMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "hello", msgs[0].Content)
	assert.True(t, msgs[1].IsAgentThought())
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "search_documents", msgs[1].ToolCalls[0].Name)
	assert.Equal(t, "call1", msgs[2].ToolCallID)
}

func TestMessages_MetadataRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateMessage(ctx, domain.Message{
		ID: "m1", ConversationID: "c1", Role: domain.RoleAssistant, Content: "answer [1]",
		Metadata: map[string]any{"citations": []any{map[string]any{"number": float64(1)}}},
	}))

	msgs, err := db.GetMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Metadata, "citations")
}

func seedChunks(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.CreateSource(ctx, domain.Source{ID: "s1", Name: "report"}, "u1"))
	require.NoError(t, db.CreateSource(ctx, domain.Source{ID: "s2", Name: "notes"}, "u1"))

	require.NoError(t, db.InsertChunks(ctx, []Chunk{
		{ID: "ch1", SourceID: "s1", ChunkIndex: 0, Content: "alpha", Embedding: []float32{1, 0, 0}},
		{ID: "ch2", SourceID: "s1", ChunkIndex: 1, Content: "beta", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "ch3", SourceID: "s2", ChunkIndex: 0, Content: "gamma", Embedding: []float32{0, 1, 0}},
		// Same direction as ch1 but later chunk index: tie broken by index.
		{ID: "ch4", SourceID: "s1", ChunkIndex: 5, Content: "alpha bis", Embedding: []float32{2, 0, 0}},
	}))
}

func TestFindByVector_OrderingAndScoping(t *testing.T) {
	db := testDB(t)
	seedChunks(t, db)
	ctx := context.Background()

	got, err := db.FindByVector(ctx, []float32{1, 0, 0}, []string{"s1"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// ch1 and ch4 both score 1.0; chunk index ascending breaks the tie.
	assert.Equal(t, "ch1", got[0].ID)
	assert.Equal(t, "ch4", got[1].ID)
	assert.Equal(t, "ch2", got[2].ID)
	assert.Equal(t, "report", got[0].SourceName)

	// s2's chunk never appears when only s1 is permitted.
	for _, c := range got {
		assert.Equal(t, "s1", c.SourceID)
	}
}

func TestFindByVector_EmptySources(t *testing.T) {
	db := testDB(t)
	seedChunks(t, db)

	got, err := db.FindByVector(context.Background(), []float32{1, 0, 0}, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindByVector_Limit(t *testing.T) {
	db := testDB(t)
	seedChunks(t, db)

	got, err := db.FindByVector(context.Background(), []float32{1, 0, 0}, []string{"s1", "s2"}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGetChunksByIDs_PreservesRequestOrder(t *testing.T) {
	db := testDB(t)
	seedChunks(t, db)

	got, err := db.GetChunksByIDs(context.Background(), []string{"ch3", "ch1", "nope"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ch3", got[0].ID)
	assert.Equal(t, "ch1", got[1].ID)
}

func TestListSources(t *testing.T) {
	db := testDB(t)
	seedChunks(t, db)

	sources, err := db.ListSources(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "notes", sources[0].Name)
	assert.Equal(t, "report", sources[1].Name)
}
