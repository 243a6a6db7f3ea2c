package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lorekeep/lorekeep/internal/retrieval"
	"github.com/lorekeep/lorekeep/internal/tool"
)

// Retriever assembles grounding chunks for a query.
type Retriever interface {
	Assemble(ctx context.Context, query string, sourceIDs []string) (*retrieval.GroundingContext, error)
}

// SearchDocuments performs semantic search over the turn's permitted
// document sources.
type SearchDocuments struct {
	retriever Retriever
}

// NewSearchDocuments creates the search_documents tool.
func NewSearchDocuments(retriever Retriever) *SearchDocuments {
	return &SearchDocuments{retriever: retriever}
}

func (t *SearchDocuments) Name() string { return "search_documents" }

func (t *SearchDocuments) Description() string {
	return "Semantic search over the user's documents. Returns the most relevant excerpts with their source names and chunk ids."
}

func (t *SearchDocuments) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Natural-language search query"}
		},
		"required": ["query"]
	}`)
}

func (t *SearchDocuments) Capability() tool.Capability { return tool.CapSources }

type searchArgs struct {
	Query string `json:"query"`
}

func (t *SearchDocuments) Execute(ctx context.Context, ec tool.ExecutionContext, args string) (string, error) {
	var a searchArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", invalidArgs(err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return "", invalidArgs(fmt.Errorf("query must not be empty"))
	}

	g, err := t.retriever.Assemble(ctx, a.Query, ec.SourceIDs)
	if err != nil {
		return "", err
	}
	if g.Empty() {
		return "", fmt.Errorf("no results found for query %q", a.Query)
	}

	type hit struct {
		ChunkID    string  `json:"chunkId"`
		SourceName string  `json:"sourceName"`
		ChunkIndex int     `json:"chunkIndex"`
		Content    string  `json:"content"`
		Score      float32 `json:"score"`
	}
	hits := make([]hit, len(g.Chunks))
	for i, c := range g.Chunks {
		hits[i] = hit{
			ChunkID:    c.ID,
			SourceName: c.SourceName,
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Score:      c.Score,
		}
	}

	out, err := json.Marshal(map[string]any{"results": hits})
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}
	return string(out), nil
}
