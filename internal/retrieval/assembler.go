// Package retrieval turns a user query into ranked grounding chunks:
// embed, similarity search over permitted sources, optional cross-encoder
// rerank, and a numbered citation list aligned with the chunks.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/logging"
)

// defaultTopK is the similarity-search candidate count.
const defaultTopK = 5

// VectorSearcher is the persistence collaborator for similarity search.
type VectorSearcher interface {
	FindByVector(ctx context.Context, embedding []float32, sourceIDs []string, limit int) ([]domain.RetrievedChunk, error)
}

// GroundingContext is the assembled retrieval output. Citations are
// numbered 1..n and aligned 1:1 with Chunks.
type GroundingContext struct {
	Chunks    []domain.RetrievedChunk
	Citations []domain.Citation
}

// Empty reports whether nothing was retrieved.
func (g *GroundingContext) Empty() bool { return len(g.Chunks) == 0 }

// PromptBlock renders the chunks as a numbered grounding block for the
// model. Marker numbers match the citation list.
func (g *GroundingContext) PromptBlock() string {
	if g.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("Retrieved document excerpts:\n\n")
	for i, c := range g.Chunks {
		fmt.Fprintf(&b, "[%d] %s (chunk %d):\n%s\n\n", i+1, c.SourceName, c.ChunkIndex, c.Content)
	}
	return strings.TrimSpace(b.String())
}

// Assembler wires the embedding client, vector search, and optional
// reranker into one retrieval call.
type Assembler struct {
	embedder llm.EmbeddingClient
	searcher VectorSearcher
	reranker llm.RerankClient // nil disables reranking
	topK     int
	topN     int // post-rerank truncation; 0 keeps all
	log      *logging.Logger
}

// NewAssembler creates an Assembler. reranker may be nil.
func NewAssembler(embedder llm.EmbeddingClient, searcher VectorSearcher, reranker llm.RerankClient, log *logging.Logger) *Assembler {
	return &Assembler{
		embedder: embedder,
		searcher: searcher,
		reranker: reranker,
		topK:     defaultTopK,
		log:      log.Sub("retrieval"),
	}
}

// WithTopK overrides the similarity-search candidate count.
func (a *Assembler) WithTopK(k int) *Assembler {
	if k > 0 {
		a.topK = k
	}
	return a
}

// WithRerankTopN truncates reranked results to the top n.
func (a *Assembler) WithRerankTopN(n int) *Assembler {
	a.topN = n
	return a
}

// Assemble retrieves grounding for the query, constrained to the
// permitted source ids. An empty permitted set short-circuits to an
// empty result without touching the embedding provider.
func (a *Assembler) Assemble(ctx context.Context, query string, sourceIDs []string) (*GroundingContext, error) {
	if len(sourceIDs) == 0 {
		return &GroundingContext{}, nil
	}

	vecs, err := a.embedder.Embed(ctx, []string{query}, llm.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding provider returned no vector")
	}

	chunks, err := a.searcher.FindByVector(ctx, vecs[0], sourceIDs, a.topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	chunks = a.rerank(ctx, query, chunks)

	g := &GroundingContext{Chunks: chunks}
	for i, c := range chunks {
		g.Citations = append(g.Citations, domain.Citation{
			Number:     i + 1,
			SourceName: c.SourceName,
			ChunkIndex: c.ChunkIndex,
		})
	}
	return g, nil
}

// rerank re-scores candidates with the cross-encoder. An empty document
// set skips the call entirely; a rerank failure degrades to the original
// similarity order rather than failing the turn.
func (a *Assembler) rerank(ctx context.Context, query string, chunks []domain.RetrievedChunk) []domain.RetrievedChunk {
	if a.reranker == nil || len(chunks) == 0 {
		return chunks
	}

	docs := make([]llm.RerankDocument, len(chunks))
	for i, c := range chunks {
		docs[i] = llm.RerankDocument{
			Text:     c.Content,
			Metadata: map[string]any{"sourceId": c.SourceID, "chunkIndex": c.ChunkIndex},
		}
	}

	results, err := a.reranker.Rerank(ctx, query, docs, a.topN)
	if err != nil {
		a.log.Warn().Err(err).Msg("rerank failed, keeping similarity order")
		return chunks
	}

	reordered := make([]domain.RetrievedChunk, 0, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(chunks) {
			continue
		}
		c := chunks[r.Index]
		c.Score = float32(r.RelevanceScore)
		reordered = append(reordered, c)
	}
	if len(reordered) == 0 {
		return chunks
	}
	return reordered
}
