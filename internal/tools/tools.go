// Package tools implements the built-in read-oriented tools the agent
// can invoke: document search, chunk reads, source listing, web search,
// and webpage fetch. Every tool decodes its own arguments from the raw
// JSON string and is safe to retry.
package tools

import (
	"context"
	"fmt"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/web"
)

// FinalAnswerName is the distinguished tool that short-circuits the
// agent loop directly to synthesis.
const FinalAnswerName = "provide_final_answer"

// ChunkReader fetches stored chunks by id.
type ChunkReader interface {
	GetChunksByIDs(ctx context.Context, ids []string) ([]domain.RetrievedChunk, error)
}

// SourceLister lists the document sources a user can see.
type SourceLister interface {
	ListSources(ctx context.Context, userID string) ([]domain.Source, error)
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]web.SearchResult, error)
}

// PageFetcher downloads and extracts a webpage.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*web.Page, error)
}

// invalidArgs wraps an argument decode failure so it classifies as a
// validation error, not a crash.
func invalidArgs(err error) error {
	return fmt.Errorf("invalid arguments: %w", err)
}
