package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lorekeep/lorekeep/internal/tool"
)

const defaultMaxResults = 5

// WebSearch queries the configured web search provider.
type WebSearch struct {
	searcher Searcher
}

// NewWebSearch creates the web_search tool.
func NewWebSearch(searcher Searcher) *WebSearch {
	return &WebSearch{searcher: searcher}
}

func (t *WebSearch) Name() string { return "web_search" }

func (t *WebSearch) Description() string {
	return "Search the web. Returns result titles, URLs, and content snippets."
}

func (t *WebSearch) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Search query"},
			"max_results": {"type": "integer", "description": "Maximum results to return, default 5"}
		},
		"required": ["query"]
	}`)
}

func (t *WebSearch) Capability() tool.Capability { return tool.CapWeb }

type webSearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (t *WebSearch) Execute(ctx context.Context, ec tool.ExecutionContext, args string) (string, error) {
	var a webSearchArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", invalidArgs(err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return "", invalidArgs(fmt.Errorf("query must not be empty"))
	}
	if a.MaxResults <= 0 {
		a.MaxResults = defaultMaxResults
	}

	results, err := t.searcher.Search(ctx, a.Query, a.MaxResults)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no results found for query %q", a.Query)
	}

	enc, err := json.Marshal(map[string]any{"results": results})
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}
	return string(enc), nil
}
