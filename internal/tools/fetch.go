package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lorekeep/lorekeep/internal/tool"
)

// FetchWebpage downloads a single page and returns its readable text.
type FetchWebpage struct {
	fetcher PageFetcher
}

// NewFetchWebpage creates the fetch_webpage tool.
func NewFetchWebpage(fetcher PageFetcher) *FetchWebpage {
	return &FetchWebpage{fetcher: fetcher}
}

func (t *FetchWebpage) Name() string { return "fetch_webpage" }

func (t *FetchWebpage) Description() string {
	return "Fetch a webpage by URL and return its readable text content with basic metadata."
}

func (t *FetchWebpage) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "Absolute http(s) URL to fetch"}
		},
		"required": ["url"]
	}`)
}

func (t *FetchWebpage) Capability() tool.Capability { return tool.CapWeb }

type fetchArgs struct {
	URL string `json:"url"`
}

func (t *FetchWebpage) Execute(ctx context.Context, ec tool.ExecutionContext, args string) (string, error) {
	var a fetchArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", invalidArgs(err)
	}
	if strings.TrimSpace(a.URL) == "" {
		return "", invalidArgs(fmt.Errorf("url must not be empty"))
	}

	page, err := t.fetcher.Fetch(ctx, a.URL)
	if err != nil {
		return "", err
	}

	enc, err := json.Marshal(page)
	if err != nil {
		return "", fmt.Errorf("encoding page: %w", err)
	}
	return string(enc), nil
}
