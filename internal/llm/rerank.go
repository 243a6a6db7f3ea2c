package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// rerankTimeout bounds a single cross-encoder call.
const rerankTimeout = 45 * time.Second

// RerankDocument is one candidate passed to the reranker.
type RerankDocument struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RerankResult scores one candidate. Index refers to the request's
// document order.
type RerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// RerankClient re-scores candidate documents against a query.
type RerankClient interface {
	// Rerank returns results sorted by relevance score descending,
	// truncated to topN when topN > 0.
	Rerank(ctx context.Context, query string, docs []RerankDocument, topN int) ([]RerankResult, error)
}

// HTTPReranker calls a cross-encoder rerank endpoint.
type HTTPReranker struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHTTPReranker creates a rerank client for the given endpoint and model.
func NewHTTPReranker(baseURL, apiKey, model string) *HTTPReranker {
	return &HTTPReranker{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: rerankTimeout},
	}
}

type rerankRequest struct {
	Query     string           `json:"query"`
	Documents []RerankDocument `json:"documents"`
	Model     string           `json:"model"`
	TopN      int              `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []RerankResult `json:"results"`
}

// Rerank scores the documents against the query.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, docs []RerankDocument, topN int) ([]RerankResult, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, rerankTimeout)
	defer cancel()

	payload, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: docs,
		Model:     r.model,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/v1/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("rerank API error (%d): %s", resp.StatusCode, string(b))
	}

	var rr rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("parsing rerank response: %w", err)
	}

	results := rr.Results
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}
