package retrieval

import (
	"context"
	"strings"

	"github.com/lorekeep/lorekeep/internal/llm"
)

const hydePrompt = "Write a short, factual paragraph that would plausibly answer the " +
	"question below. Do not say you are unsure; just write the most likely answer. " +
	"Respond with the paragraph only.\n\nQuestion: "

// ExpandHyDE asks the model for a hypothetical answer to the query and
// returns it as the retrieval embedding input. On any failure the
// original query is returned, so HyDE can never break retrieval.
func ExpandHyDE(ctx context.Context, client llm.Client, model, query string) string {
	resp, err := client.Complete(ctx, llm.CompletionRequest{
		Model: model,
		Messages: []llm.ChatMessage{
			{Role: "user", Content: hydePrompt + query},
		},
	})
	if err != nil || resp == nil {
		return query
	}
	expanded := strings.TrimSpace(resp.Content)
	if expanded == "" {
		return query
	}
	return expanded
}
