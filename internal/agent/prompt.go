package agent

import "strings"

const basePrompt = `You are a research assistant. Answer the user's question using the conversation and any tool results available to you.

Rules:
- Ground every factual claim in retrieved material when sources are available.
- Cite document excerpts with bracketed numbers like [1] matching the excerpt list.
- If you cannot find an answer, say so plainly instead of guessing.`

const sourcesPrompt = `
The user has attached document sources. Prefer search_documents before answering questions that the documents could cover.`

const webPrompt = `
Web access is enabled. Use web_search and fetch_webpage for questions about current or external information.`

const budgetExhaustedPrompt = `You have run out of tool-call budget. Answer the user's question now using only the information gathered so far. If the gathered information is insufficient, say what is missing.`

// systemPrompt builds the turn's system message from its capabilities.
func systemPrompt(turn Turn) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	if len(turn.SourceIDs) > 0 {
		b.WriteString(sourcesPrompt)
	}
	if turn.WebEnabled {
		b.WriteString(webPrompt)
	}
	return b.String()
}
