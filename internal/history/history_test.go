package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/llm"
)

func userMsg(content string) domain.Message {
	return domain.Message{Role: domain.RoleUser, Content: content}
}

func assistantMsg(content string) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: content}
}

func TestBuild_UnderBudgetUnchanged(t *testing.T) {
	msgs := []domain.Message{
		userMsg("hello"),
		assistantMsg("hi"),
		userMsg("what is in the report?"),
	}

	got := Build(msgs, 10)
	require.Len(t, got, 3)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, "what is in the report?", got[2].Content)
}

func TestBuild_DropsEmptyPlaceholders(t *testing.T) {
	msgs := []domain.Message{
		userMsg("hello"),
		{Role: domain.RoleAssistant, Reasoning: "thinking..."}, // thought without calls
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "c1", Name: "search_documents", Arguments: "{}"}}},
		{Role: domain.RoleTool, ToolCallID: "c1", Content: ""}, // tool messages survive even when empty
		assistantMsg("done"),
	}

	got := Build(msgs, 10)
	require.Len(t, got, 4)
	assert.Equal(t, domain.RoleUser, got[0].Role)
	require.Len(t, got[1].ToolCalls, 1)
	assert.Equal(t, "search_documents", got[1].ToolCalls[0].Function.Name)
	assert.Equal(t, domain.RoleTool, got[2].Role)
	assert.Equal(t, "c1", got[2].ToolCallID)
}

func TestBuild_OverBudgetKeepsAnchorAndRecent(t *testing.T) {
	var msgs []domain.Message
	for i := 0; i < 20; i++ {
		msgs = append(msgs, userMsg(fmt.Sprintf("m%d", i)))
	}

	got := Build(msgs, 5)
	require.Len(t, got, 5)
	assert.Equal(t, "m0", got[0].Content)
	assert.Equal(t, "m16", got[1].Content)
	assert.Equal(t, "m19", got[4].Content)
}

func TestBuild_ExactBudgetUnchanged(t *testing.T) {
	msgs := []domain.Message{userMsg("a"), assistantMsg("b"), userMsg("c")}
	got := Build(msgs, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Content)
}

func wire(role, content string) llm.ChatMessage {
	return llm.ChatMessage{Role: role, Content: content}
}

func TestPrune_UnderBudgetUnchanged(t *testing.T) {
	msgs := []llm.ChatMessage{wire("system", "sys"), wire("user", "q")}
	assert.Equal(t, msgs, Prune(msgs, 5))
}

func TestPrune_KeepsSystemAndAnchor(t *testing.T) {
	msgs := []llm.ChatMessage{
		wire("system", "sys"),
		wire("user", "original question"),
		wire("assistant", "a1"),
		wire("user", "u2"),
		wire("assistant", "a2"),
		wire("user", "u3"),
		wire("assistant", "a3"),
	}

	got := Prune(msgs, 4)
	require.Len(t, got, 4)
	assert.Equal(t, "sys", got[0].Content)
	assert.Equal(t, "original question", got[1].Content)
	assert.Equal(t, "u3", got[2].Content)
	assert.Equal(t, "a3", got[3].Content)
}

func TestPrune_NeverRemovesSystem(t *testing.T) {
	msgs := []llm.ChatMessage{
		wire("system", "s1"),
		wire("user", "q"),
		wire("system", "s2"),
		wire("assistant", "a1"),
		wire("assistant", "a2"),
	}

	got := Prune(msgs, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "s1", got[0].Content)
	assert.Equal(t, "q", got[1].Content)
	assert.Equal(t, "s2", got[2].Content)
}

func TestPrune_AnchorNotDuplicated(t *testing.T) {
	msgs := []llm.ChatMessage{
		wire("user", "only question"),
		wire("assistant", "a1"),
	}

	got := Prune(msgs, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "only question", got[0].Content)
	assert.Equal(t, "a1", got[1].Content)
}

func TestPrune_NeverExceedsBudget(t *testing.T) {
	var msgs []llm.ChatMessage
	msgs = append(msgs, wire("system", "sys"))
	for i := 0; i < 30; i++ {
		msgs = append(msgs, wire("user", fmt.Sprintf("u%d", i)))
		msgs = append(msgs, wire("assistant", fmt.Sprintf("a%d", i)))
	}

	for _, max := range []int{3, 5, 10, 25} {
		got := Prune(msgs, max)
		assert.LessOrEqual(t, len(got), max, "max=%d", max)
		assert.Equal(t, "sys", got[0].Content)
	}
}
