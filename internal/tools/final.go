package tools

import (
	"context"
	"encoding/json"

	"github.com/lorekeep/lorekeep/internal/tool"
)

// FinalAnswer is a marker tool: calling it signals the agent loop to
// stop gathering and synthesize the answer. It is never executed for
// its output.
type FinalAnswer struct{}

// NewFinalAnswer creates the provide_final_answer tool.
func NewFinalAnswer() *FinalAnswer { return &FinalAnswer{} }

func (t *FinalAnswer) Name() string { return FinalAnswerName }

func (t *FinalAnswer) Description() string {
	return "Call this when you have gathered enough information to answer the user's question. Do not call any other tools alongside it."
}

func (t *FinalAnswer) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *FinalAnswer) Capability() tool.Capability { return tool.CapNone }

func (t *FinalAnswer) Execute(ctx context.Context, ec tool.ExecutionContext, args string) (string, error) {
	return "ready to answer", nil
}
