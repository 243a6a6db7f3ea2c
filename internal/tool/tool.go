// Package tool holds the tool contract, the capability-gated registry,
// and the failure classifier that turns raw tool errors into structured
// payloads the model can act on.
package tool

import (
	"context"
	"encoding/json"
)

// Capability gates a tool's visibility per turn. Tools are only offered
// to the model when the turn satisfies their capability.
type Capability int

const (
	// CapNone tools are always visible.
	CapNone Capability = iota
	// CapSources tools require at least one permitted document source.
	CapSources
	// CapWeb tools require web access to be enabled for the turn.
	CapWeb
)

// ExecutionContext carries per-invocation context into every tool.
// Tools must not infer any of this from globals.
type ExecutionContext struct {
	ConversationID string
	UserID         string
	EmbeddingModel string
	SourceIDs      []string
}

// Tool is a read-oriented capability the agent can invoke. Implementations
// validate their own arguments and must be safe to retry.
type Tool interface {
	// Name returns the tool's unique identifier.
	Name() string

	// Description returns a human-readable description for the model.
	Description() string

	// Parameters returns the JSON Schema for the tool's arguments.
	Parameters() json.RawMessage

	// Capability returns the gate controlling the tool's visibility.
	Capability() Capability

	// Execute runs the tool with the given raw JSON arguments.
	Execute(ctx context.Context, ec ExecutionContext, args string) (string, error)
}

// Caps describes what the current turn is allowed to reach.
type Caps struct {
	HasSources bool
	WebEnabled bool
}

// Satisfies reports whether the turn capabilities admit the given gate.
func (c Caps) Satisfies(cap Capability) bool {
	switch cap {
	case CapSources:
		return c.HasSources
	case CapWeb:
		return c.WebEnabled
	default:
		return true
	}
}
