package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/logging"
)

// ErrNotRegistered marks an Execute call naming a tool that was never
// registered. This is a caller bug, not an environmental failure, so it
// is not routed through the classifier.
var ErrNotRegistered = errors.New("tool not registered")

// Registry holds named tools and executes them with failure isolation.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
	log   *logging.Logger
}

// NewRegistry creates an empty registry. Construct one at process start
// and pass it by reference; there is no ambient global lookup.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		log:   log.Sub("tools"),
	}
}

// Register adds a tool. Re-registering a name replaces the previous tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns model-ready definitions for every registered tool
// admitted by the turn's capabilities, in registration order.
func (r *Registry) Definitions(caps Caps) []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		if !caps.Satisfies(t.Capability()) {
			continue
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Execute runs one tool by name. Environmental failures (including
// panics inside the tool) come back as a *StructuredError so a single
// bad call cannot abort a concurrent batch; only an unregistered name
// returns a plain error.
func (r *Registry) Execute(ctx context.Context, ec ExecutionContext, name, args string) (result string, err error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("tool", name).Any("panic", rec).Msg("tool panicked")
			err = Classify(name, Failure{Message: fmt.Sprintf("panic: %v", rec)})
		}
	}()

	r.log.Debug().Str("tool", name).Msg("executing tool")
	out, execErr := t.Execute(ctx, ec, args)
	if execErr != nil {
		var structured *StructuredError
		if errors.As(execErr, &structured) {
			return "", structured
		}
		return "", ClassifyErr(name, execErr)
	}
	return out, nil
}
