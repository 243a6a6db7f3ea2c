package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lorekeep/lorekeep/internal/tool"
)

// ListSources enumerates the document sources available to the user.
type ListSources struct {
	lister SourceLister
}

// NewListSources creates the list_sources tool.
func NewListSources(lister SourceLister) *ListSources {
	return &ListSources{lister: lister}
}

func (t *ListSources) Name() string { return "list_sources" }

func (t *ListSources) Description() string {
	return "List the document sources available in this conversation, with their ids and names."
}

func (t *ListSources) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *ListSources) Capability() tool.Capability { return tool.CapSources }

func (t *ListSources) Execute(ctx context.Context, ec tool.ExecutionContext, args string) (string, error) {
	sources, err := t.lister.ListSources(ctx, ec.UserID)
	if err != nil {
		return "", err
	}

	// Restrict to what this turn may actually search.
	permitted := make(map[string]bool, len(ec.SourceIDs))
	for _, id := range ec.SourceIDs {
		permitted[id] = true
	}

	type entry struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	var out []entry
	for _, s := range sources {
		if !permitted[s.ID] {
			continue
		}
		out = append(out, entry{ID: s.ID, Name: s.Name})
	}
	if len(out) == 0 {
		return "", fmt.Errorf("no results found: no document sources are attached")
	}

	enc, err := json.Marshal(map[string]any{"sources": out})
	if err != nil {
		return "", fmt.Errorf("encoding sources: %w", err)
	}
	return string(enc), nil
}
