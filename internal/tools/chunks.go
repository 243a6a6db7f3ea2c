package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lorekeep/lorekeep/internal/tool"
)

// ReadChunks fetches the full text of specific stored chunks by id, for
// follow-up reads after a search.
type ReadChunks struct {
	reader ChunkReader
}

// NewReadChunks creates the read_chunks tool.
func NewReadChunks(reader ChunkReader) *ReadChunks {
	return &ReadChunks{reader: reader}
}

func (t *ReadChunks) Name() string { return "read_chunks" }

func (t *ReadChunks) Description() string {
	return "Read the full text of specific document chunks by id, as returned by search_documents."
}

func (t *ReadChunks) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"chunk_ids": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Chunk ids to read"
			}
		},
		"required": ["chunk_ids"]
	}`)
}

func (t *ReadChunks) Capability() tool.Capability { return tool.CapSources }

type readChunksArgs struct {
	ChunkIDs []string `json:"chunk_ids"`
}

func (t *ReadChunks) Execute(ctx context.Context, ec tool.ExecutionContext, args string) (string, error) {
	var a readChunksArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", invalidArgs(err)
	}
	if len(a.ChunkIDs) == 0 {
		return "", invalidArgs(fmt.Errorf("chunk_ids must not be empty"))
	}

	chunks, err := t.reader.GetChunksByIDs(ctx, a.ChunkIDs)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("no results found for the requested chunk ids")
	}

	type entry struct {
		ChunkID    string `json:"chunkId"`
		SourceName string `json:"sourceName"`
		ChunkIndex int    `json:"chunkIndex"`
		Content    string `json:"content"`
	}
	out := make([]entry, len(chunks))
	for i, c := range chunks {
		out[i] = entry{ChunkID: c.ID, SourceName: c.SourceName, ChunkIndex: c.ChunkIndex, Content: c.Content}
	}

	enc, err := json.Marshal(map[string]any{"chunks": out})
	if err != nil {
		return "", fmt.Errorf("encoding chunks: %w", err)
	}
	return string(enc), nil
}
