package domain

// RetrievedChunk is a document fragment returned by vector search.
// Result ordering is similarity rank; ties break by ChunkIndex ascending.
type RetrievedChunk struct {
	ID         string  `json:"id"`
	SourceID   string  `json:"sourceId"`
	SourceName string  `json:"sourceName"`
	ChunkIndex int     `json:"chunkIndex"`
	Content    string  `json:"content"`
	Score      float32 `json:"score,omitempty"`
}

// Citation maps a numbered marker in the assistant's answer back to the
// chunk that grounded it. Citations are aligned 1:1 with the chunks
// injected into the prompt.
type Citation struct {
	Number     int    `json:"number"`
	SourceName string `json:"sourceName"`
	ChunkIndex int    `json:"chunkIndex"`
}

// Source is a document collection the conversation may search.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
