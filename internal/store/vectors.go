package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lorekeep/lorekeep/internal/domain"
)

// Chunk is a stored document fragment with its embedding.
type Chunk struct {
	ID         string
	SourceID   string
	ChunkIndex int
	Content    string
	Embedding  []float32
}

// InsertChunks stores chunks for a source in one transaction.
func (db *DB) InsertChunks(ctx context.Context, chunks []Chunk) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning chunk insert: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (id, source_id, chunk_index, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range chunks {
		if _, err := stmt.Exec(c.ID, c.SourceID, c.ChunkIndex, c.Content, encodeFloat32s(c.Embedding), now); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// FindByVector runs brute-force cosine similarity over the chunks of the
// permitted sources and returns the top-limit matches ordered by score
// descending, ties broken by chunk index ascending.
func (db *DB) FindByVector(ctx context.Context, embedding []float32, sourceIDs []string, limit int) ([]domain.RetrievedChunk, error) {
	if len(sourceIDs) == 0 || limit <= 0 {
		return nil, nil
	}

	queryNorm := norm(embedding)
	if queryNorm == 0 {
		return nil, nil
	}

	args := make([]any, len(sourceIDs))
	for i, id := range sourceIDs {
		args[i] = id
	}
	query := `
		SELECT c.id, c.source_id, s.name, c.chunk_index, c.content, c.embedding
		FROM chunks c JOIN sources s ON s.id = c.source_id
		WHERE c.source_id IN (?` + strings.Repeat(",?", len(sourceIDs)-1) + `)`

	rows, err := db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var scored []domain.RetrievedChunk
	for rows.Next() {
		var c domain.RetrievedChunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.SourceID, &c.SourceName, &c.ChunkIndex, &c.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		vec, err := decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", c.ID, err)
		}
		c.Score = cosine(embedding, vec, queryNorm)
		scored = append(scored, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ChunkIndex < scored[j].ChunkIndex
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// GetChunksByIDs returns chunks by ID, ordered as requested IDs were.
func (db *DB) GetChunksByIDs(ctx context.Context, ids []string) ([]domain.RetrievedChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `
		SELECT c.id, c.source_id, s.name, c.chunk_index, c.content
		FROM chunks c JOIN sources s ON s.id = c.source_id
		WHERE c.id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	rows, err := db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks by id: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.RetrievedChunk, len(ids))
	for rows.Next() {
		var c domain.RetrievedChunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.SourceName, &c.ChunkIndex, &c.Content); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]domain.RetrievedChunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

func encodeFloat32s(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeFloat32s(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

func norm(vec []float32) float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return float32(math.Sqrt(sum))
}

func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	bNorm := norm(b)
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot) / (aNorm * bNorm)
}
