package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lorekeep/lorekeep/internal/domain"
)

// CreateMessage persists one message. The sequence number is assigned
// from the conversation's current maximum.
func (db *DB) CreateMessage(ctx context.Context, m domain.Message) error {
	var toolCalls, metadata []byte
	var err error
	if len(m.ToolCalls) > 0 {
		if toolCalls, err = json.Marshal(m.ToolCalls); err != nil {
			return fmt.Errorf("encoding tool calls: %w", err)
		}
	}
	if len(m.Metadata) > 0 {
		if metadata, err = json.Marshal(m.Metadata); err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
	}

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = db.sql.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, seq, role, content, reasoning, tool_calls, tool_call_id, metadata, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?), ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.ConversationID, m.Role, m.Content, m.Reasoning,
		nullable(toolCalls), m.ToolCallID, nullable(metadata), createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// GetMessages returns the full history of a conversation in insertion order.
func (db *DB) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, reasoning, tool_calls, tool_call_id, metadata, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var toolCalls, metadata sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Reasoning,
			&toolCalls, &m.ToolCallID, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decoding tool calls for %s: %w", m.ID, err)
			}
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &m.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for %s: %w", m.ID, err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			m.CreatedAt = t
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
