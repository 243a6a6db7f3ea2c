package store

import (
	"context"
	"fmt"

	"github.com/lorekeep/lorekeep/internal/domain"
)

// CreateSource registers a document source.
func (db *DB) CreateSource(ctx context.Context, s domain.Source, userID string) error {
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO sources (id, name, user_id) VALUES (?, ?, ?)`,
		s.ID, s.Name, userID)
	if err != nil {
		return fmt.Errorf("inserting source: %w", err)
	}
	return nil
}

// ListSources returns the sources visible to a user, name-ordered.
func (db *DB) ListSources(ctx context.Context, userID string) ([]domain.Source, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT id, name FROM sources WHERE user_id = ? OR user_id = '' ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		var s domain.Source
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
