package db

import (
	"context"
	"fmt"
)

// Every document lives in one table keyed by (collection path, id).
// Subcollections use the parent's path as prefix, e.g. tickets/t1/likes.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		data       JSONB NOT NULL DEFAULT '{}'::jsonb,
		PRIMARY KEY (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS documents_created_at_idx
		ON documents (collection, (data->'createdAt') DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS documents_status_idx
		ON documents (collection, (data->>'status'))`,
	`CREATE INDEX IF NOT EXISTS documents_type_user_idx
		ON documents (collection, (data->>'type'), (data->>'userId'))`,
}

// EnsureSchema creates the documents table and its indexes if missing.
func EnsureSchema(ctx context.Context, q Querier) error {
	for _, stmt := range schemaStatements {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
