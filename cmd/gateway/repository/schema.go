package repository

import (
	"context"
	"fmt"

	"github.com/clipstream/streamgate/common/db"
)

// EnsureSchema creates the tables this service owns. The content tables
// (posts, comments) belong to the surrounding CMS; they are created here
// only if absent so development and test environments are self-contained.
func EnsureSchema(database *db.DB) error {
	ctx := context.Background()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id UUID PRIMARY KEY,
			metadata TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id UUID PRIMARY KEY,
			metadata TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS video_index (
			video_id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			record_kind TEXT,
			record_id UUID,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}
