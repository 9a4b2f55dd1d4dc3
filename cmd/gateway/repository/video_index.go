package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/common/db"
	"github.com/jackc/pgx/v5"
)

// ErrIndexNotFound is returned when no index entry exists for a video id.
var ErrIndexNotFound = errors.New("video index entry not found")

// VideoIndexRepository maintains the keyed video_id -> content record
// mapping registered at upload time, replacing the blob substring scan
// with a direct lookup. The owning post or comment may not exist yet
// when the upload is registered, so record fields start null and are
// backfilled the first time the scan path locates the owner.
type VideoIndexRepository struct {
	db *db.DB
}

// NewVideoIndexRepository creates a new video index repository
func NewVideoIndexRepository(db *db.DB) *VideoIndexRepository {
	return &VideoIndexRepository{db: db}
}

// Register inserts an index entry for a freshly uploaded video
func (r *VideoIndexRepository) Register(ctx context.Context, entry *models.IndexEntry) error {
	query := `
		INSERT INTO video_index (video_id, provider, record_kind, record_id, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (video_id) DO UPDATE
		SET provider = EXCLUDED.provider
	`

	_, err := r.db.Exec(ctx, query,
		entry.VideoID,
		entry.Provider,
		entry.RecordKind,
		entry.RecordID,
		entry.Status,
	)

	if err != nil {
		return fmt.Errorf("failed to register video index entry: %w", err)
	}

	return nil
}

// Lookup retrieves an index entry by video id
func (r *VideoIndexRepository) Lookup(ctx context.Context, videoID string) (*models.IndexEntry, error) {
	query := `
		SELECT video_id, provider, record_kind, record_id, status
		FROM video_index
		WHERE video_id = $1
	`

	entry := &models.IndexEntry{}
	err := r.db.QueryRow(ctx, query, videoID).Scan(
		&entry.VideoID,
		&entry.Provider,
		&entry.RecordKind,
		&entry.RecordID,
		&entry.Status,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrIndexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up video index entry: %w", err)
	}

	return entry, nil
}

// Backfill fills in the owning content record once the scan path has
// located it
func (r *VideoIndexRepository) Backfill(ctx context.Context, videoID string, handle models.ContentHandle) error {
	query := `
		UPDATE video_index
		SET record_kind = $2, record_id = $3
		WHERE video_id = $1 AND record_id IS NULL
	`

	_, err := r.db.Exec(ctx, query, videoID, handle.Kind, handle.ID)
	if err != nil {
		return fmt.Errorf("failed to backfill video index entry: %w", err)
	}

	return nil
}

// UpdateStatus advances the indexed status. The conditional update keeps
// the transition monotonic: a ready entry is never rewritten.
func (r *VideoIndexRepository) UpdateStatus(ctx context.Context, videoID string, status models.VideoStatus) (bool, error) {
	query := `
		UPDATE video_index
		SET status = $2
		WHERE video_id = $1 AND status <> 'ready'
	`

	result, err := r.db.Exec(ctx, query, videoID, status)
	if err != nil {
		return false, fmt.Errorf("failed to update video index status: %w", err)
	}

	return result.RowsAffected() > 0, nil
}
