package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/common/db"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tidwall/gjson"
)

// ErrRecordNotFound is returned when no content record embeds the video.
var ErrRecordNotFound = errors.New("content record not found")

// ContentRepository locates and patches VideoRecords embedded inside the
// metadata blob of posts and comments. There is no index on the blob, so
// lookup is a substring scan followed by an exact-match confirmation;
// webhook volume is low relative to content volume, which keeps the scan
// affordable. The keyed video_index is preferred when populated.
type ContentRepository struct {
	db *db.DB
}

// NewContentRepository creates a new content repository
func NewContentRepository(db *db.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

var contentTables = map[models.RecordKind]string{
	models.RecordKindPost:    "posts",
	models.RecordKindComment: "comments",
}

func tableFor(kind models.RecordKind) (string, error) {
	table, ok := contentTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown record kind: %s", kind)
	}
	return table, nil
}

// FindByVideoID scans both content tables for records whose metadata
// mentions the video id, then confirms an exact match on the embedded
// video_id field before a candidate qualifies.
func (r *ContentRepository) FindByVideoID(ctx context.Context, videoID string) ([]models.ContentHandle, error) {
	var handles []models.ContentHandle

	for _, kind := range []models.RecordKind{models.RecordKindPost, models.RecordKindComment} {
		table := contentTables[kind]
		query := fmt.Sprintf(`SELECT id, metadata FROM %s WHERE metadata LIKE '%%' || $1 || '%%'`, table)

		rows, err := r.db.Query(ctx, query, videoID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s for video %s: %w", table, videoID, err)
		}

		for rows.Next() {
			var id uuid.UUID
			var metadata string
			if err := rows.Scan(&id, &metadata); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
			}

			// Substring hits can be false positives (the id appearing in
			// html or an unrelated field); only an exact embedded match counts.
			if gjson.Get(metadata, "video.video_id").String() == videoID {
				handles = append(handles, models.ContentHandle{Kind: kind, ID: id})
			}
		}
		rows.Close()

		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating %s: %w", table, err)
		}
	}

	return handles, nil
}

// GetVideo loads the embedded VideoRecord from a content record
func (r *ContentRepository) GetVideo(ctx context.Context, handle models.ContentHandle) (*models.VideoRecord, error) {
	table, err := tableFor(handle.Kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT metadata FROM %s WHERE id = $1`, table)

	var metadata string
	if err := r.db.QueryRow(ctx, query, handle.ID).Scan(&metadata); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load %s %s: %w", table, handle.ID, err)
	}

	embedded := gjson.Get(metadata, "video")
	if !embedded.Exists() {
		return nil, ErrRecordNotFound
	}

	var record models.VideoRecord
	if err := json.Unmarshal([]byte(embedded.Raw), &record); err != nil {
		return nil, fmt.Errorf("failed to decode embedded video record: %w", err)
	}

	return &record, nil
}

// Patch applies a partial mutation to the embedded VideoRecord via a
// JSON merge patch against the whole metadata document, then writes the
// document back with a targeted per-row update. The update is refused
// once the stored record is ready, which makes readiness monotonic even
// when two deliveries race: the first ready write wins and later
// payloads cannot regress or rewrite it.
//
// Returns true when a row was updated.
func (r *ContentRepository) Patch(ctx context.Context, handle models.ContentHandle, mutation models.VideoMutation) (bool, error) {
	table, err := tableFor(handle.Kind)
	if err != nil {
		return false, err
	}

	selectQuery := fmt.Sprintf(`SELECT metadata FROM %s WHERE id = $1`, table)

	var metadata string
	if err := r.db.QueryRow(ctx, selectQuery, handle.ID).Scan(&metadata); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrRecordNotFound
		}
		return false, fmt.Errorf("failed to load %s %s: %w", table, handle.ID, err)
	}

	mutationJSON, err := json.Marshal(mutation)
	if err != nil {
		return false, fmt.Errorf("failed to marshal mutation: %w", err)
	}

	patchDoc, err := json.Marshal(map[string]json.RawMessage{"video": mutationJSON})
	if err != nil {
		return false, fmt.Errorf("failed to build patch document: %w", err)
	}

	patched, err := jsonpatch.MergePatch([]byte(metadata), patchDoc)
	if err != nil {
		return false, fmt.Errorf("failed to merge patch metadata: %w", err)
	}

	updateQuery := fmt.Sprintf(`
		UPDATE %s
		SET metadata = $2
		WHERE id = $1
		  AND COALESCE(metadata::jsonb #>> '{video,status}', '') <> 'ready'
	`, table)

	result, err := r.db.Exec(ctx, updateQuery, handle.ID, string(patched))
	if err != nil {
		return false, fmt.Errorf("failed to patch %s %s: %w", table, handle.ID, err)
	}

	return result.RowsAffected() > 0, nil
}
