package service

import (
	"context"
	"time"

	"github.com/clipstream/streamgate/cmd/gateway/models"
)

// ContentStore is the slice of the content repository the services use
type ContentStore interface {
	FindByVideoID(ctx context.Context, videoID string) ([]models.ContentHandle, error)
	GetVideo(ctx context.Context, handle models.ContentHandle) (*models.VideoRecord, error)
	Patch(ctx context.Context, handle models.ContentHandle, mutation models.VideoMutation) (bool, error)
}

// VideoIndex is the keyed video_id -> content record mapping
type VideoIndex interface {
	Register(ctx context.Context, entry *models.IndexEntry) error
	Lookup(ctx context.Context, videoID string) (*models.IndexEntry, error)
	Backfill(ctx context.Context, videoID string, handle models.ContentHandle) error
	UpdateStatus(ctx context.Context, videoID string, status models.VideoStatus) (bool, error)
}

// MarkerStore holds short-lived operational markers (upload-start
// timestamps, webhook idempotency keys). Backed by Redis; all usage is
// best-effort and never affects correctness.
type MarkerStore interface {
	SetWithExpiry(ctx context.Context, key, value string, expiry time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key, value string, expiry time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// EventPublisher publishes video lifecycle events for surrounding
// collaborators
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, message []byte) error
}

// TelemetryRecorder is the fire-and-forget telemetry collaborator.
// Failures here must never affect the caller's own return value.
type TelemetryRecorder interface {
	RecordEvent(event string, attrs map[string]any)
}
