package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/cmd/gateway/providers"
	"github.com/clipstream/streamgate/cmd/gateway/readiness"
	"github.com/clipstream/streamgate/common/logger"
	"github.com/clipstream/streamgate/common/queue"
)

func uploadStartKey(videoID string) string {
	return fmt.Sprintf("upload_start:%s", videoID)
}

// Reconciler turns readiness decisions into stored state. Webhook
// ingestion and the poll-fallback path both apply their decisions
// through here, so the two racing channels cannot diverge in how they
// mutate records.
type Reconciler struct {
	content   ContentStore
	index     VideoIndex
	markers   MarkerStore
	events    EventPublisher
	telemetry TelemetryRecorder
	log       *logger.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(content ContentStore, index VideoIndex, markers MarkerStore, events EventPublisher, telemetry TelemetryRecorder, log *logger.Logger) *Reconciler {
	return &Reconciler{
		content:   content,
		index:     index,
		markers:   markers,
		events:    events,
		telemetry: telemetry,
		log:       log,
	}
}

// Locate finds the content records embedding a video: keyed index
// lookup first, blob scan as fallback, backfilling the index when the
// scan succeeds.
func (r *Reconciler) Locate(ctx context.Context, videoID string) ([]models.ContentHandle, error) {
	entry, err := r.index.Lookup(ctx, videoID)
	if err == nil && entry.RecordKind != nil && entry.RecordID != nil {
		return []models.ContentHandle{{Kind: *entry.RecordKind, ID: *entry.RecordID}}, nil
	}

	handles, err := r.content.FindByVideoID(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if len(handles) > 0 {
		if err := r.index.Backfill(ctx, videoID, handles[0]); err != nil {
			r.log.Warn("video index backfill failed", "video_id", videoID, "error", err)
		}
	}

	return handles, nil
}

// Apply persists a readiness decision. A decision that is neither ready
// nor failed is the expected intermediate state and applies nothing.
// Returns true when any stored state changed.
func (r *Reconciler) Apply(ctx context.Context, video *providers.Video, decision readiness.Decision) (bool, error) {
	if !decision.Ready && !decision.Failed {
		return false, nil
	}

	var mutation models.VideoMutation
	var status models.VideoStatus
	if decision.Ready {
		status = models.StatusReady
		mutation = models.ReadyMutation(video.EmbedHTML, video.ThumbnailURL, video.ManifestURL)
	} else {
		status = models.StatusFailed
		mutation = models.FailedMutation(decision.ErrorCode, decision.ErrorText)
	}
	// Reassert the payload's id so an embedded record whose id drifted
	// from the index mapping is refreshed along with the status.
	mutation.VideoID = &video.ID

	handles, err := r.Locate(ctx, video.ID)
	if err != nil {
		return false, fmt.Errorf("locate content records for %s: %w", video.ID, err)
	}

	applied := false
	for _, handle := range handles {
		patched, err := r.content.Patch(ctx, handle, mutation)
		if err != nil {
			return applied, fmt.Errorf("patch %s %s: %w", handle.Kind, handle.ID, err)
		}
		applied = applied || patched
	}

	// The index is advanced even when no content record exists yet; it
	// is the record of truth the query path consults first.
	indexChanged, err := r.index.UpdateStatus(ctx, video.ID, status)
	if err != nil {
		r.log.Warn("video index status update failed", "video_id", video.ID, "error", err)
	}
	applied = applied || indexChanged

	if applied {
		r.announce(ctx, video, status)
	}

	return applied, nil
}

// announce publishes the lifecycle event and records telemetry.
// Both are fire-and-forget.
func (r *Reconciler) announce(ctx context.Context, video *providers.Video, status models.VideoStatus) {
	attrs := map[string]any{
		"video_id": video.ID,
		"provider": video.Provider,
		"status":   string(status),
	}

	topic := queue.TopicVideoFailed
	event := "video_failed"
	if status == models.StatusReady {
		topic = queue.TopicVideoReady
		event = "video_ready"

		if seconds, ok := r.secondsSinceUpload(ctx, video.ID); ok {
			attrs["seconds_to_ready"] = seconds
		}
	} else {
		attrs["error_code"] = video.ErrorCode
	}

	payload, err := json.Marshal(attrs)
	if err == nil {
		if err := r.events.Publish(ctx, topic, video.ID, payload); err != nil {
			r.log.Warn("event publish failed", "topic", topic, "video_id", video.ID, "error", err)
		}
	}

	r.telemetry.RecordEvent(event, attrs)
}

// secondsSinceUpload consumes the best-effort upload-start marker.
// Marker loss only loses the metric, never correctness.
func (r *Reconciler) secondsSinceUpload(ctx context.Context, videoID string) (int64, bool) {
	key := uploadStartKey(videoID)

	value, err := r.markers.Get(ctx, key)
	if err != nil {
		return 0, false
	}

	startUnix, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}

	if err := r.markers.Delete(ctx, key); err != nil {
		r.log.Debug("upload start marker cleanup failed", "video_id", videoID, "error", err)
	}

	return int64(time.Since(time.Unix(startUnix, 0)).Seconds()), true
}
