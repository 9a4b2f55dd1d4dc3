package models

import (
	"github.com/google/uuid"
)

// VideoStatus represents the lifecycle state of an uploaded video
type VideoStatus string

const (
	// StatusPending means the provider is still encoding.
	StatusPending VideoStatus = "pending"
	// StatusReady means the playback manifest is fetchable by all clients.
	// Terminal: a ready record is never regressed.
	StatusReady VideoStatus = "ready"
	// StatusFailed means the provider reported a terminal encoding error.
	StatusFailed VideoStatus = "failed"
)

// RecordKind identifies which content table owns a record
type RecordKind string

const (
	RecordKindPost    RecordKind = "post"
	RecordKindComment RecordKind = "comment"
)

// VideoRecord is the embedded video document stored inside a content
// record's metadata blob under the "video" key. It is created at upload
// time with status=pending and mutated only through the content store's
// patch path.
type VideoRecord struct {
	VideoID      string      `json:"video_id"`
	Provider     string      `json:"provider"`
	Status       VideoStatus `json:"status"`
	HTML         string      `json:"html,omitempty"`
	ThumbnailURL string      `json:"thumbnail_url,omitempty"`
	ManifestURL  string      `json:"manifest_url,omitempty"`
	ErrorCode    string      `json:"error_code,omitempty"`
	ErrorText    string      `json:"error_text,omitempty"`
}

// ContentHandle identifies a content record (post or comment) that
// embeds a VideoRecord. The content rows themselves are owned by the
// surrounding CMS; this service only locates and patches them.
type ContentHandle struct {
	Kind RecordKind
	ID   uuid.UUID
}

// VideoMutation is a partial update applied to an embedded VideoRecord.
// Nil fields are left untouched; the content store turns this into a
// JSON merge patch against the metadata document.
type VideoMutation struct {
	VideoID      *string      `json:"video_id,omitempty"`
	Status       *VideoStatus `json:"status,omitempty"`
	HTML         *string      `json:"html,omitempty"`
	ThumbnailURL *string      `json:"thumbnail_url,omitempty"`
	ManifestURL  *string      `json:"manifest_url,omitempty"`
	ErrorCode    *string      `json:"error_code,omitempty"`
	ErrorText    *string      `json:"error_text,omitempty"`
}

// VideoStatusView is the polling response shape
type VideoStatusView struct {
	Status        VideoStatus `json:"status"`
	ReadyToStream bool        `json:"readyToStream"`
	HTML          string      `json:"html,omitempty"`
	ThumbnailURL  string      `json:"thumbnail_url,omitempty"`
}

// IndexEntry maps a provider video id directly to its owning content
// record, replacing the blob substring scan with a keyed lookup. Record
// fields are backfilled the first time the scan path locates the owner,
// since the owning post/comment may not exist yet at upload time.
type IndexEntry struct {
	VideoID    string
	Provider   string
	RecordKind *RecordKind
	RecordID   *uuid.UUID
	Status     VideoStatus
}

func strPtr(s string) *string {
	return &s
}

func statusPtr(s VideoStatus) *VideoStatus {
	return &s
}

// ReadyMutation builds the mutation for the pending->ready transition
func ReadyMutation(html, thumbnailURL, manifestURL string) VideoMutation {
	m := VideoMutation{Status: statusPtr(StatusReady)}
	if html != "" {
		m.HTML = strPtr(html)
	}
	if thumbnailURL != "" {
		m.ThumbnailURL = strPtr(thumbnailURL)
	}
	if manifestURL != "" {
		m.ManifestURL = strPtr(manifestURL)
	}
	return m
}

// FailedMutation builds the mutation for the pending->failed transition,
// capturing the provider's error code and text verbatim
func FailedMutation(errorCode, errorText string) VideoMutation {
	return VideoMutation{
		Status:    statusPtr(StatusFailed),
		ErrorCode: strPtr(errorCode),
		ErrorText: strPtr(errorText),
	}
}
