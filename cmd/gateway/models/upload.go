package models

// UploadContext distinguishes where the uploaded video will be embedded
type UploadContext string

const (
	UploadContextPost    UploadContext = "post"
	UploadContextComment UploadContext = "comment"
)

// UploadMeta carries the optional fields of an upload request
type UploadMeta struct {
	Title   string
	Context UploadContext
}

// UploadResult is the canonical normalized shape returned to the client
// regardless of which provider handled the upload
type UploadResult struct {
	VideoID      string      `json:"video_id"`
	Provider     string      `json:"provider"`
	Status       VideoStatus `json:"status"`
	ThumbnailURL string      `json:"thumbnail_url,omitempty"`
	PlayerURL    string      `json:"player_url,omitempty"`
	HTML         string      `json:"html,omitempty"`
	Ready        bool        `json:"ready"`
}
