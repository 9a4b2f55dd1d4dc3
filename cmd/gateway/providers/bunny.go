package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/common/config"
	"github.com/clipstream/streamgate/common/logger"
)

const (
	// ProviderBunny is the registry name for Bunny Stream.
	ProviderBunny = "bunny"

	bunnyAPIBase = "https://video.bunnycdn.com/library"
)

// Bunny video status enum as reported by the API and webhooks
const (
	bunnyStatusCreated      = 0
	bunnyStatusUploaded     = 1
	bunnyStatusProcessing   = 2
	bunnyStatusTranscoding  = 3
	bunnyStatusFinished     = 4
	bunnyStatusError        = 5
	bunnyStatusUploadFailed = 6
)

// BunnyClient talks to the Bunny Stream video API
type BunnyClient struct {
	cfg        config.BunnyConfig
	infoHTTP   *http.Client
	uploadHTTP *http.Client
	log        *logger.Logger
}

// NewBunnyClient creates a Bunny Stream client
func NewBunnyClient(cfg config.BunnyConfig, log *logger.Logger) *BunnyClient {
	return &BunnyClient{
		cfg:        cfg,
		infoHTTP:   &http.Client{Timeout: infoTimeout},
		uploadHTTP: &http.Client{Timeout: uploadTimeout},
		log:        log,
	}
}

// Name returns the provider identifier
func (b *BunnyClient) Name() string {
	return ProviderBunny
}

// ValidateCredentials checks the configured credentials are present
func (b *BunnyClient) ValidateCredentials() error {
	if b.cfg.LibraryID == "" || b.cfg.APIKey == "" {
		return models.NewError(models.CodeMissingCredentials, "bunny library id and api key are required")
	}
	return nil
}

// bunnyVideo is the video object returned by the library API
type bunnyVideo struct {
	GUID              string  `json:"guid"`
	Title             string  `json:"title"`
	Status            int     `json:"status"`
	EncodeProgress    float64 `json:"encodeProgress"`
	ThumbnailFileName string  `json:"thumbnailFileName"`
	Length            int     `json:"length"`
}

// bunnyWebhook is the unsigned webhook body
type bunnyWebhook struct {
	VideoLibraryID json.Number `json:"VideoLibraryId"`
	VideoGUID      string      `json:"VideoGuid"`
	Status         int         `json:"Status"`
}

// Upload creates the video object then streams the file body to it.
// Bunny splits upload into create + upload; both must succeed.
func (b *BunnyClient) Upload(ctx context.Context, r io.Reader, size int64, filename, title string) (*Video, error) {
	if err := b.ValidateCredentials(); err != nil {
		return nil, err
	}

	if title == "" {
		title = filename
	}

	createBody, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}

	createURL := fmt.Sprintf("%s/%s/videos", bunnyAPIBase, b.cfg.LibraryID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, createURL, bytes.NewReader(createBody))
	if err != nil {
		return nil, fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("AccessKey", b.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	created, err := b.do(b.infoHTTP, req)
	if err != nil {
		return nil, err
	}

	uploadURL := fmt.Sprintf("%s/%s/videos/%s", bunnyAPIBase, b.cfg.LibraryID, created.GUID)
	upReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, r)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	upReq.Header.Set("AccessKey", b.cfg.APIKey)
	upReq.Header.Set("Content-Type", "application/octet-stream")
	upReq.ContentLength = size

	if _, err := b.do(b.uploadHTTP, upReq); err != nil {
		return nil, err
	}

	b.log.Info("bunny upload accepted", "video_id", created.GUID, "size", size, "title", title)

	// The freshly uploaded video is pending regardless of what the
	// create response claims.
	created.Status = bunnyStatusUploaded
	created.EncodeProgress = 0
	return b.normalize(created), nil
}

// GetVideoInfo fetches the current state of a video
func (b *BunnyClient) GetVideoInfo(ctx context.Context, videoID string) (*Video, error) {
	if err := b.ValidateCredentials(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/videos/%s", bunnyAPIBase, b.cfg.LibraryID, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build info request: %w", err)
	}
	req.Header.Set("AccessKey", b.cfg.APIKey)

	v, err := b.do(b.infoHTTP, req)
	if err != nil {
		return nil, err
	}

	return b.normalize(v), nil
}

// DeleteVideo removes a video from the library
func (b *BunnyClient) DeleteVideo(ctx context.Context, videoID string) error {
	if err := b.ValidateCredentials(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/videos/%s", bunnyAPIBase, b.cfg.LibraryID, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("AccessKey", b.cfg.APIKey)

	_, err = b.do(b.infoHTTP, req)
	return err
}

// CreateWebhook is a no-op: Bunny webhook URLs are configured per
// library through its dashboard or management API, not per upload.
func (b *BunnyClient) CreateWebhook(ctx context.Context, notifyURL string) error {
	b.log.Debug("bunny webhook registration skipped, configured at library level", "url", notifyURL)
	return nil
}

// VerifyWebhook always succeeds: Bunny has no webhook signing scheme.
// Known trust boundary gap; mitigate with an IP allow-list upstream.
func (b *BunnyClient) VerifyWebhook(rawBody []byte, signatureHeader string, now time.Time) error {
	return nil
}

// ParseWebhook normalizes the unsigned webhook body. The webhook only
// carries the status enum, so progress and playback fields are derived.
func (b *BunnyClient) ParseWebhook(rawBody []byte) (*Video, error) {
	var w bunnyWebhook
	if err := json.Unmarshal(rawBody, &w); err != nil {
		return nil, models.WrapError(models.CodeInvalidPayload, err, "webhook body is not valid json")
	}
	if w.VideoGUID == "" {
		return nil, models.NewError(models.CodeInvalidPayload, "webhook body has no video guid")
	}

	v := &bunnyVideo{
		GUID:   w.VideoGUID,
		Status: w.Status,
	}
	// A finished transcode means every rendition is done.
	if w.Status == bunnyStatusFinished {
		v.EncodeProgress = 100
	}
	return b.normalize(v), nil
}

// do executes a request and decodes the video object when present
func (b *BunnyClient) do(client *http.Client, req *http.Request) (*bunnyVideo, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, models.WrapError(models.CodeProviderUnavailable, err, "bunny request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.NewError(models.CodeVideoNotFound, "bunny: video not found")
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, models.NewError(models.CodeMissingCredentials, "bunny: access key rejected")
	}
	if resp.StatusCode >= 500 {
		return nil, models.NewError(models.CodeProviderUnavailable, "bunny: server error %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, models.NewError(fmt.Sprintf("provider:bunny:%d", resp.StatusCode), "bunny request rejected")
	}

	var v bunnyVideo
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		// Some endpoints (raw upload PUT) answer with a bare result
		// object that has no video fields; that is fine.
		return &bunnyVideo{}, nil
	}

	return &v, nil
}

// normalize converts the provider payload into the shared Video shape
func (b *BunnyClient) normalize(v *bunnyVideo) *Video {
	out := &Video{
		ID:          v.GUID,
		Provider:    ProviderBunny,
		State:       bunnyStateName(v.Status),
		PctComplete: v.EncodeProgress,
		PlayerURL:   fmt.Sprintf("https://iframe.mediadelivery.net/play/%s/%s", b.cfg.LibraryID, v.GUID),
		EmbedHTML:   b.embedHTML(v.GUID),
	}

	if b.cfg.CDNHost != "" {
		out.ManifestURL = fmt.Sprintf("https://%s/%s/playlist.m3u8", b.cfg.CDNHost, v.GUID)
		if v.ThumbnailFileName != "" {
			out.ThumbnailURL = fmt.Sprintf("https://%s/%s/%s", b.cfg.CDNHost, v.GUID, v.ThumbnailFileName)
		}
	}

	switch v.Status {
	case bunnyStatusFinished:
		out.ReadyToStream = true
	case bunnyStatusError:
		out.ErrorCode = "ENCODING_FAILED"
		out.ErrorText = "bunny reported a transcoding error"
	case bunnyStatusUploadFailed:
		out.ErrorCode = "UPLOAD_FAILED"
		out.ErrorText = "bunny reported an upload failure"
	}

	return out
}

func (b *BunnyClient) embedHTML(guid string) string {
	return fmt.Sprintf(
		`<iframe src="https://iframe.mediadelivery.net/embed/%s/%s" style="border: none;" height="720" width="1280" allow="accelerometer; gyroscope; autoplay; encrypted-media; picture-in-picture;" allowfullscreen="true"></iframe>`,
		b.cfg.LibraryID, guid,
	)
}

func bunnyStateName(status int) string {
	switch status {
	case bunnyStatusCreated:
		return "created"
	case bunnyStatusUploaded:
		return "uploaded"
	case bunnyStatusProcessing:
		return "processing"
	case bunnyStatusTranscoding:
		return "transcoding"
	case bunnyStatusFinished:
		return "finished"
	case bunnyStatusError:
		return "error"
	case bunnyStatusUploadFailed:
		return "upload_failed"
	default:
		return fmt.Sprintf("unknown_%d", status)
	}
}
