package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/cmd/gateway/providers"
	"github.com/clipstream/streamgate/cmd/gateway/readiness"
	"github.com/clipstream/streamgate/common/config"
	"github.com/clipstream/streamgate/common/logger"
	"github.com/clipstream/streamgate/common/queue"
)

// sniffLen is how many leading bytes content-type detection reads.
const sniffLen = 512

// UploadService validates incoming files and dispatches them to the
// active provider. Validation runs strictly before any provider call so
// a rejected file never consumes provider quota.
type UploadService struct {
	client    providers.Client
	policy    *UploadPolicy
	index     VideoIndex
	markers   MarkerStore
	events    EventPublisher
	telemetry TelemetryRecorder
	cfg       config.UploadConfig
	log       *logger.Logger
}

// NewUploadService creates an upload service bound to the active provider
func NewUploadService(client providers.Client, policy *UploadPolicy, index VideoIndex, markers MarkerStore, events EventPublisher, telemetry TelemetryRecorder, cfg config.UploadConfig, log *logger.Logger) *UploadService {
	return &UploadService{
		client:    client,
		policy:    policy,
		index:     index,
		markers:   markers,
		events:    events,
		telemetry: telemetry,
		cfg:       cfg,
		log:       log,
	}
}

// Upload runs the validation chain, uploads the file and records the
// new video in the index. The returned result is already normalized;
// most providers answer pending here and confirm readiness later via
// webhook or polling.
func (s *UploadService) Upload(ctx context.Context, file io.ReadSeeker, size int64, filename string, meta models.UploadMeta) (*models.UploadResult, error) {
	ext, err := s.validate(file, size, filename)
	if err != nil {
		return nil, err
	}

	if err := s.policy.Admit(filename, ext, size); err != nil {
		return nil, err
	}

	if err := s.client.ValidateCredentials(); err != nil {
		return nil, err
	}

	title := meta.Title
	if title == "" {
		title = filename
	}

	video, err := s.client.Upload(ctx, file, size, filename, title)
	if err != nil {
		return nil, fmt.Errorf("upload to %s: %w", s.client.Name(), err)
	}

	decision := readiness.Evaluate(video)
	status := models.StatusPending
	if decision.Ready {
		status = models.StatusReady
	}

	// Best-effort marker for the time-to-ready metric.
	startKey := uploadStartKey(video.ID)
	if err := s.markers.SetWithExpiry(ctx, startKey, strconv.FormatInt(time.Now().Unix(), 10), s.cfg.StartMarkerTTL); err != nil {
		s.log.Debug("upload start marker write failed", "video_id", video.ID, "error", err)
	}

	entry := &models.IndexEntry{
		VideoID:  video.ID,
		Provider: video.Provider,
		Status:   status,
	}
	if err := s.index.Register(ctx, entry); err != nil {
		s.log.Warn("video index registration failed", "video_id", video.ID, "error", err)
	}

	s.announce(ctx, video, meta, size)

	result := &models.UploadResult{
		VideoID:      video.ID,
		Provider:     video.Provider,
		Status:       status,
		ThumbnailURL: video.ThumbnailURL,
		PlayerURL:    video.PlayerURL,
		Ready:        decision.Ready,
	}
	if decision.Ready {
		result.HTML = video.EmbedHTML
	}

	s.log.Info("video uploaded",
		"video_id", video.ID,
		"provider", video.Provider,
		"status", status,
		"size_bytes", size,
	)

	return result, nil
}

// validate runs the static checks in order: non-empty, size cap,
// extension allow-list, then content sniffing. Returns the lower-cased
// extension without the dot.
func (s *UploadService) validate(file io.ReadSeeker, size int64, filename string) (string, error) {
	if filename == "" || size <= 0 {
		return "", models.NewError(models.CodeInvalidFile, "empty file")
	}

	if size > s.cfg.MaxBytes {
		return "", models.NewError(models.CodeFileTooLarge, "file is %d bytes, limit is %d", size, s.cfg.MaxBytes)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !s.extensionAllowed(ext) {
		return "", models.NewError(models.CodeInvalidFormat, "extension %q is not an accepted video format", ext)
	}

	mimeType, err := sniffContentType(file)
	if err != nil {
		return "", models.WrapError(models.CodeInvalidFile, err, "unable to read file")
	}
	if !mimeAllowed(mimeType) {
		return "", models.NewError(models.CodeInvalidMIMEType, "file content looks like %s, not a video", mimeType)
	}

	return ext, nil
}

func (s *UploadService) extensionAllowed(ext string) bool {
	for _, allowed := range s.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// sniffContentType detects the content type from the leading bytes and
// rewinds the reader so the provider upload sees the whole file.
func sniffContentType(file io.ReadSeeker) (string, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	return http.DetectContentType(buf[:n]), nil
}

// mimeAllowed accepts video types plus octet-stream, since the sniffer
// does not recognize every video container (notably mkv and some mov).
func mimeAllowed(mimeType string) bool {
	if strings.HasPrefix(mimeType, "video/") {
		return true
	}
	return mimeType == "application/octet-stream"
}

func (s *UploadService) announce(ctx context.Context, video *providers.Video, meta models.UploadMeta, size int64) {
	attrs := map[string]any{
		"video_id":   video.ID,
		"provider":   video.Provider,
		"size_bytes": size,
	}
	if meta.Context != "" {
		attrs["context"] = string(meta.Context)
	}

	payload, err := json.Marshal(attrs)
	if err == nil {
		if err := s.events.Publish(ctx, queue.TopicVideoUploaded, video.ID, payload); err != nil {
			s.log.Warn("event publish failed", "topic", queue.TopicVideoUploaded, "video_id", video.ID, "error", err)
		}
	}

	s.telemetry.RecordEvent("video_uploaded", attrs)
}
