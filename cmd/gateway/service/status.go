package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/cmd/gateway/providers"
	"github.com/clipstream/streamgate/cmd/gateway/readiness"
	"github.com/clipstream/streamgate/common/logger"
)

// StatusCache damps repeated provider lookups when many pollers ask
// about the same pending video
type StatusCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

var errNoLocalRecord = errors.New("no local video record")

// StatusService answers status queries database-first: a video the
// store already knows is ready is served without any provider call, so
// every poller sees the same answer and provider rate limits are spared.
// Unresolved videos fall back to a provider poll whose terminal
// decisions are written through the same reconciler as webhooks.
type StatusService struct {
	content    ContentStore
	index      VideoIndex
	registry   *providers.Registry
	reconciler *Reconciler
	markers    MarkerStore
	cache      StatusCache
	remoteTTL  time.Duration
	staleAfter time.Duration
	log        *logger.Logger
}

// NewStatusService creates a status service
func NewStatusService(content ContentStore, index VideoIndex, registry *providers.Registry, reconciler *Reconciler, markers MarkerStore, cache StatusCache, remoteTTL, staleAfter time.Duration, log *logger.Logger) *StatusService {
	return &StatusService{
		content:    content,
		index:      index,
		registry:   registry,
		reconciler: reconciler,
		markers:    markers,
		cache:      cache,
		remoteTTL:  remoteTTL,
		staleAfter: staleAfter,
		log:        log,
	}
}

// GetStatus resolves the current status of a video. providerName may be
// empty when the caller does not know it; the stored record wins either
// way. Remote not-found and server errors surface as pending so client
// polling loops keep going through transient provider trouble.
func (s *StatusService) GetStatus(ctx context.Context, videoID, providerName string) (*models.VideoStatusView, error) {
	record, resolvedProvider, err := s.localRecord(ctx, videoID)
	if err != nil && !errors.Is(err, errNoLocalRecord) {
		return nil, err
	}

	if record != nil && record.Status == models.StatusReady {
		return &models.VideoStatusView{
			Status:        models.StatusReady,
			ReadyToStream: true,
			HTML:          record.HTML,
			ThumbnailURL:  record.ThumbnailURL,
		}, nil
	}

	if providerName == "" {
		providerName = resolvedProvider
	}
	if providerName == "" {
		return nil, models.NewError(models.CodeVideoNotFound, "video %s is not known", videoID)
	}

	client, err := s.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	video, err := s.remoteVideo(ctx, client, videoID)
	if err != nil {
		return s.remoteFailureView(ctx, videoID, providerName, record, err)
	}

	decision := readiness.Evaluate(video)
	if decision.Ready || decision.Failed {
		if _, err := s.reconciler.Apply(ctx, video, decision); err != nil {
			s.log.Warn("status write-through failed", "video_id", videoID, "error", err)
		}
	}

	view := &models.VideoStatusView{
		Status:       statusOf(decision),
		ThumbnailURL: video.ThumbnailURL,
	}
	if decision.Ready {
		view.ReadyToStream = true
		view.HTML = video.EmbedHTML
	}
	return view, nil
}

// ConfirmReady handles the client-side confirmation path: a player that
// successfully fetched the manifest may promote the record to ready
// before any webhook lands. No other transition is accepted through
// here, so the endpoint cannot be used to force arbitrary states.
func (s *StatusService) ConfirmReady(ctx context.Context, videoID, providerName string, target models.VideoStatus) (*models.VideoStatusView, error) {
	if target != models.StatusReady {
		return nil, models.NewError(models.CodeInvalidTransition, "only a transition to %q is accepted, got %q", models.StatusReady, target)
	}

	// Confirmation needs a video the store already knows; a supplied
	// provider name alone cannot conjure a record into existence.
	_, resolvedProvider, err := s.localRecord(ctx, videoID)
	if err != nil {
		if errors.Is(err, errNoLocalRecord) {
			return nil, models.NewError(models.CodeVideoNotFound, "video %s is not known", videoID)
		}
		return nil, err
	}
	if providerName == "" {
		providerName = resolvedProvider
	}

	video := &providers.Video{ID: videoID, Provider: providerName}
	if client, err := s.registry.Get(providerName); err == nil {
		// Best effort: fill playback fields from the provider so the
		// record carries embed HTML and thumbnail, not just the status.
		if remote, err := client.GetVideoInfo(ctx, videoID); err == nil {
			video = remote
		}
	}

	decision := readiness.Decision{Ready: true, Reason: "client confirmed manifest playback"}
	if _, err := s.reconciler.Apply(ctx, video, decision); err != nil {
		return nil, err
	}

	return &models.VideoStatusView{
		Status:        models.StatusReady,
		ReadyToStream: true,
		HTML:          video.EmbedHTML,
		ThumbnailURL:  video.ThumbnailURL,
	}, nil
}

// localRecord finds the stored view of a video. Returns the embedded
// record when a content row owns it, and the provider name from either
// the record or the index.
func (s *StatusService) localRecord(ctx context.Context, videoID string) (*models.VideoRecord, string, error) {
	handles, err := s.reconciler.Locate(ctx, videoID)
	if err != nil {
		return nil, "", err
	}

	provider := ""
	if entry, err := s.index.Lookup(ctx, videoID); err == nil {
		provider = entry.Provider
	}

	if len(handles) == 0 {
		if provider == "" {
			return nil, "", errNoLocalRecord
		}
		return nil, provider, nil
	}

	record, err := s.content.GetVideo(ctx, handles[0])
	if err != nil {
		return nil, provider, nil
	}
	if record.Provider != "" {
		provider = record.Provider
	}
	return record, provider, nil
}

// remoteVideo polls the provider with short-lived damping so a burst of
// pollers asking about the same video produces one outbound call.
func (s *StatusService) remoteVideo(ctx context.Context, client providers.Client, videoID string) (*providers.Video, error) {
	key := "remote_status:" + client.Name() + ":" + videoID

	if s.cache != nil {
		if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
			var video providers.Video
			if err := json.Unmarshal(raw, &video); err == nil {
				return &video, nil
			}
		}
	}

	video, err := client.GetVideoInfo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(video); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.remoteTTL); err != nil {
				s.log.Debug("remote status cache write failed", "video_id", videoID, "error", err)
			}
		}
	}

	return video, nil
}

// remoteFailureView maps provider poll failures. Not-found and server
// errors mean pending, not failure: moments after upload the provider
// may not know the video yet. The one exception is a not-found long
// past the upload start marker, which marks the upload stale.
func (s *StatusService) remoteFailureView(ctx context.Context, videoID, providerName string, record *models.VideoRecord, remoteErr error) (*models.VideoStatusView, error) {
	switch {
	case providers.IsRemoteNotFound(remoteErr):
		if s.uploadIsStale(ctx, videoID) {
			return s.markStale(ctx, videoID, providerName)
		}
	case providers.IsRemoteUnavailable(remoteErr):
	default:
		return nil, remoteErr
	}

	s.log.Info("provider status unavailable, reporting pending",
		"video_id", videoID,
		"provider", providerName,
		"error", remoteErr,
	)

	view := &models.VideoStatusView{Status: models.StatusPending}
	if record != nil {
		view.ThumbnailURL = record.ThumbnailURL
	}
	return view, nil
}

// uploadIsStale reports whether the upload start marker exists and is
// older than the staleness timeout. A missing marker keeps the video
// pending; losing the marker must never fail an upload.
func (s *StatusService) uploadIsStale(ctx context.Context, videoID string) bool {
	value, err := s.markers.Get(ctx, uploadStartKey(videoID))
	if err != nil {
		return false
	}
	startUnix, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return false
	}
	return time.Since(time.Unix(startUnix, 0)) > s.staleAfter
}

func (s *StatusService) markStale(ctx context.Context, videoID, providerName string) (*models.VideoStatusView, error) {
	video := &providers.Video{ID: videoID, Provider: providerName}
	decision := readiness.Decision{
		Failed:    true,
		Reason:    "upload never confirmed within staleness timeout",
		ErrorCode: "stale_upload",
		ErrorText: "provider has no record of this video and the upload is past the staleness timeout",
	}

	if _, err := s.reconciler.Apply(ctx, video, decision); err != nil {
		s.log.Warn("stale upload write failed", "video_id", videoID, "error", err)
	}

	s.log.Warn("upload marked stale", "video_id", videoID, "provider", providerName)

	return &models.VideoStatusView{Status: models.StatusFailed}, nil
}
