package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/cmd/gateway/providers"
	"github.com/clipstream/streamgate/cmd/gateway/readiness"
	"github.com/clipstream/streamgate/common/logger"
)

// dedupeTTL bounds the webhook replay-suppression window. Providers
// redeliver on slow responses; past this window the conditional updates
// make a replay a harmless no-op anyway.
const dedupeTTL = 24 * time.Hour

// IngestResult reports what a webhook delivery changed
type IngestResult struct {
	VideoID string             `json:"video_id"`
	Status  models.VideoStatus `json:"status"`
	Applied bool               `json:"applied"`
}

// WebhookService ingests provider push notifications. Authentication
// runs before any parsing; a delivery that fails verification leaves
// every record untouched.
type WebhookService struct {
	registry   *providers.Registry
	reconciler *Reconciler
	markers    MarkerStore
	log        *logger.Logger
}

// NewWebhookService creates a webhook service
func NewWebhookService(registry *providers.Registry, reconciler *Reconciler, markers MarkerStore, log *logger.Logger) *WebhookService {
	return &WebhookService{
		registry:   registry,
		reconciler: reconciler,
		markers:    markers,
		log:        log,
	}
}

// Ingest authenticates, parses and applies one webhook delivery.
// Intermediate progress notifications are acknowledged without writing
// anything; only terminal decisions reach storage.
func (s *WebhookService) Ingest(ctx context.Context, providerName string, rawBody []byte, signatureHeader string) (*IngestResult, error) {
	client, err := s.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	if err := client.VerifyWebhook(rawBody, signatureHeader, time.Now()); err != nil {
		s.log.Warn("webhook verification failed", "provider", providerName, "error", err)
		return nil, err
	}

	video, err := client.ParseWebhook(rawBody)
	if err != nil {
		return nil, err
	}

	decision := readiness.Evaluate(video)
	if !decision.Ready && !decision.Failed {
		s.log.Info("webhook progress notification",
			"video_id", video.ID,
			"provider", providerName,
			"state", video.State,
			"pct_complete", video.PctComplete,
			"reason", decision.Reason,
		)
		return &IngestResult{VideoID: video.ID, Status: models.StatusPending}, nil
	}

	// Best-effort dedupe; the conditional updates stay correct without it.
	if fresh := s.firstDelivery(ctx, providerName, rawBody); !fresh {
		s.log.Info("duplicate webhook delivery ignored", "video_id", video.ID, "provider", providerName)
		return &IngestResult{VideoID: video.ID, Status: statusOf(decision)}, nil
	}

	applied, err := s.reconciler.Apply(ctx, video, decision)
	if err != nil {
		return nil, err
	}

	s.log.Info("webhook applied",
		"video_id", video.ID,
		"provider", providerName,
		"status", statusOf(decision),
		"applied", applied,
	)

	return &IngestResult{VideoID: video.ID, Status: statusOf(decision), Applied: applied}, nil
}

// firstDelivery claims a digest of the delivery body. Returns true when
// this body has not been seen, or when the marker store is unavailable.
func (s *WebhookService) firstDelivery(ctx context.Context, providerName string, rawBody []byte) bool {
	digest := sha256.Sum256(rawBody)
	key := "webhook_seen:" + providerName + ":" + hex.EncodeToString(digest[:])

	claimed, err := s.markers.SetNX(ctx, key, "1", dedupeTTL)
	if err != nil {
		s.log.Debug("webhook dedupe unavailable", "provider", providerName, "error", err)
		return true
	}
	return claimed
}

func statusOf(decision readiness.Decision) models.VideoStatus {
	if decision.Ready {
		return models.StatusReady
	}
	if decision.Failed {
		return models.StatusFailed
	}
	return models.StatusPending
}
