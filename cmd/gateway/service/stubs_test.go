package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/cmd/gateway/providers"
	"github.com/clipstream/streamgate/common/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error", "json")
}

var errStubNotFound = errors.New("not found")

// stubContentStore keeps records in memory and enforces the same
// ready-is-terminal guard the SQL path does
type stubContentStore struct {
	mu      sync.Mutex
	handles map[string][]models.ContentHandle
	records map[uuid.UUID]*models.VideoRecord
	patches int
}

func newStubContentStore() *stubContentStore {
	return &stubContentStore{
		handles: make(map[string][]models.ContentHandle),
		records: make(map[uuid.UUID]*models.VideoRecord),
	}
}

func (s *stubContentStore) add(videoID string, record *models.VideoRecord) models.ContentHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle := models.ContentHandle{Kind: models.RecordKindPost, ID: uuid.New()}
	s.handles[videoID] = append(s.handles[videoID], handle)
	s.records[handle.ID] = record
	return handle
}

func (s *stubContentStore) FindByVideoID(ctx context.Context, videoID string) ([]models.ContentHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[videoID], nil
}

func (s *stubContentStore) GetVideo(ctx context.Context, handle models.ContentHandle) (*models.VideoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[handle.ID]
	if !ok {
		return nil, errStubNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *stubContentStore) Patch(ctx context.Context, handle models.ContentHandle, mutation models.VideoMutation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[handle.ID]
	if !ok {
		return false, errStubNotFound
	}
	if record.Status == models.StatusReady {
		return false, nil
	}

	s.patches++
	if mutation.VideoID != nil {
		record.VideoID = *mutation.VideoID
	}
	if mutation.Status != nil {
		record.Status = *mutation.Status
	}
	if mutation.HTML != nil {
		record.HTML = *mutation.HTML
	}
	if mutation.ThumbnailURL != nil {
		record.ThumbnailURL = *mutation.ThumbnailURL
	}
	if mutation.ManifestURL != nil {
		record.ManifestURL = *mutation.ManifestURL
	}
	if mutation.ErrorCode != nil {
		record.ErrorCode = *mutation.ErrorCode
	}
	if mutation.ErrorText != nil {
		record.ErrorText = *mutation.ErrorText
	}
	return true, nil
}

// stubIndex is an in-memory VideoIndex with the ready-guard on status
// updates
type stubIndex struct {
	mu      sync.Mutex
	entries map[string]*models.IndexEntry
}

func newStubIndex() *stubIndex {
	return &stubIndex{entries: make(map[string]*models.IndexEntry)}
}

func (s *stubIndex) Register(ctx context.Context, entry *models.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	s.entries[entry.VideoID] = &copied
	return nil
}

func (s *stubIndex) Lookup(ctx context.Context, videoID string) (*models.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[videoID]
	if !ok {
		return nil, errStubNotFound
	}
	copied := *entry
	return &copied, nil
}

func (s *stubIndex) Backfill(ctx context.Context, videoID string, handle models.ContentHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[videoID]
	if !ok {
		entry = &models.IndexEntry{VideoID: videoID, Status: models.StatusPending}
		s.entries[videoID] = entry
	}
	kind := handle.Kind
	id := handle.ID
	entry.RecordKind = &kind
	entry.RecordID = &id
	return nil
}

func (s *stubIndex) UpdateStatus(ctx context.Context, videoID string, status models.VideoStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[videoID]
	if !ok {
		return false, nil
	}
	if entry.Status == models.StatusReady {
		return false, nil
	}
	entry.Status = status
	return true, nil
}

// stubMarkers is an in-memory MarkerStore. Expiries are recorded but
// not enforced; tests manipulate values directly where age matters.
type stubMarkers struct {
	mu     sync.Mutex
	values map[string]string
	fail   bool
}

func newStubMarkers() *stubMarkers {
	return &stubMarkers{values: make(map[string]string)}
}

func (s *stubMarkers) SetWithExpiry(ctx context.Context, key, value string, expiry time.Duration) error {
	if s.fail {
		return errors.New("marker store down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *stubMarkers) Get(ctx context.Context, key string) (string, error) {
	if s.fail {
		return "", errors.New("marker store down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	if !ok {
		return "", errStubNotFound
	}
	return value, nil
}

func (s *stubMarkers) SetNX(ctx context.Context, key, value string, expiry time.Duration) (bool, error) {
	if s.fail {
		return false, errors.New("marker store down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.values[key]; exists {
		return false, nil
	}
	s.values[key] = value
	return true, nil
}

func (s *stubMarkers) Delete(ctx context.Context, keys ...string) error {
	if s.fail {
		return errors.New("marker store down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

// stubEvents records published lifecycle events
type stubEvents struct {
	mu     sync.Mutex
	topics []string
}

func (s *stubEvents) Publish(ctx context.Context, topic string, key string, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
	return nil
}

func (s *stubEvents) published() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.topics...)
}

// stubTelemetry records telemetry events
type stubTelemetry struct {
	mu     sync.Mutex
	events []string
}

func (s *stubTelemetry) RecordEvent(event string, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// stubCache is an in-memory StatusCache without TTL enforcement
type stubCache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newStubCache() *stubCache {
	return &stubCache{values: make(map[string][]byte)}
}

func (s *stubCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *stubCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// stubClient is a call-counting provider client
type stubClient struct {
	name string

	video     *providers.Video
	infoErr   error
	uploadErr error
	verifyErr error
	parseErr  error

	infoCalls   int
	uploadCalls int
}

func (c *stubClient) Name() string {
	if c.name == "" {
		return "stub"
	}
	return c.name
}

func (c *stubClient) ValidateCredentials() error { return nil }

func (c *stubClient) Upload(ctx context.Context, r io.Reader, size int64, filename, title string) (*providers.Video, error) {
	c.uploadCalls++
	if c.uploadErr != nil {
		return nil, c.uploadErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	return c.video, nil
}

func (c *stubClient) GetVideoInfo(ctx context.Context, videoID string) (*providers.Video, error) {
	c.infoCalls++
	if c.infoErr != nil {
		return nil, c.infoErr
	}
	return c.video, nil
}

func (c *stubClient) DeleteVideo(ctx context.Context, videoID string) error { return nil }

func (c *stubClient) CreateWebhook(ctx context.Context, notifyURL string) error { return nil }

func (c *stubClient) VerifyWebhook(rawBody []byte, signatureHeader string, now time.Time) error {
	return c.verifyErr
}

func (c *stubClient) ParseWebhook(rawBody []byte) (*providers.Video, error) {
	if c.parseErr != nil {
		return nil, c.parseErr
	}
	return c.video, nil
}
