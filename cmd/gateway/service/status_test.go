package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/cmd/gateway/providers"
)

type statusEnv struct {
	*reconcilerEnv
	client *stubClient
	cache  *stubCache
	svc    *StatusService
}

func newStatusEnv(client *stubClient) *statusEnv {
	env := &statusEnv{
		reconcilerEnv: newReconcilerEnv(),
		client:        client,
		cache:         newStubCache(),
	}
	registry := providers.NewRegistry(client)
	env.svc = NewStatusService(
		env.content,
		env.index,
		registry,
		env.rec,
		env.markers,
		env.cache,
		5*time.Second,
		24*time.Hour,
		testLogger(),
	)
	return env
}

func TestGetStatus_ReadyRecordNeverCallsProvider(t *testing.T) {
	client := &stubClient{video: readyVideo("vid-1")}
	env := newStatusEnv(client)
	env.content.add("vid-1", &models.VideoRecord{
		VideoID:      "vid-1",
		Provider:     "stub",
		Status:       models.StatusReady,
		HTML:         "<iframe></iframe>",
		ThumbnailURL: "https://example.com/thumb.jpg",
	})
	require.NoError(t, env.index.Register(context.Background(), &models.IndexEntry{VideoID: "vid-1", Provider: "stub", Status: models.StatusReady}))

	view, err := env.svc.GetStatus(context.Background(), "vid-1", "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusReady, view.Status)
	assert.True(t, view.ReadyToStream)
	assert.Equal(t, "<iframe></iframe>", view.HTML)
	assert.Zero(t, client.infoCalls, "ready records must be served without a provider call")
}

func TestGetStatus_PendingRecordPollsAndWritesThrough(t *testing.T) {
	client := &stubClient{video: readyVideo("vid-1")}
	env := newStatusEnv(client)
	handle := env.content.add("vid-1", &models.VideoRecord{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending})
	require.NoError(t, env.index.Register(context.Background(), &models.IndexEntry{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending}))

	view, err := env.svc.GetStatus(context.Background(), "vid-1", "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusReady, view.Status)
	assert.True(t, view.ReadyToStream)
	assert.Equal(t, 1, client.infoCalls)

	// The poll fallback persists its decision, so the next poller is
	// served from the store.
	record, err := env.content.GetVideo(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, record.Status)

	client.infoCalls = 0
	_, err = env.svc.GetStatus(context.Background(), "vid-1", "")
	require.NoError(t, err)
	assert.Zero(t, client.infoCalls)
}

func TestGetStatus_RemoteNotFoundIsPending(t *testing.T) {
	client := &stubClient{infoErr: models.NewError(models.CodeVideoNotFound, "stub: video not found")}
	env := newStatusEnv(client)
	env.content.add("vid-1", &models.VideoRecord{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending})
	require.NoError(t, env.index.Register(context.Background(), &models.IndexEntry{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending}))

	view, err := env.svc.GetStatus(context.Background(), "vid-1", "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, view.Status)
	assert.False(t, view.ReadyToStream)
}

func TestGetStatus_RemoteServerErrorIsPending(t *testing.T) {
	client := &stubClient{infoErr: models.NewError(models.CodeProviderUnavailable, "stub: server error 503")}
	env := newStatusEnv(client)
	env.content.add("vid-1", &models.VideoRecord{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending})
	require.NoError(t, env.index.Register(context.Background(), &models.IndexEntry{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending}))

	view, err := env.svc.GetStatus(context.Background(), "vid-1", "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, view.Status)
}

func TestGetStatus_IntermediateRemoteStaysPending(t *testing.T) {
	client := &stubClient{video: &providers.Video{
		ID:           "vid-1",
		Provider:     "stub",
		State:        "inprogress",
		PctComplete:  42,
		ThumbnailURL: "https://example.com/thumb.jpg",
	}}
	env := newStatusEnv(client)
	require.NoError(t, env.index.Register(context.Background(), &models.IndexEntry{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending}))

	view, err := env.svc.GetStatus(context.Background(), "vid-1", "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, view.Status)
	assert.Equal(t, "https://example.com/thumb.jpg", view.ThumbnailURL)
	assert.Zero(t, env.content.patches, "intermediate decisions must not write")
}

func TestGetStatus_DampsRepeatedPolls(t *testing.T) {
	client := &stubClient{video: &providers.Video{ID: "vid-1", Provider: "stub", State: "queued"}}
	env := newStatusEnv(client)
	require.NoError(t, env.index.Register(context.Background(), &models.IndexEntry{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending}))

	for i := 0; i < 5; i++ {
		_, err := env.svc.GetStatus(context.Background(), "vid-1", "")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, client.infoCalls, "burst polling must collapse into one provider call")
}

func TestGetStatus_UnknownVideo(t *testing.T) {
	env := newStatusEnv(&stubClient{})

	_, err := env.svc.GetStatus(context.Background(), "ghost", "")
	require.Error(t, err)
	assert.Equal(t, models.CodeVideoNotFound, models.CodeOf(err))
}

func TestGetStatus_StaleUploadMarkedFailed(t *testing.T) {
	client := &stubClient{infoErr: models.NewError(models.CodeVideoNotFound, "stub: video not found")}
	env := newStatusEnv(client)
	require.NoError(t, env.index.Register(context.Background(), &models.IndexEntry{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending}))

	// Upload start marker from 25 hours ago, past the 24h timeout.
	old := time.Now().Add(-25 * time.Hour).Unix()
	require.NoError(t, env.markers.SetWithExpiry(context.Background(), uploadStartKey("vid-1"), strconv.FormatInt(old, 10), time.Hour))

	view, err := env.svc.GetStatus(context.Background(), "vid-1", "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, view.Status)

	entry, err := env.index.Lookup(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, entry.Status)
}

func TestGetStatus_RecentUploadNotFoundStaysPending(t *testing.T) {
	client := &stubClient{infoErr: models.NewError(models.CodeVideoNotFound, "stub: video not found")}
	env := newStatusEnv(client)
	require.NoError(t, env.index.Register(context.Background(), &models.IndexEntry{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending}))

	fresh := time.Now().Add(-time.Minute).Unix()
	require.NoError(t, env.markers.SetWithExpiry(context.Background(), uploadStartKey("vid-1"), strconv.FormatInt(fresh, 10), time.Hour))

	view, err := env.svc.GetStatus(context.Background(), "vid-1", "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, view.Status)
}

func TestConfirmReady_OnlyReadyAccepted(t *testing.T) {
	env := newStatusEnv(&stubClient{video: readyVideo("vid-1")})
	env.content.add("vid-1", &models.VideoRecord{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending})

	for _, target := range []models.VideoStatus{models.StatusPending, models.StatusFailed, "deleted", ""} {
		_, err := env.svc.ConfirmReady(context.Background(), "vid-1", "", target)
		require.Error(t, err, "target %q must be rejected", target)
		assert.Equal(t, models.CodeInvalidTransition, models.CodeOf(err))
	}

	assert.Zero(t, env.content.patches)
}

func TestConfirmReady_PromotesRecord(t *testing.T) {
	env := newStatusEnv(&stubClient{video: readyVideo("vid-1")})
	handle := env.content.add("vid-1", &models.VideoRecord{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending})
	require.NoError(t, env.index.Register(context.Background(), &models.IndexEntry{VideoID: "vid-1", Provider: "stub", Status: models.StatusPending}))

	view, err := env.svc.ConfirmReady(context.Background(), "vid-1", "", models.StatusReady)
	require.NoError(t, err)

	assert.Equal(t, models.StatusReady, view.Status)
	assert.True(t, view.ReadyToStream)

	record, err := env.content.GetVideo(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, record.Status)
}

func TestConfirmReady_UnknownVideo(t *testing.T) {
	env := newStatusEnv(&stubClient{})

	_, err := env.svc.ConfirmReady(context.Background(), "ghost", "", models.StatusReady)
	require.Error(t, err)
	assert.Equal(t, models.CodeVideoNotFound, models.CodeOf(err))
}

func TestConfirmReady_UnknownVideoWithProviderStillNotFound(t *testing.T) {
	env := newStatusEnv(&stubClient{video: readyVideo("ghost")})

	_, err := env.svc.ConfirmReady(context.Background(), "ghost", "stub", models.StatusReady)
	require.Error(t, err)
	assert.Equal(t, models.CodeVideoNotFound, models.CodeOf(err))

	assert.Zero(t, env.content.patches)
	assert.Empty(t, env.events.published())
	_, lookupErr := env.index.Lookup(context.Background(), "ghost")
	assert.Error(t, lookupErr)
}
