package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/cmd/gateway/providers"
	"github.com/clipstream/streamgate/common/config"
	"github.com/clipstream/streamgate/common/queue"
)

type uploadEnv struct {
	client    *stubClient
	index     *stubIndex
	markers   *stubMarkers
	events    *stubEvents
	telemetry *stubTelemetry
	svc       *UploadService
}

func newUploadEnv(t *testing.T, client *stubClient, policyExpr string) *uploadEnv {
	policy, err := NewUploadPolicy(policyExpr)
	require.NoError(t, err)

	env := &uploadEnv{
		client:    client,
		index:     newStubIndex(),
		markers:   newStubMarkers(),
		events:    &stubEvents{},
		telemetry: &stubTelemetry{},
	}
	env.svc = NewUploadService(client, policy, env.index, env.markers, env.events, env.telemetry, config.UploadConfig{
		MaxBytes:          1 << 20,
		AllowedExtensions: []string{"mp4", "mov", "webm"},
		StartMarkerTTL:    time.Hour,
	}, testLogger())
	return env
}

// mp4Bytes returns content the sniffer recognizes as video/mp4
func mp4Bytes(n int) []byte {
	header := []byte("\x00\x00\x00\x20ftypmp42\x00\x00\x00\x00mp42isomavc1iso2")
	return append(header, bytes.Repeat([]byte{0x42}, n)...)
}

func pendingVideo(id string) *providers.Video {
	return &providers.Video{ID: id, Provider: "stub", State: "queued"}
}

func TestUpload_HappyPath(t *testing.T) {
	client := &stubClient{video: pendingVideo("vid-1")}
	env := newUploadEnv(t, client, "")

	content := mp4Bytes(1024)
	result, err := env.svc.Upload(context.Background(), bytes.NewReader(content), int64(len(content)), "clip.mp4", models.UploadMeta{Title: "my clip"})
	require.NoError(t, err)

	assert.Equal(t, "vid-1", result.VideoID)
	assert.Equal(t, "stub", result.Provider)
	assert.Equal(t, models.StatusPending, result.Status)
	assert.False(t, result.Ready)
	assert.Equal(t, 1, client.uploadCalls)

	entry, err := env.index.Lookup(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, entry.Status)
	assert.Equal(t, "stub", entry.Provider)

	_, err = env.markers.Get(context.Background(), uploadStartKey("vid-1"))
	assert.NoError(t, err, "upload start marker must be written")

	assert.Equal(t, []string{queue.TopicVideoUploaded}, env.events.published())
}

func TestUpload_SynchronouslyReadyProvider(t *testing.T) {
	client := &stubClient{video: readyVideo("vid-1")}
	env := newUploadEnv(t, client, "")

	content := mp4Bytes(256)
	result, err := env.svc.Upload(context.Background(), bytes.NewReader(content), int64(len(content)), "clip.mp4", models.UploadMeta{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusReady, result.Status)
	assert.True(t, result.Ready)
	assert.NotEmpty(t, result.HTML)
}

func TestUpload_RejectsDisallowedExtensionWithoutProviderCall(t *testing.T) {
	client := &stubClient{video: pendingVideo("vid-1")}
	env := newUploadEnv(t, client, "")

	content := mp4Bytes(64)
	_, err := env.svc.Upload(context.Background(), bytes.NewReader(content), int64(len(content)), "malware.exe", models.UploadMeta{})
	require.Error(t, err)

	assert.Equal(t, models.CodeInvalidFormat, models.CodeOf(err))
	assert.Zero(t, client.uploadCalls, "rejected files must never reach the provider")
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	client := &stubClient{video: pendingVideo("vid-1")}
	env := newUploadEnv(t, client, "")

	content := mp4Bytes(64)
	_, err := env.svc.Upload(context.Background(), bytes.NewReader(content), 2<<20, "clip.mp4", models.UploadMeta{})
	require.Error(t, err)

	assert.Equal(t, models.CodeFileTooLarge, models.CodeOf(err))
	assert.Zero(t, client.uploadCalls)
}

func TestUpload_RejectsEmptyFile(t *testing.T) {
	client := &stubClient{video: pendingVideo("vid-1")}
	env := newUploadEnv(t, client, "")

	_, err := env.svc.Upload(context.Background(), bytes.NewReader(nil), 0, "clip.mp4", models.UploadMeta{})
	require.Error(t, err)

	assert.Equal(t, models.CodeInvalidFile, models.CodeOf(err))
	assert.Zero(t, client.uploadCalls)
}

func TestUpload_RejectsNonVideoContent(t *testing.T) {
	client := &stubClient{video: pendingVideo("vid-1")}
	env := newUploadEnv(t, client, "")

	content := []byte("<html><body>definitely not a video</body></html>")
	_, err := env.svc.Upload(context.Background(), bytes.NewReader(content), int64(len(content)), "fake.mp4", models.UploadMeta{})
	require.Error(t, err)

	assert.Equal(t, models.CodeInvalidMIMEType, models.CodeOf(err))
	assert.Zero(t, client.uploadCalls)
}

func TestUpload_PolicyRejection(t *testing.T) {
	client := &stubClient{video: pendingVideo("vid-1")}
	env := newUploadEnv(t, client, `size < 100`)

	content := mp4Bytes(1024)
	_, err := env.svc.Upload(context.Background(), bytes.NewReader(content), int64(len(content)), "clip.mp4", models.UploadMeta{})
	require.Error(t, err)

	assert.Equal(t, models.CodePolicyRejected, models.CodeOf(err))
	assert.Zero(t, client.uploadCalls)
}

// Marker writes are best-effort metrics plumbing; a Redis outage must
// not turn a successful provider upload into a client-facing error.
func TestUpload_MarkerOutageDoesNotFailUpload(t *testing.T) {
	client := &stubClient{video: pendingVideo("vid-1")}
	env := newUploadEnv(t, client, "")
	env.markers.fail = true

	content := mp4Bytes(128)
	result, err := env.svc.Upload(context.Background(), bytes.NewReader(content), int64(len(content)), "clip.mp4", models.UploadMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, result.Status)
}

func TestUpload_ProviderErrorBubblesWithCode(t *testing.T) {
	client := &stubClient{uploadErr: models.NewError("provider:stub:10004", "quota exceeded")}
	env := newUploadEnv(t, client, "")

	content := mp4Bytes(128)
	_, err := env.svc.Upload(context.Background(), bytes.NewReader(content), int64(len(content)), "clip.mp4", models.UploadMeta{})
	require.Error(t, err)

	assert.Equal(t, "provider:stub:10004", models.CodeOf(err))
}
