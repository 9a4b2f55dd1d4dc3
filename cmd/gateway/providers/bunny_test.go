package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/common/config"
	"github.com/clipstream/streamgate/common/logger"
)

func newTestBunnyClient() *BunnyClient {
	return NewBunnyClient(config.BunnyConfig{
		LibraryID: "lib42",
		APIKey:    "key42",
		CDNHost:   "vz-test.b-cdn.net",
	}, logger.New("error", "json"))
}

func TestBunnyParseWebhook_Finished(t *testing.T) {
	b := newTestBunnyClient()
	body := []byte(`{"VideoLibraryId": 42, "VideoGuid": "guid-1", "Status": 4}`)

	video, err := b.ParseWebhook(body)
	require.NoError(t, err)

	assert.Equal(t, "guid-1", video.ID)
	assert.Equal(t, ProviderBunny, video.Provider)
	assert.Equal(t, "finished", video.State)
	assert.True(t, video.ReadyToStream)
	assert.Equal(t, float64(100), video.PctComplete)
	assert.Equal(t, "https://vz-test.b-cdn.net/guid-1/playlist.m3u8", video.ManifestURL)
	assert.Contains(t, video.EmbedHTML, "iframe.mediadelivery.net/embed/lib42/guid-1")
}

func TestBunnyParseWebhook_Transcoding(t *testing.T) {
	b := newTestBunnyClient()
	body := []byte(`{"VideoLibraryId": 42, "VideoGuid": "guid-1", "Status": 3}`)

	video, err := b.ParseWebhook(body)
	require.NoError(t, err)

	assert.Equal(t, "transcoding", video.State)
	assert.False(t, video.ReadyToStream)
	assert.Equal(t, float64(0), video.PctComplete)
}

func TestBunnyParseWebhook_ErrorStatuses(t *testing.T) {
	b := newTestBunnyClient()

	video, err := b.ParseWebhook([]byte(`{"VideoGuid": "guid-1", "Status": 5}`))
	require.NoError(t, err)
	assert.Equal(t, "ENCODING_FAILED", video.ErrorCode)

	video, err = b.ParseWebhook([]byte(`{"VideoGuid": "guid-1", "Status": 6}`))
	require.NoError(t, err)
	assert.Equal(t, "UPLOAD_FAILED", video.ErrorCode)
}

func TestBunnyParseWebhook_RejectsGarbage(t *testing.T) {
	b := newTestBunnyClient()

	_, err := b.ParseWebhook([]byte("<html>not json</html>"))
	require.Error(t, err)
	assert.Equal(t, models.CodeInvalidPayload, models.CodeOf(err))

	_, err = b.ParseWebhook([]byte(`{"Status": 4}`))
	require.Error(t, err)
	assert.Equal(t, models.CodeInvalidPayload, models.CodeOf(err))
}

// Bunny has no webhook signing scheme, so verification accepts anything.
// The trust gap is deliberate and documented on the method.
func TestBunnyVerifyWebhook_AlwaysAccepts(t *testing.T) {
	b := newTestBunnyClient()

	assert.NoError(t, b.VerifyWebhook([]byte(`{}`), "", time.Now()))
	assert.NoError(t, b.VerifyWebhook([]byte(`{}`), "bogus-header", time.Now()))
}

func TestBunnyNormalize_NoCDNHostMeansNoManifest(t *testing.T) {
	b := NewBunnyClient(config.BunnyConfig{
		LibraryID: "lib42",
		APIKey:    "key42",
	}, logger.New("error", "json"))

	video, err := b.ParseWebhook([]byte(`{"VideoGuid": "guid-1", "Status": 4}`))
	require.NoError(t, err)

	// Without a manifest URL the readiness rule keeps this pending even
	// though the provider claims finished.
	assert.True(t, video.ReadyToStream)
	assert.Empty(t, video.ManifestURL)
}

func TestBunnyValidateCredentials_Missing(t *testing.T) {
	b := NewBunnyClient(config.BunnyConfig{}, logger.New("error", "json"))

	err := b.ValidateCredentials()
	require.Error(t, err)
	assert.Equal(t, models.CodeMissingCredentials, models.CodeOf(err))
}

func TestRegistry_Get(t *testing.T) {
	cf := newTestCloudflareClient()
	bn := newTestBunnyClient()
	registry := NewRegistry(cf, bn)

	got, err := registry.Get("cloudflare")
	require.NoError(t, err)
	assert.Equal(t, cf, got)

	got, err = registry.Get("bunny")
	require.NoError(t, err)
	assert.Equal(t, bn, got)

	_, err = registry.Get("vimeo")
	require.Error(t, err)
	assert.Equal(t, models.CodeUnknownProvider, models.CodeOf(err))
}
