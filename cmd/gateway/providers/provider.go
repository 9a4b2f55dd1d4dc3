package providers

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/clipstream/streamgate/cmd/gateway/models"
)

// Timeouts for outbound provider calls. Status queries are quick;
// large-file uploads stream for minutes.
const (
	infoTimeout   = 10 * time.Second
	uploadTimeout = 10 * time.Minute
)

// Video is the provider-neutral shape every provider response is
// normalized into before the readiness evaluator sees it
type Video struct {
	ID       string
	Provider string
	// State is the provider's own lifecycle word, kept for diagnostics.
	State string
	// ReadyToStream is the provider's readiness claim. Not sufficient on
	// its own: some providers set it as soon as one rendition finishes.
	ReadyToStream bool
	// PctComplete is the provider-reported share of finished renditions.
	PctComplete  float64
	ManifestURL  string
	ThumbnailURL string
	PlayerURL    string
	EmbedHTML    string
	ErrorCode    string
	ErrorText    string
}

// Client is the narrow contract both provider implementations satisfy
type Client interface {
	// Name returns the provider identifier used in routes and records.
	Name() string
	// ValidateCredentials checks the configured credentials are present.
	ValidateCredentials() error
	// Upload sends the file to the provider and returns the normalized
	// response. Not resumable: a timed-out upload must be restarted.
	Upload(ctx context.Context, r io.Reader, size int64, filename, title string) (*Video, error)
	// GetVideoInfo fetches the current provider-side view of a video.
	GetVideoInfo(ctx context.Context, videoID string) (*Video, error)
	// DeleteVideo removes the video from the provider.
	DeleteVideo(ctx context.Context, videoID string) error
	// CreateWebhook registers notifyURL as the webhook destination.
	CreateWebhook(ctx context.Context, notifyURL string) error
	// VerifyWebhook authenticates a raw webhook delivery. Runs before
	// any JSON parsing; a failure must leave all state untouched.
	VerifyWebhook(rawBody []byte, signatureHeader string, now time.Time) error
	// ParseWebhook normalizes a verified webhook body.
	ParseWebhook(rawBody []byte) (*Video, error)
}

// Registry holds the configured provider clients
type Registry struct {
	clients map[string]Client
}

// NewRegistry creates a registry from the given clients
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Name()] = c
	}
	return r
}

// Get returns the client for a provider name
func (r *Registry) Get(name string) (Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, models.NewError(models.CodeUnknownProvider, "unknown provider %q", name)
	}
	return c, nil
}

// IsRemoteNotFound reports whether an error is a provider-side 404.
// Moments after an upload the provider may not know the video yet, so
// pollers treat this as pending rather than a failure.
func IsRemoteNotFound(err error) bool {
	var coded *models.CodedError
	return errors.As(err, &coded) && coded.Code == models.CodeVideoNotFound
}

// IsRemoteUnavailable reports whether an error is a provider transport
// failure or 5xx
func IsRemoteUnavailable(err error) bool {
	var coded *models.CodedError
	return errors.As(err, &coded) && coded.Code == models.CodeProviderUnavailable
}
