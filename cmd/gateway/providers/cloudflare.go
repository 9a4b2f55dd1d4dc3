package providers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/common/config"
	"github.com/clipstream/streamgate/common/logger"
)

const (
	// ProviderCloudflare is the registry name for Cloudflare Stream.
	ProviderCloudflare = "cloudflare"

	cloudflareAPIBase = "https://api.cloudflare.com/client/v4"

	// signatureTolerance bounds webhook replay: deliveries whose signed
	// timestamp differs from now by more than this are rejected.
	signatureTolerance = 300 * time.Second
)

// CloudflareClient talks to the Cloudflare Stream API
type CloudflareClient struct {
	cfg        config.CloudflareConfig
	infoHTTP   *http.Client
	uploadHTTP *http.Client
	log        *logger.Logger
}

// NewCloudflareClient creates a Cloudflare Stream client
func NewCloudflareClient(cfg config.CloudflareConfig, log *logger.Logger) *CloudflareClient {
	return &CloudflareClient{
		cfg:        cfg,
		infoHTTP:   &http.Client{Timeout: infoTimeout},
		uploadHTTP: &http.Client{Timeout: uploadTimeout},
		log:        log,
	}
}

// Name returns the provider identifier
func (c *CloudflareClient) Name() string {
	return ProviderCloudflare
}

// ValidateCredentials checks the configured credentials are present
func (c *CloudflareClient) ValidateCredentials() error {
	if c.cfg.AccountID == "" || c.cfg.APIToken == "" {
		return models.NewError(models.CodeMissingCredentials, "cloudflare account id and api token are required")
	}
	return nil
}

// cfEnvelope is the Cloudflare v4 API response wrapper
type cfEnvelope struct {
	Success bool         `json:"success"`
	Errors  []cfAPIError `json:"errors"`
	Result  cfVideo      `json:"result"`
}

type cfAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// cfVideo is the Stream video object, shared by the API result and the
// webhook payload
type cfVideo struct {
	UID           string `json:"uid"`
	ReadyToStream bool   `json:"readyToStream"`
	Thumbnail     string `json:"thumbnail"`
	Preview       string `json:"preview"`
	Playback      struct {
		HLS  string `json:"hls"`
		Dash string `json:"dash"`
	} `json:"playback"`
	Status struct {
		State           string `json:"state"`
		PctComplete     string `json:"pctComplete"`
		ErrorReasonCode string `json:"errorReasonCode"`
		ErrorReasonText string `json:"errorReasonText"`
	} `json:"status"`
}

// Upload streams the file to Cloudflare Stream via the basic upload
// endpoint
func (c *CloudflareClient) Upload(ctx context.Context, r io.Reader, size int64, filename, title string) (*Video, error) {
	if err := c.ValidateCredentials(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	url := fmt.Sprintf("%s/accounts/%s/stream", cloudflareAPIBase, c.cfg.AccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	env, err := c.do(c.uploadHTTP, req)
	if err != nil {
		return nil, err
	}

	c.log.Info("cloudflare upload accepted", "video_id", env.Result.UID, "size", size, "title", title)
	return c.normalize(&env.Result), nil
}

// GetVideoInfo fetches the current state of a video
func (c *CloudflareClient) GetVideoInfo(ctx context.Context, videoID string) (*Video, error) {
	if err := c.ValidateCredentials(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/accounts/%s/stream/%s", cloudflareAPIBase, c.cfg.AccountID, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)

	env, err := c.do(c.infoHTTP, req)
	if err != nil {
		return nil, err
	}

	return c.normalize(&env.Result), nil
}

// DeleteVideo removes a video from the stream library
func (c *CloudflareClient) DeleteVideo(ctx context.Context, videoID string) error {
	if err := c.ValidateCredentials(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/accounts/%s/stream/%s", cloudflareAPIBase, c.cfg.AccountID, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)

	_, err = c.do(c.infoHTTP, req)
	return err
}

// CreateWebhook registers the notification URL for the account
func (c *CloudflareClient) CreateWebhook(ctx context.Context, notifyURL string) error {
	if err := c.ValidateCredentials(); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{"notificationUrl": notifyURL})
	if err != nil {
		return fmt.Errorf("marshal webhook registration: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/stream/webhook", cloudflareAPIBase, c.cfg.AccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(c.infoHTTP, req)
	return err
}

// VerifyWebhook authenticates a delivery signed as
// "time=<unix>,sig1=<hex>", where sig1 = HMAC-SHA256(secret, "<time>.<body>").
// Runs before any JSON parsing; a failure mutates nothing.
func (c *CloudflareClient) VerifyWebhook(rawBody []byte, signatureHeader string, now time.Time) error {
	if c.cfg.WebhookSecret == "" {
		return models.NewError(models.CodeMissingCredentials, "cloudflare webhook secret is not configured")
	}

	var timeStr, sigHex string
	for _, part := range strings.Split(signatureHeader, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "time":
			timeStr = value
		case "sig1":
			sigHex = value
		}
	}

	if timeStr == "" || sigHex == "" {
		return models.NewError(models.CodeInvalidSignature, "signature header is missing time or sig1")
	}

	ts, err := strconv.ParseInt(timeStr, 10, 64)
	if err != nil {
		return models.NewError(models.CodeInvalidSignature, "signature timestamp is not a unix time")
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return models.NewError(models.CodeExpiredSignature, "signature timestamp outside replay window")
	}

	mac := hmac.New(sha256.New, []byte(c.cfg.WebhookSecret))
	mac.Write([]byte(timeStr))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return models.NewError(models.CodeInvalidSignature, "signature is not valid hex")
	}

	if !hmac.Equal(expected, got) {
		return models.NewError(models.CodeInvalidSignature, "signature mismatch")
	}

	return nil
}

// ParseWebhook normalizes a webhook body, which carries the same video
// object as the API result
func (c *CloudflareClient) ParseWebhook(rawBody []byte) (*Video, error) {
	var v cfVideo
	if err := json.Unmarshal(rawBody, &v); err != nil {
		return nil, models.WrapError(models.CodeInvalidPayload, err, "webhook body is not valid json")
	}
	if v.UID == "" {
		return nil, models.NewError(models.CodeInvalidPayload, "webhook body has no video uid")
	}
	return c.normalize(&v), nil
}

// do executes a request and decodes the Cloudflare envelope
func (c *CloudflareClient) do(client *http.Client, req *http.Request) (*cfEnvelope, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, models.WrapError(models.CodeProviderUnavailable, err, "cloudflare request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.NewError(models.CodeVideoNotFound, "cloudflare: video not found")
	}
	if resp.StatusCode >= 500 {
		return nil, models.NewError(models.CodeProviderUnavailable, "cloudflare: server error %d", resp.StatusCode)
	}

	var env cfEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, models.WrapError(models.CodeProviderUnavailable, err, "cloudflare: malformed response")
	}

	if !env.Success {
		code := 0
		message := "unknown error"
		if len(env.Errors) > 0 {
			code = env.Errors[0].Code
			message = env.Errors[0].Message
		}
		return nil, models.NewError(fmt.Sprintf("provider:cloudflare:%d", code), "%s", message)
	}

	return &env, nil
}

// normalize converts the provider payload into the shared Video shape
func (c *CloudflareClient) normalize(v *cfVideo) *Video {
	pct, err := strconv.ParseFloat(v.Status.PctComplete, 64)
	if err != nil {
		pct = 0
	}

	out := &Video{
		ID:            v.UID,
		Provider:      ProviderCloudflare,
		State:         v.Status.State,
		ReadyToStream: v.ReadyToStream,
		PctComplete:   pct,
		ManifestURL:   v.Playback.HLS,
		ThumbnailURL:  v.Thumbnail,
		PlayerURL:     fmt.Sprintf("https://watch.videodelivery.net/%s", v.UID),
		EmbedHTML:     cloudflareEmbedHTML(v.UID),
	}

	if v.Status.State == "error" {
		out.ErrorCode = v.Status.ErrorReasonCode
		out.ErrorText = v.Status.ErrorReasonText
		if out.ErrorCode == "" {
			out.ErrorCode = "ERR_UNKNOWN"
		}
	}

	return out
}

func cloudflareEmbedHTML(uid string) string {
	return fmt.Sprintf(
		`<iframe src="https://iframe.videodelivery.net/%s" style="border: none;" height="720" width="1280" allow="accelerometer; gyroscope; autoplay; encrypted-media; picture-in-picture;" allowfullscreen="true"></iframe>`,
		uid,
	)
}
