package container

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/clipstream/streamgate/cmd/gateway/providers"
	"github.com/clipstream/streamgate/cmd/gateway/repository"
	"github.com/clipstream/streamgate/cmd/gateway/service"
	"github.com/clipstream/streamgate/common/bootstrap"
	"github.com/clipstream/streamgate/common/ratelimit"
	rediscommon "github.com/clipstream/streamgate/common/redis"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components
	Redis      *rediscommon.Client
	RedisRaw   *redis.Client
	Limiter    *ratelimit.RateLimiter

	// Repositories
	ContentRepo *repository.ContentRepository
	IndexRepo   *repository.VideoIndexRepository

	// Providers
	Registry *providers.Registry
	Active   providers.Client

	// Services
	Reconciler     *service.Reconciler
	UploadService  *service.UploadService
	WebhookService *service.WebhookService
	StatusService  *service.StatusService
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	redisRaw := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisClient := rediscommon.NewClient(redisRaw, components.Logger)

	limiter := ratelimit.NewRateLimiter(redisRaw, components.Logger)

	// Repositories
	contentRepo := repository.NewContentRepository(components.DB)
	indexRepo := repository.NewVideoIndexRepository(components.DB)

	// Provider clients; the registry serves webhook and status lookups
	// for all providers, while uploads go to the active one only.
	registry := providers.NewRegistry(
		providers.NewCloudflareClient(cfg.Providers.Cloudflare, components.Logger),
		providers.NewBunnyClient(cfg.Providers.Bunny, components.Logger),
	)
	active, err := registry.Get(cfg.Providers.Active)
	if err != nil {
		return nil, fmt.Errorf("resolve active provider: %w", err)
	}

	policy, err := service.NewUploadPolicy(cfg.Upload.PolicyExpr)
	if err != nil {
		return nil, fmt.Errorf("compile upload policy: %w", err)
	}

	// Services (bottom-up: dependencies first)
	reconciler := service.NewReconciler(
		contentRepo,
		indexRepo,
		redisClient,
		components.Queue,
		components.Telemetry,
		components.Logger,
	)
	uploadService := service.NewUploadService(
		active,
		policy,
		indexRepo,
		redisClient,
		components.Queue,
		components.Telemetry,
		cfg.Upload,
		components.Logger,
	)
	webhookService := service.NewWebhookService(
		registry,
		reconciler,
		redisClient,
		components.Logger,
	)
	statusService := service.NewStatusService(
		contentRepo,
		indexRepo,
		registry,
		reconciler,
		redisClient,
		components.Cache,
		cfg.Cache.RemoteStatusTTL,
		cfg.Upload.StalenessTimeout,
		components.Logger,
	)

	return &Container{
		Components:     components,
		Redis:          redisClient,
		RedisRaw:       redisRaw,
		Limiter:        limiter,
		ContentRepo:    contentRepo,
		IndexRepo:      indexRepo,
		Registry:       registry,
		Active:         active,
		Reconciler:     reconciler,
		UploadService:  uploadService,
		WebhookService: webhookService,
		StatusService:  statusService,
	}, nil
}
