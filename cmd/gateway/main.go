package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/clipstream/streamgate/cmd/gateway/container"
	gatewaymw "github.com/clipstream/streamgate/cmd/gateway/middleware"
	"github.com/clipstream/streamgate/cmd/gateway/repository"
	"github.com/clipstream/streamgate/cmd/gateway/routes"
	"github.com/clipstream/streamgate/common/bootstrap"
	"github.com/clipstream/streamgate/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, queue, cache, telemetry)
	components, err := bootstrap.Setup(ctx, "gateway",
		bootstrap.WithDBInitHook(repository.EnsureSchema),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap gateway: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, serviceContainer)
	registerRoutes(e, serviceContainer)

	srv := server.New("gateway", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.RequestID())
	e.Use(gatewaymw.ExtractUsername())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ec echo.Context) error {
		ctx := ec.Request().Context()

		status := map[string]string{
			"status":  "ok",
			"service": "gateway",
		}
		if err := c.Components.DB.Health(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
		}
		if err := c.Redis.Health(ctx); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
		}

		return ec.JSON(200, status)
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterUploadRoutes(e, serviceContainer)
	routes.RegisterWebhookRoutes(e, serviceContainer)
	routes.RegisterStatusRoutes(e, serviceContainer)
}
