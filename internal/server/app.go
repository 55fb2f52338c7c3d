// Package server initializes and runs the unidrive server. It selects the
// account store, registers the storage providers, wires the services into
// the HTTP API and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/unidrive/internal/logging"
	"github.com/dmitrijs2005/unidrive/internal/server/api"
	"github.com/dmitrijs2005/unidrive/internal/server/config"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
	"github.com/dmitrijs2005/unidrive/internal/server/providers/google"
	"github.com/dmitrijs2005/unidrive/internal/server/providers/onedrive"
	"github.com/dmitrijs2005/unidrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/unidrive/internal/server/services"
	"github.com/gin-gonic/gin"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    repomanager.RepositoryManager
	registry *providers.Registry
	server   *api.Server
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	if c.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	repos, err := repomanager.New(c)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	registry := newProviderRegistry(c)
	users := repos.Users()

	us := services.NewUserService(users, c, logger.With("module", "users"))
	as := services.NewAccountService(users, registry,
		providers.NewStateCodec([]byte(c.SecretKey), providers.DefaultStateTTL), logger.With("module", "accounts"))
	ss := services.NewStorageService(users, registry,
		services.NewTokenSync(users, logger.With("module", "token_sync")), c.ProviderTimeout, logger.With("module", "storage"))

	srv := api.NewServer(c.ListenAddr, logger, us, as, ss, api.Options{
		RateLimit:  c.RateLimit,
		RateBurst:  c.RateBurst,
		SessionTTL: c.AccessTokenValidityDuration,
	})

	return &App{config: c, logger: logger, repos: repos, registry: registry, server: srv}, nil
}

// newProviderRegistry registers Google Drive always and OneDrive when its
// client id is configured.
func newProviderRegistry(c *config.Config) *providers.Registry {
	registry := providers.NewRegistry(google.New(google.Config{
		ClientID:     c.GoogleClientID,
		ClientSecret: c.GoogleClientSecret,
		RedirectURL:  c.RedirectURL(google.Name),
	}))

	if c.OneDriveClientID != "" {
		registry.Register(onedrive.New(onedrive.Config{
			ClientID:     c.OneDriveClientID,
			ClientSecret: c.OneDriveClientSecret,
			RedirectURL:  c.RedirectURL(onedrive.Name),
		}))
	}
	return registry
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run applies migrations and serves until ctx is cancelled or the process
// receives a termination signal.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.StoreType, "providers", app.registry.Names())

	app.initSignalHandler(cancelFunc)

	defer func() {
		if err := app.repos.Close(); err != nil {
			app.logger.Error(ctx, "closing store failed", "error", err)
		}
	}()

	if err := app.repos.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}
