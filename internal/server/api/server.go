// Package api exposes the unidrive HTTP surface: user sessions, account
// linking and the storage proxy.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/logging"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
	"github.com/dmitrijs2005/unidrive/internal/server/services"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

type UserService interface {
	Register(ctx context.Context, email, password, phone string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Authenticate(token string) (string, error)
	Me(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, update services.ProfileUpdate) (*models.User, error)
}

type AccountService interface {
	Initiate(ctx context.Context, userID, providerName string) (string, *models.Account, error)
	Finalize(ctx context.Context, providerName string, params providers.CallbackParams) (*models.Account, error)
	Remove(ctx context.Context, userID, accountID string) error
	List(ctx context.Context, userID string) ([]models.AccountSummary, error)
	Providers() []string
}

type StorageService interface {
	CreateFile(ctx context.Context, userID, accountID string, file models.NewFile) (*models.File, error)
	ListFiles(ctx context.Context, userID, accountID string, opts models.ListOptions) (*models.FileList, error)
	GetFile(ctx context.Context, userID, accountID, fileID string) (*models.File, error)
	Download(ctx context.Context, userID, accountID, fileID string) (*models.Download, error)
	UpdateFile(ctx context.Context, userID, accountID, fileID string, update models.FileUpdate) (*models.File, error)
	DeleteFile(ctx context.Context, userID, accountID, fileID string) error
	GetQuota(ctx context.Context, userID, accountID string) (*models.Quota, error)
}

// Options tune the HTTP server.
type Options struct {
	// RateLimit is the sustained per-client request rate; zero disables
	// limiting.
	RateLimit float64
	RateBurst int
	// SessionTTL is the max age of the session cookie set on login.
	SessionTTL time.Duration
}

type Server struct {
	address  string
	logger   logging.Logger
	users    UserService
	accounts AccountService
	storage  StorageService
	opts     Options
	router   *gin.Engine
}

func NewServer(address string, l logging.Logger, us UserService, as AccountService, ss StorageService, opts Options) *Server {
	s := &Server{
		address:  address,
		logger:   l.With("module", "http_server"),
		users:    us,
		accounts: as,
		storage:  ss,
		opts:     opts,
	}
	s.router = s.routes()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	if s.opts.RateLimit > 0 {
		router.Use(NewRateLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst).Middleware())
	}

	router.GET("/ping", s.handlePing)

	router.POST("/users/register", s.handleRegister)
	router.POST("/users/login", s.handleLogin)
	router.GET("/accounts/callback/:provider", s.handleCallback)

	authed := router.Group("/", s.requireAuth())
	authed.GET("/users/me", s.handleMe)
	authed.PATCH("/users/me", s.handleUpdateMe)

	authed.GET("/providers", s.handleProviders)
	authed.GET("/accounts", s.handleListAccounts)
	authed.GET("/accounts/add/:provider", s.handleAddAccount)
	authed.DELETE("/accounts/:id", s.handleRemoveAccount)

	storage := authed.Group("/storage/:accountId")
	storage.POST("/files", s.handleCreateFile)
	storage.GET("/files", s.handleListFiles)
	storage.GET("/files/:fileId", s.handleGetFile)
	storage.PATCH("/files/:fileId", s.handleUpdateFile)
	storage.DELETE("/files/:fileId", s.handleDeleteFile)
	storage.GET("/quota", s.handleQuota)

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handlePing(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
