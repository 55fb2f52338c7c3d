package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/logging"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
	"github.com/dmitrijs2005/unidrive/internal/server/repositories/users"
	"golang.org/x/sync/errgroup"
)

// MaxPageSize caps the page size a client may ask for.
const MaxPageSize = 1000

// StorageService proxies file operations to the provider of a linked
// account. Every call is bounded by the configured provider timeout and
// credentials renewed during a call are handed to TokenSync.
type StorageService struct {
	repo     users.Repository
	registry *providers.Registry
	sync     *TokenSync
	timeout  time.Duration
	log      logging.Logger
}

func NewStorageService(repo users.Repository, registry *providers.Registry, sync *TokenSync, timeout time.Duration, log logging.Logger) *StorageService {
	return &StorageService{repo: repo, registry: registry, sync: sync, timeout: timeout, log: log}
}

// target is an account resolved together with its provider.
type target struct {
	account  *models.Account
	provider providers.Provider
}

func (s *StorageService) resolve(ctx context.Context, userID, accountID string) (*target, error) {
	account, err := s.repo.GetAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	p, ok := s.registry.Get(account.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrProviderNotSupported, account.Provider)
	}
	if !account.Connected() {
		return nil, fmt.Errorf("%w: account %s is not connected", common.ErrProviderUnavailable, account.ID)
	}
	return &target{account: account, provider: p}, nil
}

// call runs fn under the provider timeout, persists any refreshed
// credential and classifies the failure.
func call[T any](ctx context.Context, s *StorageService, t *target, op string, fn func(ctx context.Context) (T, models.Credential, error)) (T, error) {
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()

	started := time.Now()
	res, refreshed, err := fn(cctx)
	s.sync.Sync(ctx, t.account, refreshed)

	if err != nil {
		err = s.classify(ctx, cctx, t, err)
		s.log.Warn(ctx, "provider call failed", "op", op, "provider", t.account.Provider,
			"account_id", t.account.ID, "duration", time.Since(started), "error", err)
		var zero T
		return zero, err
	}
	s.log.Debug(ctx, "provider call", "op", op, "provider", t.account.Provider,
		"account_id", t.account.ID, "duration", time.Since(started))
	return res, nil
}

func (s *StorageService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// classify turns expiry of the per-call deadline into a 504 upstream error.
// Cancellation by the caller is returned as is.
func (s *StorageService) classify(parent, cctx context.Context, t *target, err error) error {
	if parent.Err() != nil {
		return err
	}
	if errors.Is(cctx.Err(), context.DeadlineExceeded) && errors.Is(err, context.DeadlineExceeded) {
		return &common.UpstreamError{
			Provider: t.account.Provider,
			Status:   http.StatusGatewayTimeout,
			Message:  fmt.Sprintf("no response within %s", s.timeout),
			Err:      err,
		}
	}
	return err
}

func (s *StorageService) CreateFile(ctx context.Context, userID, accountID string, file models.NewFile) (*models.File, error) {
	if strings.TrimSpace(file.Name) == "" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrValidation)
	}
	t, err := s.resolve(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	return call(ctx, s, t, "CreateFile", func(ctx context.Context) (*models.File, models.Credential, error) {
		return t.provider.CreateFile(ctx, t.account, file)
	})
}

// ListFiles returns one page of files. A non-positive page size selects
// models.DefaultPageSize.
func (s *StorageService) ListFiles(ctx context.Context, userID, accountID string, opts models.ListOptions) (*models.FileList, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = models.DefaultPageSize
	}
	if opts.PageSize > MaxPageSize {
		return nil, fmt.Errorf("%w: page size must not exceed %d", common.ErrValidation, MaxPageSize)
	}
	t, err := s.resolve(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	return call(ctx, s, t, "ListFiles", func(ctx context.Context) (*models.FileList, models.Credential, error) {
		return t.provider.ListFiles(ctx, t.account, opts)
	})
}

func (s *StorageService) GetFile(ctx context.Context, userID, accountID, fileID string) (*models.File, error) {
	t, err := s.resolve(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	return call(ctx, s, t, "GetFile", func(ctx context.Context) (*models.File, models.Credential, error) {
		return t.provider.GetFile(ctx, t.account, fileID)
	})
}

// Download fetches metadata and content of a file concurrently. A failure
// of either call cancels the other.
func (s *StorageService) Download(ctx context.Context, userID, accountID, fileID string) (*models.Download, error) {
	t, err := s.resolve(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	var (
		meta  *models.File
		media *models.Media
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meta, err = call(gctx, s, t, "GetFile", func(ctx context.Context) (*models.File, models.Credential, error) {
			return t.provider.GetFile(ctx, t.account, fileID)
		})
		return err
	})
	g.Go(func() error {
		var err error
		media, err = call(gctx, s, t, "GetFileMedia", func(ctx context.Context) (*models.Media, models.Credential, error) {
			return t.provider.GetFileMedia(ctx, t.account, fileID)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mimeType := media.MimeType
	if mimeType == "" {
		mimeType = meta.MimeType
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &models.Download{Name: meta.Name, MimeType: mimeType, Content: media.Content}, nil
}

func (s *StorageService) UpdateFile(ctx context.Context, userID, accountID, fileID string, update models.FileUpdate) (*models.File, error) {
	if update.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrValidation)
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, fmt.Errorf("%w: file name must not be empty", common.ErrValidation)
	}
	t, err := s.resolve(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	return call(ctx, s, t, "UpdateFile", func(ctx context.Context) (*models.File, models.Credential, error) {
		return t.provider.UpdateFile(ctx, t.account, fileID, update)
	})
}

func (s *StorageService) DeleteFile(ctx context.Context, userID, accountID, fileID string) error {
	t, err := s.resolve(ctx, userID, accountID)
	if err != nil {
		return err
	}
	_, err = call(ctx, s, t, "DeleteFile", func(ctx context.Context) (struct{}, models.Credential, error) {
		refreshed, err := t.provider.DeleteFile(ctx, t.account, fileID)
		return struct{}{}, refreshed, err
	})
	return err
}

func (s *StorageService) GetQuota(ctx context.Context, userID, accountID string) (*models.Quota, error) {
	t, err := s.resolve(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	return call(ctx, s, t, "GetQuota", func(ctx context.Context) (*models.Quota, models.Credential, error) {
		return t.provider.GetQuota(ctx, t.account)
	})
}
