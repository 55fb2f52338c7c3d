// Package providers defines the capability contract every storage backend
// implements, the registry the server looks providers up in, and the OAuth
// plumbing shared by the adapters: signed state and token sessions.
package providers

import (
	"context"

	"github.com/dmitrijs2005/unidrive/internal/server/models"
)

// CallbackParams are the query parameters of an OAuth redirect together
// with the values recovered from its state.
type CallbackParams struct {
	Code  string
	State string
	// Error is the "error" parameter the authorization server sends when
	// consent was denied or the request was malformed.
	Error string

	// CorrelationID identifies the linking attempt; the returned account
	// carries it as its id.
	CorrelationID string
	UserID        string
}

// Provider is a storage backend reached through OAuth credentials.
//
// Storage operations build a fresh client from account.Tokens on every call.
// When the call silently renewed the access token, the renewed credential
// fields are returned next to the result so the caller can persist them;
// otherwise the returned credential is nil.
//
// Failures are reported as common.ErrProviderUnavailable when the account
// has no usable credentials, and as *common.UpstreamError for errors
// signaled by the storage service.
type Provider interface {
	Name() string
	AuthURL(state string) string
	// HandleOAuthCallback exchanges the authorization code and returns a
	// connected account with tokens and profile filled in. It fails with
	// common.ErrOAuthExchange when the code is missing, the authorization
	// server reported an error or the exchange was rejected.
	HandleOAuthCallback(ctx context.Context, params CallbackParams) (*models.Account, error)
	// IsSameAccount reports whether both accounts denote the same external
	// identity. Ids are never compared.
	IsSameAccount(existing, candidate *models.Account) bool

	CreateFile(ctx context.Context, account *models.Account, file models.NewFile) (*models.File, models.Credential, error)
	ListFiles(ctx context.Context, account *models.Account, opts models.ListOptions) (*models.FileList, models.Credential, error)
	GetFile(ctx context.Context, account *models.Account, fileID string) (*models.File, models.Credential, error)
	GetFileMedia(ctx context.Context, account *models.Account, fileID string) (*models.Media, models.Credential, error)
	UpdateFile(ctx context.Context, account *models.Account, fileID string, update models.FileUpdate) (*models.File, models.Credential, error)
	DeleteFile(ctx context.Context, account *models.Account, fileID string) (models.Credential, error)
	GetQuota(ctx context.Context, account *models.Account) (*models.Quota, models.Credential, error)
}
