package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"golang.org/x/oauth2"
)

// TokenSession is an authenticated HTTP client for one account and one
// call. It records the token that was actually used so the caller can tell
// whether the access token was renewed along the way.
type TokenSession struct {
	initial models.Credential

	mu     sync.Mutex
	latest *oauth2.Token
	src    oauth2.TokenSource
	client *http.Client
}

// NewTokenSession builds a session from the stored credential. The token is
// resolved immediately, refreshing it if it has expired, so that unusable
// credentials fail before any storage request is made.
//
// httpClient, when non-nil, is used both for token refreshes and for the
// authenticated requests.
func NewTokenSession(ctx context.Context, cfg *oauth2.Config, cred models.Credential, httpClient *http.Client) (*TokenSession, error) {
	tok := TokenFromCredential(cred)
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: account has no credentials", common.ErrProviderUnavailable)
	}

	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	s := &TokenSession{initial: CredentialFromToken(tok)}
	s.src = cfg.TokenSource(ctx, tok)

	if _, err := s.Token(); err != nil {
		return nil, TokenError(err)
	}

	s.client = oauth2.NewClient(ctx, s)
	return s, nil
}

// Token implements oauth2.TokenSource.
func (s *TokenSession) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.latest = tok
	s.mu.Unlock()
	return tok, nil
}

func (s *TokenSession) Client() *http.Client {
	return s.client
}

// Refreshed returns the credential fields that changed since the session
// was created, or nil when the token was not renewed.
func (s *TokenSession) Refreshed() models.Credential {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()

	if latest == nil {
		return nil
	}
	return changedFields(s.initial, CredentialFromToken(latest))
}

// TokenError classifies a failure to obtain an access token. A rejected
// refresh means the stored grant is no longer usable.
func TokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: token refresh rejected: %s", common.ErrProviderUnavailable, retrieveMessage(re))
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
}

func retrieveMessage(re *oauth2.RetrieveError) string {
	if re.ErrorCode != "" {
		if re.ErrorDescription != "" {
			return re.ErrorCode + ": " + re.ErrorDescription
		}
		return re.ErrorCode
	}
	if re.Response != nil {
		return re.Response.Status
	}
	return "unknown error"
}

// TransportError classifies an error returned while talking to the storage
// service itself, before any response status was available.
func TransportError(provider string, err error) error {
	var re *oauth2.RetrieveError
	switch {
	case errors.As(err, &re):
		return TokenError(re)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, common.ErrUpstream), errors.Is(err, common.ErrProviderUnavailable):
		return err
	default:
		return &common.UpstreamError{Provider: provider, Status: http.StatusBadGateway, Message: err.Error(), Err: err}
	}
}
