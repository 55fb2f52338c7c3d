// Package google implements the Google Drive storage provider on top of the
// Drive v3 and OAuth2 v2 client libraries.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	oauthapi "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const Name = "google"

var scopes = []string{
	drive.DriveScope,
	oauthapi.UserinfoEmailScope,
	oauthapi.UserinfoProfileScope,
}

const fileFields = "id,name,mimeType,size,modifiedTime"

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type Option func(*Provider)

// WithHTTPClient routes token, Drive and userinfo requests through c.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithEndpoints points the provider at alternative OAuth and API hosts.
// apiBase replaces https://www.googleapis.com/ for both Drive and userinfo.
func WithEndpoints(auth oauth2.Endpoint, apiBase string) Option {
	return func(p *Provider) {
		p.oauth.Endpoint = auth
		p.apiBase = apiBase
	}
}

type Provider struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	apiBase    string
}

var _ providers.Provider = (*Provider)(nil)

func New(cfg Config, opts ...Option) *Provider {
	p := &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     googleoauth.Endpoint,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return Name
}

// AuthURL asks for offline access with forced consent so a refresh token is
// issued on every link.
func (p *Provider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *Provider) HandleOAuthCallback(ctx context.Context, params providers.CallbackParams) (*models.Account, error) {
	if params.Error != "" {
		return nil, fmt.Errorf("%w: authorization denied: %s", common.ErrOAuthExchange, params.Error)
	}
	if params.Code == "" {
		return nil, fmt.Errorf("%w: missing code", common.ErrOAuthExchange)
	}

	ctx = p.clientContext(ctx)

	tok, err := p.oauth.Exchange(ctx, params.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrOAuthExchange, err)
	}

	svc, err := oauthapi.NewService(ctx, p.serviceOptions(p.oauth.Client(ctx, tok))...)
	if err != nil {
		return nil, fmt.Errorf("userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", common.ErrOAuthExchange, err)
	}

	profile := models.Profile{
		"id":      info.Id,
		"email":   info.Email,
		"name":    info.Name,
		"picture": info.Picture,
	}

	return &models.Account{
		ID:       params.CorrelationID,
		Provider: Name,
		UserID:   params.UserID,
		Label:    label(info),
		Status:   models.StatusConnected,
		Tokens:   providers.CredentialFromToken(tok),
		Profile:  profile,
	}, nil
}

func label(info *oauthapi.Userinfo) string {
	switch {
	case info.Email != "":
		return info.Email
	case info.Name != "":
		return info.Name
	default:
		return "google-" + info.Id
	}
}

// IsSameAccount compares the Google account id, falling back to the label
// for records that were linked before the profile carried an id.
func (p *Provider) IsSameAccount(existing, candidate *models.Account) bool {
	if existing.Provider != candidate.Provider {
		return false
	}
	a, b := existing.Profile.String("id"), candidate.Profile.String("id")
	if a != "" && b != "" {
		return a == b
	}
	return existing.Label != "" && existing.Label == candidate.Label
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	if p.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	return ctx
}

func (p *Provider) serviceOptions(client *http.Client) []option.ClientOption {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.apiBase != "" {
		opts = append(opts, option.WithEndpoint(p.apiBase))
	}
	return opts
}

// driveService builds a Drive client for one call.
func (p *Provider) driveService(ctx context.Context, account *models.Account) (*drive.Service, *providers.TokenSession, error) {
	session, err := providers.NewTokenSession(ctx, p.oauth, account.Tokens, p.httpClient)
	if err != nil {
		return nil, nil, err
	}

	opts := []option.ClientOption{option.WithHTTPClient(session.Client())}
	if p.apiBase != "" {
		opts = append(opts, option.WithEndpoint(p.apiBase+"drive/v3/"))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("drive client: %w", err)
	}
	return svc, session, nil
}

// upstreamError translates Drive client errors.
func upstreamError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return &common.UpstreamError{Provider: Name, Status: gerr.Code, Message: msg, Err: err}
	}
	return providers.TransportError(Name, err)
}
