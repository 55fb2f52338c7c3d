// Package onedrive implements the OneDrive storage provider against the
// Microsoft Graph REST API.
package onedrive

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	Name = "onedrive"

	defaultGraphURL = "https://graph.microsoft.com/v1.0"
)

var scopes = []string{"offline_access", "Files.ReadWrite.All", "User.Read"}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Tenant defaults to "common", which admits both personal and work
	// accounts.
	Tenant string
}

type Option func(*Provider)

// WithHTTPClient routes token and Graph requests through c.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithEndpoints points the provider at alternative OAuth and Graph hosts.
func WithEndpoints(auth oauth2.Endpoint, graphURL string) Option {
	return func(p *Provider) {
		p.oauth.Endpoint = auth
		p.graphURL = graphURL
	}
}

type Provider struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	graphURL   string
}

var _ providers.Provider = (*Provider)(nil)

func New(cfg Config, opts ...Option) *Provider {
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = "common"
	}
	p := &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     microsoft.AzureADEndpoint(tenant),
		},
		graphURL: defaultGraphURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return Name
}

func (p *Provider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "query"))
}

type me struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

func (p *Provider) HandleOAuthCallback(ctx context.Context, params providers.CallbackParams) (*models.Account, error) {
	if params.Error != "" {
		return nil, fmt.Errorf("%w: authorization denied: %s", common.ErrOAuthExchange, params.Error)
	}
	if params.Code == "" {
		return nil, fmt.Errorf("%w: missing code", common.ErrOAuthExchange)
	}

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	tok, err := p.oauth.Exchange(ctx, params.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrOAuthExchange, err)
	}

	g := &graphClient{base: p.graphURL, http: p.oauth.Client(ctx, tok)}

	var user me
	if err := g.getJSON(ctx, "/me", &user); err != nil {
		return nil, fmt.Errorf("%w: profile: %v", common.ErrOAuthExchange, err)
	}

	label := user.Mail
	if label == "" {
		label = user.UserPrincipalName
	}
	if label == "" {
		label = user.DisplayName
	}
	if label == "" {
		label = "onedrive-" + user.ID
	}

	return &models.Account{
		ID:       params.CorrelationID,
		Provider: Name,
		UserID:   params.UserID,
		Label:    label,
		Status:   models.StatusConnected,
		Tokens:   providers.CredentialFromToken(tok),
		Profile: models.Profile{
			"id":                user.ID,
			"displayName":       user.DisplayName,
			"mail":              user.Mail,
			"userPrincipalName": user.UserPrincipalName,
		},
	}, nil
}

// IsSameAccount compares the Graph user id.
func (p *Provider) IsSameAccount(existing, candidate *models.Account) bool {
	if existing.Provider != candidate.Provider {
		return false
	}
	a, b := existing.Profile.String("id"), candidate.Profile.String("id")
	return a != "" && a == b
}

func (p *Provider) client(ctx context.Context, account *models.Account) (*graphClient, *providers.TokenSession, error) {
	session, err := providers.NewTokenSession(ctx, p.oauth, account.Tokens, p.httpClient)
	if err != nil {
		return nil, nil, err
	}
	return &graphClient{base: p.graphURL, http: session.Client()}, session, nil
}
