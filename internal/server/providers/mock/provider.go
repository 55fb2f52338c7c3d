// Package mock is an in-memory storage provider for tests. It supports the
// whole capability contract and can simulate refreshes, latency and
// failures.
package mock

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
)

// CodePrefix precedes the external identity in authorization codes the
// mock accepts: "ok:alice" links the external account "alice".
const CodePrefix = "ok:"

type file struct {
	meta    models.File
	content []byte
}

// Provider implements providers.Provider in memory. Files are kept per
// account id.
type Provider struct {
	name string

	mu       sync.Mutex
	files    map[string]map[string]*file
	nextID   int
	refresh  models.Credential
	delay    time.Duration
	failures map[string]error
	calls    []string
}

var _ providers.Provider = (*Provider)(nil)

func NewProvider(name string) *Provider {
	return &Provider{
		name:     name,
		files:    make(map[string]map[string]*file),
		failures: make(map[string]error),
	}
}

// RefreshOnNextCall makes the next storage call report cred as refreshed.
func (p *Provider) RefreshOnNextCall(cred models.Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refresh = cred
}

// SetDelay makes every storage call wait d or until its context is done.
func (p *Provider) SetDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

// FailOn makes the named operation ("CreateFile", "GetFile", ...) fail
// with err. A nil err clears the failure.
func (p *Provider) FailOn(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

// Calls returns the operations invoked so far, in order.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Seed stores a file for accountID and returns its metadata.
func (p *Provider) Seed(accountID string, f models.NewFile) models.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.putLocked(accountID, f)
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) AuthURL(state string) string {
	return fmt.Sprintf("https://%s.mock.example/authorize?state=%s", p.name, url.QueryEscape(state))
}

func (p *Provider) HandleOAuthCallback(ctx context.Context, params providers.CallbackParams) (*models.Account, error) {
	if params.Error != "" {
		return nil, fmt.Errorf("%w: %s", common.ErrOAuthExchange, params.Error)
	}
	identity, ok := strings.CutPrefix(params.Code, CodePrefix)
	if !ok || identity == "" {
		return nil, fmt.Errorf("%w: invalid code", common.ErrOAuthExchange)
	}

	p.mu.Lock()
	p.nextID++
	n := p.nextID
	p.mu.Unlock()

	return &models.Account{
		ID:       params.CorrelationID,
		Provider: p.name,
		UserID:   params.UserID,
		Label:    identity + "@" + p.name,
		Status:   models.StatusConnected,
		Tokens: models.Credential{
			providers.FieldAccessToken:  fmt.Sprintf("access-%d", n),
			providers.FieldRefreshToken: "refresh-" + identity,
		},
		Profile: models.Profile{"id": identity},
	}, nil
}

func (p *Provider) IsSameAccount(existing, candidate *models.Account) bool {
	a, b := existing.Profile.String("id"), candidate.Profile.String("id")
	return existing.Provider == candidate.Provider && a != "" && a == b
}

// begin records the call, checks credentials and applies delay and failure
// simulation. The refreshed credential is consumed by the call.
func (p *Provider) begin(ctx context.Context, op string, account *models.Account) (models.Credential, error) {
	p.mu.Lock()
	p.calls = append(p.calls, op)
	delay := p.delay
	failure := p.failures[op]
	refreshed := p.refresh
	p.refresh = nil
	p.mu.Unlock()

	if account.Tokens.String(providers.FieldAccessToken) == "" {
		return nil, fmt.Errorf("%w: account has no credentials", common.ErrProviderUnavailable)
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return refreshed, ctx.Err()
		case <-timer.C:
		}
	}

	if failure != nil {
		return refreshed, failure
	}
	return refreshed, nil
}

func notFound(p *Provider, fileID string) error {
	return &common.UpstreamError{Provider: p.name, Status: 404, Message: "file not found: " + fileID}
}

func (p *Provider) putLocked(accountID string, f models.NewFile) models.File {
	p.nextID++
	mimeType := f.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	meta := models.File{
		ID:           fmt.Sprintf("file-%d", p.nextID),
		Name:         f.Name,
		MimeType:     mimeType,
		Size:         int64(len(f.Content)),
		ModifiedTime: time.Now().UTC(),
	}
	if p.files[accountID] == nil {
		p.files[accountID] = make(map[string]*file)
	}
	p.files[accountID][meta.ID] = &file{meta: meta, content: append([]byte(nil), f.Content...)}
	return meta
}

func (p *Provider) CreateFile(ctx context.Context, account *models.Account, f models.NewFile) (*models.File, models.Credential, error) {
	refreshed, err := p.begin(ctx, "CreateFile", account)
	if err != nil {
		return nil, refreshed, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	meta := p.putLocked(account.ID, f)
	return &meta, refreshed, nil
}

func (p *Provider) ListFiles(ctx context.Context, account *models.Account, opts models.ListOptions) (*models.FileList, models.Credential, error) {
	refreshed, err := p.begin(ctx, "ListFiles", account)
	if err != nil {
		return nil, refreshed, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := &models.FileList{Files: []models.File{}}
	for _, f := range p.files[account.ID] {
		if opts.Query == "" || strings.Contains(f.meta.Name, opts.Query) {
			out.Files = append(out.Files, f.meta)
		}
	}
	sort.Slice(out.Files, func(i, j int) bool { return out.Files[i].ID < out.Files[j].ID })
	if opts.PageSize > 0 && len(out.Files) > opts.PageSize {
		out.Files = out.Files[:opts.PageSize]
	}
	return out, refreshed, nil
}

func (p *Provider) GetFile(ctx context.Context, account *models.Account, fileID string) (*models.File, models.Credential, error) {
	refreshed, err := p.begin(ctx, "GetFile", account)
	if err != nil {
		return nil, refreshed, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[account.ID][fileID]
	if !ok {
		return nil, refreshed, notFound(p, fileID)
	}
	meta := f.meta
	return &meta, refreshed, nil
}

func (p *Provider) GetFileMedia(ctx context.Context, account *models.Account, fileID string) (*models.Media, models.Credential, error) {
	refreshed, err := p.begin(ctx, "GetFileMedia", account)
	if err != nil {
		return nil, refreshed, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[account.ID][fileID]
	if !ok {
		return nil, refreshed, notFound(p, fileID)
	}
	return &models.Media{MimeType: f.meta.MimeType, Content: append([]byte(nil), f.content...)}, refreshed, nil
}

func (p *Provider) UpdateFile(ctx context.Context, account *models.Account, fileID string, update models.FileUpdate) (*models.File, models.Credential, error) {
	refreshed, err := p.begin(ctx, "UpdateFile", account)
	if err != nil {
		return nil, refreshed, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.files[account.ID][fileID]
	if !ok {
		return nil, refreshed, notFound(p, fileID)
	}
	if update.Name != nil {
		f.meta.Name = *update.Name
	}
	if update.MimeType != nil {
		f.meta.MimeType = *update.MimeType
	}
	if update.Content != nil {
		f.content = append([]byte(nil), update.Content...)
		f.meta.Size = int64(len(update.Content))
	}
	f.meta.ModifiedTime = time.Now().UTC()
	meta := f.meta
	return &meta, refreshed, nil
}

func (p *Provider) DeleteFile(ctx context.Context, account *models.Account, fileID string) (models.Credential, error) {
	refreshed, err := p.begin(ctx, "DeleteFile", account)
	if err != nil {
		return refreshed, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.files[account.ID][fileID]; !ok {
		return refreshed, notFound(p, fileID)
	}
	delete(p.files[account.ID], fileID)
	return refreshed, nil
}

func (p *Provider) GetQuota(ctx context.Context, account *models.Account) (*models.Quota, models.Credential, error) {
	refreshed, err := p.begin(ctx, "GetQuota", account)
	if err != nil {
		return nil, refreshed, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var used int64
	for _, f := range p.files[account.ID] {
		used += f.meta.Size
	}
	total := int64(1 << 30)
	return models.NewQuota(&total, used, map[string]any{"limit": total, "usage": used}), refreshed, nil
}
