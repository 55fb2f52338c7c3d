package onedrive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
)

const defaultMimeType = "application/octet-stream"

type driveItem struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Size                 int64     `json:"size"`
	LastModifiedDateTime time.Time `json:"lastModifiedDateTime"`
	File                 *struct {
		MimeType string `json:"mimeType"`
	} `json:"file,omitempty"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder,omitempty"`
}

type driveItemPage struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

type driveQuota struct {
	Quota struct {
		Total     int64  `json:"total"`
		Used      int64  `json:"used"`
		Remaining int64  `json:"remaining"`
		Deleted   int64  `json:"deleted"`
		State     string `json:"state"`
	} `json:"quota"`
}

func (it *driveItem) toFile() *models.File {
	f := &models.File{
		ID:           it.ID,
		Name:         it.Name,
		Size:         it.Size,
		ModifiedTime: it.LastModifiedDateTime,
	}
	switch {
	case it.File != nil:
		f.MimeType = it.File.MimeType
	case it.Folder != nil:
		f.MimeType = "application/vnd.ms-onedrive.folder"
	}
	return f
}

func itemPath(fileID string) string {
	return "/me/drive/items/" + url.PathEscape(fileID)
}

// CreateFile uploads into the drive root with a simple upload, which Graph
// accepts for files up to 250 MB.
func (p *Provider) CreateFile(ctx context.Context, account *models.Account, file models.NewFile) (*models.File, models.Credential, error) {
	g, session, err := p.client(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	var item driveItem
	path := "/me/drive/root:/" + url.PathEscape(file.Name) + ":/content?@microsoft.graph.conflictBehavior=rename"
	if err := g.sendJSON(ctx, http.MethodPut, path, bytes.NewReader(file.Content), mimeType, &item); err != nil {
		return nil, session.Refreshed(), err
	}
	return item.toFile(), session.Refreshed(), nil
}

// ListFiles lists the drive root, or searches the whole drive when a query
// is given. The page token is the opaque next link returned by Graph.
func (p *Provider) ListFiles(ctx context.Context, account *models.Account, opts models.ListOptions) (*models.FileList, models.Credential, error) {
	g, session, err := p.client(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}

	path := fmt.Sprintf("/me/drive/root/children?$top=%d", pageSize)
	if opts.Query != "" {
		q := strings.ReplaceAll(opts.Query, "'", "''")
		path = fmt.Sprintf("/me/drive/root/search(q='%s')?$top=%d", url.PathEscape(q), pageSize)
	}
	if opts.PageToken != "" {
		if !strings.HasPrefix(opts.PageToken, p.graphURL+"/") {
			return nil, nil, fmt.Errorf("%w: invalid page token", common.ErrValidation)
		}
		path = opts.PageToken
	}

	var page driveItemPage
	if err := g.getJSON(ctx, path, &page); err != nil {
		return nil, session.Refreshed(), err
	}

	result := &models.FileList{Files: make([]models.File, 0, len(page.Value)), NextPageToken: page.NextLink}
	for i := range page.Value {
		result.Files = append(result.Files, *page.Value[i].toFile())
	}
	return result, session.Refreshed(), nil
}

func (p *Provider) GetFile(ctx context.Context, account *models.Account, fileID string) (*models.File, models.Credential, error) {
	g, session, err := p.client(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	var item driveItem
	if err := g.getJSON(ctx, itemPath(fileID), &item); err != nil {
		return nil, session.Refreshed(), err
	}
	return item.toFile(), session.Refreshed(), nil
}

// GetFileMedia follows the redirect Graph answers /content with.
func (p *Provider) GetFileMedia(ctx context.Context, account *models.Account, fileID string) (*models.Media, models.Credential, error) {
	g, session, err := p.client(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	resp, err := g.do(ctx, http.MethodGet, itemPath(fileID)+"/content", nil, "")
	if err != nil {
		return nil, session.Refreshed(), err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, session.Refreshed(), &common.UpstreamError{Provider: Name, Status: http.StatusBadGateway, Message: err.Error(), Err: err}
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	return &models.Media{MimeType: mimeType, Content: content}, session.Refreshed(), nil
}

// UpdateFile replaces content first, then renames, so a failed rename
// leaves the new content in place under the old name.
func (p *Provider) UpdateFile(ctx context.Context, account *models.Account, fileID string, update models.FileUpdate) (*models.File, models.Credential, error) {
	g, session, err := p.client(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	var item driveItem
	if update.Content != nil {
		mimeType := defaultMimeType
		if update.MimeType != nil && *update.MimeType != "" {
			mimeType = *update.MimeType
		}
		if err := g.sendJSON(ctx, http.MethodPut, itemPath(fileID)+"/content", bytes.NewReader(update.Content), mimeType, &item); err != nil {
			return nil, session.Refreshed(), err
		}
	}

	if update.Name != nil {
		if err := g.patchJSON(ctx, itemPath(fileID), map[string]string{"name": *update.Name}, &item); err != nil {
			return nil, session.Refreshed(), err
		}
	}

	if item.ID == "" {
		// mime type alone cannot be changed on OneDrive; report current state
		if err := g.getJSON(ctx, itemPath(fileID), &item); err != nil {
			return nil, session.Refreshed(), err
		}
	}
	return item.toFile(), session.Refreshed(), nil
}

func (p *Provider) DeleteFile(ctx context.Context, account *models.Account, fileID string) (models.Credential, error) {
	g, session, err := p.client(ctx, account)
	if err != nil {
		return nil, err
	}

	if err := g.sendJSON(ctx, http.MethodDelete, itemPath(fileID), nil, "", nil); err != nil {
		return session.Refreshed(), err
	}
	return session.Refreshed(), nil
}

func (p *Provider) GetQuota(ctx context.Context, account *models.Account) (*models.Quota, models.Credential, error) {
	g, session, err := p.client(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	var d driveQuota
	if err := g.getJSON(ctx, "/me/drive", &d); err != nil {
		return nil, session.Refreshed(), err
	}

	var total *int64
	if d.Quota.Total > 0 {
		t := d.Quota.Total
		total = &t
	}
	raw := map[string]any{
		"total":     d.Quota.Total,
		"used":      d.Quota.Used,
		"remaining": d.Quota.Remaining,
		"deleted":   d.Quota.Deleted,
		"state":     d.Quota.State,
	}
	return models.NewQuota(total, d.Quota.Used, raw), session.Refreshed(), nil
}
