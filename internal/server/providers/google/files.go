package google

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const defaultMimeType = "application/octet-stream"

func (p *Provider) CreateFile(ctx context.Context, account *models.Account, file models.NewFile) (*models.File, models.Credential, error) {
	svc, session, err := p.driveService(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	created, err := svc.Files.Create(&drive.File{Name: file.Name, MimeType: mimeType}).
		Media(bytes.NewReader(file.Content), googleapi.ContentType(mimeType)).
		Fields(fileFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, session.Refreshed(), upstreamError(err)
	}
	return toFile(created), session.Refreshed(), nil
}

func (p *Provider) ListFiles(ctx context.Context, account *models.Account, opts models.ListOptions) (*models.FileList, models.Credential, error) {
	svc, session, err := p.driveService(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}

	call := svc.Files.List().
		PageSize(int64(pageSize)).
		Fields("nextPageToken, files(" + fileFields + ")").
		Context(ctx)
	if opts.Query != "" {
		call = call.Q(opts.Query)
	}
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}

	list, err := call.Do()
	if err != nil {
		return nil, session.Refreshed(), upstreamError(err)
	}

	result := &models.FileList{Files: make([]models.File, 0, len(list.Files)), NextPageToken: list.NextPageToken}
	for _, f := range list.Files {
		result.Files = append(result.Files, *toFile(f))
	}
	return result, session.Refreshed(), nil
}

func (p *Provider) GetFile(ctx context.Context, account *models.Account, fileID string) (*models.File, models.Credential, error) {
	svc, session, err := p.driveService(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	f, err := svc.Files.Get(fileID).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return nil, session.Refreshed(), upstreamError(err)
	}
	return toFile(f), session.Refreshed(), nil
}

func (p *Provider) GetFileMedia(ctx context.Context, account *models.Account, fileID string) (*models.Media, models.Credential, error) {
	svc, session, err := p.driveService(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	resp, err := svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, session.Refreshed(), upstreamError(err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, session.Refreshed(), upstreamError(err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	return &models.Media{MimeType: mimeType, Content: content}, session.Refreshed(), nil
}

func (p *Provider) UpdateFile(ctx context.Context, account *models.Account, fileID string, update models.FileUpdate) (*models.File, models.Credential, error) {
	svc, session, err := p.driveService(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	meta := &drive.File{}
	if update.Name != nil {
		meta.Name = *update.Name
	}
	if update.MimeType != nil {
		meta.MimeType = *update.MimeType
	}

	call := svc.Files.Update(fileID, meta).Fields(fileFields).Context(ctx)
	if update.Content != nil {
		mimeType := defaultMimeType
		if update.MimeType != nil && *update.MimeType != "" {
			mimeType = *update.MimeType
		}
		call = call.Media(bytes.NewReader(update.Content), googleapi.ContentType(mimeType))
	}

	f, err := call.Do()
	if err != nil {
		return nil, session.Refreshed(), upstreamError(err)
	}
	return toFile(f), session.Refreshed(), nil
}

func (p *Provider) DeleteFile(ctx context.Context, account *models.Account, fileID string) (models.Credential, error) {
	svc, session, err := p.driveService(ctx, account)
	if err != nil {
		return nil, err
	}

	if err := svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return session.Refreshed(), upstreamError(err)
	}
	return session.Refreshed(), nil
}

// GetQuota normalizes storageQuota: a zero limit means unlimited, usage
// prefers usageInDrive over the account-wide usage.
func (p *Provider) GetQuota(ctx context.Context, account *models.Account) (*models.Quota, models.Credential, error) {
	svc, session, err := p.driveService(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	about, err := svc.About.Get().Fields("storageQuota").Context(ctx).Do()
	if err != nil {
		return nil, session.Refreshed(), upstreamError(err)
	}

	q := about.StorageQuota
	if q == nil {
		q = &drive.AboutStorageQuota{}
	}

	var total *int64
	if q.Limit > 0 {
		limit := q.Limit
		total = &limit
	}
	used := q.UsageInDrive
	if used == 0 {
		used = q.Usage
	}

	raw := map[string]any{
		"limit":             strconv.FormatInt(q.Limit, 10),
		"usage":             strconv.FormatInt(q.Usage, 10),
		"usageInDrive":      strconv.FormatInt(q.UsageInDrive, 10),
		"usageInDriveTrash": strconv.FormatInt(q.UsageInDriveTrash, 10),
	}
	return models.NewQuota(total, used, raw), session.Refreshed(), nil
}

func toFile(f *drive.File) *models.File {
	out := &models.File{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     f.Size,
	}
	if f.ModifiedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
			out.ModifiedTime = t
		}
	}
	return out
}
