package models

import "time"

// File is provider file metadata normalized for clients. It is never
// persisted.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType,omitempty"`
	Size         int64     `json:"size"`
	ModifiedTime time.Time `json:"modifiedTime,omitempty"`
}

// FileList is one page of a listing.
type FileList struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// ListOptions narrows a listing. Zero values mean provider defaults.
type ListOptions struct {
	Query     string
	PageSize  int
	PageToken string
}

// DefaultPageSize is used when ListOptions.PageSize is not positive.
const DefaultPageSize = 50

// NewFile is the input of a create call.
type NewFile struct {
	Name     string
	MimeType string
	Content  []byte
}

// FileUpdate changes metadata, content or both. Content is replaced only
// when non-nil.
type FileUpdate struct {
	Name     *string
	MimeType *string
	Content  []byte
}

// Empty reports whether the update would change nothing.
func (u FileUpdate) Empty() bool {
	return u.Name == nil && u.MimeType == nil && u.Content == nil
}

// Media is the raw content of a file.
type Media struct {
	MimeType string
	Content  []byte
}

// Download joins metadata and media of one file.
type Download struct {
	Name     string
	MimeType string
	Content  []byte
}

// Quota is normalized storage usage. Total and Available are nil when the
// provider reports unlimited storage. Raw holds the provider's own figures.
type Quota struct {
	TotalBytes     *int64         `json:"totalBytes,omitempty"`
	UsedBytes      int64          `json:"usedBytes"`
	AvailableBytes *int64         `json:"availableBytes,omitempty"`
	Raw            map[string]any `json:"raw,omitempty"`
}

// NewQuota normalizes total/used figures: available = max(total-used, 0).
// A nil total means unlimited.
func NewQuota(total *int64, used int64, raw map[string]any) *Quota {
	q := &Quota{TotalBytes: total, UsedBytes: used, Raw: raw}
	if total != nil {
		avail := *total - used
		if avail < 0 {
			avail = 0
		}
		q.AvailableBytes = &avail
	}
	return q
}
