package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type driveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     string `json:"size"`
	Modified string `json:"modifiedTime"`
	content  []byte
}

// fakeGoogle serves the token, userinfo and Drive endpoints the provider
// talks to. Access tokens "at-1" (from the code exchange) and "at-2" (from
// a refresh) are accepted.
type fakeGoogle struct {
	t     *testing.T
	mu    sync.Mutex
	files map[string]*driveFile
	next  int
	srv   *httptest.Server
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	f := &fakeGoogle{t: t, files: map[string]*driveFile{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoogle) provider() *Provider {
	return New(Config{ClientID: "cid", ClientSecret: "csecret", RedirectURL: "http://localhost:3000/accounts/callback/google"},
		WithHTTPClient(f.srv.Client()),
		WithEndpoints(oauth2.Endpoint{AuthURL: f.srv.URL + "/auth", TokenURL: f.srv.URL + "/token"}, f.srv.URL+"/"),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func apiError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

func (f *fakeGoogle) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/token" {
		f.token(w, r)
		return
	}

	switch r.Header.Get("Authorization") {
	case "Bearer at-1", "Bearer at-2":
	default:
		apiError(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/oauth2/v2/userinfo":
		writeJSON(w, http.StatusOK, map[string]any{"id": "g-123", "email": "me@gmail.com", "name": "Me"})
	case path == "/drive/v3/about":
		writeJSON(w, http.StatusOK, map[string]any{"storageQuota": map[string]any{
			"limit": "1000", "usage": "700", "usageInDrive": "600", "usageInDriveTrash": "10",
		}})
	case path == "/drive/v3/files" && r.Method == http.MethodGet:
		f.list(w, r)
	case strings.HasSuffix(path, "/files") && r.Method == http.MethodPost:
		f.create(w, r)
	case strings.Contains(path, "/files/"):
		f.item(w, r, path[strings.LastIndex(path, "/")+1:])
	default:
		apiError(w, http.StatusNotFound, "no route "+r.Method+" "+path)
	}
}

func (f *fakeGoogle) token(w http.ResponseWriter, r *http.Request) {
	require.NoError(f.t, r.ParseForm())
	switch {
	case r.Form.Get("grant_type") == "authorization_code" && r.Form.Get("code") == "good-code":
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "at-1", "refresh_token": "rt-1", "token_type": "Bearer", "expires_in": 3600})
	case r.Form.Get("grant_type") == "refresh_token" && r.Form.Get("refresh_token") == "rt-1":
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "at-2", "token_type": "Bearer", "expires_in": 3600})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
	}
}

func (f *fakeGoogle) list(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "7", r.URL.Query().Get("pageSize"))
	files := []*driveFile{}
	for _, file := range f.files {
		if q := r.URL.Query().Get("q"); q == "" || strings.Contains(file.Name, q) {
			files = append(files, file)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "nextPageToken": "page-2"})
}

func (f *fakeGoogle) readUpload(r *http.Request) (map[string]string, []byte) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	require.NoError(f.t, err)
	require.Equal(f.t, "multipart/related", mediaType)

	mr := multipart.NewReader(r.Body, params["boundary"])
	metaPart, err := mr.NextPart()
	require.NoError(f.t, err)
	meta := map[string]string{}
	require.NoError(f.t, json.NewDecoder(metaPart).Decode(&meta))

	mediaPart, err := mr.NextPart()
	require.NoError(f.t, err)
	content, err := io.ReadAll(mediaPart)
	require.NoError(f.t, err)
	return meta, content
}

func (f *fakeGoogle) create(w http.ResponseWriter, r *http.Request) {
	meta, content := f.readUpload(r)
	f.next++
	file := &driveFile{
		ID:       fmt.Sprintf("f%d", f.next),
		Name:     meta["name"],
		MimeType: meta["mimeType"],
		Size:     fmt.Sprint(len(content)),
		Modified: "2024-05-01T10:00:00Z",
		content:  content,
	}
	f.files[file.ID] = file
	writeJSON(w, http.StatusOK, file)
}

func (f *fakeGoogle) item(w http.ResponseWriter, r *http.Request, id string) {
	file, ok := f.files[id]
	if !ok {
		apiError(w, http.StatusNotFound, "File not found: "+id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("alt") == "media" {
			w.Header().Set("Content-Type", file.MimeType)
			_, _ = w.Write(file.content)
			return
		}
		writeJSON(w, http.StatusOK, file)
	case http.MethodPatch:
		var meta map[string]string
		if strings.HasPrefix(r.URL.Path, "/upload/") {
			var content []byte
			meta, content = f.readUpload(r)
			file.content = content
			file.Size = fmt.Sprint(len(content))
		} else {
			require.NoError(f.t, json.NewDecoder(r.Body).Decode(&meta))
		}
		if meta["name"] != "" {
			file.Name = meta["name"]
		}
		if meta["mimeType"] != "" {
			file.MimeType = meta["mimeType"]
		}
		writeJSON(w, http.StatusOK, file)
	case http.MethodDelete:
		delete(f.files, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func connectedAccount() *models.Account {
	return &models.Account{
		ID:       "acc-1",
		Provider: Name,
		Status:   models.StatusConnected,
		Tokens: models.Credential{
			providers.FieldAccessToken:  "at-1",
			providers.FieldRefreshToken: "rt-1",
			providers.FieldExpiry:       time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		},
	}
}

func TestAuthURL(t *testing.T) {
	p := New(Config{ClientID: "cid", RedirectURL: "http://localhost:3000/accounts/callback/google"})

	u, err := url.Parse(p.AuthURL("the-state"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "the-state", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Contains(t, q.Get("scope"), "https://www.googleapis.com/auth/drive")
	assert.Contains(t, q.Get("scope"), "userinfo.email")
}

func TestHandleOAuthCallback(t *testing.T) {
	p := newFakeGoogle(t).provider()

	acc, err := p.HandleOAuthCallback(context.Background(), providers.CallbackParams{
		Code: "good-code", CorrelationID: "corr-1", UserID: "u1",
	})
	require.NoError(t, err)

	assert.Equal(t, "corr-1", acc.ID)
	assert.Equal(t, "u1", acc.UserID)
	assert.Equal(t, Name, acc.Provider)
	assert.Equal(t, "me@gmail.com", acc.Label)
	assert.Equal(t, models.StatusConnected, acc.Status)
	assert.Equal(t, "g-123", acc.Profile.String("id"))
	assert.Equal(t, "at-1", acc.Tokens.String(providers.FieldAccessToken))
	assert.Equal(t, "rt-1", acc.Tokens.String(providers.FieldRefreshToken))
}

func TestHandleOAuthCallback_Failures(t *testing.T) {
	p := newFakeGoogle(t).provider()

	for name, params := range map[string]providers.CallbackParams{
		"missing code":   {CorrelationID: "c"},
		"denied":         {Error: "access_denied", CorrelationID: "c"},
		"rejected grant": {Code: "bad-code", CorrelationID: "c"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.HandleOAuthCallback(context.Background(), params)
			assert.ErrorIs(t, err, common.ErrOAuthExchange)
		})
	}
}

func TestIsSameAccount(t *testing.T) {
	p := New(Config{})
	a := &models.Account{Provider: Name, Label: "me@gmail.com", Profile: models.Profile{"id": "g-1"}}

	assert.True(t, p.IsSameAccount(a, &models.Account{Provider: Name, Label: "renamed", Profile: models.Profile{"id": "g-1"}}))
	assert.False(t, p.IsSameAccount(a, &models.Account{Provider: Name, Label: "me@gmail.com", Profile: models.Profile{"id": "g-2"}}))
	assert.True(t, p.IsSameAccount(&models.Account{Provider: Name, Label: "me@gmail.com"}, a))
	assert.False(t, p.IsSameAccount(&models.Account{Provider: Name}, &models.Account{Provider: Name}))
	assert.False(t, p.IsSameAccount(a, &models.Account{Provider: "onedrive", Label: "me@gmail.com", Profile: models.Profile{"id": "g-1"}}))
}

func TestFileLifecycle(t *testing.T) {
	ctx := context.Background()
	p := newFakeGoogle(t).provider()
	acc := connectedAccount()

	created, refreshed, err := p.CreateFile(ctx, acc, models.NewFile{Name: "notes.txt", MimeType: "text/plain", Content: []byte("hello")})
	require.NoError(t, err)
	assert.Nil(t, refreshed)
	assert.Equal(t, "notes.txt", created.Name)
	assert.Equal(t, int64(5), created.Size)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), created.ModifiedTime)

	list, _, err := p.ListFiles(ctx, acc, models.ListOptions{Query: "notes", PageSize: 7})
	require.NoError(t, err)
	require.Len(t, list.Files, 1)
	assert.Equal(t, "page-2", list.NextPageToken)

	none, _, err := p.ListFiles(ctx, acc, models.ListOptions{Query: "budget", PageSize: 7})
	require.NoError(t, err)
	assert.Empty(t, none.Files)

	meta, _, err := p.GetFile(ctx, acc, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", meta.MimeType)

	media, _, err := p.GetFileMedia(ctx, acc, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), media.Content)
	assert.Equal(t, "text/plain", media.MimeType)

	name := "renamed.txt"
	updated, _, err := p.UpdateFile(ctx, acc, created.ID, models.FileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", updated.Name)

	updated, _, err = p.UpdateFile(ctx, acc, created.ID, models.FileUpdate{Content: []byte("hello world")})
	require.NoError(t, err)
	assert.Equal(t, int64(11), updated.Size)

	_, err = p.DeleteFile(ctx, acc, created.ID)
	require.NoError(t, err)

	_, _, err = p.GetFile(ctx, acc, created.ID)
	var ue *common.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusNotFound, ue.Status)
	assert.Contains(t, ue.Message, "File not found")
	assert.ErrorIs(t, err, common.ErrUpstream)
}

func TestGetQuota(t *testing.T) {
	p := newFakeGoogle(t).provider()

	q, _, err := p.GetQuota(context.Background(), connectedAccount())
	require.NoError(t, err)
	require.NotNil(t, q.TotalBytes)
	assert.Equal(t, int64(1000), *q.TotalBytes)
	assert.Equal(t, int64(600), q.UsedBytes)
	assert.Equal(t, int64(400), *q.AvailableBytes)
	assert.Equal(t, "700", q.Raw["usage"])
}

func TestExpiredTokenIsRefreshedAndReported(t *testing.T) {
	p := newFakeGoogle(t).provider()
	acc := connectedAccount()
	acc.Tokens[providers.FieldAccessToken] = "stale"
	acc.Tokens[providers.FieldExpiry] = time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)

	_, refreshed, err := p.ListFiles(context.Background(), acc, models.ListOptions{PageSize: 7})
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.Equal(t, "at-2", refreshed[providers.FieldAccessToken])
}

func TestMissingCredentials(t *testing.T) {
	p := newFakeGoogle(t).provider()

	_, _, err := p.GetQuota(context.Background(), &models.Account{ID: "pending", Provider: Name})
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
}

func TestRevokedRefreshToken(t *testing.T) {
	p := newFakeGoogle(t).provider()
	acc := connectedAccount()
	acc.Tokens[providers.FieldRefreshToken] = "revoked"
	acc.Tokens[providers.FieldExpiry] = time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)

	_, err := p.DeleteFile(context.Background(), acc, "f1")
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
}

func TestUpstreamUnauthorized(t *testing.T) {
	p := newFakeGoogle(t).provider()
	acc := connectedAccount()
	acc.Tokens[providers.FieldAccessToken] = "unknown-but-unexpired"

	_, _, err := p.GetFile(context.Background(), acc, "f1")
	var ue *common.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusUnauthorized, ue.Status)
}
