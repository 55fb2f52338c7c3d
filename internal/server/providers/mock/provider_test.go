package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linked(t *testing.T, p *Provider, identity string) *models.Account {
	t.Helper()
	acc, err := p.HandleOAuthCallback(context.Background(), providers.CallbackParams{Code: CodePrefix + identity, CorrelationID: "c-" + identity, UserID: "u1"})
	require.NoError(t, err)
	return acc
}

func TestCallbackAndIdentity(t *testing.T) {
	p := NewProvider("mock")

	a := linked(t, p, "alice")
	b := linked(t, p, "alice")
	c := linked(t, p, "carol")

	assert.Equal(t, "c-alice", a.ID)
	assert.Equal(t, "alice@mock", a.Label)
	assert.NotEqual(t, a.Tokens.String(providers.FieldAccessToken), b.Tokens.String(providers.FieldAccessToken))
	assert.True(t, p.IsSameAccount(a, b))
	assert.False(t, p.IsSameAccount(a, c))

	_, err := p.HandleOAuthCallback(context.Background(), providers.CallbackParams{Code: "nope"})
	assert.ErrorIs(t, err, common.ErrOAuthExchange)
	_, err = p.HandleOAuthCallback(context.Background(), providers.CallbackParams{Error: "access_denied"})
	assert.ErrorIs(t, err, common.ErrOAuthExchange)
}

func TestFiles(t *testing.T) {
	ctx := context.Background()
	p := NewProvider("mock")
	acc := linked(t, p, "alice")

	f, _, err := p.CreateFile(ctx, acc, models.NewFile{Name: "a.txt", Content: []byte("abc")})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", f.MimeType)

	list, _, err := p.ListFiles(ctx, acc, models.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list.Files, 1)

	media, _, err := p.GetFileMedia(ctx, acc, f.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), media.Content)

	q, _, err := p.GetQuota(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(3), q.UsedBytes)

	_, err = p.DeleteFile(ctx, acc, f.ID)
	require.NoError(t, err)

	_, _, err = p.GetFile(ctx, acc, f.ID)
	assert.ErrorIs(t, err, common.ErrUpstream)

	assert.Equal(t, []string{"CreateFile", "ListFiles", "GetFileMedia", "GetQuota", "DeleteFile", "GetFile"}, p.Calls())
}

func TestSimulation(t *testing.T) {
	p := NewProvider("mock")
	acc := linked(t, p, "alice")

	p.RefreshOnNextCall(models.Credential{providers.FieldAccessToken: "renewed"})
	_, refreshed, err := p.ListFiles(context.Background(), acc, models.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "renewed", refreshed[providers.FieldAccessToken])

	_, refreshed, err = p.ListFiles(context.Background(), acc, models.ListOptions{})
	require.NoError(t, err)
	assert.Nil(t, refreshed)

	boom := errors.New("boom")
	p.FailOn("GetQuota", boom)
	_, _, err = p.GetQuota(context.Background(), acc)
	assert.ErrorIs(t, err, boom)
	p.FailOn("GetQuota", nil)

	p.SetDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = p.GetQuota(ctx, acc)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, _, err = p.GetQuota(context.Background(), &models.Account{ID: "pending"})
	assert.ErrorIs(t, err, common.ErrProviderUnavailable)
}
