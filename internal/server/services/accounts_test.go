package services

import (
	"context"
	"strings"
	"testing"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
	"github.com/dmitrijs2005/unidrive/internal/server/providers/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_Initiate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@example.com")

	authURL, placeholder, err := f.accounts.Initiate(ctx, u.ID, "mock")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(authURL, "https://mock.mock.example/authorize?state="))
	assert.Equal(t, models.StatusPending, placeholder.Status)

	st, err := f.state.Decode(stateOf(t, authURL))
	require.NoError(t, err)
	assert.Equal(t, u.ID, st.UserID)
	assert.Equal(t, placeholder.ID, st.CSRF)

	list, err := f.accounts.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusPending, list[0].Status)
}

func TestAccountService_Initiate_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@example.com")

	_, _, err := f.accounts.Initiate(ctx, u.ID, "dropbox")
	assert.ErrorIs(t, err, common.ErrUnknownProvider)

	_, _, err = f.accounts.Initiate(ctx, "missing", "mock")
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestAccountService_LinkEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@example.com")

	acc := f.link(t, u.ID, "alice")
	assert.Equal(t, models.StatusConnected, acc.Status)
	assert.Equal(t, "alice@mock", acc.Label)
	assert.Equal(t, u.ID, acc.UserID)
	assert.NotEmpty(t, acc.Tokens.String(providers.FieldAccessToken))

	list, err := f.accounts.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, acc.ID, list[0].ID)
	assert.Equal(t, models.StatusConnected, list[0].Status)
}

func TestAccountService_RelinkKeepsOriginalRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@example.com")

	first := f.link(t, u.ID, "alice")
	second := f.link(t, u.ID, "alice")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.NotEqual(t, first.Tokens.String(providers.FieldAccessToken), second.Tokens.String(providers.FieldAccessToken))

	list, err := f.accounts.List(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	other := f.link(t, u.ID, "bob")
	assert.NotEqual(t, first.ID, other.ID)
	list, err = f.accounts.List(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestAccountService_Finalize_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@example.com")

	authURL, placeholder, err := f.accounts.Initiate(ctx, u.ID, "mock")
	require.NoError(t, err)
	state := stateOf(t, authURL)

	t.Run("unknown provider", func(t *testing.T) {
		_, err := f.accounts.Finalize(ctx, "dropbox", providers.CallbackParams{Code: mock.CodePrefix + "a", State: state})
		assert.ErrorIs(t, err, common.ErrUnknownProvider)
	})
	t.Run("tampered state", func(t *testing.T) {
		_, err := f.accounts.Finalize(ctx, "mock", providers.CallbackParams{Code: mock.CodePrefix + "a", State: state + "x"})
		assert.ErrorIs(t, err, common.ErrOAuthExchange)
	})
	t.Run("missing state", func(t *testing.T) {
		_, err := f.accounts.Finalize(ctx, "mock", providers.CallbackParams{Code: mock.CodePrefix + "a"})
		assert.ErrorIs(t, err, common.ErrOAuthExchange)
	})
	t.Run("consent denied", func(t *testing.T) {
		_, err := f.accounts.Finalize(ctx, "mock", providers.CallbackParams{Error: "access_denied", State: state})
		assert.ErrorIs(t, err, common.ErrOAuthExchange)
	})
	t.Run("state for another provider", func(t *testing.T) {
		f.registry.Register(mock.NewProvider("other"))
		_, err := f.accounts.Finalize(ctx, "other", providers.CallbackParams{Code: mock.CodePrefix + "a", State: state})
		assert.ErrorIs(t, err, common.ErrOAuthExchange)
	})

	// The placeholder survives failed attempts.
	got, err := f.repo.GetAccount(ctx, u.ID, placeholder.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	t.Run("replayed callback", func(t *testing.T) {
		_, err := f.accounts.Finalize(ctx, "mock", providers.CallbackParams{Code: mock.CodePrefix + "a", State: state})
		require.NoError(t, err)
		_, err = f.accounts.Finalize(ctx, "mock", providers.CallbackParams{Code: mock.CodePrefix + "a", State: state})
		assert.ErrorIs(t, err, common.ErrOAuthExchange)
	})
}

func TestAccountService_Finalize_WithoutPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@example.com")

	authURL, placeholder, err := f.accounts.Initiate(ctx, u.ID, "mock")
	require.NoError(t, err)
	require.NoError(t, f.accounts.Remove(ctx, u.ID, placeholder.ID))

	_, err = f.accounts.Finalize(ctx, "mock", providers.CallbackParams{Code: mock.CodePrefix + "a", State: stateOf(t, authURL)})
	assert.ErrorIs(t, err, common.ErrOAuthExchange)

	list, err := f.accounts.List(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAccountService_Remove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@example.com")
	acc := f.link(t, u.ID, "alice")

	require.NoError(t, f.accounts.Remove(ctx, u.ID, acc.ID))
	require.NoError(t, f.accounts.Remove(ctx, u.ID, acc.ID))
	require.NoError(t, f.accounts.Remove(ctx, "missing", acc.ID))

	list, err := f.accounts.List(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAccountService_TenantIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	b := f.user(t, "b@example.com")

	acc := f.link(t, a.ID, "alice")

	list, err := f.accounts.List(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, f.accounts.Remove(ctx, b.ID, acc.ID))
	list, err = f.accounts.List(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Equal(t, []string{"mock"}, f.accounts.Providers())
}

// exchangeHook runs a function while the authorization code is exchanged.
type exchangeHook struct {
	*mock.Provider
	during func()
}

func (p *exchangeHook) HandleOAuthCallback(ctx context.Context, params providers.CallbackParams) (*models.Account, error) {
	p.during()
	return p.Provider.HandleOAuthCallback(ctx, params)
}

func TestAccountService_Finalize_PlaceholderRemovedDuringExchange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@example.com")

	authURL, placeholder, err := f.accounts.Initiate(ctx, u.ID, "mock")
	require.NoError(t, err)

	f.registry.Register(&exchangeHook{Provider: f.provider, during: func() {
		require.NoError(t, f.accounts.Remove(ctx, u.ID, placeholder.ID))
	}})

	_, err = f.accounts.Finalize(ctx, "mock", providers.CallbackParams{Code: mock.CodePrefix + "alice", State: stateOf(t, authURL)})
	assert.ErrorIs(t, err, common.ErrOAuthExchange)

	list, err := f.accounts.List(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAccountService_Finalize_RelinkAfterPlaceholderRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "a@example.com")
	first := f.link(t, u.ID, "alice")

	authURL, placeholder, err := f.accounts.Initiate(ctx, u.ID, "mock")
	require.NoError(t, err)
	f.registry.Register(&exchangeHook{Provider: f.provider, during: func() {
		require.NoError(t, f.accounts.Remove(ctx, u.ID, placeholder.ID))
	}})

	_, err = f.accounts.Finalize(ctx, "mock", providers.CallbackParams{Code: mock.CodePrefix + "alice", State: stateOf(t, authURL)})
	assert.ErrorIs(t, err, common.ErrOAuthExchange)

	stored, err := f.repo.GetAccount(ctx, u.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Tokens, stored.Tokens)
}
