package services

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/logging"
	"github.com/dmitrijs2005/unidrive/internal/server/config"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
	"github.com/dmitrijs2005/unidrive/internal/server/providers/mock"
	"github.com/dmitrijs2005/unidrive/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type fixture struct {
	repo     *users.MemoryRepository
	provider *mock.Provider
	registry *providers.Registry
	state    *providers.StateCodec

	users    *UserService
	accounts *AccountService
	storage  *StorageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{SecretKey: "k", AccessTokenValidityDuration: time.Hour}

	f := &fixture{
		repo:     users.NewMemoryRepository(),
		provider: mock.NewProvider("mock"),
		state:    providers.NewStateCodec([]byte("k"), time.Minute),
	}
	f.registry = providers.NewRegistry(f.provider)
	f.users = NewUserService(f.repo, cfg, logging.Nop())
	f.accounts = NewAccountService(f.repo, f.registry, f.state, logging.Nop())
	f.storage = NewStorageService(f.repo, f.registry, NewTokenSync(f.repo, logging.Nop()), time.Second, logging.Nop())
	return f
}

func (f *fixture) user(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := f.repo.CreateUser(context.Background(), &models.User{Email: email, PasswordHash: "x"})
	require.NoError(t, err)
	return u
}

// stateOf extracts the OAuth state from an authorization URL.
func stateOf(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

// link runs a full linking attempt for the external identity.
func (f *fixture) link(t *testing.T, userID, identity string) *models.Account {
	t.Helper()
	ctx := context.Background()
	authURL, _, err := f.accounts.Initiate(ctx, userID, f.provider.Name())
	require.NoError(t, err)
	acc, err := f.accounts.Finalize(ctx, f.provider.Name(), providers.CallbackParams{
		Code:  mock.CodePrefix + identity,
		State: stateOf(t, authURL),
	})
	require.NoError(t, err)
	return acc
}
