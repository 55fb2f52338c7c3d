package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/logging"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/providers"
	"github.com/dmitrijs2005/unidrive/internal/server/repositories/users"
	"github.com/google/uuid"
)

// AccountService links storage accounts to users. A linking attempt starts
// with Initiate, which stores a pending placeholder keyed by a fresh
// correlation token, and completes with Finalize when the provider redirects
// back.
type AccountService struct {
	repo     users.Repository
	registry *providers.Registry
	state    *providers.StateCodec
	log      logging.Logger

	now   func() time.Time
	newID func() string
}

func NewAccountService(repo users.Repository, registry *providers.Registry, state *providers.StateCodec, log logging.Logger) *AccountService {
	return &AccountService{
		repo:     repo,
		registry: registry,
		state:    state,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Initiate starts linking an account of providerName to userID. It stores a
// pending placeholder and returns the URL the user must visit to grant
// consent.
func (s *AccountService) Initiate(ctx context.Context, userID, providerName string) (string, *models.Account, error) {
	p, ok := s.registry.Get(providerName)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", common.ErrUnknownProvider, providerName)
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return "", nil, err
	}

	correlationID := s.newID()
	state, err := s.state.Encode(providers.State{CSRF: correlationID, UserID: userID})
	if err != nil {
		return "", nil, fmt.Errorf("%w: encoding state: %v", common.ErrInternal, err)
	}

	placeholder, err := s.repo.UpdateAccountForUser(ctx, userID, &models.Account{
		ID:        correlationID,
		Provider:  providerName,
		UserID:    userID,
		Status:    models.StatusPending,
		CreatedAt: s.now(),
	})
	if err != nil {
		return "", nil, err
	}

	s.log.Info(ctx, "account linking initiated", "user_id", userID, "provider", providerName, "account_id", correlationID)
	return p.AuthURL(state), placeholder, nil
}

// Finalize completes a linking attempt from the parameters of the OAuth
// redirect. The user is recovered from the signed state and must still hold
// the pending placeholder of that attempt. If the user already linked the
// same external identity, that record is refreshed in place and the
// placeholder is dropped.
func (s *AccountService) Finalize(ctx context.Context, providerName string, params providers.CallbackParams) (*models.Account, error) {
	p, ok := s.registry.Get(providerName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownProvider, providerName)
	}

	st, err := s.state.Decode(params.State)
	if err != nil {
		return nil, err
	}

	placeholder, err := s.repo.GetAccount(ctx, st.UserID, st.CSRF)
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: no pending linking attempt", common.ErrOAuthExchange)
		}
		return nil, err
	}
	if placeholder.Provider != providerName {
		return nil, fmt.Errorf("%w: state was issued for %q", common.ErrOAuthExchange, placeholder.Provider)
	}
	if placeholder.Connected() {
		return nil, fmt.Errorf("%w: linking attempt already completed", common.ErrOAuthExchange)
	}

	params.CorrelationID = st.CSRF
	params.UserID = st.UserID

	account, err := p.HandleOAuthCallback(ctx, params)
	if err != nil {
		s.log.Warn(ctx, "oauth callback failed", "user_id", st.UserID, "provider", providerName, "error", err)
		return nil, err
	}

	account.ID = st.CSRF
	account.UserID = st.UserID
	account.Provider = providerName
	account.Status = models.StatusConnected
	account.CreatedAt = placeholder.CreatedAt

	stored, err := s.repo.FinalizeAccount(ctx, st.UserID, account, p.IsSameAccount)
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			s.log.Warn(ctx, "linking attempt withdrawn during exchange", "user_id", st.UserID, "provider", providerName)
			return nil, fmt.Errorf("%w: no pending linking attempt", common.ErrOAuthExchange)
		}
		return nil, err
	}

	s.log.Info(ctx, "account linked", "user_id", st.UserID, "provider", providerName,
		"account_id", stored.ID, "relinked", stored.ID != st.CSRF)
	return stored, nil
}

// Remove unlinks an account. Removing an absent account is not an error.
func (s *AccountService) Remove(ctx context.Context, userID, accountID string) error {
	if err := s.repo.DeleteAccount(ctx, userID, accountID); err != nil {
		return err
	}
	s.log.Info(ctx, "account removed", "user_id", userID, "account_id", accountID)
	return nil
}

// List returns the summaries of userID's accounts in linking order.
func (s *AccountService) List(ctx context.Context, userID string) ([]models.AccountSummary, error) {
	accounts, err := s.repo.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.AccountSummary, 0, len(accounts))
	for i := range accounts {
		out = append(out, accounts[i].Summary())
	}
	return out, nil
}

// Providers lists the names accounts can be linked with.
func (s *AccountService) Providers() []string {
	return s.registry.Names()
}
