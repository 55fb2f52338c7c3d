package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/logging"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/repositories/users"
)

// tokenSyncTimeout bounds persisting a refreshed credential. The write is
// detached from the request context so a refresh observed by a call that
// then timed out is still stored.
const tokenSyncTimeout = 5 * time.Second

// TokenSync persists credentials that providers renewed during a call.
type TokenSync struct {
	repo users.Repository
	log  logging.Logger
}

func NewTokenSync(repo users.Repository, log logging.Logger) *TokenSync {
	return &TokenSync{repo: repo, log: log}
}

// Sync merges refreshed into the stored credential of account. Fields not
// present in refreshed keep their stored values. Failures are logged and
// never returned: the call that triggered the refresh has already
// succeeded or failed on its own.
func (s *TokenSync) Sync(ctx context.Context, account *models.Account, refreshed models.Credential) {
	if account == nil || len(refreshed) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tokenSyncTimeout)
	defer cancel()

	fields := make([]string, 0, len(refreshed))
	for k := range refreshed {
		fields = append(fields, k)
	}

	if _, err := s.repo.MergeCredential(ctx, account.UserID, account.ID, refreshed); err != nil {
		s.log.Warn(ctx, "failed to persist refreshed credential",
			"user_id", account.UserID, "account_id", account.ID, "provider", account.Provider, "error", err)
		return
	}
	s.log.Debug(ctx, "refreshed credential persisted",
		"user_id", account.UserID, "account_id", account.ID, "provider", account.Provider, "fields", fields)
}
