package users

import (
	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
)

// The helpers below are shared by every Repository implementation. They
// never modify their input slice.

func upsertByIdentity(accounts []models.Account, candidate models.Account, same SameAccountFunc) ([]models.Account, models.Account) {
	match := -1
	if same != nil {
		for i := range accounts {
			if accounts[i].Provider == candidate.Provider && same(&accounts[i], &candidate) {
				match = i
				break
			}
		}
	}

	if match < 0 {
		return upsertByID(accounts, candidate)
	}

	existing := accounts[match]
	stored := candidate
	stored.ID = existing.ID
	if !existing.CreatedAt.IsZero() {
		stored.CreatedAt = existing.CreatedAt
	}

	out := make([]models.Account, 0, len(accounts))
	for i := range accounts {
		switch {
		case i == match:
			out = append(out, stored)
		case accounts[i].ID == candidate.ID:
			// the placeholder of this linking attempt collapses into the match
		default:
			out = append(out, accounts[i])
		}
	}
	return out, stored
}

// finalizeAccount is upsertByIdentity for a linking attempt: it requires the
// pending placeholder with candidate's id to still be present.
func finalizeAccount(accounts []models.Account, candidate models.Account, same SameAccountFunc) ([]models.Account, models.Account, error) {
	placeholder, ok := findByID(accounts, candidate.ID)
	if !ok || placeholder.Status != models.StatusPending {
		return nil, models.Account{}, common.ErrAccountNotFound
	}
	next, stored := upsertByIdentity(accounts, candidate, same)
	return next, stored, nil
}

func upsertByID(accounts []models.Account, account models.Account) ([]models.Account, models.Account) {
	out := make([]models.Account, len(accounts), len(accounts)+1)
	copy(out, accounts)

	for i := range out {
		if out[i].ID == account.ID {
			if account.CreatedAt.IsZero() {
				account.CreatedAt = out[i].CreatedAt
			}
			out[i] = account
			return out, account
		}
	}
	return append(out, account), account
}

func mergeCredential(accounts []models.Account, accountID string, update models.Credential) ([]models.Account, models.Account, error) {
	out := make([]models.Account, len(accounts))
	copy(out, accounts)

	for i := range out {
		if out[i].ID == accountID {
			out[i].Tokens = out[i].Tokens.Merge(update)
			return out, out[i], nil
		}
	}
	return nil, models.Account{}, common.ErrAccountNotFound
}

func removeByID(accounts []models.Account, accountID string) ([]models.Account, bool) {
	out := make([]models.Account, 0, len(accounts))
	removed := false
	for i := range accounts {
		if accounts[i].ID == accountID {
			removed = true
			continue
		}
		out = append(out, accounts[i])
	}
	return out, removed
}

func findByID(accounts []models.Account, accountID string) (*models.Account, bool) {
	for i := range accounts {
		if accounts[i].ID == accountID {
			return accounts[i].Clone(), true
		}
	}
	return nil, false
}

func cloneAccounts(accounts []models.Account) []models.Account {
	out := make([]models.Account, len(accounts))
	for i := range accounts {
		out[i] = *accounts[i].Clone()
	}
	return out
}
