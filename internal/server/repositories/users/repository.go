// Package users is the account store: users and the storage accounts
// embedded in them. Every implementation scopes account operations to the
// owning user and applies each mutation atomically.
package users

import (
	"context"

	"github.com/dmitrijs2005/unidrive/internal/server/models"
)

// SameAccountFunc reports whether two accounts denote the same external
// identity. It must not compare ids.
type SameAccountFunc func(existing, candidate *models.Account) bool

type Repository interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByPhoneNumber(ctx context.Context, phone string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	// UpdateUser changes profile fields; accounts are never touched.
	UpdateUser(ctx context.Context, userID string, update models.UserUpdate) (*models.User, error)

	// ListAccounts returns the accounts of userID in insertion order, or an
	// empty list when the user does not exist.
	ListAccounts(ctx context.Context, userID string) ([]models.Account, error)
	GetAccount(ctx context.Context, userID, accountID string) (*models.Account, error)
	// SaveAccount upserts account into the user's list. An existing account
	// of the same provider for which same returns true is replaced, keeping
	// its id and creation time, and any other entry with account's id is
	// dropped. Otherwise an entry with the same id is replaced, otherwise the
	// account is appended. The stored record is returned.
	SaveAccount(ctx context.Context, userID string, account *models.Account, same SameAccountFunc) (*models.Account, error)
	// FinalizeAccount is SaveAccount for a linking attempt. It fails with
	// common.ErrAccountNotFound unless a pending account with account's id
	// is present when the mutation runs.
	FinalizeAccount(ctx context.Context, userID string, account *models.Account, same SameAccountFunc) (*models.Account, error)
	// UpdateAccountForUser replaces the entry with account's id or appends it.
	UpdateAccountForUser(ctx context.Context, userID string, account *models.Account) (*models.Account, error)
	// MergeCredential overwrites the given credential fields of one account,
	// leaving the other fields as stored.
	MergeCredential(ctx context.Context, userID, accountID string, update models.Credential) (*models.Account, error)
	// DeleteAccount removes the account if present. Removing an absent
	// account or an account of an unknown user is not an error.
	DeleteAccount(ctx context.Context, userID, accountID string) error
}
