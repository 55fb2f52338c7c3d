package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users for the lifetime of the process. A single
// mutex guards the whole arena so every mutation is atomic. Values handed
// out are deep copies.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*models.User)}
}

func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findLocked(func(u *models.User) bool { return u.Email == user.Email }) != nil {
		return nil, common.ErrAlreadyExists
	}
	if user.PhoneNumber != "" && r.findLocked(func(u *models.User) bool { return u.PhoneNumber == user.PhoneNumber }) != nil {
		return nil, common.ErrAlreadyExists
	}

	stored := user.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if _, ok := r.users[stored.ID]; ok {
		return nil, common.ErrAlreadyExists
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.Accounts == nil {
		stored.Accounts = []models.Account{}
	}

	r.users[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *MemoryRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u := r.findLocked(func(u *models.User) bool { return u.Email == email })
	if u == nil {
		return nil, common.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) GetUserByPhoneNumber(ctx context.Context, phone string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u := r.findLocked(func(u *models.User) bool { return phone != "" && u.PhoneNumber == phone })
	if u == nil {
		return nil, common.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) ListUsers(ctx context.Context) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) UpdateUser(ctx context.Context, userID string, update models.UserUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}

	if update.Email != nil && r.findLocked(func(o *models.User) bool { return o.ID != userID && o.Email == *update.Email }) != nil {
		return nil, common.ErrAlreadyExists
	}
	if update.PhoneNumber != nil && *update.PhoneNumber != "" &&
		r.findLocked(func(o *models.User) bool { return o.ID != userID && o.PhoneNumber == *update.PhoneNumber }) != nil {
		return nil, common.ErrAlreadyExists
	}

	applyUserUpdate(u, update)
	return u.Clone(), nil
}

func (r *MemoryRepository) ListAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return []models.Account{}, nil
	}
	return cloneAccounts(u.Accounts), nil
}

func (r *MemoryRepository) GetAccount(ctx context.Context, userID, accountID string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	a, ok := findByID(u.Accounts, accountID)
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	return a, nil
}

func (r *MemoryRepository) SaveAccount(ctx context.Context, userID string, account *models.Account, same SameAccountFunc) (*models.Account, error) {
	return r.mutate(userID, func(accounts []models.Account) ([]models.Account, models.Account, error) {
		next, stored := upsertByIdentity(accounts, *account.Clone(), same)
		return next, stored, nil
	})
}

func (r *MemoryRepository) FinalizeAccount(ctx context.Context, userID string, account *models.Account, same SameAccountFunc) (*models.Account, error) {
	return r.mutate(userID, func(accounts []models.Account) ([]models.Account, models.Account, error) {
		return finalizeAccount(accounts, *account.Clone(), same)
	})
}

func (r *MemoryRepository) UpdateAccountForUser(ctx context.Context, userID string, account *models.Account) (*models.Account, error) {
	return r.mutate(userID, func(accounts []models.Account) ([]models.Account, models.Account, error) {
		next, stored := upsertByID(accounts, *account.Clone())
		return next, stored, nil
	})
}

func (r *MemoryRepository) MergeCredential(ctx context.Context, userID, accountID string, update models.Credential) (*models.Account, error) {
	return r.mutate(userID, func(accounts []models.Account) ([]models.Account, models.Account, error) {
		return mergeCredential(accounts, accountID, update)
	})
}

func (r *MemoryRepository) DeleteAccount(ctx context.Context, userID, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.Accounts, _ = removeByID(u.Accounts, accountID)
	}
	return nil
}

func (r *MemoryRepository) mutate(userID string, fn func([]models.Account) ([]models.Account, models.Account, error)) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}

	next, stored, err := fn(u.Accounts)
	if err != nil {
		return nil, err
	}
	u.Accounts = next
	return stored.Clone(), nil
}

func (r *MemoryRepository) findLocked(pred func(*models.User) bool) *models.User {
	for _, u := range r.users {
		if pred(u) {
			return u
		}
	}
	return nil
}

func applyUserUpdate(u *models.User, update models.UserUpdate) {
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.PhoneNumber != nil {
		u.PhoneNumber = *update.PhoneNumber
	}
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
}
