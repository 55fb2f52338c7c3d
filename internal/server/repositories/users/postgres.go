package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/dbx"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id, email, phone_number, password_hash, accounts, created_at`

// PostgresRepository stores one row per user with the accounts embedded as
// an ordered JSONB array. Account mutations lock the user row with
// SELECT ... FOR UPDATE and rewrite the array in the same transaction.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	stored := user.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.Accounts == nil {
		stored.Accounts = []models.Account{}
	}

	accounts, err := json.Marshal(stored.Accounts)
	if err != nil {
		return nil, fmt.Errorf("encode accounts: %w", err)
	}

	query :=
		`INSERT INTO users (id, email, phone_number, password_hash, accounts, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		 `

	_, err = r.db.ExecContext(ctx, query,
		stored.ID, stored.Email, nullString(stored.PhoneNumber), stored.PasswordHash, string(accounts), stored.CreatedAt)
	if err != nil {
		return nil, wrapDBError(err)
	}

	return stored, nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return r.getOne(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) GetUserByPhoneNumber(ctx context.Context, phone string) (*models.User, error) {
	if phone == "" {
		return nil, common.ErrUserNotFound
	}
	return r.getOne(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone)
}

func (r *PostgresRepository) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	result := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateUser(ctx context.Context, userID string, update models.UserUpdate) (*models.User, error) {
	var updated *models.User

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := r.getOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID)
		if err != nil {
			return err
		}

		applyUserUpdate(u, update)

		query :=
			`UPDATE users SET email = $1, phone_number = $2, password_hash = $3
			 WHERE id = $4
			 `
		if _, err := tx.ExecContext(ctx, query, u.Email, nullString(u.PhoneNumber), u.PasswordHash, userID); err != nil {
			return wrapDBError(err)
		}

		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PostgresRepository) ListAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT accounts FROM users WHERE id = $1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Account{}, nil
		}
		return nil, wrapDBError(err)
	}
	return decodeAccounts(raw)
}

func (r *PostgresRepository) GetAccount(ctx context.Context, userID, accountID string) (*models.Account, error) {
	accounts, err := r.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	a, ok := findByID(accounts, accountID)
	if !ok {
		return nil, common.ErrAccountNotFound
	}
	return a, nil
}

func (r *PostgresRepository) SaveAccount(ctx context.Context, userID string, account *models.Account, same SameAccountFunc) (*models.Account, error) {
	return r.mutate(ctx, userID, func(accounts []models.Account) ([]models.Account, models.Account, error) {
		next, stored := upsertByIdentity(accounts, *account.Clone(), same)
		return next, stored, nil
	})
}

func (r *PostgresRepository) FinalizeAccount(ctx context.Context, userID string, account *models.Account, same SameAccountFunc) (*models.Account, error) {
	return r.mutate(ctx, userID, func(accounts []models.Account) ([]models.Account, models.Account, error) {
		return finalizeAccount(accounts, *account.Clone(), same)
	})
}

func (r *PostgresRepository) UpdateAccountForUser(ctx context.Context, userID string, account *models.Account) (*models.Account, error) {
	return r.mutate(ctx, userID, func(accounts []models.Account) ([]models.Account, models.Account, error) {
		next, stored := upsertByID(accounts, *account.Clone())
		return next, stored, nil
	})
}

func (r *PostgresRepository) MergeCredential(ctx context.Context, userID, accountID string, update models.Credential) (*models.Account, error) {
	return r.mutate(ctx, userID, func(accounts []models.Account) ([]models.Account, models.Account, error) {
		return mergeCredential(accounts, accountID, update)
	})
}

func (r *PostgresRepository) DeleteAccount(ctx context.Context, userID, accountID string) error {
	_, err := r.mutate(ctx, userID, func(accounts []models.Account) ([]models.Account, models.Account, error) {
		next, _ := removeByID(accounts, accountID)
		return next, models.Account{}, nil
	})
	if errors.Is(err, common.ErrUserNotFound) {
		return nil
	}
	return err
}

// mutate runs fn against the locked accounts array of userID and writes the
// result back before the transaction commits.
func (r *PostgresRepository) mutate(ctx context.Context, userID string, fn func([]models.Account) ([]models.Account, models.Account, error)) (*models.Account, error) {
	var stored models.Account

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var raw []byte
		err := tx.QueryRowContext(ctx, `SELECT accounts FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&raw)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrUserNotFound
			}
			return wrapDBError(err)
		}

		accounts, err := decodeAccounts(raw)
		if err != nil {
			return err
		}

		next, s, err := fn(accounts)
		if err != nil {
			return err
		}

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode accounts: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE users SET accounts = $1::jsonb WHERE id = $2`, string(encoded), userID); err != nil {
			return wrapDBError(err)
		}

		stored = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) getOne(ctx context.Context, db dbx.DBTX, query string, arg any) (*models.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u     models.User
		phone sql.NullString
		raw   []byte
	)
	if err := row.Scan(&u.ID, &u.Email, &phone, &u.PasswordHash, &raw, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, wrapDBError(err)
	}
	u.PhoneNumber = phone.String

	accounts, err := decodeAccounts(raw)
	if err != nil {
		return nil, err
	}
	u.Accounts = accounts
	return &u, nil
}

func decodeAccounts(raw []byte) ([]models.Account, error) {
	accounts := []models.Account{}
	if len(raw) == 0 {
		return accounts, nil
	}
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	return accounts, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func wrapDBError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", common.ErrAlreadyExists, pgErr.ConstraintName)
	}
	return fmt.Errorf("db error: %w", err)
}
