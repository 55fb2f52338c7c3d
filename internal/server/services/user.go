// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, session tokens and profile
// updates.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/unidrive/internal/common"
	"github.com/dmitrijs2005/unidrive/internal/logging"
	"github.com/dmitrijs2005/unidrive/internal/server/auth"
	"github.com/dmitrijs2005/unidrive/internal/server/config"
	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/dmitrijs2005/unidrive/internal/server/repositories/users"
)

// MinPasswordLength is the shortest password Register and UpdateProfile
// accept.
const MinPasswordLength = 8

// unknownUserHash is compared against on logins for unknown emails so that
// they cost the same bcrypt round as a wrong password.
var unknownUserHash = sync.OnceValue(func() string {
	hash, err := auth.HashPassword("unidrive-unknown-user")
	if err != nil {
		panic(err)
	}
	return hash
})

// UserService provides user-related operations:
// - Register: create users with a bcrypt password hash
// - Login: verify credentials and mint a session token
// - Authenticate: resolve a session token to a user id
// - Me / UpdateProfile: read and change the caller's profile
type UserService struct {
	repo                        users.Repository
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	log                         logging.Logger
	checkPassword               func(hash, password string) (bool, error)
}

// NewUserService constructs a UserService using the store and server config.
func NewUserService(repo users.Repository, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		repo:                        repo,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		log:                         log,
		checkPassword:               auth.CheckPassword,
	}
}

// ProfileUpdate lists the profile fields the caller wants to change. Nil
// fields are left alone; Password is hashed before it is stored.
type ProfileUpdate struct {
	Email       *string
	PhoneNumber *string
	Password    *string
}

// Register creates a user. A duplicate email or phone number yields
// common.ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, email, password, phone string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	u, err := s.repo.CreateUser(ctx, &models.User{
		Email:        email,
		PhoneNumber:  strings.TrimSpace(phone),
		PasswordHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login verifies email and password and returns a session token. Unknown
// users and wrong passwords both yield common.ErrUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			_, _ = s.checkPassword(unknownUserHash(), password)
			return "", common.ErrUnauthorized
		}
		return "", err
	}

	ok, err := s.checkPassword(u.PasswordHash, password)
	if err != nil {
		s.log.Error(ctx, "password check failed", "user_id", u.ID, "error", err)
		return "", common.ErrUnauthorized
	}
	if !ok {
		return "", common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(u.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	return token, nil
}

// Authenticate returns the user id carried by a session token.
func (s *UserService) Authenticate(token string) (string, error) {
	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}
	return userID, nil
}

// Me returns the stored user.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.GetUser(ctx, userID)
}

// UpdateProfile validates and applies update. An empty update is rejected.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	var u models.UserUpdate

	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		u.Email = &email
	}
	if update.PhoneNumber != nil {
		phone := strings.TrimSpace(*update.PhoneNumber)
		u.PhoneNumber = &phone
	}
	if update.Password != nil {
		if err := validatePassword(*update.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*update.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
		}
		u.PasswordHash = &hash
	}

	if u.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrValidation)
	}

	updated, err := s.repo.UpdateUser(ctx, userID, u)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user updated", "user_id", userID)
	return updated, nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", common.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, MinPasswordLength)
	}
	return nil
}
