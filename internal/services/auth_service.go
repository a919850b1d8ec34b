package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendtrack/internal/auth"
	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

// AuthService handles registration and login.
type AuthService struct {
	users  UserStore
	tokens *auth.TokenIssuer
	now    func() time.Time
}

func NewAuthService(users UserStore, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		now:    time.Now,
	}
}

// Register creates a new account with empty preference lists and
// onboarded=false. No session is issued; the client logs in afterwards.
func (s *AuthService) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if err := core.ValidateCredentials(username, password); err != nil {
		return validationErr(err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := core.User{
		ID:                uuid.NewString(),
		Username:          username,
		PasswordHash:      hash,
		PaymentMethods:    []string{},
		ExpenseCategories: []string{},
		Onboarded:         false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) {
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID, "username", username)
	return nil
}

// Login verifies credentials and issues a bearer token. Unknown
// username and wrong password produce the same ErrInvalidCredentials so
// the response cannot reveal which one failed.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, core.User, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", core.User{}, ErrInvalidCredentials
		}
		return "", core.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return "", core.User{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", core.User{}, fmt.Errorf("issue token: %w", err)
	}

	slog.InfoContext(ctx, "User logged in", "user_id", user.ID)
	return token, user, nil
}
