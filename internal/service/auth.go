package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prepvault/storefront/internal/client"
	"github.com/prepvault/storefront/internal/db"
	"github.com/prepvault/storefront/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

type userRepo interface {
	CreateUser(ctx context.Context, user model.User) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	SetUserRole(ctx context.Context, email, role string) error
}

type tokenIssuer interface {
	CreateAuthTokens(ctx context.Context, user *model.User) (*model.AuthTokens, error)
}

type AuthService struct {
	repo   userRepo
	tokens tokenIssuer
}

func NewAuthService(repo userRepo, tokens tokenIssuer) *AuthService {
	return &AuthService{repo: repo, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, *model.AuthTokens, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, nil, userError(ErrInvalidInput, "Email is required")
	}
	if len(req.Password) < minPasswordLength || len(req.Password) > maxPasswordLength {
		return nil, nil, userError(ErrInvalidInput, fmt.Sprintf("Password must be between %d and %d characters", minPasswordLength, maxPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	hashStr := string(hash)

	user, err := s.repo.CreateUser(ctx, model.User{
		ID:           uuid.NewString(),
		Email:        &email,
		PasswordHash: &hashStr,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         model.RoleUser,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, nil, userError(ErrInvalidInput, "User already exists with this email")
		}
		return nil, nil, err
	}

	tokens, err := s.tokens.CreateAuthTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, *model.AuthTokens, error) {
	if password == "" {
		return nil, nil, userError(ErrInvalidInput, "Password is required")
	}
	invalid := userError(ErrUnauthorized, "Invalid email or password")

	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil, invalid
		}
		return nil, nil, err
	}

	// guest accounts have no password and cannot log in this way
	if user.PasswordHash == nil {
		return nil, nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, invalid
	}

	tokens, err := s.tokens.CreateAuthTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// LoginWithIdentity signs in a user verified by the external identity
// provider, creating a password-less account on first sight.
func (s *AuthService) LoginWithIdentity(ctx context.Context, identity *client.OIDCIdentity) (*model.User, *model.AuthTokens, error) {
	email := normalizeEmail(identity.Email)
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil && !db.IsNoRows(err) {
		return nil, nil, err
	}
	if user == nil {
		user, err = s.repo.CreateUser(ctx, model.User{
			ID:        uuid.NewString(),
			Email:     &email,
			FirstName: identity.FirstName,
			LastName:  identity.LastName,
			Role:      model.RoleUser,
		})
		if err != nil {
			return nil, nil, err
		}
	}

	tokens, err := s.tokens.CreateAuthTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, userError(ErrNotFound, "User not found")
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) PromoteAdmin(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}
	if err := s.repo.SetUserRole(ctx, email, model.RoleAdmin); err != nil {
		if db.IsNoRows(err) {
			return userError(ErrNotFound, "User not found")
		}
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
