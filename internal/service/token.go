package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prepvault/storefront/internal/config"
	"github.com/prepvault/storefront/internal/db"
	"github.com/prepvault/storefront/internal/model"
)

const refreshTokenBytes = 32

type tokenRepo interface {
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	InsertRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ClaimRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
}

// TokenService issues stateless access tokens and stateful, single-use
// refresh tokens. Only a keyed hash of a refresh token is ever stored.
type TokenService struct {
	repo       tokenRepo
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type accessClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func NewTokenService(repo tokenRepo, cfg config.AuthConfig) (*TokenService, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMisconfigured)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%w: token TTLs must be positive", ErrMisconfigured)
	}

	return &TokenService{
		repo:       repo,
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *TokenService) CreateAuthTokens(ctx context.Context, user *model.User) (*model.AuthTokens, error) {
	accessToken, err := s.signAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	if err := s.repo.InsertRefreshToken(ctx, user.ID, s.hashToken(refreshToken), s.now().Add(s.refreshTTL)); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &model.AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// VerifyAccessToken returns nil for any invalid, expired or malformed token.
func (s *TokenService) VerifyAccessToken(tokenStr string) *model.AuthUser {
	if tokenStr == "" {
		return nil
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil
	}

	role := claims.Role
	if role == "" {
		role = model.RoleUser
	}
	return &model.AuthUser{ID: claims.UserID, Role: role}
}

// RefreshAuthTokens consumes rawToken and mints a new pair. The stored row is
// deleted before anything else happens, so a token works at most once, and an
// expired row is removed by the same statement.
func (s *TokenService) RefreshAuthTokens(ctx context.Context, rawToken string) (*model.AuthTokens, *model.User, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, nil, ErrUnauthorized
	}

	record, err := s.repo.ClaimRefreshToken(ctx, s.hashToken(rawToken))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, err
	}
	if !s.now().Before(record.ExpiresAt) {
		return nil, nil, ErrUnauthorized
	}

	user, err := s.repo.GetUserByID(ctx, record.UserID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, err
	}

	tokens, err := s.CreateAuthTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return tokens, user, nil
}

func (s *TokenService) RevokeRefreshToken(ctx context.Context, rawToken string) error {
	if strings.TrimSpace(rawToken) == "" {
		return nil
	}
	return s.repo.DeleteRefreshToken(ctx, s.hashToken(rawToken))
}

func (s *TokenService) signAccessToken(user *model.User) (string, error) {
	now := s.now()
	role := user.Role
	if role == "" {
		role = model.RoleUser
	}
	claims := accessClaims{
		UserID: user.ID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenService) hashToken(token string) string {
	return keyedHash(s.secret, "refresh", token)
}

// keyedHash is an HMAC-SHA256 of value under secret, domain-separated by
// purpose so the same raw value hashes differently per token kind.
func keyedHash(secret []byte, purpose, value string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(purpose))
	mac.Write([]byte{0})
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func newOpaqueToken() (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
