package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/prepvault/storefront/internal/config"
	"github.com/prepvault/storefront/internal/db"
	"github.com/prepvault/storefront/internal/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const adminSessionUserPrefix = "admin:"

type adminSessionRepo interface {
	CreateAdminSession(ctx context.Context, session model.AdminSession) error
	GetAdminSession(ctx context.Context, tokenHash string, now time.Time) (*model.AdminSession, error)
	DeleteAdminSession(ctx context.Context, tokenHash string) error
	DeleteExpiredAdminSessions(ctx context.Context, now time.Time) (int64, error)
}

// AdminService backs the credential-based admin login. Sessions are rows in
// admin_sessions keyed by a hash of the opaque token.
type AdminService struct {
	repo         adminSessionRepo
	username     string
	passwordHash []byte
	ttl          time.Duration
	secret       []byte
	logger       *zap.Logger
	now          func() time.Time
}

func NewAdminService(repo adminSessionRepo, cfg config.AdminConfig, jwtSecret string, logger *zap.Logger) *AdminService {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AdminService{
		repo:         repo,
		username:     strings.TrimSpace(cfg.Username),
		passwordHash: []byte(cfg.PasswordHash),
		ttl:          ttl,
		secret:       []byte(jwtSecret),
		logger:       logger.Named("admin"),
		now:          time.Now,
	}
}

func (s *AdminService) Enabled() bool {
	return s.username != "" && len(s.passwordHash) > 0
}

func (s *AdminService) Login(ctx context.Context, username, password string) (string, *model.AdminSession, error) {
	now := s.now()
	if purged, err := s.repo.DeleteExpiredAdminSessions(ctx, now); err != nil {
		s.logger.Warn("failed to purge expired admin sessions", zap.Error(err))
	} else if purged > 0 {
		s.logger.Debug("purged expired admin sessions", zap.Int64("count", purged))
	}

	invalid := userError(ErrUnauthorized, "Invalid credentials")
	if !s.Enabled() {
		return "", nil, invalid
	}

	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(s.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		s.logger.Warn("admin login rejected", zap.String("username", username))
		return "", nil, invalid
	}

	token, err := newOpaqueToken()
	if err != nil {
		return "", nil, err
	}
	session := model.AdminSession{
		TokenHash: keyedHash(s.secret, "admin", token),
		UserID:    adminSessionUserPrefix + s.username,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.CreateAdminSession(ctx, session); err != nil {
		return "", nil, fmt.Errorf("failed to store admin session: %w", err)
	}
	return token, &session, nil
}

func (s *AdminService) Validate(ctx context.Context, token string) (*model.AdminSession, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthorized
	}
	session, err := s.repo.GetAdminSession(ctx, keyedHash(s.secret, "admin", token), s.now())
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return session, nil
}

func (s *AdminService) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return s.repo.DeleteAdminSession(ctx, keyedHash(s.secret, "admin", token))
}

// Username strips the session user prefix.
func (s *AdminService) Username(session *model.AdminSession) string {
	return strings.TrimPrefix(session.UserID, adminSessionUserPrefix)
}
