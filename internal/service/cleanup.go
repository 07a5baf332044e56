package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type expiryRepo interface {
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
	DeleteExpiredAdminSessions(ctx context.Context, now time.Time) (int64, error)
}

// CleanupService garbage-collects expired refresh tokens and admin sessions.
type CleanupService struct {
	repo     expiryRepo
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewCleanupService(repo expiryRepo, interval time.Duration, logger *zap.Logger) *CleanupService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupService{
		repo:     repo,
		interval: interval,
		logger:   logger.Named("cleanup"),
		now:      time.Now,
	}
}

type CleanupResult struct {
	RefreshTokens int64
	AdminSessions int64
}

// RunOnce performs a single sweep. Both deletes are attempted even if the
// first one fails.
func (s *CleanupService) RunOnce(ctx context.Context) (CleanupResult, error) {
	now := s.now()
	var result CleanupResult

	tokens, tokenErr := s.repo.DeleteExpiredRefreshTokens(ctx, now)
	if tokenErr == nil {
		result.RefreshTokens = tokens
	}
	sessions, sessionErr := s.repo.DeleteExpiredAdminSessions(ctx, now)
	if sessionErr == nil {
		result.AdminSessions = sessions
	}

	if tokenErr != nil {
		return result, tokenErr
	}
	return result, sessionErr
}

// Run sweeps on every tick until ctx is cancelled.
func (s *CleanupService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *CleanupService) sweep(ctx context.Context) {
	result, err := s.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("expiry sweep failed", zap.Error(err))
		}
		return
	}
	if result.RefreshTokens > 0 || result.AdminSessions > 0 {
		s.logger.Info("expired credentials removed",
			zap.Int64("refreshTokens", result.RefreshTokens),
			zap.Int64("adminSessions", result.AdminSessions),
		)
	}
}
