package service

import (
	"context"
	"strings"

	"github.com/prepvault/storefront/internal/db"
	"github.com/prepvault/storefront/internal/model"
	"go.uber.org/zap"
)

type reviewRepo interface {
	GetMaterial(ctx context.Context, id int64) (*model.Material, error)
	ListReviews(ctx context.Context, materialID int64) ([]model.ReviewView, error)
	GetUserReview(ctx context.Context, userID string, materialID int64) (*model.Review, error)
	CreateReview(ctx context.Context, review model.Review) (*model.Review, error)
}

type ownershipChecker interface {
	HasPurchased(ctx context.Context, userID string, materialID int64) (bool, error)
}

// ReviewService lists and records material reviews. Only buyers may review,
// once per material.
type ReviewService struct {
	repo         reviewRepo
	entitlements ownershipChecker
	logger       *zap.Logger
}

func NewReviewService(repo reviewRepo, entitlements ownershipChecker, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		repo:         repo,
		entitlements: entitlements,
		logger:       logger.Named("review"),
	}
}

func (s *ReviewService) ListReviews(ctx context.Context, materialID int64) ([]model.ReviewView, error) {
	if err := s.requireMaterial(ctx, materialID); err != nil {
		return nil, err
	}
	reviews, err := s.repo.ListReviews(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []model.ReviewView{}
	}
	return reviews, nil
}

func (s *ReviewService) CreateReview(ctx context.Context, identity *model.AuthUser, materialID int64, req model.CreateReviewRequest) (*model.Review, error) {
	if identity == nil || identity.ID == "" {
		return nil, userError(ErrUnauthorized, "Authentication required")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, userError(ErrInvalidInput, "Rating must be between 1 and 5")
	}
	if err := s.requireMaterial(ctx, materialID); err != nil {
		return nil, err
	}

	owned, err := s.entitlements.HasPurchased(ctx, identity.ID, materialID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, userError(ErrForbidden, "You must purchase this material to leave a review")
	}

	if _, err := s.repo.GetUserReview(ctx, identity.ID, materialID); err == nil {
		return nil, alreadyReviewed()
	} else if !db.IsNoRows(err) {
		return nil, err
	}

	review, err := s.repo.CreateReview(ctx, model.Review{
		UserID:     identity.ID,
		MaterialID: materialID,
		Rating:     req.Rating,
		Comment:    strings.TrimSpace(req.Comment),
	})
	if err != nil {
		// two submissions racing past the lookup
		if db.IsUniqueViolation(err) {
			return nil, alreadyReviewed()
		}
		return nil, err
	}
	s.logger.Info("review recorded",
		zap.Int64("material_id", materialID),
		zap.String("user_id", identity.ID),
		zap.Int("rating", review.Rating))
	return review, nil
}

func (s *ReviewService) requireMaterial(ctx context.Context, materialID int64) error {
	if _, err := s.repo.GetMaterial(ctx, materialID); err != nil {
		if db.IsNoRows(err) {
			return userError(ErrNotFound, "Material not found")
		}
		return err
	}
	return nil
}

func alreadyReviewed() error {
	return userError(ErrInvalidInput, "You have already reviewed this material")
}
