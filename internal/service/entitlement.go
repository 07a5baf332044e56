package service

import "context"

type entitlementRepo interface {
	HasPurchased(ctx context.Context, userID string, materialID int64) (bool, error)
}

// EntitlementService answers whether a user owns a material. A purchase row
// is the only thing that grants access.
type EntitlementService struct {
	repo entitlementRepo
}

func NewEntitlementService(repo entitlementRepo) *EntitlementService {
	return &EntitlementService{repo: repo}
}

func (s *EntitlementService) HasPurchased(ctx context.Context, userID string, materialID int64) (bool, error) {
	if userID == "" || materialID <= 0 {
		return false, nil
	}
	return s.repo.HasPurchased(ctx, userID, materialID)
}
